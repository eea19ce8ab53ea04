package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

func cpoCaller() []ocpi.CredentialsRole {
	return []ocpi.CredentialsRole{{CountryCode: "DE", PartyID: "GDF", Role: ocpi.RoleCPO}}
}

func emspCaller() []ocpi.CredentialsRole {
	return []ocpi.CredentialsRole{{CountryCode: "NL", PartyID: "ABC", Role: ocpi.RoleEMSP}}
}

func endpointSet(d ocpi.VersionDetails) map[string]string {
	out := make(map[string]string, len(d.Endpoints))
	for _, e := range d.Endpoints {
		out[string(e.Identifier)+"/"+string(e.Role)] = e.URL
	}
	return out
}

func TestIndexListsSupportedVersions(t *testing.T) {
	s := New("http://hub.example.com/ocpi", []ocpi.VersionNumber{ocpi.Version22, ocpi.Version221}, false)

	index := s.Index()
	require.Len(t, index, 2)
	assert.Equal(t, ocpi.Version22, index[0].Version)
	assert.Equal(t, "http://hub.example.com/ocpi/versions/2.2", index[0].URL)
	assert.Equal(t, "http://hub.example.com/ocpi/versions/2.2.1", index[1].URL)

	assert.Equal(t, "http://hub.example.com/ocpi/versions", s.VersionsURL())
	assert.True(t, s.Supported(ocpi.Version221))
	assert.False(t, s.Supported(ocpi.Version211))
}

func TestDetailsForCPOCaller(t *testing.T) {
	s := New("http://hub.example.com/ocpi", []ocpi.VersionNumber{ocpi.Version221}, false)

	d, err := s.Details(ocpi.Version221, cpoCaller())
	require.NoError(t, err)
	assert.Equal(t, ocpi.Version221, d.Version)

	eps := endpointSet(d)
	assert.Equal(t, "http://hub.example.com/ocpi/2.2.1/credentials", eps["credentials/RECEIVER"])
	// A CPO pushes charging data to our receiver side and pulls tokens
	// from our sender side.
	assert.Equal(t, "http://hub.example.com/ocpi/2.2.1/cpo/locations", eps["locations/RECEIVER"])
	assert.Equal(t, "http://hub.example.com/ocpi/2.2.1/cpo/cdrs", eps["cdrs/RECEIVER"])
	assert.Equal(t, "http://hub.example.com/ocpi/2.2.1/cpo/tokens", eps["tokens/SENDER"])
	assert.NotContains(t, eps, "locations/SENDER")
}

func TestDetailsForEMSPCaller(t *testing.T) {
	s := New("http://hub.example.com/ocpi", []ocpi.VersionNumber{ocpi.Version221}, false)

	d, err := s.Details(ocpi.Version221, emspCaller())
	require.NoError(t, err)

	eps := endpointSet(d)
	assert.Equal(t, "http://hub.example.com/ocpi/2.2.1/emsp/locations", eps["locations/SENDER"])
	assert.Equal(t, "http://hub.example.com/ocpi/2.2.1/emsp/tokens", eps["tokens/RECEIVER"])
	assert.NotContains(t, eps, "locations/RECEIVER")
}

func TestDetailsForDualRoleCaller(t *testing.T) {
	s := New("http://hub.example.com/ocpi", []ocpi.VersionNumber{ocpi.Version221}, false)

	roles := append(cpoCaller(), emspCaller()...)
	d, err := s.Details(ocpi.Version221, roles)
	require.NoError(t, err)

	eps := endpointSet(d)
	assert.Contains(t, eps, "locations/RECEIVER")
	assert.Contains(t, eps, "locations/SENDER")
}

func TestDetailsOpenDataFeed(t *testing.T) {
	s := New("http://hub.example.com/ocpi", []ocpi.VersionNumber{ocpi.Version221}, true)

	d, err := s.Details(ocpi.Version221, emspCaller())
	require.NoError(t, err)

	found := false
	for _, e := range d.Endpoints {
		if e.URL == "http://hub.example.com/ocpi/2.2.1/open/locations" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetailsUnsupportedVersion(t *testing.T) {
	s := New("http://hub.example.com/ocpi", []ocpi.VersionNumber{ocpi.Version221}, false)

	_, err := s.Details(ocpi.Version211, cpoCaller())
	require.Error(t, err)
	assert.True(t, ocpierrors.HasCode(err, ocpierrors.CodeUnsupportedVersion))
}
