package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/credentials"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/party"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/metrics"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/remoteparty"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/versions"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// stubVersionsClient fakes the counterparty's discovery surface so the
// registration flow runs without a second server.
type stubVersionsClient struct{}

func (stubVersionsClient) GetVersions(context.Context, string, string) ([]ocpi.VersionInfo, error) {
	return []ocpi.VersionInfo{
		{Version: ocpi.Version221, URL: "http://msp.example.com/ocpi/versions/2.2.1"},
	}, nil
}

func (stubVersionsClient) GetVersionDetails(context.Context, string, string) (ocpi.VersionDetails, error) {
	return ocpi.VersionDetails{
		Version: ocpi.Version221,
		Endpoints: []ocpi.Endpoint{
			{Identifier: ocpi.ModuleCredentials, Role: ocpi.InterfaceReceiver, URL: "http://msp.example.com/ocpi/2.2.1/credentials"},
		},
	}, nil
}

var emspRoles = []ocpi.CredentialsRole{{
	CountryCode: "NL",
	PartyID:     "ABC",
	Role:        ocpi.RoleEMSP,
}}

type testServer struct {
	router  http.Handler
	remotes *remoteparty.Registry
	parties *party.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	remotes := remoteparty.NewRegistry(logger, nil)
	_, err := remotes.Add(context.Background(), remoteparty.RemoteParty{
		Roles: emspRoles,
		LocalAccessInfos: []remoteparty.LocalAccessInfo{
			{AccessToken: "token-a", Status: remoteparty.AccessAllowed},
		},
	})
	require.NoError(t, err)

	buses := party.NewBuses(logger, nil)
	parties := party.NewRegistry(logger, nil, buses)
	identity, err := ocpi.NewPartyIdentity("DE", "GEF")
	require.NoError(t, err)
	d, err := parties.Register(context.Background(), party.Info{Identity: identity, Role: ocpi.RoleCPO})
	require.NoError(t, err)
	d.Locations.AddOrUpdate(context.Background(), ocpi.Location{
		CountryCode: "DE",
		PartyID:     "GEF",
		ID:          "LOC1",
		Publish:     true,
		LastUpdated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, false)

	vs := versions.New("http://hub.example.com/ocpi",
		[]ocpi.VersionNumber{ocpi.Version22, ocpi.Version221}, true)
	ownRoles := []ocpi.CredentialsRole{{CountryCode: "DE", PartyID: "GEF", Role: ocpi.RoleCPO}}
	creds := credentials.New(remotes, stubVersionsClient{}, vs, ownRoles, logger,
		credentials.WithTokenMinter(func() (string, error) { return "token-c", nil }))

	m := metrics.NewWith(prometheus.NewRegistry())
	h := NewHandler(logger, vs, creds, remotes, parties, m, "admin-secret", true)
	return &testServer{router: NewRouter(h), remotes: remotes, parties: parties}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) ocpi.Response {
	t.Helper()
	var resp ocpi.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if data != nil && resp.Data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeSuccess), resp.StatusCode)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/versions", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeClientError), resp.StatusCode)
}

func TestUnknownTokenIsForbidden(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/versions", "nope", nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeClientError), resp.StatusCode)
}

func TestVersionIndex(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/versions", "token-a", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var index []ocpi.VersionInfo
	decodeEnvelope(t, rec, &index)
	require.Len(t, index, 2)
	assert.Equal(t, ocpi.Version22, index[0].Version)
}

func TestVersionDetailsForCaller(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/versions/2.2.1", "token-a", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var details ocpi.VersionDetails
	decodeEnvelope(t, rec, &details)
	assert.Equal(t, ocpi.Version221, details.Version)

	// The caller is an EMSP, so it sees our sender side.
	found := false
	for _, e := range details.Endpoints {
		if e.Identifier == ocpi.ModuleLocations && e.Role == ocpi.InterfaceSender {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVersionDetailsUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/versions/9.9", "token-a", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeUnsupportedVersion), resp.StatusCode)
}

func TestVersionOptions(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodOptions, "/ocpi/versions/2.2.1", "token-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OPTIONS,GET", rec.Header().Get("Allow"))

	rec = s.do(t, http.MethodOptions, "/ocpi/versions/9.9", "token-a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCredentialsRegistrationFlow(t *testing.T) {
	s := newTestServer(t)
	payload := ocpi.Credentials{
		Token: "token-b",
		URL:   "http://msp.example.com/ocpi/versions",
		Roles: emspRoles,
	}

	rec := s.do(t, http.MethodPost, "/ocpi/2.2.1/credentials", "token-a", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	var out ocpi.Credentials
	decodeEnvelope(t, rec, &out)
	assert.Equal(t, "token-c", out.Token)
	assert.Equal(t, "http://hub.example.com/ocpi/versions", out.URL)

	// Token A is spent.
	rec = s.do(t, http.MethodGet, "/ocpi/2.2.1/credentials", "token-a", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Token C works and a replayed POST is rejected.
	rec = s.do(t, http.MethodGet, "/ocpi/2.2.1/credentials", "token-c", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/ocpi/2.2.1/credentials", "token-c", payload)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// Unregistering removes the counterparty entirely.
	rec = s.do(t, http.MethodDelete, "/ocpi/2.2.1/credentials", "token-c", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.remotes.Count())
}

func TestCredentialsUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/9.9/credentials", "token-a", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeUnsupportedVersion), resp.StatusCode)
}

func TestCredentialsInvalidBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/ocpi/2.2.1/credentials", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Token token-a")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeInvalidParameters), resp.StatusCode)
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/parties", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/parties", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func adminRequest(t *testing.T, s *testServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Admin-Token", "admin-secret")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminPartyLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := adminRequest(t, s, http.MethodGet, "/admin/parties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var parties []remoteparty.RemoteParty
	decodeEnvelope(t, rec, &parties)
	require.Len(t, parties, 1)

	newParty := remoteparty.RemoteParty{
		Roles: []ocpi.CredentialsRole{{CountryCode: "FR", PartyID: "XYZ", Role: ocpi.RoleCPO}},
		LocalAccessInfos: []remoteparty.LocalAccessInfo{
			{AccessToken: "token-fr", Status: remoteparty.AccessAllowed},
		},
	}
	rec = adminRequest(t, s, http.MethodPost, "/admin/parties", newParty)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Re-provisioning the same party conflicts.
	rec = adminRequest(t, s, http.MethodPost, "/admin/parties", newParty)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeEnvelope(t, rec, nil)
	assert.Equal(t, int(ocpierrors.CodeClientError), resp.StatusCode)

	rec = adminRequest(t, s, http.MethodPut, "/admin/parties/FR-XYZ/status", map[string]string{"status": "DISABLED"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated remoteparty.RemoteParty
	decodeEnvelope(t, rec, &updated)
	assert.Equal(t, remoteparty.PartyDisabled, updated.Status)

	rec = adminRequest(t, s, http.MethodPut, "/admin/parties/FR-XYZ/status", map[string]string{"status": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = adminRequest(t, s, http.MethodPut, "/admin/parties/ZZ-ZZZ/status", map[string]string{"status": "DISABLED"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenLocationsNeedsNoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/ocpi/open/locations", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var locations []ocpi.Location
	decodeEnvelope(t, rec, &locations)
	require.Len(t, locations, 1)
	assert.Equal(t, "LOC1", locations[0].ID)
}
