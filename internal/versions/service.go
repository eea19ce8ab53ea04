// Package versions implements OCPI version discovery: the /versions index,
// the per-version endpoint catalogue, and the outbound client used by the
// registration handshake to discover a counterparty.
package versions

import (
	"fmt"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// Service answers version discovery for this server. The endpoint list it
// hands out depends on who is asking: a CPO counterparty sees our receiver
// side of the charging data modules, an EMSP counterparty our sender side.
type Service struct {
	externalURL string
	supported   []ocpi.VersionNumber
	openData    bool
}

// New constructs the service. externalURL is this server's public OCPI
// base, e.g. "https://hub.example.com/ocpi"; openData additionally exposes
// the anonymous location feed in version details.
func New(externalURL string, supported []ocpi.VersionNumber, openData bool) *Service {
	return &Service{externalURL: externalURL, supported: supported, openData: openData}
}

// Supported reports whether v is a version this server speaks.
func (s *Service) Supported(v ocpi.VersionNumber) bool {
	for _, sv := range s.supported {
		if sv == v {
			return true
		}
	}
	return false
}

// VersionsURL is this server's own versions index URL, advertised in
// credentials documents.
func (s *Service) VersionsURL() string {
	return s.externalURL + "/versions"
}

// Index lists every supported version with its details URL.
func (s *Service) Index() []ocpi.VersionInfo {
	out := make([]ocpi.VersionInfo, 0, len(s.supported))
	for _, v := range s.supported {
		out = append(out, ocpi.VersionInfo{
			Version: v,
			URL:     fmt.Sprintf("%s/versions/%s", s.externalURL, v),
		})
	}
	return out
}

// Details returns the endpoint catalogue for v, selected by the roles the
// caller registered under. Unknown versions fail with the unsupported-
// version code.
func (s *Service) Details(v ocpi.VersionNumber, callerRoles []ocpi.CredentialsRole) (ocpi.VersionDetails, error) {
	if !s.Supported(v) {
		return ocpi.VersionDetails{}, ocpierrors.New(ocpierrors.CodeUnsupportedVersion,
			fmt.Sprintf("version %s is not supported", v))
	}

	base := fmt.Sprintf("%s/%s", s.externalURL, v)
	endpoints := []ocpi.Endpoint{
		{Identifier: ocpi.ModuleCredentials, Role: ocpi.InterfaceReceiver, URL: base + "/credentials"},
	}

	if hasRole(callerRoles, ocpi.RoleCPO) {
		// CPOs push their charging data to us and pull our tokens.
		endpoints = append(endpoints,
			ocpi.Endpoint{Identifier: ocpi.ModuleLocations, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/locations"},
			ocpi.Endpoint{Identifier: ocpi.ModuleTerminals, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/terminals"},
			ocpi.Endpoint{Identifier: ocpi.ModuleTariffs, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/tariffs"},
			ocpi.Endpoint{Identifier: ocpi.ModuleSessions, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/sessions"},
			ocpi.Endpoint{Identifier: ocpi.ModuleCDRs, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/cdrs"},
			ocpi.Endpoint{Identifier: ocpi.ModuleBookings, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/bookings"},
			ocpi.Endpoint{Identifier: ocpi.ModuleBookingLocations, Role: ocpi.InterfaceReceiver, URL: base + "/cpo/bookinglocations"},
			ocpi.Endpoint{Identifier: ocpi.ModuleTokens, Role: ocpi.InterfaceSender, URL: base + "/cpo/tokens"},
		)
	}
	if hasRole(callerRoles, ocpi.RoleEMSP) {
		// EMSPs pull charging data from us and push their tokens.
		endpoints = append(endpoints,
			ocpi.Endpoint{Identifier: ocpi.ModuleLocations, Role: ocpi.InterfaceSender, URL: base + "/emsp/locations"},
			ocpi.Endpoint{Identifier: ocpi.ModuleTariffs, Role: ocpi.InterfaceSender, URL: base + "/emsp/tariffs"},
			ocpi.Endpoint{Identifier: ocpi.ModuleSessions, Role: ocpi.InterfaceSender, URL: base + "/emsp/sessions"},
			ocpi.Endpoint{Identifier: ocpi.ModuleCDRs, Role: ocpi.InterfaceSender, URL: base + "/emsp/cdrs"},
			ocpi.Endpoint{Identifier: ocpi.ModuleBookings, Role: ocpi.InterfaceSender, URL: base + "/emsp/bookings"},
			ocpi.Endpoint{Identifier: ocpi.ModuleBookingLocations, Role: ocpi.InterfaceSender, URL: base + "/emsp/bookinglocations"},
			ocpi.Endpoint{Identifier: ocpi.ModuleTokens, Role: ocpi.InterfaceReceiver, URL: base + "/emsp/tokens"},
		)
	}
	if s.openData {
		endpoints = append(endpoints,
			ocpi.Endpoint{Identifier: ocpi.ModuleLocations, Role: ocpi.InterfaceSender, URL: base + "/open/locations"},
		)
	}

	return ocpi.VersionDetails{Version: v, Endpoints: endpoints}, nil
}

func hasRole(roles []ocpi.CredentialsRole, role ocpi.Role) bool {
	for _, r := range roles {
		if r.Role == role {
			return true
		}
	}
	return false
}
