package ocpi

// VersionNumber is an OCPI protocol version identifier as it appears in
// URLs, e.g. "2.2.1".
type VersionNumber string

const (
	Version211 VersionNumber = "2.1.1"
	Version22  VersionNumber = "2.2"
	Version221 VersionNumber = "2.2.1"
)

// VersionInfo is one entry of a party's /versions index.
type VersionInfo struct {
	Version VersionNumber `json:"version"`
	URL     string        `json:"url"`
}

// ModuleID names an OCPI functional module exposed as an endpoint family.
type ModuleID string

const (
	ModuleBookings         ModuleID = "bookings"
	ModuleBookingLocations ModuleID = "bookinglocations"
	ModuleCDRs             ModuleID = "cdrs"
	ModuleChargingProfiles ModuleID = "chargingprofiles"
	ModuleCommands         ModuleID = "commands"
	ModuleCredentials      ModuleID = "credentials"
	ModuleLocations        ModuleID = "locations"
	ModuleSessions         ModuleID = "sessions"
	ModuleTariffs          ModuleID = "tariffs"
	ModuleTerminals        ModuleID = "terminals"
	ModuleTokens           ModuleID = "tokens"
)

// InterfaceRole distinguishes the sender and receiver side of a module
// endpoint in OCPI 2.2+.
type InterfaceRole string

const (
	InterfaceSender   InterfaceRole = "SENDER"
	InterfaceReceiver InterfaceRole = "RECEIVER"
)

// Endpoint is one entry of a version-details document.
type Endpoint struct {
	Identifier ModuleID      `json:"identifier"`
	Role       InterfaceRole `json:"role,omitempty"`
	URL        string        `json:"url"`
}

// VersionDetails is the /versions/{v} document: the endpoints a caller may
// use at that version. The endpoint list differs by counterparty role.
type VersionDetails struct {
	Version   VersionNumber `json:"version"`
	Endpoints []Endpoint    `json:"endpoints"`
}

// Credentials is the payload exchanged by the registration handshake: the
// token the receiver must use towards the sender, the sender's versions URL
// and the sender's roles.
type Credentials struct {
	Token string            `json:"token"`
	URL   string            `json:"url"`
	Roles []CredentialsRole `json:"roles"`
}
