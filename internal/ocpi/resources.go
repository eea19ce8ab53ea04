package ocpi

import (
	"encoding/json"
	"time"
)

// The charging-domain payload types below are deliberately slim: the store
// and the registration protocol only care about identity, the owning party
// and the LastUpdated stamp used for conflict resolution. Further business
// fields pass through as opaque JSON.

// EVSEStatus is the operational status of an EVSE.
type EVSEStatus string

const (
	EVSEStatusAvailable   EVSEStatus = "AVAILABLE"
	EVSEStatusBlocked     EVSEStatus = "BLOCKED"
	EVSEStatusCharging    EVSEStatus = "CHARGING"
	EVSEStatusInoperative EVSEStatus = "INOPERATIVE"
	EVSEStatusOutOfOrder  EVSEStatus = "OUTOFORDER"
	EVSEStatusPlanned     EVSEStatus = "PLANNED"
	EVSEStatusRemoved     EVSEStatus = "REMOVED"
	EVSEStatusReserved    EVSEStatus = "RESERVED"
	EVSEStatusUnknown     EVSEStatus = "UNKNOWN"
)

// Connector is a single plug on an EVSE.
type Connector struct {
	ID          string          `json:"id"`
	Standard    string          `json:"standard,omitempty"`
	Format      string          `json:"format,omitempty"`
	PowerType   string          `json:"power_type,omitempty"`
	MaxVoltage  int             `json:"max_voltage,omitempty"`
	MaxAmperage int             `json:"max_amperage,omitempty"`
	TariffIDs   []string        `json:"tariff_ids,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

// EVSE is one charging position at a location, owning its connectors.
type EVSE struct {
	UID          string          `json:"uid"`
	EVSEID       string          `json:"evse_id,omitempty"`
	Status       EVSEStatus      `json:"status"`
	Connectors   []Connector     `json:"connectors,omitempty"`
	Coordinates  json.RawMessage `json:"coordinates,omitempty"`
	PhysicalRef  string          `json:"physical_reference,omitempty"`
	Capabilities []string        `json:"capabilities,omitempty"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// Connector returns the connector with the given id, if present.
func (e EVSE) Connector(id string) (Connector, bool) {
	for _, c := range e.Connectors {
		if c.ID == id {
			return c, true
		}
	}
	return Connector{}, false
}

// Location is the aggregate root of the location module: it owns EVSEs,
// which own connectors. Mutating a nested EVSE or connector always
// re-stamps the location so conflict resolution happens at location
// granularity.
type Location struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Address     string          `json:"address,omitempty"`
	City        string          `json:"city,omitempty"`
	Country     string          `json:"country,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	EVSEs       []EVSE          `json:"evses,omitempty"`
	TimeZone    string          `json:"time_zone,omitempty"`
	Publish     bool            `json:"publish"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Owner returns the party identity the location belongs to.
func (l Location) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: l.CountryCode, PartyID: l.PartyID}
}

// EVSE returns the EVSE with the given uid, if present.
func (l Location) EVSE(uid string) (EVSE, bool) {
	for _, e := range l.EVSEs {
		if e.UID == uid {
			return e, true
		}
	}
	return EVSE{}, false
}

// Tariff is one time-bounded version of a charging tariff. Multiple
// versions of the same id coexist, distinguished by NotBefore.
type Tariff struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	Currency    string          `json:"currency,omitempty"`
	Elements    json.RawMessage `json:"elements,omitempty"`
	NotBefore   *time.Time      `json:"not_before,omitempty"`
	NotAfter    *time.Time      `json:"not_after,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (t Tariff) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: t.CountryCode, PartyID: t.PartyID}
}

// Session is an ongoing or completed charging session.
type Session struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	Start       time.Time       `json:"start_date_time"`
	End         *time.Time      `json:"end_date_time,omitempty"`
	KWh         float64         `json:"kwh"`
	LocationID  string          `json:"location_id,omitempty"`
	EVSEUID     string          `json:"evse_uid,omitempty"`
	ConnectorID string          `json:"connector_id,omitempty"`
	Status      string          `json:"status,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (s Session) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: s.CountryCode, PartyID: s.PartyID}
}

// TokenAllowed is the authorization status of a charging token.
type TokenAllowed string

const (
	TokenAllowedAllowed    TokenAllowed = "ALLOWED"
	TokenAllowedBlocked    TokenAllowed = "BLOCKED"
	TokenAllowedExpired    TokenAllowed = "EXPIRED"
	TokenAllowedNoCredit   TokenAllowed = "NO_CREDIT"
	TokenAllowedNotAllowed TokenAllowed = "NOT_ALLOWED"
)

// Token is an EMSP-issued charging token (RFID card, app token, ...).
type Token struct {
	CountryCode  string          `json:"country_code"`
	PartyID      string          `json:"party_id"`
	UID          string          `json:"uid"`
	Type         string          `json:"type,omitempty"`
	ContractID   string          `json:"contract_id,omitempty"`
	Issuer       string          `json:"issuer,omitempty"`
	Valid        bool            `json:"valid"`
	Allowed      TokenAllowed    `json:"allowed,omitempty"`
	Whitelist    string          `json:"whitelist,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
	LastUpdated  time.Time       `json:"last_updated"`
}

func (t Token) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: t.CountryCode, PartyID: t.PartyID}
}

// CDR is a charge detail record, the billing-grade record of a finished
// session.
type CDR struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id,omitempty"`
	Start       time.Time       `json:"start_date_time"`
	End         time.Time       `json:"end_date_time"`
	TotalEnergy float64         `json:"total_energy"`
	TotalCost   json.RawMessage `json:"total_cost,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (c CDR) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: c.CountryCode, PartyID: c.PartyID}
}

// Booking is a reservation of charging capacity.
type Booking struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	LocationID  string          `json:"location_id,omitempty"`
	EVSEUID     string          `json:"evse_uid,omitempty"`
	Period      json.RawMessage `json:"period,omitempty"`
	Status      string          `json:"status,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (b Booking) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: b.CountryCode, PartyID: b.PartyID}
}

// BookingLocation describes the bookable capacity of a location.
type BookingLocation struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	LocationID  string          `json:"location_id,omitempty"`
	Rules       json.RawMessage `json:"rules,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (b BookingLocation) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: b.CountryCode, PartyID: b.PartyID}
}

// Terminal is a payment terminal attached to one or more EVSEs.
type Terminal struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	Reference   string          `json:"reference,omitempty"`
	EVSEUIDs    []string        `json:"evse_uids,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (t Terminal) Owner() PartyIdentity {
	return PartyIdentity{CountryCode: t.CountryCode, PartyID: t.PartyID}
}
