package ocpi

import (
	"fmt"
	"strings"

	ocpierrors "github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// Role is the OCPI role a party acts in.
type Role string

const (
	RoleCPO   Role = "CPO"
	RoleEMSP  Role = "EMSP"
	RoleHub   Role = "HUB"
	RoleNAP   Role = "NAP"
	RoleNSP   Role = "NSP"
	RoleOther Role = "OTHER"
	RoleSCSP  Role = "SCSP"
)

// PartyIdentity identifies one role-holding party on the network. It is an
// immutable value and the key into the party registry.
type PartyIdentity struct {
	CountryCode string `json:"country_code"`
	PartyID     string `json:"party_id"`
}

// NewPartyIdentity validates and normalizes a country-code/party-id pair.
// OCPI mandates ISO-3166 alpha-2 country codes and three-character party ids.
func NewPartyIdentity(countryCode, partyID string) (PartyIdentity, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	partyID = strings.ToUpper(strings.TrimSpace(partyID))
	if len(countryCode) != 2 {
		return PartyIdentity{}, ocpierrors.New(ocpierrors.CodeInvalidParameters, "country code must be 2 characters")
	}
	if len(partyID) != 3 {
		return PartyIdentity{}, ocpierrors.New(ocpierrors.CodeInvalidParameters, "party id must be 3 characters")
	}
	return PartyIdentity{CountryCode: countryCode, PartyID: partyID}, nil
}

func (p PartyIdentity) String() string {
	return p.CountryCode + "-" + p.PartyID
}

// IsZero reports whether the identity is unset.
func (p PartyIdentity) IsZero() bool {
	return p.CountryCode == "" && p.PartyID == ""
}

// BusinessDetails describes the organization behind a party.
type BusinessDetails struct {
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Logo    string `json:"logo,omitempty"`
}

// CredentialsRole binds a party identity to a role and business details.
// Once a registration is accepted the role set of a remote party is
// immutable: renewals may not add, remove, or reassign roles.
type CredentialsRole struct {
	CountryCode     string          `json:"country_code"`
	PartyID         string          `json:"party_id"`
	Role            Role            `json:"role"`
	BusinessDetails BusinessDetails `json:"business_details"`
}

// Identity returns the party identity of this role entry.
func (r CredentialsRole) Identity() PartyIdentity {
	return PartyIdentity{CountryCode: r.CountryCode, PartyID: r.PartyID}
}

// Key returns the comparable (country, party, role) tuple used for role-set
// comparison during credential renewal.
func (r CredentialsRole) Key() string {
	return fmt.Sprintf("%s*%s*%s", r.CountryCode, r.PartyID, r.Role)
}

// SameRoleSet reports whether two role slices contain exactly the same
// (country code, party id, role) tuples, ignoring order and business
// details. Business details may change on renewal; the tuples may not.
func SameRoleSet(a, b []CredentialsRole) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, r := range a {
		seen[r.Key()]++
	}
	for _, r := range b {
		seen[r.Key()]--
		if seen[r.Key()] < 0 {
			return false
		}
	}
	return true
}
