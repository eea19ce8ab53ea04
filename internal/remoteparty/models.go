// Package remoteparty tracks every counterparty this server trusts or is
// negotiating trust with, including all access tokens ever exchanged with
// it. One physical counterparty is one RemoteParty, possibly with several
// roles and several issued tokens.
package remoteparty

import (
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
)

// AccessStatus is the state of a token we issued to a counterparty.
type AccessStatus string

const (
	AccessAllowed AccessStatus = "ALLOWED"
	AccessBlocked AccessStatus = "BLOCKED"
)

// PartyStatus enables or disables a counterparty as a whole.
type PartyStatus string

const (
	PartyEnabled  PartyStatus = "ENABLED"
	PartyDisabled PartyStatus = "DISABLED"
)

// ConnectionStatus is our view of the counterparty's reachability.
type ConnectionStatus string

const (
	ConnectionOnline  ConnectionStatus = "ONLINE"
	ConnectionOffline ConnectionStatus = "OFFLINE"
	ConnectionUnknown ConnectionStatus = "UNKNOWN"
)

// RegistrationState is the handshake state derived from one presented
// local token.
type RegistrationState string

const (
	// StateUnknown: no local access info matches the token.
	StateUnknown RegistrationState = "UNKNOWN"
	// StateProvisioned: Token A was pre-shared but no handshake ran yet.
	StateProvisioned RegistrationState = "PROVISIONED"
	// StateRegistered: the handshake completed for this token.
	StateRegistered RegistrationState = "REGISTERED"
	// StateBlocked: the token is blocked; everything is rejected.
	StateBlocked RegistrationState = "BLOCKED"
)

// LocalAccessInfo is one token we issued to the counterparty for calling
// us. VersionsURL is set when the registration handshake completes; while
// empty the token is merely provisioned.
type LocalAccessInfo struct {
	AccessToken string       `json:"access_token"`
	Status      AccessStatus `json:"status"`
	NotBefore   *time.Time   `json:"not_before,omitempty"`
	NotAfter    *time.Time   `json:"not_after,omitempty"`
	VersionsURL string       `json:"versions_url,omitempty"`
}

// valid reports whether the token may be used at time t.
func (l LocalAccessInfo) valid(t time.Time) bool {
	if l.NotBefore != nil && t.Before(*l.NotBefore) {
		return false
	}
	if l.NotAfter != nil && !t.Before(*l.NotAfter) {
		return false
	}
	return true
}

// State derives the registration state this token is in.
func (l LocalAccessInfo) State() RegistrationState {
	if l.Status == AccessBlocked {
		return StateBlocked
	}
	if l.VersionsURL == "" {
		return StateProvisioned
	}
	return StateRegistered
}

// RemoteAccessInfo is one token the counterparty issued to us for calling
// it, together with the connection parameters negotiated for it.
type RemoteAccessInfo struct {
	AccessToken       string               `json:"access_token"`
	VersionsURL       string               `json:"versions_url"`
	SupportedVersions []ocpi.VersionNumber `json:"supported_versions,omitempty"`
	SelectedVersion   ocpi.VersionNumber   `json:"selected_version,omitempty"`
	Status            ConnectionStatus     `json:"status"`
}

// RemoteParty is this server's record of one counterparty.
type RemoteParty struct {
	ID                string                 `json:"id"`
	Roles             []ocpi.CredentialsRole `json:"roles"`
	LocalAccessInfos  []LocalAccessInfo      `json:"local_access_infos,omitempty"`
	RemoteAccessInfos []RemoteAccessInfo     `json:"remote_access_infos,omitempty"`
	Status            PartyStatus            `json:"status"`
	LastUpdated       time.Time              `json:"last_updated"`
}

// LocalAccess returns the local access info carrying token, if any.
func (p RemoteParty) LocalAccess(token string) (LocalAccessInfo, bool) {
	for _, l := range p.LocalAccessInfos {
		if l.AccessToken == token {
			return l, true
		}
	}
	return LocalAccessInfo{}, false
}

// clone deep-copies the party so registry snapshots never alias registry
// state.
func (p RemoteParty) clone() RemoteParty {
	out := p
	out.Roles = append([]ocpi.CredentialsRole(nil), p.Roles...)
	out.LocalAccessInfos = append([]LocalAccessInfo(nil), p.LocalAccessInfos...)
	out.RemoteAccessInfos = append([]RemoteAccessInfo(nil), p.RemoteAccessInfos...)
	return out
}
