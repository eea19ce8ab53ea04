package remoteparty

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/commandlog"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// LogStore is the durable-log store name the registry appends under.
const LogStore = "remoteParties"

// Command names recorded in the durable log.
const (
	cmdAdd               = "addRemoteParty"
	cmdRotateAccess      = "rotateAccess"
	cmdSetPartyStatus    = "setPartyStatus"
	cmdRemoveAccessToken = "removeAccessToken"
)

// Registry owns every RemoteParty record. It is safe for concurrent use;
// all returned parties are deep copies, so callers can never mutate
// registry state through a snapshot.
type Registry struct {
	logger *slog.Logger
	dlog   commandlog.Log

	mu      sync.RWMutex
	parties map[string]RemoteParty
}

// NewRegistry constructs an empty registry. dlog may be nil for
// replay-free tests.
func NewRegistry(logger *slog.Logger, dlog commandlog.Log) *Registry {
	return &Registry{logger: logger, dlog: dlog, parties: make(map[string]RemoteParty)}
}

// Add pre-provisions a counterparty: the administrative path that shares
// Token A out of band before any handshake runs. The id must be free and
// every local token globally unused.
func (r *Registry) Add(ctx context.Context, party RemoteParty) (RemoteParty, error) {
	if party.ID == "" {
		if len(party.Roles) == 0 {
			return RemoteParty{}, fmt.Errorf("remote party needs an id or at least one role: %w", sentinel.ErrInvalidState)
		}
		party.ID = party.Roles[0].Identity().String()
	}
	if party.Status == "" {
		party.Status = PartyEnabled
	}
	party.LastUpdated = time.Now().UTC()

	r.mu.Lock()
	if _, exists := r.parties[party.ID]; exists {
		r.mu.Unlock()
		return RemoteParty{}, fmt.Errorf("remote party %s: %w", party.ID, sentinel.ErrAlreadyExists)
	}
	for _, l := range party.LocalAccessInfos {
		if _, _, ok := r.lookupLocked(l.AccessToken); ok {
			r.mu.Unlock()
			return RemoteParty{}, fmt.Errorf("access token already in use: %w", sentinel.ErrAlreadyExists)
		}
	}
	r.parties[party.ID] = party.clone()
	r.mu.Unlock()

	r.append(ctx, cmdAdd, party, uuid.NewString())
	return party, nil
}

// Get returns a snapshot of the party with the given id.
func (r *Registry) Get(id string) (RemoteParty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parties[id]
	if !ok {
		return RemoteParty{}, false
	}
	return p.clone(), true
}

// All returns snapshots of every registered party.
func (r *Registry) All() []RemoteParty {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RemoteParty, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, p.clone())
	}
	return out
}

// ByLocalToken resolves a presented access token to the party it was
// issued to, honoring token validity windows.
func (r *Registry) ByLocalToken(token string) (RemoteParty, LocalAccessInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, l, ok := r.lookupLocked(token)
	if !ok {
		return RemoteParty{}, LocalAccessInfo{}, false
	}
	return p.clone(), l, true
}

// RotateAccess atomically retires oldToken and installs the freshly minted
// local access plus the counterparty's remote access. It is the commit
// point of the registration handshake: if oldToken is no longer present
// (spent by a concurrent handshake) nothing changes and ErrNotFound is
// returned, which the handshake reports as "unknown token".
func (r *Registry) RotateAccess(ctx context.Context, id, oldToken string, newLocal LocalAccessInfo, newRemote RemoteAccessInfo, eventTrackingID string) (RemoteParty, error) {
	r.mu.Lock()
	p, ok := r.parties[id]
	if !ok {
		r.mu.Unlock()
		return RemoteParty{}, fmt.Errorf("remote party %s: %w", id, sentinel.ErrNotFound)
	}

	locals := make([]LocalAccessInfo, 0, len(p.LocalAccessInfos))
	found := false
	for _, l := range p.LocalAccessInfos {
		if l.AccessToken == oldToken {
			found = true
			continue
		}
		locals = append(locals, l)
	}
	if !found {
		r.mu.Unlock()
		return RemoteParty{}, fmt.Errorf("access token already spent: %w", sentinel.ErrNotFound)
	}
	p.LocalAccessInfos = append(locals, newLocal)

	// One remote access info per counterparty versions endpoint: a renewal
	// replaces the entry negotiated for the same URL.
	remotes := make([]RemoteAccessInfo, 0, len(p.RemoteAccessInfos)+1)
	for _, ra := range p.RemoteAccessInfos {
		if ra.VersionsURL == newRemote.VersionsURL {
			continue
		}
		remotes = append(remotes, ra)
	}
	p.RemoteAccessInfos = append(remotes, newRemote)

	p.Status = PartyEnabled
	p.LastUpdated = time.Now().UTC()
	r.parties[id] = p.clone()
	r.mu.Unlock()

	r.append(ctx, cmdRotateAccess, p, eventTrackingID)
	return p, nil
}

// SetPartyStatus enables or disables a counterparty.
func (r *Registry) SetPartyStatus(ctx context.Context, id string, status PartyStatus) (RemoteParty, error) {
	r.mu.Lock()
	p, ok := r.parties[id]
	if !ok {
		r.mu.Unlock()
		return RemoteParty{}, fmt.Errorf("remote party %s: %w", id, sentinel.ErrNotFound)
	}
	p.Status = status
	p.LastUpdated = time.Now().UTC()
	r.parties[id] = p.clone()
	r.mu.Unlock()

	r.append(ctx, cmdSetPartyStatus, p, uuid.NewString())
	return p, nil
}

// RemoveAccessToken deletes the local access info carrying token. When it
// was the party's last one, the whole party goes with it. The removed
// party snapshot and whether it was deleted entirely are returned.
func (r *Registry) RemoveAccessToken(ctx context.Context, token, eventTrackingID string) (RemoteParty, bool, error) {
	r.mu.Lock()
	p, _, ok := r.lookupAnyLocked(token)
	if !ok {
		r.mu.Unlock()
		return RemoteParty{}, false, fmt.Errorf("access token: %w", sentinel.ErrNotFound)
	}

	locals := make([]LocalAccessInfo, 0, len(p.LocalAccessInfos))
	for _, l := range p.LocalAccessInfos {
		if l.AccessToken != token {
			locals = append(locals, l)
		}
	}
	p.LocalAccessInfos = locals
	deleted := len(locals) == 0
	if deleted {
		delete(r.parties, p.ID)
	} else {
		p.LastUpdated = time.Now().UTC()
		r.parties[p.ID] = p.clone()
	}
	r.mu.Unlock()

	r.append(ctx, cmdRemoveAccessToken, removeTokenRecord{PartyID: p.ID, Token: token, PartyDeleted: deleted}, eventTrackingID)
	return p, deleted, nil
}

// Count returns the number of registered parties.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parties)
}

// RolesOf returns the identities a counterparty acts under, for the
// version-details endpoint set selection.
func (r *Registry) RolesOf(id string) []ocpi.CredentialsRole {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parties[id]
	if !ok {
		return nil
	}
	return append([]ocpi.CredentialsRole(nil), p.Roles...)
}

type removeTokenRecord struct {
	PartyID      string `json:"party_id"`
	Token        string `json:"token"`
	PartyDeleted bool   `json:"party_deleted"`
}

// Apply replays one durable-log record. Only startup calls it; failures
// are hard errors there.
func (r *Registry) Apply(_ context.Context, cmd commandlog.Command) error {
	switch cmd.Command {
	case cmdAdd, cmdRotateAccess, cmdSetPartyStatus:
		var p RemoteParty
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return fmt.Errorf("%s payload: %w", cmd.Command, err)
		}
		r.mu.Lock()
		r.parties[p.ID] = p
		r.mu.Unlock()
		return nil
	case cmdRemoveAccessToken:
		var rec removeTokenRecord
		if err := json.Unmarshal(cmd.Payload, &rec); err != nil {
			return fmt.Errorf("%s payload: %w", cmd.Command, err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		p, ok := r.parties[rec.PartyID]
		if !ok {
			return nil
		}
		if rec.PartyDeleted {
			delete(r.parties, rec.PartyID)
			return nil
		}
		locals := make([]LocalAccessInfo, 0, len(p.LocalAccessInfos))
		for _, l := range p.LocalAccessInfos {
			if l.AccessToken != rec.Token {
				locals = append(locals, l)
			}
		}
		p.LocalAccessInfos = locals
		r.parties[rec.PartyID] = p
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}

// append writes the durable-log record for an already-committed mutation.
// The mutation is visible to readers regardless of the append outcome, so
// a failing append is logged, not propagated.
func (r *Registry) append(ctx context.Context, command string, payload any, eventTrackingID string) {
	if r.dlog == nil {
		return
	}
	if err := r.dlog.Append(ctx, LogStore, command, payload, eventTrackingID, ""); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "command log append failed",
			"store", LogStore,
			"command", command,
			"event_tracking_id", eventTrackingID,
			"error", err,
		)
	}
}

// lookupLocked resolves token among currently valid local access infos.
// Callers hold r.mu.
func (r *Registry) lookupLocked(token string) (RemoteParty, LocalAccessInfo, bool) {
	now := time.Now()
	for _, p := range r.parties {
		for _, l := range p.LocalAccessInfos {
			if l.AccessToken == token && l.valid(now) {
				return p, l, true
			}
		}
	}
	return RemoteParty{}, LocalAccessInfo{}, false
}

// lookupAnyLocked resolves token ignoring validity windows; removal must
// find expired tokens too.
func (r *Registry) lookupAnyLocked(token string) (RemoteParty, LocalAccessInfo, bool) {
	for _, p := range r.parties {
		for _, l := range p.LocalAccessInfos {
			if l.AccessToken == token {
				return p, l, true
			}
		}
	}
	return RemoteParty{}, LocalAccessInfo{}, false
}
