package party

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/commandlog"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/store"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// Info is the registration record for a local party.
type Info struct {
	Identity        ocpi.PartyIdentity   `json:"identity"`
	Role            ocpi.Role            `json:"role"`
	BusinessDetails ocpi.BusinessDetails `json:"business_details"`
	AllowDowngrades bool                 `json:"allow_downgrades,omitempty"`
}

// Registry maps party identities to their resource stores. Parties are
// created only by explicit registration; a resource write naming an
// unknown party fails instead of creating one silently.
type Registry struct {
	logger *slog.Logger
	dlog   commandlog.Log
	buses  *Buses

	// keepRemovedEVSEs decides whether an EVSE entering status REMOVED
	// stays in its location. Evaluated on every EVSE mutation.
	keepRemovedEVSEs func(ocpi.EVSE) bool

	// onMutation is the metrics hook counting mutation outcomes per store.
	onMutation func(storeName string, outcome store.Outcome)

	mu      sync.RWMutex
	parties map[ocpi.PartyIdentity]*Data
}

// Option configures a Registry.
type Option func(*Registry)

// WithKeepRemovedEVSEs overrides the policy for EVSEs entering status
// REMOVED. The default keeps them.
func WithKeepRemovedEVSEs(policy func(ocpi.EVSE) bool) Option {
	return func(r *Registry) { r.keepRemovedEVSEs = policy }
}

// WithMutationHook installs the metrics hook invoked once per mutation
// attempt.
func WithMutationHook(hook func(storeName string, outcome store.Outcome)) Option {
	return func(r *Registry) { r.onMutation = hook }
}

// NewRegistry constructs an empty party registry. dlog may be nil for
// tests that do not exercise durability.
func NewRegistry(logger *slog.Logger, dlog commandlog.Log, buses *Buses, opts ...Option) *Registry {
	r := &Registry{
		logger:           logger,
		dlog:             dlog,
		buses:            buses,
		keepRemovedEVSEs: func(ocpi.EVSE) bool { return true },
		parties:          make(map[ocpi.PartyIdentity]*Data),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates the resource stores for a party. Registering an
// existing identity fails.
func (r *Registry) Register(ctx context.Context, info Info) (*Data, error) {
	if info.Identity.IsZero() {
		return nil, fmt.Errorf("party identity required: %w", sentinel.ErrInvalidState)
	}

	r.mu.Lock()
	if _, exists := r.parties[info.Identity]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("party %s: %w", info.Identity, sentinel.ErrAlreadyExists)
	}
	d := newData(r, info.Identity, info.Role, info.BusinessDetails, info.AllowDowngrades)
	r.parties[info.Identity] = d
	r.mu.Unlock()

	r.appendLog(ctx, LogStoreParties, "registerParty", info, newEventTrackingID())
	return d, nil
}

// Party returns the data aggregate for an identity.
func (r *Registry) Party(id ocpi.PartyIdentity) (*Data, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.parties[id]
	return d, ok
}

// Parties returns a snapshot of every registered party.
func (r *Registry) Parties() []*Data {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Data, 0, len(r.parties))
	for _, d := range r.parties {
		out = append(out, d)
	}
	return out
}

// Count returns the number of registered parties.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parties)
}

// Remove unregisters a party and drops all its published resources,
// logging and notifying every removal.
func (r *Registry) Remove(ctx context.Context, id ocpi.PartyIdentity) error {
	r.mu.Lock()
	d, ok := r.parties[id]
	if ok {
		delete(r.parties, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("party %s: %w", id, sentinel.ErrNotFound)
	}

	d.Locations.RemoveWhere(ctx, func(ocpi.Location) bool { return true })
	d.Terminals.RemoveWhere(ctx, func(ocpi.Terminal) bool { return true })
	d.Tariffs.RemoveWhere(ctx, func(ocpi.Tariff) bool { return true })
	d.Sessions.RemoveWhere(ctx, func(ocpi.Session) bool { return true })
	d.Tokens.RemoveWhere(ctx, func(ocpi.Token) bool { return true })
	d.CDRs.RemoveWhere(ctx, func(ocpi.CDR) bool { return true })
	d.Bookings.RemoveWhere(ctx, func(ocpi.Booking) bool { return true })
	d.BookingLocations.RemoveWhere(ctx, func(ocpi.BookingLocation) bool { return true })

	r.appendLog(ctx, LogStoreParties, "removeParty", Info{Identity: id}, newEventTrackingID())
	return nil
}

// FindToken looks a charging token up across every party, for the
// receiver-side authorize path.
func (r *Registry) FindToken(uid string) (ocpi.Token, *Data, bool) {
	r.mu.RLock()
	parties := make([]*Data, 0, len(r.parties))
	for _, d := range r.parties {
		parties = append(parties, d)
	}
	r.mu.RUnlock()

	for _, d := range parties {
		if tok, ok := d.Tokens.Get(uid); ok {
			return tok, d, true
		}
	}
	return ocpi.Token{}, nil, false
}

// appendLog writes one durable-log record for an already-visible mutation.
// Failures are logged and swallowed: the log is best-effort at runtime and
// authoritative only for startup replay.
func (r *Registry) appendLog(ctx context.Context, storeName, command string, payload any, eventTrackingID string) {
	if r.dlog == nil {
		return
	}
	if err := r.dlog.Append(ctx, storeName, command, payload, eventTrackingID, ""); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "command log append failed",
			"store", storeName,
			"command", command,
			"event_tracking_id", eventTrackingID,
			"error", err,
		)
	}
}

func newEventTrackingID() string { return uuid.NewString() }
