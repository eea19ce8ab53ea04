// Package party implements the per-party resource registry: one versioned
// store per resource type per registered party, with durable-log appends
// and notification fan-out on every accepted mutation.
package party

import (
	"context"
	"encoding/json"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/notify"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/store"
)

// Durable-log store names, one per resource type plus the party index
// itself.
const (
	LogStoreParties          = "parties"
	LogStoreLocations        = "locations"
	LogStoreTerminals        = "terminals"
	LogStoreTariffs          = "tariffs"
	LogStoreSessions         = "sessions"
	LogStoreTokens           = "tokens"
	LogStoreCDRs             = "cdrs"
	LogStoreBookings         = "bookings"
	LogStoreBookingLocations = "bookingLocations"
)

// Data aggregates everything one registered party publishes. Created only
// through Registry.Register; resource writes to unknown parties fail at
// the registry.
type Data struct {
	Identity        ocpi.PartyIdentity
	Role            ocpi.Role
	BusinessDetails ocpi.BusinessDetails

	// AllowDowngrades relaxes the monotonic-update rule for every store of
	// this party; individual calls can still opt in per write.
	AllowDowngrades bool

	Locations        *Collection[ocpi.Location]
	Terminals        *Collection[ocpi.Terminal]
	Tariffs          *TariffCollection
	Sessions         *Collection[ocpi.Session]
	Tokens           *Collection[ocpi.Token]
	CDRs             *Collection[ocpi.CDR]
	Bookings         *Collection[ocpi.Booking]
	BookingLocations *Collection[ocpi.BookingLocation]

	registry *Registry
}

func newData(r *Registry, identity ocpi.PartyIdentity, role ocpi.Role, details ocpi.BusinessDetails, allowDowngrades bool) *Data {
	d := &Data{
		Identity:        identity,
		Role:            role,
		BusinessDetails: details,
		AllowDowngrades: allowDowngrades,
		registry:        r,
	}
	d.Locations = newCollection(d, LogStoreLocations, r.buses.Locations, store.Accessors[string, ocpi.Location]{
		Key:       func(l ocpi.Location) string { return l.ID },
		UpdatedAt: func(l ocpi.Location) time.Time { return l.LastUpdated },
		WithUpdatedAt: func(l ocpi.Location, t time.Time) ocpi.Location {
			l.LastUpdated = t
			return l
		},
	})
	d.Terminals = newCollection(d, LogStoreTerminals, r.buses.Terminals, store.Accessors[string, ocpi.Terminal]{
		Key:       func(t ocpi.Terminal) string { return t.ID },
		UpdatedAt: func(t ocpi.Terminal) time.Time { return t.LastUpdated },
		WithUpdatedAt: func(t ocpi.Terminal, u time.Time) ocpi.Terminal {
			t.LastUpdated = u
			return t
		},
	})
	d.Tariffs = newTariffCollection(d, r.buses.Tariffs)
	d.Sessions = newCollection(d, LogStoreSessions, r.buses.Sessions, store.Accessors[string, ocpi.Session]{
		Key:       func(s ocpi.Session) string { return s.ID },
		UpdatedAt: func(s ocpi.Session) time.Time { return s.LastUpdated },
		WithUpdatedAt: func(s ocpi.Session, t time.Time) ocpi.Session {
			s.LastUpdated = t
			return s
		},
	})
	d.Tokens = newCollection(d, LogStoreTokens, r.buses.Tokens, store.Accessors[string, ocpi.Token]{
		Key:       func(t ocpi.Token) string { return t.UID },
		UpdatedAt: func(t ocpi.Token) time.Time { return t.LastUpdated },
		WithUpdatedAt: func(t ocpi.Token, u time.Time) ocpi.Token {
			t.LastUpdated = u
			return t
		},
	})
	d.CDRs = newCollection(d, LogStoreCDRs, r.buses.CDRs, store.Accessors[string, ocpi.CDR]{
		Key:       func(c ocpi.CDR) string { return c.ID },
		UpdatedAt: func(c ocpi.CDR) time.Time { return c.LastUpdated },
		WithUpdatedAt: func(c ocpi.CDR, t time.Time) ocpi.CDR {
			c.LastUpdated = t
			return c
		},
	})
	d.Bookings = newCollection(d, LogStoreBookings, r.buses.Bookings, store.Accessors[string, ocpi.Booking]{
		Key:       func(b ocpi.Booking) string { return b.ID },
		UpdatedAt: func(b ocpi.Booking) time.Time { return b.LastUpdated },
		WithUpdatedAt: func(b ocpi.Booking, t time.Time) ocpi.Booking {
			b.LastUpdated = t
			return b
		},
	})
	d.BookingLocations = newCollection(d, LogStoreBookingLocations, r.buses.BookingLocations, store.Accessors[string, ocpi.BookingLocation]{
		Key:       func(b ocpi.BookingLocation) string { return b.ID },
		UpdatedAt: func(b ocpi.BookingLocation) time.Time { return b.LastUpdated },
		WithUpdatedAt: func(b ocpi.BookingLocation, t time.Time) ocpi.BookingLocation {
			b.LastUpdated = t
			return b
		},
	})
	return d
}

func (d *Data) allow(explicit bool) bool { return explicit || d.AllowDowngrades }

// append records an accepted mutation in the durable log. The in-memory
// state is already visible; append failures are logged, never propagated.
func (d *Data) append(ctx context.Context, storeName, command string, payload any, eventTrackingID string) {
	d.registry.appendLog(ctx, storeName, command, payload, eventTrackingID)
}

func (d *Data) countMutation(storeName string, outcome store.Outcome) {
	if d.registry.onMutation != nil {
		d.registry.onMutation(storeName, outcome)
	}
}

// Collection binds one resource store to its notification bus and the
// owning party's logging hooks. All nine resource types run through this
// one implementation; only locations add extra nested-EVSE operations on
// top (see locations.go).
type Collection[T any] struct {
	d     *Data
	store *store.Store[string, T]
	bus   *notify.Bus[T]
}

func newCollection[T any](d *Data, name string, bus *notify.Bus[T], acc store.Accessors[string, T]) *Collection[T] {
	return &Collection[T]{d: d, store: store.New(name, acc), bus: bus}
}

// Get returns the stored resource with the given id.
func (c *Collection[T]) Get(id string) (T, bool) { return c.store.Get(id) }

// All returns a snapshot of every stored resource.
func (c *Collection[T]) All() []T { return c.store.All() }

// Len returns the number of stored resources.
func (c *Collection[T]) Len() int { return c.store.Len() }

// Add inserts a new resource; an existing id fails.
func (c *Collection[T]) Add(ctx context.Context, item T) store.Result[T] {
	return c.commit(ctx, "add", c.store.Add(item))
}

// AddIfNotExists inserts a new resource; an existing id is a no-op.
func (c *Collection[T]) AddIfNotExists(ctx context.Context, item T) store.Result[T] {
	return c.commit(ctx, "add", c.store.AddIfNotExists(item))
}

// AddOrUpdate inserts or replaces under the downgrade rule.
func (c *Collection[T]) AddOrUpdate(ctx context.Context, item T, allowDowngrades bool) store.Result[T] {
	return c.commit(ctx, "addOrUpdate", c.store.AddOrUpdate(item, c.d.allow(allowDowngrades)))
}

// Update replaces an existing resource under the downgrade rule.
func (c *Collection[T]) Update(ctx context.Context, item T, allowDowngrades bool) store.Result[T] {
	return c.commit(ctx, "update", c.store.Update(item, c.d.allow(allowDowngrades)))
}

// Patch applies a JSON merge patch to the stored resource.
func (c *Collection[T]) Patch(ctx context.Context, id string, patch json.RawMessage, allowDowngrades bool) store.Result[T] {
	return c.commit(ctx, "patch", c.store.Patch(id, patch, c.d.allow(allowDowngrades)))
}

// Remove deletes the resource with the given id.
func (c *Collection[T]) Remove(ctx context.Context, id string) store.Result[T] {
	res := c.store.Remove(id)
	c.d.countMutation(c.store.Name(), res.Outcome)
	if res.Failed() {
		return res
	}
	c.d.append(ctx, c.store.Name(), "remove", res.Resource, res.EventTrackingID)
	c.bus.Removed(ctx, res.Resource)
	return res
}

// RemoveWhere deletes every matching resource, logging and notifying each
// removal. The sweep is a snapshot iteration, not one atomic step.
func (c *Collection[T]) RemoveWhere(ctx context.Context, pred func(T) bool) []T {
	removed := c.store.RemoveWhere(pred)
	for _, item := range removed {
		c.d.append(ctx, c.store.Name(), "remove", item, newEventTrackingID())
		c.bus.Removed(ctx, item)
	}
	return removed
}

func (c *Collection[T]) commit(ctx context.Context, command string, res store.Result[T]) store.Result[T] {
	c.d.countMutation(c.store.Name(), res.Outcome)
	if res.Failed() || res.Outcome == store.OutcomeNoOperation {
		return res
	}
	c.d.append(ctx, c.store.Name(), command, res.Resource, res.EventTrackingID)
	switch {
	case res.Outcome == store.OutcomeCreated:
		c.bus.Added(ctx, res.Resource)
	case res.StatusOnly:
		c.bus.StatusChanged(ctx, res.Resource)
	default:
		c.bus.Changed(ctx, res.Resource)
	}
	return res
}

// replayUpsert applies a replayed log record without re-logging or
// notifying.
func (c *Collection[T]) replayUpsert(item T) store.Result[T] {
	return c.store.AddOrUpdate(item, true)
}

func (c *Collection[T]) replayRemove(id string) store.Result[T] {
	return c.store.Remove(id)
}
