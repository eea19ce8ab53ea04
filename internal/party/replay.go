package party

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/commandlog"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// LogStores lists every durable-log store the registry writes, in the
// order they must be replayed: the party index first, resources after.
var LogStores = []string{
	LogStoreParties,
	LogStoreLocations,
	LogStoreTerminals,
	LogStoreTariffs,
	LogStoreSessions,
	LogStoreTokens,
	LogStoreCDRs,
	LogStoreBookings,
	LogStoreBookingLocations,
}

// ReplayAll rebuilds the registry from the durable log. Startup calls it
// once, before any live traffic.
func (r *Registry) ReplayAll(ctx context.Context, dlog commandlog.Log) error {
	for _, storeName := range LogStores {
		if err := commandlog.Replay(ctx, dlog, storeName, r.Apply); err != nil {
			return err
		}
	}
	return nil
}

// Apply replays one durable-log record without re-logging or notifying.
// Resource records whose owning party was later removed are skipped: the
// party index replay has already run, so a missing owner is history, not
// corruption.
func (r *Registry) Apply(ctx context.Context, cmd commandlog.Command) error {
	switch cmd.Store {
	case LogStoreParties:
		return r.applyPartyCommand(ctx, cmd)
	case LogStoreLocations:
		return applyResource(r, cmd, func(l ocpi.Location) ocpi.PartyIdentity { return l.Owner() },
			func(d *Data) *Collection[ocpi.Location] { return d.Locations },
			func(l ocpi.Location) string { return l.ID })
	case LogStoreTerminals:
		return applyResource(r, cmd, func(t ocpi.Terminal) ocpi.PartyIdentity { return t.Owner() },
			func(d *Data) *Collection[ocpi.Terminal] { return d.Terminals },
			func(t ocpi.Terminal) string { return t.ID })
	case LogStoreTariffs:
		return r.applyTariffCommand(cmd)
	case LogStoreSessions:
		return applyResource(r, cmd, func(s ocpi.Session) ocpi.PartyIdentity { return s.Owner() },
			func(d *Data) *Collection[ocpi.Session] { return d.Sessions },
			func(s ocpi.Session) string { return s.ID })
	case LogStoreTokens:
		return applyResource(r, cmd, func(t ocpi.Token) ocpi.PartyIdentity { return t.Owner() },
			func(d *Data) *Collection[ocpi.Token] { return d.Tokens },
			func(t ocpi.Token) string { return t.UID })
	case LogStoreCDRs:
		return applyResource(r, cmd, func(c ocpi.CDR) ocpi.PartyIdentity { return c.Owner() },
			func(d *Data) *Collection[ocpi.CDR] { return d.CDRs },
			func(c ocpi.CDR) string { return c.ID })
	case LogStoreBookings:
		return applyResource(r, cmd, func(b ocpi.Booking) ocpi.PartyIdentity { return b.Owner() },
			func(d *Data) *Collection[ocpi.Booking] { return d.Bookings },
			func(b ocpi.Booking) string { return b.ID })
	case LogStoreBookingLocations:
		return applyResource(r, cmd, func(b ocpi.BookingLocation) ocpi.PartyIdentity { return b.Owner() },
			func(d *Data) *Collection[ocpi.BookingLocation] { return d.BookingLocations },
			func(b ocpi.BookingLocation) string { return b.ID })
	default:
		return fmt.Errorf("unknown log store %q", cmd.Store)
	}
}

func (r *Registry) applyPartyCommand(_ context.Context, cmd commandlog.Command) error {
	var info Info
	if err := json.Unmarshal(cmd.Payload, &info); err != nil {
		return fmt.Errorf("%s payload: %w", cmd.Command, err)
	}
	switch cmd.Command {
	case "registerParty":
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, exists := r.parties[info.Identity]; exists {
			return fmt.Errorf("party %s registered twice in log", info.Identity)
		}
		r.parties[info.Identity] = newData(r, info.Identity, info.Role, info.BusinessDetails, info.AllowDowngrades)
		return nil
	case "removeParty":
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.parties, info.Identity)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}

func (r *Registry) applyTariffCommand(cmd commandlog.Command) error {
	var t ocpi.Tariff
	if err := json.Unmarshal(cmd.Payload, &t); err != nil {
		return fmt.Errorf("%s payload: %w", cmd.Command, err)
	}
	d, ok := r.Party(t.Owner())
	if !ok {
		return nil
	}
	switch cmd.Command {
	case "remove":
		if _, err := d.Tariffs.store.Remove(t.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return nil
	default:
		if res := d.Tariffs.replayUpsert(t); res.Failed() {
			return res.Err
		}
		return nil
	}
}

func applyResource[T any](
	r *Registry,
	cmd commandlog.Command,
	owner func(T) ocpi.PartyIdentity,
	coll func(*Data) *Collection[T],
	key func(T) string,
) error {
	var item T
	if err := json.Unmarshal(cmd.Payload, &item); err != nil {
		return fmt.Errorf("%s payload: %w", cmd.Command, err)
	}
	d, ok := r.Party(owner(item))
	if !ok {
		return nil
	}
	c := coll(d)
	switch cmd.Command {
	case "remove":
		res := c.replayRemove(key(item))
		if res.Failed() && !errors.Is(res.Err, sentinel.ErrNotFound) {
			return res.Err
		}
		return nil
	default:
		if res := c.replayUpsert(item); res.Failed() && !errors.Is(res.Err, sentinel.ErrDowngrade) {
			return res.Err
		}
		return nil
	}
}
