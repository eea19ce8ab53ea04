package party

import (
	"context"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/notify"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/store"
)

// TariffCollection is the temporal variant of Collection: a tariff id maps
// to an ordered set of time-bounded versions instead of a single entry.
type TariffCollection struct {
	d     *Data
	store *store.TimeVersioned[string, ocpi.Tariff]
	bus   *notify.Bus[ocpi.Tariff]
}

func newTariffCollection(d *Data, bus *notify.Bus[ocpi.Tariff]) *TariffCollection {
	return &TariffCollection{
		d: d,
		store: store.NewTimeVersioned(LogStoreTariffs, store.TimeAccessors[string, ocpi.Tariff]{
			Key:       func(t ocpi.Tariff) string { return t.ID },
			UpdatedAt: func(t ocpi.Tariff) time.Time { return t.LastUpdated },
			NotBefore: func(t ocpi.Tariff) *time.Time { return t.NotBefore },
		}),
		bus: bus,
	}
}

// AddOrUpdate stores a tariff version: a fresh NotBefore creates a new
// version, a matching NotBefore replaces that version under the downgrade
// and compare-and-swap rules.
func (c *TariffCollection) AddOrUpdate(ctx context.Context, tariff ocpi.Tariff, allowDowngrades bool) store.Result[ocpi.Tariff] {
	res := c.store.AddOrUpdate(tariff, c.d.allow(allowDowngrades))
	c.d.countMutation(LogStoreTariffs, res.Outcome)
	if res.Failed() {
		return res
	}
	c.d.append(ctx, LogStoreTariffs, "addOrUpdate", res.Resource, res.EventTrackingID)
	if res.Outcome == store.OutcomeCreated {
		c.bus.Added(ctx, res.Resource)
	} else {
		c.bus.Changed(ctx, res.Resource)
	}
	return res
}

// VersionAt returns the tariff version active at t.
func (c *TariffCollection) VersionAt(id string, t time.Time) (ocpi.Tariff, bool) {
	return c.store.VersionAt(id, t)
}

// Current returns the tariff version active now.
func (c *TariffCollection) Current(id string) (ocpi.Tariff, bool) {
	return c.store.VersionAt(id, time.Now())
}

// Latest returns the newest version regardless of validity.
func (c *TariffCollection) Latest(id string) (ocpi.Tariff, bool) { return c.store.Latest(id) }

// Versions returns all versions of id in NotBefore order.
func (c *TariffCollection) Versions(id string) []ocpi.Tariff { return c.store.Versions(id) }

// IDs returns every stored tariff id.
func (c *TariffCollection) IDs() []string { return c.store.IDs() }

// Len returns the number of stored tariff ids.
func (c *TariffCollection) Len() int { return c.store.Len() }

// Remove deletes every version of the tariff, logging and notifying once
// per removed version.
func (c *TariffCollection) Remove(ctx context.Context, id string) ([]ocpi.Tariff, error) {
	removed, err := c.store.Remove(id)
	if err != nil {
		c.d.countMutation(LogStoreTariffs, store.OutcomeFailed)
		return nil, err
	}
	c.d.countMutation(LogStoreTariffs, store.OutcomeUpdated)
	for _, t := range removed {
		c.d.append(ctx, LogStoreTariffs, "remove", t, newEventTrackingID())
		c.bus.Removed(ctx, t)
	}
	return removed, nil
}

// RemoveWhere deletes every tariff whose latest version matches pred.
func (c *TariffCollection) RemoveWhere(ctx context.Context, pred func(ocpi.Tariff) bool) []ocpi.Tariff {
	removed := c.store.RemoveWhere(pred)
	for _, t := range removed {
		c.d.append(ctx, LogStoreTariffs, "remove", t, newEventTrackingID())
		c.bus.Removed(ctx, t)
	}
	return removed
}

func (c *TariffCollection) replayUpsert(t ocpi.Tariff) store.Result[ocpi.Tariff] {
	return c.store.AddOrUpdate(t, true)
}
