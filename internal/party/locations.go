package party

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/store"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// Nested mutations are value-semantic: changing a connector produces a new
// EVSE value, which produces a new Location value, and that location is
// what goes through the store's compare-and-swap. The parent's LastUpdated
// is raised to the child's stamp when newer, so the downgrade check and
// the notification pipeline apply uniformly at location granularity.

type evseChange string

const (
	evseAdded         evseChange = "added"
	evseChanged       evseChange = "changed"
	evseStatusChanged evseChange = "statusChanged"
	evseRemoved       evseChange = "removed"
)

// AddOrUpdateEVSE upserts one EVSE inside a stored location. An EVSE
// entering status REMOVED is physically dropped from the location unless
// the registry's keep-removed-EVSEs policy says otherwise; the policy runs
// on every EVSE mutation, not just removals.
func (d *Data) AddOrUpdateEVSE(ctx context.Context, locationID string, evse ocpi.EVSE, allowDowngrades bool) store.Result[ocpi.Location] {
	loc, ok := d.Locations.Get(locationID)
	if !ok {
		return failedLocation(fmt.Errorf("location %s: %w", locationID, sentinel.ErrNotFound))
	}

	prior, existed := loc.EVSE(evse.UID)
	drop := evse.Status == ocpi.EVSEStatusRemoved && !d.registry.keepRemovedEVSEs(evse)

	change := evseAdded
	switch {
	case drop:
		change = evseRemoved
	case existed && prior.Status != evse.Status && equalIgnoringStatus(prior, evse):
		change = evseStatusChanged
	case existed:
		change = evseChanged
	}
	if drop && !existed {
		// Removing an EVSE the location never had is a no-op at location
		// level too.
		return store.Result[ocpi.Location]{Outcome: store.OutcomeNoOperation, Resource: loc, EventTrackingID: newEventTrackingID()}
	}

	next := replaceEVSE(loc, evse, drop)
	if evse.LastUpdated.After(next.LastUpdated) {
		next.LastUpdated = evse.LastUpdated
	}

	res := d.Locations.AddOrUpdate(ctx, next, allowDowngrades)
	if res.Failed() {
		return res
	}
	d.notifyEVSE(ctx, change, evse)
	return res
}

// RemoveEVSE drops an EVSE from its location regardless of the
// keep-removed policy and re-stamps the location to now.
func (d *Data) RemoveEVSE(ctx context.Context, locationID, evseUID string) store.Result[ocpi.Location] {
	loc, ok := d.Locations.Get(locationID)
	if !ok {
		return failedLocation(fmt.Errorf("location %s: %w", locationID, sentinel.ErrNotFound))
	}
	evse, ok := loc.EVSE(evseUID)
	if !ok {
		return failedLocation(fmt.Errorf("evse %s: %w", evseUID, sentinel.ErrNotFound))
	}

	next := replaceEVSE(loc, evse, true)
	next.LastUpdated = time.Now().UTC()

	res := d.Locations.AddOrUpdate(ctx, next, false)
	if res.Failed() {
		return res
	}
	d.notifyEVSE(ctx, evseRemoved, evse)
	return res
}

// AddOrUpdateConnector upserts one connector inside an EVSE, propagating
// the re-stamp one level further, from connector to EVSE to location.
func (d *Data) AddOrUpdateConnector(ctx context.Context, locationID, evseUID string, connector ocpi.Connector, allowDowngrades bool) store.Result[ocpi.Location] {
	loc, ok := d.Locations.Get(locationID)
	if !ok {
		return failedLocation(fmt.Errorf("location %s: %w", locationID, sentinel.ErrNotFound))
	}
	evse, ok := loc.EVSE(evseUID)
	if !ok {
		return failedLocation(fmt.Errorf("evse %s: %w", evseUID, sentinel.ErrNotFound))
	}

	next := replaceConnector(evse, connector, false)
	if connector.LastUpdated.After(next.LastUpdated) {
		next.LastUpdated = connector.LastUpdated
	}
	return d.AddOrUpdateEVSE(ctx, locationID, next, allowDowngrades)
}

// RemoveConnector drops a connector from its EVSE and re-stamps EVSE and
// location to now.
func (d *Data) RemoveConnector(ctx context.Context, locationID, evseUID, connectorID string) store.Result[ocpi.Location] {
	loc, ok := d.Locations.Get(locationID)
	if !ok {
		return failedLocation(fmt.Errorf("location %s: %w", locationID, sentinel.ErrNotFound))
	}
	evse, ok := loc.EVSE(evseUID)
	if !ok {
		return failedLocation(fmt.Errorf("evse %s: %w", evseUID, sentinel.ErrNotFound))
	}
	connector, ok := evse.Connector(connectorID)
	if !ok {
		return failedLocation(fmt.Errorf("connector %s: %w", connectorID, sentinel.ErrNotFound))
	}

	next := replaceConnector(evse, connector, true)
	next.LastUpdated = time.Now().UTC()
	return d.AddOrUpdateEVSE(ctx, locationID, next, false)
}

func (d *Data) notifyEVSE(ctx context.Context, change evseChange, evse ocpi.EVSE) {
	bus := d.registry.buses.EVSEs
	switch change {
	case evseAdded:
		bus.Added(ctx, evse)
	case evseStatusChanged:
		bus.StatusChanged(ctx, evse)
	case evseRemoved:
		bus.Removed(ctx, evse)
	default:
		bus.Changed(ctx, evse)
	}
}

// replaceEVSE returns a copy of loc with evse replaced, appended, or
// dropped. The original location is never mutated.
func replaceEVSE(loc ocpi.Location, evse ocpi.EVSE, drop bool) ocpi.Location {
	next := loc
	next.EVSEs = make([]ocpi.EVSE, 0, len(loc.EVSEs)+1)
	replaced := false
	for _, e := range loc.EVSEs {
		if e.UID == evse.UID {
			replaced = true
			if drop {
				continue
			}
			next.EVSEs = append(next.EVSEs, evse)
			continue
		}
		next.EVSEs = append(next.EVSEs, e)
	}
	if !replaced && !drop {
		next.EVSEs = append(next.EVSEs, evse)
	}
	return next
}

// replaceConnector returns a copy of evse with connector replaced,
// appended, or dropped.
func replaceConnector(evse ocpi.EVSE, connector ocpi.Connector, drop bool) ocpi.EVSE {
	next := evse
	next.Connectors = make([]ocpi.Connector, 0, len(evse.Connectors)+1)
	replaced := false
	for _, c := range evse.Connectors {
		if c.ID == connector.ID {
			replaced = true
			if drop {
				continue
			}
			next.Connectors = append(next.Connectors, connector)
			continue
		}
		next.Connectors = append(next.Connectors, c)
	}
	if !replaced && !drop {
		next.Connectors = append(next.Connectors, connector)
	}
	return next
}

// equalIgnoringStatus compares two EVSEs with status and timestamp zeroed,
// to tell a pure status change from a structural one.
func equalIgnoringStatus(a, b ocpi.EVSE) bool {
	a.Status, b.Status = "", ""
	a.LastUpdated, b.LastUpdated = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}

func failedLocation(err error) store.Result[ocpi.Location] {
	return store.Result[ocpi.Location]{Outcome: store.OutcomeFailed, EventTrackingID: newEventTrackingID(), Err: err}
}
