package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/notify"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/store"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

func testEVSE(uid string, status ocpi.EVSEStatus, updated time.Time, connectors ...ocpi.Connector) ocpi.EVSE {
	return ocpi.EVSE{
		UID:         uid,
		EVSEID:      "DE*GEF*E" + uid,
		Status:      status,
		Connectors:  connectors,
		LastUpdated: updated,
	}
}

func TestAddOrUpdateEVSERaisesLocationStamp(t *testing.T) {
	_, d := newTestRegistry(t, nil)
	ctx := context.Background()

	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0)), false)

	res := d.AddOrUpdateEVSE(ctx, "l1", testEVSE("1", ocpi.EVSEStatusAvailable, stamp(time.Minute)), false)
	require.Equal(t, store.OutcomeUpdated, res.Outcome)

	loc, _ := d.Locations.Get("l1")
	require.Len(t, loc.EVSEs, 1)
	assert.Equal(t, stamp(time.Minute), loc.LastUpdated)

	// The second upsert replaces, not appends.
	res = d.AddOrUpdateEVSE(ctx, "l1", testEVSE("1", ocpi.EVSEStatusCharging, stamp(2*time.Minute)), false)
	require.Equal(t, store.OutcomeUpdated, res.Outcome)
	loc, _ = d.Locations.Get("l1")
	assert.Len(t, loc.EVSEs, 1)
	assert.Equal(t, ocpi.EVSEStatusCharging, loc.EVSEs[0].Status)
}

func TestAddOrUpdateEVSEUnknownLocation(t *testing.T) {
	_, d := newTestRegistry(t, nil)
	res := d.AddOrUpdateEVSE(context.Background(), "nope", testEVSE("1", ocpi.EVSEStatusAvailable, stamp(0)), false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)
}

func TestEVSEStatusChangeClassification(t *testing.T) {
	logger := testLogger()
	buses := NewBuses(logger, nil)
	r := NewRegistry(logger, nil, buses)
	d, err := r.Register(context.Background(), Info{Identity: identity(t, "DE", "GEF"), Role: ocpi.RoleCPO})
	require.NoError(t, err)
	ctx := context.Background()

	var events []notify.Event
	buses.EVSEs.OnAdded(func(context.Context, ocpi.EVSE) { events = append(events, notify.EventAdded) })
	buses.EVSEs.OnChanged(func(context.Context, ocpi.EVSE) { events = append(events, notify.EventChanged) })
	buses.EVSEs.OnStatusChanged(func(context.Context, ocpi.EVSE) { events = append(events, notify.EventStatusChanged) })
	buses.EVSEs.OnRemoved(func(context.Context, ocpi.EVSE) { events = append(events, notify.EventRemoved) })

	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0)), false)

	evse := testEVSE("1", ocpi.EVSEStatusAvailable, stamp(time.Minute))
	require.False(t, d.AddOrUpdateEVSE(ctx, "l1", evse, false).Failed())

	// Only the status differs: a status change, not a structural one.
	statusOnly := evse
	statusOnly.Status = ocpi.EVSEStatusCharging
	statusOnly.LastUpdated = stamp(2 * time.Minute)
	require.False(t, d.AddOrUpdateEVSE(ctx, "l1", statusOnly, false).Failed())

	// Status and structure both differ: a plain change.
	structural := statusOnly
	structural.Status = ocpi.EVSEStatusAvailable
	structural.PhysicalRef = "P1"
	structural.LastUpdated = stamp(3 * time.Minute)
	require.False(t, d.AddOrUpdateEVSE(ctx, "l1", structural, false).Failed())

	assert.Equal(t, []notify.Event{notify.EventAdded, notify.EventStatusChanged, notify.EventChanged}, events)
}

func TestRemovedStatusDropsEVSEWhenPolicySaysSo(t *testing.T) {
	logger := testLogger()
	r := NewRegistry(logger, nil, NewBuses(logger, nil),
		WithKeepRemovedEVSEs(func(ocpi.EVSE) bool { return false }))
	d, err := r.Register(context.Background(), Info{Identity: identity(t, "DE", "GEF"), Role: ocpi.RoleCPO})
	require.NoError(t, err)
	ctx := context.Background()

	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0), testEVSE("1", ocpi.EVSEStatusAvailable, stamp(0))), false)

	res := d.AddOrUpdateEVSE(ctx, "l1", testEVSE("1", ocpi.EVSEStatusRemoved, stamp(time.Minute)), false)
	require.Equal(t, store.OutcomeUpdated, res.Outcome)

	loc, _ := d.Locations.Get("l1")
	assert.Empty(t, loc.EVSEs)

	// Dropping an EVSE the location never had changes nothing.
	res = d.AddOrUpdateEVSE(ctx, "l1", testEVSE("ghost", ocpi.EVSEStatusRemoved, stamp(2*time.Minute)), false)
	assert.Equal(t, store.OutcomeNoOperation, res.Outcome)
}

func TestRemovedStatusKeptByDefault(t *testing.T) {
	_, d := newTestRegistry(t, nil)
	ctx := context.Background()

	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0), testEVSE("1", ocpi.EVSEStatusAvailable, stamp(0))), false)
	res := d.AddOrUpdateEVSE(ctx, "l1", testEVSE("1", ocpi.EVSEStatusRemoved, stamp(time.Minute)), false)
	require.Equal(t, store.OutcomeUpdated, res.Outcome)

	loc, _ := d.Locations.Get("l1")
	require.Len(t, loc.EVSEs, 1)
	assert.Equal(t, ocpi.EVSEStatusRemoved, loc.EVSEs[0].Status)
}

func TestRemoveEVSE(t *testing.T) {
	_, d := newTestRegistry(t, nil)
	ctx := context.Background()

	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0), testEVSE("1", ocpi.EVSEStatusAvailable, stamp(0))), false)

	res := d.RemoveEVSE(ctx, "l1", "1")
	require.Equal(t, store.OutcomeUpdated, res.Outcome)
	loc, _ := d.Locations.Get("l1")
	assert.Empty(t, loc.EVSEs)
	assert.True(t, loc.LastUpdated.After(stamp(0)))

	res = d.RemoveEVSE(ctx, "l1", "1")
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)
}

func TestConnectorPropagatesThroughEVSEAndLocation(t *testing.T) {
	_, d := newTestRegistry(t, nil)
	ctx := context.Background()

	conn := ocpi.Connector{ID: "1", Standard: "IEC_62196_T2", LastUpdated: stamp(0)}
	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0), testEVSE("1", ocpi.EVSEStatusAvailable, stamp(0), conn)), false)

	update := ocpi.Connector{ID: "1", Standard: "IEC_62196_T2", PowerType: "AC_3_PHASE", LastUpdated: stamp(time.Minute)}
	res := d.AddOrUpdateConnector(ctx, "l1", "1", update, false)
	require.Equal(t, store.OutcomeUpdated, res.Outcome)

	loc, _ := d.Locations.Get("l1")
	evse, ok := loc.EVSE("1")
	require.True(t, ok)
	got, ok := evse.Connector("1")
	require.True(t, ok)
	assert.Equal(t, "AC_3_PHASE", got.PowerType)

	// The connector's stamp propagated upwards.
	assert.Equal(t, stamp(time.Minute), evse.LastUpdated)
	assert.Equal(t, stamp(time.Minute), loc.LastUpdated)

	res = d.AddOrUpdateConnector(ctx, "l1", "missing-evse", update, false)
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)
}

func TestRemoveConnector(t *testing.T) {
	_, d := newTestRegistry(t, nil)
	ctx := context.Background()

	conn := ocpi.Connector{ID: "1", LastUpdated: stamp(0)}
	d.Locations.AddOrUpdate(ctx, testLocation("l1", stamp(0), testEVSE("1", ocpi.EVSEStatusAvailable, stamp(0), conn)), false)

	res := d.RemoveConnector(ctx, "l1", "1", "1")
	require.Equal(t, store.OutcomeUpdated, res.Outcome)

	loc, _ := d.Locations.Get("l1")
	evse, _ := loc.EVSE("1")
	assert.Empty(t, evse.Connectors)

	res = d.RemoveConnector(ctx, "l1", "1", "1")
	require.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, sentinel.ErrNotFound)
}
