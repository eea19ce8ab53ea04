package party

import (
	"log/slog"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/notify"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
)

// Buses groups the per-resource-type notification buses. All parties in
// one registry share them: a subscriber interested in location changes
// hears about every party's locations.
type Buses struct {
	Locations        *notify.Bus[ocpi.Location]
	EVSEs            *notify.Bus[ocpi.EVSE]
	Terminals        *notify.Bus[ocpi.Terminal]
	Tariffs          *notify.Bus[ocpi.Tariff]
	Sessions         *notify.Bus[ocpi.Session]
	Tokens           *notify.Bus[ocpi.Token]
	CDRs             *notify.Bus[ocpi.CDR]
	Bookings         *notify.Bus[ocpi.Booking]
	BookingLocations *notify.Bus[ocpi.BookingLocation]
}

// NewBuses constructs the full bus set. hook may be nil; it is invoked on
// every recovered subscriber panic.
func NewBuses(logger *slog.Logger, hook func(event notify.Event)) *Buses {
	return &Buses{
		Locations:        newBus[ocpi.Location](logger, hook),
		EVSEs:            newBus[ocpi.EVSE](logger, hook),
		Terminals:        newBus[ocpi.Terminal](logger, hook),
		Tariffs:          newBus[ocpi.Tariff](logger, hook),
		Sessions:         newBus[ocpi.Session](logger, hook),
		Tokens:           newBus[ocpi.Token](logger, hook),
		CDRs:             newBus[ocpi.CDR](logger, hook),
		Bookings:         newBus[ocpi.Booking](logger, hook),
		BookingLocations: newBus[ocpi.BookingLocation](logger, hook),
	}
}

func newBus[T any](logger *slog.Logger, hook func(event notify.Event)) *notify.Bus[T] {
	if hook == nil {
		return notify.NewBus[T](logger)
	}
	return notify.NewBus(logger, notify.WithFailureHook[T](hook))
}
