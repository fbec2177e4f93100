package reservation

import "github.com/libranexus/platform/pkg/eventmodel"

// RegisterEvents wires every Reservation event type into registry.
func RegisterEvents(registry *eventmodel.Registry) {
	registry.Register("ReservationCreated", func() eventmodel.EventPayload { return &ReservationCreated{} })
	registry.Register("ReservationStatusUpdated", func() eventmodel.EventPayload { return &ReservationStatusUpdated{} })
	registry.Register("ReservationReturned", func() eventmodel.EventPayload { return &ReservationReturned{} })
	registry.Register("ReservationFeeCharged", func() eventmodel.EventPayload { return &ReservationFeeCharged{} })
	registry.Register("ReservationFeePaid", func() eventmodel.EventPayload { return &ReservationFeePaid{} })
	registry.Register("ReservationDueDateExtended", func() eventmodel.EventPayload { return &ReservationDueDateExtended{} })
	registry.Register("ReservationDeleted", func() eventmodel.EventPayload { return &ReservationDeleted{} })
}
