package catalog

import "github.com/libranexus/platform/pkg/eventmodel"

// RegisterEvents wires every Book event type into registry (spec
// section 3 "Dynamic payloads → tagged variants"). internal/admin
// decodes through the registry; the event bus does not consult it, and
// an event with no subscriber is dropped rather than dead-lettered.
func RegisterEvents(registry *eventmodel.Registry) {
	registry.Register("BookCreated", func() eventmodel.EventPayload { return &BookCreated{} })
	registry.Register("BookUpdated", func() eventmodel.EventPayload { return &BookUpdated{} })
	registry.Register("BookDeleted", func() eventmodel.EventPayload { return &BookDeleted{} })

	// Process/integration events (SPEC_FULL 4.6) never append to a
	// Book's own stream, but still decode through the same registry.
	registry.Register("ReservationBookValidation", func() eventmodel.EventPayload { return &ReservationBookValidation{} })
	registry.Register("BookValidationResult", func() eventmodel.EventPayload { return &BookValidationResult{} })
	registry.Register("ReservationBookValidationFailed", func() eventmodel.EventPayload { return &ReservationBookValidationFailed{} })
}
