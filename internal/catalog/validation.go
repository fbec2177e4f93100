package catalog

import (
	"context"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// ReservationBookValidation is the process/integration event the saga
// publishes to ask whether a book exists (SPEC_FULL section 4.6).
type ReservationBookValidation struct {
	ReservationID string `bson:"reservationId"`
	BookID        string `bson:"bookId"`
}

func (ReservationBookValidation) EventType() string { return "ReservationBookValidation" }

// BookValidationResult answers a ReservationBookValidation.
type BookValidationResult struct {
	ReservationID string  `bson:"reservationId"`
	BookID        string  `bson:"bookId"`
	Valid         bool    `bson:"valid"`
	RetailPrice   float64 `bson:"retailPrice"`
}

func (BookValidationResult) EventType() string { return "BookValidationResult" }

// ReservationBookValidationFailed signals the lookup itself errored
// (distinct from a clean valid=false per SPEC_FULL 4.6).
type ReservationBookValidationFailed struct {
	ReservationID string `bson:"reservationId"`
	BookID        string `bson:"bookId"`
	Reason        string `bson:"reason"`
}

func (ReservationBookValidationFailed) EventType() string { return "ReservationBookValidationFailed" }

// ValidationResponder answers ReservationBookValidation requests from
// the saga by looking the book up in books_projection.
type ValidationResponder struct {
	repo *projection.Repository
	bus  *eventbus.Bus
}

func NewValidationResponder(repo *projection.Repository, bus *eventbus.Bus) *ValidationResponder {
	return &ValidationResponder{repo: repo, bus: bus}
}

func (v *ValidationResponder) Subscribe() {
	v.bus.Subscribe("ReservationBookValidation", "catalog.validation", v.handle)
}

func (v *ValidationResponder) handle(ctx context.Context, e eventmodel.DomainEvent) error {
	var req ReservationBookValidation
	if err := e.Decode(&req); err != nil {
		return err
	}

	var row Row
	found, err := v.repo.Get(ctx, req.BookID, &row)
	if err != nil {
		failure, buildErr := eventmodel.New(req.ReservationID, "reservation", ReservationBookValidationFailed{
			ReservationID: req.ReservationID,
			BookID:        req.BookID,
			Reason:        err.Error(),
		}, eventmodel.WithCausation(e, ""))
		if buildErr != nil {
			return buildErr
		}
		return v.bus.Publish(ctx, failure)
	}

	result, err := eventmodel.New(req.ReservationID, "reservation", BookValidationResult{
		ReservationID: req.ReservationID,
		BookID:        req.BookID,
		Valid:         found,
		RetailPrice:   row.Price,
	}, eventmodel.WithCausation(e, ""))
	if err != nil {
		return err
	}
	return v.bus.Publish(ctx, result)
}
