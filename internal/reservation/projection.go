package reservation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// Row is the reservations_projection document shape, with the
// secondary indexes spec section 6 names: userId, bookId, status,
// dueDate.
type Row struct {
	ID           string     `bson:"id" json:"id"`
	UserID       string     `bson:"userId" json:"userId"`
	BookID       string     `bson:"bookId" json:"bookId"`
	Status       Status     `bson:"status" json:"status"`
	FeeCharged   float64    `bson:"feeCharged" json:"feeCharged"`
	RetailPrice  *float64   `bson:"retailPrice,omitempty" json:"retailPrice,omitempty"`
	LateFee      *float64   `bson:"lateFee,omitempty" json:"lateFee,omitempty"`
	ReservedAt   time.Time  `bson:"reservedAt" json:"reservedAt"`
	DueDate      time.Time  `bson:"dueDate" json:"dueDate"`
	ReturnedAt   *time.Time `bson:"returnedAt,omitempty" json:"returnedAt,omitempty"`
	StatusReason string     `bson:"statusReason,omitempty" json:"statusReason,omitempty"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
}

var SortAllowList = projection.SortAllowList{
	"dueDate":    "dueDate",
	"reservedAt": "reservedAt",
	"status":     "status",
}

type Projector struct {
	repo *projection.Repository
}

func NewProjector(repo *projection.Repository) *Projector {
	return &Projector{repo: repo}
}

func (p *Projector) EnsureIndexes(ctx context.Context) error {
	return p.repo.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "bookId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
	})
}

func (p *Projector) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe("ReservationCreated", "reservation.projection", p.handle)
	bus.Subscribe("ReservationStatusUpdated", "reservation.projection", p.handle)
	bus.Subscribe("ReservationReturned", "reservation.projection", p.handle)
	bus.Subscribe("ReservationFeeCharged", "reservation.projection", p.handle)
	bus.Subscribe("ReservationFeePaid", "reservation.projection", p.handle)
	bus.Subscribe("ReservationDueDateExtended", "reservation.projection", p.handle)
	bus.Subscribe("ReservationDeleted", "reservation.projection", p.handle)
}

func (p *Projector) handle(ctx context.Context, e eventmodel.DomainEvent) error {
	if e.EventType == "ReservationCreated" {
		var payload ReservationCreated
		if err := e.Decode(&payload); err != nil {
			return err
		}
		row := Row{
			ID:         e.AggregateID,
			UserID:     payload.UserID,
			BookID:     payload.BookID,
			Status:     StatusCreated,
			ReservedAt: e.Timestamp,
			DueDate:    payload.DueDate,
			UpdatedAt:  e.Timestamp,
		}
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, row)
		return err
	}

	if e.EventType == "ReservationDeleted" {
		_, err := p.repo.SoftDelete(ctx, e.AggregateID, e.Version)
		return err
	}

	var existing Row
	found, err := p.repo.Get(ctx, e.AggregateID, &existing)
	if err != nil {
		return err
	}
	if !found {
		return errRowMissing(e.AggregateID)
	}

	switch e.EventType {
	case "ReservationStatusUpdated":
		var payload ReservationStatusUpdated
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.Status = payload.Status
		existing.StatusReason = payload.Reason
		if payload.RetailPrice != nil {
			existing.RetailPrice = payload.RetailPrice
		}

	case "ReservationReturned":
		var payload ReservationReturned
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.Status = payload.NewStatus
		returnedAt := payload.ReturnedAt
		existing.ReturnedAt = &returnedAt

	case "ReservationFeeCharged":
		var payload ReservationFeeCharged
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.FeeCharged = payload.CumulativeFees
		existing.LateFee = &payload.Amount

	case "ReservationFeePaid":
		// bookkeeping only

	case "ReservationDueDateExtended":
		var payload ReservationDueDateExtended
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.DueDate = payload.NewDueDate

	default:
		return nil
	}

	existing.UpdatedAt = e.Timestamp
	_, err = p.repo.Apply(ctx, e.AggregateID, e.Version, existing)
	return err
}

func errRowMissing(id string) error {
	return &rowMissingError{id: id}
}

type rowMissingError struct{ id string }

func (e *rowMissingError) Error() string {
	return "reservation: projection row " + e.id + " missing for update event"
}
