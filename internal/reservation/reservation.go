// Package reservation implements the Reservations bounded context: the
// Reservation aggregate and its full status machine (spec section 3/4.4).
package reservation

import (
	"fmt"
	"time"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventmodel"
)

const AggregateType = "reservation"

// Status is the set named in spec section 3.
type Status string

const (
	StatusCreated   Status = "created"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
	StatusActive    Status = "active"
	StatusLate      Status = "late"
	StatusReturned  Status = "returned"
	StatusBought    Status = "bought"
	StatusCancelled Status = "cancelled"
)

// Reservation is the aggregate described in spec section 3.
type Reservation struct {
	aggregate.Root

	UserID       string
	BookID       string
	Status       Status
	FeeCharged   float64
	RetailPrice  *float64
	LateFee      *float64
	ReservedAt   time.Time
	DueDate      time.Time
	ReturnedAt   *time.Time
	Payment      *PaymentInfo
	StatusReason string
}

// PaymentInfo records which saga run paid for this reservation.
type PaymentInfo struct {
	WalletID string    `bson:"walletId"`
	PaidAt   time.Time `bson:"paidAt"`
}

func New(id string) *Reservation {
	r := &Reservation{}
	r.Init(id)
	return r
}

func (r *Reservation) AggregateID() string   { return r.ID() }
func (r *Reservation) AggregateType() string { return AggregateType }

// ErrInvalidTransition is the taxonomy code from spec section 4.4.
type ErrInvalidTransition struct {
	From Status
	To   string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("reservation: RESERVATION_INVALID_TRANSITION: cannot move from %s to %s", e.From, e.To)
}

// --- Events -----------------------------------------------------------

type ReservationCreated struct {
	UserID  string    `bson:"userId"`
	BookID  string    `bson:"bookId"`
	DueDate time.Time `bson:"dueDate"`
}

func (ReservationCreated) EventType() string { return "ReservationCreated" }

// ReservationStatusUpdated is the generic transition event; Reason is
// set for rejections/cancellations (spec section 3).
type ReservationStatusUpdated struct {
	Status      Status   `bson:"status"`
	Reason      string   `bson:"reason,omitempty"`
	RetailPrice *float64 `bson:"retailPrice,omitempty"`
}

func (ReservationStatusUpdated) EventType() string { return "ReservationStatusUpdated" }

type ReservationReturned struct {
	ReturnedAt  time.Time `bson:"returnedAt"`
	DaysLate    int       `bson:"daysLate"`
	BookBought  bool      `bson:"bookPurchased"`
	NewStatus   Status    `bson:"newStatus"`
}

func (ReservationReturned) EventType() string { return "ReservationReturned" }

type ReservationFeeCharged struct {
	Amount         float64 `bson:"amount"`
	CumulativeFees float64 `bson:"cumulativeFees"`
}

func (ReservationFeeCharged) EventType() string { return "ReservationFeeCharged" }

type ReservationFeePaid struct {
	Amount float64 `bson:"amount"`
}

func (ReservationFeePaid) EventType() string { return "ReservationFeePaid" }

type ReservationDueDateExtended struct {
	NewDueDate time.Time `bson:"newDueDate"`
}

func (ReservationDueDateExtended) EventType() string { return "ReservationDueDateExtended" }

type ReservationDeleted struct{}

func (ReservationDeleted) EventType() string { return "ReservationDeleted" }

// --- Commands -----------------------------------------------------------

// Create starts a reservation in the "created" status; the saga then
// drives it through validation and payment (SPEC_FULL 4.6).
func Create(userID, bookID string, dueDate time.Time) ([]eventmodel.EventPayload, error) {
	if userID == "" || bookID == "" {
		return nil, fmt.Errorf("reservation: RESERVATION_INVALID_DATA: userId and bookId are required")
	}
	return []eventmodel.EventPayload{ReservationCreated{UserID: userID, BookID: bookID, DueDate: dueDate}}, nil
}

// MarkValidated transitions created → validated after the saga's book
// check succeeds.
func (r *Reservation) MarkValidated(retailPrice float64) ([]eventmodel.EventPayload, error) {
	if r.Status != StatusCreated {
		return nil, &ErrInvalidTransition{From: r.Status, To: string(StatusValidated)}
	}
	return []eventmodel.EventPayload{ReservationStatusUpdated{Status: StatusValidated, RetailPrice: &retailPrice}}, nil
}

// MarkRejected transitions created|validated → rejected when book
// validation fails or payment never completes.
func (r *Reservation) MarkRejected(reason string) ([]eventmodel.EventPayload, error) {
	if r.Status != StatusCreated && r.Status != StatusValidated {
		return nil, &ErrInvalidTransition{From: r.Status, To: string(StatusRejected)}
	}
	return []eventmodel.EventPayload{ReservationStatusUpdated{Status: StatusRejected, Reason: reason}}, nil
}

// Activate transitions validated → active once payment succeeds.
func (r *Reservation) Activate() ([]eventmodel.EventPayload, error) {
	if r.Status != StatusValidated {
		return nil, &ErrInvalidTransition{From: r.Status, To: string(StatusActive)}
	}
	return []eventmodel.EventPayload{ReservationStatusUpdated{Status: StatusActive}}, nil
}

// Cancel transitions created|validated → cancelled when payment is declined
// (spec section 4.5 Compensating step).
func (r *Reservation) Cancel(reason string) ([]eventmodel.EventPayload, error) {
	if r.Status != StatusValidated && r.Status != StatusCreated {
		return nil, &ErrInvalidTransition{From: r.Status, To: string(StatusCancelled)}
	}
	return []eventmodel.EventPayload{ReservationStatusUpdated{Status: StatusCancelled, Reason: reason}}, nil
}

// MarkLate flags an active reservation whose due date has passed.
func (r *Reservation) MarkLate() ([]eventmodel.EventPayload, error) {
	if r.Status != StatusActive {
		return nil, &ErrInvalidTransition{From: r.Status, To: string(StatusLate)}
	}
	return []eventmodel.EventPayload{ReservationStatusUpdated{Status: StatusLate}}, nil
}

// MarkAsReturned transitions active|late → returned (spec section
// 4.4: "any other current status yields RESERVATION_INVALID_TRANSITION").
func (r *Reservation) MarkAsReturned(now time.Time, lateFee float64, bookPurchased bool) ([]eventmodel.EventPayload, error) {
	if r.Status != StatusActive && r.Status != StatusLate {
		return nil, &ErrInvalidTransition{From: r.Status, To: string(StatusReturned)}
	}
	daysLate := 0
	if now.After(r.DueDate) {
		daysLate = int(now.Sub(r.DueDate).Hours() / 24)
	}
	newStatus := StatusReturned
	if bookPurchased {
		newStatus = StatusBought
	}
	return []eventmodel.EventPayload{ReservationReturned{
		ReturnedAt: now,
		DaysLate:   daysLate,
		BookBought: bookPurchased,
		NewStatus:  newStatus,
	}}, nil
}

// ChargeFee records a late fee charged against the reservation (applied
// alongside the Wallet's own WalletLateFeeApplied bookkeeping, spec
// section 4.4's Wallet.applyLateFee).
func (r *Reservation) ChargeFee(amount float64) ([]eventmodel.EventPayload, error) {
	return []eventmodel.EventPayload{ReservationFeeCharged{
		Amount:         amount,
		CumulativeFees: r.FeeCharged + amount,
	}}, nil
}

// ExtendDueDate pushes the due date forward; no status change.
func (r *Reservation) ExtendDueDate(newDueDate time.Time) ([]eventmodel.EventPayload, error) {
	if !newDueDate.After(r.DueDate) {
		return nil, fmt.Errorf("reservation: RESERVATION_INVALID_DATA: new due date must be after current due date")
	}
	return []eventmodel.EventPayload{ReservationDueDateExtended{NewDueDate: newDueDate}}, nil
}

// ApplyEvent folds one stored event into Reservation state.
func (r *Reservation) ApplyEvent(e eventmodel.DomainEvent) error {
	switch e.EventType {
	case "ReservationCreated":
		var p ReservationCreated
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.UserID = p.UserID
		r.BookID = p.BookID
		r.DueDate = p.DueDate
		r.ReservedAt = e.Timestamp
		r.Status = StatusCreated

	case "ReservationStatusUpdated":
		var p ReservationStatusUpdated
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.Status = p.Status
		r.StatusReason = p.Reason
		if p.RetailPrice != nil {
			r.RetailPrice = p.RetailPrice
		}

	case "ReservationReturned":
		var p ReservationReturned
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.Status = p.NewStatus
		returnedAt := p.ReturnedAt
		r.ReturnedAt = &returnedAt

	case "ReservationFeeCharged":
		var p ReservationFeeCharged
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.FeeCharged = p.CumulativeFees
		r.LateFee = &p.Amount

	case "ReservationFeePaid":
		// bookkeeping only; FeeCharged already reflects the charge.

	case "ReservationDueDateExtended":
		var p ReservationDueDateExtended
		if err := e.Decode(&p); err != nil {
			return err
		}
		r.DueDate = p.NewDueDate

	case "ReservationDeleted":
		// soft-delete is projection-only; the aggregate itself has no
		// deletedAt field per spec section 3's field list for
		// Reservation.

	default:
		return fmt.Errorf("reservation: unknown event type %q", e.EventType)
	}
	r.SetVersion(e.Version)
	return nil
}
