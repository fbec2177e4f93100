// Package saga implements the reservation-payment saga orchestrator of
// spec section 4.5: a persistent state machine coordinating Books,
// Reservations, and Wallets across asynchronous steps, with
// compensating actions on failure.
//
// Saga state is deliberately not event-sourced (no append-only stream,
// no rehydration): section 4.5 specifies upsert persistence per
// reservationId, so the store below mirrors a projection read-model
// repository rather than pkg/eventstore.
package saga

import "time"

// Step is the saga's position named in spec section 4.5.
type Step string

const (
	StepAwaitingBookValidation Step = "AwaitingBookValidation"
	StepAwaitingPayment        Step = "AwaitingPayment"
	StepCompleted              Step = "Completed"
	StepCompensating           Step = "Compensating"
	StepFailed                 Step = "Failed"
)

// State is the one row in the saga-state store per active
// reservationId (spec section 4.5).
type State struct {
	ID              string    `bson:"_id"`
	ReservationID   string    `bson:"reservationId"`
	UserID          string    `bson:"userId"`
	BookID          string    `bson:"bookId"`
	Step            Step      `bson:"step"`
	RetailPrice     *float64  `bson:"retailPrice,omitempty"`
	FeeCharged      *float64  `bson:"feeCharged,omitempty"`
	Compensations   []string  `bson:"compensations,omitempty"`
	LastCausationID string    `bson:"lastCausationId,omitempty"`
	RetryCount      int       `bson:"retryCount"`
	LastError       string    `bson:"lastError,omitempty"`
	StartedAt       time.Time `bson:"startedAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

// alreadyProcessed answers the duplicate-delivery rule of spec section
// 4.5: a causationId the saga has already handled is a no-op.
func (s *State) alreadyProcessed(causationID string) bool {
	return causationID != "" && s.LastCausationID == causationID
}
