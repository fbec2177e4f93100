package saga

import (
	"context"
	"fmt"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"

	"github.com/libranexus/platform/internal/catalog"
	"github.com/libranexus/platform/internal/reservation"
	"github.com/libranexus/platform/internal/wallet"
)

// Orchestrator drives the reservation-payment saga's state table (spec
// section 4.5) by subscribing to the events each transition waits on
// and publishing the process/integration events (SPEC_FULL 4.6) that
// advance it. Failure semantics: domain-level failures (book invalid,
// payment declined) move the saga to Compensating/Failed instead of
// erroring. Any other error in a handler (e.g. a store failure) is
// returned to the bus, which retries the handler and then dead-letters
// the event; the orchestrator itself neither logs such an error nor
// compensates the saga for it.
type Orchestrator struct {
	store        *Store
	bus          *eventbus.Bus
	reservations *reservation.Commands
}

func NewOrchestrator(store *Store, bus *eventbus.Bus, reservations *reservation.Commands) *Orchestrator {
	return &Orchestrator{store: store, bus: bus, reservations: reservations}
}

func (o *Orchestrator) Subscribe() {
	o.bus.Subscribe("ReservationCreated", "saga.orchestrator", o.onReservationCreated)
	o.bus.Subscribe("BookValidationResult", "saga.orchestrator", o.onBookValidationResult)
	o.bus.Subscribe("ReservationBookValidationFailed", "saga.orchestrator", o.onBookValidationFailed)
	o.bus.Subscribe("WalletPaymentSuccess", "saga.orchestrator", o.onPaymentSuccess)
	o.bus.Subscribe("WalletPaymentDeclined", "saga.orchestrator", o.onPaymentDeclined)
}

// onReservationCreated starts the saga row and publishes
// ReservationBookValidation: — ReservationCreated → AwaitingBookValidation.
func (o *Orchestrator) onReservationCreated(ctx context.Context, e eventmodel.DomainEvent) error {
	var payload reservation.ReservationCreated
	if err := e.Decode(&payload); err != nil {
		return err
	}

	causationID := e.AggregateID + "#" + e.EventType + fmt.Sprintf("#%d", e.Version)
	started, err := o.store.Start(ctx, e.AggregateID, payload.UserID, payload.BookID, causationID)
	if err != nil {
		return err
	}
	if !started {
		// duplicate ReservationCreated delivery, row already exists
		return nil
	}

	request, err := eventmodel.New(e.AggregateID, "reservation", catalog.ReservationBookValidation{
		ReservationID: e.AggregateID,
		BookID:        payload.BookID,
	}, eventmodel.WithCausation(e, payload.UserID))
	if err != nil {
		return err
	}
	return o.bus.Publish(ctx, request)
}

// onBookValidationResult handles both branches of
// AwaitingBookValidation: valid=true moves to AwaitingPayment and
// requests payment; valid=false moves straight to Failed via
// RejectReservation.
func (o *Orchestrator) onBookValidationResult(ctx context.Context, e eventmodel.DomainEvent) error {
	var payload catalog.BookValidationResult
	if err := e.Decode(&payload); err != nil {
		return err
	}

	st, applied, err := o.store.Transition(ctx, payload.ReservationID, causationOf(e), func(st *State) {
		if st.Step != StepAwaitingBookValidation {
			return
		}
		if payload.Valid {
			st.Step = StepAwaitingPayment
			retail := payload.RetailPrice
			st.RetailPrice = &retail
		} else {
			st.Step = StepFailed
		}
	})
	if err != nil {
		return err
	}
	if !applied || st.Step == StepAwaitingBookValidation {
		return nil
	}

	if !payload.Valid {
		_, err := o.reservations.RejectReservation(ctx, payload.ReservationID, "book_invalid", eventmodel.WithCausation(e, st.UserID))
		return err
	}

	if _, err := o.reservations.ValidateReservation(ctx, payload.ReservationID, payload.RetailPrice, eventmodel.WithCausation(e, st.UserID)); err != nil {
		return err
	}

	request, err := eventmodel.New(payload.ReservationID, "reservation", wallet.WalletPaymentRequest{
		ReservationID: payload.ReservationID,
		UserID:        st.UserID,
		Amount:        payload.RetailPrice,
	}, eventmodel.WithCausation(e, st.UserID))
	if err != nil {
		return err
	}
	return o.bus.Publish(ctx, request)
}

// onBookValidationFailed handles the lookup-errored branch of
// AwaitingBookValidation (distinct from a clean valid=false).
func (o *Orchestrator) onBookValidationFailed(ctx context.Context, e eventmodel.DomainEvent) error {
	var payload catalog.ReservationBookValidationFailed
	if err := e.Decode(&payload); err != nil {
		return err
	}

	st, applied, err := o.store.Transition(ctx, payload.ReservationID, causationOf(e), func(st *State) {
		if st.Step != StepAwaitingBookValidation {
			return
		}
		st.Step = StepFailed
		st.LastError = payload.Reason
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	_, err = o.reservations.RejectReservation(ctx, payload.ReservationID, payload.Reason, eventmodel.WithCausation(e, st.UserID))
	return err
}

// onPaymentSuccess: AwaitingPayment → Completed, reservation → active.
func (o *Orchestrator) onPaymentSuccess(ctx context.Context, e eventmodel.DomainEvent) error {
	var payload wallet.WalletPaymentSuccess
	if err := e.Decode(&payload); err != nil {
		return err
	}

	st, applied, err := o.store.Transition(ctx, payload.ReservationID, causationOf(e), func(st *State) {
		if st.Step != StepAwaitingPayment {
			return
		}
		st.Step = StepCompleted
		fee := payload.Amount
		st.FeeCharged = &fee
	})
	if err != nil {
		return err
	}
	if !applied || st.Step != StepCompleted {
		return nil
	}

	_, err = o.reservations.ActivateReservation(ctx, payload.ReservationID, eventmodel.WithCausation(e, st.UserID))
	return err
}

// onPaymentDeclined: AwaitingPayment → Compensating → Failed,
// reservation → cancelled, reason=payment_declined.
func (o *Orchestrator) onPaymentDeclined(ctx context.Context, e eventmodel.DomainEvent) error {
	var payload wallet.WalletPaymentDeclined
	if err := e.Decode(&payload); err != nil {
		return err
	}

	st, applied, err := o.store.Transition(ctx, payload.ReservationID, causationOf(e), func(st *State) {
		if st.Step != StepAwaitingPayment {
			return
		}
		st.Step = StepCompensating
		st.Compensations = append(st.Compensations, "cancel_reservation")
	})
	if err != nil {
		return err
	}
	if !applied || st.Step != StepCompensating {
		return nil
	}

	if _, err := o.reservations.CancelReservation(ctx, payload.ReservationID, "payment_declined", eventmodel.WithCausation(e, st.UserID)); err != nil {
		return err
	}

	_, _, err = o.store.Transition(ctx, payload.ReservationID, causationOf(e)+":finalize", func(st *State) {
		st.Step = StepFailed
	})
	return err
}

func causationOf(e eventmodel.DomainEvent) string {
	return e.AggregateID + "#" + e.EventType + fmt.Sprintf("#%d", e.Version)
}
