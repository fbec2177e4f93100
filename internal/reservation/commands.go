package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/libranexus/platform/pkg/cqrs"
	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"

	"github.com/libranexus/platform/internal/wallet"
)

// Commands is the thin entrypoint cmd/ wires into an HTTP adapter.
// walletStore (with the shared bus) lets ReturnReservation charge the
// Wallet aggregate directly for the scenario in spec section 8 #4, which is a
// synchronous command rather than a saga-mediated flow.
type Commands struct {
	store       eventstore.Store
	bus         *eventbus.Bus
	walletStore eventstore.Store
	feePerDay   float64
}

func NewCommands(store eventstore.Store, bus *eventbus.Bus, walletStore eventstore.Store, feePerDay float64) *Commands {
	return &Commands{store: store, bus: bus, walletStore: walletStore, feePerDay: feePerDay}
}

// CreateReservation starts the saga-driven reservation lifecycle
// (SPEC_FULL 4.6): creating the aggregate publishes ReservationCreated,
// which the saga orchestrator picks up to kick off book validation.
func (c *Commands) CreateReservation(ctx context.Context, userID, bookID string, dueDate time.Time, meta eventmodel.Metadata) (*Reservation, error) {
	r := New(uuid.NewString())
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, r, meta, func(agg *Reservation) ([]eventmodel.EventPayload, error) {
		return Create(userID, bookID, dueDate)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReturnReservation implements spec section 8 scenario 4: it charges
// the wallet for any accrued late fee, determines whether the
// cumulative fee reached retailPrice, and transitions the reservation
// accordingly. retailPrice and walletID are resolved by the caller
// (typically from the Books and Wallets projections) since neither
// lives on the Reservation aggregate itself.
func (c *Commands) ReturnReservation(ctx context.Context, reservationID, walletID string, retailPrice float64, now time.Time, meta eventmodel.Metadata) (*Reservation, *wallet.Wallet, error) {
	// Peek at current state to compute daysLate/cumulativeBefore before
	// deciding; ExecuteCommand below rehydrates its own fresh aggregate
	// from the same stream, so this copy is never mutated further.
	peek := New(reservationID)
	existing, err := c.store.LoadEvents(ctx, reservationID)
	if err != nil {
		return nil, nil, err
	}
	if len(existing) > 0 {
		if err := rehydrateReservation(peek, existing); err != nil {
			return nil, nil, err
		}
	}

	daysLate := 0
	if now.After(peek.DueDate) {
		daysLate = int(now.Sub(peek.DueDate).Hours() / 24)
	}

	var cumulativeBefore float64
	if peek.LateFee != nil {
		cumulativeBefore = peek.FeeCharged
	}

	r := New(reservationID)

	var feeCharged float64
	var bookPurchased bool
	if daysLate > 0 {
		feeCharged, _, bookPurchased = wallet.ComputeLateFee(daysLate, retailPrice, c.feePerDay, cumulativeBefore)
	}

	w := wallet.New(walletID)
	_, err = cqrs.ExecuteCommand(ctx, c.walletStore, c.bus, w, meta, func(agg *wallet.Wallet) ([]eventmodel.EventPayload, error) {
		if daysLate == 0 {
			return nil, nil
		}
		return agg.ApplyLateFee(reservationID, daysLate, retailPrice, c.feePerDay, cumulativeBefore)
	})
	if err != nil {
		return nil, nil, err
	}

	_, err = cqrs.ExecuteCommand(ctx, c.store, c.bus, r, meta, func(agg *Reservation) ([]eventmodel.EventPayload, error) {
		events, err := agg.MarkAsReturned(now, feeCharged, bookPurchased)
		if err != nil {
			return nil, err
		}
		if feeCharged > 0 {
			chargeEvents, err := agg.ChargeFee(feeCharged)
			if err != nil {
				return nil, err
			}
			events = append(events, chargeEvents...)
		}
		return events, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return r, w, nil
}

// ValidateReservation applies a successful book-validation outcome,
// moving created → validated (SPEC_FULL 4.6's BookValidationResult
// handling); a failed validation goes through RejectReservation instead.
func (c *Commands) ValidateReservation(ctx context.Context, reservationID string, retailPrice float64, meta eventmodel.Metadata) (*Reservation, error) {
	r := New(reservationID)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, r, meta, func(agg *Reservation) ([]eventmodel.EventPayload, error) {
		return agg.MarkValidated(retailPrice)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RejectReservation records why a reservation never became active.
func (c *Commands) RejectReservation(ctx context.Context, reservationID, reason string, meta eventmodel.Metadata) (*Reservation, error) {
	r := New(reservationID)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, r, meta, func(agg *Reservation) ([]eventmodel.EventPayload, error) {
		return agg.MarkRejected(reason)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ActivateReservation transitions validated → active once the saga's
// wallet payment step succeeds.
func (c *Commands) ActivateReservation(ctx context.Context, reservationID string, meta eventmodel.Metadata) (*Reservation, error) {
	r := New(reservationID)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, r, meta, func(agg *Reservation) ([]eventmodel.EventPayload, error) {
		return agg.Activate()
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CancelReservation is the saga's compensating step when payment is
// declined.
func (c *Commands) CancelReservation(ctx context.Context, reservationID, reason string, meta eventmodel.Metadata) (*Reservation, error) {
	r := New(reservationID)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, r, meta, func(agg *Reservation) ([]eventmodel.EventPayload, error) {
		return agg.Cancel(reason)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func rehydrateReservation(r *Reservation, events []eventmodel.DomainEvent) error {
	for _, e := range events {
		if err := r.ApplyEvent(e); err != nil {
			return err
		}
	}
	return nil
}
