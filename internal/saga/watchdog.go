package saga

import (
	"context"
	"time"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"

	"github.com/libranexus/platform/internal/catalog"
	"github.com/libranexus/platform/internal/reservation"
	"github.com/libranexus/platform/internal/wallet"
)

// Watchdog implements spec section 4.5's timeout policy: while a saga
// is AwaitingBookValidation or AwaitingPayment, a periodic scan
// reissues the request for any row whose updatedAt is older than
// stepTimeout, up to maxRetries; beyond the cap the saga compensates.
type Watchdog struct {
	store        *Store
	bus          *eventbus.Bus
	reservations *reservation.Commands
	stepTimeout  time.Duration
	maxRetries   int
}

func NewWatchdog(store *Store, bus *eventbus.Bus, reservations *reservation.Commands, stepTimeout time.Duration, maxRetries int) *Watchdog {
	return &Watchdog{store: store, bus: bus, reservations: reservations, stepTimeout: stepTimeout, maxRetries: maxRetries}
}

// Run scans on every tick of interval until ctx is cancelled. Callers
// typically run this as its own goroutine from a saga worker
// entrypoint.
func (w *Watchdog) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watchdog) sweep(ctx context.Context) {
	rows, err := w.store.ScanTimedOut(ctx, time.Now().UTC().Add(-w.stepTimeout))
	if err != nil {
		return
	}
	for _, row := range rows {
		w.reissueOrCompensate(ctx, row)
	}
}

func (w *Watchdog) reissueOrCompensate(ctx context.Context, row State) {
	if row.RetryCount >= w.maxRetries {
		w.compensate(ctx, row)
		return
	}

	_, applied, err := w.store.Transition(ctx, row.ReservationID, "", func(st *State) {
		st.RetryCount++
	})
	if err != nil || !applied {
		return
	}

	meta := eventmodel.Metadata{CorrelationID: row.ReservationID, UserID: row.UserID}

	switch row.Step {
	case StepAwaitingBookValidation:
		request, err := eventmodel.New(row.ReservationID, "reservation", catalog.ReservationBookValidation{
			ReservationID: row.ReservationID,
			BookID:        row.BookID,
		}, meta)
		if err != nil {
			return
		}
		_ = w.bus.Publish(ctx, request)

	case StepAwaitingPayment:
		if row.RetailPrice == nil {
			return
		}
		request, err := eventmodel.New(row.ReservationID, "reservation", wallet.WalletPaymentRequest{
			ReservationID: row.ReservationID,
			UserID:        row.UserID,
			Amount:        *row.RetailPrice,
		}, meta)
		if err != nil {
			return
		}
		_ = w.bus.Publish(ctx, request)
	}
}

func (w *Watchdog) compensate(ctx context.Context, row State) {
	_, applied, err := w.store.Transition(ctx, row.ReservationID, "", func(st *State) {
		st.Step = StepCompensating
		st.Compensations = append(st.Compensations, "timeout_exhausted")
	})
	if err != nil || !applied {
		return
	}

	meta := eventmodel.Metadata{CorrelationID: row.ReservationID, UserID: row.UserID}
	if _, err := w.reservations.CancelReservation(ctx, row.ReservationID, "saga_timeout", meta); err != nil {
		return
	}

	_, _, _ = w.store.Transition(ctx, row.ReservationID, "", func(st *State) {
		st.Step = StepFailed
	})
}
