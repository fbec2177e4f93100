package wallet

import (
	"context"
	"fmt"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

// WalletPaymentRequest is the process/integration event the saga
// publishes to request a charge (SPEC_FULL section 4.6).
type WalletPaymentRequest struct {
	ReservationID string  `bson:"reservationId"`
	UserID        string  `bson:"userId"`
	Amount        float64 `bson:"amount"`
}

func (WalletPaymentRequest) EventType() string { return "WalletPaymentRequest" }

// PaymentResponder subscribes to WalletPaymentRequest, resolves
// userId's wallet, and charges it — because the wallet is a genuine
// aggregate, the resulting WalletPaymentSuccess/Declined append to its
// own stream via the normal command path rather than being published
// standalone.
type PaymentResponder struct {
	store eventstore.Store
	bus   *eventbus.Bus
}

func NewPaymentResponder(store eventstore.Store, bus *eventbus.Bus) *PaymentResponder {
	return &PaymentResponder{store: store, bus: bus}
}

func (p *PaymentResponder) Subscribe() {
	p.bus.Subscribe("WalletPaymentRequest", "wallet.payment", p.handle)
}

func (p *PaymentResponder) handle(ctx context.Context, e eventmodel.DomainEvent) error {
	var req WalletPaymentRequest
	if err := e.Decode(&req); err != nil {
		return err
	}

	walletID, found, err := p.store.FindAggregateIDByNaturalKey(ctx, AggregateType, map[string]any{"userId": req.UserID})
	if err != nil {
		return fmt.Errorf("wallet: resolve wallet for user %s: %w", req.UserID, err)
	}
	if !found {
		return fmt.Errorf("wallet: WALLET_NOT_FOUND: no wallet for user %s", req.UserID)
	}

	commands := NewCommands(p.store, p.bus)
	_, err = commands.Charge(ctx, walletID, req.ReservationID, req.Amount, eventmodel.WithCausation(e, req.UserID))
	return err
}
