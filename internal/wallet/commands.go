package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/libranexus/platform/pkg/cqrs"
	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

// Commands is the thin entrypoint cmd/ wires into an HTTP adapter.
type Commands struct {
	store eventstore.Store
	bus   *eventbus.Bus
}

func NewCommands(store eventstore.Store, bus *eventbus.Bus) *Commands {
	return &Commands{store: store, bus: bus}
}

var ErrAlreadyExists = fmt.Errorf("wallet: WALLET_ALREADY_EXISTS")

// CreateWallet enforces the one-wallet-per-userId invariant (spec
// section 3) before creating.
func (c *Commands) CreateWallet(ctx context.Context, userID string, meta eventmodel.Metadata) (*Wallet, error) {
	_, exists, err := c.store.FindAggregateIDByNaturalKey(ctx, AggregateType, map[string]any{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("wallet: check userId uniqueness: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	w := New(uuid.NewString())
	_, err = cqrs.ExecuteCommand(ctx, c.store, c.bus, w, meta, func(agg *Wallet) ([]eventmodel.EventPayload, error) {
		return Create(userID)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ApplyLateFee loads the wallet and charges a late fee for
// reservationID (spec section 4.4).
func (c *Commands) ApplyLateFee(ctx context.Context, walletID, reservationID string, daysLate int, retailPrice, feePerDay, cumulativeBefore float64, meta eventmodel.Metadata) (*Wallet, error) {
	w := New(walletID)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, w, meta, func(agg *Wallet) ([]eventmodel.EventPayload, error) {
		return agg.ApplyLateFee(reservationID, daysLate, retailPrice, feePerDay, cumulativeBefore)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Charge loads the wallet and attempts the reservation payment
// (SPEC_FULL 4.6); the saga drives this via WalletPaymentRequest.
func (c *Commands) Charge(ctx context.Context, walletID, reservationID string, amount float64, meta eventmodel.Metadata) (*Wallet, error) {
	w := New(walletID)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, w, meta, func(agg *Wallet) ([]eventmodel.EventPayload, error) {
		return agg.Charge(reservationID, amount)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}
