package wallet

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// Row is the wallets_projection document shape, keyed by userId
// (unique) per spec section 3/6.
type Row struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Balance   float64   `bson:"balance" json:"balance"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Projector struct {
	repo *projection.Repository
}

func NewProjector(repo *projection.Repository) *Projector {
	return &Projector{repo: repo}
}

func (p *Projector) EnsureIndexes(ctx context.Context) error {
	return p.repo.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
}

func (p *Projector) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe("WalletCreated", "wallet.projection", p.handle)
	bus.Subscribe("WalletBalanceUpdated", "wallet.projection", p.handle)
	bus.Subscribe("WalletLateFeeApplied", "wallet.projection", p.handle)
	bus.Subscribe("WalletPaymentSuccess", "wallet.projection", p.handle)
	bus.Subscribe("WalletPaymentDeclined", "wallet.projection", p.handle)
}

func (p *Projector) handle(ctx context.Context, e eventmodel.DomainEvent) error {
	var existing Row
	found, err := p.repo.Get(ctx, e.AggregateID, &existing)
	if err != nil {
		return err
	}

	switch e.EventType {
	case "WalletCreated":
		var payload WalletCreated
		if err := e.Decode(&payload); err != nil {
			return err
		}
		row := Row{ID: e.AggregateID, UserID: payload.UserID, Balance: payload.InitialBalance, UpdatedAt: e.Timestamp}
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, row)
		return err

	case "WalletBalanceUpdated":
		if !found {
			return errWalletRowMissing(e.AggregateID)
		}
		var payload WalletBalanceUpdated
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.Balance = payload.NewBalance
		existing.UpdatedAt = e.Timestamp
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, existing)
		return err

	case "WalletLateFeeApplied":
		if !found {
			return errWalletRowMissing(e.AggregateID)
		}
		var payload WalletLateFeeApplied
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.Balance = payload.NewBalance
		existing.UpdatedAt = e.Timestamp
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, existing)
		return err

	case "WalletPaymentSuccess":
		if !found {
			return errWalletRowMissing(e.AggregateID)
		}
		var payload WalletPaymentSuccess
		if err := e.Decode(&payload); err != nil {
			return err
		}
		existing.Balance = payload.NewBalance
		existing.UpdatedAt = e.Timestamp
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, existing)
		return err

	case "WalletPaymentDeclined":
		// balance unchanged; bump version so replay stays idempotent.
		if !found {
			return errWalletRowMissing(e.AggregateID)
		}
		existing.UpdatedAt = e.Timestamp
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, existing)
		return err

	default:
		return nil
	}
}

func errWalletRowMissing(id string) error {
	return &rowMissingError{id: id}
}

type rowMissingError struct{ id string }

func (e *rowMissingError) Error() string {
	return "wallet: projection row " + e.id + " missing for update event"
}
