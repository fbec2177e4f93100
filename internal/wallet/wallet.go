// Package wallet implements the Wallets bounded context: the Wallet
// aggregate, the late-fee and purchase-threshold rule of spec section
// 4.4, and the cross-context payment responder of SPEC_FULL 4.6.
package wallet

import (
	"fmt"
	"math"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventmodel"
)

const AggregateType = "wallet"

// Wallet is the aggregate described in spec section 3. Invariant:
// exactly one wallet per userId (enforced by the caller via
// FindAggregateIDByNaturalKey before Create, mirroring Book/ISBN).
type Wallet struct {
	aggregate.Root

	UserID  string
	Balance float64
}

func New(id string) *Wallet {
	w := &Wallet{}
	w.Init(id)
	return w
}

func (w *Wallet) AggregateID() string   { return w.ID() }
func (w *Wallet) AggregateType() string { return AggregateType }

// --- Events -----------------------------------------------------------

type WalletCreated struct {
	UserID         string  `bson:"userId"`
	InitialBalance float64 `bson:"initialBalance"`
}

func (WalletCreated) EventType() string { return "WalletCreated" }

type WalletBalanceUpdated struct {
	NewBalance float64 `bson:"newBalance"`
	Delta      float64 `bson:"delta"`
}

func (WalletBalanceUpdated) EventType() string { return "WalletBalanceUpdated" }

// WalletLateFeeApplied records a late-fee charge against a reservation
// (spec section 4.4, Wallet.applyLateFee).
type WalletLateFeeApplied struct {
	ReservationID  string  `bson:"reservationId"`
	DaysLate       int     `bson:"daysLate"`
	Fee            float64 `bson:"fee"`
	CumulativeFees float64 `bson:"cumulativeFees"`
	BookPurchased  bool    `bson:"bookPurchased"`
	NewBalance     float64 `bson:"newBalance"`
}

func (WalletLateFeeApplied) EventType() string { return "WalletLateFeeApplied" }

// WalletPaymentSuccess/Declined are genuine Wallet aggregate events
// produced in response to a WalletPaymentRequest (SPEC_FULL 4.6): the
// wallet is an aggregate, so these append to its own stream like any
// other domain event even though the request that triggered them is a
// process/integration event.
type WalletPaymentSuccess struct {
	ReservationID string  `bson:"reservationId"`
	Amount        float64 `bson:"amount"`
	NewBalance    float64 `bson:"newBalance"`
}

func (WalletPaymentSuccess) EventType() string { return "WalletPaymentSuccess" }

type WalletPaymentDeclined struct {
	ReservationID string  `bson:"reservationId"`
	Amount        float64 `bson:"amount"`
	Reason        string  `bson:"reason"`
}

func (WalletPaymentDeclined) EventType() string { return "WalletPaymentDeclined" }

// --- Commands -----------------------------------------------------------

// ErrInsufficientFunds is the domain rule guarding Charge.
var ErrInsufficientFunds = fmt.Errorf("wallet: WALLET_INSUFFICIENT_FUNDS")

// Create opens a wallet for userId with a zero starting balance.
func Create(userID string) ([]eventmodel.EventPayload, error) {
	if userID == "" {
		return nil, fmt.Errorf("wallet: WALLET_INVALID_DATA: userId is required")
	}
	return []eventmodel.EventPayload{WalletCreated{UserID: userID, InitialBalance: 0}}, nil
}

// round1 rounds to one decimal place, matching the fee formula named in
// spec section 4.4 ("fee = round1(daysLate × feePerDay)").
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ApplyLateFee charges the fee for daysLate against retailPrice, per
// spec section 4.4: fee = round1(daysLate × feePerDay); if the
// reservation's cumulative fees reach retailPrice, the book is
// considered purchased. cumulativeBefore is the reservation's fees
// charged prior to this call (the wallet itself doesn't track
// per-reservation totals, so the caller supplies it from the
// Reservation aggregate).
func (w *Wallet) ApplyLateFee(reservationID string, daysLate int, retailPrice, feePerDay, cumulativeBefore float64) ([]eventmodel.EventPayload, error) {
	fee, cumulative, bookPurchased := ComputeLateFee(daysLate, retailPrice, feePerDay, cumulativeBefore)

	newBalance := w.Balance - fee
	return []eventmodel.EventPayload{WalletLateFeeApplied{
		ReservationID:  reservationID,
		DaysLate:       daysLate,
		Fee:            fee,
		CumulativeFees: cumulative,
		BookPurchased:  bookPurchased,
		NewBalance:     newBalance,
	}}, nil
}

// ComputeLateFee is the pure decision behind ApplyLateFee, exposed so
// callers that need the fee/cumulative/bookPurchased values ahead of
// appending the Wallet event (e.g. the Reservations context deciding
// its own ReservationReturned payload in the same command) don't have
// to reverse-engineer them from the stored event.
func ComputeLateFee(daysLate int, retailPrice, feePerDay, cumulativeBefore float64) (fee, cumulative float64, bookPurchased bool) {
	fee = round1(float64(daysLate) * feePerDay)
	cumulative = cumulativeBefore + fee
	bookPurchased = cumulative >= retailPrice
	return
}

// Charge debits amount for a reservation payment (SPEC_FULL 4.6's
// WalletPaymentRequest handler), succeeding unconditionally unless funds
// would go negative.
func (w *Wallet) Charge(reservationID string, amount float64) ([]eventmodel.EventPayload, error) {
	if amount > w.Balance {
		return []eventmodel.EventPayload{WalletPaymentDeclined{
			ReservationID: reservationID,
			Amount:        amount,
			Reason:        ErrInsufficientFunds.Error(),
		}}, nil
	}
	return []eventmodel.EventPayload{WalletPaymentSuccess{
		ReservationID: reservationID,
		Amount:        amount,
		NewBalance:    w.Balance - amount,
	}}, nil
}

// Credit adds funds, used by deposit/top-up flows external to the core
// saga (kept minimal since deposits are outside section 1's scope).
func (w *Wallet) Credit(amount float64) ([]eventmodel.EventPayload, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("wallet: WALLET_INVALID_DATA: credit amount must be positive")
	}
	return []eventmodel.EventPayload{WalletBalanceUpdated{
		NewBalance: w.Balance + amount,
		Delta:      amount,
	}}, nil
}

// ApplyEvent folds one stored event into Wallet state.
func (w *Wallet) ApplyEvent(e eventmodel.DomainEvent) error {
	switch e.EventType {
	case "WalletCreated":
		var p WalletCreated
		if err := e.Decode(&p); err != nil {
			return err
		}
		w.UserID = p.UserID
		w.Balance = p.InitialBalance

	case "WalletBalanceUpdated":
		var p WalletBalanceUpdated
		if err := e.Decode(&p); err != nil {
			return err
		}
		w.Balance = p.NewBalance

	case "WalletLateFeeApplied":
		var p WalletLateFeeApplied
		if err := e.Decode(&p); err != nil {
			return err
		}
		w.Balance = p.NewBalance

	case "WalletPaymentSuccess":
		var p WalletPaymentSuccess
		if err := e.Decode(&p); err != nil {
			return err
		}
		w.Balance = p.NewBalance

	case "WalletPaymentDeclined":
		// balance unchanged

	default:
		return fmt.Errorf("wallet: unknown event type %q", e.EventType)
	}
	w.SetVersion(e.Version)
	return nil
}
