package wallet_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventmodel"

	"github.com/libranexus/platform/internal/wallet"
)

func applyAll(t *testing.T, w *wallet.Wallet, payloads []eventmodel.EventPayload, startVersion int64) {
	t.Helper()
	events := make([]eventmodel.DomainEvent, len(payloads))
	for i, p := range payloads {
		e, err := eventmodel.New(w.AggregateID(), wallet.AggregateType, p, eventmodel.Metadata{})
		require.NoError(t, err)
		e.Version = startVersion + int64(i)
		events[i] = e
	}
	require.NoError(t, aggregate.Rehydrate(w, events))
}

func seedWallet(t *testing.T, balance float64) *wallet.Wallet {
	t.Helper()
	payloads, err := wallet.Create("user-1")
	require.NoError(t, err)
	w := wallet.New(uuid.NewString())
	applyAll(t, w, payloads, 1)
	if balance != 0 {
		credit, err := w.Credit(balance)
		require.NoError(t, err)
		applyAll(t, w, credit, w.Version()+1)
	}
	return w
}

// Scenario 4 from spec section 8: 5 days late, retailPrice=20,
// feePerDay=0.2 → balance decreases by 1.0, bookPurchased=false.
func TestApplyLateFeeFiveDaysLate(t *testing.T) {
	w := seedWallet(t, 100)
	events, err := w.ApplyLateFee("R1", 5, 20, 0.2, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	fee := events[0].(wallet.WalletLateFeeApplied)
	assert.Equal(t, 1.0, fee.Fee)
	assert.False(t, fee.BookPurchased)
	assert.Equal(t, 99.0, fee.NewBalance)
}

// Scenario 4 continued: 100 days late → balance decrease = 20.0,
// bookPurchased=true.
func TestApplyLateFeeHundredDaysLateTriggersPurchase(t *testing.T) {
	w := seedWallet(t, 100)
	events, err := w.ApplyLateFee("R1", 100, 20, 0.2, 0)
	require.NoError(t, err)

	fee := events[0].(wallet.WalletLateFeeApplied)
	assert.Equal(t, 20.0, fee.Fee)
	assert.True(t, fee.BookPurchased)
	assert.Equal(t, 80.0, fee.NewBalance)
}

func TestApplyLateFeeAccumulatesAcrossCalls(t *testing.T) {
	w := seedWallet(t, 100)
	events, err := w.ApplyLateFee("R1", 50, 20, 0.2, 8)
	require.NoError(t, err)

	fee := events[0].(wallet.WalletLateFeeApplied)
	// cumulativeBefore=8, this charge=round1(50*0.2)=10 → cumulative=18, still under 20.
	assert.Equal(t, 10.0, fee.Fee)
	assert.Equal(t, 18.0, fee.CumulativeFees)
	assert.False(t, fee.BookPurchased)
}

func TestChargeSucceedsWithSufficientFunds(t *testing.T) {
	w := seedWallet(t, 50)
	events, err := w.Charge("R1", 20)
	require.NoError(t, err)

	success := events[0].(wallet.WalletPaymentSuccess)
	assert.Equal(t, 30.0, success.NewBalance)
}

func TestChargeDeclinesWithInsufficientFunds(t *testing.T) {
	w := seedWallet(t, 5)
	events, err := w.Charge("R1", 20)
	require.NoError(t, err)

	declined := events[0].(wallet.WalletPaymentDeclined)
	assert.Equal(t, 20.0, declined.Amount)
}
