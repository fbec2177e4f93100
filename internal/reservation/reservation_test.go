package reservation_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventmodel"

	"github.com/libranexus/platform/internal/reservation"
)

func applyAll(t *testing.T, r *reservation.Reservation, payloads []eventmodel.EventPayload, startVersion int64) {
	t.Helper()
	events := make([]eventmodel.DomainEvent, len(payloads))
	for i, p := range payloads {
		e, err := eventmodel.New(r.AggregateID(), reservation.AggregateType, p, eventmodel.Metadata{})
		require.NoError(t, err)
		e.Version = startVersion + int64(i)
		events[i] = e
	}
	require.NoError(t, aggregate.Rehydrate(r, events))
}

func seedReservation(t *testing.T, dueDate time.Time) *reservation.Reservation {
	t.Helper()
	payloads, err := reservation.Create("user-1", "book-1", dueDate)
	require.NoError(t, err)
	r := reservation.New(uuid.NewString())
	applyAll(t, r, payloads, 1)
	return r
}

func TestCreateRejectsMissingFields(t *testing.T) {
	_, err := reservation.Create("", "book-1", time.Now())
	assert.Error(t, err)
}

func TestCreateThenRehydrateProducesCreatedStatus(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))
	assert.Equal(t, reservation.StatusCreated, r.Status)
	assert.Equal(t, "user-1", r.UserID)
	assert.Equal(t, "book-1", r.BookID)
}

func TestMarkValidatedFromCreatedSucceeds(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))
	events, err := r.MarkValidated(19.99)
	require.NoError(t, err)
	applyAll(t, r, events, r.Version()+1)

	assert.Equal(t, reservation.StatusValidated, r.Status)
	require.NotNil(t, r.RetailPrice)
	assert.Equal(t, 19.99, *r.RetailPrice)
}

func TestMarkValidatedFromWrongStatusFails(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))
	events, err := r.MarkValidated(19.99)
	require.NoError(t, err)
	applyAll(t, r, events, r.Version()+1)

	_, err = r.MarkValidated(19.99)
	var invalid *reservation.ErrInvalidTransition
	assert.ErrorAs(t, err, &invalid)
}

func TestActivateRequiresValidated(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))
	_, err := r.Activate()
	var invalid *reservation.ErrInvalidTransition
	assert.ErrorAs(t, err, &invalid)
}

func TestFullHappyPathToActive(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))

	validated, err := r.MarkValidated(19.99)
	require.NoError(t, err)
	applyAll(t, r, validated, r.Version()+1)

	activated, err := r.Activate()
	require.NoError(t, err)
	applyAll(t, r, activated, r.Version()+1)

	assert.Equal(t, reservation.StatusActive, r.Status)
}

func TestCancelFromValidatedSucceeds(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))

	validated, err := r.MarkValidated(19.99)
	require.NoError(t, err)
	applyAll(t, r, validated, r.Version()+1)

	cancelled, err := r.Cancel("WALLET_INSUFFICIENT_FUNDS")
	require.NoError(t, err)
	applyAll(t, r, cancelled, r.Version()+1)

	assert.Equal(t, reservation.StatusCancelled, r.Status)
	assert.Equal(t, "WALLET_INSUFFICIENT_FUNDS", r.StatusReason)
}

// MarkAsReturned from a non-active/late status is
// RESERVATION_INVALID_TRANSITION per spec section 4.4.
func TestMarkAsReturnedFromCreatedFails(t *testing.T) {
	r := seedReservation(t, time.Now().Add(14*24*time.Hour))
	_, err := r.MarkAsReturned(time.Now(), 0, false)
	var invalid *reservation.ErrInvalidTransition
	assert.ErrorAs(t, err, &invalid)
}

func TestMarkAsReturnedOnTimeYieldsReturnedStatus(t *testing.T) {
	due := time.Now().Add(14 * 24 * time.Hour)
	r := seedReservation(t, due)

	validated, err := r.MarkValidated(19.99)
	require.NoError(t, err)
	applyAll(t, r, validated, r.Version()+1)
	activated, err := r.Activate()
	require.NoError(t, err)
	applyAll(t, r, activated, r.Version()+1)

	returned, err := r.MarkAsReturned(due.Add(-time.Hour), 0, false)
	require.NoError(t, err)
	applyAll(t, r, returned, r.Version()+1)

	assert.Equal(t, reservation.StatusReturned, r.Status)
}

func TestMarkAsReturnedWithPurchaseYieldsBoughtStatus(t *testing.T) {
	due := time.Now().Add(-14 * 24 * time.Hour)
	r := seedReservation(t, due)

	validated, err := r.MarkValidated(19.99)
	require.NoError(t, err)
	applyAll(t, r, validated, r.Version()+1)
	activated, err := r.Activate()
	require.NoError(t, err)
	applyAll(t, r, activated, r.Version()+1)

	returned, err := r.MarkAsReturned(time.Now(), 20.0, true)
	require.NoError(t, err)
	applyAll(t, r, returned, r.Version()+1)

	assert.Equal(t, reservation.StatusBought, r.Status)
}

func TestExtendDueDateRejectsNonFutureDate(t *testing.T) {
	due := time.Now().Add(14 * 24 * time.Hour)
	r := seedReservation(t, due)
	_, err := r.ExtendDueDate(due.Add(-time.Hour))
	assert.Error(t, err)
}

func TestExtendDueDateAppliesNewDate(t *testing.T) {
	due := time.Now().Add(14 * 24 * time.Hour)
	r := seedReservation(t, due)
	newDue := due.Add(7 * 24 * time.Hour)

	events, err := r.ExtendDueDate(newDue)
	require.NoError(t, err)
	applyAll(t, r, events, r.Version()+1)

	assert.True(t, r.DueDate.Equal(newDue))
}
