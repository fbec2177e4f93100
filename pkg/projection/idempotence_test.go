package projection

import (
	"testing"

	"pgregory.net/rapid"
)

// Projection idempotence (spec section 8): applying the same or an
// older event version than what's stored is always a no-op; only a
// strictly newer version ever applies.
func TestShouldApplyIsVersionMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		stored := rapid.Int64Range(0, 1000).Draw(rt, "stored")
		incoming := rapid.Int64Range(0, 1000).Draw(rt, "incoming")

		got := shouldApply(stored, incoming)
		want := incoming > stored
		if got != want {
			rt.Fatalf("shouldApply(%d, %d) = %v, want %v", stored, incoming, got, want)
		}
	})
}

func TestShouldApplyRejectsDuplicateDelivery(t *testing.T) {
	if shouldApply(5, 5) {
		t.Fatal("replaying the same version must be a no-op")
	}
}

func TestShouldApplyRejectsOutOfOrderOlderEvent(t *testing.T) {
	if shouldApply(5, 3) {
		t.Fatal("an older out-of-order event must never downgrade a projection")
	}
}
