package saga

import "testing"

func TestAlreadyProcessedIgnoresEmptyCausationID(t *testing.T) {
	st := &State{LastCausationID: "r1#ReservationCreated#1"}
	if st.alreadyProcessed("") {
		t.Fatalf("empty causationId must never be treated as a duplicate")
	}
}

func TestAlreadyProcessedDetectsDuplicateDelivery(t *testing.T) {
	st := &State{LastCausationID: "r1#BookValidationResult#2"}
	if !st.alreadyProcessed("r1#BookValidationResult#2") {
		t.Fatalf("matching causationId must be treated as a duplicate")
	}
}

func TestAlreadyProcessedAllowsNewCausationID(t *testing.T) {
	st := &State{LastCausationID: "r1#BookValidationResult#2"}
	if st.alreadyProcessed("r1#WalletPaymentSuccess#1") {
		t.Fatalf("a new causationId must not be treated as a duplicate")
	}
}
