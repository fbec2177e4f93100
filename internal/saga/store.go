package saga

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the reservation_payment_sagas collection wrapper (spec
// section 6), indexed on reservationId (unique) and status/step.
type Store struct {
	collection *mongo.Collection
}

func NewStore(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reservationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "step", Value: 1}}},
	})
	return err
}

// Start creates the saga row for a newly-created reservation. Returns
// false without error if a row already exists (duplicate
// ReservationCreated delivery).
func (s *Store) Start(ctx context.Context, reservationID, userID, bookID, causationID string) (bool, error) {
	now := time.Now().UTC()
	_, err := s.collection.InsertOne(ctx, State{
		ID:              reservationID,
		ReservationID:   reservationID,
		UserID:          userID,
		BookID:          bookID,
		Step:            StepAwaitingBookValidation,
		LastCausationID: causationID,
		StartedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("saga: start %s: %w", reservationID, err)
	}
	return true, nil
}

// Get loads the saga row for reservationID, ok=false if none exists.
func (s *Store) Get(ctx context.Context, reservationID string) (State, bool, error) {
	var st State
	err := s.collection.FindOne(ctx, bson.M{"_id": reservationID}).Decode(&st)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("saga: get %s: %w", reservationID, err)
	}
	return st, true, nil
}

// Transition applies mutate to the saga row for reservationID if
// causationID hasn't already been processed, persisting the result as
// an upsert (spec section 4.5: "state updates are upserts; every
// transition sets updatedAt"). applied=false means the delivery was a
// duplicate and nothing changed.
func (s *Store) Transition(ctx context.Context, reservationID, causationID string, mutate func(st *State)) (State, bool, error) {
	st, found, err := s.Get(ctx, reservationID)
	if err != nil {
		return State{}, false, err
	}
	if !found {
		return State{}, false, fmt.Errorf("saga: no row for reservation %s", reservationID)
	}
	if st.alreadyProcessed(causationID) {
		return st, false, nil
	}

	mutate(&st)
	st.LastCausationID = causationID
	st.UpdatedAt = time.Now().UTC()

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": reservationID},
		bson.M{"$set": st},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return State{}, false, fmt.Errorf("saga: transition %s: %w", reservationID, err)
	}
	return st, true, nil
}

// ScanTimedOut returns every saga row in an awaiting step whose
// updatedAt is older than olderThan, for the watchdog of spec section
// 4.5.
func (s *Store) ScanTimedOut(ctx context.Context, olderThan time.Time) ([]State, error) {
	cur, err := s.collection.Find(ctx, bson.M{
		"step":      bson.M{"$in": bson.A{StepAwaitingBookValidation, StepAwaitingPayment}},
		"updatedAt": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return nil, fmt.Errorf("saga: scan timed out: %w", err)
	}
	defer cur.Close(ctx)

	var rows []State
	for cur.Next(ctx) {
		var st State
		if err := cur.Decode(&st); err != nil {
			return nil, fmt.Errorf("saga: decode timed-out row: %w", err)
		}
		rows = append(rows, st)
	}
	return rows, cur.Err()
}
