package eventstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// counterDoc is the single "counters" collection document described in
// spec section 6: {_id:"globalVersion", seq:<n>}.
type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

const globalVersionCounterID = "globalVersion"

// GlobalAllocator reserves contiguous blocks of the single logical
// global-version counter (spec section 4.1/5). It never reuses a value,
// even for a failed append — gaps are expected and projections must
// tolerate them.
type GlobalAllocator struct {
	counters *mongo.Collection
}

func NewGlobalAllocator(counters *mongo.Collection) *GlobalAllocator {
	return &GlobalAllocator{counters: counters}
}

// Reserve atomically increments the counter by n and returns the first
// value in the reserved block; the block is [first, first+n).
func (a *GlobalAllocator) Reserve(ctx context.Context, n int64) (first int64, err error) {
	if n <= 0 {
		return 0, fmt.Errorf("eventstore: reserve count must be positive, got %d", n)
	}

	after := options.After
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(after)

	var doc counterDoc
	err = a.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": globalVersionCounterID},
		bson.M{"$inc": bson.M{"seq": n}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve global version block: %v", ErrEventSaveFailed, err)
	}

	return doc.Seq - n + 1, nil
}
