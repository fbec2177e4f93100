// Package eventstore implements the append-only, per-aggregate
// versioned event log described in spec section 4.1: optimistic
// concurrency on append, rehydration on load, and a global ordering
// counter for cross-aggregate debugging and projection consistency
// checks.
package eventstore

import (
	"context"

	"github.com/libranexus/platform/pkg/eventmodel"
)

// Store is the narrow interface command handlers and tests depend on.
// MongoStore is the only production implementation; an in-memory
// implementation with identical unique-key semantics backs the
// property-based tests in eventstore_test.go.
type Store interface {
	// AppendEvents assigns sequential versions starting at
	// expectedVersion+1, reserves a contiguous block of global versions,
	// and performs a single atomic batch insert. A stale expectedVersion
	// or a concurrent writer racing to the same version both surface as
	// ErrConcurrencyConflict.
	AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int64, events []eventmodel.DomainEvent) ([]eventmodel.DomainEvent, error)

	// LoadEvents returns every event for aggregateID sorted ascending by
	// version.
	LoadEvents(ctx context.Context, aggregateID string) ([]eventmodel.DomainEvent, error)

	// CurrentVersion returns the highest stored version for aggregateID,
	// or 0 if none exists.
	CurrentVersion(ctx context.Context, aggregateID string) (int64, error)

	// FindAggregateIDByNaturalKey looks up the aggregate id of the
	// lowest-version stored event of aggregateType whose payload fields
	// equal predicate (e.g. uniqueness checks by ISBN or userId). Later
	// events of that aggregate, such as a deletion, are not considered.
	// ok is false when nothing matches.
	FindAggregateIDByNaturalKey(ctx context.Context, aggregateType string, predicate map[string]any) (id string, ok bool, err error)
}

// BatchBuilder constructs the events to append given the expected
// version to append after. It is called again on every retry so it can
// recompute any version-dependent payload (e.g. Version fields embedded
// in an event's own bookkeeping).
type BatchBuilder func(expectedVersion int64) ([]eventmodel.DomainEvent, error)

// AppendBatch wraps Store.AppendEvents with the capped-exponential-
// backoff retry policy from spec section 4.1: base 25ms, cap 1s, ±25%
// jitter, up to 5 attempts, retried only on ErrConcurrencyConflict. On
// each retry it reloads the current version so a stale expectedVersion
// from a prior attempt doesn't deterministically re-conflict.
func AppendBatch(ctx context.Context, store Store, aggregateID, aggregateType string, expectedVersion int64, build BatchBuilder) ([]eventmodel.DomainEvent, error) {
	var stored []eventmodel.DomainEvent
	first := true
	err := Retry(ctx, func() error {
		v := expectedVersion
		if !first {
			current, err := store.CurrentVersion(ctx, aggregateID)
			if err != nil {
				return Permanent(err)
			}
			v = current
		}
		first = false

		events, err := build(v)
		if err != nil {
			return Permanent(err)
		}
		s, err := store.AppendEvents(ctx, aggregateID, aggregateType, v, events)
		if err != nil {
			return err
		}
		stored = s
		return nil
	})
	return stored, err
}
