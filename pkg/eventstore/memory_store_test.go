package eventstore_test

import (
	"context"
	"sync"

	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

// memoryStore is a minimal Store implementation with the same
// unique-(aggregateId,version)-key semantics as MongoStore, used so the
// concurrency and monotonicity properties in spec section 8 can be
// verified without a live MongoDB. It is deliberately not exported: the
// only production Store is MongoStore.
type memoryStore struct {
	mu       sync.Mutex
	byAgg    map[string][]eventmodel.DomainEvent
	globalSeq int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byAgg: make(map[string][]eventmodel.DomainEvent)}
}

func (s *memoryStore) AppendEvents(_ context.Context, aggregateID, aggregateType string, expectedVersion int64, events []eventmodel.DomainEvent) ([]eventmodel.DomainEvent, error) {
	if aggregateID == "" {
		return nil, eventstore.ErrInvalidAggregateID
	}
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.byAgg[aggregateID]
	current := int64(0)
	if len(existing) > 0 {
		current = existing[len(existing)-1].Version
	}
	if current != expectedVersion {
		return nil, eventstore.ErrConcurrencyConflict
	}

	stamped := make([]eventmodel.DomainEvent, len(events))
	for i, e := range events {
		e.AggregateID = aggregateID
		e.AggregateType = aggregateType
		e.Version = expectedVersion + int64(i) + 1
		s.globalSeq++
		e.GlobalVersion = s.globalSeq
		stamped[i] = e
	}

	s.byAgg[aggregateID] = append(append([]eventmodel.DomainEvent{}, existing...), stamped...)
	return stamped, nil
}

func (s *memoryStore) LoadEvents(_ context.Context, aggregateID string) ([]eventmodel.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eventmodel.DomainEvent, len(s.byAgg[aggregateID]))
	copy(out, s.byAgg[aggregateID])
	return out, nil
}

func (s *memoryStore) CurrentVersion(_ context.Context, aggregateID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.byAgg[aggregateID]
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Version, nil
}

func (s *memoryStore) FindAggregateIDByNaturalKey(_ context.Context, aggregateType string, predicate map[string]any) (string, bool, error) {
	return "", false, nil
}

var _ eventstore.Store = (*memoryStore)(nil)
