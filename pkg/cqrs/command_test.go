package cqrs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/cqrs"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

type counterOpened struct{ Start int }

func (counterOpened) EventType() string { return "CounterOpened" }

type counterIncremented struct{ By int }

func (counterIncremented) EventType() string { return "CounterIncremented" }

// counter is a minimal test aggregate exercising ExecuteCommand without
// pulling in a real bounded context.
type counter struct {
	aggregate.Root
	value int
}

func newCounter(id string) *counter {
	c := &counter{}
	c.Init(id)
	return c
}

func (c *counter) AggregateID() string   { return c.ID() }
func (c *counter) AggregateType() string { return "counter" }

func (c *counter) ApplyEvent(e eventmodel.DomainEvent) error {
	switch e.EventType {
	case "CounterOpened":
		var p counterOpened
		if err := e.Decode(&p); err != nil {
			return err
		}
		c.value = p.Start
	case "CounterIncremented":
		var p counterIncremented
		if err := e.Decode(&p); err != nil {
			return err
		}
		c.value += p.By
	default:
		return errors.New("counter: unknown event type " + e.EventType)
	}
	c.SetVersion(e.Version)
	return nil
}

// memoryStore mirrors pkg/eventstore's internal test double; duplicated
// here rather than exported from eventstore to keep that package's only
// production Store unexported-test-double boundary intact.
type memoryStore struct {
	mu        sync.Mutex
	byAgg     map[string][]eventmodel.DomainEvent
	globalSeq int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byAgg: make(map[string][]eventmodel.DomainEvent)}
}

func (s *memoryStore) AppendEvents(_ context.Context, aggregateID, aggregateType string, expectedVersion int64, events []eventmodel.DomainEvent) ([]eventmodel.DomainEvent, error) {
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

func (s *memoryStore) FindAggregateIDByNaturalKey(context.Context, string, map[string]any) (string, bool, error) {
	return "", false, nil
}

var _ eventstore.Store = (*memoryStore)(nil)

func TestExecuteCommandAppendsAndAppliesInOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	id := uuid.NewString()
	c := newCounter(id)

	_, err := cqrs.ExecuteCommand(ctx, store, nil, c, eventmodel.Metadata{}, func(a *counter) ([]eventmodel.EventPayload, error) {
		return []eventmodel.EventPayload{counterOpened{Start: 10}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, c.value)
	assert.Equal(t, int64(1), c.Version())

	_, err = cqrs.ExecuteCommand(ctx, store, nil, c, eventmodel.Metadata{}, func(a *counter) ([]eventmodel.EventPayload, error) {
		return []eventmodel.EventPayload{counterIncremented{By: 5}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 15, c.value)
	assert.Equal(t, int64(2), c.Version())
}

func TestExecuteCommandRehydratesBeforeDeciding(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	id := uuid.NewString()

	seed := newCounter(id)
	_, err := cqrs.ExecuteCommand(ctx, store, nil, seed, eventmodel.Metadata{}, func(a *counter) ([]eventmodel.EventPayload, error) {
		return []eventmodel.EventPayload{counterOpened{Start: 100}}, nil
	})
	require.NoError(t, err)

	fresh := newCounter(id)
	var sawStartValue int
	_, err = cqrs.ExecuteCommand(ctx, store, nil, fresh, eventmodel.Metadata{}, func(a *counter) ([]eventmodel.EventPayload, error) {
		sawStartValue = a.value
		return []eventmodel.EventPayload{counterIncremented{By: 1}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, sawStartValue)
	assert.Equal(t, int64(2), fresh.Version())
}

func TestExecuteCommandPropagatesDeciderError(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	c := newCounter(uuid.NewString())

	wantErr := errors.New("domain rule violated")
	_, err := cqrs.ExecuteCommand(ctx, store, nil, c, eventmodel.Metadata{}, func(a *counter) ([]eventmodel.EventPayload, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, int64(0), c.Version())
}
