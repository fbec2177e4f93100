package eventbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

type testPayload struct{ N int }

func (testPayload) EventType() string { return "TestEvent" }

func buildEvent(t *testing.T, aggID string, n int) eventmodel.DomainEvent {
	t.Helper()
	e, err := eventmodel.New(aggID, "test", testPayload{N: n}, eventmodel.Metadata{})
	require.NoError(t, err)
	e.Version = int64(n + 1)
	return e
}

type recordingSink struct {
	mu      sync.Mutex
	records []string
}

func (r *recordingSink) Record(_ context.Context, subscriber string, e eventmodel.DomainEvent, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, subscriber+":"+e.EventType)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Per-aggregate ordering (spec section 8): events for the same
// aggregateId are delivered to a single subscriber in version order
// even though they're published concurrently with other aggregates.
func TestPublishPreservesPerAggregateOrder(t *testing.T) {
	bus := eventbus.New(nil, 64, rate.NewLimiter(rate.Inf, 1))
	aggID := uuid.NewString()

	var mu sync.Mutex
	var seen []int
	done := make(chan struct{})

	bus.Subscribe("TestEvent", "recorder", func(_ context.Context, e eventmodel.DomainEvent) error {
		var p testPayload
		require.NoError(t, e.Decode(&p))
		mu.Lock()
		seen = append(seen, p.N)
		if len(seen) == 10 {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(context.Background(), buildEvent(t, aggID, i)))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, n := range seen {
		assert.Equal(t, i, n)
	}
}

// Dead-lettering (spec section 4.2): a handler that always fails
// exhausts retries and is recorded in the dead-letter sink.
func TestPublishDeadLettersExhaustedHandler(t *testing.T) {
	sink := &recordingSink{}
	bus := eventbus.New(sink, 64, rate.NewLimiter(rate.Inf, 1))
	aggID := uuid.NewString()

	var calls int
	var mu sync.Mutex
	done := make(chan struct{})

	bus.Subscribe("TestEvent", "always-fails", func(_ context.Context, _ eventmodel.DomainEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("boom")
	})
	bus.Subscribe("TestEvent_FAILED", "failure-watcher", func(_ context.Context, _ eventmodel.DomainEvent) error {
		close(done)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), buildEvent(t, aggID, 0)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure event")
	}

	assert.Equal(t, 1, sink.count())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, eventstore.MaxAttempts, calls, "a permanently failing handler should be retried MaxAttempts times before dead-lettering")
}
