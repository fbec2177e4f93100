// Package eventbus implements the typed pub/sub bus of spec section
// 4.2: at-least-once delivery, in-order delivery per (subscriber,
// aggregateId), retry with the shared backoff policy, and
// dead-lettering of exhausted handlers.
//
// Grounded on plaenen-eventstore's pkg/messaging.EventBus shape
// (Subscribe/Publish/Unsubscribe, a Handler returning an error to
// signal retry) adapted from a NATS-backed transport to purely
// in-process per-aggregateId serialized queues, since section 1 scopes
// the actual broker/transport out of the core.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

// Handler processes one event. Returning an error signals the bus to
// retry under the shared backoff policy; handlers must be idempotent
// since delivery is at-least-once.
type Handler func(ctx context.Context, e eventmodel.DomainEvent) error

// Subscription lets a caller stop receiving events.
type Subscription interface {
	Unsubscribe()
}

// DeadLetterSink records events a subscriber could not process after
// exhausting retries, keyed by (eventType, aggregateId, version) per
// spec section 4.2.
type DeadLetterSink interface {
	Record(ctx context.Context, subscriberName string, e eventmodel.DomainEvent, lastErr error)
}

type subscriber struct {
	name    string
	handler Handler
}

// Bus dispatches concurrently across aggregates and serially per
// aggregateId: each aggregateId gets its own bounded queue and
// goroutine, so ordering holds per (subscriber, aggregateId) without a
// single global lock.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]*subscriberHandle // eventType -> subscribers
	queues      map[string]*keyQueue           // aggregateId -> queue
	deadLetter  DeadLetterSink
	queueLimit  int
	limiter     *rate.Limiter
}

type subscriberHandle struct {
	eventType string
	sub       subscriber
	revoked   bool
}

func (h *subscriberHandle) Unsubscribe() { h.revoked = true }

// New builds a Bus. queueLimit bounds each per-aggregateId queue
// (back-pressure per design note 9); limiter throttles how fast a
// single key's queue drains so one noisy aggregate can't starve
// others.
func New(deadLetter DeadLetterSink, queueLimit int, limiter *rate.Limiter) *Bus {
	if queueLimit <= 0 {
		queueLimit = 256
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Bus{
		subscribers: make(map[string][]*subscriberHandle),
		queues:      make(map[string]*keyQueue),
		deadLetter:  deadLetter,
		queueLimit:  queueLimit,
		limiter:     limiter,
	}
}

// Subscribe registers handler for eventType, identified by name for
// dead-letter attribution.
func (b *Bus) Subscribe(eventType, name string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := &subscriberHandle{eventType: eventType, sub: subscriber{name: name, handler: handler}}
	b.subscribers[eventType] = append(b.subscribers[eventType], h)
	return h
}

// Publish fans e out to every live subscriber of e.EventType, each
// dispatched onto e.AggregateID's serialized per-key queue.
func (b *Bus) Publish(ctx context.Context, e eventmodel.DomainEvent) error {
	b.mu.Lock()
	handles := append([]*subscriberHandle(nil), b.subscribers[e.EventType]...)
	queue := b.queueFor(e.AggregateID)
	b.mu.Unlock()

	for _, h := range handles {
		if h.revoked {
			continue
		}
		sub := h.sub
		if err := queue.enqueue(ctx, func(ctx context.Context) {
			b.dispatch(ctx, sub, e)
		}); err != nil {
			return fmt.Errorf("eventbus: enqueue for %s: %w", e.AggregateID, err)
		}
	}
	return nil
}

func (b *Bus) queueFor(aggregateID string) *keyQueue {
	q, ok := b.queues[aggregateID]
	if !ok {
		q = newKeyQueue(b.queueLimit, b.limiter)
		b.queues[aggregateID] = q
	}
	return q
}

// dispatch runs handler under the shared retry policy; on exhaustion it
// dead-letters the event and publishes a derived "<EventType>_FAILED"
// event so the rest of the system can react.
func (b *Bus) dispatch(ctx context.Context, sub subscriber, e eventmodel.DomainEvent) {
	var lastErr error
	err := retryHandler(ctx, func() error {
		err := sub.handler(ctx, e)
		lastErr = err
		return err
	})
	if err == nil {
		return
	}

	if b.deadLetter != nil {
		b.deadLetter.Record(ctx, sub.name, e, lastErr)
	}

	failure, buildErr := eventmodel.NewFailureEvent(e, lastErr.Error(), "HANDLER_EXHAUSTED")
	if buildErr != nil {
		return
	}
	_ = b.Publish(ctx, failure)
}

// retryHandler runs op up to eventstore.MaxAttempts times under
// eventstore.Policy's backoff, retrying any error op returns — unlike
// eventstore.Retry, which only retries ErrConcurrencyConflict and is
// built for aggregate appends, a handler's error is just as likely a
// transient decode or downstream-call failure as a concurrency
// conflict, and section 4.2 retries it the same way regardless.
func retryHandler(ctx context.Context, op func() error) error {
	b := eventstore.Policy()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(eventstore.MaxAttempts))
	return err
}
