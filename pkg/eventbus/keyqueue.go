package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTimeout is how long a key's worker goroutine waits for new work
// before exiting. The next enqueue after that simply spins up a fresh
// one, so idle aggregates don't hold a goroutine forever (design note 9).
const idleTimeout = 2 * time.Minute

type task func(ctx context.Context)

// keyQueue serializes dispatch for a single aggregateId behind a bounded
// channel: one worker goroutine drains it in order, so every subscriber
// sees that aggregate's events in the order they were appended, and a
// slow subscriber applies back-pressure to its own key only.
type keyQueue struct {
	mu      sync.Mutex
	tasks   chan task
	limiter *rate.Limiter
	running bool
}

func newKeyQueue(limit int, limiter *rate.Limiter) *keyQueue {
	return &keyQueue{
		tasks:   make(chan task, limit),
		limiter: limiter,
	}
}

// enqueue submits t to the queue, starting the worker if it has gone
// idle. Returns an error if the queue is full, signaling the caller to
// retry publish under back-pressure rather than blocking indefinitely.
func (q *keyQueue) enqueue(ctx context.Context, t task) error {
	q.mu.Lock()
	if !q.running {
		q.running = true
		go q.run()
	}
	q.mu.Unlock()

	select {
	case q.tasks <- t:
		return nil
	default:
		return fmt.Errorf("eventbus: per-aggregate queue full")
	}
}

func (q *keyQueue) run() {
	for {
		select {
		case t := <-q.tasks:
			ctx := context.Background()
			if err := q.limiter.Wait(ctx); err == nil {
				t(ctx)
			}
		case <-time.After(idleTimeout):
			// Only stop if nothing raced in between the timeout firing
			// and us taking the lock; otherwise an enqueue could add to
			// tasks after we've decided no one is left to drain it.
			q.mu.Lock()
			select {
			case t := <-q.tasks:
				q.mu.Unlock()
				ctx := context.Background()
				if err := q.limiter.Wait(ctx); err == nil {
					t(ctx)
				}
				continue
			default:
				q.running = false
				q.mu.Unlock()
				return
			}
		}
	}
}
