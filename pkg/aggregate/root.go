// Package aggregate provides the base abstraction every bounded
// context's aggregate embeds: identity, version and pending-events
// bookkeeping (spec section 3, "AggregateRoot").
package aggregate

import (
	"fmt"
	"sort"

	"github.com/libranexus/platform/pkg/eventmodel"
)

// Root is embedded by every concrete aggregate (Book, Reservation,
// Wallet). It never interprets event payloads itself — ApplyEvent is
// provided by the embedding type — it only tracks identity, version and
// the buffer of events produced by the current command.
type Root struct {
	id      string
	version int64
	pending []eventmodel.DomainEvent
}

// Init seeds identity; called once by the aggregate's constructor.
func (r *Root) Init(id string) {
	r.id = id
}

func (r *Root) ID() string      { return r.id }
func (r *Root) Version() int64  { return r.version }

// SetVersion is used by Rehydrate and by the command pipeline after a
// successful append; it is never called directly by domain logic.
func (r *Root) SetVersion(v int64) { r.version = v }

// AddDomainEvent buffers an event produced by the aggregate's own
// behavior, pending persistence.
func (r *Root) AddDomainEvent(e eventmodel.DomainEvent) {
	r.pending = append(r.pending, e)
}

// PendingEvents returns the buffered, not-yet-persisted events.
func (r *Root) PendingEvents() []eventmodel.DomainEvent {
	return r.pending
}

// ClearDomainEvents drains the pending buffer after persistence.
func (r *Root) ClearDomainEvents() {
	r.pending = nil
}

// Applier is implemented by every concrete aggregate: ApplyEvent updates
// in-memory state from one stored event and must itself call SetVersion.
type Applier interface {
	ApplyEvent(e eventmodel.DomainEvent) error
}

// Tracker is the pending-events bookkeeping every concrete aggregate
// gets for free by embedding Root. pkg/cqrs's command pipeline uses it
// to stage the events a successful append produced before they're
// applied to in-memory state and published, rather than threading that
// slice through as a separate return value.
type Tracker interface {
	AddDomainEvent(e eventmodel.DomainEvent)
	PendingEvents() []eventmodel.DomainEvent
	ClearDomainEvents()
}

// Rehydrate sorts events ascending by version and applies each in turn,
// per spec section 3 ("rehydrate(events) sorts by version and applies
// each, setting version to the last applied").
func Rehydrate(agg Applier, events []eventmodel.DomainEvent) error {
	sorted := make([]eventmodel.DomainEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for i, e := range sorted {
		if i > 0 && e.Version == sorted[i-1].Version {
			return fmt.Errorf("aggregate: duplicate version %d during rehydration", e.Version)
		}
		if err := agg.ApplyEvent(e); err != nil {
			return fmt.Errorf("aggregate: apply event %s v%d: %w", e.EventType, e.Version, err)
		}
	}
	return nil
}
