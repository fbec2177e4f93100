// Package cqrs factors the "load → rehydrate → decide → append →
// publish" shape shared by every bounded context's command handlers
// (spec section 2/4.3.1) into one generic helper, so Book, Reservation
// and Wallet command handlers differ only in their decide step.
package cqrs

import (
	"context"
	"fmt"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

// Aggregate is the contract ExecuteCommand needs from a domain
// aggregate: identity, version, and the ability to fold a stored event
// back into its own state during rehydration.
type Aggregate interface {
	aggregate.Applier
	aggregate.Tracker
	AggregateID() string
	AggregateType() string
	Version() int64
}

// Decider runs the domain decision against the hydrated aggregate and
// returns the events that decision produces, not yet stamped with a
// version or globalVersion — ExecuteCommand's store append does that.
type Decider[A Aggregate] func(agg A) ([]eventmodel.EventPayload, error)

// ExecuteCommand loads agg's existing stream (if any), rehydrates it,
// runs decide, and appends the resulting events under optimistic
// concurrency with the shared retry policy, publishing each stored
// event to bus afterward. meta is stamped onto every produced event;
// callers typically build it via eventmodel.WithCausation from the
// triggering request or upstream event.
func ExecuteCommand[A Aggregate](
	ctx context.Context,
	store eventstore.Store,
	bus *eventbus.Bus,
	agg A,
	meta eventmodel.Metadata,
	decide Decider[A],
) ([]eventmodel.DomainEvent, error) {
	existing, err := store.LoadEvents(ctx, agg.AggregateID())
	if err != nil {
		return nil, fmt.Errorf("cqrs: load %s: %w", agg.AggregateID(), err)
	}
	if len(existing) > 0 {
		if err := aggregate.Rehydrate(agg, existing); err != nil {
			return nil, fmt.Errorf("cqrs: rehydrate %s: %w", agg.AggregateID(), err)
		}
	}

	stored, err := eventstore.AppendBatch(ctx, store, agg.AggregateID(), agg.AggregateType(), agg.Version(), func(expectedVersion int64) ([]eventmodel.DomainEvent, error) {
		payloads, err := decide(agg)
		if err != nil {
			return nil, eventstore.Permanent(err)
		}
		events := make([]eventmodel.DomainEvent, len(payloads))
		for i, p := range payloads {
			e, err := eventmodel.New(agg.AggregateID(), agg.AggregateType(), p, meta)
			if err != nil {
				return nil, eventstore.Permanent(err)
			}
			events[i] = e
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range stored {
		agg.AddDomainEvent(e)
	}
	defer agg.ClearDomainEvents()

	for _, e := range agg.PendingEvents() {
		if err := agg.ApplyEvent(e); err != nil {
			return nil, fmt.Errorf("cqrs: apply stored event %s to in-memory aggregate: %w", e.EventType, err)
		}
		if bus != nil {
			if err := bus.Publish(ctx, e); err != nil {
				return nil, fmt.Errorf("cqrs: publish %s: %w", e.EventType, err)
			}
		}
	}

	return stored, nil
}
