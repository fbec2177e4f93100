package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/libranexus/platform/pkg/eventmodel"
)

// storedEvent is the on-disk shape of the event_store collection: the
// envelope plus the compound unique key the duplicate-append guard
// relies on.
type storedEvent struct {
	eventmodel.DomainEvent `bson:",inline"`
}

// MongoStore is the production Store, backed by the event_store and
// counters collections described in spec section 6. Grounded on an
// earlier EventStore (span-per-operation, sentinel errors), ported from
// a serializable SQL transaction to an insert-then-detect-duplicate-key
// strategy appropriate to a document store with a compound unique index
// on (aggregateId, version).
type MongoStore struct {
	events    *mongo.Collection
	allocator *GlobalAllocator
	tracer    trace.Tracer
}

func NewMongoStore(events, counters *mongo.Collection) *MongoStore {
	return &MongoStore{
		events:    events,
		allocator: NewGlobalAllocator(counters),
		tracer:    otel.Tracer("libranexus/eventstore"),
	}
}

// EnsureIndexes creates the compound unique index on (aggregateId,
// version) and the secondary index on globalVersion. Called once at
// service startup; not part of the hot path.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aggregateId", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "globalVersion", Value: 1}},
		},
	})
	return err
}

func (s *MongoStore) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int64, events []eventmodel.DomainEvent) ([]eventmodel.DomainEvent, error) {
	if aggregateID == "" {
		return nil, ErrInvalidAggregateID
	}
	if len(events) == 0 {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "eventstore.append", trace.WithAttributes(
		attribute.String("aggregate.id", aggregateID),
		attribute.String("aggregate.type", aggregateType),
		attribute.Int64("expected.version", expectedVersion),
		attribute.Int("event.count", len(events)),
	))
	defer span.End()

	// The version check and batch insert run inside one session
	// transaction so a multi-event append is genuinely all-or-nothing: an
	// ordered InsertMany alone stops at the first error but leaves any docs
	// it already wrote in place. The global version block is reserved
	// outside the transaction, so an aborted append leaves a gap rather
	// than handing the same global versions out again.
	session, err := s.events.Database().Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("%w: start session: %v", ErrEventSaveFailed, err)
	}
	defer session.EndSession(ctx)

	var stamped []eventmodel.DomainEvent
	_, err = session.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		current, err := s.CurrentVersion(txCtx, aggregateID)
		if err != nil {
			return nil, err
		}
		if current != expectedVersion {
			return nil, ErrConcurrencyConflict
		}

		globalStart, err := s.allocator.Reserve(ctx, int64(len(events)))
		if err != nil {
			return nil, err
		}

		docs := make([]any, len(events))
		stamped = make([]eventmodel.DomainEvent, len(events))
		for i, e := range events {
			e.Version = expectedVersion + int64(i) + 1
			e.GlobalVersion = globalStart + int64(i)
			e.AggregateID = aggregateID
			e.AggregateType = aggregateType
			e.Metadata.StoredAt = time.Now().UTC()
			stamped[i] = e
			docs[i] = storedEvent{DomainEvent: e}
		}

		if _, err := s.events.InsertMany(txCtx, docs); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("%w: %v", ErrEventSaveFailed, err)
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			span.SetAttributes(attribute.Bool("conflict.detected", true))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return stamped, nil
}

func (s *MongoStore) LoadEvents(ctx context.Context, aggregateID string) ([]eventmodel.DomainEvent, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.load", trace.WithAttributes(
		attribute.String("aggregate.id", aggregateID),
	))
	defer span.End()

	findOpts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cur, err := s.events.Find(ctx, bson.M{"aggregateId": aggregateID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventLookupFailed, err)
	}
	defer cur.Close(ctx)

	var events []eventmodel.DomainEvent
	for cur.Next(ctx) {
		var doc storedEvent
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEventLookupFailed, err)
		}
		events = append(events, doc.DomainEvent)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventLookupFailed, err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

func (s *MongoStore) CurrentVersion(ctx context.Context, aggregateID string) (int64, error) {
	findOpts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var doc storedEvent
	err := s.events.FindOne(ctx, bson.M{"aggregateId": aggregateID}, findOpts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrEventLookupFailed, err)
	}
	return doc.Version, nil
}

func (s *MongoStore) FindAggregateIDByNaturalKey(ctx context.Context, aggregateType string, predicate map[string]any) (string, bool, error) {
	filter := bson.M{"aggregateType": aggregateType}
	for k, v := range predicate {
		filter["payload."+k] = v
	}

	findOpts := options.FindOne().SetSort(bson.D{{Key: "version", Value: 1}})
	var doc storedEvent
	err := s.events.FindOne(ctx, filter, findOpts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrEventLookupFailed, err)
	}
	return doc.AggregateID, true, nil
}
