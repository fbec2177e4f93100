package eventbus

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/libranexus/platform/pkg/eventmodel"
)

// deadLetterDoc is the on-disk shape of the dead_letters collection
// (spec section 6), keyed by (eventType, aggregateId, version) so a
// retried replay of the same event doesn't pile up duplicate rows.
type deadLetterDoc struct {
	EventType   string    `bson:"eventType"`
	AggregateID string    `bson:"aggregateId"`
	Version     int64     `bson:"version"`
	Subscriber  string    `bson:"subscriber"`
	Reason      string    `bson:"reason"`
	Event       bson.Raw  `bson:"event"`
	RecordedAt  time.Time `bson:"recordedAt"`
}

// MongoDeadLetterSink persists exhausted handler failures to the
// dead_letters collection for operator inspection and manual replay.
type MongoDeadLetterSink struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoDeadLetterSink builds a sink writing to collection. A nil
// logger falls back to a no-op logger, the way New falls back to a
// default limiter when given a nil one.
func NewMongoDeadLetterSink(collection *mongo.Collection, logger *zap.Logger) *MongoDeadLetterSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoDeadLetterSink{collection: collection, logger: logger}
}

func (s *MongoDeadLetterSink) Record(ctx context.Context, subscriberName string, e eventmodel.DomainEvent, lastErr error) {
	raw, err := bson.Marshal(e)
	if err != nil {
		raw = nil
	}
	reason := "unknown error"
	if lastErr != nil {
		reason = lastErr.Error()
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{
			"eventType":   e.EventType,
			"aggregateId": e.AggregateID,
			"version":     e.Version,
			"subscriber":  subscriberName,
		},
		bson.M{"$set": deadLetterDoc{
			EventType:   e.EventType,
			AggregateID: e.AggregateID,
			Version:     e.Version,
			Subscriber:  subscriberName,
			Reason:      reason,
			Event:       raw,
			RecordedAt:  time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error("dead-letter write failed",
			zap.String("eventType", e.EventType),
			zap.String("aggregateId", e.AggregateID),
			zap.Int64("version", e.Version),
			zap.String("subscriber", subscriberName),
			zap.Error(err),
		)
	}
}
