// Package eventmodel defines the canonical domain event envelope shared
// by every bounded context: the aggregate store appends it, the event
// bus transports it, and projections consume it.
package eventmodel

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// EventPayload is implemented by every typed event payload so that the
// envelope can carry a tagged variant instead of an opaque blob.
type EventPayload interface {
	EventType() string
}

// Metadata carries correlation/causation tracing and storage bookkeeping.
type Metadata struct {
	CorrelationID string    `bson:"correlationId" json:"correlationId"`
	CausationID   string    `bson:"causationId" json:"causationId"`
	UserID        string    `bson:"userId,omitempty" json:"userId,omitempty"`
	StoredAt      time.Time `bson:"storedAt" json:"storedAt"`
}

// DomainEvent is the canonical envelope described in spec section 3.
//
// Payload is stored as raw BSON so the event store never needs to know
// about concrete event types. Registry.Decode in registry.go decodes it
// into a typed EventPayload by EventType alone; SchemaVersion is not
// consulted. Most consumers decode directly with Decode.
type DomainEvent struct {
	AggregateID   string        `bson:"aggregateId" json:"aggregateId"`
	AggregateType string        `bson:"aggregateType" json:"aggregateType"`
	EventType     string        `bson:"eventType" json:"eventType"`
	Version       int64         `bson:"version" json:"version"`
	GlobalVersion int64         `bson:"globalVersion" json:"globalVersion"`
	SchemaVersion int           `bson:"schemaVersion" json:"schemaVersion"`
	Timestamp     time.Time     `bson:"timestamp" json:"timestamp"`
	Payload       bson.Raw      `bson:"payload" json:"payload"`
	Metadata      Metadata      `bson:"metadata" json:"metadata"`
}

// New builds an unstored DomainEvent from a typed payload. Version and
// GlobalVersion are left zero; the aggregate store assigns them at
// append time.
func New(aggregateID, aggregateType string, payload EventPayload, meta Metadata) (DomainEvent, error) {
	raw, err := bson.Marshal(payload)
	if err != nil {
		return DomainEvent{}, err
	}
	return DomainEvent{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     payload.EventType(),
		SchemaVersion: 1,
		Timestamp:     time.Now().UTC(),
		Payload:       raw,
		Metadata:      meta,
	}, nil
}

// Decode unmarshals the event's payload into dst, which must be a
// pointer to a concrete EventPayload type matching e.EventType.
func (e DomainEvent) Decode(dst any) error {
	return bson.Unmarshal(e.Payload, dst)
}

// WithCausation returns metadata carrying the same CorrelationID as the
// source event and CausationID set to identify the source event,
// synthesizing a CorrelationID if the source never had one. This is the
// propagation rule of spec section 4.2.
func WithCausation(source DomainEvent, userID string) Metadata {
	corr := source.Metadata.CorrelationID
	if corr == "" {
		corr = source.AggregateID + ":" + source.EventType
	}
	return Metadata{
		CorrelationID: corr,
		CausationID:   causationID(source),
		UserID:        userID,
	}
}

func causationID(e DomainEvent) string {
	return e.AggregateID + "#" + e.EventType + "#" + strconv.FormatInt(e.Version, 10)
}
