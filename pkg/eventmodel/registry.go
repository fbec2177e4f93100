package eventmodel

import (
	"fmt"
	"sync"
)

// Decoder produces a zero-valued EventPayload for a given event type,
// ready to be passed to DomainEvent.Decode.
type Decoder func() EventPayload

// Registry maps eventType to the concrete payload type that decodes it.
// Unknown event types are the caller's signal to dead-letter rather than
// drop the event, per design note 9.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register associates an event type with a decoder. Re-registering the
// same type is a programmer error and panics, failing fast on startup
// wiring mistakes rather than silently overwriting a decoder.
func (r *Registry) Register(eventType string, dec Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[eventType]; exists {
		panic(fmt.Sprintf("eventmodel: duplicate registration for %q", eventType))
	}
	r.decoders[eventType] = dec
}

// Decode looks up the registered decoder for e.EventType and unmarshals
// the payload into it. ErrUnknownEventType signals the event should be
// dead-lettered instead of applied.
func (r *Registry) Decode(e DomainEvent) (EventPayload, error) {
	r.mu.RLock()
	dec, ok := r.decoders[e.EventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, e.EventType)
	}
	payload := dec()
	if err := e.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", e.EventType, err)
	}
	return payload, nil
}

// ErrUnknownEventType is returned by Registry.Decode for an unregistered
// event type.
var ErrUnknownEventType = fmt.Errorf("eventmodel: unknown event type")

// FailurePayload is the payload shape for <SOURCE_EVENT>_FAILED events
// (spec section 6).
type FailurePayload struct {
	SourceEventType string `bson:"sourceEventType" json:"sourceEventType"`
	Reason          string `bson:"reason" json:"reason"`
	Code            string `bson:"code" json:"code"`
	CorrelationID   string `bson:"correlationId" json:"correlationId"`
}

func (FailurePayload) EventType() string { return "" } // overridden per-instance, see NewFailureEvent

// NewFailureEvent builds the derived error event published when a
// handler exhausts retries processing source (spec section 4.2/6).
func NewFailureEvent(source DomainEvent, reason, code string) (DomainEvent, error) {
	payload := failurePayload{
		sourceEventType: source.EventType,
		FailurePayload: FailurePayload{
			SourceEventType: source.EventType,
			Reason:          reason,
			Code:            code,
			CorrelationID:   source.Metadata.CorrelationID,
		},
	}
	return New(source.AggregateID, source.AggregateType, payload, WithCausation(source, source.Metadata.UserID))
}

// failurePayload overrides EventType() so each derived failure event is
// tagged "<SourceEventType>_FAILED" without needing one struct per
// source event type.
type failurePayload struct {
	FailurePayload
	sourceEventType string
}

func (f failurePayload) EventType() string { return f.sourceEventType + "_FAILED" }
