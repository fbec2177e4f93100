// Package admin exposes a small operator-facing surface over the raw
// event log: decoding arbitrary stored events through the shared
// registry rather than a context-specific switch, for ad hoc
// inspection of an aggregate's history (spec section 6's audit trail,
// design note 9's tagged-variant registry).
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

type Handler struct {
	store    eventstore.Store
	registry *eventmodel.Registry
}

func NewHandler(store eventstore.Store, registry *eventmodel.Registry) *Handler {
	return &Handler{store: store, registry: registry}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/admin/events/{aggregateId}", h.handleHistory)
}

// decodedEvent is the JSON shape returned per event: the envelope's
// bookkeeping fields plus the typed payload decoded via the registry,
// instead of the opaque bson.Raw the envelope stores internally.
type decodedEvent struct {
	EventType     string `json:"eventType"`
	Version       int64  `json:"version"`
	GlobalVersion int64  `json:"globalVersion"`
	Timestamp     string `json:"timestamp"`
	Payload       any    `json:"payload"`
}

// handleHistory replays an aggregate's full event stream decoded
// through the registry. An event type no pack context has registered
// decodes as a null payload rather than failing the whole request, so
// one stale or forward-incompatible event can't hide the rest of an
// aggregate's history from an operator.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	aggregateID := chi.URLParam(r, "aggregateId")

	events, err := h.store.LoadEvents(r.Context(), aggregateID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]decodedEvent, 0, len(events))
	for _, e := range events {
		var payload any
		if decoded, err := h.registry.Decode(e); err == nil {
			payload = decoded
		}
		out = append(out, decodedEvent{
			EventType:     e.EventType,
			Version:       e.Version,
			GlobalVersion: e.GlobalVersion,
			Timestamp:     e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Payload:       payload,
		})
	}

	json.NewEncoder(w).Encode(out)
}
