package wallet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// Handler adapts Commands/Queries onto HTTP, mirroring
// internal/catalog/http.go's shape.
type Handler struct {
	commands *Commands
	queries  *Queries
}

func NewHandler(commands *Commands, queries *Queries) *Handler {
	return &Handler{commands: commands, queries: queries}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/wallets", h.handleCreate)
	r.Get("/wallets/{id}", h.handleGet)
	r.Post("/wallets/{id}/charge", h.handleCharge)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wallet, err := h.commands.CreateWallet(r.Context(), req.UserID, eventmodel.Metadata{})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(wallet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields := projection.ParseFields(r.URL.Query().Get("fields"))
	row, found, err := h.queries.GetByID(r.Context(), id, fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "wallet not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(row)
}

func (h *Handler) handleCharge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		ReservationID string  `json:"reservationId"`
		Amount        float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wallet, err := h.commands.Charge(r.Context(), id, req.ReservationID, req.Amount, eventmodel.Metadata{})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	json.NewEncoder(w).Encode(wallet)
}

func writeCommandError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrInsufficientFunds) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
