package reservation

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// Handler adapts Commands/Queries onto HTTP the way
// internal/catalog/http.go does for Books.
type Handler struct {
	commands *Commands
	queries  *Queries
}

func NewHandler(commands *Commands, queries *Queries) *Handler {
	return &Handler{commands: commands, queries: queries}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/reservations", h.handleCreate)
	r.Get("/reservations", h.handleList)
	r.Get("/reservations/{id}", h.handleGet)
	r.Post("/reservations/{id}/return", h.handleReturn)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string    `json:"userId"`
		BookID  string    `json:"bookId"`
		DueDate time.Time `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.commands.CreateReservation(r.Context(), req.UserID, req.BookID, req.DueDate, eventmodel.Metadata{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
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
		http.Error(w, "reservation not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(row)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{UserID: q.Get("userId"), BookID: q.Get("bookId"), Status: Status(q.Get("status"))}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	fields := projection.ParseFields(q.Get("fields"))

	page, err := h.queries.List(r.Context(), filter, q.Get("sort"), fields, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(page)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		WalletID    string  `json:"walletId"`
		RetailPrice float64 `json:"retailPrice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, wallet, err := h.commands.ReturnReservation(r.Context(), id, req.WalletID, req.RetailPrice, time.Now().UTC(), eventmodel.Metadata{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(struct {
		Reservation *Reservation `json:"reservation"`
		WalletID    string       `json:"walletId"`
		NewBalance  float64      `json:"newBalance"`
	}{Reservation: res, WalletID: wallet.AggregateID(), NewBalance: wallet.Balance})
}
