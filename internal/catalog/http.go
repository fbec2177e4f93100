package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// Handler adapts Commands/Queries onto HTTP, mirroring the shape of an
// earlier handler.go (a thin struct wrapping the service, plain
// encoding/json, http.Error for failures) but routed through chi so
// path parameters no longer need manual strings.TrimPrefix parsing.
type Handler struct {
	commands *Commands
	queries  *Queries
}

func NewHandler(commands *Commands, queries *Queries) *Handler {
	return &Handler{commands: commands, queries: queries}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/books", h.handleCreate)
	r.Get("/books", h.handleList)
	r.Get("/books/{id}", h.handleGet)
	r.Patch("/books/{id}", h.handleUpdate)
	r.Delete("/books/{id}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN            string  `json:"isbn"`
		Title           string  `json:"title"`
		Author          string  `json:"author"`
		Publisher       string  `json:"publisher"`
		PublicationYear int     `json:"publicationYear"`
		Price           float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.commands.CreateBook(r.Context(), req.ISBN, req.Title, req.Author, req.Publisher, req.PublicationYear, req.Price, eventmodel.Metadata{})
	if err != nil {
		writeCommandError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(book)
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
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(row)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Author: q.Get("author")}
	if v := q.Get("publicationYearMin"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.PublicationYearMin = &n
		}
	}
	if v := q.Get("publicationYearMax"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.PublicationYearMax = &n
		}
	}
	if v := q.Get("priceMin"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			filter.PriceMin = &n
		}
	}
	if v := q.Get("priceMax"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			filter.PriceMax = &n
		}
	}

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

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch BookPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.commands.UpdateBook(r.Context(), id, patch, eventmodel.Metadata{})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.commands.DeleteBook(r.Context(), id, eventmodel.Metadata{}); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeCommandError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrEmptyPatch) || errors.Is(err, ErrAlreadyDeleted) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
