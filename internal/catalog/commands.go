package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/libranexus/platform/pkg/cqrs"
	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
)

// Commands is the thin, uncounted entrypoint cmd/ wires into an HTTP
// adapter (design note 9, "Controllers/facades → thin adapters").
type Commands struct {
	store eventstore.Store
	bus   *eventbus.Bus
}

func NewCommands(store eventstore.Store, bus *eventbus.Bus) *Commands {
	return &Commands{store: store, bus: bus}
}

// ErrAlreadyExists is returned when a book with the same ISBN already
// has an aggregate (spec section 4.4 step 2, "BOOK_ALREADY_EXISTS").
var ErrAlreadyExists = fmt.Errorf("catalog: BOOK_ALREADY_EXISTS")

// CreateBook validates ISBN uniqueness before creating a new Book
// aggregate (section 4.4 step 2).
func (c *Commands) CreateBook(ctx context.Context, isbn, title, author, publisher string, publicationYear int, price float64, meta eventmodel.Metadata) (*Book, error) {
	_, exists, err := c.store.FindAggregateIDByNaturalKey(ctx, AggregateType, map[string]any{"isbn": isbn})
	if err != nil {
		return nil, fmt.Errorf("catalog: check isbn uniqueness: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	book := NewBook(uuid.NewString())
	_, err = cqrs.ExecuteCommand(ctx, c.store, c.bus, book, meta, func(b *Book) ([]eventmodel.EventPayload, error) {
		return Create(isbn, title, author, publisher, publicationYear, price)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// UpdateBook loads the book, applies patch, and appends BookUpdated if
// anything changed.
func (c *Commands) UpdateBook(ctx context.Context, id string, patch BookPatch, meta eventmodel.Metadata) (*Book, error) {
	book := NewBook(id)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, book, meta, func(b *Book) ([]eventmodel.EventPayload, error) {
		return b.Update(patch)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook soft-deletes the book via BookDeleted.
func (c *Commands) DeleteBook(ctx context.Context, id string, meta eventmodel.Metadata) (*Book, error) {
	book := NewBook(id)
	_, err := cqrs.ExecuteCommand(ctx, c.store, c.bus, book, meta, func(b *Book) ([]eventmodel.EventPayload, error) {
		return b.Delete()
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}
