// Package catalog implements the Books bounded context: the Book
// aggregate, its command handlers, its projection, and the cross-context
// reservation validation responder (SPEC_FULL 4.6).
//
// Reworked from an earlier Item aggregate (AddItem/UpdateItemCopies/
// RemoveItem) generalized from its ad-hoc json.Marshal + database/sql
// read model to the shared eventmodel/aggregate/cqrs/projection
// plumbing and the Book fields section 3 names.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/libranexus/platform/pkg/aggregate"
	"github.com/libranexus/platform/pkg/eventmodel"
)

const AggregateType = "book"

// Book is the aggregate described in spec section 3.
type Book struct {
	aggregate.Root

	ISBN            string
	Title           string
	Author          string
	PublicationYear int
	Publisher       string
	Price           float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

func NewBook(id string) *Book {
	b := &Book{}
	b.Init(id)
	return b
}

func (b *Book) AggregateID() string   { return b.ID() }
func (b *Book) AggregateType() string { return AggregateType }

func (b *Book) Deleted() bool { return b.DeletedAt != nil }

// BookCreated is emitted once, at version 1, by Create.
type BookCreated struct {
	ISBN            string    `bson:"isbn"`
	Title           string    `bson:"title"`
	Author          string    `bson:"author"`
	PublicationYear int       `bson:"publicationYear"`
	Publisher       string    `bson:"publisher"`
	Price           float64   `bson:"price"`
	CreatedAt       time.Time `bson:"createdAt"`
}

func (BookCreated) EventType() string { return "BookCreated" }

// BookUpdated carries only the fields that changed; Update never emits
// one for a no-op patch (spec section 4.4).
type BookUpdated struct {
	Title           *string  `bson:"title,omitempty"`
	Author          *string  `bson:"author,omitempty"`
	PublicationYear *int     `bson:"publicationYear,omitempty"`
	Publisher       *string  `bson:"publisher,omitempty"`
	Price           *float64 `bson:"price,omitempty"`
}

func (BookUpdated) EventType() string { return "BookUpdated" }

type BookDeleted struct{}

func (BookDeleted) EventType() string { return "BookDeleted" }

// BookPatch is the validated input to Update; nil fields are left
// unchanged.
type BookPatch struct {
	Title           *string
	Author          *string
	PublicationYear *int
	Publisher       *string
	Price           *float64
}

// ErrEmptyPatch signals a BookPatch with every field nil (section 4.4,
// "rejects an empty patch").
var ErrEmptyPatch = fmt.Errorf("catalog: BOOK_INVALID_DATA: patch has no fields set")

// ErrAlreadyDeleted guards against operating on a soft-deleted book.
var ErrAlreadyDeleted = fmt.Errorf("catalog: BOOK_NOT_FOUND: book is deleted")

// Create seeds a brand-new Book and returns the event to append at
// version 0. Uniqueness against ISBN is the caller's responsibility
// (via Store.FindAggregateIDByNaturalKey) before Create is ever
// invoked, per section 4.4 step 2.
func Create(isbn, title, author, publisher string, publicationYear int, price float64) ([]eventmodel.EventPayload, error) {
	isbn = strings.TrimSpace(isbn)
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if isbn == "" || title == "" || author == "" {
		return nil, fmt.Errorf("catalog: BOOK_INVALID_DATA: isbn, title and author are required")
	}
	return []eventmodel.EventPayload{BookCreated{
		ISBN:            isbn,
		Title:           strings.TrimSpace(title),
		Author:          strings.TrimSpace(author),
		PublicationYear: publicationYear,
		Publisher:       strings.TrimSpace(publisher),
		Price:           price,
		CreatedAt:       time.Now().UTC(),
	}}, nil
}

// Update applies patch, trimming strings, and emits BookUpdated only if
// at least one field actually changed (spec section 4.4).
func (b *Book) Update(patch BookPatch) ([]eventmodel.EventPayload, error) {
	if b.Deleted() {
		return nil, ErrAlreadyDeleted
	}
	if patch.Title == nil && patch.Author == nil && patch.PublicationYear == nil && patch.Publisher == nil && patch.Price == nil {
		return nil, ErrEmptyPatch
	}

	update := BookUpdated{}
	changed := false

	if patch.Title != nil {
		v := strings.TrimSpace(*patch.Title)
		if v != b.Title {
			update.Title = &v
			changed = true
		}
	}
	if patch.Author != nil {
		v := strings.TrimSpace(*patch.Author)
		if v != b.Author {
			update.Author = &v
			changed = true
		}
	}
	if patch.PublicationYear != nil && *patch.PublicationYear != b.PublicationYear {
		update.PublicationYear = patch.PublicationYear
		changed = true
	}
	if patch.Publisher != nil {
		v := strings.TrimSpace(*patch.Publisher)
		if v != b.Publisher {
			update.Publisher = &v
			changed = true
		}
	}
	if patch.Price != nil && *patch.Price != b.Price {
		update.Price = patch.Price
		changed = true
	}

	if !changed {
		return nil, nil
	}
	return []eventmodel.EventPayload{update}, nil
}

// Delete soft-deletes the book; repeated deletes are a no-op rather than
// an error, matching projection soft-delete idempotence.
func (b *Book) Delete() ([]eventmodel.EventPayload, error) {
	if b.Deleted() {
		return nil, nil
	}
	return []eventmodel.EventPayload{BookDeleted{}}, nil
}

// ApplyEvent folds one stored event into Book state (spec section 3,
// "applyEvent").
func (b *Book) ApplyEvent(e eventmodel.DomainEvent) error {
	switch e.EventType {
	case "BookCreated":
		var p BookCreated
		if err := e.Decode(&p); err != nil {
			return err
		}
		b.ISBN = p.ISBN
		b.Title = p.Title
		b.Author = p.Author
		b.PublicationYear = p.PublicationYear
		b.Publisher = p.Publisher
		b.Price = p.Price
		b.CreatedAt = p.CreatedAt
		b.UpdatedAt = p.CreatedAt
	case "BookUpdated":
		var p BookUpdated
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.Title != nil {
			b.Title = *p.Title
		}
		if p.Author != nil {
			b.Author = *p.Author
		}
		if p.PublicationYear != nil {
			b.PublicationYear = *p.PublicationYear
		}
		if p.Publisher != nil {
			b.Publisher = *p.Publisher
		}
		if p.Price != nil {
			b.Price = *p.Price
		}
		b.UpdatedAt = e.Timestamp
	case "BookDeleted":
		deletedAt := e.Timestamp
		b.DeletedAt = &deletedAt
		b.UpdatedAt = e.Timestamp
	default:
		return fmt.Errorf("catalog: unknown event type %q for book aggregate", e.EventType)
	}
	b.SetVersion(e.Version)
	return nil
}
