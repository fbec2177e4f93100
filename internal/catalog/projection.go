package catalog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/projection"
)

// Row is the books_projection document shape (spec section 6).
type Row struct {
	ID              string     `bson:"id" json:"id"`
	ISBN            string     `bson:"isbn" json:"isbn"`
	Title           string     `bson:"title" json:"title"`
	Author          string     `bson:"author" json:"author"`
	PublicationYear int        `bson:"publicationYear" json:"publicationYear"`
	Publisher       string     `bson:"publisher" json:"publisher"`
	Price           float64    `bson:"price" json:"price"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
	DeletedAt       *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// SortAllowList restricts books_projection list queries to indexed
// fields (spec section 4.3).
var SortAllowList = projection.SortAllowList{
	"title":           "title",
	"author":          "author",
	"publicationYear": "publicationYear",
	"price":           "price",
}

// Projector applies Book events to books_projection.
type Projector struct {
	repo *projection.Repository
}

func NewProjector(repo *projection.Repository) *Projector {
	return &Projector{repo: repo}
}

// EnsureIndexes creates the secondary index on isbn the canonical-key
// resolution in SPEC_FULL section 3 relies on.
func (p *Projector) EnsureIndexes(ctx context.Context) error {
	return p.repo.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isbn", Value: 1}}, Options: nil},
	})
}

// Subscribe registers every Book projection handler on bus.
func (p *Projector) Subscribe(bus *eventbus.Bus) {
	bus.Subscribe("BookCreated", "catalog.projection", p.handle)
	bus.Subscribe("BookUpdated", "catalog.projection", p.handle)
	bus.Subscribe("BookDeleted", "catalog.projection", p.handle)
}

func (p *Projector) handle(ctx context.Context, e eventmodel.DomainEvent) error {
	switch e.EventType {
	case "BookCreated":
		var payload BookCreated
		if err := e.Decode(&payload); err != nil {
			return err
		}
		row := Row{
			ID:              e.AggregateID,
			ISBN:            payload.ISBN,
			Title:           payload.Title,
			Author:          payload.Author,
			PublicationYear: payload.PublicationYear,
			Publisher:       payload.Publisher,
			Price:           payload.Price,
			CreatedAt:       payload.CreatedAt,
			UpdatedAt:       payload.CreatedAt,
		}
		_, err := p.repo.Apply(ctx, e.AggregateID, e.Version, row)
		return err

	case "BookUpdated":
		var existing Row
		found, err := p.repo.Get(ctx, e.AggregateID, &existing)
		if err != nil {
			return err
		}
		if !found {
			// Out-of-order delivery ahead of BookCreated: dead-letter
			// via returning an error so the bus retries, rather than
			// silently dropping the update.
			return errProjectionRowMissing(e.AggregateID)
		}
		var payload BookUpdated
		if err := e.Decode(&payload); err != nil {
			return err
		}
		if payload.Title != nil {
			existing.Title = *payload.Title
		}
		if payload.Author != nil {
			existing.Author = *payload.Author
		}
		if payload.PublicationYear != nil {
			existing.PublicationYear = *payload.PublicationYear
		}
		if payload.Publisher != nil {
			existing.Publisher = *payload.Publisher
		}
		if payload.Price != nil {
			existing.Price = *payload.Price
		}
		existing.UpdatedAt = e.Timestamp
		_, err = p.repo.Apply(ctx, e.AggregateID, e.Version, existing)
		return err

	case "BookDeleted":
		_, err := p.repo.SoftDelete(ctx, e.AggregateID, e.Version)
		return err

	default:
		return nil
	}
}

func errProjectionRowMissing(id string) error {
	return &rowMissingError{id: id}
}

type rowMissingError struct{ id string }

func (e *rowMissingError) Error() string {
	return "catalog: projection row " + e.id + " missing for update event"
}
