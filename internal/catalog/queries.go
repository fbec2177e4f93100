package catalog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/libranexus/platform/pkg/config"
	"github.com/libranexus/platform/pkg/projection"
)

// Queries reads exclusively from books_projection (spec section 2,
// "Queries read exclusively from projections").
type Queries struct {
	repo *projection.Repository
	cfg  config.Config
}

func NewQueries(repo *projection.Repository, cfg config.Config) *Queries {
	return &Queries{repo: repo, cfg: cfg}
}

// FieldAllowList names the books_projection fields a caller may select
// via GetByID/List's fields parameter (spec section 4.3).
var FieldAllowList = projection.FieldAllowList{
	"isbn": true, "title": true, "author": true, "publicationYear": true,
	"publisher": true, "price": true, "createdAt": true, "updatedAt": true,
	"deletedAt": true,
}

// GetByID returns the book row, or found=false if it doesn't exist or
// is soft-deleted. An empty fields selects the whole row.
func (q *Queries) GetByID(ctx context.Context, id string, fields []string) (Row, bool, error) {
	var row Row
	found, err := q.repo.GetSelect(ctx, id, fields, FieldAllowList, &row)
	return row, found, err
}

// Filter is the context-specific filter builder named in spec section
// 4.3: ranges apply only when set.
type Filter struct {
	Author            string
	PublicationYearMin *int
	PublicationYearMax *int
	PriceMin           *float64
	PriceMax           *float64
}

func (f Filter) toMongo() bson.M {
	filter := bson.M{}
	if f.Author != "" {
		filter["author"] = f.Author
	}
	if f.PublicationYearMin != nil || f.PublicationYearMax != nil {
		rng := bson.M{}
		if f.PublicationYearMin != nil {
			rng["$gte"] = *f.PublicationYearMin
		}
		if f.PublicationYearMax != nil {
			rng["$lte"] = *f.PublicationYearMax
		}
		filter["publicationYear"] = rng
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		rng := bson.M{}
		if f.PriceMin != nil {
			rng["$gte"] = *f.PriceMin
		}
		if f.PriceMax != nil {
			rng["$lte"] = *f.PriceMax
		}
		filter["price"] = rng
	}
	return filter
}

// List applies the offset-pagination envelope of spec section 4.3. An
// empty fields returns every field.
func (q *Queries) List(ctx context.Context, filter Filter, sortBy string, fields []string, limit, offset int) (projection.Page, error) {
	return q.repo.List(ctx, projection.Query{
		Filter:     filter.toMongo(),
		SortKey:    sortBy,
		Allow:      SortAllowList,
		Fields:     fields,
		FieldAllow: FieldAllowList,
		Limit:      q.cfg.Clamp(limit),
		Offset:     offset,
	})
}
