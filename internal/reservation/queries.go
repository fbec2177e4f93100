package reservation

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/libranexus/platform/pkg/config"
	"github.com/libranexus/platform/pkg/projection"
)

// Queries reads exclusively from reservations_projection.
type Queries struct {
	repo *projection.Repository
	cfg  config.Config
}

func NewQueries(repo *projection.Repository, cfg config.Config) *Queries {
	return &Queries{repo: repo, cfg: cfg}
}

// FieldAllowList names the reservations_projection fields a caller may
// select via GetByID/List's fields parameter (spec section 4.3).
var FieldAllowList = projection.FieldAllowList{
	"userId": true, "bookId": true, "status": true, "feeCharged": true,
	"retailPrice": true, "lateFee": true, "reservedAt": true, "dueDate": true,
	"returnedAt": true, "statusReason": true, "updatedAt": true,
}

// GetByID returns the reservation row, or found=false if it doesn't
// exist or is soft-deleted. An empty fields selects the whole row.
func (q *Queries) GetByID(ctx context.Context, id string, fields []string) (Row, bool, error) {
	var row Row
	found, err := q.repo.GetSelect(ctx, id, fields, FieldAllowList, &row)
	return row, found, err
}

// Filter narrows List to a single user, book, and/or status, matching
// the reservations_projection indexes.
type Filter struct {
	UserID string
	BookID string
	Status Status
}

func (f Filter) toMongo() bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.BookID != "" {
		filter["bookId"] = f.BookID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

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
