package wallet

import (
	"context"

	"github.com/libranexus/platform/pkg/projection"
)

// Queries reads exclusively from wallets_projection.
type Queries struct {
	repo *projection.Repository
}

func NewQueries(repo *projection.Repository) *Queries {
	return &Queries{repo: repo}
}

// FieldAllowList names the wallets_projection fields a caller may
// select via GetByID's fields parameter (spec section 4.3).
var FieldAllowList = projection.FieldAllowList{
	"userId": true, "balance": true, "updatedAt": true,
}

// GetByID returns the wallet row, or found=false if it doesn't exist
// or is soft-deleted. An empty fields selects the whole row.
func (q *Queries) GetByID(ctx context.Context, id string, fields []string) (Row, bool, error) {
	var row Row
	found, err := q.repo.GetSelect(ctx, id, fields, FieldAllowList, &row)
	return row, found, err
}
