package projection

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Page is the offset-pagination envelope returned by every context's
// list query (spec section 4.4).
type Page struct {
	Items      []bson.Raw `json:"items"`
	Total      int64      `json:"total"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

// SortAllowList maps a caller-supplied sort key to the field it's
// actually allowed to sort on, so a query can never be used to sort by
// an unindexed or internal field. Each context builds its own list
// (books by title/author, reservations by dueDate/status, and so on).
type SortAllowList map[string]string

// FieldAllowList names the fields a caller is permitted to select via
// Query.Fields (spec section 4.3's field selection). Unrecognized
// requested fields are dropped rather than rejected, the same
// permissive policy an unknown sort key falls back to "updatedAt" with.
type FieldAllowList map[string]bool

// ParseFields splits a comma-separated "fields" query parameter into
// the raw (not yet allow-listed) field names a handler passes through
// to a Queries method.
func ParseFields(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// allowedFields filters requested down to the members allow permits.
func allowedFields(requested []string, allow FieldAllowList) []string {
	if len(requested) == 0 || len(allow) == 0 {
		return nil
	}
	out := make([]string, 0, len(requested))
	for _, f := range requested {
		if allow[f] {
			out = append(out, f)
		}
	}
	return out
}

// Query describes one list call: a pre-built Mongo filter (excluding
// deleted rows, which List always adds), a requested sort key resolved
// through allow, an optional field selection resolved through
// FieldAllow, and offset/limit. Callers clamp limit with pkg/config's
// pagination defaults; offset is passed through as given.
type Query struct {
	Filter     bson.M
	SortKey    string
	Allow      SortAllowList
	Fields     []string
	FieldAllow FieldAllowList
	Limit      int
	Offset     int
}

// List runs q against the projection collection, always excluding
// soft-deleted rows, and returns a Page envelope.
func (r *Repository) List(ctx context.Context, q Query) (Page, error) {
	filter := bson.M{"deleted": bson.M{"$ne": true}}
	for k, v := range q.Filter {
		filter[k] = v
	}

	sortField, ok := q.Allow[q.SortKey]
	if !ok {
		sortField = "updatedAt"
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("projection: count: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: 1}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	if fields := allowedFields(q.Fields, q.FieldAllow); len(fields) > 0 {
		proj := bson.M{"_id": 1, "id": 1}
		for _, f := range fields {
			proj[f] = 1
		}
		findOpts.SetProjection(proj)
	}

	cur, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return Page{}, fmt.Errorf("projection: list: %w", err)
	}
	defer cur.Close(ctx)

	var items []bson.Raw
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return Page{}, fmt.Errorf("projection: decode row: %w", err)
		}
		delete(doc, "_id")
		delete(doc, "version")
		delete(doc, "deleted")
		raw, err := bson.Marshal(doc)
		if err != nil {
			return Page{}, fmt.Errorf("projection: re-marshal row: %w", err)
		}
		items = append(items, raw)
	}
	if err := cur.Err(); err != nil {
		return Page{}, fmt.Errorf("projection: list cursor: %w", err)
	}

	return Page{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}
