// Package projection implements the idempotent, version-monotonic
// read-model update rule of spec section 4.4/8: a projection document
// only ever moves forward, an out-of-order older event is a silent
// no-op, and a deleted document is soft-deleted rather than removed so
// a late out-of-order event can never resurrect it incorrectly.
//
// Grounded on an earlier internal/catalog's read-model queries (a flat
// Mongo-shaped struct read straight back out for list/get), generalized
// per context instead of re-implemented three times.
package projection

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Document is the shape every projection row must carry so the
// repository can enforce idempotence and soft-delete uniformly,
// regardless of which bounded context owns the rest of the fields.
type Document interface {
	ProjectionID() string
	ProjectionVersion() int64
}

// Envelope is the bookkeeping subset of every stored projection
// document (spec section 6). A context's own fields — isbn, userId,
// status, and so on — are flattened alongside these at the top level of
// the same document rather than nested underneath it, so a context's
// Filter/SortAllowList/EnsureIndexes can address them directly by name.
type Envelope struct {
	ID        string    `bson:"_id"`
	Version   int64     `bson:"version"`
	Deleted   bool      `bson:"deleted"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// shouldApply is the pure decision function named in spec section 8:
// an event only updates a projection when its version is strictly
// greater than what's already stored, so projections are idempotent
// under at-least-once delivery and tolerant of out-of-order replay.
func shouldApply(storedVersion, eventVersion int64) bool {
	return eventVersion > storedVersion
}

// Repository is a generic Mongo-backed projection store shared by every
// bounded context's read model.
type Repository struct {
	collection *mongo.Collection
}

func NewRepository(collection *mongo.Collection) *Repository {
	return &Repository{collection: collection}
}

// EnsureIndexes creates the secondary indexes a context's projection
// needs beyond the default _id index. Callers pass context-specific
// keys (e.g. books_projection on isbn, reservations_projection on
// userId and on status) since the allow-lists differ per context.
func (r *Repository) EnsureIndexes(ctx context.Context, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Apply idempotently upserts doc keyed by id, applying it only if
// eventVersion is strictly newer than the version already stored
// (spec section 4.4/8). doc's own bson-tagged fields are flattened into
// the top-level document alongside the bookkeeping fields, so a
// context's filters, sort keys, and indexes can reference them by their
// own names instead of a "data." prefix. Returns applied=false when the
// update was skipped as stale.
func (r *Repository) Apply(ctx context.Context, id string, eventVersion int64, doc any) (applied bool, err error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("projection: marshal document: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return false, fmt.Errorf("projection: unmarshal document: %w", err)
	}
	fields["version"] = eventVersion
	fields["deleted"] = false
	if _, ok := fields["updatedAt"]; !ok {
		fields["updatedAt"] = time.Now().UTC()
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"version": bson.M{"$lt": eventVersion}},
				bson.M{"version": bson.M{"$exists": false}},
			},
		},
		bson.M{"$set": fields},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a race with a newer concurrent upsert; the other
			// writer's version already won, so this one is stale.
			return false, nil
		}
		return false, fmt.Errorf("projection: apply %s: %w", id, err)
	}

	return result.UpsertedCount > 0 || result.ModifiedCount > 0, nil
}

// SoftDelete marks id deleted without removing the document, so a
// later out-of-order event referencing an older version never
// resurrects rows that are logically gone (spec section 4.4).
func (r *Repository) SoftDelete(ctx context.Context, id string, eventVersion int64) (applied bool, err error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"version": bson.M{"$lt": eventVersion}},
				bson.M{"version": bson.M{"$exists": false}},
			},
		},
		bson.M{
			"$set": bson.M{
				"version":   eventVersion,
				"deleted":   true,
				"updatedAt": time.Now().UTC(),
			},
		},
	)
	if err != nil {
		return false, fmt.Errorf("projection: soft-delete %s: %w", id, err)
	}
	return result.ModifiedCount > 0, nil
}

// Get loads id's projection document into dst, a pointer to the
// context-specific row type. Soft-deleted documents are treated as
// not found.
func (r *Repository) Get(ctx context.Context, id string, dst any) (bool, error) {
	return r.GetSelect(ctx, id, nil, nil, dst)
}

// GetSelect is Get with an optional field selection (spec section
// 4.3's field selection): when fields, filtered through allow, is
// non-empty, the repository only projects those fields plus the
// primary key instead of the whole document.
func (r *Repository) GetSelect(ctx context.Context, id string, fields []string, allow FieldAllowList, dst any) (bool, error) {
	opts := options.FindOne()
	if selected := allowedFields(fields, allow); len(selected) > 0 {
		proj := bson.M{"_id": 1, "id": 1, "deleted": 1}
		for _, f := range selected {
			proj[f] = 1
		}
		opts.SetProjection(proj)
	}

	raw, err := r.collection.FindOne(ctx, bson.M{"_id": id}, opts).Raw()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("projection: get %s: %w", id, err)
	}
	var env Envelope
	if err := bson.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("projection: decode envelope %s: %w", id, err)
	}
	if env.Deleted {
		return false, nil
	}
	if err := bson.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("projection: decode %s: %w", id, err)
	}
	return true, nil
}
