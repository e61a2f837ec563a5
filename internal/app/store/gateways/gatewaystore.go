// internal/app/store/gateways/gatewaystore.go
package gatewaystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/joinlink/internal/app/system/paging"
	"github.com/dalemusser/joinlink/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no entry matches the id or slug.
	ErrNotFound = errors.New("gateway entry not found")
	// ErrSlugTaken is returned when the unique slug index rejects a write.
	ErrSlugTaken = errors.New("slug is already in use")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("gateway_entries")}
}

// Create inserts e. The slug must already be normalized by the caller.
func (s *Store) Create(ctx context.Context, e models.GatewayEntry) (models.GatewayEntry, error) {
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	e.CreatedAt = now
	e.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GatewayEntry{}, ErrSlugTaken
		}
		return models.GatewayEntry{}, err
	}
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.GatewayEntry, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetBySlug looks up an entry by its normalized slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.GatewayEntry, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

// SlugExists reports whether any entry, active or not, holds slug.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.GatewayEntry, error) {
	var e models.GatewayEntry
	if err := s.c.FindOne(ctx, filter).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GatewayEntry{}, ErrNotFound
		}
		return models.GatewayEntry{}, err
	}
	return e, nil
}

// ListPageByOwner returns one page of the owner's entries ordered by slug.
// Rows come back in fetch order (descending when paging backwards) with
// one look-ahead row; finish the page with paging.Finish.
func (s *Store) ListPageByOwner(ctx context.Context, owner string, ks paging.KeysetConfig) ([]models.GatewayEntry, error) {
	filter := bson.M{"owner_id": owner}
	for k, v := range ks.KeysetWindow("slug") {
		filter[k] = v
	}
	find := options.Find()
	ks.ApplyToFind(find, "slug")

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.GatewayEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveByOwner counts the owner's active entries.
func (s *Store) CountActiveByOwner(ctx context.Context, owner string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"owner_id": owner, "active": true})
}

// Patch describes a partial entry update. ClearGroup wins over GroupID.
type Patch struct {
	Slug       *string
	GroupID    *primitive.ObjectID
	ClearGroup bool
	Active     *bool
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	update := bson.M{}
	if p.Slug != nil {
		set["slug"] = *p.Slug
	}
	if p.Active != nil {
		set["active"] = *p.Active
	}
	if p.ClearGroup {
		update["$unset"] = bson.M{"group_id": ""}
	} else if p.GroupID != nil {
		set["group_id"] = *p.GroupID
	}
	update["$set"] = set

	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrSlugTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DetachGroup clears group_id on every entry routing to groupID.
// Returns the number of entries changed.
func (s *Store) DetachGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"group_id": groupID},
		bson.M{
			"$unset": bson.M{"group_id": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes an entry by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
