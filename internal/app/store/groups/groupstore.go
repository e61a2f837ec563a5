// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/joinlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrNotFound is returned when no group matches the id.
var ErrNotFound = errors.New("group not found")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// GetMany returns the groups with the given ids keyed by id. Missing ids are absent from the map.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Group, error) {
	out := make(map[primitive.ObjectID]models.Group, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var g models.Group
		if err := cur.Decode(&g); err != nil {
			return nil, err
		}
		out[g.ID] = g
	}
	return out, cur.Err()
}

// Create inserts a new group. ID, NameCI and timestamps are assigned here.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	if g.CurrentMembers < 0 {
		g.CurrentMembers = 0
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// ListByOwner returns the owner's groups, newest first.
func (s *Store) ListByOwner(ctx context.Context, owner string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"owner_id": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByOwner returns how many groups the owner has.
func (s *Store) CountByOwner(ctx context.Context, owner string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"owner_id": owner})
}

// Patch describes a partial group update. Nil fields are left alone.
type Patch struct {
	Name              *string
	Description       *string
	MaxMembersDefault *int
	Active            *bool
}

// Update applies p to the group. Returns ErrNotFound when the id does not exist.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		set["name"] = *p.Name
		set["name_ci"] = text.Fold(*p.Name)
	}
	// Description can be cleared (set to empty)
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.MaxMembersDefault != nil {
		set["max_members_default"] = *p.MaxMembersDefault
	}
	if p.Active != nil {
		set["active"] = *p.Active
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCurrentMembers overwrites the advisory member total.
func (s *Store) SetCurrentMembers(ctx context.Context, id primitive.ObjectID, n int) error {
	if n < 0 {
		n = 0
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"current_members": n,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncCurrentMembers adds delta to the advisory member total.
func (s *Store) IncCurrentMembers(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"current_members": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// Delete removes a group by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
