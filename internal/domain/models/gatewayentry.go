// internal/domain/models/gatewayentry.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GatewayEntry maps a public slug to the group it currently routes to.
// Slug is stored lower-cased; GroupID is nil when the entry has no destination.
type GatewayEntry struct {
	ID      primitive.ObjectID  `bson:"_id" json:"id"`
	OwnerID string              `bson:"owner_id" json:"owner_id"`
	Slug    string              `bson:"slug" json:"slug"`
	GroupID *primitive.ObjectID `bson:"group_id,omitempty" json:"group_id,omitempty"`
	Active  bool                `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
