// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a named pool of backing invite links owned by one operator.
//
// NOTE:
//   - CurrentMembers is advisory. The authoritative total is the sum of
//     member_count over the group's links.
//   - An inactive group rejects every allocation.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	OwnerID     string             `bson:"owner_id" json:"owner_id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`

	MaxMembersDefault int  `bson:"max_members_default" json:"max_members_default"`
	CurrentMembers    int  `bson:"current_members" json:"current_members"`
	Active            bool `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
