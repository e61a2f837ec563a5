// internal/domain/models/link.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Link is one real backing invite target inside a Group.
//
// Exhausted is set by the allocation engine when MemberCount reaches
// MaxMembers, but owners may also force it either way. The two are not
// reconciled: a link with Exhausted=true is never selected, whatever its count.
type Link struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	GroupID primitive.ObjectID `bson:"group_id" json:"group_id"`
	OwnerID string             `bson:"owner_id" json:"owner_id"`

	Target   string `bson:"target" json:"target"`
	Priority int    `bson:"priority" json:"priority"`

	MemberCount int  `bson:"member_count" json:"member_count"`
	MaxMembers  int  `bson:"max_members" json:"max_members"`
	Exhausted   bool `bson:"exhausted" json:"exhausted"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasHeadroom reports whether the link may be selected for a join.
func (l Link) HasHeadroom() bool {
	return !l.Exhausted && l.MemberCount < l.MaxMembers
}
