// internal/domain/models/joinrecord.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JoinRecord is the append-only audit row written for every successful allocation.
// Timestamp is indexed for recent-activity reports.
type JoinRecord struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	EntryID   primitive.ObjectID `bson:"entry_id" json:"entry_id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	LinkID    primitive.ObjectID `bson:"link_id" json:"link_id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	VisitorHash string `bson:"visitor_hash,omitempty" json:"visitor_hash,omitempty"`
	UserAgent   string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	RequestID   string `bson:"request_id,omitempty" json:"request_id,omitempty"`
}
