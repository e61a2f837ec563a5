// internal/domain/models/subscription.go
package models

import "time"

// Subscription plans and statuses as written by the billing service.
const (
	PlanFree = "free"
	PlanPro  = "pro"

	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is maintained by the external billing integration.
// This app only reads it to decide plan limits.
type Subscription struct {
	OwnerID          string     `bson:"owner_id"`
	Email            string     `bson:"email,omitempty"`
	Plan             string     `bson:"plan"`
	Status           string     `bson:"status"`
	CurrentPeriodEnd *time.Time `bson:"current_period_end,omitempty"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}
