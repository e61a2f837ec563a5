// Package planlimits decides how many groups and gateway entries an owner may have.
package planlimits

import (
	"context"
	"errors"
	"fmt"
	"time"

	subscriptionstore "github.com/dalemusser/joinlink/internal/app/store/subscriptions"
	"github.com/dalemusser/joinlink/internal/domain/models"
)

// Unbounded marks a limit that does not apply.
const Unbounded = -1

// Policy names accepted by New.
const (
	NameUnlimited    = "unlimited"
	NameSubscription = "subscription"
)

// Limits caps an owner's groups and active gateway entries.
type Limits struct {
	MaxGroups  int
	MaxEntries int
}

// FreeTier is what an owner without an active paid plan gets.
var FreeTier = Limits{MaxGroups: 1, MaxEntries: 1}

// NoLimits is the unlimited tier.
var NoLimits = Limits{MaxGroups: Unbounded, MaxEntries: Unbounded}

// AllowsGroup reports whether one more group fits given the current count.
func (l Limits) AllowsGroup(current int64) bool {
	return l.MaxGroups == Unbounded || current < int64(l.MaxGroups)
}

// AllowsEntry reports whether one more active entry fits given the current count.
func (l Limits) AllowsEntry(current int64) bool {
	return l.MaxEntries == Unbounded || current < int64(l.MaxEntries)
}

// Policy resolves the limits for an owner.
type Policy interface {
	LimitsFor(ctx context.Context, owner string) (Limits, error)
}

// Unlimited never restricts anyone.
type Unlimited struct{}

func (Unlimited) LimitsFor(context.Context, string) (Limits, error) {
	return NoLimits, nil
}

// SubscriptionReader is the part of the subscription store the policy needs.
type SubscriptionReader interface {
	GetByOwner(ctx context.Context, owner string) (models.Subscription, error)
}

// Subscription grants NoLimits to owners on an active pro plan whose period
// has not ended, and FreeTier to everyone else.
type Subscription struct {
	subs SubscriptionReader
	now  func() time.Time
}

func NewSubscription(subs SubscriptionReader) *Subscription {
	return &Subscription{subs: subs, now: time.Now}
}

func (p *Subscription) LimitsFor(ctx context.Context, owner string) (Limits, error) {
	sub, err := p.subs.GetByOwner(ctx, owner)
	if errors.Is(err, subscriptionstore.ErrNotFound) {
		return FreeTier, nil
	}
	if err != nil {
		return Limits{}, fmt.Errorf("load subscription: %w", err)
	}
	if IsPro(sub, p.now()) {
		return NoLimits, nil
	}
	return FreeTier, nil
}

// IsPro reports whether sub is a pro plan that is active at now.
func IsPro(sub models.Subscription, now time.Time) bool {
	return sub.Plan == models.PlanPro &&
		sub.Status == models.SubscriptionActive &&
		sub.CurrentPeriodEnd != nil &&
		sub.CurrentPeriodEnd.After(now)
}

// New returns the named policy. subs is only used by the subscription policy.
func New(name string, subs SubscriptionReader) (Policy, error) {
	switch name {
	case "", NameUnlimited:
		return Unlimited{}, nil
	case NameSubscription:
		if subs == nil {
			return nil, errors.New("planlimits: subscription policy needs a subscription store")
		}
		return NewSubscription(subs), nil
	default:
		return nil, fmt.Errorf("planlimits: unknown policy %q", name)
	}
}
