// Package ledger is the owner-facing bookkeeping for a group's backing links:
// adding them, editing counts and targets, reordering and removing them.
// Manual edits are last-writer-wins against each other and against joins.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dalemusser/joinlink/internal/app/rollover"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	linkstore "github.com/dalemusser/joinlink/internal/app/store/links"
	"github.com/dalemusser/joinlink/internal/app/system/txn"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultLinkCapacity is used when neither the caller nor the group gives one.
const DefaultLinkCapacity = 256

// InviteHost is the only host a link target may point at.
const InviteHost = "chat.whatsapp.com"

type Groups interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
}

type Links interface {
	Create(ctx context.Context, l models.Link) (models.Link, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Link, error)
	ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Link, error)
	MaxPriority(ctx context.Context, groupID primitive.ObjectID) (int, error)
	SetCounts(ctx context.Context, id primitive.ObjectID, memberCount, maxMembers *int) error
	SetExhausted(ctx context.Context, id primitive.ObjectID, v bool) error
	SetTarget(ctx context.Context, id primitive.ObjectID, target string) error
	SetPriority(ctx context.Context, groupID, id primitive.ObjectID, priority int) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

type Service struct {
	groups          Groups
	links           Links
	tx              txn.Runner
	log             *zap.Logger
	defaultCapacity int
}

// New builds the ledger. defaultCapacity < 1 means DefaultLinkCapacity.
func New(groups Groups, links Links, tx txn.Runner, log *zap.Logger, defaultCapacity int) *Service {
	if defaultCapacity < 1 {
		defaultCapacity = DefaultLinkCapacity
	}
	return &Service{groups: groups, links: links, tx: tx, log: log, defaultCapacity: defaultCapacity}
}

// ValidateTarget checks that target is an http(s) WhatsApp group invite and
// returns it trimmed.
func ValidateTarget(target string) (string, error) {
	target = strings.TrimSpace(target)
	u, err := url.Parse(target)
	if err != nil || target == "" {
		return "", rollover.ErrInvalidTarget
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", rollover.ErrInvalidTarget
	}
	if !strings.EqualFold(u.Hostname(), InviteHost) {
		return "", rollover.ErrInvalidTarget
	}
	if strings.Trim(u.Path, "/") == "" {
		return "", rollover.ErrInvalidTarget
	}
	return target, nil
}

func (s *Service) ownedGroup(ctx context.Context, owner string, groupID primitive.ObjectID) (models.Group, error) {
	if owner == "" {
		return models.Group{}, rollover.ErrUnauthenticated
	}
	g, err := s.groups.GetByID(ctx, groupID)
	if errors.Is(err, groupstore.ErrNotFound) {
		return models.Group{}, rollover.ErrNotFound
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("load group: %w", err)
	}
	if g.OwnerID != owner {
		return models.Group{}, rollover.ErrNotOwner
	}
	return g, nil
}

func (s *Service) ownedLink(ctx context.Context, owner string, linkID primitive.ObjectID) (models.Link, error) {
	if owner == "" {
		return models.Link{}, rollover.ErrUnauthenticated
	}
	l, err := s.links.GetByID(ctx, linkID)
	if errors.Is(err, linkstore.ErrNotFound) {
		return models.Link{}, rollover.ErrNotFound
	}
	if err != nil {
		return models.Link{}, fmt.Errorf("load link: %w", err)
	}
	if l.OwnerID != owner {
		return models.Link{}, rollover.ErrNotOwner
	}
	return l, nil
}

// AddLink appends a link at the lowest priority of the group. maxMembers nil
// takes the group's default.
func (s *Service) AddLink(ctx context.Context, owner string, groupID primitive.ObjectID, target string, maxMembers *int) (models.Link, error) {
	g, err := s.ownedGroup(ctx, owner, groupID)
	if err != nil {
		return models.Link{}, err
	}
	target, err = ValidateTarget(target)
	if err != nil {
		return models.Link{}, err
	}

	capacity := g.MaxMembersDefault
	if capacity < 1 {
		capacity = s.defaultCapacity
	}
	if maxMembers != nil {
		if *maxMembers < 1 {
			return models.Link{}, rollover.ErrInvalidCount
		}
		capacity = *maxMembers
	}

	top, err := s.links.MaxPriority(ctx, groupID)
	if err != nil {
		return models.Link{}, fmt.Errorf("max priority: %w", err)
	}

	l, err := s.links.Create(ctx, models.Link{
		GroupID:    groupID,
		OwnerID:    owner,
		Target:     target,
		Priority:   top + 1,
		MaxMembers: capacity,
	})
	if err != nil {
		return models.Link{}, fmt.Errorf("create link: %w", err)
	}
	return l, nil
}

// SetCounts overwrites member_count and/or max_members, clamping them to
// member_count >= 0 and max_members >= 1. exhausted is left as it is.
func (s *Service) SetCounts(ctx context.Context, owner string, linkID primitive.ObjectID, memberCount, maxMembers *int) error {
	if memberCount == nil && maxMembers == nil {
		return rollover.ErrInvalidCount
	}
	if _, err := s.ownedLink(ctx, owner, linkID); err != nil {
		return err
	}
	if memberCount != nil {
		v := max(*memberCount, 0)
		memberCount = &v
	}
	if maxMembers != nil {
		v := max(*maxMembers, 1)
		maxMembers = &v
	}
	return s.wrapNotFound(s.links.SetCounts(ctx, linkID, memberCount, maxMembers))
}

// SetExhausted marks a link full (true) or puts it back in rotation (false).
func (s *Service) SetExhausted(ctx context.Context, owner string, linkID primitive.ObjectID, v bool) error {
	if _, err := s.ownedLink(ctx, owner, linkID); err != nil {
		return err
	}
	return s.wrapNotFound(s.links.SetExhausted(ctx, linkID, v))
}

// SetTarget replaces a link's invite URL.
func (s *Service) SetTarget(ctx context.Context, owner string, linkID primitive.ObjectID, target string) error {
	if _, err := s.ownedLink(ctx, owner, linkID); err != nil {
		return err
	}
	target, err := ValidateTarget(target)
	if err != nil {
		return err
	}
	return s.wrapNotFound(s.links.SetTarget(ctx, linkID, target))
}

// Reorder sets priority = position+1 for each id in orderedIDs that belongs to
// the group. Unknown ids and ids from other groups are skipped. It returns how
// many links were updated.
func (s *Service) Reorder(ctx context.Context, owner string, groupID primitive.ObjectID, orderedIDs []primitive.ObjectID) (int, error) {
	if _, err := s.ownedGroup(ctx, owner, groupID); err != nil {
		return 0, err
	}
	var updated int
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		updated = 0
		for i, id := range orderedIDs {
			ok, err := s.links.SetPriority(ctx, groupID, id, i+1)
			if err != nil {
				return fmt.Errorf("set priority: %w", err)
			}
			if ok {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if skipped := len(orderedIDs) - updated; skipped > 0 {
		s.log.Debug("reorder skipped ids outside the group",
			zap.String("group_id", groupID.Hex()),
			zap.Int("skipped", skipped))
	}
	return updated, nil
}

// Get returns one of the owner's links.
func (s *Service) Get(ctx context.Context, owner string, linkID primitive.ObjectID) (models.Link, error) {
	return s.ownedLink(ctx, owner, linkID)
}

// RemoveLink deletes a link regardless of its counts.
func (s *Service) RemoveLink(ctx context.Context, owner string, linkID primitive.ObjectID) error {
	if _, err := s.ownedLink(ctx, owner, linkID); err != nil {
		return err
	}
	if _, err := s.links.Delete(ctx, linkID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// List returns the group's links in allocation order. A group the owner does
// not own reads as empty.
func (s *Service) List(ctx context.Context, owner string, groupID primitive.ObjectID) ([]models.Link, error) {
	_, err := s.ownedGroup(ctx, owner, groupID)
	if errors.Is(err, rollover.ErrNotOwner) {
		return []models.Link{}, nil
	}
	if err != nil {
		return nil, err
	}
	links, err := s.links.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// wrapNotFound maps a link deleted between the ownership check and the write.
func (s *Service) wrapNotFound(err error) error {
	if errors.Is(err, linkstore.ErrNotFound) {
		return rollover.ErrNotFound
	}
	return err
}
