// Package gateway maps public slugs to groups. It answers whether a slug can
// currently take a join, forwards joins to the allocation engine, and manages
// the owner's gateway entries.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dalemusser/joinlink/internal/app/rollover"
	"github.com/dalemusser/joinlink/internal/app/rollover/allocation"
	gatewaystore "github.com/dalemusser/joinlink/internal/app/store/gateways"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	"github.com/dalemusser/joinlink/internal/app/system/paging"
	"github.com/dalemusser/joinlink/internal/app/system/planlimits"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxSlugLen is the longest slug accepted.
const MaxSlugLen = 64

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// NormalizeSlug lower-cases and trims s and checks it against the slug rules.
func NormalizeSlug(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxSlugLen || !slugPattern.MatchString(s) {
		return "", rollover.ErrInvalidSlug
	}
	return s, nil
}

type Entries interface {
	Create(ctx context.Context, e models.GatewayEntry) (models.GatewayEntry, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.GatewayEntry, error)
	GetBySlug(ctx context.Context, slug string) (models.GatewayEntry, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListPageByOwner(ctx context.Context, owner string, ks paging.KeysetConfig) ([]models.GatewayEntry, error)
	CountActiveByOwner(ctx context.Context, owner string) (int64, error)
	Update(ctx context.Context, id primitive.ObjectID, p gatewaystore.Patch) error
	DetachGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

type Groups interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Group, error)
}

type Links interface {
	ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Link, error)
}

// Allocator is the allocation engine as seen by the gateway.
type Allocator interface {
	Allocate(ctx context.Context, req allocation.Request) (allocation.Result, error)
	Metrics() allocation.Metrics
}

type Service struct {
	entries Entries
	groups  Groups
	links   Links
	alloc   Allocator
	limits  planlimits.Policy
	log     *zap.Logger
}

func New(entries Entries, groups Groups, links Links, alloc Allocator, limits planlimits.Policy, log *zap.Logger) *Service {
	if limits == nil {
		limits = planlimits.Unlimited{}
	}
	return &Service{entries: entries, groups: groups, links: links, alloc: alloc, limits: limits, log: log}
}

/* --------------------------------- public ---------------------------------- */

// GroupInfo is the display data shown on a public join page.
type GroupInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	TotalMembers int    `json:"total_members"`
}

// Resolution is what the public page learns about a slug. Every reason a slug
// cannot be used collapses to Found == false.
type Resolution struct {
	Found     bool       `json:"found"`
	Available bool       `json:"available"`
	Slug      string     `json:"slug,omitempty"`
	Group     *GroupInfo `json:"group,omitempty"`
}

// lookup finds the active entry for slug and the group id it routes to.
// ok is false for every not-usable case.
func (s *Service) lookup(ctx context.Context, slug string) (models.GatewayEntry, bool, error) {
	norm, err := NormalizeSlug(slug)
	if err != nil {
		return models.GatewayEntry{}, false, nil
	}
	e, err := s.entries.GetBySlug(ctx, norm)
	if errors.Is(err, gatewaystore.ErrNotFound) {
		return models.GatewayEntry{}, false, nil
	}
	if err != nil {
		return models.GatewayEntry{}, false, fmt.Errorf("load entry: %w", err)
	}
	if !e.Active || e.GroupID == nil {
		return models.GatewayEntry{}, false, nil
	}
	return e, true, nil
}

// Resolve reports whether slug leads to an active group and whether that group
// has headroom right now.
func (s *Service) Resolve(ctx context.Context, slug string) (Resolution, error) {
	e, ok, err := s.lookup(ctx, slug)
	if err != nil || !ok {
		return Resolution{}, err
	}

	var (
		g     models.Group
		links []models.Link
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		g, err = s.groups.GetByID(egctx, *e.GroupID)
		return err
	})
	eg.Go(func() error {
		var err error
		links, err = s.links.ListByGroup(egctx, *e.GroupID)
		return err
	})
	if err := eg.Wait(); err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			return Resolution{}, nil
		}
		return Resolution{}, fmt.Errorf("resolve %s: %w", e.Slug, err)
	}
	if !g.Active {
		return Resolution{}, nil
	}

	total := 0
	for _, l := range links {
		total += l.MemberCount
	}
	return Resolution{
		Found:     true,
		Available: allocation.HasHeadroom(links),
		Slug:      e.Slug,
		Group: &GroupInfo{
			Name:         g.Name,
			Description:  g.Description,
			TotalMembers: total,
		},
	}, nil
}

// AttemptJoin allocates a seat behind slug. Unknown, inactive and unrouted
// entries come back as OutcomeNotFound; the engine decides the rest.
func (s *Service) AttemptJoin(ctx context.Context, slug string, caller allocation.Caller) (allocation.Result, error) {
	e, ok, err := s.lookup(ctx, slug)
	if err != nil {
		s.log.Error("join lookup failed", zap.String("slug", slug), zap.Error(err))
		s.alloc.Metrics().ObserveOutcome(string(allocation.OutcomeStorageError))
		return allocation.Result{Outcome: allocation.OutcomeStorageError}, err
	}
	if !ok {
		s.alloc.Metrics().ObserveOutcome(string(allocation.OutcomeNotFound))
		return allocation.Result{Outcome: allocation.OutcomeNotFound}, nil
	}
	return s.alloc.Allocate(ctx, allocation.Request{
		EntryID: e.ID,
		GroupID: *e.GroupID,
		Caller:  caller,
	})
}

// SlugAvailable reports whether slug is well-formed and unclaimed.
func (s *Service) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	norm, err := NormalizeSlug(slug)
	if err != nil {
		return false, nil
	}
	exists, err := s.entries.SlugExists(ctx, norm)
	if err != nil {
		return false, fmt.Errorf("slug lookup: %w", err)
	}
	return !exists, nil
}

/* ---------------------------------- owner ---------------------------------- */

func (s *Service) checkGroup(ctx context.Context, owner string, groupID primitive.ObjectID) error {
	g, err := s.groups.GetByID(ctx, groupID)
	if errors.Is(err, groupstore.ErrNotFound) {
		return rollover.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if g.OwnerID != owner {
		return rollover.ErrNotOwner
	}
	return nil
}

func (s *Service) checkEntryLimit(ctx context.Context, owner string) error {
	lim, err := s.limits.LimitsFor(ctx, owner)
	if err != nil {
		return fmt.Errorf("plan limits: %w", err)
	}
	n, err := s.entries.CountActiveByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if !lim.AllowsEntry(n) {
		return fmt.Errorf("%w: at most %d active gateway entries", rollover.ErrPlanLimit, lim.MaxEntries)
	}
	return nil
}

func mapSlugTaken(err error) error {
	if errors.Is(err, gatewaystore.ErrSlugTaken) {
		return rollover.ErrSlugTaken
	}
	return err
}

// CreateEntry claims slug for owner. groupID may be nil for an entry that does
// not route anywhere yet. New entries are active.
func (s *Service) CreateEntry(ctx context.Context, owner, slug string, groupID *primitive.ObjectID) (models.GatewayEntry, error) {
	if owner == "" {
		return models.GatewayEntry{}, rollover.ErrUnauthenticated
	}
	norm, err := NormalizeSlug(slug)
	if err != nil {
		return models.GatewayEntry{}, err
	}
	if err := s.checkEntryLimit(ctx, owner); err != nil {
		return models.GatewayEntry{}, err
	}
	if groupID != nil {
		if err := s.checkGroup(ctx, owner, *groupID); err != nil {
			return models.GatewayEntry{}, err
		}
	}
	exists, err := s.entries.SlugExists(ctx, norm)
	if err != nil {
		return models.GatewayEntry{}, fmt.Errorf("slug lookup: %w", err)
	}
	if exists {
		return models.GatewayEntry{}, rollover.ErrSlugTaken
	}

	e, err := s.entries.Create(ctx, models.GatewayEntry{
		OwnerID: owner,
		Slug:    norm,
		GroupID: groupID,
		Active:  true,
	})
	if err != nil {
		return models.GatewayEntry{}, mapSlugTaken(err)
	}
	return e, nil
}

// EntryPatch is a partial entry update. ClearGroup unroutes the entry and
// takes precedence over GroupID.
type EntryPatch struct {
	Slug       *string
	GroupID    *primitive.ObjectID
	ClearGroup bool
	Active     *bool
}

// GetEntry returns one of the owner's entries.
func (s *Service) GetEntry(ctx context.Context, owner string, id primitive.ObjectID) (models.GatewayEntry, error) {
	if owner == "" {
		return models.GatewayEntry{}, rollover.ErrUnauthenticated
	}
	e, err := s.entries.GetByID(ctx, id)
	if errors.Is(err, gatewaystore.ErrNotFound) {
		return models.GatewayEntry{}, rollover.ErrNotFound
	}
	if err != nil {
		return models.GatewayEntry{}, fmt.Errorf("load entry: %w", err)
	}
	if e.OwnerID != owner {
		return models.GatewayEntry{}, rollover.ErrNotOwner
	}
	return e, nil
}

// UpdateEntry applies p with the same validation as CreateEntry. Reactivating
// an entry counts against the plan limit.
func (s *Service) UpdateEntry(ctx context.Context, owner string, id primitive.ObjectID, p EntryPatch) (models.GatewayEntry, error) {
	cur, err := s.GetEntry(ctx, owner, id)
	if err != nil {
		return models.GatewayEntry{}, err
	}

	patch := gatewaystore.Patch{Active: p.Active, ClearGroup: p.ClearGroup}
	if p.Slug != nil {
		norm, err := NormalizeSlug(*p.Slug)
		if err != nil {
			return models.GatewayEntry{}, err
		}
		if norm != cur.Slug {
			exists, err := s.entries.SlugExists(ctx, norm)
			if err != nil {
				return models.GatewayEntry{}, fmt.Errorf("slug lookup: %w", err)
			}
			if exists {
				return models.GatewayEntry{}, rollover.ErrSlugTaken
			}
			patch.Slug = &norm
		}
	}
	if !p.ClearGroup && p.GroupID != nil {
		if err := s.checkGroup(ctx, owner, *p.GroupID); err != nil {
			return models.GatewayEntry{}, err
		}
		patch.GroupID = p.GroupID
	}
	if p.Active != nil && *p.Active && !cur.Active {
		if err := s.checkEntryLimit(ctx, owner); err != nil {
			return models.GatewayEntry{}, err
		}
	}

	if err := s.entries.Update(ctx, id, patch); err != nil {
		if errors.Is(err, gatewaystore.ErrNotFound) {
			return models.GatewayEntry{}, rollover.ErrNotFound
		}
		return models.GatewayEntry{}, mapSlugTaken(err)
	}
	return s.GetEntry(ctx, owner, id)
}

// DeleteEntry removes one of the owner's entries. Its join records are kept.
func (s *Service) DeleteEntry(ctx context.Context, owner string, id primitive.ObjectID) error {
	if _, err := s.GetEntry(ctx, owner, id); err != nil {
		return err
	}
	if _, err := s.entries.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// EntryView is an entry with the name of the group it routes to.
type EntryView struct {
	models.GatewayEntry
	GroupName string `json:"group_name,omitempty"`
}

// EntryPage is one page of an owner's entries in slug order. Prev and Next
// are opaque cursors, blank when there is no such page.
type EntryPage struct {
	Entries []EntryView `json:"entries"`
	Prev    string      `json:"prev,omitempty"`
	Next    string      `json:"next,omitempty"`
}

// ListEntries returns one page of the owner's entries, each with the name of
// its group.
func (s *Service) ListEntries(ctx context.Context, owner string, p paging.Params) (EntryPage, error) {
	if owner == "" {
		return EntryPage{}, rollover.ErrUnauthenticated
	}
	ks := paging.ConfigureKeyset(p)
	entries, err := s.entries.ListPageByOwner(ctx, owner, ks)
	if err != nil {
		return EntryPage{}, fmt.Errorf("list entries: %w", err)
	}
	prev, next := paging.Finish(&entries, ks, p,
		func(e models.GatewayEntry) string { return e.Slug },
		func(e models.GatewayEntry) primitive.ObjectID { return e.ID },
	)

	var ids []primitive.ObjectID
	for _, e := range entries {
		if e.GroupID != nil {
			ids = append(ids, *e.GroupID)
		}
	}
	groups, err := s.groups.GetMany(ctx, ids)
	if err != nil {
		return EntryPage{}, fmt.Errorf("load groups: %w", err)
	}

	page := EntryPage{Entries: make([]EntryView, 0, len(entries)), Prev: prev, Next: next}
	for _, e := range entries {
		v := EntryView{GatewayEntry: e}
		if e.GroupID != nil {
			v.GroupName = groups[*e.GroupID].Name
		}
		page.Entries = append(page.Entries, v)
	}
	return page, nil
}

// DetachGroup unroutes every entry pointing at groupID.
func (s *Service) DetachGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	n, err := s.entries.DetachGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("detach entries: %w", err)
	}
	return n, nil
}
