// internal/app/features/groups/handler.go
package groups

import (
	"context"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	"github.com/dalemusser/joinlink/internal/app/system/auditlog"
	"github.com/dalemusser/joinlink/internal/app/system/planlimits"
	"github.com/dalemusser/joinlink/internal/app/system/txn"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Groups is the group store as used by the handlers.
type Groups interface {
	Create(ctx context.Context, g models.Group) (models.Group, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Group, error)
	CountByOwner(ctx context.Context, owner string) (int64, error)
	Update(ctx context.Context, id primitive.ObjectID, p groupstore.Patch) error
	SetCurrentMembers(ctx context.Context, id primitive.ObjectID, n int) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// LinkRemover drops every link of a deleted group.
type LinkRemover interface {
	DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error)
}

// EntryDetacher unroutes gateway entries that point at a deleted group.
type EntryDetacher interface {
	DetachGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error)
}

// Handler is the shared dependency container for the groups feature.
type Handler struct {
	Groups  Groups
	Links   LinkRemover
	Entries EntryDetacher
	Tx      txn.Runner
	Limits  planlimits.Policy
	Audit   *auditlog.Logger
	ErrLog  *errorsfeature.ErrorLogger
	Log     *zap.Logger

	// DefaultCapacity seeds max_members_default when a create omits it.
	DefaultCapacity int
}

func NewHandler(groups Groups, links LinkRemover, entries EntryDetacher, tx txn.Runner, limits planlimits.Policy,
	audit *auditlog.Logger, errLog *errorsfeature.ErrorLogger, logger *zap.Logger, defaultCapacity int) *Handler {
	if limits == nil {
		limits = planlimits.Unlimited{}
	}
	return &Handler{
		Groups:          groups,
		Links:           links,
		Entries:         entries,
		Tx:              tx,
		Limits:          limits,
		Audit:           audit,
		ErrLog:          errLog,
		Log:             logger,
		DefaultCapacity: defaultCapacity,
	}
}
