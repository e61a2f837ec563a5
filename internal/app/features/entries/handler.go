// internal/app/features/entries/handler.go
package entries

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover/gateway"
	"github.com/dalemusser/joinlink/internal/app/system/auditlog"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/limits"
	"github.com/dalemusser/joinlink/internal/app/system/paging"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Gateway is the slice of the gateway service the owner endpoints use.
type Gateway interface {
	CreateEntry(ctx context.Context, owner, slug string, groupID *primitive.ObjectID) (models.GatewayEntry, error)
	GetEntry(ctx context.Context, owner string, id primitive.ObjectID) (models.GatewayEntry, error)
	UpdateEntry(ctx context.Context, owner string, id primitive.ObjectID, p gateway.EntryPatch) (models.GatewayEntry, error)
	DeleteEntry(ctx context.Context, owner string, id primitive.ObjectID) error
	ListEntries(ctx context.Context, owner string, p paging.Params) (gateway.EntryPage, error)
}

// Handler serves /api/entries.
type Handler struct {
	Gateway Gateway
	Audit   *auditlog.Logger
	ErrLog  *errorsfeature.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(gw Gateway, audit *auditlog.Logger, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Gateway: gw,
		Audit:   audit,
		ErrLog:  errLog,
		Log:     logger,
	}
}

type createRequest struct {
	Slug    string `json:"slug"`
	GroupID string `json:"group_id"`
}

// updateRequest: an empty group_id unroutes the entry.
type updateRequest struct {
	Slug    *string `json:"slug"`
	GroupID *string `json:"group_id"`
	Active  *bool   `json:"active"`
}

// parseGroupID reads an optional group id from a request body.
func parseGroupID(raw string) (*primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: group_id is not a valid id", errorsfeature.ErrBadRequest)
	}
	return &oid, nil
}

// ServeList handles GET /api/entries?after=&before=, one page in slug order.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	page, err := h.Gateway.ListEntries(ctx, auth.OwnerID(r), paging.ParseParams(r))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, page)
}

// ServeEntry handles GET /api/entries/{id}.
func (h *Handler) ServeEntry(w http.ResponseWriter, r *http.Request) {
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	e, err := h.Gateway.GetEntry(ctx, auth.OwnerID(r), id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, e)
}

// HandleCreate handles POST /api/entries.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	var req createRequest
	if err := errorsfeature.Decode(w, r, limits.MaxJSONBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	groupID, err := parseGroupID(req.GroupID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	e, err := h.Gateway.CreateEntry(ctx, owner, req.Slug, groupID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.EntryCreated(ctx, r, owner, e.ID, e.Slug)
	errorsfeature.JSON(w, http.StatusCreated, e)
}

// HandleUpdate handles PATCH /api/entries/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req updateRequest
	if err := errorsfeature.Decode(w, r, limits.MaxJSONBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	var (
		patch   gateway.EntryPatch
		changed []string
	)
	if req.Slug != nil {
		patch.Slug = req.Slug
		changed = append(changed, "slug")
	}
	if req.GroupID != nil {
		groupID, err := parseGroupID(*req.GroupID)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		patch.GroupID = groupID
		patch.ClearGroup = groupID == nil
		changed = append(changed, "group_id")
	}
	if req.Active != nil {
		patch.Active = req.Active
		changed = append(changed, "active")
	}
	if len(changed) == 0 {
		errorsfeature.Message(w, http.StatusBadRequest, "nothing to update")
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	e, err := h.Gateway.UpdateEntry(ctx, owner, id, patch)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.EntryUpdated(ctx, r, owner, id, strings.Join(changed, ","))
	errorsfeature.JSON(w, http.StatusOK, e)
}

// HandleDelete handles DELETE /api/entries/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	if err := h.Gateway.DeleteEntry(ctx, owner, id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.EntryDeleted(ctx, r, owner, id)
	w.WriteHeader(http.StatusNoContent)
}
