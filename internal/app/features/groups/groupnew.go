// internal/app/features/groups/groupnew.go
package groups

import (
	"fmt"
	"net/http"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/limits"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/joinlink/internal/domain/models"
)

// HandleCreateGroup handles POST /api/groups.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)

	var req createRequest
	if err := errorsfeature.Decode(w, r, limits.MaxJSONBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	name, err := cleanName(req.Name)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	desc, err := cleanDescription(req.Description)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if err := checkCapacity(req.MaxMembersDefault); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	capacity := h.DefaultCapacity
	if req.MaxMembersDefault != nil {
		capacity = *req.MaxMembersDefault
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	lim, err := h.Limits.LimitsFor(ctx, owner)
	if err != nil {
		h.ErrLog.Write(w, r, fmt.Errorf("plan limits: %w", err))
		return
	}
	n, err := h.Groups.CountByOwner(ctx, owner)
	if err != nil {
		h.ErrLog.Write(w, r, fmt.Errorf("count groups: %w", err))
		return
	}
	if !lim.AllowsGroup(n) {
		h.ErrLog.Write(w, r, fmt.Errorf("%w: at most %d groups", rollover.ErrPlanLimit, lim.MaxGroups))
		return
	}

	g, err := h.Groups.Create(ctx, models.Group{
		OwnerID:           owner,
		Name:              name,
		Description:       desc,
		MaxMembersDefault: capacity,
		Active:            true,
	})
	if err != nil {
		h.ErrLog.Write(w, r, fmt.Errorf("create group: %w", err))
		return
	}

	h.Audit.GroupCreated(ctx, r, owner, g.ID, g.Name)
	errorsfeature.JSON(w, http.StatusCreated, g)
}
