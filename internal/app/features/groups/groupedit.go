// internal/app/features/groups/groupedit.go
package groups

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/limits"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
)

// HandleEditGroup handles PATCH /api/groups/{id}.
func (h *Handler) HandleEditGroup(w http.ResponseWriter, r *http.Request) {
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
		patch   groupstore.Patch
		changed []string
	)
	if req.Name != nil {
		name, err := cleanName(*req.Name)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		patch.Name = &name
		changed = append(changed, "name")
	}
	if req.Description != nil {
		desc, err := cleanDescription(*req.Description)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		patch.Description = &desc
		changed = append(changed, "description")
	}
	if req.MaxMembersDefault != nil {
		if err := checkCapacity(req.MaxMembersDefault); err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		patch.MaxMembersDefault = req.MaxMembersDefault
		changed = append(changed, "max_members_default")
	}
	if req.Active != nil {
		patch.Active = req.Active
		changed = append(changed, "active")
	}
	if len(changed) == 0 {
		h.ErrLog.Write(w, r, badRequest("nothing to update"))
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	if _, err := h.ownedGroup(ctx, owner, id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if err := h.Groups.Update(ctx, id, patch); err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			err = rollover.ErrNotFound
		}
		h.ErrLog.Write(w, r, err)
		return
	}
	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		h.ErrLog.Write(w, r, fmt.Errorf("reload group: %w", err))
		return
	}

	h.Audit.GroupUpdated(ctx, r, owner, id, strings.Join(changed, ","))
	errorsfeature.JSON(w, http.StatusOK, g)
}

// HandleSetCurrentMembers handles PUT /api/groups/{id}/current-members. The
// value is advisory and clamped at zero.
func (h *Handler) HandleSetCurrentMembers(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	var req currentMembersRequest
	if err := errorsfeature.Decode(w, r, limits.MaxJSONBody, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if req.CurrentMembers == nil {
		h.ErrLog.Write(w, r, badRequest("current_members is required"))
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	if _, err := h.ownedGroup(ctx, owner, id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if err := h.Groups.SetCurrentMembers(ctx, id, *req.CurrentMembers); err != nil {
		if errors.Is(err, groupstore.ErrNotFound) {
			err = rollover.ErrNotFound
		}
		h.ErrLog.Write(w, r, err)
		return
	}
	g, err := h.Groups.GetByID(ctx, id)
	if err != nil {
		h.ErrLog.Write(w, r, fmt.Errorf("reload group: %w", err))
		return
	}

	h.Audit.GroupUpdated(ctx, r, owner, id, "current_members")
	errorsfeature.JSON(w, http.StatusOK, g)
}
