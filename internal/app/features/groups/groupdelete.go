// internal/app/features/groups/groupdelete.go
package groups

import (
	"context"
	"fmt"
	"net/http"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleDeleteGroup handles DELETE /api/groups/{id}. The group's links go
// with it and entries routed to it are left unrouted, all in one unit of work.
// Join records are kept.
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerID(r)
	id, err := errorsfeature.ObjectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithLong(r.Context())
	defer cancel()

	if _, err := h.ownedGroup(ctx, owner, id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	var resp deleteResponse
	err = h.Tx.Run(ctx, func(ctx context.Context) error {
		links, err := h.Links.DeleteByGroup(ctx, id)
		if err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		detached, err := h.Entries.DetachGroup(ctx, id)
		if err != nil {
			return fmt.Errorf("detach entries: %w", err)
		}
		n, err := h.Groups.Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		resp = deleteResponse{Deleted: n > 0, LinksDeleted: links, EntriesDetached: detached}
		return nil
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.Log.Info("group deleted",
		zap.String("group_id", id.Hex()),
		zap.Int64("links_deleted", resp.LinksDeleted),
		zap.Int64("entries_detached", resp.EntriesDetached))
	h.Audit.GroupDeleted(ctx, r, owner, id, resp.LinksDeleted, resp.EntriesDetached)
	errorsfeature.JSON(w, http.StatusOK, resp)
}
