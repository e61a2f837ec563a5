// Package rollover holds what the ledger, allocation and gateway packages share.
package rollover

import "errors"

// Owner-facing failures. Callers branch on these with errors.Is.
var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrNotOwner        = errors.New("not the owner of this resource")
	ErrNotFound        = errors.New("not found")
	ErrInvalidTarget   = errors.New("target must be a chat.whatsapp.com invite link")
	ErrInvalidCount    = errors.New("invalid member count")
	ErrInvalidSlug     = errors.New("slug must be 1-64 characters of a-z, 0-9, '-' or '_' and start with a letter or digit")
	ErrSlugTaken       = errors.New("slug is already in use")
	ErrPlanLimit       = errors.New("plan limit reached")
)
