// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/joinlink/internal/app/store/audit"
	"github.com/dalemusser/joinlink/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations accepted by Config.Admin.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Admin controls logging for owner actions on groups, links and entries.
	Admin string
}

// Logger writes owner admin events to MongoDB (via audit.Store) and/or zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.GroupID != nil {
		fields = append(fields, zap.String("group_id", event.GroupID.Hex()))
	}
	if event.TargetID != nil {
		fields = append(fields, zap.String("target_id", event.TargetID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := All
	if event.Category == audit.CategoryAdmin && l.config.Admin != "" {
		setting = l.config.Admin
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) admin(ctx context.Context, r *http.Request, eventType, actor string, groupID, targetID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   actor,
		GroupID:   groupID,
		TargetID:  targetID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// --- Group Events ---

func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, actor string, groupID primitive.ObjectID, name string) {
	l.admin(ctx, r, audit.EventGroupCreated, actor, &groupID, nil, map[string]string{"name": name})
}

// GroupUpdated logs a group change; fieldsChanged is a comma-separated list.
func (l *Logger) GroupUpdated(ctx context.Context, r *http.Request, actor string, groupID primitive.ObjectID, fieldsChanged string) {
	l.admin(ctx, r, audit.EventGroupUpdated, actor, &groupID, nil, map[string]string{"fields_changed": fieldsChanged})
}

func (l *Logger) GroupDeleted(ctx context.Context, r *http.Request, actor string, groupID primitive.ObjectID, linksDeleted, entriesDetached int64) {
	l.admin(ctx, r, audit.EventGroupDeleted, actor, &groupID, nil, map[string]string{
		"links_deleted":    strconv.FormatInt(linksDeleted, 10),
		"entries_detached": strconv.FormatInt(entriesDetached, 10),
	})
}

// --- Link Events ---

func (l *Logger) LinkAdded(ctx context.Context, r *http.Request, actor string, groupID, linkID primitive.ObjectID) {
	l.admin(ctx, r, audit.EventLinkAdded, actor, &groupID, &linkID, nil)
}

// LinkUpdated logs a manual link edit. change names what was edited (counts, exhausted, target).
func (l *Logger) LinkUpdated(ctx context.Context, r *http.Request, actor string, linkID primitive.ObjectID, change string) {
	l.admin(ctx, r, audit.EventLinkUpdated, actor, nil, &linkID, map[string]string{"change": change})
}

func (l *Logger) LinkRemoved(ctx context.Context, r *http.Request, actor string, linkID primitive.ObjectID) {
	l.admin(ctx, r, audit.EventLinkRemoved, actor, nil, &linkID, nil)
}

func (l *Logger) LinksReordered(ctx context.Context, r *http.Request, actor string, groupID primitive.ObjectID, count int) {
	l.admin(ctx, r, audit.EventLinksReordered, actor, &groupID, nil, map[string]string{"count": strconv.Itoa(count)})
}

// --- Gateway Entry Events ---

func (l *Logger) EntryCreated(ctx context.Context, r *http.Request, actor string, entryID primitive.ObjectID, slug string) {
	l.admin(ctx, r, audit.EventEntryCreated, actor, nil, &entryID, map[string]string{"slug": slug})
}

func (l *Logger) EntryUpdated(ctx context.Context, r *http.Request, actor string, entryID primitive.ObjectID, fieldsChanged string) {
	l.admin(ctx, r, audit.EventEntryUpdated, actor, nil, &entryID, map[string]string{"fields_changed": fieldsChanged})
}

func (l *Logger) EntryDeleted(ctx context.Context, r *http.Request, actor string, entryID primitive.ObjectID) {
	l.admin(ctx, r, audit.EventEntryDeleted, actor, nil, &entryID, nil)
}
