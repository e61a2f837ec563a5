// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/joinlink/internal/app/system/auditlog"
	"github.com/dalemusser/joinlink/internal/app/system/planlimits"
	"github.com/dalemusser/joinlink/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the join-link service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: JOINLINK_MONGO_URI, JOINLINK_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "joinlink", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must match the identity provider)"},
	{Name: "session_name", Default: "joinlink-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	{Name: "plan_limits", Default: planlimits.NameUnlimited, Desc: "Plan limit policy: 'unlimited' or 'subscription'"},

	{Name: "alloc_max_attempts", Default: 5, Desc: "Claim attempts per join before reporting a storage error"},
	{Name: "default_link_capacity", Default: 256, Desc: "max_members for new links when the group sets none"},

	{Name: "visitor_hash_key", Default: "", Desc: "Key for hashing caller addresses on join records (required in prod)"},
	{Name: "join_retention", Default: "0s", Desc: "Delete join records older than this (0 keeps them; otherwise at least 720h)"},
	{Name: "join_retention_interval", Default: "1h", Desc: "How often the retention worker runs"},

	// Public join rate limiting
	{Name: "join_rate_limit", Default: 30, Desc: "Join attempts allowed per client IP per window"},
	{Name: "join_rate_window", Default: "1m", Desc: "Join rate limit window (e.g., 1m, 30s)"},
	{Name: "redis_addr", Default: "", Desc: "Redis address for a shared rate limit (blank uses in-memory)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Audit logging settings
	{Name: "audit_log_admin", Default: auditlog.All, Desc: "Owner event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Database timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Health check ping timeout"},
	{Name: "timeout_short", Default: "5s", Desc: "Single-document read timeout"},
	{Name: "timeout_medium", Default: "10s", Desc: "List and single-write timeout"},
	{Name: "timeout_long", Default: "30s", Desc: "Join commit and multi-collection write timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, JOINLINK_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "JOINLINK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		PlanLimits: appValues.String("plan_limits"),

		AllocMaxAttempts:    appValues.Int("alloc_max_attempts"),
		DefaultLinkCapacity: appValues.Int("default_link_capacity"),

		VisitorHashKey:        appValues.String("visitor_hash_key"),
		JoinRetention:         appValues.Duration("join_retention", 0),
		JoinRetentionInterval: appValues.Duration("join_retention_interval", time.Hour),

		JoinRateLimit:  appValues.Int("join_rate_limit"),
		JoinRateWindow: appValues.Duration("join_rate_window", time.Minute),
		RedisAddr:      appValues.String("redis_addr"),
		RedisPassword:  appValues.String("redis_password"),
		RedisDB:        appValues.Int("redis_db"),

		AuditLogAdmin: appValues.String("audit_log_admin"),

		TimeoutPing:   appValues.Duration("timeout_ping", timeouts.DefaultPing),
		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeout_long", timeouts.DefaultLong),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before connecting; the enum keys are checked here
// so a typo fails startup instead of silently picking a default.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

// minJoinRetention keeps the 30-day join stats complete.
const minJoinRetention = 30 * 24 * time.Hour

func validateApp(env string, appCfg AppConfig) error {
	var errs []error

	switch appCfg.PlanLimits {
	case planlimits.NameUnlimited, planlimits.NameSubscription:
	default:
		errs = append(errs, fmt.Errorf("plan_limits must be %q or %q, got %q",
			planlimits.NameUnlimited, planlimits.NameSubscription, appCfg.PlanLimits))
	}

	switch appCfg.AuditLogAdmin {
	case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
	default:
		errs = append(errs, fmt.Errorf("audit_log_admin must be all, db, log or off, got %q", appCfg.AuditLogAdmin))
	}

	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		errs = append(errs, fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize))
	}
	if appCfg.AllocMaxAttempts < 1 {
		errs = append(errs, errors.New("alloc_max_attempts must be at least 1"))
	}
	if appCfg.DefaultLinkCapacity < 1 {
		errs = append(errs, errors.New("default_link_capacity must be at least 1"))
	}
	if appCfg.JoinRateLimit < 1 || appCfg.JoinRateWindow <= 0 {
		errs = append(errs, errors.New("join_rate_limit and join_rate_window must be positive"))
	}
	if appCfg.JoinRetention < 0 || (appCfg.JoinRetention > 0 && appCfg.JoinRetention < minJoinRetention) {
		errs = append(errs, fmt.Errorf("join_retention must be 0 or at least %s", minJoinRetention))
	}
	if appCfg.JoinRetention > 0 && appCfg.JoinRetentionInterval <= 0 {
		errs = append(errs, errors.New("join_retention_interval must be positive"))
	}
	if env == "prod" && appCfg.VisitorHashKey == "" {
		errs = append(errs, errors.New("visitor_hash_key is required in prod"))
	}

	return errors.Join(errs...)
}
