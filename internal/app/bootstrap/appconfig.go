// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging and CORS. Everything the
// join-link service needs on top of that lives here and is passed to every
// lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session cookie written by the identity provider and read here
	SessionKey    string
	SessionName   string
	SessionDomain string // blank means current host
	SessionMaxAge time.Duration

	// Plan limits: "unlimited" or "subscription"
	PlanLimits string

	// Allocation
	AllocMaxAttempts    int // claim attempts per join before no_capacity
	DefaultLinkCapacity int // max_members for links in groups without a default

	// Join records
	VisitorHashKey string // key for the anonymized caller id

	// Join record retention; zero keeps records forever
	JoinRetention         time.Duration
	JoinRetentionInterval time.Duration

	// Public join rate limit, per client IP
	JoinRateLimit  int
	JoinRateWindow time.Duration

	// Redis for a rate limit shared across instances (blank uses in-memory)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Audit logging of owner actions: all, db, log, off
	AuditLogAdmin string

	// Handler database timeouts
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
