// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/joinlink/internal/app/system/ratelimit"
	"github.com/dalemusser/joinlink/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// JoinLimiter throttles public join attempts. It is Redis-backed when
	// redis_addr is set.
	JoinLimiter ratelimit.Allower

	closeLimiter func() error

	// retention prunes old join records; nil when join_retention is 0.
	retention *workers.JoinRetention
}
