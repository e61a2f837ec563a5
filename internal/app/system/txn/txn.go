// Package txn runs a unit of work inside a MongoDB transaction when the
// deployment supports one, and falls back to running it directly on a
// standalone mongod (local development) where transactions are unavailable.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes returned when transactions or sessions cannot be used.
const (
	codeIllegalOperation      = 20
	codeInvalidOptions        = 51
	codeOperationNotSupported = 263
)

// Runner executes fn as one unit of work.
// The context passed to fn must be used for every store call inside it.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mongo is the Runner backed by a database handle.
type Mongo struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewMongo constructs a Mongo runner.
func NewMongo(db *mongo.Database, logger *zap.Logger) *Mongo {
	return &Mongo{DB: db, Log: logger}
}

// Run implements Runner.
func (m *Mongo) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return Run(ctx, m.DB, m.Log, fn)
}

// Direct runs fn without a transaction. In-memory stores in tests use it.
type Direct struct{}

// Run implements Runner.
func (Direct) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Run executes fn inside a transaction. If the server rejects transactions
// (standalone node), fn is executed once more without one.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if log != nil {
			log.Debug("transactions unsupported; running without transaction", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err indicates the deployment cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeIllegalOperation, codeInvalidOptions, codeOperationNotSupported:
			return true
		}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "transaction") && strings.Contains(s, "replica set"):
		return true
	case strings.Contains(s, "session") && strings.Contains(s, "not supported"):
		return true
	case strings.Contains(s, "transaction") && strings.Contains(s, "session"):
		return true
	case strings.Contains(s, "illegal operation"):
		return true
	}
	return false
}
