// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	joinstore "github.com/dalemusser/joinlink/internal/app/store/joins"
	"github.com/dalemusser/joinlink/internal/app/system/indexes"
	"github.com/dalemusser/joinlink/internal/app/system/ratelimit"
	"github.com/dalemusser/joinlink/internal/app/system/validators"
	"github.com/dalemusser/joinlink/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// ConnectDB connects to MongoDB and, when configured, Redis.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool_size", appCfg.MongoMinPoolSize))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}
	if appCfg.JoinRetention > 0 {
		deps.retention = workers.NewJoinRetention(joinstore.New(deps.MongoDatabase), logger,
			appCfg.JoinRetentionInterval, appCfg.JoinRetention)
	}

	if appCfg.RedisAddr == "" {
		lim := ratelimit.New(appCfg.JoinRateLimit, appCfg.JoinRateWindow)
		deps.JoinLimiter = lim
		deps.closeLimiter = func() error { lim.Close(); return nil }
		return deps, nil
	}

	lim, err := ratelimit.NewRedis(ctx, ratelimit.RedisOptions{
		Addr:     appCfg.RedisAddr,
		Password: appCfg.RedisPassword,
		DB:       appCfg.RedisDB,
	}, appCfg.JoinRateLimit, appCfg.JoinRateWindow, logger)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}
	deps.JoinLimiter = lim
	deps.closeLimiter = lim.Close
	return deps, nil
}

// EnsureSchema reconciles the indexes every store relies on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("schema ensured")
	return nil
}
