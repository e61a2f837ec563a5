// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	entriesfeature "github.com/dalemusser/joinlink/internal/app/features/entries"
	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/joinlink/internal/app/features/groups"
	healthfeature "github.com/dalemusser/joinlink/internal/app/features/health"
	joinsfeature "github.com/dalemusser/joinlink/internal/app/features/joins"
	linksfeature "github.com/dalemusser/joinlink/internal/app/features/links"
	publicfeature "github.com/dalemusser/joinlink/internal/app/features/public"
	"github.com/dalemusser/joinlink/internal/app/rollover/allocation"
	"github.com/dalemusser/joinlink/internal/app/rollover/gateway"
	"github.com/dalemusser/joinlink/internal/app/rollover/ledger"
	"github.com/dalemusser/joinlink/internal/app/store/audit"
	gatewaystore "github.com/dalemusser/joinlink/internal/app/store/gateways"
	groupstore "github.com/dalemusser/joinlink/internal/app/store/groups"
	joinstore "github.com/dalemusser/joinlink/internal/app/store/joins"
	linkstore "github.com/dalemusser/joinlink/internal/app/store/links"
	subscriptionstore "github.com/dalemusser/joinlink/internal/app/store/subscriptions"
	"github.com/dalemusser/joinlink/internal/app/system/auditlog"
	"github.com/dalemusser/joinlink/internal/app/system/auth"
	"github.com/dalemusser/joinlink/internal/app/system/metrics"
	"github.com/dalemusser/joinlink/internal/app/system/planlimits"
	"github.com/dalemusser/joinlink/internal/app/system/txn"
	"github.com/dalemusser/joinlink/internal/app/system/visitor"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It builds the stores and the rollover
// services on top of them, then mounts:
//   - /health and /metrics for operators
//   - /api/public and /j for anonymous visitors (rate limited)
//   - /api/groups, /api/links and /api/entries for signed-in owners
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Session cookies are written by the identity provider; this service only reads them.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	groups := groupstore.New(db)
	links := linkstore.New(db)
	entries := gatewaystore.New(db)
	joins := joinstore.New(db)

	limits, err := planlimits.New(appCfg.PlanLimits, subscriptionstore.New(db))
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	tx := txn.NewMongo(db, logger)

	engine := allocation.New(groups, links, joins, tx, logger,
		allocation.WithMaxAttempts(appCfg.AllocMaxAttempts),
		allocation.WithMetrics(metrics.NewAllocation(reg)))
	gw := gateway.New(entries, groups, links, engine, limits, logger)
	led := ledger.New(groups, links, tx, logger, appCfg.DefaultLinkCapacity)

	hashKey := []byte(appCfg.VisitorHashKey)
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
		logger.Warn("no visitor_hash_key configured; visitor hashes will change on restart")
	}
	visitors := visitor.New(hashKey)

	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Admin: appCfg.AuditLogAdmin})
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler(reg))

	// Public resolve and join
	publicHandler := publicfeature.NewHandler(gw, visitors, logger)
	r.Mount("/api/public", publicfeature.Routes(publicHandler, deps.JoinLimiter))
	r.Mount("/j", publicfeature.RedirectRoutes(publicHandler, deps.JoinLimiter))

	// Owner management
	groupsHandler := groupsfeature.NewHandler(groups, links, gw, tx, limits, auditLog, errLog, logger, appCfg.DefaultLinkCapacity)
	linksHandler := linksfeature.NewHandler(led, auditLog, errLog, logger)
	entriesHandler := entriesfeature.NewHandler(gw, auditLog, errLog, logger)
	joinsHandler := joinsfeature.NewHandler(joins, gw, groups, errLog, logger)

	r.Group(func(pr chi.Router) {
		pr.Use(sessionMgr.RequireSignedIn)

		pr.Route("/api/groups", func(gr chi.Router) {
			gr.Mount("/", groupsfeature.Routes(groupsHandler))
			gr.Mount("/{id}/links", linksfeature.GroupRoutes(linksHandler))
			gr.Mount("/{id}/joins", joinsfeature.GroupRoutes(joinsHandler))
		})
		pr.Mount("/api/links", linksfeature.Routes(linksHandler))
		pr.Route("/api/entries", func(er chi.Router) {
			er.Mount("/", entriesfeature.Routes(entriesHandler))
			er.Mount("/{id}/joins", joinsfeature.EntryRoutes(joinsHandler))
		})
	})

	return r, nil
}
