package http

import (
	"context"
	"net/http"
	"time"

	"github.com/creditwise/credit-gateway/internal/auth"
	"github.com/creditwise/credit-gateway/internal/cache"
	"github.com/creditwise/credit-gateway/internal/config"
	"github.com/creditwise/credit-gateway/internal/http/middleware"
	"github.com/creditwise/credit-gateway/internal/identity"
	"github.com/creditwise/credit-gateway/internal/ledger"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/metrics"
	"github.com/creditwise/credit-gateway/internal/repository"
	"github.com/creditwise/credit-gateway/internal/settings"
	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	e      *echo.Echo
	cancel context.CancelFunc // stops the cache janitor
}

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, verifier identity.Verifier) *Server {
	// repos (MySQL)
	accountsRepo := repository.NewAccountsRepository(mysqlDB)
	balancesRepo := repository.NewBalancesRepository(mysqlDB)
	plansRepo := repository.NewPlansRepository(mysqlDB)
	overridesRepo := repository.NewOverridesRepository(mysqlDB)
	usageRepo := repository.NewUsageRepository()
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	chUsageRepo := repository.NewCHUsageRepository(clickhouseDB)

	// shared settings cache, swept on a timer independent of reads
	settingsCache := cache.New[map[string]int64](cfg.Cache.Capacity)
	janitorCtx, cancel := context.WithCancel(context.Background())
	settingsCache.StartJanitor(janitorCtx, cfg.Cache.CleanupInterval)

	resolver := settings.NewResolver(overridesRepo, plansRepo, settingsCache, cfg.Cache.SettingsTTL)
	gate := auth.NewGate(cfg.Admin.AccountIDList(), cfg.Admin.EmailList())
	ledgerSvc := ledger.New(mysqlDB, balancesRepo, usageRepo, outboxRepo, resolver, cfg.Kafka.UsageTopic)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.IdentityMiddleware(verifier, accountsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:acct:",
		Window:         time.Second,
		RetryAfterHint: true,
	})
	gateMW := middleware.AdminGateMiddleware(gate)

	instCfg := middleware.InstrumentConfig{
		Logger:      logger.Log,
		Enabled:     cfg.Logging.Enabled,
		MinSeverity: cfg.Logging.MinSeverity,
		MinStatus:   cfg.Logging.MinStatus,
	}
	wrap := func(meta middleware.OpMeta, h echo.HandlerFunc) echo.HandlerFunc {
		return middleware.Instrument(instCfg, meta, h)
	}

	// metering routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.GET("/credits/balance", wrap(
		middleware.OpMeta{Method: http.MethodGet, Route: "/v1/credits/balance", Feature: "balance"},
		getBalanceHandler(ledgerSvc),
	))
	v1.POST("/credits/debit", wrap(
		middleware.OpMeta{Method: http.MethodPost, Route: "/v1/credits/debit", Feature: "debit"},
		debitHandler(ledgerSvc),
	))
	v1.GET("/plans", wrap(
		middleware.OpMeta{Method: http.MethodGet, Route: "/v1/plans", Feature: "plans"},
		listPlansHandler(plansRepo),
	))
	v1.GET("/usage", wrap(
		middleware.OpMeta{Method: http.MethodGet, Route: "/v1/usage", Feature: "usage"},
		listUsageHandler(chUsageRepo),
	))

	// admin routes: identity, then the authorization gate, then the handler
	admin := e.Group("/v1/admin", authMW, gateMW)
	admin.GET("/settings", wrap(
		middleware.OpMeta{Method: http.MethodGet, Route: "/v1/admin/settings", Feature: "settings"},
		getSettingsHandler(resolver),
	))
	admin.PUT("/settings", wrap(
		middleware.OpMeta{Method: http.MethodPut, Route: "/v1/admin/settings", Feature: "settings"},
		putSettingsHandler(resolver),
	))
	admin.POST("/credits/grant", wrap(
		middleware.OpMeta{Method: http.MethodPost, Route: "/v1/admin/credits/grant", Feature: "grant"},
		grantHandler(ledgerSvc, accountsRepo),
	))
	admin.POST("/credits/sync", wrap(
		middleware.OpMeta{Method: http.MethodPost, Route: "/v1/admin/credits/sync", Feature: "sync"},
		syncHandler(ledgerSvc, accountsRepo),
	))

	return &Server{e: e, cancel: cancel}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.e.Shutdown(ctx)
}
