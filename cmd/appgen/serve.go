package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/KOMKZ/go-appgen/appgen"
	"github.com/KOMKZ/go-appgen/apps"
	"github.com/KOMKZ/go-appgen/billing"
	"github.com/KOMKZ/go-appgen/config"
	"github.com/KOMKZ/go-appgen/database"
	"github.com/KOMKZ/go-appgen/health"
	"github.com/KOMKZ/go-appgen/httpapi"
	"github.com/KOMKZ/go-appgen/httpx"
	"github.com/KOMKZ/go-appgen/logger"
	"github.com/KOMKZ/go-appgen/middleware"
	"github.com/KOMKZ/go-appgen/ratelimit"
	"github.com/KOMKZ/go-appgen/redisx"
	"github.com/KOMKZ/go-appgen/workflow"
)

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Logger)
	log := logger.GetLogger("appgen")

	injector := newInjector(cfg)

	store, err := do.Invoke[ratelimit.Store](injector)
	if err != nil {
		return err
	}
	defer store.Close()

	janitor, err := do.Invoke[*ratelimit.Janitor](injector)
	if err != nil {
		return err
	}
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("start janitor failed: %w", err)
	}
	defer janitor.Stop()

	server, err := do.Invoke[*http.Server](injector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newInjector wires the object graph. Providers are lazy; only what the
// server actually needs gets built.
func newInjector(cfg *config.Config) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, provideStore)
	do.Provide(injector, provideDB)
	do.Provide(injector, provideBilling)
	do.Provide(injector, provideMetrics)
	do.Provide(injector, provideSystemLimiter)
	do.Provide(injector, provideGovernor)
	do.Provide(injector, provideJanitor)
	do.Provide(injector, provideRegistry)
	do.Provide(injector, provideService)
	do.Provide(injector, provideEngine)
	do.Provide(injector, provideHTTPServer)

	return injector
}

func provideStore(i do.Injector) (ratelimit.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if ratelimit.StoreType(cfg.RateLimit.StoreType) == ratelimit.StoreTypeRedis {
		client, err := redisx.NewClient(context.Background(), cfg.Redis, logger.GetLogger("redisx"))
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisStore(client, cfg.Redis.KeyPrefix), nil
	}
	return ratelimit.NewMemoryStore(), nil
}

func provideDB(i do.Injector) (*gorm.DB, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Database.DSN == "" {
		return nil, nil
	}
	return database.Open(cfg.Database)
}

func provideBilling(i do.Injector) (billing.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if !cfg.Billing.Enabled {
		// Without billing there is no plan to gate on; the daily quota
		// (if configured) applies to every tenant.
		return nil, nil
	}
	return billing.NewHTTPService(cfg.Billing.Endpoint, cfg.Billing.Timeout), nil
}

func provideMetrics(i do.Injector) (*ratelimit.OTelMetrics, error) {
	metrics := ratelimit.NewOTelMetrics()
	if err := metrics.Register(otel.Meter("appgen")); err != nil {
		return nil, err
	}
	return metrics, nil
}

func provideSystemLimiter(i do.Injector) (*ratelimit.SystemRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	store := do.MustInvoke[ratelimit.Store](i)
	limiter := ratelimit.NewSystemRateLimiter(store, cfg.RateLimit.DailyLimit, cfg.RateLimit.Window,
		logger.GetLogger("ratelimit"))
	limiter.SetMetrics(do.MustInvoke[*ratelimit.OTelMetrics](i))
	return limiter, nil
}

func provideGovernor(i do.Injector) (*ratelimit.ConcurrencyGovernor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	store := do.MustInvoke[ratelimit.Store](i)
	governor := ratelimit.NewConcurrencyGovernor(store, cfg.RateLimit.MaxTicketAge,
		logger.GetLogger("ratelimit"))
	governor.SetMetrics(do.MustInvoke[*ratelimit.OTelMetrics](i))
	return governor, nil
}

func provideJanitor(i do.Injector) (*ratelimit.Janitor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	governor := do.MustInvoke[*ratelimit.ConcurrencyGovernor](i)
	return ratelimit.NewJanitor(governor, cfg.RateLimit.RecalcInterval, logger.GetLogger("ratelimit"))
}

func provideRegistry(i do.Injector) (*appgen.Registry, error) {
	db := do.MustInvoke[*gorm.DB](i)

	var provider workflow.Provider
	if db != nil {
		provider = workflow.NewGormProvider(db)
	}
	registry := appgen.NewRegistry(provider)
	registerDemoStrategies(registry)
	return registry, nil
}

func provideService(i do.Injector) (*appgen.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return appgen.NewService(
		do.MustInvoke[*appgen.Registry](i),
		do.MustInvoke[*ratelimit.SystemRateLimiter](i),
		do.MustInvoke[*ratelimit.ConcurrencyGovernor](i),
		do.MustInvoke[billing.Service](i),
		cfg.RateLimit.DefaultMaxActiveRequests,
	), nil
}

func provideEngine(i do.Injector) (*gin.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	svc := do.MustInvoke[*appgen.Service](i)
	db := do.MustInvoke[*gorm.DB](i)
	store := do.MustInvoke[ratelimit.Store](i)

	var appProvider apps.Provider
	var nodeExecs workflow.NodeExecutionRepository
	if db != nil {
		appProvider = apps.NewGormProvider(db)
		nodeExecs = workflow.NewGormNodeExecutionRepository(db)
	} else {
		appProvider = demoApps()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	traceCfg := middleware.DefaultTraceConfig()
	traceCfg.TraceIDKey = cfg.Logger.TraceIDKey
	engine.Use(middleware.TraceID(traceCfg))
	engine.Use(middleware.RequestLogWithConfig(middleware.RequestLogConfig{
		SkipPaths: []string{"/health"},
	}))
	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	engine.GET("/health", newHealthAggregator(store, db).Handler())
	httpapi.NewHandler(svc, appProvider, nodeExecs).RegisterRoutes(engine)
	return engine, nil
}

// newHealthAggregator probes the admission store and, when configured,
// the database.
func newHealthAggregator(store ratelimit.Store, db *gorm.DB) *health.Aggregator {
	agg := health.NewAggregator(5 * time.Second)
	agg.Register("store", func(ctx context.Context) error {
		_, err := store.GetInt64(ctx, "health:probe")
		if errors.Is(err, ratelimit.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if db != nil {
		agg.Register("database", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	return agg
}

func provideHTTPServer(i do.Injector) (*http.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	engine := do.MustInvoke[*gin.Engine](i)
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
