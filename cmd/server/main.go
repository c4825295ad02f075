// Command nevi-server starts the session authentication HTTP server.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/and161185/nevi/internal/activity"
	"github.com/and161185/nevi/internal/config"
	"github.com/and161185/nevi/internal/limiter"
	"github.com/and161185/nevi/internal/migrate"
	"github.com/and161185/nevi/internal/recordstore"
	"github.com/and161185/nevi/internal/repository/postgres"
	httpserver "github.com/and161185/nevi/internal/server/http"
	"github.com/and161185/nevi/internal/service"
	"github.com/and161185/nevi/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves HTTP plus a gRPC health endpoint.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	store, err := recordstore.Open(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("record store", zap.Error(err))
	}
	defer store.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(store)
	activityRepo := postgres.NewActivityRepo(store)
	eventRepo := postgres.NewEventRepo(store)
	recorder := activity.NewRecorder(activityRepo, logger)

	// Sessions
	var sessions session.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		sessions = session.NewRedisStore(rdb, "session", cfg.Session.TTL)
	} else {
		logger.Warn("no redis configured, sessions are kept in memory")
		sessions = session.NewMemoryStore(cfg.Session.TTL)
	}

	// Services
	opts := []service.Option{service.WithLogger(logger)}
	policy := limiter.Policy{MaxFails: cfg.Limiter.MaxFails, Window: cfg.Limiter.Window, Block: cfg.Limiter.Block}
	if policy.Enabled() {
		opts = append(opts, service.WithLimiter(limiter.NewStore(store, policy)))
	}
	authSvc := service.NewAuthService(userRepo, sessions, session.NewSigner([]byte(cfg.Session.Key)), recorder, service.Config{
		SessionCookie:  cfg.Session.Cookie,
		RememberCookie: cfg.Session.RememberCookie,
		RememberTTL:    cfg.Session.RememberTTL,
		SecureCookies:  cfg.Session.SecureCookies,
		RememberCAS:    cfg.Session.RememberCAS,
	}, opts...)
	accountSvc := service.NewAccountService(userRepo, activityRepo, eventRepo)
	recoverySvc := service.NewRecoveryService(userRepo, service.LogMailer{Log: logger}, recorder)

	app := httpserver.New(authSvc, accountSvc, recoverySvc, httpserver.Redirects{
		Login:  cfg.Redirects.Login,
		Verify: cfg.Redirects.Verify,
		Home:   cfg.Redirects.Home,
	}, logger,
		httpserver.WithThrottle(cfg.Limiter.RequestsPerSecond, cfg.Limiter.Burst),
		httpserver.WithTrustedProxies(cfg.TrustedProxies),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Health
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hlis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		logger.Fatal("listen health", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		errCh <- gs.Serve(hlis)
	}()
	go watchHealth(ctx, store, hs, logger)

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		gs.GracefulStop()
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// watchHealth flips the health status with database reachability.
func watchHealth(ctx context.Context, store *recordstore.Store, hs *health.Server, log *zap.Logger) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := store.Ping(pctx); err != nil {
			log.Warn("database ping", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
