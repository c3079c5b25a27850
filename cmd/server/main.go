// Command pto-server serves the PTO bridge: the sign-in widget, the websocket
// bridge and a gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/pto-keeper/internal/authstate"
	"github.com/and161185/pto-keeper/internal/bridge"
	"github.com/and161185/pto-keeper/internal/config"
	"github.com/and161185/pto-keeper/internal/migrate"
	"github.com/and161185/pto-keeper/internal/oauth"
	"github.com/and161185/pto-keeper/internal/repository"
	"github.com/and161185/pto-keeper/internal/repository/memory"
	"github.com/and161185/pto-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/pto-keeper/internal/server/grpc"
	"github.com/and161185/pto-keeper/internal/server/httpapi"
	"github.com/and161185/pto-keeper/internal/server/ws"
	"github.com/and161185/pto-keeper/internal/service"
	"github.com/and161185/pto-keeper/internal/session"
	"github.com/and161185/pto-keeper/internal/widget"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main loads configuration, wires storage and services, and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:], config.Environ())
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCAddr),
		zap.String("storage", cfg.Storage),
		zap.Int("year", cfg.Year),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Repositories
	var (
		users repository.UserRepository
		recs  repository.PtoRepository
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		if err := migrate.Up(ctx, cfg.Backend.DatabaseDSN, logger); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.Open(ctx, cfg.Backend.DatabaseDSN, postgres.Options{})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		users, recs = postgres.NewUserRepo(db), postgres.NewPtoRepo(db)
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		users, recs = memory.NewUserRepo(), memory.NewPtoRepo()
	}

	g, gctx := errgroup.WithContext(ctx)

	// Sessions and auth-state fan-out
	hub := authstate.NewHub()
	var (
		sessions session.Store       = session.NewMemoryStore()
		pub      authstate.Publisher = hub
	)
	if cfg.Backend.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Backend.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		relay := authstate.NewRedisRelay(rdb, hub, logger)
		ready := make(chan struct{})
		g.Go(func() error { return relay.Run(gctx, ready) })
		select {
		case <-ready:
		case <-gctx.Done():
			return g.Wait()
		}
		sessions, pub = session.NewRedisStore(rdb), relay
	}

	// Services
	authSvc := service.NewAuthService(users, sessions, pub, hub, []byte(cfg.SigningKey), cfg.IDTokenTTL, cfg.SessionTTL)
	ptoSvc := service.NewPtoService(recs)

	google := oauth.NewGoogle(oauth.GoogleConfig{
		ClientID:     cfg.Backend.Google.ClientID,
		ClientSecret: cfg.Backend.Google.ClientSecret,
		RedirectURL:  cfg.Backend.Google.RedirectURL,
	}, []byte(cfg.SigningKey))

	// Bridges derive from wsCtx, which outlives the HTTP server during shutdown.
	wsCtx, cancelWS := context.WithCancel(context.Background())
	defer cancelWS()
	wsHandler := ws.NewHandler(wsCtx, authSvc, ptoSvc, logger,
		bridge.Options{CurrentYear: cfg.Year, RefreshOnWrite: cfg.RefreshOnWrite},
		cfg.AllowedOrigins)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:          authSvc,
		Users:         users,
		Google:        google,
		Widget:        widget.NewOptions(cfg.Backend.ProjectID, cfg.Backend.APIKey, cfg.Backend.AuthDomain, google.Enabled()),
		WS:            wsHandler,
		Log:           logger,
		SecureCookies: cfg.SecureCookies,
		OpenerOrigin:  cfg.OpenerOrigin,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ops := grpcserver.New(logger, cfg.Dev)

	// Listen
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}

	g.Go(func() error {
		logger.Info("listening (http)", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcLis != nil {
		g.Go(func() error {
			logger.Info("listening (grpc)", zap.String("addr", cfg.GRPCAddr))
			return ops.GRPC.Serve(grpcLis)
		})
	}
	ops.MarkServing()

	// Wait for stop
	g.Go(func() error {
		<-gctx.Done()
		ops.MarkNotServing()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}

		// hijacked websocket connections are not tracked by Shutdown
		cancelWS()
		wsHandler.Wait()

		done := make(chan struct{})
		go func() {
			ops.GRPC.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			ops.GRPC.Stop()
		}
		return nil
	})

	return g.Wait()
}
