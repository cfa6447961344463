package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"go-task-manager/internal/auth"
	"go-task-manager/internal/config"
	"go-task-manager/internal/database"
	"go-task-manager/internal/handler"
	"go-task-manager/internal/mailer"
	"go-task-manager/internal/metrics"
	"go-task-manager/internal/middleware"
	"go-task-manager/internal/model"
	"go-task-manager/internal/repository"
	"go-task-manager/internal/router"
	"go-task-manager/internal/service"
	"go-task-manager/internal/token"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

// services is the dependency graph shared by the server and the CLI commands.
type services struct {
	codec *token.Codec
	auth  *service.AuthService
	reset *service.ResetService
}

func newServices(cfg *config.Config, db *database.DB, m *metrics.Metrics, logger *slog.Logger) (*services, error) {
	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, token.WithTTL(cfg.JWTTTL))
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	resetRepo := repository.NewResetRepository(db.Pool)

	authService, err := service.NewAuthService(userRepo, codec, m, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	sender, err := newSender(cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	resetService := service.NewResetService(resetRepo, userRepo, sender, m,
		service.WithResetCodeTTL(cfg.ResetCodeTTL),
		service.WithResetBcryptCost(cfg.BcryptCost),
		service.WithMaxCodeFailures(cfg.ResetMaxAttempts),
	)

	return &services{codec: codec, auth: authService, reset: resetService}, nil
}

func newSender(cfg config.MailConfig, logger *slog.Logger) (mailer.Sender, error) {
	if cfg.Driver == config.MailDriverPostmark {
		return mailer.NewPostmarkSender(mailer.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			From:         cfg.From,
		})
	}
	return mailer.NewLogSender(logger.With("component", "mailer")), nil
}

func connect(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, database.MigrateUp); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("database ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	svc, err := newServices(cfg, db, m, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	gate := auth.NewGate(svc.codec, m)
	authMiddleware := middleware.NewAuthMiddleware(gate)

	appRouter := router.New(cfg, logger, authMiddleware, router.Handlers{
		Auth: handler.NewAuthHandler(svc.auth),
		Reset: handler.NewResetHandler(svc.reset, handler.ResetHandlerOptions{
			RevealUnknownEmail: cfg.ResetRevealUnknownEmail,
			ExposeCode:         cfg.ResetExposeCode,
		}),
		User:    handler.NewUserHandler(svc.auth),
		Health:  handler.NewHealthHandler(db),
		Metrics: metrics.Handler(registry),
	})

	if cfg.ResetExposeCode {
		slog.Warn("RESET_EXPOSE_CODE is enabled; reset codes are returned in API responses")
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cleanupFuncs: []func(){db.Close},
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
}

// Migrate runs a single migration command and exits.
func Migrate(ctx context.Context, cfg *config.Config, command database.MigrationCommand) error {
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Migrate(ctx, command)
}

// CreateAdmin registers an administrator account.
func CreateAdmin(ctx context.Context, cfg *config.Config, logger *slog.Logger, req model.SignupRequest) (model.AuthUser, error) {
	db, err := connect(ctx, cfg)
	if err != nil {
		return model.AuthUser{}, err
	}
	defer db.Close()

	svc, err := newServices(cfg, db, nil, logger)
	if err != nil {
		return model.AuthUser{}, err
	}

	return svc.auth.CreateAdmin(ctx, req)
}
