package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/sok/internal/auth/http"
	"github.com/aussiebroadwan/sok/internal/auth/oauthstate"
	"github.com/aussiebroadwan/sok/internal/auth/provider"
	"github.com/aussiebroadwan/sok/internal/auth/service"
	"github.com/aussiebroadwan/sok/internal/auth/store"
	"github.com/aussiebroadwan/sok/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/sok/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/sok/pkg/cryptox"
	"github.com/aussiebroadwan/sok/pkg/jwtx"
	"github.com/aussiebroadwan/sok/pkg/slogx"
	"github.com/gorilla/securecookie"
)

// BuildVersion is set at build time via -ldflags "-X ...app.BuildVersion=".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	codec *jwtx.Codec

	// Services
	tokenService        *service.TokenService
	userService         *service.UserService
	oauth2Service       *service.OAuth2Service // nil without providers
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "auth-service",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	return newApplication(cfg, NewLogger(cfg))
}

func newApplication(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	db, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	codec, err := InitCodec(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	app.initServices()
	app.initOAuth2()
	if err := app.initHTTP(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion, "store", app.cfg.StoreDriver)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// OpenStore opens the configured store and brings its schema up to date.
func OpenStore(cfg Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		logger.Warn("memory store selected, users and sessions are lost on restart")
		return memory.NewStore(memory.Options{Capacity: cfg.StoreCapacity, MaxTTL: cfg.RefreshTTL}), nil

	default:
		db, err := OpenSQLite(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply database migrations: %w", err)
		}
		logger.Info("database migrations applied successfully", "file", cfg.DatabaseFile)
		return db, nil
	}
}

// OpenSQLite opens the database without touching its schema.
func OpenSQLite(cfg Config) (*sqlite.Store, error) {
	db, err := sqlite.NewStore(sqliteDSN(cfg.DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func sqliteDSN(file string) string {
	if file == ":memory:" {
		return file
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", file)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.userService = &service.UserService{Store: app.db}

	app.tokenService = &service.TokenService{
		Codec:          app.codec,
		Store:          app.db,
		AccessTTL:      app.cfg.AccessTTL,
		RefreshTTL:     app.cfg.RefreshTTL,
		StrictRotation: app.cfg.StrictRotation,
	}
	if app.cfg.RecheckPrincipal {
		app.tokenService.Principals = app.userService
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initOAuth2 registers every provider with credentials. Without any the
// /oauth2 routes are not mounted.
func (app *Application) initOAuth2() {
	oc := app.cfg.OAuth2

	registry := provider.NewRegistry()
	if oc.Google.Enabled() {
		registry.Register(provider.Google(oc.Google))
	}
	if oc.GitHub.Enabled() {
		registry.Register(provider.GitHub(oc.GitHub))
	}
	if oc.Kakao.Enabled() {
		registry.Register(provider.Kakao(oc.Kakao))
	}
	if len(registry.Names()) == 0 {
		app.logger.Info("no oauth2 providers configured")
		return
	}

	app.oauth2Service = &service.OAuth2Service{
		Providers:        registry,
		Users:            app.userService,
		Tokens:           app.tokenService,
		Store:            app.db,
		StateTTL:         oc.StateTTL,
		DefaultRedirect:  oc.DefaultRedirect,
		AllowedRedirects: oc.AllowedRedirects,
	}
	app.logger.Info("oauth2 providers enabled", "providers", registry.Names())
}

func (app *Application) initStates() (*oauthstate.Repository, error) {
	oc := app.cfg.OAuth2

	hashKey := []byte(oc.StateHashKey)
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(oauthstate.MinHashKeySize)
		app.logger.Warn("no oauth2 state hash key configured, generated one; flows in flight will not survive a restart")
	}

	states, err := oauthstate.New(oauthstate.Options{
		HashKey:  hashKey,
		BlockKey: []byte(oc.StateBlockKey),
		TTL:      oc.StateTTL,
		Secure:   oc.CookieSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oauth2 state: %w", err)
	}
	return states, nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(
		app.codec,
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.RateLimits,
	)

	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.OAuth2 = httpapi.OAuth2Options{
		FailureURL:   app.cfg.OAuth2.FailureURL,
		Delivery:     httpapi.TokenDelivery(app.cfg.OAuth2.TokenDelivery),
		CookieSecure: app.cfg.OAuth2.CookieSecure,
	}
	if app.oauth2Service != nil {
		states, err := app.initStates()
		if err != nil {
			return err
		}
		router.OAuth2Service = app.oauth2Service
		router.States = states
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
