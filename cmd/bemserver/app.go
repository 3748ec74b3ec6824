package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nkiryanov/bemserver/internal/db"
	"github.com/nkiryanov/bemserver/internal/handlers"
	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/logger"
	"github.com/nkiryanov/bemserver/internal/repository/postgres"
	"github.com/nkiryanov/bemserver/internal/service/account"
	"github.com/nkiryanov/bemserver/internal/service/auth"
	"github.com/nkiryanov/bemserver/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bemserver/internal/service/authcode"
	"github.com/nkiryanov/bemserver/internal/service/notify"
	"github.com/nkiryanov/bemserver/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	pool    *pgxpool.Pool
	sweeper *authcode.Sweeper
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	schemes, err := auth.ParseSchemes(c.AuthMethods)
	if err != nil {
		return nil, fmt.Errorf("error while parsing auth methods. Err: %w", err)
	}

	ipResolver, err := middleware.NewIPResolver(c.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("error while parsing trusted proxies. Err: %w", err)
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	authService, err := auth.NewService(auth.Config{Schemes: schemes}, tokenManager, storage.User())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(auth.DefaultHasher, storage)
	codeManager := authcode.New(authcode.Config{}, storage)
	accountService := account.NewService(userService, codeManager, notify.NewLogSender(logger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := handlers.NewRouter(authService, userService, accountService, logger, registry, ipResolver)

	logger.Info("App initialized", "auth_methods", authService.Challenge(), "environment", c.Environment)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		pool:       pool,
		sweeper:    authcode.NewSweeper(codeManager, 0, logger),
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	return err
}
