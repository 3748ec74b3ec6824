package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/logger"
	"github.com/nkiryanov/bemserver/internal/models"
)

// Code endpoints: requests per client IP in a window
const (
	codeRateLimit  = 5
	codeRatePeriod = 15 * time.Minute
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	accountService accountService,
	logger logger.Logger,
	registry *prometheus.Registry,
	ipResolver *middleware.IPResolver,
) http.Handler {
	metrics := middleware.NewMetrics(registry)
	gate := middleware.NewGate(authService, logger, middleware.WithObserver(metrics))

	limiter := middleware.NewRateLimiter(codeRateLimit, codeRatePeriod)
	limited := func(h http.Handler) http.Handler {
		return middleware.RateLimit(limiter, ipResolver.ClientIP)(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /auth/token", handleToken(authService, logger))
	mux.Handle("POST /auth/token/refresh", gate.RefreshRequired(handleTokenRefresh(authService)))

	mux.Handle("POST /auth/password/forgot", limited(handleForgotPassword(accountService, logger)))
	mux.Handle("POST /auth/password/reset", limited(handleResetPassword(accountService, logger)))
	mux.Handle("POST /auth/email/verify/request", gate.LoginRequired(handleRequestEmailVerification(accountService)))
	mux.Handle("POST /auth/email/verify", limited(gate.LoginRequired(handleVerifyEmail(accountService))))

	mux.Handle("GET /users/me", gate.LoginRequired(handleUserMe()))
	mux.Handle("GET /users/{id}", gate.LoginRequired(handleGetUser(userService)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := chain(mux,
		metrics.Middleware,
		middleware.LoggerMiddleware(logger, ipResolver.ClientIP),
	)

	return handler
}

type authService interface {
	// Authenticate Authorization header value
	// Has to return *auth.AuthenticationError if credentials missing or not valid
	Authenticate(ctx context.Context, header string, refresh bool) (models.User, error)

	// Value for WWW-Authenticate header
	Challenge() string

	// Login user with email and password
	// Has to return *auth.AuthenticationError if credentials not valid or user inactive
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Issue tokens for already authenticated user
	// Has to return *auth.AuthenticationError if user may not get tokens anymore
	IssueTokens(user models.User) (models.TokenPair, error)
}

type userService interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Has to return apperrors.ErrForbidden if current user may not access target
	Authorize(current models.User, targetID uuid.UUID) error
}

type accountService interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email string, code string, password string) (bool, error)
	RequestEmailVerification(ctx context.Context, user models.User) error
	VerifyEmail(ctx context.Context, user models.User, code string) (bool, error)
}
