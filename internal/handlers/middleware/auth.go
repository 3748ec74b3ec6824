package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/handlers/render"
	"github.com/nkiryanov/bemserver/internal/handlers/userctx"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/service/auth"
)

// Handler that may fail after response is not written yet
// Gate renders returned error
type Handler func(w http.ResponseWriter, r *http.Request) error

type authService interface {
	// Authenticate Authorization header value
	// Has to return *auth.AuthenticationError if credentials missing or not valid
	Authenticate(ctx context.Context, header string, refresh bool) (models.User, error)

	// Value for WWW-Authenticate header
	Challenge() string
}

type gateLogger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type authObserver interface {
	ObserveAuth(scheme string, result string)
}

type noopObserver struct{}

func (noopObserver) ObserveAuth(string, string) {}

const (
	resultOK        = "ok"
	resultMalformed = "malformed"
	resultError     = "error"
	schemeNone      = "none"
)

// Protect handlers: authenticate request, bind current user and render handler errors
type Gate struct {
	auth     authService
	logger   gateLogger
	observer authObserver
}

type GateOption func(*Gate)

// Count authentication attempts
func WithObserver(o authObserver) GateOption {
	return func(g *Gate) { g.observer = o }
}

func NewGate(as authService, l gateLogger, opts ...GateOption) *Gate {
	g := &Gate{auth: as, logger: l, observer: noopObserver{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler requires access credentials
func (g *Gate) LoginRequired(h Handler) http.Handler {
	return g.protect(h, false)
}

// Handler requires refresh token
func (g *Gate) RefreshRequired(h Handler) http.Handler {
	return g.protect(h, true)
}

func (g *Gate) protect(h Handler, refresh bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values := r.Header.Values("Authorization")
		header := r.Header.Get("Authorization")
		scheme := schemeLabel(header)

		// Header present but empty can't be split into scheme and credentials
		if len(values) > 0 && header == "" {
			g.fail(w, r, scheme, auth.ErrMalformedHeader)
			return
		}

		user, err := g.auth.Authenticate(r.Context(), header, refresh)
		if err != nil {
			g.fail(w, r, scheme, err)
			return
		}

		g.observer.ObserveAuth(scheme, resultOK)
		recordAuth(r.Context(), scheme, resultOK, user)

		r = r.WithContext(userctx.New(r.Context(), user))
		lw := &logWriter{ResponseWriter: w, data: logData{responseStatus: http.StatusOK}}

		err = h(lw, r)
		if err == nil {
			return
		}
		if lw.data.wroteHeader {
			g.logger.Error("Handler error after response written", "uri", r.RequestURI, "user", user.ID, "error", err)
			return
		}

		var authErr *auth.AuthenticationError
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.AuthorizationError(w)
		case errors.As(err, &authErr):
			recordAuth(r.Context(), scheme, string(authErr.Kind), user)
			g.logger.Debug("Authentication revoked by handler", "uri", r.RequestURI, "user", user.ID, "kind", authErr.Kind, "error", err)
			render.AuthenticationError(w, string(authErr.Kind), g.auth.Challenge())
		default:
			g.logger.Error("Handler error", "uri", r.RequestURI, "user", user.ID, "error", err)
			render.ServiceError(w, "Internal error", http.StatusInternalServerError)
		}
	})
}

// Render authentication failure
func (g *Gate) fail(w http.ResponseWriter, r *http.Request, scheme string, err error) {
	var authErr *auth.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		g.observer.ObserveAuth(scheme, string(authErr.Kind))
		recordAuth(r.Context(), scheme, string(authErr.Kind), models.User{})
		g.logger.Debug("Authentication failed", "uri", r.RequestURI, "kind", authErr.Kind, "error", err)
		render.AuthenticationError(w, string(authErr.Kind), g.auth.Challenge())
	case errors.Is(err, auth.ErrMalformedHeader):
		g.observer.ObserveAuth(scheme, resultMalformed)
		recordAuth(r.Context(), scheme, resultMalformed, models.User{})
		render.BadRequest(w, "Malformed authorization header")
	default:
		g.observer.ObserveAuth(scheme, resultError)
		recordAuth(r.Context(), scheme, resultError, models.User{})
		g.logger.Error("Authentication error", "uri", r.RequestURI, "error", err)
		render.ServiceError(w, "Internal error", http.StatusInternalServerError)
	}
}

// Scheme label for metrics, bounded to well known values
func schemeLabel(header string) string {
	if header == "" {
		return schemeNone
	}

	scheme, _, _ := strings.Cut(header, " ")
	switch auth.Scheme(scheme) {
	case auth.SchemeBearer, auth.SchemeBasic:
		return scheme
	default:
		return "other"
	}
}
