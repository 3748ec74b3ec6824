package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/handlers/render"
	"github.com/nkiryanov/bemserver/internal/handlers/userctx"
	"github.com/nkiryanov/bemserver/internal/logger"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/service/auth"
)

const (
	tokenStatusSuccess = "success"
	tokenStatusFailure = "failure"
)

type tokenResponse struct {
	Status       string `json:"status"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func pairResponse(pair models.TokenPair) tokenResponse {
	return tokenResponse{
		Status:       tokenStatusSuccess,
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}
}

// Exchange email and password to token pair
// Wrong credentials are reported with 200 and failure status
func handleToken(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password)

		var authErr *auth.AuthenticationError
		switch {
		case err == nil:
			render.JSON(w, pairResponse(pair))
		case errors.As(err, &authErr):
			logger.Debug("Token request rejected", "email", data.Email, "kind", authErr.Kind)
			render.JSON(w, tokenResponse{Status: tokenStatusFailure})
		default:
			logger.Error("Token issue failed", "email", data.Email, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Issue new token pair for refresh token owner
// Deactivated owners are rejected by the gate with 401
func handleTokenRefresh(authService authService) middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, _ := userctx.FromContext(r.Context())

		pair, err := authService.IssueTokens(user)
		if err != nil {
			return err
		}

		render.JSON(w, pairResponse(pair))
		return nil
	}
}
