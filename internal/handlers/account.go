package handlers

import (
	"net/http"

	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/handlers/render"
	"github.com/nkiryanov/bemserver/internal/handlers/userctx"
	"github.com/nkiryanov/bemserver/internal/logger"
)

const invalidCodeError = "invalid_code"

type messageResponse struct {
	Message string `json:"message"`
}

func renderInvalidCode(w http.ResponseWriter) {
	render.JSONWithStatus(w, render.ErrorResponse{
		Error:   invalidCodeError,
		Message: "Code is wrong or expired",
	}, http.StatusBadRequest)
}

// Response is the same whether email registered or not
func handleForgotPassword(accountService accountService, logger logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := accountService.ForgotPassword(r.Context(), data.Email); err != nil {
			logger.Error("Password reset request failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, messageResponse{Message: "If the email is registered, a reset code was sent"})
	})
}

func handleResetPassword(accountService accountService, logger logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Code     string `json:"code" validate:"required,authcode"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		ok, err := accountService.ResetPassword(r.Context(), data.Email, data.Code, data.Password)
		switch {
		case err != nil:
			logger.Error("Password reset failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		case !ok:
			renderInvalidCode(w)
		default:
			render.JSON(w, messageResponse{Message: "Password updated"})
		}
	})
}

func handleRequestEmailVerification(accountService accountService) middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, _ := userctx.FromContext(r.Context())

		if err := accountService.RequestEmailVerification(r.Context(), user); err != nil {
			return err
		}

		render.JSONWithStatus(w, messageResponse{Message: "Verification code sent"}, http.StatusAccepted)
		return nil
	}
}

func handleVerifyEmail(accountService accountService) middleware.Handler {
	type request struct {
		Code string `json:"code" validate:"required,authcode"`
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		user, _ := userctx.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return nil
		}

		ok, err := accountService.VerifyEmail(r.Context(), user, data.Code)
		switch {
		case err != nil:
			return err
		case !ok:
			renderInvalidCode(w)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
		return nil
	}
}
