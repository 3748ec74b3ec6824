package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/bemserver/internal/apperrors"
	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/handlers/render"
	"github.com/nkiryanov/bemserver/internal/handlers/userctx"
	"github.com/nkiryanov/bemserver/internal/models"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func handleUserMe() middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, newUserResponse(user))
		return nil
	}
}

// Admins may get any user, others only themselves
func handleGetUser(userService userService) middleware.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		current, _ := userctx.FromContext(r.Context())

		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return nil
		}

		if err := userService.Authorize(current, id); err != nil {
			return err
		}

		user, err := userService.GetUserByID(r.Context(), id)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return nil
		case err != nil:
			return err
		}

		render.JSON(w, newUserResponse(user))
		return nil
	}
}
