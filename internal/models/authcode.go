package models

import (
	"time"

	"github.com/google/uuid"
)

// Well known one-time code purposes
const (
	AuthCodeResetPassword = "reset_password"
	AuthCodeVerifyEmail   = "verify_email"
)

// One-time numeric code sent to the user out of band
// At most one code exists per (UserID, Type)
type AuthCode struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Code      string
	Type      string
	CreatedAt time.Time
	ExpiresAt time.Time
}
