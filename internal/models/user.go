package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	Name           string
	HashedPassword string
	IsAdmin        bool
	IsActive       bool
}
