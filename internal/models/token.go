package models

import (
	"time"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
