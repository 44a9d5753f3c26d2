package miniauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the credential payload: the integer user ID plus the
// registered time bounds.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"userId"`
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
