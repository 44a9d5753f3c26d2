package miniauth

import (
	"fmt"
	"time"
)

// SessionObject is the per-request session derived from a verified
// credential. It is reconstructed on every request and never stored.
type SessionObject struct {
	UserID         int64      `json:"user_id,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() int64 {
	return s.UserID
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("user=%d iss=%s iat=%s", s.UserID, s.Issuer, issuedAt)
}

// SessionFromClaims creates a SessionObject from verified claims.
func SessionFromClaims(claims *SessionClaims) (*SessionObject, error) {
	if claims == nil || claims.UserID <= 0 {
		return nil, ErrTokenMalformed
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID,
		Issuer:         claims.RegisteredClaims.Issuer,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
