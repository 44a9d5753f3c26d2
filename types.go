package miniauth

import (
	"context"
	"fmt"
	"time"
)

// TokenTTL is the single credential lifetime, applied to both the JWT exp
// claim and the session cookie Max-Age.
const TokenTTL = 24 * time.Hour

// CookieName carries the session credential on browser requests.
const CookieName = "session_token"

// ClientTypeMiniApp is the only accepted client-type discriminator on the
// exchange payload.
const ClientTypeMiniApp = "miniapp"

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// TokenService issues and validates session credentials on the
// full-capability path.
type TokenService interface {
	TokenVerifier
	Generate(userID int64) (string, error)
	SignClaims(claims *SessionClaims) (string, error)
}

// TokenVerifier validates a compact credential and extracts its claims
// without tying callers to a specific verification path.
type TokenVerifier interface {
	Validate(tokenString string) (*SessionClaims, error)
}

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(tokenString string) (*SessionClaims, error)

// Validate satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Validate(tokenString string) (*SessionClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// ExternalIdentity is the user identity exposed by the embedding client. It is
// never persisted verbatim; the exchange normalizes it into a User.
type ExternalIdentity struct {
	TelegramID int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Username   string `json:"username,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	IsPremium  bool   `json:"is_premium,omitempty"`
	AuthDate   int64  `json:"auth_date"`
}

// Exchange is the server-side identity-for-credential operation.
type Exchange interface {
	Exchange(ctx context.Context, identity ExternalIdentity) (*ExchangeResult, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MINIAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MINIAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MINIAUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
