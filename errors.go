package miniauth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeTokenExpired      = "TOKEN_EXPIRED"
	textCodeTokenMalformed    = "TOKEN_MALFORMED"
	textCodeCryptoUnavailable = "CRYPTO_UNAVAILABLE"
	textCodeIdentityInvalid   = "IDENTITY_INVALID"
	textCodeExchangeFailed    = "EXCHANGE_FAILED"
)

// ErrTokenExpired is returned when a credential is past its exp claim.
var ErrTokenExpired = goerrors.New("session token expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers every structural defect: wrong segment count,
// invalid base64, undecodable claims, bad signature.
var ErrTokenMalformed = goerrors.New("session token malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrCryptoUnavailable signals that the runtime lacks the HMAC primitive and
// full verification cannot run. It is the only error the probed verifier
// falls back on.
var ErrCryptoUnavailable = goerrors.New("crypto primitive unavailable", goerrors.CategoryInternal).
	WithTextCode(textCodeCryptoUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrIdentityInvalid is returned when the exchange payload violates the
// identity schema.
var ErrIdentityInvalid = goerrors.New("external identity payload invalid", goerrors.CategoryValidation).
	WithTextCode(textCodeIdentityInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrExchangeFailed wraps non-validation exchange failures.
var ErrExchangeFailed = goerrors.New("identity exchange failed", goerrors.CategoryInternal).
	WithTextCode(textCodeExchangeFailed).
	WithCode(goerrors.CodeInternal)

// ErrMissingSigningKey is fatal at startup; the service must refuse to run
// with undefined trust.
var ErrMissingSigningKey = goerrors.New("signing key is required", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}

// IsCryptoUnavailable reports whether full verification failed because the
// primitive is missing, as opposed to a cryptographic rejection.
func IsCryptoUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrCryptoUnavailable)
}
