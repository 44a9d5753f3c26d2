package miniauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// UnverifiedDecoder is the restricted verification path for runtimes that
// lack the HMAC primitive. It decodes the payload segment and applies the
// expiry check WITHOUT validating the signature.
//
// This is a trust-reduced fallback: a token with a forged signature but a
// well-formed, unexpired payload is accepted. Never wire it directly into a
// request gate; construct it behind NewProbedVerifier so it only runs when
// full verification is structurally impossible.
type UnverifiedDecoder struct {
	logger Logger
	now    func() time.Time
}

// UnverifiedDecoderOption customizes decoder construction.
type UnverifiedDecoderOption func(*UnverifiedDecoder)

// WithDecoderClock injects a custom clock (useful for tests).
func WithDecoderClock(clock func() time.Time) UnverifiedDecoderOption {
	return func(d *UnverifiedDecoder) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithDecoderLogger overrides the logger.
func WithDecoderLogger(logger Logger) UnverifiedDecoderOption {
	return func(d *UnverifiedDecoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewUnverifiedDecoder returns the payload-only decoder.
func NewUnverifiedDecoder(opts ...UnverifiedDecoderOption) *UnverifiedDecoder {
	d := &UnverifiedDecoder{
		logger: defLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Validate decodes the middle segment of a compact credential and checks
// expiry. It never panics on malformed input.
func (d *UnverifiedDecoder) Validate(tokenString string) (*SessionClaims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		d.logger.Debug("UnverifiedDecoder payload segment is not base64url: %v", err)
		return nil, ErrTokenMalformed
	}

	claims := &SessionClaims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		d.logger.Debug("UnverifiedDecoder payload is not valid JSON: %v", err)
		return nil, ErrTokenMalformed
	}

	if claims.UserID <= 0 {
		return nil, ErrTokenMalformed
	}

	if exp := claims.Expires(); !exp.IsZero() && exp.Before(d.now()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// CryptoProbe reports whether the runtime can run HMAC-SHA256. A nil return
// means the full verification path is usable.
type CryptoProbe func() error

// defaultCryptoProbe exercises the primitive once against a fixed input.
func defaultCryptoProbe() error {
	mac := hmac.New(sha256.New, []byte("probe"))
	if _, err := mac.Write([]byte("probe")); err != nil {
		return ErrCryptoUnavailable
	}
	if len(mac.Sum(nil)) != sha256.Size {
		return ErrCryptoUnavailable
	}
	return nil
}

// ProbedVerifier selects between the full and restricted verification paths
// per call: it attempts full verification first and falls back to the
// payload-only decoder ONLY when the primitive is unavailable. Cryptographic
// rejections (bad signature, expired, malformed) never fall through.
type ProbedVerifier struct {
	full       TokenVerifier
	restricted TokenVerifier
	probe      CryptoProbe
	logger     Logger
}

// ProbedVerifierOption customizes verifier construction.
type ProbedVerifierOption func(*ProbedVerifier)

// WithCryptoProbe overrides the capability probe (useful for tests and for
// embedding runtimes that expose their own detection).
func WithCryptoProbe(probe CryptoProbe) ProbedVerifierOption {
	return func(v *ProbedVerifier) {
		if probe != nil {
			v.probe = probe
		}
	}
}

// WithProbedLogger overrides the logger.
func WithProbedLogger(logger Logger) ProbedVerifierOption {
	return func(v *ProbedVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewProbedVerifier composes the full-capability verifier with the restricted
// decoder. Both paths must produce identical accept/reject outcomes for
// payload-valid and expired input; they differ only in signature trust.
func NewProbedVerifier(full TokenVerifier, restricted TokenVerifier, opts ...ProbedVerifierOption) *ProbedVerifier {
	v := &ProbedVerifier{
		full:       full,
		restricted: restricted,
		probe:      defaultCryptoProbe,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Validate satisfies the TokenVerifier interface.
func (v *ProbedVerifier) Validate(tokenString string) (*SessionClaims, error) {
	if err := v.probe(); err != nil {
		v.logger.Info("ProbedVerifier primitive unavailable, using payload-only decode")
		return v.restricted.Validate(tokenString)
	}

	claims, err := v.full.Validate(tokenString)
	if err != nil {
		if IsCryptoUnavailable(err) {
			v.logger.Info("ProbedVerifier full path reported missing primitive, using payload-only decode")
			return v.restricted.Validate(tokenString)
		}
		return nil, err
	}

	return claims, nil
}
