package miniauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustToken(t *testing.T, userID int64, clock func() time.Time) string {
	t.Helper()

	opts := []TokenServiceOption{}
	if clock != nil {
		opts = append(opts, WithTokenClock(clock))
	}
	svc, err := NewTokenService(testSigningKey, opts...)
	require.NoError(t, err)

	token, err := svc.Generate(userID)
	require.NoError(t, err)
	return token
}

func TestUnverifiedDecoder(t *testing.T) {
	t.Run("accepts a well formed credential", func(t *testing.T) {
		token := mustToken(t, 42, nil)

		claims, err := NewUnverifiedDecoder().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
	})

	t.Run("accepts a credential signed with an unknown key", func(t *testing.T) {
		svc, err := NewTokenService([]byte("some-other-key"))
		require.NoError(t, err)
		token, err := svc.Generate(9)
		require.NoError(t, err)

		claims, err := NewUnverifiedDecoder().Validate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(9), claims.UserID)
	})

	t.Run("rejects expired credentials", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		token := mustToken(t, 42, func() time.Time { return issued })

		decoder := NewUnverifiedDecoder(WithDecoderClock(func() time.Time {
			return issued.Add(TokenTTL + time.Hour)
		}))
		_, err := decoder.Validate(token)
		require.Error(t, err)
		assert.True(t, IsTokenExpiredError(err))
	})

	t.Run("rejects malformed inputs without panicking", func(t *testing.T) {
		decoder := NewUnverifiedDecoder()
		for _, input := range []string{
			"",
			"one.two",
			"one.two.three.four",
			"a.!!!.c",
			"a.bm90LWpzb24.c", // payload decodes but is not JSON
		} {
			_, err := decoder.Validate(input)
			assert.True(t, IsMalformedError(err), "input %q", input)
		}
	})

	t.Run("rejects a payload without a user id", func(t *testing.T) {
		svc, err := NewTokenService(testSigningKey)
		require.NoError(t, err)
		token, err := svc.(*TokenServiceImpl).SignClaims(&SessionClaims{})
		require.NoError(t, err)

		_, err = NewUnverifiedDecoder().Validate(token)
		assert.True(t, IsMalformedError(err))
	})
}

func TestProbedVerifier(t *testing.T) {
	full, err := NewTokenService(testSigningKey)
	require.NoError(t, err)

	t.Run("uses the full path when the primitive is available", func(t *testing.T) {
		svc, err := NewTokenService([]byte("unknown-key"))
		require.NoError(t, err)
		foreign, err := svc.Generate(5)
		require.NoError(t, err)

		verifier := NewProbedVerifier(full, NewUnverifiedDecoder())

		// the payload-only decoder would accept this; the full path must not
		_, err = verifier.Validate(foreign)
		require.Error(t, err)

		own := mustToken(t, 5, nil)
		claims, err := verifier.Validate(own)
		require.NoError(t, err)
		assert.Equal(t, int64(5), claims.UserID)
	})

	t.Run("falls back only when the probe fails", func(t *testing.T) {
		verifier := NewProbedVerifier(full, NewUnverifiedDecoder(), WithCryptoProbe(func() error {
			return ErrCryptoUnavailable
		}))

		svc, err := NewTokenService([]byte("unknown-key"))
		require.NoError(t, err)
		foreign, err := svc.Generate(5)
		require.NoError(t, err)

		claims, err := verifier.Validate(foreign)
		require.NoError(t, err)
		assert.Equal(t, int64(5), claims.UserID)
	})

	t.Run("falls back when the full path reports a missing primitive", func(t *testing.T) {
		failing := TokenVerifierFunc(func(string) (*SessionClaims, error) {
			return nil, ErrCryptoUnavailable
		})

		verifier := NewProbedVerifier(failing, NewUnverifiedDecoder())
		token := mustToken(t, 12, nil)

		claims, err := verifier.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(12), claims.UserID)
	})

	t.Run("never falls back on cryptographic rejection", func(t *testing.T) {
		rejecting := TokenVerifierFunc(func(string) (*SessionClaims, error) {
			return nil, ErrTokenMalformed
		})
		permissive := TokenVerifierFunc(func(string) (*SessionClaims, error) {
			return &SessionClaims{UserID: 99}, nil
		})

		verifier := NewProbedVerifier(rejecting, permissive)
		_, err := verifier.Validate(mustToken(t, 12, nil))
		require.Error(t, err)
		assert.True(t, IsMalformedError(err))
	})

	t.Run("both paths agree on expiry", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		later := issued.Add(TokenTTL + time.Hour)
		token := mustToken(t, 42, func() time.Time { return issued })

		fullClock, err := NewTokenService(testSigningKey, WithTokenClock(func() time.Time {
			return later
		}))
		require.NoError(t, err)
		restricted := NewUnverifiedDecoder(WithDecoderClock(func() time.Time {
			return later
		}))

		_, fullErr := fullClock.Validate(token)
		_, restrictedErr := restricted.Validate(token)

		assert.True(t, IsTokenExpiredError(fullErr))
		assert.True(t, IsTokenExpiredError(restrictedErr))
	})
}
