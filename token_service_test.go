package miniauth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key")

func TestNewTokenService(t *testing.T) {
	t.Run("requires a signing key", func(t *testing.T) {
		_, err := NewTokenService(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingSigningKey)
	})

	t.Run("accepts options", func(t *testing.T) {
		svc, err := NewTokenService(testSigningKey, WithTokenIssuer("velora"))
		require.NoError(t, err)
		require.NotNil(t, svc)
	})
}

func TestTokenServiceRoundtrip(t *testing.T) {
	svc, err := NewTokenService(testSigningKey, WithTokenIssuer("velora"))
	require.NoError(t, err)

	token, err := svc.Generate(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "velora", claims.Issuer)

	remaining := time.Until(claims.Expires())
	assert.Greater(t, remaining, 23*time.Hour)
	assert.LessOrEqual(t, remaining, TokenTTL)
}

func TestTokenServiceValidate(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rejects expired credentials", func(t *testing.T) {
		now := base
		svc, err := NewTokenService(testSigningKey, WithTokenClock(func() time.Time {
			return now
		}))
		require.NoError(t, err)

		token, err := svc.Generate(7)
		require.NoError(t, err)

		now = base.Add(TokenTTL + time.Minute)
		_, err = svc.Validate(token)
		require.Error(t, err)
		assert.True(t, IsTokenExpiredError(err))
	})

	t.Run("rejects token signed with a different key", func(t *testing.T) {
		other, err := NewTokenService([]byte("different-key"))
		require.NoError(t, err)
		token, err := other.Generate(7)
		require.NoError(t, err)

		svc, err := NewTokenService(testSigningKey)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		require.Error(t, err)
		assert.False(t, IsTokenExpiredError(err))
	})

	t.Run("rejects non HMAC signing methods", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
			UserID: 7,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		svc, err := NewTokenService(testSigningKey)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		require.Error(t, err)
	})

	t.Run("rejects missing subject user", func(t *testing.T) {
		svc, err := NewTokenService(testSigningKey)
		require.NoError(t, err)

		impl := svc.(*TokenServiceImpl)
		token, err := impl.SignClaims(&SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		require.NoError(t, err)

		_, err = svc.Validate(token)
		require.Error(t, err)
	})

	t.Run("malformed inputs never panic", func(t *testing.T) {
		svc, err := NewTokenService(testSigningKey)
		require.NoError(t, err)

		for _, input := range []string{"", "garbage", "a.b", "a.b.c.d", "ey.ey.ey"} {
			_, err := svc.Validate(input)
			assert.Error(t, err, "input %q", input)
		}
	})
}
