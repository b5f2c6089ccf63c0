package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *Issuer {
	return NewIssuer("access-secret-0123456789", "refresh-secret-0123456789", time.Hour, 24*time.Hour, "test")
}

func TestIssuer_PairRoundTrip(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer()

	pair, err := iss.Pair("u1", "user", "ann@example.com")
	require.NoError(t, err)

	claims, err := iss.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "ann@example.com", claims.Email)

	rc, err := iss.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", rc.Subject)
}

func TestIssuer_RejectsWrongKindSecretAndExpiry(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer()
	pair, err := iss.Pair("u1", "user", "a@b.c")
	require.NoError(t, err)

	_, err = iss.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not pass as access")
	_, err = iss.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must not pass as refresh")

	other := NewIssuer("another-secret-0123456789", "refresh-secret-0123456789", time.Hour, time.Hour, "test")
	_, err = other.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer()
	claims := Claims{Kind: KindAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBcrypt_HashCompare(t *testing.T) {
	t.Parallel()
	h := Bcrypt{Cost: 4}
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
	assert.ErrorIs(t, h.Compare("", "anything"), ErrPasswordMismatch)
}

func TestNewOTP_SixDigits(t *testing.T) {
	t.Parallel()
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		otp, err := NewOTP()
		require.NoError(t, err)
		assert.Regexp(t, re, otp)
	}
}

func TestNewResetToken_HashMatches(t *testing.T) {
	t.Parallel()
	raw, hash, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Equal(t, HashToken(raw), hash)
	assert.NotEqual(t, raw, hash)
}
