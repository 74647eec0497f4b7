package services

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	clock := newTestClock()
	m := NewTokenManager(TokenConfig{Secret: "s", Issuer: "iss", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	m.now = clock.Now
	user := uuid.Must(uuid.NewV4())

	access, err := m.IssueAccess(user)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), access.ExpiresAt)

	claims, err := m.Verify(access.Token, TokenTypeAccess)
	require.NoError(t, err)
	got, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, user, got)
	jti, err := claims.JTI()
	require.NoError(t, err)
	assert.Equal(t, access.JTI, jti)

	_, err = m.Verify(access.Token, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "token type must match")

	clock.Advance(time.Hour + time.Second)
	_, err = m.Verify(access.Token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenManager_RejectsForeignTokens(t *testing.T) {
	m := NewTokenManager(TokenConfig{Secret: "right", Issuer: "iss", AccessTTL: time.Hour})
	other := NewTokenManager(TokenConfig{Secret: "wrong", Issuer: "iss", AccessTTL: time.Hour})
	user := uuid.Must(uuid.NewV4())

	forged, err := other.IssueAccess(user)
	require.NoError(t, err)
	_, err = m.Verify(forged.Token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:    user.String(),
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "iss",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(noneToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("not.a.token", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "S3cure!pass")

	_, err := env.auth.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "nobody", "S3cure!pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := env.auth.Login(ctx, "alice", "S3cure!pass")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	id, err := env.auth.Authenticate(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id)

	_, err = env.auth.Authenticate(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh tokens cannot authenticate requests")
}

func TestAuthService_RefreshRotates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "S3cure!pass")

	first, err := env.auth.Login(ctx, "alice", "S3cure!pass")
	require.NoError(t, err)

	second, err := env.auth.Refresh(ctx, first.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh, second.Refresh)

	id, err := env.auth.Authenticate(ctx, second.Access)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id)

	_, err = env.auth.Refresh(ctx, first.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "a refresh token is redeemable once")

	_, err = env.auth.Refresh(ctx, second.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.auth.Refresh(ctx, second.Refresh)
	assert.NoError(t, err)
}

func TestAuthService_RefreshExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "S3cure!pass")

	pair, err := env.auth.Login(ctx, "alice", "S3cure!pass")
	require.NoError(t, err)

	env.clock.Advance(8 * 24 * time.Hour)
	_, err = env.auth.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrExpiredToken)
	_, err = env.auth.Authenticate(ctx, pair.Access)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_Logout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "S3cure!pass")

	pair, err := env.auth.Login(ctx, "alice", "S3cure!pass")
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, pair.Refresh))
	require.NoError(t, env.auth.Logout(ctx, pair.Refresh), "logout is idempotent")

	_, err = env.auth.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.ErrorIs(t, env.auth.Logout(ctx, "garbage"), ErrInvalidToken)
}

func TestAuthService_LoginPurgesExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice", "S3cure!pass")

	_, err := env.auth.Login(ctx, "alice", "S3cure!pass")
	require.NoError(t, err)

	env.clock.Advance(8 * 24 * time.Hour)
	_, err = env.auth.Login(ctx, "alice", "S3cure!pass")
	require.NoError(t, err)

	var rows int64
	require.NoError(t, env.db.Table("tokens").Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}
