package service

import (
	"context"
	"testing"
	"time"

	"cashmine/internal/model"
	"cashmine/pkg/apperr"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg, err := env.svc.Auth.Register(ctx, "  alice ", "secret123")
	require.NoError(t, err)
	require.Equal(t, "alice", reg.User.Login)
	require.Equal(t, model.RoleUser, reg.User.Role)
	require.NotEmpty(t, reg.Token)

	p, err := env.svc.Auth.Authenticate(ctx, reg.Token)
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, p.UserID)
	require.False(t, p.IsAdmin())

	_, err = env.svc.Auth.Register(ctx, "alice", "another1")
	require.ErrorIs(t, err, apperr.ErrDuplicateLogin)

	login, err := env.svc.Auth.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)

	_, err = env.svc.Auth.Login(ctx, "alice", "wrong-pass")
	require.ErrorIs(t, err, apperr.ErrBadCredentials)
	_, err = env.svc.Auth.Login(ctx, "nobody", "secret123")
	require.ErrorIs(t, err, apperr.ErrBadCredentials)
}

func TestAuthService_CredentialRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Auth.Register(ctx, "ab", "secret123")
	require.ErrorIs(t, err, apperr.ErrInvalidLogin)
	_, err = env.svc.Auth.Register(ctx, "bobby", "12345")
	require.ErrorIs(t, err, apperr.ErrInvalidPassword)
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "carol")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   u.ID,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   u.ID,
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(env.cfg.Auth.JWTSecret))
	require.NoError(t, err)

	ghost, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "00000000-0000-0000-0000-000000000000",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(env.cfg.Auth.JWTSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage": "not-a-token",
		"forged":  forged,
		"expired": expired,
		"ghost":   ghost,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Auth.Authenticate(ctx, token)
			require.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Auth.EnsureAdmin(ctx, "", ""))
	require.NoError(t, env.svc.Auth.EnsureAdmin(ctx, "root", "rootpass"))
	require.NoError(t, env.svc.Auth.EnsureAdmin(ctx, "root", "rootpass"))

	res, err := env.svc.Auth.Login(ctx, "root", "rootpass")
	require.NoError(t, err)
	require.True(t, res.User.IsAdmin())

	u := env.register(t, "dave")
	require.NoError(t, env.svc.Auth.EnsureAdmin(ctx, "dave", "ignored"))
	require.True(t, env.user(t, u.ID).IsAdmin())
}

func TestAuthService_Me(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "erin")

	snap, err := env.svc.Auth.Me(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, snap.VIP)
	requireDecimal(t, "0", snap.Available)
	requireDecimal(t, "0", snap.DailyEarnings)

	env.fund(t, u.ID, "1000")
	_, err = env.svc.VIP.Upgrade(ctx, u.ID)
	require.NoError(t, err)
	_, err = env.svc.Transaction.Withdraw(ctx, u.ID, env.cfg.Business.MinWithdraw, testWallet)
	require.NoError(t, err)

	snap, err = env.svc.Auth.Me(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.VIP)
	require.Equal(t, 1, snap.VIP.Level)
	requireDecimal(t, "750", snap.Available)
}
