package service

import (
	"context"
	"testing"
	"time"

	"cashmine/pkg/apperr"

	"github.com/stretchr/testify/require"
)

func TestMiningService_QuotaAndWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "quinn")

	status, err := env.svc.Mining.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 500, status.Remaining())
	require.Nil(t, status.Start)

	for i := 1; i <= 500; i++ {
		res, err := env.svc.Mining.Tap(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, i, res.TapCount)
		if i%100 == 0 {
			env.clock.Advance(time.Minute)
		}
	}

	_, err = env.svc.Mining.Tap(ctx, u.ID)
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	got := env.user(t, u.ID)
	requireDecimal(t, "5", got.Balance)
	requireDecimal(t, "5", got.TotalEarnings)

	status, err = env.svc.Mining.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, status.Remaining())
	require.Equal(t, status.Start.Add(6*time.Hour), *status.ResetAt)

	// The window is measured from its first tap, not from the last one.
	env.clock.Advance(6*time.Hour - 5*time.Minute)
	_, err = env.svc.Mining.Tap(ctx, u.ID)
	require.NoError(t, err)

	status, err = env.svc.Mining.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, status.Taps)
	require.EqualValues(t, 501, status.TotalTaps)

	env.requireBalanced(t, u.ID)
}

func TestMiningService_ConcurrentTapsStopAtQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.cfg.Business.Mining.TapLimit = 10
	u := env.register(t, "rhea")

	ok, failed := race(25, func() error {
		_, err := env.svc.Mining.Tap(ctx, u.ID)
		return err
	})

	require.Equal(t, 10, ok)
	require.Len(t, failed, 15)
	for _, err := range failed {
		require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	}

	status, err := env.svc.Mining.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 10, status.Taps)
	require.EqualValues(t, 10, status.TotalTaps)
	requireDecimal(t, "0.10", env.user(t, u.ID).Balance)
	env.requireBalanced(t, u.ID)
}

func TestMiningService_PartialWindowResets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "rupert")

	for i := 0; i < 3; i++ {
		_, err := env.svc.Mining.Tap(ctx, u.ID)
		require.NoError(t, err)
	}
	env.clock.Advance(6 * time.Hour)

	status, err := env.svc.Mining.Status(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 0, status.Taps)

	res, err := env.svc.Mining.Tap(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.TapCount)
	require.Equal(t, 499, res.Remaining)
	requireDecimal(t, "0.04", res.NewBalance)
}
