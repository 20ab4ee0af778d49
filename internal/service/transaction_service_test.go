package service

import (
	"context"
	"testing"

	"cashmine/internal/model"
	"cashmine/pkg/apperr"
	"cashmine/pkg/money"

	"github.com/stretchr/testify/require"
)

const testWallet = "TXq9Wv7PzK3mB8nLc2Rd"

func TestTransactionService_DepositCreditedOnApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "dora")

	res, err := env.svc.Transaction.Deposit(ctx, u.ID, money.MustParse("1000"))
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, res.Transaction.Status)
	require.Equal(t, env.cfg.Business.DepositWalletAddress, res.WalletAddress)

	got := env.user(t, u.ID)
	requireDecimal(t, "0", got.Balance)
	requireDecimal(t, "0", got.DepositAmount)

	approved, err := env.svc.Transaction.Approve(ctx, "admin-1", model.KindDeposit, res.Transaction.TransactionNo, "ok")
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, approved.Status)
	requireDecimal(t, "0", approved.BalanceBefore)
	requireDecimal(t, "1000", approved.BalanceAfter)

	_, err = env.svc.Transaction.Approve(ctx, "admin-1", model.KindDeposit, res.Transaction.TransactionNo, "again")
	require.ErrorIs(t, err, apperr.ErrAlreadyResolved)
	_, err = env.svc.Transaction.Reject(ctx, "admin-1", "", res.Transaction.TransactionNo, "")
	require.ErrorIs(t, err, apperr.ErrAlreadyResolved)

	got = env.user(t, u.ID)
	requireDecimal(t, "1000", got.Balance)
	requireDecimal(t, "1000", got.DepositAmount)
	env.requireBalanced(t, u.ID)
}

func TestTransactionService_ConcurrentApprovalCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "eli")

	res, err := env.svc.Transaction.Deposit(ctx, u.ID, money.MustParse("1500"))
	require.NoError(t, err)

	ok, failed := race(5, func() error {
		_, err := env.svc.Transaction.Approve(ctx, "admin-1", model.KindDeposit, res.Transaction.TransactionNo, "")
		return err
	})

	require.Equal(t, 1, ok)
	for _, err := range failed {
		require.ErrorIs(t, err, apperr.ErrAlreadyResolved)
	}
	requireDecimal(t, "1500", env.user(t, u.ID).Balance)
	env.requireBalanced(t, u.ID)
}

func TestTransactionService_DepositValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "fern")

	_, err := env.svc.Transaction.Deposit(ctx, u.ID, money.MustParse("999.99"))
	require.ErrorIs(t, err, apperr.ErrBelowMinimum)
	require.Equal(t, "1000.00", apperr.From(err).Details["minimum"])

	_, err = env.svc.Transaction.Deposit(ctx, u.ID, money.MustParse("1000.001"))
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)

	_, err = env.svc.Transaction.Deposit(ctx, u.ID, money.MustParse("-1000"))
	require.ErrorIs(t, err, apperr.ErrInvalidAmount)
}

func TestTransactionService_WithdrawHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "gale")
	env.fund(t, u.ID, "200")

	_, err := env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("300"), testWallet)
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	require.Equal(t, "200.00", apperr.From(err).Details["available"])

	pending, err := env.svc.Transaction.ListPending(ctx, model.KindWithdraw, 0)
	require.NoError(t, err)
	require.Empty(t, pending)

	env.fund(t, u.ID, "800")
	first, err := env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("250"), testWallet)
	require.NoError(t, err)
	requireDecimal(t, "750", first.Available)

	// the hold counts against the next request
	_, err = env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("800"), testWallet)
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	got := env.user(t, u.ID)
	requireDecimal(t, "1000", got.Balance)
	requireDecimal(t, "250", got.FrozenAmount)
	require.Equal(t, testWallet, got.WalletAddress)

	pending, err = env.svc.Transaction.ListPending(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "gale", pending[0].UserLogin)

	_, err = env.svc.Transaction.Approve(ctx, "admin-1", model.KindDeposit, first.Transaction.TransactionNo, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.svc.Transaction.Reject(ctx, "admin-1", model.KindWithdraw, first.Transaction.TransactionNo, "address mismatch")
	require.NoError(t, err)
	got = env.user(t, u.ID)
	requireDecimal(t, "1000", got.Balance)
	requireDecimal(t, "0", got.FrozenAmount)

	second, err := env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("400"), testWallet)
	require.NoError(t, err)
	approved, err := env.svc.Transaction.Approve(ctx, "admin-1", model.KindWithdraw, second.Transaction.TransactionNo, "")
	require.NoError(t, err)
	requireDecimal(t, "1000", approved.BalanceBefore)
	requireDecimal(t, "600", approved.BalanceAfter)

	got = env.user(t, u.ID)
	requireDecimal(t, "600", got.Balance)
	requireDecimal(t, "0", got.FrozenAmount)
	env.requireBalanced(t, u.ID)

	history, total, err := env.svc.Transaction.History(ctx, u.ID, 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, history, 4)
}

func TestTransactionService_ConcurrentWithdrawalsHoldOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "opal")
	env.fund(t, u.ID, "1000")

	ok, failed := race(8, func() error {
		_, err := env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("300"), testWallet)
		return err
	})

	require.Equal(t, 3, ok)
	require.Len(t, failed, 5)
	for _, err := range failed {
		require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	}

	got := env.user(t, u.ID)
	requireDecimal(t, "1000", got.Balance)
	requireDecimal(t, "900", got.FrozenAmount)
	requireDecimal(t, "100", got.Available())

	pending, err := env.svc.Transaction.ListPending(ctx, model.KindWithdraw, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	env.requireBalanced(t, u.ID)
}

func TestTransactionService_WithdrawValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "hale")
	env.fund(t, u.ID, "1000")

	_, err := env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("249.99"), testWallet)
	require.ErrorIs(t, err, apperr.ErrBelowMinimum)

	for _, wallet := range []string{"", "short", "TXq9Wv7PzK-3mB8nLc2Rd", "TXq9 Wv7PzK3mB8nLc2Rd"} {
		_, err = env.svc.Transaction.Withdraw(ctx, u.ID, money.MustParse("250"), wallet)
		require.ErrorIs(t, err, apperr.ErrInvalidAddress, "wallet %q", wallet)
	}

	requireDecimal(t, "0", env.user(t, u.ID).FrozenAmount)
}

func TestTransactionService_UnknownTransaction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Transaction.Approve(context.Background(), "admin-1", "", "TX-missing", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
