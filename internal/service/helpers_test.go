package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/infrastructure/lock"
	"cashmine/internal/model"
	"cashmine/internal/testutil"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequence returns the given values in order, wrapping around, each reduced
// modulo n.
func sequence(values ...int64) Random {
	var mu sync.Mutex
	i := 0
	return func(n int64) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)] % n
		i++
		return v, nil
	}
}

type testEnv struct {
	db    *gorm.DB
	cfg   *config.Config
	clock *fakeClock
	svc   *Services
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.JWTSecret = "test-secret"

	db := testutil.NewTestDB(t)
	clock := newFakeClock()
	locker := lock.NewLocalLocker(time.Millisecond, 10)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc := New(db, locker, cfg, zap.NewNop(), opts...)
	require.NoError(t, svc.VIP.EnsureDefaults(context.Background()))

	return &testEnv{db: db, cfg: cfg, clock: clock, svc: svc}
}

func (e *testEnv) register(t *testing.T, login string) *model.User {
	t.Helper()
	res, err := e.svc.Auth.Register(context.Background(), login, "secret123")
	require.NoError(t, err)
	return res.User
}

// fund books an approved deposit so the user has both balance and deposit total.
func (e *testEnv) fund(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := e.svc.Ledger.ApplyDelta(context.Background(), userID, money.MustParse(amount), model.KindDeposit, "test funding")
	require.NoError(t, err)
}

func (e *testEnv) user(t *testing.T, userID string) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, e.db.Where("id = ?", userID).First(&u).Error)
	return &u
}

func (e *testEnv) requireBalanced(t *testing.T, userID string) {
	t.Helper()
	r, err := e.svc.Ledger.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, r.Matches(), "balance %s, ledger %s", r.Balance, r.Expected)
}

// race runs fn from n goroutines at once and returns how many calls
// succeeded along with the errors of the rest.
func race(n int, fn func() error) (int, []error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		failed []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn()
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			failed = append(failed, err)
		}()
	}
	close(start)
	wg.Wait()
	return ok, failed
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, money.MustParse(want).Equal(got), "want %s, got %s", want, got)
}
