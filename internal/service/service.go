package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/infrastructure/lock"
	"cashmine/internal/repository"
	"cashmine/pkg/apperr"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Random returns a uniform integer in [0, n).
type Random func(n int64) (int64, error)

func cryptoRandom(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// core is shared by every service: storage, the per-user lock and the clock.
type core struct {
	db     *gorm.DB
	locker lock.Locker
	cfg    *config.Config
	log    *zap.Logger
	now    func() time.Time
	random Random

	users        *repository.UserRepository
	vips         *repository.VIPRepository
	activities   *repository.ActivityRepository
	orders       *repository.OrderRepository
	transactions *repository.TransactionRepository
	outbox       *repository.OutboxRepository
	content      *repository.ContentRepository
	ledger       *Ledger
}

type Option func(*core)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *core) { c.now = now }
}

// WithRandom replaces the crypto/rand source of spins and generated orders.
func WithRandom(r Random) Option {
	return func(c *core) { c.random = r }
}

// Services bundles the business services handed to the HTTP layer.
type Services struct {
	Auth        *AuthService
	VIP         *VIPService
	Order       *OrderService
	Mining      *MiningService
	Spin        *SpinService
	Transaction *TransactionService
	Admin       *AdminService
	Content     *ContentService
	Ledger      *Ledger
}

func New(db *gorm.DB, locker lock.Locker, cfg *config.Config, log *zap.Logger, opts ...Option) *Services {
	c := &core{
		db:           db,
		locker:       locker,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
		random:       cryptoRandom,
		users:        repository.NewUserRepository(db),
		vips:         repository.NewVIPRepository(db),
		activities:   repository.NewActivityRepository(db),
		orders:       repository.NewOrderRepository(db),
		transactions: repository.NewTransactionRepository(db),
		outbox:       repository.NewOutboxRepository(db),
		content:      repository.NewContentRepository(db),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ledger = &Ledger{core: c}

	return &Services{
		Auth:        &AuthService{core: c},
		VIP:         &VIPService{core: c},
		Order:       &OrderService{core: c},
		Mining:      &MiningService{core: c},
		Spin:        &SpinService{core: c},
		Transaction: &TransactionService{core: c},
		Admin:       &AdminService{core: c},
		Content:     &ContentService{core: c},
		Ledger:      c.ledger,
	}
}

// clock returns the current time in UTC truncated to milliseconds, which
// every supported database stores losslessly.
func (c *core) clock() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

// runLocked serializes fn with every other mutation of the same user and runs
// it inside one database transaction. Either everything fn wrote is committed
// or nothing is.
func (c *core) runLocked(ctx context.Context, userID string, fn func(tx *gorm.DB) error) error {
	release, err := c.locker.Acquire(ctx, lock.UserKey(userID))
	if err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			c.log.Warn("user lock contended", zap.String("user_id", userID))
			return apperr.ErrBusy
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperr.ErrBusy.With(apperr.WithErr(ctxErr))
		}
		return apperr.Internal("acquire user lock", err)
	}
	defer release()

	return translate(c.db.WithContext(ctx).Transaction(fn))
}

// translate maps repository errors that escaped a service into API errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, repository.ErrOptimisticLock), errors.Is(err, repository.ErrStateChanged):
		return apperr.ErrBusy.With(apperr.WithErr(err))
	default:
		return apperr.Internal("storage error", err)
	}
}

// DayBucket is the UTC calendar day of t, the key of DailyActivity rows.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
