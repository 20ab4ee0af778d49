package job

import (
	"context"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/metrics"
	"cashmine/internal/repository"
	"cashmine/internal/service"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileJob checks that recently changed balances still equal the sum of
// their completed ledger entries. It only reports; it never repairs.
type ReconcileJob struct {
	ledger    *service.Ledger
	userRepo  *repository.UserRepository
	log       *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	lookback  time.Duration
	batchSize int
	now       func() time.Time
}

func NewReconcileJob(db *gorm.DB, ledger *service.Ledger, cfg *config.Config, log *zap.Logger) *ReconcileJob {
	batchSize := cfg.Jobs.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileJob{
		ledger:    ledger,
		userRepo:  repository.NewUserRepository(db),
		log:       log,
		stopCh:    make(chan struct{}),
		interval:  cfg.Jobs.ReconcileInterval,
		lookback:  cfg.Jobs.ReconcileLookback,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.log.Info("[ReconcileJob] 对账任务启动", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("[ReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("[ReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.reconcile(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// reconcile walks every user changed within the lookback window, one batch
// at a time, and returns the ids whose balance disagrees with the ledger.
func (j *ReconcileJob) reconcile(ctx context.Context) []string {
	since := j.now().Add(-j.lookback)
	cursor, afterID := since, ""

	var mismatched []string
	for ctx.Err() == nil {
		users, err := j.userRepo.ListUpdatedAfter(ctx, cursor, afterID, j.batchSize)
		if err != nil {
			j.log.Error("[ReconcileJob] 查询用户失败", zap.Error(err))
			break
		}
		for _, u := range users {
			if j.check(ctx, u.ID) {
				mismatched = append(mismatched, u.ID)
			}
		}
		if len(users) < j.batchSize {
			break
		}
		last := users[len(users)-1]
		cursor, afterID = last.UpdatedAt, last.ID
	}
	return mismatched
}

// check reports whether userID's balance has drifted from its ledger.
func (j *ReconcileJob) check(ctx context.Context, userID string) bool {
	r, err := j.ledger.Reconcile(ctx, userID)
	if err != nil {
		j.log.Error("[ReconcileJob] 汇总流水失败", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if r.Matches() {
		return false
	}
	metrics.ReconcileMismatches.Inc()
	j.log.Error("[ReconcileJob] 余额与流水不一致",
		zap.String("user_id", userID),
		zap.String("balance", r.Balance.String()),
		zap.String("ledger", r.Expected.String()),
	)
	return true
}
