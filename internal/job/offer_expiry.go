package job

import (
	"context"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/service"

	"go.uber.org/zap"
)

// OfferExpiryJob deletes candidate orders whose offer window has passed.
type OfferExpiryJob struct {
	orders    *service.OrderService
	log       *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOfferExpiryJob(orders *service.OrderService, cfg *config.Config, log *zap.Logger) *OfferExpiryJob {
	return &OfferExpiryJob{
		orders:    orders,
		log:       log,
		stopCh:    make(chan struct{}),
		interval:  cfg.Jobs.OfferExpiryEvery,
		batchSize: cfg.Jobs.BatchSize,
	}
}

func (j *OfferExpiryJob) Start(ctx context.Context) {
	j.log.Info("[OfferExpiryJob] 过期订单清理任务启动", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("[OfferExpiryJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("[OfferExpiryJob] 任务停止")
			return
		case <-ticker.C:
			j.purgeExpiredOffers(ctx)
		}
	}
}

func (j *OfferExpiryJob) Stop() {
	close(j.stopCh)
}

// purgeExpiredOffers deletes batches until one comes back short.
func (j *OfferExpiryJob) purgeExpiredOffers(ctx context.Context) int64 {
	var total int64
	for ctx.Err() == nil {
		n, err := j.orders.PurgeExpired(ctx, j.batchSize)
		if err != nil {
			j.log.Error("[OfferExpiryJob] 清理过期订单失败", zap.Error(err))
			break
		}
		total += n
		if n < int64(j.batchSize) {
			break
		}
	}
	if total > 0 {
		j.log.Info("[OfferExpiryJob] 本次清理过期订单", zap.Int64("count", total))
	}
	return total
}
