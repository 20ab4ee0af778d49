package job

import (
	"context"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/infrastructure/mq"
	"cashmine/internal/metrics"
	"cashmine/internal/model"
	"cashmine/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender relays ledger events written to the outbox table.
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	log        *zap.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log,
		stopCh:     make(chan struct{}),
		interval:   cfg.Jobs.OutboxInterval,
		batchSize:  cfg.Jobs.OutboxBatchSize,
		maxRetry:   cfg.Jobs.OutboxMaxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("[OutboxSender] 消息发送任务启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages sends one batch and returns how many were delivered.
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("[OutboxSender] 查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}

	if backlog, err := s.outboxRepo.CountByStatus(ctx, model.OutboxStatusPending); err == nil {
		metrics.OutboxPending.Set(float64(backlog))
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID, time.Now().UTC()); updateErr != nil {
			s.log.Error("[OutboxSender] 更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		s.log.Debug("[OutboxSender] 消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey),
			zap.String("event", msg.EventType),
		)
		return true
	}

	s.log.Warn("[OutboxSender] 消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry", msg.RetryCount+1), zap.Error(err))

	if err := s.outboxRepo.RecordFailure(ctx, msg, err, s.maxRetry); err != nil {
		s.log.Error("[OutboxSender] 记录失败次数失败", zap.Int64("id", msg.ID), zap.Error(err))
		return false
	}
	if msg.Status == model.OutboxStatusFailed {
		s.log.Error("[OutboxSender] 消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID))
	}
	return false
}
