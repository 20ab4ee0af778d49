package job

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/infrastructure/lock"
	"cashmine/internal/infrastructure/mq"
	"cashmine/internal/model"
	"cashmine/internal/service"
	"cashmine/internal/testutil"
	"cashmine/pkg/money"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Jobs.BatchSize = 2
	cfg.Jobs.OutboxMaxRetry = 1
	return cfg
}

func newServices(t *testing.T, db *gorm.DB, cfg *config.Config) *service.Services {
	t.Helper()
	return service.New(db, lock.NewLocalLocker(time.Millisecond, 10), cfg, zap.NewNop())
}

func TestOutboxSender_RelaysAndParksFailures(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testConfig(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		require.NoError(t, db.Create(&model.OutboxMessage{
			MessageKey: fmt.Sprintf("user-%d", i),
			EventType:  model.EventTransactionCompleted,
			Topic:      cfg.Kafka.Topic.LedgerEvents,
			Payload:    fmt.Sprintf(`{"n":%d}`, i),
			Status:     model.OutboxStatusPending,
		}).Error)
	}

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg, zap.NewNop())
	require.Equal(t, 1, sender.processPendingMessages(ctx))
	require.NoError(t, producer.Close())

	var msgs []model.OutboxMessage
	require.NoError(t, db.Order("id ASC").Find(&msgs).Error)
	require.Equal(t, model.OutboxStatusSent, msgs[0].Status)
	require.NotNil(t, msgs[0].SentAt)
	require.Equal(t, model.OutboxStatusFailed, msgs[1].Status)
	require.Equal(t, 1, msgs[1].RetryCount)
	require.Contains(t, msgs[1].LastError, "out of available brokers")

	// nothing is left to relay
	require.Equal(t, 0, sender.processPendingMessages(ctx))
}

func TestOutboxSender_LedgerEventsReachPublisher(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testConfig(t)
	ctx := context.Background()
	svc := newServices(t, db, cfg)

	res, err := svc.Auth.Register(ctx, "quincy", "secret123")
	require.NoError(t, err)
	_, err = svc.Ledger.ApplyDelta(ctx, res.User.ID, money.MustParse("3"), model.KindSpin, "bonus")
	require.NoError(t, err)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if len(val) == 0 {
			return fmt.Errorf("empty payload")
		}
		return nil
	})

	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg, zap.NewNop())
	require.Equal(t, 1, sender.processPendingMessages(ctx))
	require.NoError(t, producer.Close())
}

func TestOfferExpiryJob_PurgesInBatches(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testConfig(t)
	svc := newServices(t, db, cfg)

	now := time.Now().UTC()
	offer := func(no, status string, expires time.Time) *model.OrderOffer {
		return &model.OrderOffer{
			OrderNo:      no,
			UserID:       "user-1",
			ProductName:  "Oriflame The ONE Ruj",
			ProductCode:  "MAK12345",
			ProductPrice: money.MustParse("18.50"),
			Cashback:     money.MustParse("5"),
			Category:     "Makeup",
			QRPayload:    "ORDER:" + no,
			Status:       status,
			ExpiredAt:    expires,
		}
	}
	offers := []*model.OrderOffer{
		offer("ORD-1", model.OrderStatusOffered, now.Add(-time.Hour)),
		offer("ORD-2", model.OrderStatusOffered, now.Add(-30*time.Minute)),
		offer("ORD-3", model.OrderStatusOffered, now.Add(-time.Minute)),
		offer("ORD-4", model.OrderStatusOffered, now.Add(time.Hour)),
		offer("ORD-5", model.OrderStatusAccepted, now.Add(-time.Hour)),
	}
	require.NoError(t, db.Create(&offers).Error)

	job := NewOfferExpiryJob(svc.Order, cfg, zap.NewNop())
	require.EqualValues(t, 3, job.purgeExpiredOffers(context.Background()))

	var left []string
	require.NoError(t, db.Model(&model.OrderOffer{}).Order("order_no").Pluck("order_no", &left).Error)
	require.Equal(t, []string{"ORD-4", "ORD-5"}, left)
}

func TestReconcileJob_ReportsDrift(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testConfig(t)
	ctx := context.Background()
	svc := newServices(t, db, cfg)

	good, err := svc.Auth.Register(ctx, "rosa", "secret123")
	require.NoError(t, err)
	bad, err := svc.Auth.Register(ctx, "sven", "secret123")
	require.NoError(t, err)
	for _, id := range []string{good.User.ID, bad.User.ID} {
		_, err := svc.Ledger.ApplyDelta(ctx, id, money.MustParse("10"), model.KindSpin, "bonus")
		require.NoError(t, err)
	}
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", bad.User.ID).Update("balance", money.MustParse("11")).Error)

	job := NewReconcileJob(db, svc.Ledger, cfg, zap.NewNop())
	job.batchSize = 10
	require.Equal(t, []string{bad.User.ID}, job.reconcile(ctx))
}

func TestReconcileJob_WalksEveryBatch(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testConfig(t)
	ctx := context.Background()
	svc := newServices(t, db, cfg)

	var ids []string
	for i := 0; i < 5; i++ {
		res, err := svc.Auth.Register(ctx, fmt.Sprintf("walker%d", i), "secret123")
		require.NoError(t, err)
		_, err = svc.Ledger.ApplyDelta(ctx, res.User.ID, money.MustParse("10"), model.KindSpin, "bonus")
		require.NoError(t, err)
		ids = append(ids, res.User.ID)
	}
	// the most recently changed user sits past the first batches
	newest := ids[len(ids)-1]
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", newest).Update("balance", money.MustParse("12")).Error)

	job := NewReconcileJob(db, svc.Ledger, cfg, zap.NewNop())
	require.Equal(t, 2, job.batchSize)
	for run := 0; run < 3; run++ {
		require.Equal(t, []string{newest}, job.reconcile(ctx))
	}
}
