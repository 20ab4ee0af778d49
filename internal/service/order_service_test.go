package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cashmine/internal/model"
	"cashmine/pkg/apperr"
	"cashmine/pkg/money"

	"github.com/stretchr/testify/require"
)

func vipUser(t *testing.T, env *testEnv, login string) *model.User {
	t.Helper()
	u := env.register(t, login)
	env.fund(t, u.ID, "1000")
	_, err := env.svc.VIP.Upgrade(context.Background(), u.ID)
	require.NoError(t, err)
	return u
}

func TestOrderService_ListAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "grace")

	first, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, first.Offers, 3)
	require.Equal(t, 10, first.OrdersPerDay)
	requireDecimal(t, "50", first.MaxDailyEarnings)

	for _, o := range first.Offers {
		requireDecimal(t, "5", o.Cashback)
		require.True(t, strings.HasPrefix(o.QRPayload, "ORDER:"+o.OrderNo+"|PRODUCT:"+o.ProductCode+"|"))
		require.Len(t, o.ProductCode, len(categoryPrefix(o.Category))+5)
		require.NotEmpty(t, o.QRCode)
	}

	again, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, again.Offers, 3)
	for i := range first.Offers {
		require.Equal(t, first.Offers[i].OrderNo, again.Offers[i].OrderNo)
	}
}

func TestOrderService_NoVIPNoOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.register(t, "heidi")

	res, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, res.Offers)
	require.NotEmpty(t, res.Message)

	_, err = env.svc.Order.Accept(ctx, u.ID, "ORD-missing")
	require.ErrorIs(t, err, apperr.ErrVIPRequired)
}

func TestOrderService_DailyCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "ivan")

	for i := 0; i < 10; i++ {
		res, err := env.svc.Order.ListAvailable(ctx, u.ID)
		require.NoError(t, err)
		require.NotEmpty(t, res.Offers, "no offer at step %d", i)

		acc, err := env.svc.Order.Accept(ctx, u.ID, res.Offers[0].OrderNo)
		require.NoError(t, err)
		require.Equal(t, i+1, acc.OrdersAccepted)
	}

	// An offer handed out before the cap was reached.
	stale := &model.OrderOffer{
		OrderNo:      "ORD-stale",
		UserID:       u.ID,
		ProductName:  "Faberlic Oxygen Serum",
		ProductCode:  "DƏR12345",
		ProductPrice: money.MustParse("67"),
		Cashback:     money.MustParse("5"),
		Category:     "Dəri Baxımı",
		QRPayload:    "ORDER:ORD-stale",
		Status:       model.OrderStatusOffered,
		ExpiredAt:    env.clock.Now().Add(48 * time.Hour),
	}
	require.NoError(t, env.svc.Order.orders.Create(ctx, nil, []*model.OrderOffer{stale}))

	before := env.user(t, u.ID)
	requireDecimal(t, "1050", before.Balance)
	requireDecimal(t, "50", before.TotalEarnings)

	_, err := env.svc.Order.Accept(ctx, u.ID, stale.OrderNo)
	require.ErrorIs(t, err, apperr.ErrDailyLimit)

	after := env.user(t, u.ID)
	require.True(t, before.Balance.Equal(after.Balance))
	require.True(t, before.TotalEarnings.Equal(after.TotalEarnings))

	res, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, res.Offers)

	// A new UTC day starts from zero.
	env.clock.Advance(24 * time.Hour)
	_, err = env.svc.Order.Accept(ctx, u.ID, stale.OrderNo)
	require.NoError(t, err)
	env.requireBalanced(t, u.ID)
}

func TestOrderService_EarningsCapClampsCashback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "judy")

	_, err := env.svc.Order.today(ctx, nil, u.ID)
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.DailyActivity{}).
		Where("user_id = ?", u.ID).
		Update("earnings_today", "47").Error)

	res, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, res.Offers, 1)
	requireDecimal(t, "3", res.Offers[0].Cashback)

	acc, err := env.svc.Order.Accept(ctx, u.ID, res.Offers[0].OrderNo)
	require.NoError(t, err)
	requireDecimal(t, "50", acc.DailyEarnings)
}

func TestOrderService_ConcurrentAcceptsRespectEarningsCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "sage")

	expires := env.clock.Now().Add(30 * time.Minute)
	var offers []*model.OrderOffer
	for i := 0; i < 5; i++ {
		no := fmt.Sprintf("ORD-RACE-%d", i)
		offers = append(offers, &model.OrderOffer{
			OrderNo:      no,
			UserID:       u.ID,
			ProductName:  "Oriflame Giordani Gold",
			ProductCode:  "PAR12345",
			ProductPrice: money.MustParse("60"),
			Cashback:     money.MustParse("20"),
			Category:     "Parfum",
			QRPayload:    "ORDER:" + no,
			Status:       model.OrderStatusOffered,
			ExpiredAt:    expires,
		})
	}
	require.NoError(t, env.db.Create(&offers).Error)

	var mu sync.Mutex
	next := 0
	ok, failed := race(len(offers), func() error {
		mu.Lock()
		no := offers[next].OrderNo
		next++
		mu.Unlock()
		_, err := env.svc.Order.Accept(ctx, u.ID, no)
		return err
	})

	// 50 per day at level 1 leaves room for two offers of 20
	require.Equal(t, 2, ok)
	require.Len(t, failed, 3)
	for _, err := range failed {
		require.ErrorIs(t, err, apperr.ErrDailyLimit)
	}

	daily, err := env.svc.Order.today(ctx, nil, u.ID)
	require.NoError(t, err)
	require.Equal(t, 2, daily.OrdersAccepted)
	requireDecimal(t, "40", daily.EarningsToday)
	requireDecimal(t, "1040", env.user(t, u.ID).Balance)
	env.requireBalanced(t, u.ID)
}

func TestOrderService_RejectCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "mallory")

	res, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, res.Offers, 3)

	rej, err := env.svc.Order.Reject(ctx, u.ID, res.Offers[0].OrderNo)
	require.NoError(t, err)
	require.Equal(t, 60, rej.WaitSeconds)

	_, err = env.svc.Order.Reject(ctx, u.ID, res.Offers[1].OrderNo)
	require.ErrorIs(t, err, apperr.ErrCooldownActive)
	_, err = env.svc.Order.Accept(ctx, u.ID, res.Offers[1].OrderNo)
	require.ErrorIs(t, err, apperr.ErrCooldownActive)
	require.Equal(t, "60", apperr.From(err).Details["wait_seconds"])

	env.clock.Advance(59 * time.Second)
	_, err = env.svc.Order.Accept(ctx, u.ID, res.Offers[1].OrderNo)
	require.ErrorIs(t, err, apperr.ErrCooldownActive)
	require.Equal(t, "1", apperr.From(err).Details["wait_seconds"])

	env.clock.Advance(time.Second)
	_, err = env.svc.Order.Accept(ctx, u.ID, res.Offers[1].OrderNo)
	require.NoError(t, err)

	// the rejected offer is gone
	_, err = env.svc.Order.Accept(ctx, u.ID, res.Offers[0].OrderNo)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	requireDecimal(t, "1005", env.user(t, u.ID).Balance)
}

func TestOrderService_AcceptTwiceAndForeignOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "nina")
	other := vipUser(t, env, "oscar")

	res, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	orderNo := res.Offers[0].OrderNo

	_, err = env.svc.Order.Accept(ctx, other.ID, orderNo)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.svc.Order.Accept(ctx, u.ID, orderNo)
	require.NoError(t, err)
	_, err = env.svc.Order.Accept(ctx, u.ID, orderNo)
	require.ErrorIs(t, err, apperr.ErrAlreadyResolved)

	requireDecimal(t, "1005", env.user(t, u.ID).Balance)
}

func TestOrderService_ExpiredOffers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := vipUser(t, env, "peggy")

	res, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, res.Offers, 3)

	env.clock.Advance(env.cfg.Business.OrderOfferTTL)
	_, err = env.svc.Order.Accept(ctx, u.ID, res.Offers[0].OrderNo)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	purged, err := env.svc.Order.PurgeExpired(ctx, 100)
	require.NoError(t, err)
	require.EqualValues(t, 3, purged)

	fresh, err := env.svc.Order.ListAvailable(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, fresh.Offers, 3)
	require.NotEqual(t, res.Offers[0].OrderNo, fresh.Offers[0].OrderNo)
}

func TestOrderService_CashbackVariation(t *testing.T) {
	env := newTestEnv(t, WithRandom(sequence(0, 0, 0, 0)))
	env.cfg.Business.CashbackVariation = money.MustParse("0.2")
	vip := &model.VIPLevel{CommissionPerOrder: money.MustParse("5")}

	low, err := env.svc.Order.cashbackFor(vip)
	require.NoError(t, err)
	requireDecimal(t, "4", low)

	env.svc.Order.random = sequence(2000)
	high, err := env.svc.Order.cashbackFor(vip)
	require.NoError(t, err)
	requireDecimal(t, "6", high)
}

func TestCategoryPrefix(t *testing.T) {
	require.Equal(t, "DƏR", categoryPrefix("Dəri Baxımı"))
	require.Equal(t, "MAK", categoryPrefix("Makeup"))
	require.Equal(t, "EV", categoryPrefix("Ev"))
}
