package service

import (
	"context"
	"testing"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDistribution(env *testEnv) *DistributionService {
	return NewDistributionService(env.store, env.assets, env.trx, notify.NopNotifier{}, decimal.RequireFromString("0.3"))
}

// referredTrader creates a referrer with a code at the given share and a
// trader account linked to it.
func referredTrader(t *testing.T, env *testEnv, sharePercent int32) (models.Account, models.Account, *models.Referral) {
	t.Helper()
	ctx := context.Background()

	referrer := env.createAccount(t)
	trader := env.createAccount(t)

	referrals := NewReferralService(env.store)
	referral, err := referrals.Create(ctx, referrer.ID, sharePercent)
	require.NoError(t, err)
	_, err = referrals.Apply(ctx, trader.ID, referral.Code)
	require.NoError(t, err)
	return referrer, trader, referral
}

func TestSettleFillSplitsCommission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newDistribution(env)

	referrer, trader, _ := referredTrader(t, env, 30)

	// gross = 0.001 * 2 * 200000 = 400 IRT
	// pool = 400 * 0.3 = 120; referrer 30% = 36, trader 84
	fill := Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(2),
		Price:          decimal.NewFromInt(200000),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	}
	rt, err := svc.SettleFill(ctx, fill)
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, int64(36), rt.ReferrerAmount)
	assert.Equal(t, int64(84), rt.TraderAmount)

	referrerWallet, err := env.wallets.GetOrCreate(ctx, referrer.ID, "IRT")
	require.NoError(t, err)
	traderWallet, err := env.wallets.GetOrCreate(ctx, trader.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(36), env.walletBalance(t, referrerWallet.ID))
	assert.Equal(t, int64(84), env.walletBalance(t, traderWallet.ID))

	group, err := env.trx.GroupTrxs(ctx, fill.GroupID())
	require.NoError(t, err)
	assert.Len(t, group, 2)
	for _, trx := range group {
		assert.Equal(t, domain.ScopeCommission, trx.Scope)
	}
}

func TestSettleFillHalfReturnEvenSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewDistributionService(env.store, env.assets, env.trx, notify.NopNotifier{}, decimal.RequireFromString("0.5"))

	referrer, trader, _ := referredTrader(t, env, 50)

	// gross = 0.001 * 2 * 200000 = 400 IRT; pool = 200, split 100/100
	rt, err := svc.SettleFill(ctx, Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(2),
		Price:          decimal.NewFromInt(200000),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	})
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, int64(100), rt.ReferrerAmount)
	assert.Equal(t, int64(100), rt.TraderAmount)

	referrerWallet, err := env.wallets.GetOrCreate(ctx, referrer.ID, "IRT")
	require.NoError(t, err)
	traderWallet, err := env.wallets.GetOrCreate(ctx, trader.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(100), env.walletBalance(t, referrerWallet.ID))
	assert.Equal(t, int64(100), env.walletBalance(t, traderWallet.ID))
}

func TestSettleFillSharesSumToPool(t *testing.T) {
	env := newTestEnv(t)
	svc := newDistribution(env)

	_, trader, _ := referredTrader(t, env, 33)

	// gross = 100, pool = 30; 33% of 30 is 9.9, truncated to 9, trader gets
	// the remaining 21 so nothing is lost to rounding.
	rt, err := svc.SettleFill(context.Background(), Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(1),
		Price:          decimal.NewFromInt(100000),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	})
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, int64(9), rt.ReferrerAmount)
	assert.Equal(t, int64(21), rt.TraderAmount)
	assert.Equal(t, int64(30), rt.ReferrerAmount+rt.TraderAmount)
}

func TestSettleFillShareBoundaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newDistribution(env)

	fill := func(trader models.Account) Fill {
		return Fill{
			FillID:         uuid.New(),
			Amount:         decimal.NewFromInt(1),
			Price:          decimal.NewFromInt(100000),
			FeeRate:        decimal.RequireFromString("0.001"),
			TakerAccountID: trader.ID,
			Symbol:         "IRT",
		}
	}

	// Share 0: the whole pool goes to the trader, no referrer trx exists.
	_, trader, _ := referredTrader(t, env, 0)
	f := fill(trader)
	rt, err := svc.SettleFill(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rt.ReferrerAmount)
	assert.Equal(t, int64(30), rt.TraderAmount)
	group, err := env.trx.GroupTrxs(ctx, f.GroupID())
	require.NoError(t, err)
	assert.Len(t, group, 1)

	// Share 100: the whole pool goes to the referrer.
	_, trader, _ = referredTrader(t, env, 100)
	f = fill(trader)
	rt, err = svc.SettleFill(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(30), rt.ReferrerAmount)
	assert.Equal(t, int64(0), rt.TraderAmount)
	group, err = env.trx.GroupTrxs(ctx, f.GroupID())
	require.NoError(t, err)
	assert.Len(t, group, 1)
}

func TestSettleFillTruncatesToAssetPrecision(t *testing.T) {
	env := newTestEnv(t)
	svc := newDistribution(env)

	_, trader, _ := referredTrader(t, env, 50)

	// gross = 3.33 IRT, pool = 0.999, truncated to 0 at precision 0: the
	// settlement is recorded but moves nothing.
	f := Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(1),
		Price:          decimal.NewFromInt(333),
		FeeRate:        decimal.RequireFromString("0.01"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	}
	rt, err := svc.SettleFill(context.Background(), f)
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, int64(0), rt.ReferrerAmount)
	assert.Equal(t, int64(0), rt.TraderAmount)

	group, err := env.trx.GroupTrxs(context.Background(), f.GroupID())
	require.NoError(t, err)
	assert.Empty(t, group)
}

func TestSettleFillReplayIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newDistribution(env)

	referrer, trader, _ := referredTrader(t, env, 30)

	fill := Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(2),
		Price:          decimal.NewFromInt(200000),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	}
	first, err := svc.SettleFill(ctx, fill)
	require.NoError(t, err)

	second, err := svc.SettleFill(ctx, fill)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// No double credit.
	referrerWallet, err := env.wallets.GetOrCreate(ctx, referrer.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(36), env.walletBalance(t, referrerWallet.ID))
	group, err := env.trx.GroupTrxs(ctx, fill.GroupID())
	require.NoError(t, err)
	assert.Len(t, group, 2)
}

func TestSettleFillWithoutReferral(t *testing.T) {
	env := newTestEnv(t)
	svc := newDistribution(env)

	trader := env.createAccount(t)

	f := Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(2),
		Price:          decimal.NewFromInt(200000),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	}
	rt, err := svc.SettleFill(context.Background(), f)
	require.NoError(t, err)
	assert.Nil(t, rt)

	group, err := env.trx.GroupTrxs(context.Background(), f.GroupID())
	require.NoError(t, err)
	assert.Empty(t, group)
}

func TestSettleFillRejectsInvalidFill(t *testing.T) {
	env := newTestEnv(t)
	svc := newDistribution(env)

	_, err := svc.SettleFill(context.Background(), Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(-1),
		Price:          decimal.NewFromInt(100),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: uuid.New(),
		Symbol:         "IRT",
	})
	require.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestSettleFillConcurrentOverlappingWallets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newDistribution(env)
	referrals := NewReferralService(env.store)

	// Chain: top refers mid, mid refers bottom. Fills for mid and bottom
	// overlap on mid's wallet, once as trader and once as referrer.
	top := env.createAccount(t)
	mid := env.createAccount(t)
	bottom := env.createAccount(t)

	topReferral, err := referrals.Create(ctx, top.ID, 30)
	require.NoError(t, err)
	_, err = referrals.Apply(ctx, mid.ID, topReferral.Code)
	require.NoError(t, err)
	midReferral, err := referrals.Create(ctx, mid.ID, 30)
	require.NoError(t, err)
	_, err = referrals.Apply(ctx, bottom.ID, midReferral.Code)
	require.NoError(t, err)

	newFill := func(taker uuid.UUID) Fill {
		return Fill{
			FillID:         uuid.New(),
			Amount:         decimal.NewFromInt(2),
			Price:          decimal.NewFromInt(200000),
			FeeRate:        decimal.RequireFromString("0.001"),
			TakerAccountID: taker,
			Symbol:         "IRT",
		}
	}

	// Each round settles one fill per taker concurrently; each fill credits
	// its referrer 36 and its trader 84.
	rounds := 10
	errs := make(chan error, rounds*2)
	for i := 0; i < rounds; i++ {
		fillMid, fillBottom := newFill(mid.ID), newFill(bottom.ID)
		go func() {
			_, err := svc.SettleFill(ctx, fillMid)
			errs <- err
		}()
		go func() {
			_, err := svc.SettleFill(ctx, fillBottom)
			errs <- err
		}()
		for j := 0; j < 2; j++ {
			require.NoError(t, <-errs)
		}
	}

	topWallet, err := env.wallets.GetOrCreate(ctx, top.ID, "IRT")
	require.NoError(t, err)
	midWallet, err := env.wallets.GetOrCreate(ctx, mid.ID, "IRT")
	require.NoError(t, err)
	bottomWallet, err := env.wallets.GetOrCreate(ctx, bottom.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(36*rounds), env.walletBalance(t, topWallet.ID))
	assert.Equal(t, int64((84+36)*rounds), env.walletBalance(t, midWallet.ID))
	assert.Equal(t, int64(84*rounds), env.walletBalance(t, bottomWallet.ID))
}

func TestSettleFillConcurrentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newDistribution(env)

	referrer, trader, _ := referredTrader(t, env, 30)

	fill := Fill{
		FillID:         uuid.New(),
		Amount:         decimal.NewFromInt(2),
		Price:          decimal.NewFromInt(200000),
		FeeRate:        decimal.RequireFromString("0.001"),
		TakerAccountID: trader.ID,
		Symbol:         "IRT",
	}

	type result struct {
		rt  *models.ReferralTrx
		err error
	}
	n := 5
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			rt, err := svc.SettleFill(ctx, fill)
			results <- result{rt: rt, err: err}
		}()
	}

	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.NotNil(t, r.rt)
		ids = append(ids, r.rt.ID)
	}
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	// Exactly one settlement's worth of credit.
	referrerWallet, err := env.wallets.GetOrCreate(ctx, referrer.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(36), env.walletBalance(t, referrerWallet.ID))
	group, err := env.trx.GroupTrxs(ctx, fill.GroupID())
	require.NoError(t, err)
	assert.Len(t, group, 2)
}
