package service

import (
	"context"
	"testing"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrizes(env *testEnv) *PrizeService {
	return NewPrizeService(env.store, env.assets, env.trx, notify.NopNotifier{})
}

func TestAwardPrizeIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPrizes(env)

	account := env.createAccount(t)
	cmd := AwardCmd{
		AccountID: account.ID,
		Scope:     domain.PrizeScopeSignup,
		Amount:    decimal.NewFromInt(50000),
		Symbol:    "IRT",
	}

	first, awarded, err := svc.Award(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, awarded)

	second, awarded, err := svc.Award(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.Equal(t, first.ID, second.ID)

	// Credited exactly once.
	wallet, err := env.wallets.GetOrCreate(ctx, account.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), env.walletBalance(t, wallet.ID))
}

func TestAwardPrizeConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPrizes(env)

	account := env.createAccount(t)
	cmd := AwardCmd{
		AccountID: account.ID,
		Scope:     domain.PrizeScopeTradeVolume,
		Variant:   "1B",
		Amount:    decimal.NewFromInt(10000),
		Symbol:    "IRT",
	}

	type result struct {
		awarded bool
		err     error
	}
	n := 5
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			_, awarded, err := svc.Award(ctx, cmd)
			results <- result{awarded: awarded, err: err}
		}()
	}

	var winners int
	for i := 0; i < n; i++ {
		r := <-results
		require.NoError(t, r.err)
		if r.awarded {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	wallet, err := env.wallets.GetOrCreate(ctx, account.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), env.walletBalance(t, wallet.ID))
}

func TestAwardFakePrizeMovesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPrizes(env)

	account := env.createAccount(t)
	prize, awarded, err := svc.Award(ctx, AwardCmd{
		AccountID: account.ID,
		Scope:     domain.PrizeScopeLevelUp,
		Variant:   "gold",
		Amount:    decimal.NewFromInt(5000),
		Symbol:    "IRT",
		Fake:      true,
	})
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.True(t, prize.Fake)
	assert.Equal(t, int64(5000), prize.Amount)

	var trxCount int
	err = env.db.QueryRow(ctx, "SELECT COUNT(*) FROM trxs WHERE scope = $1", domain.ScopePrize).Scan(&trxCount)
	require.NoError(t, err)
	assert.Equal(t, 0, trxCount)
}

func TestAwardDistinctVariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPrizes(env)

	account := env.createAccount(t)
	for _, variant := range []string{"100M", "500M"} {
		_, awarded, err := svc.Award(ctx, AwardCmd{
			AccountID: account.ID,
			Scope:     domain.PrizeScopeTradeVolume,
			Variant:   variant,
			Amount:    decimal.NewFromInt(1000),
			Symbol:    "IRT",
		})
		require.NoError(t, err)
		assert.True(t, awarded)
	}

	wallet, err := env.wallets.GetOrCreate(ctx, account.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), env.walletBalance(t, wallet.ID))
}

func TestAwardRejectsUnknownScope(t *testing.T) {
	env := newTestEnv(t)
	svc := newPrizes(env)

	account := env.createAccount(t)
	_, _, err := svc.Award(context.Background(), AwardCmd{
		AccountID: account.ID,
		Scope:     "LOTTERY",
		Amount:    decimal.NewFromInt(1000),
		Symbol:    "IRT",
	})
	require.Error(t, err)
}

func TestAwardReferredSignup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPrizes(env)

	referrer, trader, _ := referredTrader(t, env, 30)

	prize, awarded, err := svc.AwardReferredSignup(ctx, trader.ID, decimal.NewFromInt(20000), "IRT")
	require.NoError(t, err)
	assert.True(t, awarded)
	assert.Equal(t, referrer.ID, prize.AccountID)
	assert.Equal(t, domain.PrizeScopeReferredUser, prize.Scope)
	assert.Equal(t, trader.ID.String(), prize.Variant)

	// Retrying the same signup does not award twice.
	_, awarded, err = svc.AwardReferredSignup(ctx, trader.ID, decimal.NewFromInt(20000), "IRT")
	require.NoError(t, err)
	assert.False(t, awarded)

	wallet, err := env.wallets.GetOrCreate(ctx, referrer.ID, "IRT")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), env.walletBalance(t, wallet.ID))
}

func TestAwardReferredSignupWithoutReferrer(t *testing.T) {
	env := newTestEnv(t)
	svc := newPrizes(env)

	account := env.createAccount(t)
	prize, awarded, err := svc.AwardReferredSignup(context.Background(), account.ID, decimal.NewFromInt(20000), "IRT")
	require.NoError(t, err)
	assert.False(t, awarded)
	assert.Nil(t, prize)
}

func TestRedeemIsForwardOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newPrizes(env)

	account := env.createAccount(t)
	prize, _, err := svc.Award(ctx, AwardCmd{
		AccountID: account.ID,
		Scope:     domain.PrizeScopeSignup,
		Amount:    decimal.NewFromInt(1000),
		Symbol:    "IRT",
	})
	require.NoError(t, err)
	assert.False(t, prize.Redeemed)

	redeemed, err := svc.Redeem(ctx, prize.ID)
	require.NoError(t, err)
	assert.True(t, redeemed.Redeemed)

	again, err := svc.Redeem(ctx, prize.ID)
	require.NoError(t, err)
	assert.True(t, again.Redeemed)
}
