package service

import (
	"context"
	"testing"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateWalletIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t)
	first, err := env.wallets.GetOrCreate(ctx, account.ID, "IRT")
	require.NoError(t, err)
	second, err := env.wallets.GetOrCreate(ctx, account.ID, "irt")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := env.wallets.GetOrCreate(ctx, account.ID, "USDT")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetOrCreateWalletUnknownAsset(t *testing.T) {
	env := newTestEnv(t)

	account := env.createAccount(t)
	_, err := env.wallets.GetOrCreate(context.Background(), account.ID, "DOGE")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestAvailableBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t)
	wallet := env.fund(t, account.ID, "IRT", decimal.NewFromInt(1000))

	_, err := env.locks.Acquire(ctx, wallet.ID, decimal.NewFromInt(300), time.Now().Add(time.Hour))
	require.NoError(t, err)

	balances, err := env.wallets.AvailableBalance(ctx, wallet.ID)
	require.NoError(t, err)
	assert.True(t, balances.Balance.Equal(decimal.NewFromInt(1000)), "balance = %s", balances.Balance)
	assert.True(t, balances.Available.Equal(decimal.NewFromInt(700)), "available = %s", balances.Available)
	assert.Equal(t, "IRT", balances.Asset.Symbol)
}

func TestWalletStatement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.createAccount(t)
	other := env.createAccount(t)
	wallet := env.fund(t, account.ID, "IRT", decimal.NewFromInt(1000))
	otherWallet, err := env.wallets.GetOrCreate(ctx, other.ID, "IRT")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := env.trx.Post(ctx, TrxCmd{
			GroupID:          uuid.New(),
			SenderWalletID:   wallet.ID,
			ReceiverWalletID: otherWallet.ID,
			Amount:           decimal.NewFromInt(int64(i * 10)),
			Scope:            domain.ScopeTransfer,
		})
		require.NoError(t, err)
	}

	// Deposit plus three transfers, newest first.
	statement, err := env.wallets.Statement(ctx, wallet.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, statement, 4)
	assert.Equal(t, int64(30), statement[0].Amount)
	assert.Equal(t, domain.ScopeDeposit, statement[3].Scope)

	// The counterparty wallet sees only the three transfers.
	statement, err = env.wallets.Statement(ctx, otherWallet.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, statement, 3)

	// Paging.
	statement, err = env.wallets.Statement(ctx, wallet.ID, 2, 3)
	require.NoError(t, err)
	require.Len(t, statement, 1)
	assert.Equal(t, domain.ScopeDeposit, statement[0].Scope)
}
