package service

import (
	"context"
	"testing"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationCleanLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewReconciliationService(env.store)

	sender := env.createAccount(t)
	receiver := env.createAccount(t)
	senderWallet := env.fund(t, sender.ID, "IRT", decimal.NewFromInt(1000))
	receiverWallet, err := env.wallets.GetOrCreate(ctx, receiver.ID, "IRT")
	require.NoError(t, err)

	_, err = env.trx.Post(ctx, TrxCmd{
		GroupID:          uuid.New(),
		SenderWalletID:   senderWallet.ID,
		ReceiverWalletID: receiverWallet.ID,
		Amount:           decimal.NewFromInt(400),
		Scope:            domain.ScopeTransfer,
	})
	require.NoError(t, err)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.WalletsDrifted)
	assert.Equal(t, 0, report.NegativeWallets)
}

func TestReconciliationDetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewReconciliationService(env.store)

	account := env.createAccount(t)
	wallet := env.fund(t, account.ID, "IRT", decimal.NewFromInt(1000))

	// Corrupt the materialized balance behind the ledger's back.
	_, err := env.db.Exec(ctx, "UPDATE wallets SET balance = balance + 5 WHERE id = $1", wallet.ID)
	require.NoError(t, err)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.WalletsDrifted)
}

func TestReconciliationDetectsNegativeOrdinaryWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewReconciliationService(env.store)

	account := env.createAccount(t)
	wallet, err := env.wallets.GetOrCreate(ctx, account.ID, "IRT")
	require.NoError(t, err)

	_, err = env.db.Exec(ctx, "UPDATE wallets SET balance = -10 WHERE id = $1", wallet.ID)
	require.NoError(t, err)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NegativeWallets)
}
