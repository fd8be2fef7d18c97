package service

import (
	"context"
	"testing"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/notify"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/testutil/testdb"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testEnv wires the service layer against the local test database.
type testEnv struct {
	db      *pgxpool.Pool
	store   *repository.Store
	assets  *asset.Registry
	trx     *TrxService
	wallets *WalletService
	locks   *LockService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testdb.Setup(t)
	t.Cleanup(db.Close)

	store := repository.NewStore(db)
	registry := asset.NewRegistry(store, time.Minute)
	trx := NewTrxService(store, registry, notify.NopNotifier{})
	return &testEnv{
		db:      db,
		store:   store,
		assets:  registry,
		trx:     trx,
		wallets: NewWalletService(store, registry),
		locks:   NewLockService(store, registry),
	}
}

func (env *testEnv) createAccount(t *testing.T) models.Account {
	t.Helper()

	account := models.Account{ID: uuid.New(), Type: domain.AccountTypeOrdinary}
	err := env.store.Queries().CreateAccount(context.Background(), &account)
	require.NoError(t, err)
	return account
}

// fund credits amount to the account's wallet via a SYSTEM deposit and
// returns the credited wallet.
func (env *testEnv) fund(t *testing.T, accountID uuid.UUID, symbol string, amount decimal.Decimal) models.Wallet {
	t.Helper()

	ctx := context.Background()
	systemWallet, err := env.wallets.GetOrCreate(ctx, uuid.MustParse(domain.SystemAccountID), symbol)
	require.NoError(t, err)
	wallet, err := env.wallets.GetOrCreate(ctx, accountID, symbol)
	require.NoError(t, err)

	_, err = env.trx.Post(ctx, TrxCmd{
		GroupID:          uuid.New(),
		SenderWalletID:   systemWallet.ID,
		ReceiverWalletID: wallet.ID,
		Amount:           amount,
		Scope:            domain.ScopeDeposit,
	})
	require.NoError(t, err)
	return wallet
}

func (env *testEnv) walletBalance(t *testing.T, walletID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := env.db.QueryRow(context.Background(), "SELECT balance FROM wallets WHERE id = $1", walletID).Scan(&balance)
	require.NoError(t, err)
	return balance
}
