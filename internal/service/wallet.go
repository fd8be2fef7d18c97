package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService owns the (account, asset) -> wallet mapping. Wallets are
// created lazily on first reference and never deleted; their balances are
// mutated only by the trx engine.
type WalletService struct {
	store  QueryStore
	assets *asset.Registry
}

func NewWalletService(store QueryStore, assets *asset.Registry) *WalletService {
	return &WalletService{store: store, assets: assets}
}

// GetOrCreate returns the wallet for (account, symbol), creating it if this
// is the first reference. Safe under concurrent first access: the losing
// creator's insert is a no-op and the wallet is fetched instead.
func (s *WalletService) GetOrCreate(ctx context.Context, accountID uuid.UUID, symbol string) (models.Wallet, error) {
	a, err := s.assets.Get(ctx, symbol)
	if err != nil {
		return models.Wallet{}, err
	}
	return getOrCreateWallet(ctx, s.store.Queries(), accountID, a.ID)
}

// Get returns a wallet by id.
func (s *WalletService) Get(ctx context.Context, walletID uuid.UUID) (models.Wallet, error) {
	return s.store.Queries().GetWallet(ctx, walletID)
}

// Balances reports the ledger balance and the available balance (ledger
// balance minus active locks) as decimals in the asset's display precision.
type Balances struct {
	Wallet    models.Wallet   `json:"wallet"`
	Asset     models.Asset    `json:"asset"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
}

// AvailableBalance computes balance minus the sum of active locks. The
// snapshot is advisory: authoritative checks re-read under a row lock inside
// the mutating transaction.
func (s *WalletService) AvailableBalance(ctx context.Context, walletID uuid.UUID) (Balances, error) {
	queries := s.store.Queries()
	wallet, err := queries.GetWallet(ctx, walletID)
	if err != nil {
		return Balances{}, err
	}
	a, err := s.assets.GetByID(ctx, wallet.AssetID)
	if err != nil {
		return Balances{}, err
	}
	locked, err := queries.ActiveLockSum(ctx, walletID)
	if err != nil {
		return Balances{}, err
	}
	return Balances{
		Wallet:    wallet,
		Asset:     a,
		Balance:   domain.FromUnits(wallet.Balance, a.Precision),
		Available: domain.FromUnits(wallet.Balance-locked, a.Precision),
	}, nil
}

// Statement lists trx rows touching the wallet, newest first.
func (s *WalletService) Statement(ctx context.Context, walletID uuid.UUID, page, pageSize int32) ([]models.Trx, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	if page < 1 {
		page = 1
	}
	return s.store.Queries().GetWalletStatement(ctx, walletID, pageSize, (page-1)*pageSize)
}

// getOrCreateWallet is the transactional building block shared by services
// that need a wallet inside an open transaction.
func getOrCreateWallet(ctx context.Context, q *repository.Queries, accountID, assetID uuid.UUID) (models.Wallet, error) {
	wallet, err := q.GetWalletByAccountAsset(ctx, accountID, assetID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Wallet{}, err
	}

	if _, err := q.UpsertWallet(ctx, uuid.New(), accountID, assetID); err != nil {
		return models.Wallet{}, err
	}
	wallet, err = q.GetWalletByAccountAsset(ctx, accountID, assetID)
	if err != nil {
		return models.Wallet{}, fmt.Errorf("fetch wallet after upsert: %w", err)
	}
	return wallet, nil
}
