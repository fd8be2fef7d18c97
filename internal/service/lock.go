package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/observability"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LockService reserves portions of wallet balances for pending orders and
// withdrawals. A lock reduces the available balance but not the ledger
// balance; only this service writes balance_locks rows.
type LockService struct {
	store  QueryStore
	assets *asset.Registry
	audit  *AuditService
}

func NewLockService(store QueryStore, assets *asset.Registry) *LockService {
	return &LockService{store: store, assets: assets, audit: NewAuditService(store)}
}

// Acquire reserves amount on the wallet until releaseDate. The wallet row is
// held FOR UPDATE while the available balance is read and the lock row
// inserted, so two concurrent acquisitions cannot both observe sufficient
// balance and double-reserve the same funds.
func (s *LockService) Acquire(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, releaseDate time.Time) (*models.BalanceLock, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if !releaseDate.After(time.Now()) {
		return nil, fmt.Errorf("release date must be in the future: %w", models.ErrInvalidAmount)
	}

	var lock *models.BalanceLock
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		row, err := qtx.GetWalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}

		a, err := s.assets.GetByID(ctx, row.Wallet.AssetID)
		if err != nil {
			return err
		}
		units, err := domain.ToUnits(amount, a.Precision)
		if err != nil {
			return err
		}

		lockedSum, err := qtx.ActiveLockSum(ctx, walletID)
		if err != nil {
			return err
		}
		if row.Wallet.Balance-lockedSum < units {
			return models.ErrInsufficientBalance
		}

		lock = &models.BalanceLock{
			ID:          uuid.New(),
			WalletID:    walletID,
			Amount:      units,
			ReleaseDate: releaseDate,
		}
		if err := qtx.InsertBalanceLock(ctx, lock); err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]any{"amount": units, "release_date": releaseDate})
		return s.audit.Write(ctx, qtx, "balance_lock", lock.ID, nil, "acquired", "", "HELD", metadata)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementLockEvent("acquired")
	return lock, nil
}

// Release frees the lock. Idempotent: releasing an already-freed lock is a
// no-op, not an error, so completion and cancellation paths can both call it.
func (s *LockService) Release(ctx context.Context, lockID uuid.UUID) (*models.BalanceLock, error) {
	var lock models.BalanceLock
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		lock, err = qtx.GetBalanceLockForUpdate(ctx, lockID)
		if err != nil {
			return err
		}
		if lock.Freed {
			return nil
		}

		rows, err := qtx.FreeBalanceLock(ctx, lockID)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "free balance lock"); err != nil {
			return err
		}
		lock.Freed = true

		return s.audit.Write(ctx, qtx, "balance_lock", lockID, nil, "released", "HELD", "FREED", nil)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementLockEvent("released")
	return &lock, nil
}

// Get returns a lock by id.
func (s *LockService) Get(ctx context.Context, lockID uuid.UUID) (models.BalanceLock, error) {
	return s.store.Queries().GetBalanceLock(ctx, lockID)
}

// SweepExpired frees locks whose release date elapsed without an explicit
// release. Safe to run concurrently with releases: expired locks already
// stopped counting toward the available balance, this just materializes
// freed=TRUE, and SKIP LOCKED keeps sweepers from contending.
func (s *LockService) SweepExpired(ctx context.Context, batchSize int32) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var swept int
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		expired, err := qtx.GetExpiredLocks(ctx, batchSize)
		if err != nil {
			return err
		}
		for _, lock := range expired {
			rows, err := qtx.FreeBalanceLock(ctx, lock.ID)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Freed by an explicit release after we claimed it.
				continue
			}
			if err := s.audit.Write(ctx, qtx, "balance_lock", lock.ID, nil, "expired", "HELD", "FREED", nil); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		observability.AddLockSweep(swept)
		zap.L().Info("expired balance locks swept", zap.Int("count", swept))
	}
	return swept, nil
}
