package service

import (
	"context"
	"fmt"
	"sort"
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

// TrxService is the append-only ledger engine. Every balance mutation in the
// system flows through Post (or PostInTx for composed business actions);
// nothing else writes wallet balances.
type TrxService struct {
	store    QueryStore
	assets   *asset.Registry
	notifier Notifier

	retryAttempts int
	retryBackoff  time.Duration
}

func NewTrxService(store QueryStore, assets *asset.Registry, notifier Notifier) *TrxService {
	return &TrxService{store: store, assets: assets, notifier: notifier}
}

// WithRetryPolicy overrides the defaults used when a posting is aborted by a
// serialization or deadlock error.
func (s *TrxService) WithRetryPolicy(attempts int, backoff time.Duration) *TrxService {
	s.retryAttempts = attempts
	s.retryBackoff = backoff
	return s
}

// TrxCmd describes one ledger movement. GroupID correlates all trx rows
// produced by a single business action; it is advisory, not deduplicating.
type TrxCmd struct {
	GroupID          uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           decimal.Decimal
	Scope            string
}

func (cmd TrxCmd) validate() error {
	if !domain.ValidScope(cmd.Scope) {
		return fmt.Errorf("unknown trx scope %q", cmd.Scope)
	}
	if cmd.SenderWalletID == cmd.ReceiverWalletID {
		return models.ErrSameWallet
	}
	if !cmd.Amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	return nil
}

// Post writes one immutable trx row and atomically updates both wallets'
// cached balances in the same commit. On any failure no partial state is
// visible.
func (s *TrxService) Post(ctx context.Context, cmd TrxCmd) (*models.Trx, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	var trx *models.Trx
	err := WithRetry(ctx, s.retryAttempts, s.retryBackoff, func() error {
		return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
			var err error
			trx, err = s.PostInTx(ctx, qtx, cmd)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementTrxPosted(cmd.Scope)
	if s.notifier != nil {
		s.notifier.TrxPosted(ctx, *trx)
	}
	return trx, nil
}

// PostInTx performs the posting inside an already-open transaction so that
// callers (commission split, prize awarding) can compose several postings
// plus their own rows atomically.
//
// Both wallet rows are locked in ascending id order; when concurrent business
// actions touch overlapping wallet sets this fixed global order prevents
// deadlocks. Non-SYSTEM senders are re-validated against their available
// balance under the lock, which closes the check-then-act race.
func (s *TrxService) PostInTx(ctx context.Context, qtx *repository.Queries, cmd TrxCmd) (*models.Trx, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	locked, err := lockWalletsInOrder(ctx, qtx, cmd.SenderWalletID, cmd.ReceiverWalletID)
	if err != nil {
		return nil, err
	}

	sender := locked[cmd.SenderWalletID]
	receiver := locked[cmd.ReceiverWalletID]
	if sender.Wallet.AssetID != receiver.Wallet.AssetID {
		return nil, models.ErrAssetMismatch
	}

	a, err := s.assets.GetByID(ctx, sender.Wallet.AssetID)
	if err != nil {
		return nil, fmt.Errorf("resolve trx asset: %w", err)
	}
	units, err := domain.ToUnits(cmd.Amount, a.Precision)
	if err != nil {
		return nil, err
	}

	// Only the SYSTEM account may go negative.
	if sender.AccountType != domain.AccountTypeSystem {
		lockedSum, err := qtx.ActiveLockSum(ctx, sender.Wallet.ID)
		if err != nil {
			return nil, err
		}
		if sender.Wallet.Balance-lockedSum < units {
			return nil, models.ErrInsufficientBalance
		}
	}

	trx := &models.Trx{
		ID:               uuid.New(),
		GroupID:          cmd.GroupID,
		SenderWalletID:   cmd.SenderWalletID,
		ReceiverWalletID: cmd.ReceiverWalletID,
		Amount:           units,
		Scope:            cmd.Scope,
	}
	if err := qtx.InsertTrx(ctx, trx); err != nil {
		return nil, err
	}

	rows, err := qtx.AddToWalletBalance(ctx, cmd.SenderWalletID, -units)
	if err != nil {
		return nil, err
	}
	if err := requireExactlyOne(rows, "debit sender wallet"); err != nil {
		return nil, err
	}
	rows, err = qtx.AddToWalletBalance(ctx, cmd.ReceiverWalletID, units)
	if err != nil {
		return nil, err
	}
	if err := requireExactlyOne(rows, "credit receiver wallet"); err != nil {
		return nil, err
	}

	zap.L().Debug("trx posted",
		zap.String("trx_id", trx.ID.String()),
		zap.String("group_id", trx.GroupID.String()),
		zap.String("scope", trx.Scope),
		zap.Int64("amount", trx.Amount),
	)
	return trx, nil
}

// lockWalletsInOrder takes FOR UPDATE locks on the given wallet rows in
// ascending id order. A business action touching several wallets must acquire
// every lock it will need through one call, so the global order holds across
// the whole action and not just per posting.
func lockWalletsInOrder(ctx context.Context, qtx *repository.Queries, ids ...uuid.UUID) (map[uuid.UUID]repository.WalletForUpdateRow, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	locked := make(map[uuid.UUID]repository.WalletForUpdateRow, len(sorted))
	for _, id := range sorted {
		if _, held := locked[id]; held {
			continue
		}
		row, err := qtx.GetWalletForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lock wallet %s: %w", id, err)
		}
		locked[id] = row
	}
	return locked, nil
}

// GroupTrxs lists all trx rows correlated by a group id.
func (s *TrxService) GroupTrxs(ctx context.Context, groupID uuid.UUID) ([]models.Trx, error) {
	return s.store.Queries().GetTrxsByGroup(ctx, groupID)
}
