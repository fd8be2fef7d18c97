package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, account_id, asset_id, balance, created_at`

// UpsertWallet inserts a wallet row if none exists for (account, asset).
// Returns the number of rows inserted; the second concurrent creator gets 0
// and must fall back to a fetch.
func (q *Queries) UpsertWallet(ctx context.Context, id, accountID, assetID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO wallets (id, account_id, asset_id, balance, created_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (account_id, asset_id) DO NOTHING
	`, id, accountID, assetID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert wallet: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) GetWallet(ctx context.Context, id uuid.UUID) (models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetWalletByAccountAsset(ctx context.Context, accountID, assetID uuid.UUID) (models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE account_id = $1 AND asset_id = $2`
	return scanWallet(q.db.QueryRow(ctx, query, accountID, assetID))
}

// WalletForUpdateRow carries the wallet plus its owner's account type so the
// trx engine can decide whether the balance floor applies.
type WalletForUpdateRow struct {
	Wallet      models.Wallet
	AccountType string
}

// GetWalletForUpdate locks the wallet row until the enclosing transaction
// ends. Callers locking several wallets must do so in ascending id order.
func (q *Queries) GetWalletForUpdate(ctx context.Context, id uuid.UUID) (WalletForUpdateRow, error) {
	var row WalletForUpdateRow
	err := q.db.QueryRow(ctx, `
		SELECT w.id, w.account_id, w.asset_id, w.balance, w.created_at, a.type
		FROM wallets w
		JOIN accounts a ON a.id = w.account_id
		WHERE w.id = $1
		FOR UPDATE OF w
	`, id).Scan(&row.Wallet.ID, &row.Wallet.AccountID, &row.Wallet.AssetID, &row.Wallet.Balance, &row.Wallet.CreatedAt, &row.AccountType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WalletForUpdateRow{}, models.ErrNotFound
		}
		return WalletForUpdateRow{}, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return row, nil
}

// ActiveLockSum returns the total of unfreed, unexpired balance locks.
func (q *Queries) ActiveLockSum(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM balance_locks
		WHERE wallet_id = $1 AND NOT freed AND release_date > NOW()
	`, walletID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum active locks: %w", err)
	}
	return sum, nil
}

// AddToWalletBalance applies a signed delta to the materialized balance.
// Only the trx engine may call this, inside the same transaction that writes
// the trx row.
func (q *Queries) AddToWalletBalance(ctx context.Context, walletID uuid.UUID, delta int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2`, delta, walletID)
	if err != nil {
		return 0, fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetWalletStatement lists trx rows touching the wallet, newest first.
func (q *Queries) GetWalletStatement(ctx context.Context, walletID uuid.UUID, limit, offset int32) ([]models.Trx, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+trxColumns+`
		FROM trxs
		WHERE sender_wallet_id = $1 OR receiver_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet statement: %w", err)
	}
	defer rows.Close()
	return collectTrxs(rows)
}

func scanWallet(row pgx.Row) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.AccountID, &w.AssetID, &w.Balance, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Wallet{}, models.ErrNotFound
		}
		return models.Wallet{}, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}
