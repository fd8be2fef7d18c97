package repository

import (
	"context"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const trxColumns = `id, group_id, sender_wallet_id, receiver_wallet_id, amount, scope, created_at`

// InsertTrx appends an immutable ledger row. Trx rows are never updated or
// deleted once committed.
func (q *Queries) InsertTrx(ctx context.Context, trx *models.Trx) error {
	query := `
		INSERT INTO trxs (id, group_id, sender_wallet_id, receiver_wallet_id, amount, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query,
		trx.ID, trx.GroupID, trx.SenderWalletID, trx.ReceiverWalletID, trx.Amount, trx.Scope,
	).Scan(&trx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trx: %w", err)
	}
	return nil
}

func (q *Queries) GetTrxsByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Trx, error) {
	rows, err := q.db.Query(ctx, `SELECT `+trxColumns+` FROM trxs WHERE group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trxs by group: %w", err)
	}
	defer rows.Close()
	return collectTrxs(rows)
}

// WalletDriftRow reports a wallet whose materialized balance disagrees with
// the replayed trx log.
type WalletDriftRow struct {
	WalletID uuid.UUID
	Balance  int64
	Replayed int64
}

// GetWalletBalanceDrift replays the trx log per wallet and returns every
// wallet whose cached balance does not equal the signed sum of its entries.
func (q *Queries) GetWalletBalanceDrift(ctx context.Context) ([]WalletDriftRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT w.id, w.balance, COALESCE(s.net, 0) AS replayed
		FROM wallets w
		LEFT JOIN (
			SELECT wallet_id, SUM(net) AS net
			FROM (
				SELECT receiver_wallet_id AS wallet_id, SUM(amount) AS net FROM trxs GROUP BY 1
				UNION ALL
				SELECT sender_wallet_id, -SUM(amount) FROM trxs GROUP BY 1
			) t
			GROUP BY wallet_id
		) s ON s.wallet_id = w.id
		WHERE w.balance <> COALESCE(s.net, 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balance drift: %w", err)
	}
	defer rows.Close()

	var drift []WalletDriftRow
	for rows.Next() {
		var d WalletDriftRow
		if err := rows.Scan(&d.WalletID, &d.Balance, &d.Replayed); err != nil {
			return nil, fmt.Errorf("failed to scan drift row: %w", err)
		}
		drift = append(drift, d)
	}
	return drift, rows.Err()
}

// GetNegativeOrdinaryWallets returns non-SYSTEM wallets with a negative
// balance. There should never be any.
func (q *Queries) GetNegativeOrdinaryWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+prefixedWalletColumns+`
		FROM wallets w
		JOIN accounts a ON a.id = w.account_id
		WHERE a.type <> 'SYSTEM' AND w.balance < 0
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list negative wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.AccountID, &w.AssetID, &w.Balance, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

const prefixedWalletColumns = `w.id, w.account_id, w.asset_id, w.balance, w.created_at`

func collectTrxs(rows pgx.Rows) ([]models.Trx, error) {
	var trxs []models.Trx
	for rows.Next() {
		var t models.Trx
		if err := rows.Scan(&t.ID, &t.GroupID, &t.SenderWalletID, &t.ReceiverWalletID, &t.Amount, &t.Scope, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trx: %w", err)
		}
		trxs = append(trxs, t)
	}
	return trxs, rows.Err()
}
