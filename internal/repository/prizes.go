package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const prizeColumns = `id, account_id, scope, variant, amount, asset_id, fake, redeemed, created_at`

// InsertPrizeIfAbsent attempts the get-or-create step of prize awarding.
// The unique (account_id, scope, variant) key makes redundant awarding a
// no-op: returns false when the prize already existed.
func (q *Queries) InsertPrizeIfAbsent(ctx context.Context, prize *models.Prize) (bool, error) {
	err := q.db.QueryRow(ctx, `
		INSERT INTO prizes (id, account_id, scope, variant, amount, asset_id, fake, redeemed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())
		ON CONFLICT (account_id, scope, variant) DO NOTHING
		RETURNING created_at
	`, prize.ID, prize.AccountID, prize.Scope, prize.Variant, prize.Amount, prize.AssetID, prize.Fake).Scan(&prize.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert prize: %w", err)
	}
	return true, nil
}

func (q *Queries) GetPrize(ctx context.Context, id uuid.UUID) (models.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE id = $1`
	return scanPrize(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetPrizeForUpdate(ctx context.Context, id uuid.UUID) (models.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE id = $1 FOR UPDATE`
	return scanPrize(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetPrizeByKey(ctx context.Context, accountID uuid.UUID, scope, variant string) (models.Prize, error) {
	query := `SELECT ` + prizeColumns + ` FROM prizes WHERE account_id = $1 AND scope = $2 AND variant = $3`
	return scanPrize(q.db.QueryRow(ctx, query, accountID, scope, variant))
}

func (q *Queries) MarkPrizeRedeemed(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE prizes SET redeemed = TRUE WHERE id = $1 AND NOT redeemed`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark prize redeemed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPrize(row pgx.Row) (models.Prize, error) {
	var p models.Prize
	err := row.Scan(&p.ID, &p.AccountID, &p.Scope, &p.Variant, &p.Amount, &p.AssetID, &p.Fake, &p.Redeemed, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Prize{}, models.ErrNotFound
		}
		return models.Prize{}, fmt.Errorf("failed to get prize: %w", err)
	}
	return p, nil
}
