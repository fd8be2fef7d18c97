package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const lockColumns = `id, wallet_id, amount, release_date, freed, created_at, freed_at`

func (q *Queries) InsertBalanceLock(ctx context.Context, lock *models.BalanceLock) error {
	query := `
		INSERT INTO balance_locks (id, wallet_id, amount, release_date, freed, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, lock.ID, lock.WalletID, lock.Amount, lock.ReleaseDate).Scan(&lock.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert balance lock: %w", err)
	}
	return nil
}

func (q *Queries) GetBalanceLock(ctx context.Context, id uuid.UUID) (models.BalanceLock, error) {
	query := `SELECT ` + lockColumns + ` FROM balance_locks WHERE id = $1`
	return scanLock(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetBalanceLockForUpdate(ctx context.Context, id uuid.UUID) (models.BalanceLock, error) {
	query := `SELECT ` + lockColumns + ` FROM balance_locks WHERE id = $1 FOR UPDATE`
	return scanLock(q.db.QueryRow(ctx, query, id))
}

// FreeBalanceLock marks the lock freed. Freeing an already-freed lock affects
// zero rows, which callers treat as success (last writer wins).
func (q *Queries) FreeBalanceLock(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE balance_locks SET freed = TRUE, freed_at = NOW()
		WHERE id = $1 AND NOT freed
	`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to free balance lock: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetExpiredLocks claims a batch of unfreed locks past their release date.
// SKIP LOCKED keeps concurrent sweepers and explicit releases from blocking
// each other.
func (q *Queries) GetExpiredLocks(ctx context.Context, limit int32) ([]models.BalanceLock, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+lockColumns+`
		FROM balance_locks
		WHERE NOT freed AND release_date <= NOW()
		ORDER BY release_date
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim expired locks: %w", err)
	}
	defer rows.Close()

	var locks []models.BalanceLock
	for rows.Next() {
		var l models.BalanceLock
		if err := rows.Scan(&l.ID, &l.WalletID, &l.Amount, &l.ReleaseDate, &l.Freed, &l.CreatedAt, &l.FreedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance lock: %w", err)
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

func scanLock(row pgx.Row) (models.BalanceLock, error) {
	var l models.BalanceLock
	err := row.Scan(&l.ID, &l.WalletID, &l.Amount, &l.ReleaseDate, &l.Freed, &l.CreatedAt, &l.FreedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.BalanceLock{}, models.ErrNotFound
		}
		return models.BalanceLock{}, fmt.Errorf("failed to get balance lock: %w", err)
	}
	return l, nil
}
