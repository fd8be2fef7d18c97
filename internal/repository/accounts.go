package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (q *Queries) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, type, referred_by, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, account.ID, account.Type, account.ReferredBy).Scan(&account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	var account models.Account
	query := `SELECT id, type, referred_by, created_at FROM accounts WHERE id = $1`
	err := q.db.QueryRow(ctx, query, id).Scan(&account.ID, &account.Type, &account.ReferredBy, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, models.ErrNotFound
		}
		return models.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (q *Queries) SetAccountReferredBy(ctx context.Context, accountID, referralID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE accounts SET referred_by = $1 WHERE id = $2 AND referred_by IS NULL`, referralID, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to set referred_by: %w", err)
	}
	return tag.RowsAffected(), nil
}
