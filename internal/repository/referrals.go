package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const referralColumns = `id, owner_account_id, code, owner_share_percent, created_at`

func (q *Queries) InsertReferral(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (id, owner_account_id, code, owner_share_percent, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRow(ctx, query, referral.ID, referral.OwnerAccountID, referral.Code, referral.OwnerSharePercent).Scan(&referral.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert referral: %w", err)
	}
	return nil
}

func (q *Queries) GetReferral(ctx context.Context, id uuid.UUID) (models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`
	return scanReferral(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetReferralByCode(ctx context.Context, code string) (models.Referral, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE code = $1`
	return scanReferral(q.db.QueryRow(ctx, query, code))
}

func (q *Queries) UpdateReferralShare(ctx context.Context, id uuid.UUID, percent int32) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE referrals SET owner_share_percent = $1 WHERE id = $2`, percent, id)
	if err != nil {
		return 0, fmt.Errorf("failed to update referral share: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertReferralTrxIfAbsent records a fill's commission split once. The
// unique group_id key makes webhook replays of the same fill a no-op.
func (q *Queries) InsertReferralTrxIfAbsent(ctx context.Context, rt *models.ReferralTrx) (bool, error) {
	err := q.db.QueryRow(ctx, `
		INSERT INTO referral_trxs (id, referral_id, group_id, referrer_amount, trader_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (group_id) DO NOTHING
		RETURNING created_at
	`, rt.ID, rt.ReferralID, rt.GroupID, rt.ReferrerAmount, rt.TraderAmount).Scan(&rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert referral trx: %w", err)
	}
	return true, nil
}

func (q *Queries) GetReferralTrxByGroup(ctx context.Context, groupID uuid.UUID) (models.ReferralTrx, error) {
	var rt models.ReferralTrx
	query := `SELECT id, referral_id, group_id, referrer_amount, trader_amount, created_at FROM referral_trxs WHERE group_id = $1`
	err := q.db.QueryRow(ctx, query, groupID).Scan(&rt.ID, &rt.ReferralID, &rt.GroupID, &rt.ReferrerAmount, &rt.TraderAmount, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ReferralTrx{}, models.ErrNotFound
		}
		return models.ReferralTrx{}, fmt.Errorf("failed to get referral trx: %w", err)
	}
	return rt, nil
}

func scanReferral(row pgx.Row) (models.Referral, error) {
	var r models.Referral
	err := row.Scan(&r.ID, &r.OwnerAccountID, &r.Code, &r.OwnerSharePercent, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Referral{}, models.ErrNotFound
		}
		return models.Referral{}, fmt.Errorf("failed to get referral: %w", err)
	}
	return r, nil
}
