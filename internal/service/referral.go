package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength   = 8
	referralCodeAttempts = 5
)

// ReferralService manages referral codes and their commission share.
type ReferralService struct {
	store QueryStore
	audit *AuditService
}

func NewReferralService(store QueryStore) *ReferralService {
	return &ReferralService{store: store, audit: NewAuditService(store)}
}

// Create issues a referral code for an account. Codes are random; on the
// unlikely collision with an existing code a fresh one is drawn.
func (s *ReferralService) Create(ctx context.Context, ownerAccountID uuid.UUID, sharePercent int32) (*models.Referral, error) {
	if sharePercent < 0 || sharePercent > 100 {
		return nil, fmt.Errorf("owner share must be within [0, 100]: %w", models.ErrInvalidAmount)
	}
	if _, err := s.store.Queries().GetAccount(ctx, ownerAccountID); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := randomCode(referralCodeLength)
		if err != nil {
			return nil, err
		}
		referral := &models.Referral{
			ID:                uuid.New(),
			OwnerAccountID:    ownerAccountID,
			Code:              code,
			OwnerSharePercent: sharePercent,
		}
		err = s.store.Queries().InsertReferral(ctx, referral)
		if err == nil {
			return referral, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("failed to generate a unique referral code: %w", lastErr)
}

// Apply links a new account to a referral code. The link is permanent.
func (s *ReferralService) Apply(ctx context.Context, accountID uuid.UUID, code string) (*models.Referral, error) {
	referral, err := s.store.Queries().GetReferralByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referral.OwnerAccountID == accountID {
		return nil, fmt.Errorf("cannot apply own referral code: %w", models.ErrInvalidAmount)
	}
	var linked *models.Referral
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		account, err := qtx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.ReferredBy != nil {
			return fmt.Errorf("account already has a referrer: %w", models.ErrConflict)
		}
		rows, err := qtx.SetAccountReferredBy(ctx, accountID, referral.ID)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "link account to referral"); err != nil {
			return err
		}
		linked = &referral
		return s.audit.Write(ctx, qtx, "account", accountID, nil, "referral_applied", "", referral.Code, nil)
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}

// SetShare updates the fraction of the returned commission pool the code's
// owner keeps. Applies to fills settled after the change only.
func (s *ReferralService) SetShare(ctx context.Context, referralID uuid.UUID, sharePercent int32) (*models.Referral, error) {
	if sharePercent < 0 || sharePercent > 100 {
		return nil, fmt.Errorf("owner share must be within [0, 100]: %w", models.ErrInvalidAmount)
	}
	var referral models.Referral
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		current, err := qtx.GetReferral(ctx, referralID)
		if err != nil {
			return err
		}
		rows, err := qtx.UpdateReferralShare(ctx, referralID, sharePercent)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "update referral share"); err != nil {
			return err
		}
		referral = current
		referral.OwnerSharePercent = sharePercent
		return s.audit.Write(ctx, qtx, "referral", referralID, nil, "share_changed",
			fmt.Sprintf("%d", current.OwnerSharePercent), fmt.Sprintf("%d", sharePercent), nil)
	})
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// Get loads one referral by id.
func (s *ReferralService) Get(ctx context.Context, referralID uuid.UUID) (*models.Referral, error) {
	referral, err := s.store.Queries().GetReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// GetByCode resolves a referral code.
func (s *ReferralService) GetByCode(ctx context.Context, code string) (*models.Referral, error) {
	referral, err := s.store.Queries().GetReferralByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(buf), nil
}
