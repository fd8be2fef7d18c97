package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/asset"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/domain"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/observability"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fillGroupNS derives one stable group id per fill, so webhook replays map to
// the same correlation key.
var fillGroupNS = uuid.MustParse("7b1d9c6e-52a4-4d0b-9f3e-8c2a41d5b0e7")

// DistributionService fans commission and referral value out of a single
// triggering trade fill. All resulting trx rows and the referral_trx record
// commit atomically as one unit.
type DistributionService struct {
	store     QueryStore
	assets    *asset.Registry
	trx       *TrxService
	audit     *AuditService
	notifier  Notifier
	maxReturn decimal.Decimal // fraction of the gross commission returned to the pair
}

func NewDistributionService(store QueryStore, assets *asset.Registry, trx *TrxService, notifier Notifier, maxReturnPercent decimal.Decimal) *DistributionService {
	return &DistributionService{
		store:     store,
		assets:    assets,
		trx:       trx,
		audit:     NewAuditService(store),
		notifier:  notifier,
		maxReturn: maxReturnPercent,
	}
}

// Fill is the trade-fill event consumed from the external matching engine.
type Fill struct {
	FillID         uuid.UUID       `json:"fill_id"`
	Amount         decimal.Decimal `json:"amount"`
	Price          decimal.Decimal `json:"price"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
	TakerAccountID uuid.UUID       `json:"taker_account_id"`
	Symbol         string          `json:"symbol"` // quote asset the commission is denominated in
}

func (f Fill) validate() error {
	if f.FillID == uuid.Nil {
		return fmt.Errorf("fill_id is required: %w", models.ErrInvalidAmount)
	}
	if !f.Amount.IsPositive() || !f.Price.IsPositive() {
		return models.ErrInvalidAmount
	}
	if f.FeeRate.IsNegative() {
		return models.ErrInvalidAmount
	}
	return nil
}

// GroupID returns the correlation id shared by every row this fill produces.
func (f Fill) GroupID() uuid.UUID {
	return uuid.NewSHA1(fillGroupNS, f.FillID[:])
}

// SettleFill applies the commission split for one trade fill.
//
//	gross = fee_rate * amount * price
//	pool = gross * maxReturn
//	referrer_share = pool * owner_share_percent / 100
//	trader_share = pool - referrer_share
//
// Both shares leave the SYSTEM account as COMMISSION trxs; the residual
// commission stays with SYSTEM. Without a referral the whole commission stays
// with SYSTEM and no rows are written. Replays of the same fill are no-ops.
func (s *DistributionService) SettleFill(ctx context.Context, fill Fill) (*models.ReferralTrx, error) {
	if err := fill.validate(); err != nil {
		return nil, err
	}

	groupID := fill.GroupID()
	queries := s.store.Queries()

	if existing, err := queries.GetReferralTrxByGroup(ctx, groupID); err == nil {
		return &existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	taker, err := queries.GetAccount(ctx, fill.TakerAccountID)
	if err != nil {
		return nil, fmt.Errorf("load taker account: %w", err)
	}
	if taker.ReferredBy == nil {
		// No referral: the full commission stays with SYSTEM.
		return nil, nil
	}
	referral, err := queries.GetReferral(ctx, *taker.ReferredBy)
	if err != nil {
		return nil, fmt.Errorf("load referral: %w", err)
	}

	a, err := s.assets.Get(ctx, fill.Symbol)
	if err != nil {
		return nil, err
	}

	gross := fill.FeeRate.Mul(fill.Amount).Mul(fill.Price)
	pool := domain.TruncateToPrecision(gross.Mul(s.maxReturn), a.Precision)
	referrerShare := domain.TruncateToPrecision(
		pool.Mul(decimal.NewFromInt32(referral.OwnerSharePercent)).Div(decimal.NewFromInt(100)),
		a.Precision,
	)
	traderShare := pool.Sub(referrerShare)

	referrerUnits, err := unitsOrZero(referrerShare, a.Precision)
	if err != nil {
		return nil, err
	}
	traderUnits, err := unitsOrZero(traderShare, a.Precision)
	if err != nil {
		return nil, err
	}

	systemWallet, err := getOrCreateWallet(ctx, queries, uuid.MustParse(domain.SystemAccountID), a.ID)
	if err != nil {
		return nil, err
	}
	referrerWallet, err := getOrCreateWallet(ctx, queries, referral.OwnerAccountID, a.ID)
	if err != nil {
		return nil, err
	}
	traderWallet, err := getOrCreateWallet(ctx, queries, fill.TakerAccountID, a.ID)
	if err != nil {
		return nil, err
	}

	rt := &models.ReferralTrx{
		ID:             uuid.New(),
		ReferralID:     referral.ID,
		GroupID:        groupID,
		ReferrerAmount: referrerUnits,
		TraderAmount:   traderUnits,
	}

	err = WithRetry(ctx, s.trx.retryAttempts, s.trx.retryBackoff, func() error {
		return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
			// All wallets this fill will touch are locked up front in one
			// ascending pass. The per-posting locks below re-acquire rows the
			// transaction already holds, so the action's overall acquisition
			// order stays global and concurrent fills with overlapping
			// referrer/trader wallets cannot cycle.
			if _, err := lockWalletsInOrder(ctx, qtx, systemWallet.ID, referrerWallet.ID, traderWallet.ID); err != nil {
				return err
			}

			inserted, err := qtx.InsertReferralTrxIfAbsent(ctx, rt)
			if err != nil {
				return err
			}
			if !inserted {
				// Lost the race to a concurrent settlement of the same fill.
				existing, err := qtx.GetReferralTrxByGroup(ctx, groupID)
				if err != nil {
					return err
				}
				*rt = existing
				return nil
			}

			if referrerUnits > 0 {
				if _, err := s.trx.PostInTx(ctx, qtx, TrxCmd{
					GroupID:          groupID,
					SenderWalletID:   systemWallet.ID,
					ReceiverWalletID: referrerWallet.ID,
					Amount:           referrerShare,
					Scope:            domain.ScopeCommission,
				}); err != nil {
					return fmt.Errorf("post referrer commission: %w", err)
				}
			}
			if traderUnits > 0 {
				if _, err := s.trx.PostInTx(ctx, qtx, TrxCmd{
					GroupID:          groupID,
					SenderWalletID:   systemWallet.ID,
					ReceiverWalletID: traderWallet.ID,
					Amount:           traderShare,
					Scope:            domain.ScopeCommission,
				}); err != nil {
					return fmt.Errorf("post trader commission: %w", err)
				}
			}

			metadata, _ := json.Marshal(map[string]any{
				"fill_id":         fill.FillID,
				"referrer_amount": referrerUnits,
				"trader_amount":   traderUnits,
			})
			return s.audit.Write(ctx, qtx, "referral_trx", rt.ID, nil, "fill_settled", "", "SETTLED", metadata)
		})
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementFillSettled()
	zap.L().Info("fill commission settled",
		zap.String("fill_id", fill.FillID.String()),
		zap.String("group_id", groupID.String()),
		zap.Int64("referrer_amount", referrerUnits),
		zap.Int64("trader_amount", traderUnits),
	)
	if s.notifier != nil {
		s.notifier.FillSettled(ctx, *rt)
	}
	return rt, nil
}

// unitsOrZero converts a non-negative share to base units; zero shares stay
// zero rather than failing the positive-amount check.
func unitsOrZero(amount decimal.Decimal, precision int32) (int64, error) {
	if amount.IsZero() {
		return 0, nil
	}
	return domain.ToUnits(amount, precision)
}
