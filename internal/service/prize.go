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

// prizeGroupNS derives one stable ledger group id per prize row, so a crash
// between the prize insert and the trx insert cannot double-credit on retry.
var prizeGroupNS = uuid.MustParse("3f0a8c1d-9e47-4b6a-8d25-1c7e6b9a04f2")

// PrizeService awards one-time achievement prizes. Awarding is idempotent on
// (account, scope, variant): the first caller creates the prize and credits
// the wallet, every later caller gets the existing row back untouched.
type PrizeService struct {
	store    QueryStore
	assets   *asset.Registry
	trx      *TrxService
	audit    *AuditService
	notifier Notifier
}

func NewPrizeService(store QueryStore, assets *asset.Registry, trx *TrxService, notifier Notifier) *PrizeService {
	return &PrizeService{
		store:    store,
		assets:   assets,
		trx:      trx,
		audit:    NewAuditService(store),
		notifier: notifier,
	}
}

// AwardCmd describes one prize to award.
type AwardCmd struct {
	AccountID uuid.UUID       `json:"account_id"`
	Scope     string          `json:"scope"`
	Variant   string          `json:"variant"`
	Amount    decimal.Decimal `json:"amount"`
	Symbol    string          `json:"symbol"`
	Fake      bool            `json:"fake"`
}

func (c AwardCmd) validate() error {
	switch c.Scope {
	case domain.PrizeScopeSignup, domain.PrizeScopeTradeVolume, domain.PrizeScopeLevelUp, domain.PrizeScopeReferredUser:
	default:
		return fmt.Errorf("unknown prize scope %q: %w", c.Scope, models.ErrInvalidAmount)
	}
	if !c.Amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	return nil
}

// Award performs the idempotent get-or-create. When the prize is new and not
// fake, a single creator-only PRIZE trx from the SYSTEM wallet credits the
// account in the same commit. Concurrent awards of the same key settle on the
// unique index: exactly one caller inserts, the rest read the winner's row.
func (s *PrizeService) Award(ctx context.Context, cmd AwardCmd) (*models.Prize, bool, error) {
	if err := cmd.validate(); err != nil {
		return nil, false, err
	}

	a, err := s.assets.Get(ctx, cmd.Symbol)
	if err != nil {
		return nil, false, err
	}
	units, err := domain.ToUnits(cmd.Amount, a.Precision)
	if err != nil {
		return nil, false, err
	}

	prize := &models.Prize{
		ID:        uuid.New(),
		AccountID: cmd.AccountID,
		Scope:     cmd.Scope,
		Variant:   cmd.Variant,
		Amount:    units,
		AssetID:   a.ID,
		Fake:      cmd.Fake,
	}

	var awarded bool
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		inserted, err := qtx.InsertPrizeIfAbsent(ctx, prize)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := qtx.GetPrizeByKey(ctx, cmd.AccountID, cmd.Scope, cmd.Variant)
			if err != nil {
				return err
			}
			*prize = existing
			return nil
		}
		awarded = true

		if !prize.Fake {
			systemWallet, err := getOrCreateWallet(ctx, qtx, uuid.MustParse(domain.SystemAccountID), a.ID)
			if err != nil {
				return err
			}
			accountWallet, err := getOrCreateWallet(ctx, qtx, cmd.AccountID, a.ID)
			if err != nil {
				return err
			}
			if _, err := s.trx.PostInTx(ctx, qtx, TrxCmd{
				GroupID:          uuid.NewSHA1(prizeGroupNS, prize.ID[:]),
				SenderWalletID:   systemWallet.ID,
				ReceiverWalletID: accountWallet.ID,
				Amount:           cmd.Amount,
				Scope:            domain.ScopePrize,
			}); err != nil {
				return fmt.Errorf("post prize trx: %w", err)
			}
		}

		metadata, _ := json.Marshal(map[string]any{
			"scope":   prize.Scope,
			"variant": prize.Variant,
			"amount":  prize.Amount,
			"fake":    prize.Fake,
		})
		return s.audit.Write(ctx, qtx, "prize", prize.ID, nil, "awarded", "", "AWARDED", metadata)
	})
	if err != nil {
		return nil, false, err
	}

	if awarded {
		observability.IncrementPrizeAwarded(prize.Scope)
		zap.L().Info("prize awarded",
			zap.String("prize_id", prize.ID.String()),
			zap.String("account_id", prize.AccountID.String()),
			zap.String("scope", prize.Scope),
			zap.Bool("fake", prize.Fake),
		)
		if s.notifier != nil {
			s.notifier.PrizeAwarded(ctx, *prize)
		}
	}
	return prize, awarded, nil
}

// AwardReferredSignup awards the referred-signup prize to the referrer of a
// newly registered account. The referred account's id is the variant, so one
// referrer collects one prize per distinct signup. Accounts without a
// referrer produce no prize.
func (s *PrizeService) AwardReferredSignup(ctx context.Context, referredAccountID uuid.UUID, amount decimal.Decimal, symbol string) (*models.Prize, bool, error) {
	account, err := s.store.Queries().GetAccount(ctx, referredAccountID)
	if err != nil {
		return nil, false, err
	}
	if account.ReferredBy == nil {
		return nil, false, nil
	}
	referral, err := s.store.Queries().GetReferral(ctx, *account.ReferredBy)
	if err != nil {
		return nil, false, err
	}
	return s.Award(ctx, AwardCmd{
		AccountID: referral.OwnerAccountID,
		Scope:     domain.PrizeScopeReferredUser,
		Variant:   referredAccountID.String(),
		Amount:    amount,
		Symbol:    symbol,
	})
}

// Redeem marks a prize as claimed in the product sense. The credit already
// happened at award time; redemption is a forward-only flag and repeating it
// is a no-op.
func (s *PrizeService) Redeem(ctx context.Context, prizeID uuid.UUID) (*models.Prize, error) {
	var prize models.Prize
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		p, err := qtx.GetPrizeForUpdate(ctx, prizeID)
		if err != nil {
			return err
		}
		if p.Redeemed {
			prize = p
			return nil
		}
		rows, err := qtx.MarkPrizeRedeemed(ctx, prizeID)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "mark prize redeemed"); err != nil {
			return err
		}
		p.Redeemed = true
		prize = p
		return s.audit.Write(ctx, qtx, "prize", p.ID, nil, "redeemed", "AWARDED", "REDEEMED", nil)
	})
	if err != nil {
		return nil, err
	}
	return &prize, nil
}

// Get loads one prize by id.
func (s *PrizeService) Get(ctx context.Context, prizeID uuid.UUID) (*models.Prize, error) {
	prize, err := s.store.Queries().GetPrize(ctx, prizeID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &prize, nil
}
