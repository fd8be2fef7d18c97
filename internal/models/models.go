package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset describes a tradeable currency or token. Immutable at runtime except
// for administrative edits, which invalidate the registry cache.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"`
	Precision int32     `json:"precision"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Account identifies a party. Exactly one SYSTEM account exists per deployment
// and acts as the counterparty for minting, fees and prizes.
type Account struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"` // "ORDINARY" or "SYSTEM"
	ReferredBy *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Wallet holds the materialized balance of one asset for one account.
// Balance is the cached signed sum of all trx rows touching the wallet and is
// mutated exclusively by the trx engine.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	AssetID   uuid.UUID `json:"asset_id"`
	Balance   int64     `json:"balance"` // base units
	CreatedAt time.Time `json:"created_at"`
}

// Trx is an immutable double-entry ledger record: it decreases the sender's
// balance and increases the receiver's by the same amount, atomically.
type Trx struct {
	ID               uuid.UUID `json:"id"`
	GroupID          uuid.UUID `json:"group_id"`
	SenderWalletID   uuid.UUID `json:"sender_wallet_id"`
	ReceiverWalletID uuid.UUID `json:"receiver_wallet_id"`
	Amount           int64     `json:"amount"` // base units, always positive
	Scope            string    `json:"scope"`
	CreatedAt        time.Time `json:"created_at"`
}

// BalanceLock reserves part of a wallet's balance for a pending order or
// withdrawal. While active it is excluded from the available balance; the
// ledger balance itself is unaffected.
type BalanceLock struct {
	ID          uuid.UUID  `json:"id"`
	WalletID    uuid.UUID  `json:"wallet_id"`
	Amount      int64      `json:"amount"` // base units
	ReleaseDate time.Time  `json:"release_date"`
	Freed       bool       `json:"freed"`
	CreatedAt   time.Time  `json:"created_at"`
	FreedAt     *time.Time `json:"freed_at,omitempty"`
}

// Active reports whether the lock still reduces the available balance.
func (l BalanceLock) Active(now time.Time) bool {
	return !l.Freed && l.ReleaseDate.After(now)
}

// Prize records a one-time achievement award. The (account, scope, variant)
// unique key makes awarding idempotent; fake prizes never move real value.
type Prize struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Scope     string    `json:"scope"`
	Variant   string    `json:"variant,omitempty"`
	Amount    int64     `json:"amount"` // base units
	AssetID   uuid.UUID `json:"asset_id"`
	Fake      bool      `json:"fake"`
	Redeemed  bool      `json:"redeemed"`
	CreatedAt time.Time `json:"created_at"`
}

// Referral links an owner account to a shareable code and the percentage of
// the returned commission pool the owner keeps.
type Referral struct {
	ID                uuid.UUID `json:"id"`
	OwnerAccountID    uuid.UUID `json:"owner_account_id"`
	Code              string    `json:"code"`
	OwnerSharePercent int32     `json:"owner_share_percent"` // [0, 100]
	CreatedAt         time.Time `json:"created_at"`
}

// ReferralTrx records the commission split of a single trade fill.
type ReferralTrx struct {
	ID             uuid.UUID `json:"id"`
	ReferralID     uuid.UUID `json:"referral_id"`
	GroupID        uuid.UUID `json:"group_id"`
	ReferrerAmount int64     `json:"referrer_amount"` // base units
	TraderAmount   int64     `json:"trader_amount"`   // base units
	CreatedAt      time.Time `json:"created_at"`
}
