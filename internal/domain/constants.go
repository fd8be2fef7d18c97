package domain

// System account ID (must match the seed data).
const SystemAccountID = "11111111-1111-1111-1111-111111111111"

// SystemAssetSymbol is the deployment's reserved quote asset.
const SystemAssetSymbol = "IRT"

const (
	AccountTypeOrdinary = "ORDINARY"
	AccountTypeSystem   = "SYSTEM"
)

// Trx scopes. Every ledger entry carries exactly one.
const (
	ScopeTransfer   = "TRANSFER"
	ScopeCommission = "COMMISSION"
	ScopePrize      = "PRIZE"
	ScopeFee        = "FEE"
	ScopeDeposit    = "DEPOSIT"
	ScopeWithdraw   = "WITHDRAW"
)

// Prize scopes. The (account, scope, variant) unique key makes awarding idempotent.
const (
	PrizeScopeSignup       = "SIGNUP"
	PrizeScopeTradeVolume  = "TRADE_VOLUME"
	PrizeScopeLevelUp      = "LEVEL_UP"
	PrizeScopeReferredUser = "REFERRED_SIGNUP"
)

// ValidScope reports whether scope is a known trx scope.
func ValidScope(scope string) bool {
	switch scope {
	case ScopeTransfer, ScopeCommission, ScopePrize, ScopeFee, ScopeDeposit, ScopeWithdraw:
		return true
	}
	return false
}
