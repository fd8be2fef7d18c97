package domain

import (
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/shopspring/decimal"
)

// Amounts are stored as BIGINT base units (10^precision per whole unit) to avoid
// floating point errors. Decimals cross the API boundary and are converted here.

// ToUnits converts a decimal amount to base units for an asset with the given
// precision. The amount must be positive and carry no more fractional digits
// than the asset allows.
func ToUnits(amount decimal.Decimal, precision int32) (int64, error) {
	if !amount.IsPositive() {
		return 0, models.ErrInvalidAmount
	}
	scaled := amount.Shift(precision)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, models.ErrInvalidAmount
	}
	if !scaled.BigInt().IsInt64() {
		return 0, models.ErrInvalidAmount
	}
	return scaled.IntPart(), nil
}

// FromUnits converts base units back to a decimal amount.
func FromUnits(units int64, precision int32) decimal.Decimal {
	return decimal.NewFromInt(units).Shift(-precision)
}

// TruncateToPrecision drops fractional digits beyond the asset's precision.
// Used when derived amounts (commission shares) are finer than the asset allows.
func TruncateToPrecision(amount decimal.Decimal, precision int32) decimal.Decimal {
	return amount.Truncate(precision)
}
