// Package commission prices sales under a client's subscription tier.
//
// Pricing is a pure function of (tier, sale value). The fee is rounded half-up to
// the cent and the client's share absorbs the remainder, so fee + keeps always
// equals the sale value exactly.
package commission

import (
	"github.com/shopspring/decimal"

	dErrors "nexushq/pkg/domain-errors"
)

// centPlaces is the number of fractional digits money values carry.
const centPlaces = 2

// Split is the fee breakdown of a single sale.
type Split struct {
	Fee         decimal.Decimal
	ClientKeeps decimal.Decimal
}

// ValidateSaleValue checks that value is a positive amount with at most cent precision.
func ValidateSaleValue(value decimal.Decimal) error {
	if !value.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidSaleValue, "sale_value must be greater than zero")
	}
	if !value.Equal(value.Truncate(centPlaces)) {
		return dErrors.New(dErrors.CodeInvalidSaleValue, "sale_value must not have more than two decimal places")
	}
	return nil
}

// Price computes the fee split for a sale of value under tier.
func Price(tier Tier, value decimal.Decimal) (Split, error) {
	if !tier.IsValid() {
		return Split{}, dErrors.New(dErrors.CodeInvariantViolation, "tier is not valid")
	}
	if err := ValidateSaleValue(value); err != nil {
		return Split{}, err
	}
	// decimal.Round is half away from zero, which is half-up for positive values.
	fee := value.Mul(tier.Rate()).Round(centPlaces)
	return Split{
		Fee:         fee,
		ClientKeeps: value.Sub(fee),
	}, nil
}
