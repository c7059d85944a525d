package lifecycle

import "github.com/shopspring/decimal"

// FloorRatio is the share of the seller's minimum bid an opening price must reach.
var FloorRatio = decimal.RequireFromString("0.9")

// RequiredMinimum returns minimumBid × 0.9 rounded to cents.
func RequiredMinimum(minimumBid decimal.Decimal) decimal.Decimal {
	return minimumBid.Mul(FloorRatio).Round(2)
}

// ValidateCents rejects amounts with sub-cent precision; money columns
// store two decimals.
func ValidateCents(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return newValidationError(field, "must have at most two decimal places")
	}
	return nil
}

// ValidateOpeningPrice accepts a cent-exact price equal to or above the floor.
func ValidateOpeningPrice(openingPrice, minimumBid decimal.Decimal) error {
	if err := ValidateCents("opening_price", openingPrice); err != nil {
		return err
	}
	required := RequiredMinimum(minimumBid)
	if openingPrice.LessThan(required) {
		return &ValidationError{
			Field:           "opening_price",
			Message:         "required minimum " + required.StringFixed(2),
			RequiredMinimum: decimal.NewNullDecimal(required),
		}
	}
	return nil
}
