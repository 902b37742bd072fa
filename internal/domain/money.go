package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits stored for money columns
const AmountScale = 4

// ValidateAmount rejects non-positive amounts and amounts finer than the stored scale
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Errorf(KindInvalidAmount, "amount must be greater than 0, got %s", amount.String())
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return Errorf(KindInvalidAmount, "amount %s has more than %d decimal places", amount.String(), AmountScale)
	}
	return nil
}
