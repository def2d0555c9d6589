package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price and amount bounds for the single traded token.
var (
	priceMin = decimal.RequireFromString("0.05")
	priceMax = decimal.RequireFromString("0.2")
)

const maxTotalAmount = int64(100_000_000)

// validateUnitPrice enforces the (0.05, 0.2] range and the three-decimal
// precision limit. The zero value doubles as "missing".
func validateUnitPrice(p decimal.Decimal) error {
	if p.IsZero() {
		return fmt.Errorf("%w: unit price is required", ErrPriceIllegal)
	}
	if !p.GreaterThan(priceMin) || p.GreaterThan(priceMax) {
		return fmt.Errorf("%w: unit price must be in (%s, %s]", ErrPriceIllegal, priceMin, priceMax)
	}
	if !p.Equal(p.Round(3)) {
		return fmt.Errorf("%w: unit price supports at most 3 decimal places", ErrPriceIllegal)
	}
	return nil
}

func validateTotalAmount(n int64) error {
	if n <= 0 || n > maxTotalAmount {
		return fmt.Errorf("%w: total amount must be in (0, %d]", ErrAmountIllegal, maxTotalAmount)
	}
	return nil
}
