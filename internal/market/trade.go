package market

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ftnmarket/internal/models"
)

// newTrade builds one immutable ledger row for a fill. It is only reachable
// through Order.ChangeTradedAmount; the ledger has no update or delete path
// by design. The caller guarantees the order and user IDs exist.
func newTrade(typ models.OrderType, unitPrice decimal.Decimal, amount int64, orderID, userID uuid.UUID) (*models.Trade, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w, got %q", ErrTypeIllegal, typ)
	}
	if err := validateUnitPrice(unitPrice); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: trade amount must be positive", ErrAmountIllegal)
	}
	return &models.Trade{
		ID:          uuid.New(),
		TradeTime:   nowSecond(),
		Type:        typ,
		UnitPrice:   unitPrice,
		TradeAmount: amount,
		TotalPrice:  totalPrice(unitPrice, amount),
		OrderID:     orderID,
		UserID:      userID,
	}, nil
}
