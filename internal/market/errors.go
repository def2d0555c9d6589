package market

import "errors"

// Validation failures are deterministic rejections of caller input and are
// returned unchanged to the caller; they never mutate the aggregate.
var (
	ErrTypeIllegal    = errors.New("order type must be buy or sell")
	ErrPriceIllegal   = errors.New("unit price missing, out of range or too precise")
	ErrAmountIllegal  = errors.New("amount missing, out of range or not increasing")
	ErrDuplicateOrder = errors.New("user already has an active order of this type")
	ErrOrderStatus    = errors.New("operation not allowed in current order status")
	ErrOrderNotFound  = errors.New("order not found")
	ErrTradeNotFound  = errors.New("trade not found")
)
