package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order. Trading is the only
// mutable state; every other status is terminal.
type OrderStatus int16

const (
	StatusTrading OrderStatus = iota
	StatusFinished
	StatusDeleted
	StatusExpired
	StatusBanned
)

func (s OrderStatus) String() string {
	switch s {
	case StatusTrading:
		return "TRADING"
	case StatusFinished:
		return "FINISHED"
	case StatusDeleted:
		return "DELETED"
	case StatusExpired:
		return "EXPIRED"
	case StatusBanned:
		return "BANNED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition may leave the status.
func (s OrderStatus) Terminal() bool {
	return s != StatusTrading
}

// OrderType is the side of an order or trade.
type OrderType string

const (
	OrderBuy  OrderType = "buy"
	OrderSell OrderType = "sell"
)

func (t OrderType) Valid() bool {
	return t == OrderBuy || t == OrderSell
}

// Order is the stored shape of a buy or sell intent. The owner's display
// name is denormalized at publish time.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	Status          OrderStatus     `json:"status"`
	Type            OrderType       `json:"type"`
	PublishTime     time.Time       `json:"publish_time"`
	FinishTime      *time.Time      `json:"finish_time,omitempty"`
	DeleteTime      *time.Time      `json:"delete_time,omitempty"`
	EffectiveHours  int             `json:"effective_hours"`
	ExpireTime      time.Time       `json:"expire_time"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	TotalAmount     int64           `json:"total_amount"`
	TradedAmount    int64           `json:"traded_amount"`
	RemainingAmount int64           `json:"remaining_amount"`
	UserID          uuid.UUID       `json:"user_id"`
	UserName        string          `json:"user_name"`
}

// Trade is one recorded fill of an order. Rows are append-only.
type Trade struct {
	ID          uuid.UUID       `json:"id"`
	TradeTime   time.Time       `json:"trade_time"`
	Type        OrderType       `json:"type"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TradeAmount int64           `json:"trade_amount"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
}

// Token is a server-side session credential with sliding expiry.
type Token struct {
	ID         uuid.UUID
	CreateTime time.Time
	ExpireTime time.Time
	UserID     uuid.UUID
	Value      string
}

// User is a registered account. ProfileURL/ProfileName hold the optional
// external profile binding; ProfileURL is unique across users when present.
type User struct {
	ID                uuid.UUID  `json:"id"`
	SignupTime        time.Time  `json:"signup_time"`
	LastActiveTime    time.Time  `json:"last_active_time"`
	Name              string     `json:"name"`
	EncryptedPassword string     `json:"-"`
	AdminLevel        int        `json:"admin_level"`
	UserLevel         int        `json:"user_level"`
	ProfileURL        *string    `json:"profile_url,omitempty"`
	ProfileName       *string    `json:"profile_name,omitempty"`
}

// TradeBucket is one point of a bucketed trade series.
type TradeBucket struct {
	Bucket   time.Time       `json:"bucket"`
	Amount   int64           `json:"amount"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}
