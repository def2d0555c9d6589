package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ftnmarket/internal/models"
	"ftnmarket/internal/record"
)

// Storage field names of the order aggregate. The ID is immutable and not
// part of the writable schema.
const (
	colStatus          = "status"
	colType            = "order_type"
	colPublishTime     = "publish_time"
	colFinishTime      = "finish_time"
	colDeleteTime      = "delete_time"
	colEffectiveHours  = "effective_hours"
	colExpireTime      = "expire_time"
	colUnitPrice       = "unit_price"
	colTotalPrice      = "total_price"
	colTotalAmount     = "total_amount"
	colTradedAmount    = "traded_amount"
	colRemainingAmount = "remaining_amount"
	colUserID          = "user_id"
	colUserName        = "user_name"
)

var orderSchema = record.NewSchema("order",
	colStatus, colType, colPublishTime, colFinishTime, colDeleteTime,
	colEffectiveHours, colExpireTime, colUnitPrice, colTotalPrice,
	colTotalAmount, colTradedAmount, colRemainingAmount, colUserID, colUserName,
)

// Order is a loaded order aggregate. Fields are mutated only through its
// methods; every mutation is tracked and flushed as a partial update.
type Order struct {
	svc   *Service
	row   models.Order
	dirty *record.Tracker
}

// ID returns the order's immutable identity.
func (o *Order) ID() uuid.UUID { return o.row.ID }

// Data returns a copy of the order's current state.
func (o *Order) Data() models.Order { return o.row }

// Equal is identity equality: two loaded instances are the same order when
// their IDs match, regardless of field state.
func (o *Order) Equal(other *Order) bool {
	return other != nil && o.row.ID == other.row.ID
}

// ChangeUnitPrice re-validates and updates the unit price and recomputes the
// derived total price. It intentionally does not require TRADING status: the
// owner may reprice mid-fill.
func (o *Order) ChangeUnitPrice(ctx context.Context, p decimal.Decimal) error {
	if err := validateUnitPrice(p); err != nil {
		return err
	}
	o.row.UnitPrice = p
	o.row.TotalPrice = totalPrice(p, o.row.TotalAmount)
	if err := o.dirty.Mark(colUnitPrice, colTotalPrice); err != nil {
		return err
	}
	return o.Save(ctx)
}

// ChangeTradedAmount records a fill: the traded amount must strictly
// increase and never exceed the total. The delta becomes one trade row.
// Reaching the total transitions the order to FINISHED and stamps
// finish_time in the same persistence write as the amounts.
func (o *Order) ChangeTradedAmount(ctx context.Context, newTraded int64) error {
	if newTraded < 0 {
		return fmt.Errorf("%w: traded amount must not be negative", ErrAmountIllegal)
	}
	if newTraded > o.row.TotalAmount {
		return fmt.Errorf("%w: traded amount must not exceed the total", ErrAmountIllegal)
	}
	delta := newTraded - o.row.TradedAmount
	if delta <= 0 {
		return fmt.Errorf("%w: traded amount must increase", ErrAmountIllegal)
	}

	trade, err := newTrade(o.row.Type, o.row.UnitPrice, delta, o.row.ID, o.row.UserID)
	if err != nil {
		return err
	}

	o.row.TradedAmount = newTraded
	o.row.RemainingAmount = o.row.TotalAmount - newTraded
	if err := o.dirty.Mark(colTradedAmount, colRemainingAmount); err != nil {
		return err
	}
	if o.row.RemainingAmount == 0 {
		now := nowSecond()
		o.row.Status = models.StatusFinished
		o.row.FinishTime = &now
		if err := o.dirty.Mark(colStatus, colFinishTime); err != nil {
			return err
		}
	}

	set, err := o.values(o.dirty.Dirty())
	if err != nil {
		return err
	}
	if err := o.svc.store.ApplyFill(ctx, o.row.ID, set, trade); err != nil {
		return fmt.Errorf("apply fill: %w", err)
	}
	o.dirty.Clear()
	return nil
}

// SetAllTraded marks the whole remaining amount as traded.
func (o *Order) SetAllTraded(ctx context.Context) error {
	return o.ChangeTradedAmount(ctx, o.row.TotalAmount)
}

// Delete transitions a TRADING order to DELETED and stamps delete_time.
// The row is kept; the status records the history.
func (o *Order) Delete(ctx context.Context) error {
	if o.row.Status != models.StatusTrading {
		return fmt.Errorf("%w: cannot delete a %s order", ErrOrderStatus, o.row.Status)
	}
	now := nowSecond()
	o.row.Status = models.StatusDeleted
	o.row.DeleteTime = &now
	if err := o.dirty.Mark(colStatus, colDeleteTime); err != nil {
		return err
	}
	return o.Save(ctx)
}

// Expire transitions a TRADING order to EXPIRED. expire_time is overwritten
// with the actual expiry moment; the originally scheduled deadline stays
// derivable from publish_time and effective_hours.
func (o *Order) Expire(ctx context.Context) error {
	if o.row.Status != models.StatusTrading {
		return fmt.Errorf("%w: cannot expire a %s order", ErrOrderStatus, o.row.Status)
	}
	o.row.Status = models.StatusExpired
	o.row.ExpireTime = nowSecond()
	if err := o.dirty.Mark(colStatus, colExpireTime); err != nil {
		return err
	}
	return o.Save(ctx)
}

// Ban is the administrative transition to BANNED, valid from TRADING only.
func (o *Order) Ban(ctx context.Context) error {
	if o.row.Status != models.StatusTrading {
		return fmt.Errorf("%w: cannot ban a %s order", ErrOrderStatus, o.row.Status)
	}
	o.row.Status = models.StatusBanned
	if err := o.dirty.Mark(colStatus); err != nil {
		return err
	}
	return o.Save(ctx)
}

// Save flushes every dirty field as one partial update and clears the
// dirty set.
func (o *Order) Save(ctx context.Context) error {
	set, err := o.values(o.dirty.Dirty())
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	if err := o.svc.store.UpdateOrder(ctx, o.row.ID, set); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	o.dirty.Clear()
	return nil
}

// SaveOnly flushes exactly the given dirty fields, leaving other pending
// changes dirty.
func (o *Order) SaveOnly(ctx context.Context, fields ...string) error {
	taken, err := o.dirty.TakeOnly(fields...)
	if err != nil {
		return err
	}
	set, err := o.values(taken)
	if err != nil {
		return err
	}
	if err := o.svc.store.UpdateOrder(ctx, o.row.ID, set); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// SaveAll rewrites every schema field regardless of dirty state.
func (o *Order) SaveAll(ctx context.Context) error {
	set, err := o.values(orderSchema.Fields())
	if err != nil {
		return err
	}
	if err := o.svc.store.UpdateOrder(ctx, o.row.ID, set); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	o.dirty.Clear()
	return nil
}

// Remove deletes the row from storage unconditionally. The logical DELETED
// state used by the lifecycle is a status value, not this.
func (o *Order) Remove(ctx context.Context) error {
	return o.svc.store.DeleteOrder(ctx, o.row.ID)
}

func (o *Order) values(fields []string) (map[string]any, error) {
	set := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := o.value(f)
		if err != nil {
			return nil, err
		}
		set[f] = v
	}
	return set, nil
}

func (o *Order) value(field string) (any, error) {
	switch field {
	case colStatus:
		return o.row.Status, nil
	case colType:
		return o.row.Type, nil
	case colPublishTime:
		return o.row.PublishTime, nil
	case colFinishTime:
		return o.row.FinishTime, nil
	case colDeleteTime:
		return o.row.DeleteTime, nil
	case colEffectiveHours:
		return o.row.EffectiveHours, nil
	case colExpireTime:
		return o.row.ExpireTime, nil
	case colUnitPrice:
		return o.row.UnitPrice, nil
	case colTotalPrice:
		return o.row.TotalPrice, nil
	case colTotalAmount:
		return o.row.TotalAmount, nil
	case colTradedAmount:
		return o.row.TradedAmount, nil
	case colRemainingAmount:
		return o.row.RemainingAmount, nil
	case colUserID:
		return o.row.UserID, nil
	case colUserName:
		return o.row.UserName, nil
	}
	return nil, fmt.Errorf("order.%s: %w", field, record.ErrSchemaViolation)
}
