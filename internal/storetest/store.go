// Package storetest provides an in-memory implementation of the storage
// contracts so aggregate and service tests run without a database.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
)

// Store keeps every row in maps guarded by one mutex. It implements both
// market.Store and auth.Store.
type Store struct {
	mu     sync.Mutex
	orders map[uuid.UUID]models.Order
	trades map[uuid.UUID]models.Trade
	users  map[uuid.UUID]models.User
	tokens map[uuid.UUID]models.Token

	// tradeSeq records insertion order; trade times carry second precision
	// only, so listings need it as a tie-break.
	tradeSeq map[uuid.UUID]int64
	nextSeq  int64

	// FailNext makes the next call return this error, for exercising
	// storage-failure paths.
	FailNext error
}

func New() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]models.Order),
		trades:   make(map[uuid.UUID]models.Trade),
		users:    make(map[uuid.UUID]models.User),
		tokens:   make(map[uuid.UUID]models.Token),
		tradeSeq: make(map[uuid.UUID]int64),
	}
}

func (s *Store) fail() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// --- orders ---

func (s *Store) InsertOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("duplicate order id %s", o.ID)
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *Store) FindTradingOrder(_ context.Context, userID uuid.UUID, typ models.OrderType) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, o := range s.orders {
		if o.UserID == userID && o.Type == typ && o.Status == models.StatusTrading {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateOrder(_ context.Context, id uuid.UUID, set map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	return s.applyOrderSet(id, set)
}

func (s *Store) applyOrderSet(id uuid.UUID, set map[string]any) error {
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	for col, v := range set {
		switch col {
		case "status":
			o.Status = v.(models.OrderStatus)
		case "order_type":
			o.Type = v.(models.OrderType)
		case "publish_time":
			o.PublishTime = v.(time.Time)
		case "finish_time":
			o.FinishTime = v.(*time.Time)
		case "delete_time":
			o.DeleteTime = v.(*time.Time)
		case "effective_hours":
			o.EffectiveHours = v.(int)
		case "expire_time":
			o.ExpireTime = v.(time.Time)
		case "unit_price":
			o.UnitPrice = v.(decimal.Decimal)
		case "total_price":
			o.TotalPrice = v.(decimal.Decimal)
		case "total_amount":
			o.TotalAmount = v.(int64)
		case "traded_amount":
			o.TradedAmount = v.(int64)
		case "remaining_amount":
			o.RemainingAmount = v.(int64)
		case "user_id":
			o.UserID = v.(uuid.UUID)
		case "user_name":
			o.UserName = v.(string)
		default:
			return fmt.Errorf("unknown order column %q", col)
		}
	}
	s.orders[id] = o
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) ApplyFill(_ context.Context, orderID uuid.UUID, set map[string]any, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if err := s.applyOrderSet(orderID, set); err != nil {
		return err
	}
	s.trades[trade.ID] = *trade
	s.nextSeq++
	s.tradeSeq[trade.ID] = s.nextSeq
	return nil
}

func (s *Store) ListActiveOrders(_ context.Context, typ string, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.Status != models.StatusTrading {
			continue
		}
		if typ != market.FilterAll && string(o.Type) != typ {
			continue
		}
		out = append(out, o)
	}
	switch typ {
	case string(models.OrderBuy):
		sort.Slice(out, func(i, j int) bool { return out[i].UnitPrice.GreaterThan(out[j].UnitPrice) })
	case string(models.OrderSell):
		sort.Slice(out, func(i, j int) bool { return out[i].UnitPrice.LessThan(out[j].UnitPrice) })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].PublishTime.After(out[j].PublishTime) })
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListUserOrders(_ context.Context, userID uuid.UUID, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishTime.After(out[j].PublishTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListTradingOrders(_ context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.Status == models.StatusTrading {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpireTime.Before(out[j].ExpireTime) })
	return out, nil
}

// --- trades ---

func (s *Store) GetTrade(_ context.Context, id uuid.UUID) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	t, ok := s.trades[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) ListOrderTrades(_ context.Context, orderID uuid.UUID) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Trade
	for _, t := range s.trades {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.tradeSeq[out[i].ID] < s.tradeSeq[out[j].ID] })
	return out, nil
}

func (s *Store) ListUserTrades(_ context.Context, userID uuid.UUID, limit int) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Trade
	for _, t := range s.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.tradeSeq[out[i].ID] > s.tradeSeq[out[j].ID] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- projections ---

func (s *Store) CountOrders(_ context.Context, status models.OrderStatus, typ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range s.orders {
		if o.Status == status && (typ == market.FilterAll || string(o.Type) == typ) {
			n++
		}
	}
	return n, nil
}

func (s *Store) AverageActivePrice(_ context.Context, typ models.OrderType) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	var n int64
	for _, o := range s.orders {
		if o.Status == models.StatusTrading && o.Type == typ {
			sum = sum.Add(o.UnitPrice)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, nil
	}
	return sum.Div(decimal.NewFromInt(n)), nil
}

func (s *Store) TotalTradedAmount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range s.orders {
		n += o.TradedAmount
	}
	return n, nil
}

func (s *Store) TotalTradedPrice(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range s.trades {
		sum = sum.Add(t.TotalPrice)
	}
	return sum, nil
}

func (s *Store) CountFinishedSince(_ context.Context, typ string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range s.orders {
		if o.Status != models.StatusFinished || o.FinishTime == nil || o.FinishTime.Before(since) {
			continue
		}
		if typ == market.FilterAll || string(o.Type) == typ {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountDeletedSince(_ context.Context, typ string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, o := range s.orders {
		if o.Status != models.StatusDeleted || o.DeleteTime == nil || o.DeleteTime.Before(since) {
			continue
		}
		if typ == market.FilterAll || string(o.Type) == typ {
			n++
		}
	}
	return n, nil
}

func (s *Store) tradesSince(typ models.OrderType, since time.Time) []models.Trade {
	var out []models.Trade
	for _, t := range s.trades {
		if t.Type == typ && !t.TradeTime.Before(since) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) CountTradesSince(_ context.Context, typ models.OrderType, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	return int64(len(s.tradesSince(typ, since))), nil
}

func (s *Store) SumTradeAmountSince(_ context.Context, typ models.OrderType, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range s.tradesSince(typ, since) {
		n += t.TradeAmount
	}
	return n, nil
}

func (s *Store) SumTradePriceSince(_ context.Context, typ models.OrderType, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range s.tradesSince(typ, since) {
		sum = sum.Add(t.TotalPrice)
	}
	return sum, nil
}

func (s *Store) AvgTradePriceSince(_ context.Context, typ models.OrderType, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return decimal.Zero, err
	}
	trades := s.tradesSince(typ, since)
	if len(trades) == 0 {
		return decimal.Zero, nil
	}
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.UnitPrice)
	}
	return sum.Div(decimal.NewFromInt(int64(len(trades)))), nil
}

func (s *Store) TradeSeries(_ context.Context, typ models.OrderType, bucket string, since time.Time) ([]models.TradeBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var trunc time.Duration
	switch bucket {
	case "hour":
		trunc = time.Hour
	case "day":
		trunc = 24 * time.Hour
	default:
		return nil, fmt.Errorf("unknown series bucket %q", bucket)
	}

	type acc struct {
		amount int64
		sum    decimal.Decimal
		n      int64
	}
	buckets := make(map[time.Time]*acc)
	for _, t := range s.tradesSince(typ, since) {
		key := t.TradeTime.Truncate(trunc)
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
		}
		a.amount += t.TradeAmount
		a.sum = a.sum.Add(t.UnitPrice)
		a.n++
	}

	var series []models.TradeBucket
	for key, a := range buckets {
		series = append(series, models.TradeBucket{
			Bucket:   key,
			Amount:   a.amount,
			AvgPrice: a.sum.Div(decimal.NewFromInt(a.n)),
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Bucket.Before(series[j].Bucket) })
	return series, nil
}

// --- users ---

func (s *Store) InsertUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("duplicate user id %s", u.ID)
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) FindUserByName(_ context.Context, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.Name == name {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) CountUsersByName(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, u := range s.users {
		if u.Name == name {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUsersByProfileURL(_ context.Context, url string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, u := range s.users {
		if u.ProfileURL != nil && *u.ProfileURL == url {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateUser(_ context.Context, id uuid.UUID, set map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	for col, v := range set {
		switch col {
		case "signup_time":
			u.SignupTime = v.(time.Time)
		case "last_active_time":
			u.LastActiveTime = v.(time.Time)
		case "user_name":
			u.Name = v.(string)
		case "password":
			u.EncryptedPassword = v.(string)
		case "admin_level":
			u.AdminLevel = v.(int)
		case "user_level":
			u.UserLevel = v.(int)
		case "profile_url":
			u.ProfileURL = v.(*string)
		case "profile_name":
			u.ProfileName = v.(*string)
		default:
			return fmt.Errorf("unknown user column %q", col)
		}
	}
	s.users[id] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	delete(s.users, id)
	return nil
}

// --- tokens ---

func (s *Store) InsertToken(_ context.Context, t *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	if _, ok := s.tokens[t.ID]; ok {
		return fmt.Errorf("duplicate token id %s", t.ID)
	}
	s.tokens[t.ID] = *t
	return nil
}

func (s *Store) FindTokenByValue(_ context.Context, value string) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, t := range s.tokens {
		if t.Value == value {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (s *Store) ListUserTokens(_ context.Context, userID uuid.UUID) ([]models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Token
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out, nil
}

func (s *Store) UpdateToken(_ context.Context, id uuid.UUID, set map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	t, ok := s.tokens[id]
	if !ok {
		return fmt.Errorf("token %s not found", id)
	}
	for col, v := range set {
		switch col {
		case "create_time":
			t.CreateTime = v.(time.Time)
		case "expire_time":
			t.ExpireTime = v.(time.Time)
		case "user_id":
			t.UserID = v.(uuid.UUID)
		case "token":
			t.Value = v.(string)
		default:
			return fmt.Errorf("unknown token column %q", col)
		}
	}
	s.tokens[id] = t
	return nil
}

func (s *Store) DeleteToken(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	delete(s.tokens, id)
	return nil
}

func (s *Store) DeleteExpiredTokens(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range s.tokens {
		if !t.ExpireTime.After(before) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// TokenCount reports how many sessions currently exist, for test assertions.
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// TradeCount reports how many fills are recorded, for test assertions.
func (s *Store) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}
