// Package api exposes the HTTP surface: account and session endpoints,
// order lifecycle endpoints, and the read-side market views.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ftnmarket/internal/auth"
	"ftnmarket/internal/market"
	"ftnmarket/internal/models"
)

type ctxKey int

const userIDKey ctxKey = 0

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	Market *market.Service
	Auth   *auth.Service
	Log    *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(m *market.Service, a *auth.Service, log *zap.Logger) *Handler {
	return &Handler{Market: m, Auth: a, Log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUsernameOrPasswordWrong),
		errors.Is(err, auth.ErrTokenNotFound):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, market.ErrOrderNotFound),
		errors.Is(err, market.ErrTradeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrDuplicateUsername),
		errors.Is(err, auth.ErrAlreadyBound),
		errors.Is(err, auth.ErrDuplicateBinding),
		errors.Is(err, market.ErrDuplicateOrder),
		errors.Is(err, market.ErrOrderStatus):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrUsernameIllegal),
		errors.Is(err, auth.ErrPasswordIllegal),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrNameNotChanged),
		errors.Is(err, auth.ErrProfileURLIllegal),
		errors.Is(err, market.ErrTypeIllegal),
		errors.Is(err, market.ErrPriceIllegal),
		errors.Is(err, market.ErrAmountIllegal):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// TokenAuth verifies the bearer token and stores the caller's user ID on
// the request context.
func (h *Handler) TokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := r.Header.Get("Authorization")
		if value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authorization header required"})
			return
		}
		value = strings.TrimPrefix(value, "Bearer ")

		userID, err := h.Auth.VerifyToken(r.Context(), value)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return id, ok
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username      string `json:"username"`
		Password      string `json:"password"`
		PasswordAgain string `json:"password_again"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.Auth.Signup(r.Context(), req.Username, req.Password, req.PasswordAgain, 0, 1)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Data())
}

// Login verifies credentials and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	token, err := user.IssueToken(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token.Value(),
		"user_id": user.ID(),
	})
}

// Logout kills the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := h.Auth.Logout(r.Context(), value); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the caller's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	user, err := h.Auth.User(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Data())
}

// ChangeName renames the caller's account.
func (h *Handler) ChangeName(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, err := h.Auth.User(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := user.ChangeName(r.Context(), req.Name); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Data())
}

// ChangePassword rotates the caller's password and kills every session.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req struct {
		OldPassword      string `json:"old_password"`
		NewPassword      string `json:"new_password"`
		NewPasswordAgain string `json:"new_password_again"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, err := h.Auth.User(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := user.ChangePassword(r.Context(), req.OldPassword, req.NewPassword, req.NewPasswordAgain); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// BindProfile links the caller's account to an external profile page.
func (h *Handler) BindProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, err := h.Auth.User(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := user.BindProfile(r.Context(), req.URL); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Data())
}

// PublishOrder creates a new order for the caller.
func (h *Handler) PublishOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req struct {
		Type        string `json:"type"`
		UnitPrice   string `json:"unit_price"`
		TotalAmount int64  `json:"total_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit price"})
		return
	}

	user, err := h.Auth.User(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	owner := user.Data()
	order, err := h.Market.PublishOrder(r.Context(), models.OrderType(req.Type), price, req.TotalAmount, &owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order.Data())
}

// loadOwnOrder loads an order and checks the caller owns it.
func (h *Handler) loadOwnOrder(w http.ResponseWriter, r *http.Request) *market.Order {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return nil
	}
	order, err := h.Market.Order(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return nil
	}
	if order.Data().UserID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your order"})
		return nil
	}
	return order
}

// ChangeOrderPrice reprices the caller's order.
func (h *Handler) ChangeOrderPrice(w http.ResponseWriter, r *http.Request) {
	order := h.loadOwnOrder(w, r)
	if order == nil {
		return
	}
	var req struct {
		UnitPrice string `json:"unit_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit price"})
		return
	}
	if err := order.ChangeUnitPrice(r.Context(), price); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order.Data())
}

// ChangeTradedAmount records a fill against the caller's order.
func (h *Handler) ChangeTradedAmount(w http.ResponseWriter, r *http.Request) {
	order := h.loadOwnOrder(w, r)
	if order == nil {
		return
	}
	var req struct {
		TradedAmount int64 `json:"traded_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := order.ChangeTradedAmount(r.Context(), req.TradedAmount); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order.Data())
}

// SetAllTraded fills the caller's order completely.
func (h *Handler) SetAllTraded(w http.ResponseWriter, r *http.Request) {
	order := h.loadOwnOrder(w, r)
	if order == nil {
		return
	}
	if err := order.SetAllTraded(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order.Data())
}

// DeleteOrder withdraws the caller's TRADING order.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	order := h.loadOwnOrder(w, r)
	if order == nil {
		return
	}
	if err := order.Delete(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// GetActiveOrders lists TRADING orders, best counterparty price first.
func (h *Handler) GetActiveOrders(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		typ = market.FilterAll
	}
	limit := queryInt(r, "limit", 50)
	orders, err := h.Market.ActiveOrders(r.Context(), typ, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetMyOrders lists the caller's orders, newest first.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	orders, err := h.Market.UserOrders(r.Context(), userID, queryInt(r, "limit", 50))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrderTrades lists the fills of one order.
func (h *Handler) GetOrderTrades(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	trades, err := h.Market.OrderTrades(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetMyTrades lists the caller's fills, newest first.
func (h *Handler) GetMyTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	trades, err := h.Market.UserTrades(r.Context(), userID, queryInt(r, "limit", 50))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetOverview returns the market summary.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Market.MarketOverview(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// GetTradeSeries returns a bucketed trade series of one side.
func (h *Handler) GetTradeSeries(w http.ResponseWriter, r *http.Request) {
	typ := models.OrderType(r.URL.Query().Get("type"))
	if !typ.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be 'buy' or 'sell'"})
		return
	}
	var (
		series []models.TradeBucket
		err    error
	)
	switch r.URL.Query().Get("bucket") {
	case "day":
		series, err = h.Market.DailyTradeSeries(r.Context(), typ, queryInt(r, "span", 30))
	default:
		series, err = h.Market.HourlyTradeSeries(r.Context(), typ, queryInt(r, "span", 24))
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
