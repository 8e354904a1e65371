package httptransport

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"spout/internal/orders/models"
	"spout/internal/platform/middleware"
	domainerrors "spout/pkg/domain-errors"
)

// OrderService is the slice of the order engine the transport needs.
type OrderService interface {
	BuyAsset(ctx context.Context, user common.Address, ticker string, token common.Address, usdcAmount *big.Int, subscriptionRef uint64, recipient common.Address) (models.RequestID, error)
	SellAsset(ctx context.Context, user common.Address, ticker string, token common.Address, assetAmount *big.Int, subscriptionRef uint64, recipient common.Address) (models.RequestID, error)
	FulfillRequest(ctx context.Context, requestID models.RequestID, response, errPayload []byte) error
	GetPrice(ctx context.Context, ticker string) (models.Quote, error)
	PendingOrder(ctx context.Context, requestID models.RequestID) (models.PendingOrder, error)
	PendingOrders(ctx context.Context) ([]models.PendingOrder, error)
}

type OrderHandler struct {
	orders                 OrderService
	defaultSubscriptionRef uint64
}

func NewOrderHandler(orders OrderService, defaultSubscriptionRef uint64) *OrderHandler {
	return &OrderHandler{orders: orders, defaultSubscriptionRef: defaultSubscriptionRef}
}

// Register wires order submission and reads; RegisterOracle wires the
// fulfillment callback and is mounted behind the oracle-router role.
func (h *OrderHandler) Register(r chi.Router) {
	r.Post("/orders/buy", h.handleBuy)
	r.Post("/orders/sell", h.handleSell)
	r.Get("/orders/pending", h.handlePendingOrders)
	r.Get("/orders/pending/{requestID}", h.handlePendingOrder)
	r.Get("/prices/{ticker}", h.handleGetPrice)
}

func (h *OrderHandler) RegisterOracle(r chi.Router) {
	r.Post("/orders/fulfill", h.handleFulfill)
}

type orderRequest struct {
	Ticker          string `json:"ticker"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	SubscriptionRef uint64 `json:"subscription_ref,omitempty"`
	Recipient       string `json:"recipient"`
}

func (h *OrderHandler) submit(w http.ResponseWriter, r *http.Request, side models.Side) {
	var req orderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "amount must be a decimal string"))
		return
	}
	user := middleware.Caller(r.Context())
	recipient := user
	if req.Recipient != "" {
		if recipient, err = parseAddress(req.Recipient); err != nil {
			writeError(w, err)
			return
		}
	}
	subscriptionRef := req.SubscriptionRef
	if subscriptionRef == 0 {
		subscriptionRef = h.defaultSubscriptionRef
	}

	var requestID models.RequestID
	if side == models.SideBuy {
		requestID, err = h.orders.BuyAsset(r.Context(), user, req.Ticker, token, amount, subscriptionRef, recipient)
	} else {
		requestID, err = h.orders.SellAsset(r.Context(), user, req.Ticker, token, amount, subscriptionRef, recipient)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": requestID.Hex()})
}

func (h *OrderHandler) handleBuy(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, models.SideBuy)
}

func (h *OrderHandler) handleSell(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, models.SideSell)
}

func (h *OrderHandler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string `json:"request_id"`
		Response  string `json:"response,omitempty"`
		Error     string `json:"error,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	requestID, ok := models.ParseRequestID(req.RequestID)
	if !ok {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request id"))
		return
	}
	var response []byte
	if req.Response != "" {
		var err error
		if response, err = parseHex(req.Response); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.orders.FulfillRequest(r.Context(), requestID, response, []byte(req.Error)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func renderOrder(order models.PendingOrder) map[string]any {
	return map[string]any{
		"request_id":       order.RequestID.Hex(),
		"user":             order.User.Hex(),
		"ticker":           order.Ticker,
		"token":            order.Token.Hex(),
		"amount":           order.Amount.String(),
		"recipient":        order.Recipient.Hex(),
		"side":             string(order.Side),
		"subscription_ref": order.SubscriptionRef,
		"submitted_at":     order.SubmittedAt,
	}
}

func (h *OrderHandler) handlePendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.PendingOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := []map[string]any{}
	for _, order := range orders {
		out = append(out, renderOrder(order))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *OrderHandler) handlePendingOrder(w http.ResponseWriter, r *http.Request) {
	requestID, ok := models.ParseRequestID(chi.URLParam(r, "requestID"))
	if !ok {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request id"))
		return
	}
	order, err := h.orders.PendingOrder(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderOrder(order))
}

func (h *OrderHandler) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	quote, err := h.orders.GetPrice(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticker":     quote.Ticker,
		"price":      quote.Price.String(),
		"updated_at": quote.UpdatedAt,
	})
}
