// Package service implements the order engine: buy and sell intents are
// parked as pending orders until the oracle answers with a price, then
// settled with integer floor arithmetic and destroyed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/events"
	"spout/internal/orders/metrics"
	"spout/internal/orders/models"
	"spout/internal/orders/oracle"
	domainerrors "spout/pkg/domain-errors"
	"spout/pkg/platform/sentinel"
)

// PendingOrderStore is the persistence port for in-flight orders.
type PendingOrderStore interface {
	Insert(ctx context.Context, order models.PendingOrder) error
	Get(ctx context.Context, id models.RequestID) (models.PendingOrder, error)
	Take(ctx context.Context, id models.RequestID) (models.PendingOrder, bool, error)
	List(ctx context.Context) ([]models.PendingOrder, error)
}

// PriceCache stores the last fulfilled price per ticker.
type PriceCache interface {
	Set(ctx context.Context, ticker string, price *big.Int) error
	Get(ctx context.Context, ticker string) (models.Quote, error)
}

// DecimalsResolver reports the on-chain decimals of an asset token.
type DecimalsResolver interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// StaticDecimals resolves every token to a fixed precision.
type StaticDecimals uint8

func (d StaticDecimals) Decimals(context.Context, common.Address) (uint8, error) {
	return uint8(d), nil
}

// Service is the order engine.
type Service struct {
	orders    PendingOrderStore
	prices    PriceCache
	requester oracle.PriceRequester
	decimals  DecimalsResolver
	logger    *slog.Logger
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDecimals swaps the token precision resolver. The default treats every
// asset as an 18-decimal token.
func WithDecimals(d DecimalsResolver) Option {
	return func(s *Service) {
		s.decimals = d
	}
}

// New constructs a Service.
func New(orders PendingOrderStore, prices PriceCache, requester oracle.PriceRequester, opts ...Option) *Service {
	s := &Service{
		orders:    orders,
		prices:    prices,
		requester: requester,
		decimals:  StaticDecimals(18),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuyAsset submits a buy intent funded with usdcAmount and returns the
// request id its settlement will carry.
func (s *Service) BuyAsset(ctx context.Context, user common.Address, ticker string, token common.Address, usdcAmount *big.Int, subscriptionRef uint64, recipient common.Address) (models.RequestID, error) {
	return s.submit(ctx, models.PendingOrder{
		User:            user,
		Ticker:          ticker,
		Token:           token,
		Amount:          usdcAmount,
		Recipient:       recipient,
		Side:            models.SideBuy,
		SubscriptionRef: subscriptionRef,
	})
}

// SellAsset submits a sell intent for assetAmount token units.
func (s *Service) SellAsset(ctx context.Context, user common.Address, ticker string, token common.Address, assetAmount *big.Int, subscriptionRef uint64, recipient common.Address) (models.RequestID, error) {
	return s.submit(ctx, models.PendingOrder{
		User:            user,
		Ticker:          ticker,
		Token:           token,
		Amount:          assetAmount,
		Recipient:       recipient,
		Side:            models.SideSell,
		SubscriptionRef: subscriptionRef,
	})
}

func (s *Service) submit(ctx context.Context, order models.PendingOrder) (models.RequestID, error) {
	if order.Amount == nil || order.Amount.Sign() <= 0 {
		return models.RequestID{}, domainerrors.New(domainerrors.CodeInvalidAmount, "order amount must be positive")
	}

	requestID, err := s.requester.RequestPrice(ctx, order.Ticker, order.SubscriptionRef)
	if err != nil {
		return models.RequestID{}, domainerrors.Wrap(err, domainerrors.CodeOracleError, "price request failed")
	}

	order.RequestID = requestID
	order.SubmittedAt = s.now().UTC()
	if err := s.orders.Insert(ctx, order); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A reused request id would let one callback settle two orders.
			return models.RequestID{}, domainerrors.New(domainerrors.CodeInvariantViolation, "oracle issued a duplicate request id")
		}
		return models.RequestID{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to persist pending order")
	}

	s.metrics.IncrementOrdersSubmitted(string(order.Side))
	s.emit(ctx, events.Event{
		Type:      events.TypeOrderSubmitted,
		RequestID: requestID.Hex(),
		User:      order.User.Hex(),
		Ticker:    order.Ticker,
		Token:     order.Token.Hex(),
		Side:      string(order.Side),
	})
	// Orders have no timeout; an oracle that never answers strands them.
	s.log(ctx, "order submitted, awaiting fulfillment",
		"request_id", requestID.Hex(),
		"side", string(order.Side),
		"ticker", order.Ticker,
		"amount", order.Amount.String(),
	)
	return requestID, nil
}

// FulfillRequest consumes an oracle callback. Error payloads abandon the
// order, price payloads settle it. Callbacks for unknown request ids are
// dropped so duplicate or stale deliveries can never settle twice.
func (s *Service) FulfillRequest(ctx context.Context, requestID models.RequestID, response, errPayload []byte) error {
	started := s.now()
	defer func() {
		s.metrics.ObserveFulfillment(s.now().Sub(started).Seconds())
	}()

	if len(errPayload) > 0 {
		return s.failOrder(ctx, requestID, errPayload)
	}

	price, err := oracle.DecodePrice(response)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "malformed price payload")
	}
	if price.Sign() <= 0 {
		// A zero price cannot settle anything; treat it as an oracle fault.
		return s.failOrder(ctx, requestID, []byte("oracle returned zero price"))
	}

	order, err := s.orders.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementUnknownCallbacks()
			s.log(ctx, "fulfillment for unknown request id dropped", "request_id", requestID.Hex())
			return nil
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to read pending order")
	}

	// Compute the settlement before claiming the order. A resolver failure
	// here must leave the order pending so a retried callback can settle it.
	settlement, err := s.settle(ctx, order, price)
	if err != nil {
		return err
	}

	if _, found, err := s.orders.Take(ctx, requestID); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to claim pending order")
	} else if !found {
		// A concurrent duplicate got there first.
		s.metrics.IncrementUnknownCallbacks()
		s.log(ctx, "fulfillment for unknown request id dropped", "request_id", requestID.Hex())
		return nil
	}

	if err := s.prices.Set(ctx, order.Ticker, price); err != nil {
		s.log(ctx, "price cache update failed", "ticker", order.Ticker, "error", err)
	}

	eventType := events.TypeBuyOrderSettled
	if order.Side == models.SideSell {
		eventType = events.TypeSellOrderSettled
	}
	s.metrics.IncrementOrdersSettled(string(order.Side))
	s.emit(ctx, events.Event{
		Type:        eventType,
		RequestID:   requestID.Hex(),
		User:        order.User.Hex(),
		Ticker:      order.Ticker,
		Token:       order.Token.Hex(),
		Side:        string(order.Side),
		USDCAmount:  settlement.USDCAmount.String(),
		AssetAmount: settlement.AssetAmount.String(),
		Price:       price.String(),
	})
	s.log(ctx, "order settled",
		"request_id", requestID.Hex(),
		"side", string(order.Side),
		"ticker", order.Ticker,
		"price", price.String(),
		"usdc_amount", settlement.USDCAmount.String(),
		"asset_amount", settlement.AssetAmount.String(),
	)
	return nil
}

// USDC carries 6 decimals, oracle prices 2. One whole token therefore costs
// price*10^(6-2) USDC base units.
const usdcPriceScale = 10_000

// settle converts between USDC and asset units at the fulfilled price.
// Division floors; dust rounds against the user, never over-credits.
func (s *Service) settle(ctx context.Context, order models.PendingOrder, price *big.Int) (models.Settlement, error) {
	d, err := s.decimals.Decimals(ctx, order.Token)
	if err != nil {
		return models.Settlement{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to resolve token decimals")
	}

	tokenUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d)), nil)
	unitPrice := new(big.Int).Mul(price, big.NewInt(usdcPriceScale))

	settlement := models.Settlement{Order: order, Price: price}
	switch order.Side {
	case models.SideBuy:
		settlement.USDCAmount = new(big.Int).Set(order.Amount)
		settlement.AssetAmount = new(big.Int).Div(new(big.Int).Mul(order.Amount, tokenUnit), unitPrice)
	case models.SideSell:
		settlement.AssetAmount = new(big.Int).Set(order.Amount)
		settlement.USDCAmount = new(big.Int).Div(new(big.Int).Mul(order.Amount, unitPrice), tokenUnit)
	default:
		return models.Settlement{}, domainerrors.New(domainerrors.CodeInvariantViolation, "unknown order side")
	}
	return settlement, nil
}

func (s *Service) failOrder(ctx context.Context, requestID models.RequestID, reason []byte) error {
	order, found, err := s.orders.Take(ctx, requestID)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to claim pending order")
	}
	if !found {
		s.metrics.IncrementUnknownCallbacks()
		s.log(ctx, "oracle error for unknown request id dropped", "request_id", requestID.Hex())
		return nil
	}

	s.metrics.IncrementOrdersFailed()
	s.emit(ctx, events.Event{
		Type:      events.TypeOrderFailed,
		RequestID: requestID.Hex(),
		User:      order.User.Hex(),
		Ticker:    order.Ticker,
		Token:     order.Token.Hex(),
		Side:      string(order.Side),
		Reason:    string(reason),
	})
	s.log(ctx, "order failed by oracle",
		"request_id", requestID.Hex(),
		"ticker", order.Ticker,
		"reason", string(reason),
	)
	return nil
}

// GetPrice returns the last fulfilled quote for a ticker.
func (s *Service) GetPrice(ctx context.Context, ticker string) (models.Quote, error) {
	quote, err := s.prices.Get(ctx, ticker)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Quote{}, domainerrors.New(domainerrors.CodeNotFound, "no price recorded for ticker")
		}
		return models.Quote{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to read price cache")
	}
	return quote, nil
}

// PendingOrder looks up a single in-flight order.
func (s *Service) PendingOrder(ctx context.Context, requestID models.RequestID) (models.PendingOrder, error) {
	order, err := s.orders.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.PendingOrder{}, domainerrors.New(domainerrors.CodeNotFound, "pending order not found")
		}
		return models.PendingOrder{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to read pending order")
	}
	return order, nil
}

// PendingOrders lists all in-flight orders.
func (s *Service) PendingOrders(ctx context.Context) ([]models.PendingOrder, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list pending orders")
	}
	return orders, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx, "event publish failed", "event", string(event.Type), "error", err)
	}
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
