package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"spout/internal/events"
	"spout/internal/events/publisher"
	"spout/internal/orders/models"
	"spout/internal/orders/oracle"
	"spout/internal/orders/pricecache"
	"spout/internal/orders/store"
	domainerrors "spout/pkg/domain-errors"
)

// scriptedRequester hands out a fixed sequence of request ids so tests can
// drive fulfillments deterministically.
type scriptedRequester struct {
	ids  []models.RequestID
	next int
	err  error
}

func (r *scriptedRequester) RequestPrice(context.Context, string, uint64) (models.RequestID, error) {
	if r.err != nil {
		return models.RequestID{}, r.err
	}
	id := r.ids[r.next%len(r.ids)]
	r.next++
	return id, nil
}

// faultyDecimals fails until cleared, standing in for a flaky token
// metadata lookup.
type faultyDecimals struct {
	err error
}

func (d *faultyDecimals) Decimals(context.Context, common.Address) (uint8, error) {
	if d.err != nil {
		return 0, d.err
	}
	return 18, nil
}

func requestID(b byte) models.RequestID {
	var id models.RequestID
	id[31] = b
	return id
}

type EngineSuite struct {
	suite.Suite
	ctx       context.Context
	service   *Service
	requester *scriptedRequester
	orders    *store.InMemory
	prices    *pricecache.Memory
	recorder  *publisher.Memory

	user      common.Address
	token     common.Address
	recipient common.Address
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.requester = &scriptedRequester{ids: []models.RequestID{requestID(1), requestID(2), requestID(3)}}
	s.orders = store.NewInMemory()
	s.prices = pricecache.NewMemory()
	s.recorder = publisher.NewMemory()

	s.user = common.HexToAddress("0x0000000000000000000000000000000000004001")
	s.token = common.HexToAddress("0x0000000000000000000000000000000000004002")
	s.recipient = common.HexToAddress("0x0000000000000000000000000000000000004003")

	s.service = New(s.orders, s.prices, s.requester, WithPublisher(s.recorder))
}

func (s *EngineSuite) buy(usdcAmount int64) models.RequestID {
	id, err := s.service.BuyAsset(s.ctx, s.user, "LQD", s.token, big.NewInt(usdcAmount), 1, s.recipient)
	s.Require().NoError(err)
	return id
}

func (s *EngineSuite) fulfill(id models.RequestID, price int64) {
	s.Require().NoError(s.service.FulfillRequest(s.ctx, id, oracle.EncodePrice(big.NewInt(price)), nil))
}

func (s *EngineSuite) TestBuySettlementAtTwoHundredDollars() {
	// 100 USDC at $200.00 buys exactly half an 18-decimal token.
	id := s.buy(100_000000)
	s.fulfill(id, 20000)

	settled := s.recorder.ByType(events.TypeBuyOrderSettled)
	s.Require().Len(settled, 1)
	s.Equal("100000000", settled[0].USDCAmount)
	s.Equal("500000000000000000", settled[0].AssetAmount)
	s.Equal("20000", settled[0].Price)
	s.Equal(s.user.Hex(), settled[0].User)
	s.Equal("LQD", settled[0].Ticker)
	s.Equal(s.token.Hex(), settled[0].Token)

	quote, err := s.service.GetPrice(s.ctx, "LQD")
	s.Require().NoError(err)
	s.Equal(big.NewInt(20000), quote.Price)
}

func (s *EngineSuite) TestSellSettlement() {
	// 10 tokens at $200.00 yield 2000 USDC.
	id, err := s.service.SellAsset(s.ctx, s.user, "LQD", s.token, new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil), 1, s.recipient)
	s.Require().NoError(err)
	s.fulfill(id, 20000)

	settled := s.recorder.ByType(events.TypeSellOrderSettled)
	s.Require().Len(settled, 1)
	s.Equal("2000000000", settled[0].USDCAmount)
	s.Equal("10000000000000000000", settled[0].AssetAmount)
}

func (s *EngineSuite) TestSettlementFloorsDust() {
	// 1 USDC at $3.00 is 0.333... tokens; the trailing third is truncated.
	id := s.buy(1_000000)
	s.fulfill(id, 300)

	settled := s.recorder.ByType(events.TypeBuyOrderSettled)
	s.Require().Len(settled, 1)
	s.Equal("333333333333333333", settled[0].AssetAmount)
}

func (s *EngineSuite) TestZeroAmountRejected() {
	_, err := s.service.BuyAsset(s.ctx, s.user, "LQD", s.token, big.NewInt(0), 1, s.recipient)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidAmount))

	_, err = s.service.SellAsset(s.ctx, s.user, "LQD", s.token, nil, 1, s.recipient)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInvalidAmount))
}

func (s *EngineSuite) TestDuplicateRequestIDIsFatal() {
	s.requester.ids = []models.RequestID{requestID(7)}

	s.buy(100_000000)
	_, err := s.service.BuyAsset(s.ctx, s.user, "LQD", s.token, big.NewInt(100_000000), 1, s.recipient)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInvariantViolation))
}

func (s *EngineSuite) TestOracleFailurePropagates() {
	s.requester.err = errors.New("subscription exhausted")
	_, err := s.service.BuyAsset(s.ctx, s.user, "LQD", s.token, big.NewInt(100_000000), 1, s.recipient)
	s.True(domainerrors.HasCode(err, domainerrors.CodeOracleError))
}

func (s *EngineSuite) TestDoubleFulfillmentIsNoOp() {
	id := s.buy(100_000000)
	s.fulfill(id, 20000)
	s.fulfill(id, 99999)

	s.Len(s.recorder.ByType(events.TypeBuyOrderSettled), 1)

	// The stale second callback must not move the cached price either.
	quote, err := s.service.GetPrice(s.ctx, "LQD")
	s.Require().NoError(err)
	s.Equal(big.NewInt(20000), quote.Price)
}

func (s *EngineSuite) TestUnknownRequestIDIsDropped() {
	s.Require().NoError(s.service.FulfillRequest(s.ctx, requestID(99), oracle.EncodePrice(big.NewInt(20000)), nil))
	s.Empty(s.recorder.Events())
}

func (s *EngineSuite) TestOutOfOrderFulfillment() {
	first := s.buy(100_000000)
	second := s.buy(100_000000)

	s.fulfill(second, 30000)
	s.fulfill(first, 20000)

	// Last writer wins regardless of submission order.
	quote, err := s.service.GetPrice(s.ctx, "LQD")
	s.Require().NoError(err)
	s.Equal(big.NewInt(20000), quote.Price)
	s.Len(s.recorder.ByType(events.TypeBuyOrderSettled), 2)
}

func (s *EngineSuite) TestOracleErrorPayloadFailsOrder() {
	id := s.buy(100_000000)
	s.Require().NoError(s.service.FulfillRequest(s.ctx, id, nil, []byte("feed unavailable")))

	failed := s.recorder.ByType(events.TypeOrderFailed)
	s.Require().Len(failed, 1)
	s.Equal("feed unavailable", failed[0].Reason)
	s.Empty(s.recorder.ByType(events.TypeBuyOrderSettled))

	// The order is gone; a later price for the same id is dropped.
	s.fulfill(id, 20000)
	s.Empty(s.recorder.ByType(events.TypeBuyOrderSettled))

	_, err := s.service.GetPrice(s.ctx, "LQD")
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *EngineSuite) TestMalformedPricePayloadRejected() {
	id := s.buy(100_000000)

	err := s.service.FulfillRequest(s.ctx, id, nil, nil)
	s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))

	// The order survives a malformed payload and can still settle.
	s.fulfill(id, 20000)
	s.Len(s.recorder.ByType(events.TypeBuyOrderSettled), 1)
}

func (s *EngineSuite) TestZeroPriceFailsOrder() {
	id := s.buy(100_000000)
	s.Require().NoError(s.service.FulfillRequest(s.ctx, id, oracle.EncodePrice(big.NewInt(0)), nil))

	s.Len(s.recorder.ByType(events.TypeOrderFailed), 1)
	s.Empty(s.recorder.ByType(events.TypeBuyOrderSettled))
}

func (s *EngineSuite) TestPendingOrderReads() {
	id := s.buy(100_000000)

	order, err := s.service.PendingOrder(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.SideBuy, order.Side)
	s.False(order.SubmittedAt.IsZero())

	pending, err := s.service.PendingOrders(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)

	s.fulfill(id, 20000)
	_, err = s.service.PendingOrder(s.ctx, id)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *EngineSuite) TestGetPriceUnknownTicker() {
	_, err := s.service.GetPrice(s.ctx, "TLT")
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *EngineSuite) TestDecimalsFailureKeepsOrderPending() {
	resolver := &faultyDecimals{err: errors.New("metadata service down")}
	s.service = New(s.orders, s.prices, s.requester, WithPublisher(s.recorder), WithDecimals(resolver))

	id := s.buy(100_000000)
	err := s.service.FulfillRequest(s.ctx, id, oracle.EncodePrice(big.NewInt(20000)), nil)
	s.True(domainerrors.HasCode(err, domainerrors.CodeInternal))

	// No outcome was recorded and the order is still pending.
	s.Empty(s.recorder.ByType(events.TypeBuyOrderSettled))
	s.Empty(s.recorder.ByType(events.TypeOrderFailed))
	_, getErr := s.service.PendingOrder(s.ctx, id)
	s.Require().NoError(getErr)

	// Once the resolver recovers, a retried callback settles the order.
	resolver.err = nil
	s.fulfill(id, 20000)
	s.Len(s.recorder.ByType(events.TypeBuyOrderSettled), 1)
	_, getErr = s.service.PendingOrder(s.ctx, id)
	s.True(domainerrors.HasCode(getErr, domainerrors.CodeNotFound))
}

func (s *EngineSuite) TestSixDecimalToken() {
	s.service = New(s.orders, s.prices, s.requester, WithPublisher(s.recorder), WithDecimals(StaticDecimals(6)))

	id := s.buy(100_000000)
	s.fulfill(id, 20000)

	settled := s.recorder.ByType(events.TypeBuyOrderSettled)
	s.Require().Len(settled, 1)
	s.Equal("500000", settled[0].AssetAmount)
}
