package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapidbook/domain"
)

func mustLimit(t *testing.T, id uint64, side domain.Side, price, qty int64, tif domain.TimeInForce) domain.Order {
	t.Helper()
	o, err := domain.NewLimit(id, 1, side, price, qty, tif)
	require.NoError(t, err)
	return o
}

func TestBook_PriceImprovement(t *testing.T) {
	sink := &domain.SliceSink{}
	b := NewBook(1, HashMapList, sink, nil)

	require.NoError(t, b.Add(mustLimit(t, 1, domain.Ask, 105, 10, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 2, domain.Bid, 110, 10, domain.GTC)))

	// The taker bid at 110 should fill at the resting ask's price (105),
	// not its own limit.
	o, ok := b.Order(2)
	assert.False(t, ok) // fully filled orders leave the book
	_ = o

	// OrderAdded(ask), OrderAdded(bid), two OrderExecuted, OrderDeleted(ask),
	// OrderDeleted(bid): every add_order call announces with OrderAdded
	// first, and the taker here fills completely too so it gets its own
	// OrderDeleted alongside the maker's.
	require.Len(t, sink.Events, 6)
	assert.Equal(t, int64(105), sink.Events[2].(domain.OrderExecuted).ExecutedPrice)
	assert.Equal(t, int64(105), sink.Events[3].(domain.OrderExecuted).ExecutedPrice)
}

// TestBook_TakerPriceImprovementEventSequence mirrors spec scenario 1
// literally: a resting bid fills completely against a larger incoming ask,
// which itself keeps a remainder resting. The exact event sequence matters
// here, not just the count.
func TestBook_TakerPriceImprovementEventSequence(t *testing.T) {
	sink := &domain.SliceSink{}
	b := NewBook(1, HashMapList, sink, nil)

	require.NoError(t, b.Add(mustLimit(t, 1, domain.Bid, 350, 200, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 2, domain.Ask, 200, 500, domain.GTC)))

	require.Len(t, sink.Events, 5)
	assert.IsType(t, domain.OrderAdded{}, sink.Events[0])
	assert.Equal(t, uint64(1), sink.Events[0].(domain.OrderAdded).Order.ID)
	assert.IsType(t, domain.OrderAdded{}, sink.Events[1])
	assert.Equal(t, uint64(2), sink.Events[1].(domain.OrderAdded).Order.ID)

	exec1 := sink.Events[2].(domain.OrderExecuted)
	assert.Equal(t, uint64(1), exec1.Order.ID)
	assert.Equal(t, int64(350), exec1.ExecutedPrice)
	assert.Equal(t, int64(0), exec1.Order.OpenQuantity)

	exec2 := sink.Events[3].(domain.OrderExecuted)
	assert.Equal(t, uint64(2), exec2.Order.ID)
	assert.Equal(t, int64(350), exec2.ExecutedPrice)
	assert.Equal(t, int64(300), exec2.Order.OpenQuantity)

	del := sink.Events[4].(domain.OrderDeleted)
	assert.Equal(t, uint64(1), del.Order.ID)

	_, restingStillThere := b.Order(1)
	assert.False(t, restingStillThere)
	remaining, ok := b.Order(2)
	require.True(t, ok)
	assert.Equal(t, int64(300), remaining.OpenQuantity)
	assert.Equal(t, int64(200), remaining.Price)
}

func TestBook_IOCWalksMultipleLevels(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)

	require.NoError(t, b.Add(mustLimit(t, 1, domain.Ask, 100, 5, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 2, domain.Ask, 101, 5, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 3, domain.Ask, 102, 5, domain.GTC)))

	taker := mustLimit(t, 4, domain.Bid, 102, 12, domain.IOC)
	require.NoError(t, b.Add(taker))

	// 12 filled across the three levels (5+5+2), remainder (0) discarded;
	// nothing rests since it's IOC.
	_, stillThere := b.Order(4)
	assert.False(t, stillThere)

	bids, asks := b.Depth(10)
	assert.Empty(t, bids)
	require.Len(t, asks, 1)
	assert.Equal(t, int64(102), asks[0].Price)
	assert.Equal(t, int64(3), asks[0].Volume)
}

func TestBook_FOKRejectsWhenLiquidityInsufficient(t *testing.T) {
	sink := &domain.SliceSink{}
	b := NewBook(1, HashMapList, sink, nil)

	require.NoError(t, b.Add(mustLimit(t, 1, domain.Ask, 100, 5, domain.GTC)))

	fok := mustLimit(t, 2, domain.Bid, 100, 10, domain.FOK)
	require.NoError(t, b.Add(fok))

	_, stillThere := b.Order(2)
	assert.False(t, stillThere)

	// The resting ask must be untouched: FOK either fills in full or not
	// at all.
	ask, ok := b.Order(1)
	require.True(t, ok)
	assert.Equal(t, int64(5), ask.OpenQuantity)
}

func TestBook_FOKFillsWhenLiquiditySufficient(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)

	require.NoError(t, b.Add(mustLimit(t, 1, domain.Ask, 100, 5, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 2, domain.Ask, 101, 5, domain.GTC)))

	fok := mustLimit(t, 3, domain.Bid, 101, 10, domain.FOK)
	require.NoError(t, b.Add(fok))

	bids, asks := b.Depth(10)
	assert.Empty(t, bids)
	assert.Empty(t, asks)
}

func TestBook_CancelReducesQuantity(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Bid, 100, 10, domain.GTC)))

	require.NoError(t, b.Cancel(1, 4))
	o, ok := b.Order(1)
	require.True(t, ok)
	assert.Equal(t, int64(6), o.Quantity)
	assert.Equal(t, int64(6), o.OpenQuantity)

	assert.ErrorIs(t, b.Cancel(1, 100), ErrInvalidQuantity)

	require.NoError(t, b.Delete(1))
	_, ok = b.Order(1)
	assert.False(t, ok)
}

func TestBook_ReplaceOrderIsDeleteThenAdd(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Bid, 100, 10, domain.GTC)))

	replacement := mustLimit(t, 1, domain.Bid, 103, 7, domain.GTC)
	require.NoError(t, b.Replace(1, replacement))

	o, ok := b.Order(1)
	require.True(t, ok)
	assert.Equal(t, int64(103), o.Price)
	assert.Equal(t, int64(7), o.Quantity)
}

func TestBook_StopActivatesOnPriceRise(t *testing.T) {
	sink := &domain.SliceSink{}
	b := NewBook(1, HashMapList, sink, nil)

	// Seed the ask side so there's a reference price, and resting
	// liquidity for the stop to trade into once triggered.
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Ask, 100, 5, domain.GTC)))

	stop, err := domain.NewStop(2, 1, domain.Bid, 100, 5, domain.IOC)
	require.NoError(t, err)
	require.NoError(t, b.Add(stop))

	// The stop's trigger (askRef >= 100) is already satisfied by the
	// resting ask at 100, so it activates immediately and fills.
	_, ok := b.Order(2)
	assert.False(t, ok)
	_, ok = b.Order(1)
	assert.False(t, ok)
}

func TestBook_StopRestsUntilTriggered(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Ask, 110, 5, domain.GTC)))

	stop, err := domain.NewStop(2, 1, domain.Bid, 120, 5, domain.IOC)
	require.NoError(t, err)
	require.NoError(t, b.Add(stop))

	o, ok := b.Order(2)
	require.True(t, ok)
	assert.Equal(t, domain.Stop, o.Type)

	// Lay in a second, worse ask, then sweep the near one away: once the
	// best ask reference rises to 120, the pending stop should trigger.
	require.NoError(t, b.Add(mustLimit(t, 3, domain.Ask, 120, 5, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 4, domain.Bid, 110, 5, domain.IOC)))

	_, ok = b.Order(2)
	assert.False(t, ok, "stop should have activated and filled once the ask reference reached 120")
	_, ok = b.Order(3)
	assert.False(t, ok, "the 120 ask should have been consumed by the activated stop")
}

func TestBook_DuplicateOrderRejected(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Bid, 100, 10, domain.GTC)))
	err := b.Add(mustLimit(t, 1, domain.Bid, 99, 5, domain.GTC))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestBook_UnknownOrderOnCancel(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	err := b.Cancel(999, 1)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestBook_WrongSymbolRejected(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	o, err := domain.NewLimit(1, 2, domain.Bid, 100, 1, domain.GTC)
	require.NoError(t, err)
	assert.ErrorIs(t, b.Add(o), ErrWrongSymbol)
}

func TestBook_BestBidAskAndDepth(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Bid, 99, 10, domain.GTC)))
	require.NoError(t, b.Add(mustLimit(t, 2, domain.Ask, 101, 10, domain.GTC)))

	assert.Equal(t, int64(99), b.BestBid())
	assert.Equal(t, int64(101), b.BestAsk())

	bids, asks := b.Depth(5)
	require.Len(t, bids, 1)
	require.Len(t, asks, 1)
	assert.Equal(t, int64(10), bids[0].Volume)
	assert.Equal(t, int64(101), asks[0].Price)
}

func TestBook_ExecutePartialAtRestingPrice(t *testing.T) {
	sink := &domain.SliceSink{}
	b := NewBook(1, HashMapList, sink, nil)
	require.NoError(t, b.Add(mustLimit(t, 1, domain.Bid, 100, 10, domain.GTC)))

	require.NoError(t, b.Execute(1, 4, 0))
	o, ok := b.Order(1)
	require.True(t, ok)
	assert.Equal(t, int64(6), o.OpenQuantity)
	assert.Equal(t, int64(100), b.lastTradedPrice)

	require.NoError(t, b.Execute(1, 6, 103))
	_, ok = b.Order(1)
	assert.False(t, ok, "order should leave the book once fully executed")
	assert.Equal(t, int64(103), b.lastTradedPrice)
}

func TestBook_ExecuteUnknownOrder(t *testing.T) {
	b := NewBook(1, HashMapList, nil, nil)
	assert.ErrorIs(t, b.Execute(999, 1, 0), ErrUnknownOrder)
}
