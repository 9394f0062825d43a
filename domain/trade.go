package domain

import (
	"fmt"
	"sync"
	"time"
)

// Trade is an internal audit record of a single fill, distinct from the
// OrderExecuted event: a Trade is retained by a TradeSink for later
// inspection (reporting, replay, benchmarking), while OrderExecuted is a
// fire-and-forget notification.
//
// Hot fields (the ones a reporting pass scans over) are grouped first,
// cold identity fields second, mirroring the teacher's cache-line layout.
type Trade struct {
	Price      int64
	Quantity   int64
	Timestamp  time.Time
	SymbolID   uint32
	TakerIsBid bool

	ID           uint64
	MakerOrderID uint64
	TakerOrderID uint64
}

var tradePool = sync.Pool{
	New: func() any {
		return &Trade{}
	},
}

// NewTrade pulls a Trade from the pool and populates it.
func NewTrade(id uint64, symbolID uint32, price, quantity int64, makerOrderID, takerOrderID uint64, takerIsBid bool) *Trade {
	t := tradePool.Get().(*Trade)
	t.ID = id
	t.SymbolID = symbolID
	t.Price = price
	t.Quantity = quantity
	t.MakerOrderID = makerOrderID
	t.TakerOrderID = takerOrderID
	t.TakerIsBid = takerIsBid
	t.Timestamp = time.Now()
	return t
}

// Destroy resets t and returns it to the pool. Callers must not use t
// after calling Destroy.
func (t *Trade) Destroy() {
	t.Reset()
	tradePool.Put(t)
}

func (t *Trade) Reset() {
	*t = Trade{}
}

func (t *Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%d symbol=%d price=%d qty=%d maker=%d taker=%d taker_is_bid=%t at=%s}",
		t.ID, t.SymbolID, t.Price, t.Quantity, t.MakerOrderID, t.TakerOrderID, t.TakerIsBid, t.Timestamp.Format(time.RFC3339Nano),
	)
}

// TradeSink records completed trades for audit purposes. Unlike EventSink,
// which is fire-and-forget, a TradeSink is expected to retain what it's
// given until the caller consumes or clears it.
type TradeSink interface {
	Record(*Trade)
}

// NopTradeSink discards every trade.
type NopTradeSink struct{}

func (NopTradeSink) Record(*Trade) {}

// SliceTradeSink accumulates trades in execution order.
type SliceTradeSink struct {
	mu     sync.Mutex
	Trades []*Trade
}

func (s *SliceTradeSink) Record(t *Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trades = append(s.Trades, t)
}
