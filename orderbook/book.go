// Package orderbook implements a single-symbol, single-threaded limit
// order book: price-time priority matching, FOK/IOC/GTC handling, and
// stop/trailing-stop activation. A Book is not safe for concurrent use;
// the matching package is responsible for giving each Book to exactly
// one goroutine at a time.
package orderbook

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"rapidbook/domain"
)

// Precondition and invariant-adjacent errors a Book can return. These
// reflect caller mistakes (acting on an order that doesn't exist, adding
// one that already does) rather than bugs in the matching algorithm
// itself.
var (
	ErrDuplicateOrder  = errors.New("orderbook: order id already exists")
	ErrUnknownOrder    = errors.New("orderbook: no such order")
	ErrWrongSymbol     = errors.New("orderbook: order belongs to a different symbol")
	ErrInvalidQuantity = errors.New("orderbook: quantity must be positive and no greater than open quantity")
)

// TreeKind selects which priceTree implementation a new Book's resting
// sides use. Both are full, tested implementations; HashMapList is the
// default because its O(1) best-price access and O(1) removal suit the
// common case of a handful of active price levels clustered near the
// touch.
type TreeKind int

const (
	HashMapList TreeKind = iota
	Sharded
)

// Book is the order book for one symbol.
type Book struct {
	SymbolID uint32

	bids priceTree // resting buy limit orders, keyed by Price, best = highest
	asks priceTree // resting sell limit orders, keyed by Price, best = lowest

	bidStops map[uint64]*domain.Order // pending buy stop/trailing-stop orders
	askStops map[uint64]*domain.Order // pending sell stop/trailing-stop orders

	orders map[uint64]*domain.Order // every order currently owned by this book

	lastTradedPrice int64
	lastAskRef      int64 // sticky best-ask reference, drives stop activation
	lastBidRef      int64 // sticky best-bid reference, drives stop activation

	events      domain.EventSink
	trades      domain.TradeSink
	nextTradeID uint64
}

// NewBook constructs an empty book. sink and tradeSink may be nil, in
// which case events and trade records are discarded.
func NewBook(symbolID uint32, kind TreeKind, sink domain.EventSink, tradeSink domain.TradeSink) *Book {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if tradeSink == nil {
		tradeSink = domain.NopTradeSink{}
	}
	var bids, asks priceTree
	switch kind {
	case Sharded:
		bids = newShardedTree(true, defaultBucketSize)
		asks = newShardedTree(false, defaultBucketSize)
	default:
		bids = newMapListTree(true)
		asks = newMapListTree(false)
	}
	return &Book{
		SymbolID: symbolID,
		bids:     bids,
		asks:     asks,
		bidStops: make(map[uint64]*domain.Order),
		askStops: make(map[uint64]*domain.Order),
		orders:   make(map[uint64]*domain.Order),
		events:   sink,
		trades:   tradeSink,
	}
}

// BestBid returns the highest resting buy price, or 0 if the bid side is
// empty.
func (b *Book) BestBid() int64 {
	if lvl := b.bids.bestLevel(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// BestAsk returns the lowest resting sell price, or math.MaxInt64 if the
// ask side is empty.
func (b *Book) BestAsk() int64 {
	if lvl := b.asks.bestLevel(); lvl != nil {
		return lvl.Price
	}
	return math.MaxInt64
}

// PriceLevel is one row of a market depth snapshot.
type PriceLevel struct {
	Price  int64
	Volume int64
	Orders int
}

// Depth returns up to maxLevels price levels on each side, best first.
func (b *Book) Depth(maxLevels int) (bids, asks []PriceLevel) {
	return toDepth(b.bids.depth(maxLevels)), toDepth(b.asks.depth(maxLevels))
}

func toDepth(levels []Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, lvl := range levels {
		out[i] = PriceLevel{Price: lvl.Price, Volume: lvl.Volume, Orders: lvl.Orders.Len()}
	}
	return out
}

// String renders a depth-style dump of the book for debugging: each resting
// level with its orders in time priority, asks best-to-worst above the
// touch, bids best-to-worst below it. Never called from the matching path.
func (b *Book) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Book{symbol=%d last=%d}\n", b.SymbolID, b.lastTradedPrice)

	askLevels := b.asks.depth(b.asks.size())
	for i := len(askLevels) - 1; i >= 0; i-- {
		writeLevel(&sb, "ASK", &askLevels[i])
	}
	bidLevels := b.bids.depth(b.bids.size())
	for i := range bidLevels {
		writeLevel(&sb, "BID", &bidLevels[i])
	}
	return sb.String()
}

func writeLevel(sb *strings.Builder, side string, lvl *Level) {
	fmt.Fprintf(sb, "  %s %d x%d\n", side, lvl.Price, lvl.Volume)
	for _, o := range lvl.orderSlice() {
		fmt.Fprintf(sb, "    %s\n", o)
	}
}

// Order looks up a resting or pending order by ID.
func (b *Book) Order(id uint64) (domain.Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Add submits a new order to the book. It either rests, matches
// (wholly or partially), activates as a pending stop, or is discarded,
// according to its Type and TimeInForce.
func (b *Book) Add(order domain.Order) error {
	if order.SymbolID != b.SymbolID {
		return ErrWrongSymbol
	}
	if _, exists := b.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}

	o := order
	b.orders[o.ID] = &o
	b.events.Publish(domain.OrderAdded{SymbolID: b.SymbolID, Order: o})

	if o.Type.IsStop() {
		if !b.stopSatisfied(&o) {
			b.restStop(&o)
			return nil
		}
		o.Activate()
		b.events.Publish(domain.OrderUpdated{SymbolID: b.SymbolID, Order: o})
	}

	b.process(&o)
	b.runStopActivation()
	return nil
}

// Cancel reduces an order's original Quantity by delta, deleting it
// outright if that brings OpenQuantity to zero. delta must be positive
// and no greater than the order's current open quantity; either
// violation is a caller precondition failure, not a partial cancel.
func (b *Book) Cancel(id uint64, delta int64) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	if delta <= 0 || delta > o.OpenQuantity {
		return ErrInvalidQuantity
	}

	before := o.OpenQuantity
	o.ReduceQuantity(delta)

	if resting := o.ListElement(); resting != nil {
		b.levelFor(o).addVolume(o.OpenQuantity - before)
	}

	if o.OpenQuantity > 0 {
		b.events.Publish(domain.OrderUpdated{SymbolID: b.SymbolID, Order: *o})
		b.runStopActivation()
		return nil
	}
	b.removeOrder(o)
	b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *o})
	b.runStopActivation()
	return nil
}

// Delete removes an order from the book entirely, regardless of
// remaining quantity: a full cancel, distinct from a partial one.
func (b *Book) Delete(id uint64) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	b.removeOrder(o)
	b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *o})
	b.runStopActivation()
	return nil
}

// Execute applies an external fill of qty to a resting order, as if
// it traded against a counterparty outside the book's own matching walk
// (used by callers that need to mark a resting order filled at a price
// they determined themselves). price, if zero, defaults to the order's
// own resting price. The order is deleted once fully executed.
func (b *Book) Execute(id uint64, qty, price int64) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if price == 0 {
		price = o.Price
	}
	m := qty
	if o.OpenQuantity < m {
		m = o.OpenQuantity
	}

	if resting := o.ListElement(); resting != nil {
		b.levelFor(o).addVolume(-m)
	}
	o.Execute(price, m)
	b.lastTradedPrice = price
	b.events.Publish(domain.OrderExecuted{SymbolID: b.SymbolID, Order: *o, ExecutedPrice: price, ExecutedQuantity: m})

	if o.IsFilled() {
		b.removeOrder(o)
		b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *o})
	}
	b.refreshRefs()
	b.runStopActivation()
	return nil
}

// Replace deletes the existing order (if present) and adds the
// replacement as a new order, exactly as if the two calls were made
// back to back.
func (b *Book) Replace(id uint64, replacement domain.Order) error {
	if _, ok := b.orders[id]; ok {
		if err := b.Delete(id); err != nil {
			return err
		}
	}
	return b.Add(replacement)
}

func (b *Book) removeOrder(o *domain.Order) {
	delete(b.orders, o.ID)
	if o.ListElement() != nil {
		b.treeFor(o).remove(o, o.Price)
	}
	if o.Type.IsStop() {
		b.deleteStop(o)
	}
}

func (b *Book) treeFor(o *domain.Order) priceTree {
	if o.Side == domain.Bid {
		return b.bids
	}
	return b.asks
}

func (b *Book) levelFor(o *domain.Order) *Level {
	return b.treeFor(o).levelAt(o.Price)
}

// process runs a single order through the matching walk and disposes of
// whatever is left per its TimeInForce.
func (b *Book) process(o *domain.Order) {
	if o.TimeInForce == domain.FOK && !b.canFillEntirely(o) {
		b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *o})
		delete(b.orders, o.ID)
		return
	}

	b.match(o)

	switch {
	case o.IsFilled():
		delete(b.orders, o.ID)
		b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *o})
	case o.TimeInForce == domain.GTC && o.Type.IsLimit():
		// Already announced by Add's up-front OrderAdded; resting here
		// needs no further event.
		b.rest(o)
	default:
		// IOC/FOK remainder, or a non-limit type that can't rest: discard.
		b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *o})
		delete(b.orders, o.ID)
	}
}

// match walks the opposite side of the book, filling o against resting
// orders in price-time priority until o is filled, the book runs out of
// eligible liquidity, or o's limit price stops crossing.
func (b *Book) match(o *domain.Order) {
	opposite, _ := b.sides(o.Side)

	for !o.IsFilled() {
		lvl := opposite.bestLevel()
		if lvl == nil {
			break
		}
		if o.Type.IsLimit() && !b.crosses(o.Side, o.Price, lvl.Price) {
			break
		}

		maker := lvl.front()
		if maker == nil {
			break
		}

		qty := o.OpenQuantity
		if maker.OpenQuantity < qty {
			qty = maker.OpenQuantity
		}
		price := maker.Price // price improvement: the taker gets the maker's price

		o.Execute(price, qty)
		maker.Execute(price, qty)
		lvl.addVolume(-qty)

		b.lastTradedPrice = price
		b.recordTrade(o, maker, price, qty)
		// Resting order first, then the incoming one, per the matching
		// walk's own step order: the maker's fill is what makes room for
		// the taker's.
		b.events.Publish(domain.OrderExecuted{SymbolID: b.SymbolID, Order: *maker, ExecutedPrice: price, ExecutedQuantity: qty})
		b.events.Publish(domain.OrderExecuted{SymbolID: b.SymbolID, Order: *o, ExecutedPrice: price, ExecutedQuantity: qty})

		if maker.IsFilled() {
			opposite.remove(maker, maker.Price)
			delete(b.orders, maker.ID)
			b.events.Publish(domain.OrderDeleted{SymbolID: b.SymbolID, Order: *maker})
		}
	}

	b.refreshRefs()
}

// crosses reports whether a taker on side with the given limit price can
// trade against a resting level at oppositePrice.
func (b *Book) crosses(side domain.Side, limitPrice, oppositePrice int64) bool {
	if side == domain.Bid {
		return limitPrice >= oppositePrice
	}
	return limitPrice <= oppositePrice
}

func (b *Book) sides(side domain.Side) (opposite, own priceTree) {
	if side == domain.Bid {
		return b.asks, b.bids
	}
	return b.bids, b.asks
}

func (b *Book) rest(o *domain.Order) {
	if o.Side == domain.Bid {
		b.bids.insert(o, o.Price)
	} else {
		b.asks.insert(o, o.Price)
	}
	b.refreshRefs()
}

// canFillEntirely reports whether a FOK order could be matched in full
// against the book as it currently stands, without mutating anything.
func (b *Book) canFillEntirely(o *domain.Order) bool {
	opposite, _ := b.sides(o.Side)
	remaining := o.OpenQuantity

	// depth walks every level of the side in price order; Level.next alone
	// does not cross bucket boundaries in a sharded tree.
	for _, lvl := range opposite.depth(opposite.size()) {
		if remaining <= 0 {
			break
		}
		if o.Type.IsLimit() && !b.crosses(o.Side, o.Price, lvl.Price) {
			break
		}
		remaining -= lvl.Volume
	}
	return remaining <= 0
}

func (b *Book) recordTrade(taker, maker *domain.Order, price, qty int64) {
	b.nextTradeID++
	var makerID, takerID uint64 = maker.ID, taker.ID
	t := domain.NewTrade(b.nextTradeID, b.SymbolID, price, qty, makerID, takerID, taker.Side == domain.Bid)
	b.trades.Record(t)
}

func (b *Book) refreshRefs() {
	if lvl := b.asks.bestLevel(); lvl != nil {
		b.lastAskRef = lvl.Price
	}
	if lvl := b.bids.bestLevel(); lvl != nil {
		b.lastBidRef = lvl.Price
	}
}

// --- stop / trailing-stop activation -----------------------------------

func (b *Book) restStop(o *domain.Order) {
	if o.Side == domain.Bid {
		b.bidStops[o.ID] = o
	} else {
		b.askStops[o.ID] = o
	}
}

func (b *Book) deleteStop(o *domain.Order) {
	if o.Side == domain.Bid {
		delete(b.bidStops, o.ID)
	} else {
		delete(b.askStops, o.ID)
	}
}

// stopSatisfied reports whether a stop order's trigger condition holds
// against the book's current reference prices: buy stops trigger as the
// market rises to meet them, sell stops as it falls to meet them.
func (b *Book) stopSatisfied(o *domain.Order) bool {
	if o.Type.IsTrailing() {
		b.trailStopPrice(o)
	}
	if o.Side == domain.Bid {
		return b.lastAskRef != 0 && b.lastAskRef >= o.StopPrice
	}
	return b.lastBidRef != 0 && b.lastBidRef <= o.StopPrice
}

// trailStopPrice ratchets a trailing stop's price toward the market,
// never away from it: a buy trailing stop only ever lowers its trigger
// as the ask falls, a sell trailing stop only ever raises its trigger as
// the bid rises.
func (b *Book) trailStopPrice(o *domain.Order) {
	if o.Side == domain.Bid {
		if b.lastAskRef == 0 {
			return
		}
		candidate := b.lastAskRef - o.TrailAmount
		if candidate < 0 {
			candidate = 0 // underflow clamp
		}
		if candidate < o.StopPrice {
			o.StopPrice = candidate
		}
		return
	}
	if b.lastBidRef == 0 {
		return
	}
	candidate := b.lastBidRef + o.TrailAmount
	if candidate < b.lastBidRef {
		candidate = math.MaxInt64 // overflow clamp
	}
	if candidate > o.StopPrice {
		o.StopPrice = candidate
	}
}

// runStopActivation repeatedly scans both pending-stop books for orders
// whose trigger condition now holds, activates the ones found in a
// single pass in ascending stop-price order, and re-scans: activating
// one stop can move the reference prices enough to trigger the next.
// It terminates once a pass finds nothing left to activate.
func (b *Book) runStopActivation() {
	for {
		triggered := b.collectTriggeredStops()
		if len(triggered) == 0 {
			return
		}
		sort.Slice(triggered, func(i, j int) bool { return triggered[i].StopPrice < triggered[j].StopPrice })
		for _, o := range triggered {
			b.deleteStop(o)
			o.Activate()
			b.events.Publish(domain.OrderUpdated{SymbolID: b.SymbolID, Order: *o})
			b.process(o)
		}
	}
}

func (b *Book) collectTriggeredStops() []*domain.Order {
	var out []*domain.Order
	for _, o := range b.bidStops {
		if b.stopSatisfied(o) {
			out = append(out, o)
		}
	}
	for _, o := range b.askStops {
		if b.stopSatisfied(o) {
			out = append(out, o)
		}
	}
	return out
}
