// Package domain holds the value types shared by the order book, the book
// handler, and the dispatcher: orders, trades, and the event vocabulary they
// produce.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Side is the side of the book an order rests on.
type Side uint8

const (
	Ask Side = iota
	Bid
)

func (s Side) String() string {
	if s == Ask {
		return "ASK"
	}
	return "BID"
}

// Type is the order's matching behavior.
type Type uint8

const (
	Limit Type = iota
	Market
	Stop
	StopLimit
	TrailingStop
	TrailingStopLimit
)

func (t Type) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Stop:
		return "STOP"
	case StopLimit:
		return "STOP_LIMIT"
	case TrailingStop:
		return "TRAILING_STOP"
	case TrailingStopLimit:
		return "TRAILING_STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// IsStop reports whether t is one of the four stop/trailing-stop variants.
func (t Type) IsStop() bool {
	switch t {
	case Stop, StopLimit, TrailingStop, TrailingStopLimit:
		return true
	default:
		return false
	}
}

// IsTrailing reports whether t carries a trail amount.
func (t Type) IsTrailing() bool {
	return t == TrailingStop || t == TrailingStopLimit
}

// IsLimit reports whether t rests in the book at a fixed price once active
// (Limit itself, or the post-activation resting form of a *-Limit stop).
func (t Type) IsLimit() bool {
	return t == Limit
}

// TimeInForce controls how an order behaves once it can no longer cross.
type TimeInForce uint8

const (
	GTC TimeInForce = iota
	IOC
	FOK
)

func (f TimeInForce) String() string {
	switch f {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// Precondition errors returned by order construction. These are caller
// mistakes, not book bugs: the book assumes every Order handed to it
// already satisfies these constraints.
var (
	ErrInvalidID          = errors.New("domain: order id must be positive")
	ErrInvalidSymbolID    = errors.New("domain: symbol id must be positive")
	ErrInvalidQuantity    = errors.New("domain: quantity must be positive")
	ErrInvalidPrice       = errors.New("domain: price must be positive for this order type")
	ErrInvalidStopPrice   = errors.New("domain: stop price must be positive for this order type")
	ErrInvalidTrailAmount = errors.New("domain: trail amount must be positive for trailing orders")
	ErrGTCNotAllowed      = errors.New("domain: market and stop orders cannot be GTC")
)

// Order is a single resting or in-flight trading intent. It is a plain
// value: the book that owns it mutates it in place and tracks its position
// in a Level's FIFO via listElem, an opaque handle set only by the
// orderbook package.
//
// Fields are grouped by role (identity and classification, prices,
// quantities, last fill), mirroring the teacher's cache-line layout; it is
// a readability convention here, not a verified layout.
type Order struct {
	ID          uint64
	SymbolID    uint32
	Side        Side
	Type        Type
	TimeInForce TimeInForce

	Price       int64
	StopPrice   int64
	TrailAmount int64

	Quantity         int64 // original size, mutated only by Cancel
	ExecutedQuantity int64
	OpenQuantity     int64 // Quantity - ExecutedQuantity, kept denormalized

	LastExecutedPrice    int64
	LastExecutedQuantity int64

	CreatedAt time.Time

	// listElem is the handle the owning Level uses to remove this order in
	// O(1); nil when the order is not resting in any level (e.g. a market
	// order mid-match). Only the orderbook package reads or writes it.
	listElem any
}

// NewLimit constructs a resting limit order.
func NewLimit(id uint64, symbolID uint32, side Side, price, quantity int64, tif TimeInForce) (Order, error) {
	if err := checkCommon(id, symbolID, quantity); err != nil {
		return Order{}, err
	}
	if price <= 0 {
		return Order{}, ErrInvalidPrice
	}
	return Order{
		ID: id, SymbolID: symbolID, Side: side, Type: Limit, TimeInForce: tif,
		Price: price, Quantity: quantity, OpenQuantity: quantity, CreatedAt: time.Now(),
	}, nil
}

// NewMarket constructs a market order. Market orders may not be GTC.
func NewMarket(id uint64, symbolID uint32, side Side, quantity int64, tif TimeInForce) (Order, error) {
	if err := checkCommon(id, symbolID, quantity); err != nil {
		return Order{}, err
	}
	if tif == GTC {
		return Order{}, ErrGTCNotAllowed
	}
	return Order{
		ID: id, SymbolID: symbolID, Side: side, Type: Market, TimeInForce: tif,
		Quantity: quantity, OpenQuantity: quantity, CreatedAt: time.Now(),
	}, nil
}

// NewStop constructs a stop order (activates into a market order).
func NewStop(id uint64, symbolID uint32, side Side, stopPrice, quantity int64, tif TimeInForce) (Order, error) {
	if err := checkCommon(id, symbolID, quantity); err != nil {
		return Order{}, err
	}
	if tif == GTC {
		return Order{}, ErrGTCNotAllowed
	}
	if stopPrice <= 0 {
		return Order{}, ErrInvalidStopPrice
	}
	return Order{
		ID: id, SymbolID: symbolID, Side: side, Type: Stop, TimeInForce: tif,
		StopPrice: stopPrice, Quantity: quantity, OpenQuantity: quantity, CreatedAt: time.Now(),
	}, nil
}

// NewStopLimit constructs a stop-limit order (activates into a limit order).
func NewStopLimit(id uint64, symbolID uint32, side Side, price, stopPrice, quantity int64, tif TimeInForce) (Order, error) {
	if err := checkCommon(id, symbolID, quantity); err != nil {
		return Order{}, err
	}
	if price <= 0 {
		return Order{}, ErrInvalidPrice
	}
	if stopPrice <= 0 {
		return Order{}, ErrInvalidStopPrice
	}
	return Order{
		ID: id, SymbolID: symbolID, Side: side, Type: StopLimit, TimeInForce: tif,
		Price: price, StopPrice: stopPrice, Quantity: quantity, OpenQuantity: quantity, CreatedAt: time.Now(),
	}, nil
}

// NewTrailingStop constructs a trailing stop order (activates into a market order).
func NewTrailingStop(id uint64, symbolID uint32, side Side, stopPrice, trailAmount, quantity int64, tif TimeInForce) (Order, error) {
	if err := checkCommon(id, symbolID, quantity); err != nil {
		return Order{}, err
	}
	if tif == GTC {
		return Order{}, ErrGTCNotAllowed
	}
	if stopPrice <= 0 {
		return Order{}, ErrInvalidStopPrice
	}
	if trailAmount <= 0 {
		return Order{}, ErrInvalidTrailAmount
	}
	return Order{
		ID: id, SymbolID: symbolID, Side: side, Type: TrailingStop, TimeInForce: tif,
		StopPrice: stopPrice, TrailAmount: trailAmount, Quantity: quantity, OpenQuantity: quantity, CreatedAt: time.Now(),
	}, nil
}

// NewTrailingStopLimit constructs a trailing stop-limit order (activates into a limit order).
func NewTrailingStopLimit(id uint64, symbolID uint32, side Side, price, stopPrice, trailAmount, quantity int64, tif TimeInForce) (Order, error) {
	if err := checkCommon(id, symbolID, quantity); err != nil {
		return Order{}, err
	}
	if price <= 0 {
		return Order{}, ErrInvalidPrice
	}
	if stopPrice <= 0 {
		return Order{}, ErrInvalidStopPrice
	}
	if trailAmount <= 0 {
		return Order{}, ErrInvalidTrailAmount
	}
	return Order{
		ID: id, SymbolID: symbolID, Side: side, Type: TrailingStopLimit, TimeInForce: tif,
		Price: price, StopPrice: stopPrice, TrailAmount: trailAmount, Quantity: quantity, OpenQuantity: quantity, CreatedAt: time.Now(),
	}, nil
}

func checkCommon(id uint64, symbolID uint32, quantity int64) error {
	if id == 0 {
		return ErrInvalidID
	}
	if symbolID == 0 {
		return ErrInvalidSymbolID
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// IsFilled reports whether the order has no open quantity left.
func (o *Order) IsFilled() bool {
	return o.OpenQuantity == 0
}

// ListElement returns the opaque handle the owning Level uses to locate
// this order within its FIFO, or nil if the order isn't resting anywhere.
func (o *Order) ListElement() any {
	return o.listElem
}

// SetListElement is called only by orderbook.Level to record or clear this
// order's position in a FIFO.
func (o *Order) SetListElement(elem any) {
	o.listElem = elem
}

// Equal reports whether two orders share an identity: their IDs match.
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID
}

// Execute applies a single fill of the given quantity at the given price.
// Callers are responsible for updating the owning Level's volume.
func (o *Order) Execute(price, quantity int64) {
	o.OpenQuantity -= quantity
	o.ExecutedQuantity += quantity
	o.LastExecutedPrice = price
	o.LastExecutedQuantity = quantity
}

// ReduceQuantity shrinks the original Quantity by delta and recomputes
// OpenQuantity from it, never the reverse.
func (o *Order) ReduceQuantity(delta int64) {
	o.Quantity -= delta
	o.OpenQuantity = o.Quantity - o.ExecutedQuantity
	if o.OpenQuantity < 0 {
		o.OpenQuantity = 0
	}
}

// Activate mutates a stop/trailing-stop order in place into its resting
// form (Stop -> Market, StopLimit -> Limit, TrailingStop -> Market,
// TrailingStopLimit -> Limit).
func (o *Order) Activate() {
	switch o.Type {
	case Stop, TrailingStop:
		o.Type = Market
	case StopLimit, TrailingStopLimit:
		o.Type = Limit
	}
	o.StopPrice = 0
	o.TrailAmount = 0
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d symbol=%d side=%s type=%s tif=%s price=%d stop=%d trail=%d qty=%d open=%d exec=%d last_px=%d last_qty=%d}",
		o.ID, o.SymbolID, o.Side, o.Type, o.TimeInForce, o.Price, o.StopPrice, o.TrailAmount,
		o.Quantity, o.OpenQuantity, o.ExecutedQuantity, o.LastExecutedPrice, o.LastExecutedQuantity,
	)
}
