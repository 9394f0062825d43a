package orderbook

import (
	"errors"
	"fmt"

	"rapidbook/domain"
)

// ErrUnknownSymbol is returned by any operation naming a symbol whose
// book was never added, or was already deleted.
var ErrUnknownSymbol = errors.New("orderbook: no such symbol")

// BookHandler owns every Book for the symbols assigned to it and is the
// single entry point a worker calls into. It is not safe for concurrent
// use: the dispatcher that owns a BookHandler guarantees only one
// goroutine touches it at a time.
type BookHandler struct {
	books  map[uint32]*Book
	names  map[uint32]string
	kind   TreeKind
	events domain.EventSink
	trades domain.TradeSink
}

// NewHandler constructs an empty BookHandler. sink and tradeSink may be
// nil.
func NewHandler(kind TreeKind, sink domain.EventSink, tradeSink domain.TradeSink) *BookHandler {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if tradeSink == nil {
		tradeSink = domain.NopTradeSink{}
	}
	return &BookHandler{
		books:  make(map[uint32]*Book),
		names:  make(map[uint32]string),
		kind:   kind,
		events: sink,
		trades: tradeSink,
	}
}

// AddBook creates a new, empty book for symbolID under the given display
// name. A symbolID already present is a no-op: add_symbol is idempotent
// per spec.md §6.
func (h *BookHandler) AddBook(symbolID uint32, name string) error {
	if _, exists := h.books[symbolID]; exists {
		return nil
	}
	h.books[symbolID] = NewBook(symbolID, h.kind, h.events, h.trades)
	h.names[symbolID] = name
	h.events.Publish(domain.SymbolAdded{SymbolID: symbolID, Name: name})
	return nil
}

// DeleteBook tears down a symbol's book entirely, silently dropping any
// resting orders (no per-order events, per spec.md §6).
func (h *BookHandler) DeleteBook(symbolID uint32) error {
	if _, exists := h.books[symbolID]; !exists {
		return ErrUnknownSymbol
	}
	name := h.names[symbolID]
	delete(h.books, symbolID)
	delete(h.names, symbolID)
	h.events.Publish(domain.SymbolDeleted{SymbolID: symbolID, Name: name})
	return nil
}

// Book returns the book for symbolID, if one exists.
func (h *BookHandler) Book(symbolID uint32) (*Book, bool) {
	b, ok := h.books[symbolID]
	return b, ok
}

// AddOrder routes order to its symbol's book.
func (h *BookHandler) AddOrder(order domain.Order) error {
	b, err := h.bookFor(order.SymbolID)
	if err != nil {
		return err
	}
	return b.Add(order)
}

// DeleteOrder fully removes an order from its symbol's book.
func (h *BookHandler) DeleteOrder(symbolID uint32, orderID uint64) error {
	b, err := h.bookFor(symbolID)
	if err != nil {
		return err
	}
	return b.Delete(orderID)
}

// CancelOrder reduces an order's quantity (or removes it entirely, if
// delta covers everything open) on its symbol's book.
func (h *BookHandler) CancelOrder(symbolID uint32, orderID uint64, delta int64) error {
	b, err := h.bookFor(symbolID)
	if err != nil {
		return err
	}
	return b.Cancel(orderID, delta)
}

// ReplaceOrder deletes orderID and adds replacement in its place on
// symbolID's book.
func (h *BookHandler) ReplaceOrder(symbolID uint32, orderID uint64, replacement domain.Order) error {
	b, err := h.bookFor(symbolID)
	if err != nil {
		return err
	}
	return b.Replace(orderID, replacement)
}

// ExecuteOrder executes quantity against orderID on symbolID's book, at
// price if nonzero or the order's own resting price otherwise.
func (h *BookHandler) ExecuteOrder(symbolID uint32, orderID uint64, quantity, price int64) error {
	b, err := h.bookFor(symbolID)
	if err != nil {
		return err
	}
	return b.Execute(orderID, quantity, price)
}

func (h *BookHandler) bookFor(symbolID uint32) (*Book, error) {
	b, ok := h.books[symbolID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSymbol, symbolID)
	}
	return b, nil
}
