package matching

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"rapidbook/domain"
	"rapidbook/orderbook"
)

// ErrUnknownSymbol is returned when an operation names a symbol that
// was never added, or was already deleted, from the ConcurrentMarket.
var ErrUnknownSymbol = errors.New("matching: no such symbol")

// ConcurrentMarket is a symbol-sharded, concurrent front end over N independent
// orderbook.BookHandlers, each pinned to its own worker goroutine. Every
// symbol is assigned to exactly one worker for its whole lifetime, so
// all operations on that symbol execute in the order they were
// submitted (per-symbol linearizability) without the book itself ever
// needing a lock. Operations are fire-and-forget: the caller gets back
// an error only for submission-time preconditions (unknown symbol) that
// can be checked before the task is ever queued.
type ConcurrentMarket struct {
	mu             sync.RWMutex
	symbolToWorker map[uint32]int
	workers        []*worker
	nextWorker     int
	t              tomb.Tomb
	ids            *IDGenerator
}

// NewConcurrentMarket starts numWorkers workers, each with its own
// BookHandler built from newHandler (so callers can choose tree kind,
// event sink, and trade sink per worker, or share one across all of them).
func NewConcurrentMarket(numWorkers int, newHandler func(workerID int) *orderbook.BookHandler) *ConcurrentMarket {
	if numWorkers < 1 {
		numWorkers = 1
	}
	m := &ConcurrentMarket{
		symbolToWorker: make(map[uint32]int),
		workers:        make([]*worker, numWorkers),
		ids:            NewIDGenerator("task-"),
	}
	for i := 0; i < numWorkers; i++ {
		w := newWorker(i, newHandler(i))
		m.workers[i] = w
		m.t.Go(func() error { return w.run(&m.t) })
	}
	return m
}

// Stop signals every worker to finish its queued work and exit, then
// blocks until they have.
func (m *ConcurrentMarket) Stop() error {
	m.t.Kill(nil)
	return m.t.Wait()
}

// AddSymbol assigns symbolID to the next worker in round robin and
// creates its book there under the given display name. A symbol already
// present is left untouched, matching the external API's idempotent
// add_symbol contract.
func (m *ConcurrentMarket) AddSymbol(symbolID uint32, name string) error {
	m.mu.Lock()
	if _, exists := m.symbolToWorker[symbolID]; exists {
		m.mu.Unlock()
		return nil
	}
	idx := m.nextWorker
	m.nextWorker = (m.nextWorker + 1) % len(m.workers)
	m.symbolToWorker[symbolID] = idx
	m.mu.Unlock()

	taskID := m.ids.Next()
	w := m.workers[idx]
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.AddBook(symbolID, name); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint32("symbol", symbolID).Msg("add symbol rejected")
		}
	})
	return nil
}

// DeleteSymbol removes symbolID's routing entry and tears down its book
// on its worker.
func (m *ConcurrentMarket) DeleteSymbol(symbolID uint32) error {
	w, err := m.routeFor(symbolID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.symbolToWorker, symbolID)
	m.mu.Unlock()

	taskID := m.ids.Next()
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.DeleteBook(symbolID); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint32("symbol", symbolID).Msg("delete symbol rejected")
		}
	})
	return nil
}

// AddOrder submits order to its symbol's worker.
func (m *ConcurrentMarket) AddOrder(order domain.Order) error {
	w, err := m.routeFor(order.SymbolID)
	if err != nil {
		return err
	}
	taskID := m.ids.Next()
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.AddOrder(order); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint64("order", order.ID).Msg("add order rejected")
		}
	})
	return nil
}

// DeleteOrder submits a full cancel of orderID on symbolID's worker.
func (m *ConcurrentMarket) DeleteOrder(symbolID uint32, orderID uint64) error {
	w, err := m.routeFor(symbolID)
	if err != nil {
		return err
	}
	taskID := m.ids.Next()
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.DeleteOrder(symbolID, orderID); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint64("order", orderID).Msg("delete order rejected")
		}
	})
	return nil
}

// CancelOrder submits a partial (or full, if quantity covers it all)
// cancel of orderID on symbolID's worker.
func (m *ConcurrentMarket) CancelOrder(symbolID uint32, orderID uint64, quantity int64) error {
	w, err := m.routeFor(symbolID)
	if err != nil {
		return err
	}
	taskID := m.ids.Next()
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.CancelOrder(symbolID, orderID, quantity); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint64("order", orderID).Msg("cancel order rejected")
		}
	})
	return nil
}

// ReplaceOrder submits a delete-then-add of orderID on symbolID's
// worker, using replacement in its place.
func (m *ConcurrentMarket) ReplaceOrder(symbolID uint32, orderID uint64, replacement domain.Order) error {
	w, err := m.routeFor(symbolID)
	if err != nil {
		return err
	}
	taskID := m.ids.Next()
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.ReplaceOrder(symbolID, orderID, replacement); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint64("order", orderID).Msg("replace order rejected")
		}
	})
	return nil
}

// ExecuteOrder submits an execution of qty against orderID on symbolID's
// worker at the supplied price (or the order's own resting price, if
// price is zero).
func (m *ConcurrentMarket) ExecuteOrder(symbolID uint32, orderID uint64, quantity, price int64) error {
	w, err := m.routeFor(symbolID)
	if err != nil {
		return err
	}
	taskID := m.ids.Next()
	w.submit(func(h *orderbook.BookHandler) {
		if err := h.ExecuteOrder(symbolID, orderID, quantity, price); err != nil {
			log.Error().Str("task", taskID).Err(err).Uint64("order", orderID).Msg("execute order rejected")
		}
	})
	return nil
}

// routeFor looks up the worker a symbol is pinned to. The read lock is
// held only long enough to copy the pointer out; it is never held
// across task execution, since that happens asynchronously on the
// worker's own goroutine.
func (m *ConcurrentMarket) routeFor(symbolID uint32) (*worker, error) {
	m.mu.RLock()
	idx, ok := m.symbolToWorker[symbolID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSymbol
	}
	return m.workers[idx], nil
}
