package domain

// Event is the tagged union of everything a Book or BookHandler can report
// to an EventSink. It is a closed set by design: six concrete types, a
// private marker method, and callers type-switch rather than subclass.
type Event interface {
	isEvent()
}

// SymbolAdded reports that a new symbol's book came into existence.
type SymbolAdded struct {
	SymbolID uint32
	Name     string
}

// SymbolDeleted reports that a symbol's book was torn down.
type SymbolDeleted struct {
	SymbolID uint32
	Name     string
}

// OrderAdded reports that the book accepted an order. It is published once,
// before any matching runs, whether or not the order ends up resting.
type OrderAdded struct {
	SymbolID uint32
	Order    Order
}

// OrderDeleted reports that an order left the book: fully filled, deleted,
// cancelled down to zero, replaced, or discarded (FOK rejection, or an
// IOC/market remainder that cannot rest).
type OrderDeleted struct {
	SymbolID uint32
	Order    Order
}

// OrderUpdated reports a non-execution mutation of a resting order: a
// partial cancel (quantity reduction) or a stop/trailing-stop activation.
type OrderUpdated struct {
	SymbolID uint32
	Order    Order
}

// OrderExecuted reports a single fill. Two events are emitted per trade,
// one for the aggressor and one for the resting order, each carrying that
// side's view of the fill.
type OrderExecuted struct {
	SymbolID         uint32
	Order            Order
	ExecutedPrice    int64
	ExecutedQuantity int64
}

func (SymbolAdded) isEvent()   {}
func (SymbolDeleted) isEvent() {}
func (OrderAdded) isEvent()    {}
func (OrderDeleted) isEvent()  {}
func (OrderUpdated) isEvent()  {}
func (OrderExecuted) isEvent() {}

// EventSink receives book events as they occur. Implementations must not
// block the caller for long: a Book or BookHandler invokes Publish
// synchronously, inline with the operation that produced the event.
type EventSink interface {
	Publish(Event)
}

// NopSink discards every event. Useful in tests and benchmarks that don't
// care about the notification stream.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// SliceSink accumulates events in order, for tests that assert on the
// exact notification sequence a scenario produces.
type SliceSink struct {
	Events []Event
}

func (s *SliceSink) Publish(e Event) {
	s.Events = append(s.Events, e)
}
