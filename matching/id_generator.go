package matching

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// IDGenerator produces short, allocation-light correlation IDs used in
// log lines to tie a dispatched task to its eventual log output (a task
// travels through an unbounded queue and a worker goroutine before it's
// ever logged, so a request-scoped ID is the only way to find it again
// in a multi-worker log stream). It does not mint order or trade IDs:
// those are either caller-supplied (orders) or owned by the Book that
// creates them (trades).
type IDGenerator struct {
	prefix      string
	counter     uint64
	builderPool sync.Pool
}

// NewIDGenerator creates a generator that prefixes every ID with prefix.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{
		prefix: prefix,
		builderPool: sync.Pool{
			New: func() any {
				b := &strings.Builder{}
				b.Grow(24)
				return b
			},
		},
	}
}

// Next returns the next ID in the sequence, e.g. "task-1", "task-2".
func (g *IDGenerator) Next() string {
	count := atomic.AddUint64(&g.counter, 1)

	b := g.builderPool.Get().(*strings.Builder)
	defer func() {
		b.Reset()
		g.builderPool.Put(b)
	}()

	b.WriteString(g.prefix)
	b.WriteString(strconv.FormatUint(count, 10))
	return b.String()
}
