package matching

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"rapidbook/orderbook"
)

// task is one unit of work a worker applies to its handler. Tasks close
// over whatever arguments they need; the worker doesn't interpret them.
type task func(*orderbook.BookHandler)

// worker owns exactly one BookHandler (and therefore every Book routed
// to it) and drains its queue until told to stop. Because a BookHandler
// is only ever touched from its owning worker's goroutine, no book-level
// locking is needed: the queue is the synchronization.
type worker struct {
	id      int
	handler *orderbook.BookHandler
	queue   *taskQueue
}

func newWorker(id int, handler *orderbook.BookHandler) *worker {
	return &worker{id: id, handler: handler, queue: newTaskQueue()}
}

// submit enqueues a task for this worker. Never blocks: the queue is
// unbounded.
func (w *worker) submit(t task) {
	w.queue.push(t)
}

// run pops and executes tasks until the queue is closed and drained.
// Closing happens the moment t starts dying, via the goroutine below, so
// a shutdown doesn't wait on a task that will never arrive; whatever was
// already queued at that point still runs before run returns.
func (w *worker) run(t *tomb.Tomb) error {
	log.Info().Int("worker", w.id).Msg("worker starting")
	go func() {
		<-t.Dying()
		w.queue.close()
	}()

	for {
		item, ok := w.queue.pop()
		if !ok {
			log.Info().Int("worker", w.id).Msg("worker stopped")
			return nil
		}
		item.(task)(w.handler)
	}
}
