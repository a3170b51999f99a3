package requestlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const writerBatchSize = 32

// WriteFailure describes a batch that could not be persisted.
type WriteFailure struct {
	BatchSize int
	Err       error
	Class     string
}

// Writer persists records off the request path. Enqueue never blocks: when
// the queue is full the record is dropped and counted, because losing a log
// row is cheaper than stalling a purchase.
type Writer struct {
	store Store
	queue chan *Record

	// OnWriteFailure, when set before Start, receives asynchronous store
	// failures.
	OnWriteFailure func(WriteFailure)
	// OnDrop, when set before Start, is called for each dropped record.
	OnDrop func()

	stop     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	stopped  atomic.Bool
	dropped  atomic.Int64
}

func NewWriter(store Store, bufferSize int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Writer{
		store:    store,
		queue:    make(chan *Record, bufferSize),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

// Enqueue offers a record to the writer. It reports false when the record
// was dropped because the queue is full or the writer is stopped.
func (w *Writer) Enqueue(record *Record) bool {
	if record == nil || w.stopped.Load() {
		return false
	}
	select {
	case w.queue <- record:
		return true
	default:
		w.dropped.Add(1)
		if w.OnDrop != nil {
			w.OnDrop()
		}
		return false
	}
}

// Dropped reports how many records were discarded since startup.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Shutdown stops intake, flushes whatever is queued, and waits for the
// worker until ctx expires.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		close(w.stop)
	})
	if !w.started.Load() {
		return nil
	}
	select {
	case <-w.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.finished)
	for {
		select {
		case <-w.stop:
			w.drain()
			return
		case <-ctx.Done():
			w.drain()
			return
		case record := <-w.queue:
			batch := w.collect(record)
			w.flush(ctx, batch)
		}
	}
}

// collect drains whatever is immediately available behind the first record,
// bounded by the batch size.
func (w *Writer) collect(first *Record) []*Record {
	batch := make([]*Record, 0, writerBatchSize)
	batch = append(batch, first)
	for len(batch) < writerBatchSize {
		select {
		case record := <-w.queue:
			batch = append(batch, record)
		default:
			return batch
		}
	}
	return batch
}

// drain flushes queued records with a fresh context; the request context is
// usually gone by shutdown time.
func (w *Writer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case record := <-w.queue:
			w.flush(ctx, w.collect(record))
		default:
			return
		}
	}
}

func (w *Writer) flush(ctx context.Context, batch []*Record) {
	if len(batch) == 0 || w.store == nil {
		return
	}
	if err := w.store.WriteBatch(ctx, batch); err != nil {
		if w.OnWriteFailure != nil {
			w.OnWriteFailure(WriteFailure{
				BatchSize: len(batch),
				Err:       err,
				Class:     ClassifyWriteError(err),
			})
		}
	}
}
