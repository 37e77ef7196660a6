package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

// OpType represents an operation kind for the ingest pipeline.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
)

// Op is a lightweight in-memory representation of a message operation
// destined for the persistence pipeline. Payload may be backed by a
// pooled ByteBuffer; consumers must call Item.Done() when finished.
type Op struct {
	Type   OpType
	ChatID string
	MsgID  string
	// Payload holds the serialized message for the operation.
	Payload []byte
	// TS is the server timestamp in nanoseconds.
	TS int64
	// EnqSeq is a monotonic enqueue sequence assigned when the op is
	// accepted into the in-memory queue. It keeps ordering deterministic
	// inside batches.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("ingest queue full")

// Item wraps an Op and owns a pooled ByteBuffer if one was used.
// Consumers MUST call Done() exactly once after processing.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Op != nil {
			it.Op.Payload = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
		itemPool.Put(it)
	})
}

// Queue is a bounded in-memory queue fed by the API layer. It is safe
// for concurrent producers; consumers range over Out() or use RunWorker.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var opPool = sync.Pool{New: func() any { return &Op{} }}
var itemPool = sync.Pool{New: func() any { return &Item{} }}

var (
	enqueueTotal     uint64
	enqueueFailTotal uint64
	enqSeq           uint64
)

// maxPooledBuffer controls the largest buffer returned to the pool.
// Larger buffers are dropped so GC can reclaim the underlying array.
var maxPooledBuffer = 256 * 1024

// SetMaxPooledBuffer overrides the pooled buffer cap (bytes).
func SetMaxPooledBuffer(n int) {
	if n > 0 {
		maxPooledBuffer = n
	}
}

// NewQueue creates a bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns a read-only view of the internal channel. Do not close it
// from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

// Len returns the number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns the number of ops rejected because the queue was full.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }

func (q *Queue) prepare(op *Op) (*Item, *bytebufferpool.ByteBuffer) {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	newOp.EnqSeq = atomic.AddUint64(&enqSeq, 1)
	var bb *bytebufferpool.ByteBuffer
	if len(op.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
	}
	it := itemPool.Get().(*Item)
	*it = Item{Op: newOp, buf: bb}
	return it, bb
}

// TryEnqueue copies the op (payload into a pooled buffer) and enqueues
// it without blocking. Returns ErrQueueFull when at capacity; the caller
// decides whether to reject or retry.
func (q *Queue) TryEnqueue(op *Op) error {
	atomic.AddUint64(&enqueueTotal, 1)
	it, bb := q.prepare(op)
	select {
	case q.ch <- it:
		return nil
	default:
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		opPool.Put(it.Op)
		atomic.AddUint64(&q.dropped, 1)
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or the context is done.
func (q *Queue) Enqueue(ctx context.Context, op *Op) error {
	atomic.AddUint64(&enqueueTotal, 1)
	it, bb := q.prepare(op)
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		opPool.Put(it.Op)
		atomic.AddUint64(&q.dropped, 1)
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ctx.Err()
	}
}

// RunWorker dequeues items and calls handler for each, calling
// Item.Done() always. Exits when stop closes.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Op)
			}(it)
		case <-stop:
			return
		}
	}
}

// RunBatchWorker drains up to batchSize items (waiting at most flush
// for stragglers after the first) and invokes handler once per batch.
func (q *Queue) RunBatchWorker(stop <-chan struct{}, batchSize int, flush time.Duration, handler func([]*Op) error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	if flush <= 0 {
		flush = 5 * time.Millisecond
	}
	for {
		var items []*Item

		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			items = append(items, it)
		case <-stop:
			return
		}

		timer := time.NewTimer(flush)
	collect:
		for len(items) < batchSize {
			select {
			case it, ok := <-q.ch:
				if !ok {
					break collect
				}
				items = append(items, it)
			case <-timer.C:
				break collect
			case <-stop:
				timer.Stop()
				for _, it := range items {
					it.Done()
				}
				return
			}
		}
		timer.Stop()

		ops := make([]*Op, len(items))
		for i, it := range items {
			ops[i] = it.Op
		}
		_ = handler(ops)
		for _, it := range items {
			it.Done()
		}
	}
}

// Stats reports enqueue accounting for monitoring.
func Stats() (total, failed uint64) {
	return atomic.LoadUint64(&enqueueTotal), atomic.LoadUint64(&enqueueFailTotal)
}
