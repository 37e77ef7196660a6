package ingest

import (
	"encoding/json"
	"sync"
	"time"

	"bazarchat/pkg/logger"
	"bazarchat/pkg/models"
	"bazarchat/pkg/store"
)

// DefaultQueue is the global queue used by the API layer. Replaced at
// startup by SetDefaultQueue; nil means inline mode (writes happen on
// the request goroutine).
var DefaultQueue *Queue

// SetDefaultQueue installs the queue used by Submit. Passing nil
// switches the pipeline to inline mode.
func SetDefaultQueue(q *Queue) { DefaultQueue = q }

// Submit hands a stored-bound message to the pipeline. In queued mode a
// full queue surfaces as ErrQueueFull; in inline mode the write happens
// synchronously before returning.
func Submit(typ OpType, msg models.Message) error {
	if DefaultQueue == nil {
		return applyMessage(typ, msg)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return DefaultQueue.TryEnqueue(&Op{
		Type:    typ,
		ChatID:  msg.ChatID,
		MsgID:   msg.ID,
		Payload: payload,
		TS:      msg.TS,
	})
}

// Processor drains the queue with a fixed pool of workers. With
// maxBatch > 1 each worker drains batches instead of single ops.
type Processor struct {
	q        *Queue
	workers  int
	maxBatch int
	flush    time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewProcessor builds a processor over q.
func NewProcessor(q *Queue, workers, maxBatch int, flush time.Duration) *Processor {
	if workers <= 0 {
		workers = 2
	}
	return &Processor{q: q, workers: workers, maxBatch: maxBatch, flush: flush, stop: make(chan struct{})}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if p.maxBatch > 1 {
				p.q.RunBatchWorker(p.stop, p.maxBatch, p.flush, handleBatch)
				return
			}
			p.q.RunWorker(p.stop, handleOp)
		}()
	}
	logger.Info("ingest_workers_started", "workers", p.workers, "max_batch", p.maxBatch)
}

func handleBatch(ops []*Op) error {
	for _, op := range ops {
		_ = handleOp(op)
	}
	return nil
}

// Stop signals the workers and waits for them to drain.
func (p *Processor) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func handleOp(op *Op) error {
	var m models.Message
	if err := json.Unmarshal(op.Payload, &m); err != nil {
		logger.Error("ingest_bad_payload", "chat", op.ChatID, "error", err)
		return err
	}
	return applyMessage(op.Type, m)
}

func applyMessage(typ OpType, m models.Message) error {
	switch typ {
	case OpCreate:
		if err := store.SaveMessage(m); err != nil {
			return err
		}
		FanoutInsert(m)
	case OpUpdate:
		if err := store.SaveMessage(m); err != nil {
			return err
		}
		FanoutUpdate(m)
	default:
		logger.Warn("ingest_unknown_op", "type", string(typ))
	}
	return nil
}
