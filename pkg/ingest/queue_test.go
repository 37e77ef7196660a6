package ingest

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryEnqueueFullQueue(t *testing.T) {
	q := NewQueue(2)
	op := &Op{Type: OpCreate, ChatID: "c1", Payload: []byte(`{"id":"m"}`)}

	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if err := q.TryEnqueue(op); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestEnqueueRespectsContext(t *testing.T) {
	q := NewQueue(1)
	op := &Op{Type: OpCreate, ChatID: "c1"}
	if err := q.TryEnqueue(op); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, op); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerDrainsInOrder(t *testing.T) {
	q := NewQueue(16)
	payloads := []string{"a", "b", "c"}
	for _, p := range payloads {
		if err := q.TryEnqueue(&Op{Type: OpCreate, ChatID: "c1", Payload: []byte(p)}); err != nil {
			t.Fatalf("enqueue %s: %v", p, err)
		}
	}

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		q.RunWorker(stop, func(op *Op) error {
			mu.Lock()
			got = append(got, string(op.Payload))
			if len(got) == len(payloads) {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not drain the queue")
	}
	close(stop)

	mu.Lock()
	defer mu.Unlock()
	for i, p := range payloads {
		if got[i] != p {
			t.Fatalf("order broken at %d: got %q want %q", i, got[i], p)
		}
	}
}

func TestEnqueueAssignsMonotonicSeq(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 3; i++ {
		if err := q.TryEnqueue(&Op{Type: OpCreate, ChatID: "c1"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	var last uint64
	for i := 0; i < 3; i++ {
		it := <-q.Out()
		if it.Op.EnqSeq <= last {
			t.Fatalf("enqueue sequence not monotonic: %d after %d", it.Op.EnqSeq, last)
		}
		last = it.Op.EnqSeq
		it.Done()
	}
}
