package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Minimal, low-overhead request telemetry. By default only slow
// requests are logged; full span traces are recorded for a very small
// sample of requests.

type ctxKeyType struct{}

var (
	writerOnce    sync.Once
	writerCh      chan []byte
	requestCtr    uint64
	spanCtr       uint64
	sampleEvery   uint64 = 1000 // record a full trace for 1 in N requests
	slowThreshold        = 200 * time.Millisecond
	stateDir             = "./state"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bazarchat_http_request_duration_seconds",
	Help:    "HTTP request latency by method and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "status"})

// SetStateDir points the background writer at the server's state
// directory. Call before the first request.
func SetStateDir(dir string) {
	if dir != "" {
		stateDir = dir
	}
}

// Span is a single operation relative to request start (milliseconds).
type Span struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Op       string `json:"op"`
	StartMs  int64  `json:"start_ms"`
	Duration int64  `json:"duration_ms"`
}

// Telemetry holds the per-request trace and metadata.
type Telemetry struct {
	RequestID string `json:"request_id"`
	Op        string `json:"op"`
	Duration  int64  `json:"duration_ms"`
	Status    int    `json:"status"`
	Spans     []Span `json:"spans,omitempty"`

	startTime time.Time
	mu        sync.Mutex
	spanStack []string
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func genRequestID() string {
	return fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), atomic.AddUint64(&requestCtr, 1))
}

func genSpanID() string {
	return fmt.Sprintf("span-%d", atomic.AddUint64(&spanCtr, 1))
}

// initWriter lazily starts a background writer appending JSON lines to
// <state>/telemetry/telemetry.jsonl. Best-effort: if the file cannot
// be opened, records are dropped.
func initWriter() {
	writerCh = make(chan []byte, 1024)
	go func() {
		dir := filepath.Join(stateDir, "telemetry")
		_ = os.MkdirAll(dir, 0o755)
		f, err := os.OpenFile(filepath.Join(dir, "telemetry.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		for b := range writerCh {
			_, _ = f.Write(append(b, '\n'))
		}
	}()
}

func enqueue(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	writerOnce.Do(initWriter)
	select {
	case writerCh <- b:
	default:
		// drop rather than block the request path
	}
}

// Middleware records request timing, the latency histogram and sampled
// span traces.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := genRequestID()
		n := atomic.LoadUint64(&requestCtr)
		sampled := sampleEvery > 0 && n%sampleEvery == 0

		var tel *Telemetry
		if sampled {
			tel = &Telemetry{RequestID: reqID, Op: r.URL.Path, startTime: start}
			rootID := genSpanID()
			tel.Spans = append(tel.Spans, Span{ID: rootID, Op: tel.Op})
			tel.spanStack = append(tel.spanStack, rootID)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyType{}, tel))
		}

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)

		dur := time.Since(start)
		requestDuration.WithLabelValues(r.Method, fmt.Sprintf("%d", srw.status)).Observe(dur.Seconds())

		if tel != nil {
			tel.mu.Lock()
			tel.Status = srw.status
			tel.Duration = dur.Milliseconds()
			tel.mu.Unlock()
			enqueue(tel)
			return
		}
		if dur > slowThreshold {
			enqueue(map[string]any{
				"request_id":  reqID,
				"op":          r.URL.Path,
				"duration_ms": dur.Milliseconds(),
				"status":      srw.status,
			})
		}
	})
}

// StartSpan returns an end function for a named span. When the request
// is not sampled the returned func is a no-op.
func StartSpan(ctx context.Context, name string) func() {
	v := ctx.Value(ctxKeyType{})
	if v == nil {
		return func() {}
	}
	tel, ok := v.(*Telemetry)
	if !ok {
		return func() {}
	}
	startRel := time.Since(tel.startTime).Milliseconds()
	id := genSpanID()

	tel.mu.Lock()
	parent := ""
	if len(tel.spanStack) > 0 {
		parent = tel.spanStack[len(tel.spanStack)-1]
	}
	tel.Spans = append(tel.Spans, Span{ID: id, ParentID: parent, Op: name, StartMs: startRel})
	tel.spanStack = append(tel.spanStack, id)
	idx := len(tel.Spans) - 1
	tel.mu.Unlock()

	return func() {
		endRel := time.Since(tel.startTime).Milliseconds()
		tel.mu.Lock()
		if idx < len(tel.Spans) {
			tel.Spans[idx].Duration = endRel - tel.Spans[idx].StartMs
		}
		if len(tel.spanStack) > 0 {
			tel.spanStack = tel.spanStack[:len(tel.spanStack)-1]
		}
		tel.mu.Unlock()
	}
}
