package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPMetrics counts requests served by the dashboard, overall and per path.
type HTTPMetrics struct {
	requestCount      int64
	errorCount        int64
	totalResponseTime int64 // nanoseconds
	maxResponseTime   int64 // nanoseconds
	pendingRequests   int64
	startTime         time.Time

	mu         sync.Mutex
	byPath     map[string]int64
	samples    []int64
	next       int
	maxSamples int
}

func NewHTTPMetrics(maxSamples int) *HTTPMetrics {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &HTTPMetrics{
		byPath:     make(map[string]int64),
		samples:    make([]int64, 0, maxSamples),
		maxSamples: maxSamples,
		startTime:  time.Now(),
	}
}

type HTTPStats struct {
	RequestCount    int64            `json:"request_count"`
	ErrorCount      int64            `json:"error_count"`
	ErrorRate       float64          `json:"error_rate"`        // percent
	RequestRate     float64          `json:"request_rate"`      // per second
	AvgResponseTime int64            `json:"avg_response_time"` // nanoseconds
	MaxResponseTime int64            `json:"max_response_time"` // nanoseconds
	PendingRequests int64            `json:"pending_requests"`
	ByPath          map[string]int64 `json:"by_path"`
	Timestamp       time.Time        `json:"timestamp"`
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: %T does not support hijacking", rw.ResponseWriter)
	}
	return hj.Hijack()
}

func (h *HTTPMetrics) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&h.pendingRequests, 1)
		defer atomic.AddInt64(&h.pendingRequests, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start).Nanoseconds()
		atomic.AddInt64(&h.requestCount, 1)
		atomic.AddInt64(&h.totalResponseTime, elapsed)
		for {
			current := atomic.LoadInt64(&h.maxResponseTime)
			if elapsed <= current || atomic.CompareAndSwapInt64(&h.maxResponseTime, current, elapsed) {
				break
			}
		}
		if rec.status >= 400 {
			atomic.AddInt64(&h.errorCount, 1)
		}

		h.mu.Lock()
		h.byPath[r.URL.Path]++
		if len(h.samples) < h.maxSamples {
			h.samples = append(h.samples, elapsed)
		} else {
			h.samples[h.next] = elapsed
			h.next = (h.next + 1) % h.maxSamples
		}
		h.mu.Unlock()
	}
}

func (h *HTTPMetrics) GetStats() HTTPStats {
	requestCount := atomic.LoadInt64(&h.requestCount)
	errorCount := atomic.LoadInt64(&h.errorCount)

	stats := HTTPStats{
		RequestCount:    requestCount,
		ErrorCount:      errorCount,
		MaxResponseTime: atomic.LoadInt64(&h.maxResponseTime),
		PendingRequests: atomic.LoadInt64(&h.pendingRequests),
		ByPath:          make(map[string]int64),
		Timestamp:       time.Now(),
	}
	if requestCount > 0 {
		stats.ErrorRate = float64(errorCount) / float64(requestCount) * 100
		stats.AvgResponseTime = atomic.LoadInt64(&h.totalResponseTime) / requestCount
		if uptime := time.Since(h.startTime); uptime > 0 {
			stats.RequestRate = float64(requestCount) / uptime.Seconds()
		}
	}

	h.mu.Lock()
	for path, n := range h.byPath {
		stats.ByPath[path] = n
	}
	h.mu.Unlock()
	return stats
}

// GetResponseTimeSamples returns a copy of the retained response times.
func (h *HTTPMetrics) GetResponseTimeSamples() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	samples := make([]int64, len(h.samples))
	copy(samples, h.samples)
	return samples
}
