package metrics

import (
	"sync"
	"time"
)

// RenderSample is the outcome of one build.
type RenderSample struct {
	Sequence  int64         `json:"sequence"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func (s RenderSample) Failed() bool { return s.Error != "" }

type RenderStats struct {
	Count       int64         `json:"count"`
	Failures    int64         `json:"failures"`
	FailureRate float64       `json:"failure_rate"` // percent
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
	LastError   string        `json:"last_error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// RenderCollector records build outcomes and keeps the most recent ones.
type RenderCollector struct {
	mu         sync.RWMutex
	history    []RenderSample
	maxHistory int

	count     int64
	failures  int64
	total     time.Duration
	max       time.Duration
	lastError string
}

func NewRenderCollector(maxHistory int) *RenderCollector {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &RenderCollector{
		history:    make([]RenderSample, 0, maxHistory),
		maxHistory: maxHistory,
	}
}

// ObserveRender records one build.
func (rc *RenderCollector) ObserveRender(d time.Duration, err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.count++
	rc.total += d
	if d > rc.max {
		rc.max = d
	}
	sample := RenderSample{Sequence: rc.count, Duration: d, Timestamp: time.Now()}
	if err != nil {
		rc.failures++
		rc.lastError = err.Error()
		sample.Error = rc.lastError
	}

	rc.history = append(rc.history, sample)
	if len(rc.history) > rc.maxHistory {
		copy(rc.history, rc.history[1:])
		rc.history = rc.history[:rc.maxHistory]
	}
}

// GetCurrent returns the latest sample, or false before the first build.
func (rc *RenderCollector) GetCurrent() (RenderSample, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if len(rc.history) == 0 {
		return RenderSample{}, false
	}
	return rc.history[len(rc.history)-1], true
}

func (rc *RenderCollector) GetHistory() []RenderSample {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	history := make([]RenderSample, len(rc.history))
	copy(history, rc.history)
	return history
}

// GetHistoryWindow returns the samples recorded within the last duration.
func (rc *RenderCollector) GetHistoryWindow(duration time.Duration) []RenderSample {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	cutoff := time.Now().Add(-duration)
	result := []RenderSample{}
	for _, s := range rc.history {
		if s.Timestamp.After(cutoff) {
			result = append(result, s)
		}
	}
	return result
}

func (rc *RenderCollector) GetStats() RenderStats {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	stats := RenderStats{
		Count:       rc.count,
		Failures:    rc.failures,
		MaxDuration: rc.max,
		LastError:   rc.lastError,
		Timestamp:   time.Now(),
	}
	if rc.count > 0 {
		stats.FailureRate = float64(rc.failures) / float64(rc.count) * 100
		stats.AvgDuration = rc.total / time.Duration(rc.count)
	}
	return stats
}

// GetAverageDuration averages build time over the samples in the window.
func (rc *RenderCollector) GetAverageDuration(window time.Duration) time.Duration {
	history := rc.GetHistoryWindow(window)
	if len(history) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range history {
		sum += s.Duration
	}
	return sum / time.Duration(len(history))
}
