package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	m := NewHTTPMetrics(2)
	ok := m.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	bad := m.Middleware(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	})

	for i := 0; i < 3; i++ {
		ok(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/render", nil))
	}
	rec := httptest.NewRecorder()
	bad(rec, httptest.NewRequest(http.MethodPost, "/api/spec", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stats := m.GetStats()
	assert.Equal(t, int64(4), stats.RequestCount)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.InDelta(t, 25.0, stats.ErrorRate, 1e-9)
	assert.Equal(t, int64(0), stats.PendingRequests)
	assert.Equal(t, map[string]int64{"/api/render": 3, "/api/spec": 1}, stats.ByPath)
	assert.Len(t, m.GetResponseTimeSamples(), 2)
}

func TestHTTPStatsEmpty(t *testing.T) {
	stats := NewHTTPMetrics(0).GetStats()
	assert.Zero(t, stats.RequestCount)
	assert.Zero(t, stats.ErrorRate)
	assert.Empty(t, stats.ByPath)
}

func TestRenderCollector(t *testing.T) {
	rc := NewRenderCollector(3)
	_, ok := rc.GetCurrent()
	assert.False(t, ok)

	rc.ObserveRender(10*time.Millisecond, nil)
	rc.ObserveRender(30*time.Millisecond, errors.New("Invalid module: Bogus"))
	rc.ObserveRender(20*time.Millisecond, nil)
	rc.ObserveRender(40*time.Millisecond, nil)

	stats := rc.GetStats()
	assert.Equal(t, int64(4), stats.Count)
	assert.Equal(t, int64(1), stats.Failures)
	assert.InDelta(t, 25.0, stats.FailureRate, 1e-9)
	assert.Equal(t, 25*time.Millisecond, stats.AvgDuration)
	assert.Equal(t, 40*time.Millisecond, stats.MaxDuration)
	assert.Equal(t, "Invalid module: Bogus", stats.LastError)

	history := rc.GetHistory()
	require.Len(t, history, 3)
	assert.Equal(t, int64(2), history[0].Sequence)
	assert.True(t, history[0].Failed())
	assert.False(t, history[2].Failed())

	current, ok := rc.GetCurrent()
	require.True(t, ok)
	assert.Equal(t, int64(4), current.Sequence)

	assert.Len(t, rc.GetHistoryWindow(time.Minute), 3)
	assert.Equal(t, 30*time.Millisecond, rc.GetAverageDuration(time.Minute))
}

func TestReadRuntime(t *testing.T) {
	s := ReadRuntime()
	assert.Greater(t, s.HeapAlloc, uint64(0))
	assert.GreaterOrEqual(t, s.NumGoroutine, 1)
	assert.InDelta(t, float64(s.HeapAlloc)/(1024*1024), s.HeapAllocMB(), 1e-9)
	assert.WithinDuration(t, time.Now(), s.Timestamp, time.Second)
}
