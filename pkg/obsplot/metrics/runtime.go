package metrics

import (
	"runtime"
	"time"
)

// RuntimeStats is a snapshot of the serving process, reported next to the
// render stats so a slow dashboard can be told apart from a slow spec.
type RuntimeStats struct {
	HeapAlloc     uint64    `json:"heap_alloc"`
	HeapInuse     uint64    `json:"heap_inuse"`
	HeapObjects   uint64    `json:"heap_objects"`
	Sys           uint64    `json:"sys"`
	NumGC         uint32    `json:"num_gc"`
	PauseTotalNs  uint64    `json:"pause_total_ns"`
	GCCPUFraction float64   `json:"gc_cpu_fraction"`
	NumGoroutine  int       `json:"num_goroutine"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReadRuntime reads the current memory and scheduler counters.
func ReadRuntime() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		HeapAlloc:     m.HeapAlloc,
		HeapInuse:     m.HeapInuse,
		HeapObjects:   m.HeapObjects,
		Sys:           m.Sys,
		NumGC:         m.NumGC,
		PauseTotalNs:  m.PauseTotalNs,
		GCCPUFraction: m.GCCPUFraction,
		NumGoroutine:  runtime.NumGoroutine(),
		Timestamp:     time.Now(),
	}
}

func (s RuntimeStats) HeapAllocMB() float64 {
	return float64(s.HeapAlloc) / (1024 * 1024)
}
