package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesRunning    uint64
	AnalysesFailed     uint64
	ExportsTotal       uint64
	ExportsFailed      uint64
	ExportBytes        uint64
	StartTime          time.Time

	sessions atomic.Value // func() int
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// AnalysisStarted counts an analysis and marks it running; call the returned
// func with the outcome.
func AnalysisStarted() func(failed bool) {
	atomic.AddUint64(&globalMetrics.AnalysesTotal, 1)
	atomic.AddUint64(&globalMetrics.AnalysesRunning, 1)
	return func(failed bool) {
		atomic.AddUint64(&globalMetrics.AnalysesRunning, ^uint64(0))
		if failed {
			atomic.AddUint64(&globalMetrics.AnalysesFailed, 1)
		}
	}
}

// RecordExport counts one rendered artifact.
func RecordExport(size int, failed bool) {
	atomic.AddUint64(&globalMetrics.ExportsTotal, 1)
	if failed {
		atomic.AddUint64(&globalMetrics.ExportsFailed, 1)
		return
	}
	atomic.AddUint64(&globalMetrics.ExportBytes, uint64(size))
}

// TrackSessions registers the live session count.
func TrackSessions(fn func() int) {
	globalMetrics.sessions.Store(fn)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sessions := 0
	if fn, ok := globalMetrics.sessions.Load().(func() int); ok {
		sessions = fn()
	}
	exportBytes := atomic.LoadUint64(&globalMetrics.ExportBytes)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_running":     atomic.LoadUint64(&globalMetrics.AnalysesRunning),
		"analyses_failed":      atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"exports_total":        atomic.LoadUint64(&globalMetrics.ExportsTotal),
		"exports_failed":       atomic.LoadUint64(&globalMetrics.ExportsFailed),
		"export_bytes":         exportBytes,
		"export_bytes_human":   humanize.Bytes(exportBytes),
		"sessions_active":      sessions,
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"uptime":               humanize.RelTime(globalMetrics.StartTime, time.Now(), "", ""),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"alloc_human":       humanize.Bytes(m.Alloc),
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GetMetrics())
}
