package api

import (
	"net/http"
	"runtime"
	"time"
)

// StatsProvider exposes service counters for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the service counters together with process figures.
type StatsHandler struct {
	statsProvider StatsProvider
	startedAt     time.Time
}

type statsResponse struct {
	Service       map[string]interface{} `json:"service"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Goroutines    int                    `json:"goroutines"`
	HeapBytes     uint64                 `json:"heap_bytes"`
}

// NewStatsHandler creates a new stats handler; uptime counts from now.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, startedAt: time.Now()}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeJSON(w, http.StatusOK, statsResponse{
		Service:       h.statsProvider.GetStats(),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapBytes:     m.HeapAlloc,
	})
}
