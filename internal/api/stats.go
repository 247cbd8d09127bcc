package api

import (
	"context"
	"net/http"
	"runtime"

	"github.com/smalyshev/TabulistBot/pkg/core"
	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/tracker"
)

// StatusCounter counts records per status.
type StatusCounter interface {
	CountByStatus(ctx context.Context, wiki string) (map[model.Status]int, error)
}

// RefreshReporter exposes the last scheduled refresh.
type RefreshReporter interface {
	Last() *core.RefreshReport
}

type StatsHandler struct {
	wiki    string
	tracker *tracker.Tracker
	store   StatusCounter
	refresh RefreshReporter
}

// NewStatsHandler creates the stats endpoint. refresh may be nil.
func NewStatsHandler(wiki string, t *tracker.Tracker, st StatusCounter, refresh RefreshReporter) *StatsHandler {
	return &StatsHandler{wiki: wiki, tracker: t, store: st, refresh: refresh}
}

type ProviderStatsDTO struct {
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	APIRetries    int64 `json:"api_retries"`
	SuccessRate   int64 `json:"success_rate"`
}

type RuntimeStats struct {
	MemoryMB   uint64 `json:"memory_mb"`
	Goroutines int    `json:"goroutines"`
}

type StatsResponse struct {
	Wiki        string                      `json:"wiki"`
	Pages       map[model.Status]int        `json:"pages"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	Runtime     RuntimeStats                `json:"runtime"`
	LastRefresh *core.RefreshReport         `json:"last_refresh,omitempty"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByStatus(r.Context(), h.wiki)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Wiki:      h.wiki,
		Pages:     counts,
		Providers: make(map[string]ProviderStatsDTO),
		Runtime: RuntimeStats{
			MemoryMB:   bToMb(mem.Alloc),
			Goroutines: runtime.NumGoroutine(),
		},
	}
	if h.refresh != nil {
		resp.LastRefresh = h.refresh.Last()
	}

	for provider, stats := range h.tracker.Snapshot() {
		total := stats.APISuccess + stats.APIFailures
		rate := int64(0)
		if total > 0 {
			rate = (stats.APISuccess * 100) / total
		}
		resp.Providers[provider] = ProviderStatsDTO{
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			APIRetries:    stats.APIRetries,
			SuccessRate:   rate,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
