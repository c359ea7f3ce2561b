package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/stockfolio/internal/database"
	"github.com/aristath/stockfolio/internal/scheduler"
)

// JobRunner runs registered jobs on demand and reports their next run
type JobRunner interface {
	RunNow(job scheduler.Job) error
	Next(name string) (time.Time, bool)
}

// SystemHandlers handles system monitoring and operations endpoints
type SystemHandlers struct {
	databases map[string]*database.DB
	runner    JobRunner
	jobs      map[string]scheduler.Job
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	databases map[string]*database.DB,
	runner JobRunner,
	jobs map[string]scheduler.Job,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		databases: databases,
		runner:    runner,
		jobs:      jobs,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string           `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64            `json:"uptime_seconds"`
	Goroutines    int              `json:"goroutines"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	MemoryUsedMB  float64          `json:"memory_used_mb"`
	HeapAllocMB   float64          `json:"heap_alloc_mb"`
	Databases     []DatabaseStatus `json:"databases"`
	Jobs          []JobInfo        `json:"jobs"`
}

// DatabaseStatus describes one SQLite database
type DatabaseStatus struct {
	Name    string  `json:"name"`
	SizeMB  float64 `json:"size_mb"`
	WALMB   float64 `json:"wal_mb"`
	Healthy bool    `json:"healthy"`
	Error   string  `json:"error,omitempty"`
}

// JobInfo represents information about a single job
type JobInfo struct {
	Name      string `json:"name"`
	Scheduled bool   `json:"scheduled"`
	NextRun   string `json:"next_run,omitempty"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Jobs:          h.jobInfo(),
	}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	} else if len(percents) > 0 {
		response.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		response.MemoryPercent = vm.UsedPercent
		response.MemoryUsedMB = bytesToMB(int64(vm.Used))
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	response.HeapAllocMB = bytesToMB(int64(ms.HeapAlloc))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	response.Databases = h.databaseStatus(ctx)
	for _, db := range response.Databases {
		if !db.Healthy {
			response.Status = "degraded"
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": h.jobInfo()})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}. The job runs in the
// background; its outcome is logged.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown job %q", name)})
		return
	}

	go func() {
		if err := h.runner.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		}
	}()

	h.log.Info().Str("job", name).Msg("Job triggered")
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "job": name})
}

func (h *SystemHandlers) jobInfo() []JobInfo {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]JobInfo, 0, len(names))
	for _, name := range names {
		info := JobInfo{Name: name}
		if h.runner != nil {
			if next, ok := h.runner.Next(name); ok {
				info.Scheduled = true
				if !next.IsZero() {
					info.NextRun = next.Format(time.RFC3339)
				}
			}
		}
		out = append(out, info)
	}
	return out
}

func (h *SystemHandlers) databaseStatus(ctx context.Context) []DatabaseStatus {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DatabaseStatus, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		status := DatabaseStatus{
			Name:    name,
			SizeMB:  bytesToMB(fileSize(db.Path())),
			WALMB:   bytesToMB(fileSize(db.Path() + "-wal")),
			Healthy: true,
		}
		if err := db.QuickCheck(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
		}
		out = append(out, status)
	}
	return out
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func bytesToMB(n int64) float64 {
	return float64(n) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
