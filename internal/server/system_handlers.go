package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"carteira/internal/database"
	"carteira/internal/scheduler"
)

// SystemHandlers provides system monitoring endpoints
type SystemHandlers struct {
	log            zerolog.Logger
	dataDir        string
	db             *database.DB
	startedAt      time.Time
	sched          *scheduler.Scheduler
	stalenessCheck scheduler.Job
	cachePrune     scheduler.Job
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, db *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		db:        db,
		startedAt: time.Now(),
	}
}

// SetJobs registers the scheduler and job instances for status
// reporting and manual triggering
func (h *SystemHandlers) SetJobs(sched *scheduler.Scheduler, stalenessCheck scheduler.Job, cachePrune scheduler.Job) {
	h.sched = sched
	h.stalenessCheck = stalenessCheck
	h.cachePrune = cachePrune
}

// SystemStatusResponse describes the system status payload
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
	Database      string  `json:"database"`
}

// DatabaseStatsResponse describes the database stats payload
type DatabaseStatsResponse struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	Integrity string  `json:"integrity"`
}

// HandleSystemStatus returns process and host resource usage
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuAvg, memPercent := h.resourceUsage()

	dbStatus := "ok"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Database health check failed")
		dbStatus = "error"
	}

	status := "healthy"
	if dbStatus != "ok" {
		status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        status,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuAvg,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Database:      dbStatus,
	})
}

// HandleDatabaseStats returns on-disk size and integrity of the database
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	sizeMB := 0.0
	if info, err := os.Stat(h.db.Path()); err == nil {
		sizeMB = float64(info.Size()) / 1024 / 1024
	}

	integrity := "ok"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		integrity = err.Error()
	}

	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Name:      h.db.Name(),
		Path:      h.db.Path(),
		SizeMB:    sizeMB,
		Integrity: integrity,
	})
}

// HandleJobsStatus lists the registered background jobs with their
// schedules and last run outcome
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.sched != nil {
		jobs = h.sched.Jobs()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleTriggerStalenessCheck triggers the price staleness job immediately
// POST /api/system/jobs/staleness-check
func (h *SystemHandlers) HandleTriggerStalenessCheck(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.stalenessCheck)
}

// HandleTriggerCachePrune triggers the cache prune job immediately
// POST /api/system/jobs/cache-prune
func (h *SystemHandlers) HandleTriggerCachePrune(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.cachePrune)
}

func (h *SystemHandlers) triggerJob(w http.ResponseWriter, job scheduler.Job) {
	if job == nil {
		http.Error(w, "Job not registered", http.StatusServiceUnavailable)
		return
	}

	go func() {
		// RunNow records the run and logs failures itself
		if h.sched != nil {
			_ = h.sched.RunNow(job)
			return
		}
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", job.Name()).Msg("Manually triggered job failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "triggered",
		"job":    job.Name(),
	})
}

// resourceUsage returns average CPU percentage and RAM usage percentage.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) resourceUsage() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
