package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// RunStatus summarizes the most recent scheduled run.
type RunStatus struct {
	RunID    string    `json:"run_id"`
	Success  bool      `json:"success"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
	Error    string    `json:"error,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version"`
	Schedule  string       `json:"schedule"`
	Running   bool         `json:"running"`
	Runs      int64        `json:"runs"`
	LastRun   *RunStatus   `json:"last_run,omitempty"`
}

// Health reports degraded while the most recent run failed.
func (d *Daemon) Health() HealthResponse {
	d.mu.RLock()
	last := d.lastRun
	d.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(d.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Schedule:  d.scheduler.Current(),
		Running:   d.running.Load(),
		Runs:      d.runs.Load(),
	}
	if last != nil {
		copied := *last
		resp.LastRun = &copied
		if !last.Success {
			resp.Status = HealthStatusDegraded
		}
	}
	return resp
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(d.Health())
}
