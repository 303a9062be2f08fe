package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/knsan189/imageLabeler/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

const readinessTimeout = 5 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	LastCycle string `json:"lastCycle,omitempty"`
	LastError string `json:"lastError,omitempty"`
	InFlight  int    `json:"inFlight"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports process health. Poll mode is "starting" until the
// first cycle finished and "degraded" while the last cycle failed.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Mode:         h.deps.Mode,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if h.deps.InFlight != nil {
		response.InFlight = h.deps.InFlight.Len()
	}

	if h.deps.Loop != nil {
		st := h.deps.Loop.Status()
		switch {
		case st.LastError != "":
			response.Status = statusDegraded
			response.LastError = st.LastError
		case st.Cycles == 0:
			response.Status = statusStarting
		}
		if !st.LastCycle.IsZero() {
			response.LastCycle = st.LastCycle.Format(time.RFC3339)
		}
	}

	respond(w, http.StatusOK, response)
}

// LivenessCheck answers 200 while the process serves requests. HEAD gets
// headers only.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	var body any
	if r.Method != http.MethodHead {
		body = statusBody{Status: "alive"}
	}
	respond(w, http.StatusOK, body)
}

// ReadinessCheck returns 200 only when the photo index answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.deps.Index != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := h.deps.Index.Ping(ctx); err != nil {
			respond(w, http.StatusServiceUnavailable, statusBody{Status: "not_ready", Error: err.Error()})
			return
		}
	}
	respond(w, http.StatusOK, statusBody{Status: "ready"})
}

// GetVersion returns the build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, startup.GetBuildInfo())
}
