package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/reconciler"
	"github.com/knsan189/imageLabeler/internal/workers"
)

const (
	defaultRecent = 20
	maxRecent     = 500
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Mode     string             `json:"mode"`
	Uptime   string             `json:"uptime"`
	Loop     *reconciler.Status `json:"loop,omitempty"`
	Pool     *workers.Stats     `json:"pool,omitempty"`
	InFlight []string           `json:"inFlight,omitempty"`
	Outcomes map[string]int     `json:"outcomes,omitempty"`
	Recent   []database.Entry   `json:"recent,omitempty"`
}

// GetStatus returns loop, pool and ledger state. The recent query parameter
// bounds the number of ledger entries returned.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if v := r.URL.Query().Get("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(w, http.StatusBadRequest, "recent must be a non-negative integer")
			return
		}
		limit = min(n, maxRecent)
	}

	resp := StatusResponse{
		Mode:   h.deps.Mode,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.deps.Loop != nil {
		st := h.deps.Loop.Status()
		resp.Loop = &st
	}
	if h.deps.Pool != nil {
		st := h.deps.Pool.Stats()
		resp.Pool = &st
	}
	if h.deps.InFlight != nil {
		resp.InFlight = h.deps.InFlight.Keys()
	}

	if h.deps.Ledger != nil {
		ctx := r.Context()
		counts, err := h.deps.Ledger.CountOutcomes(ctx)
		if err != nil {
			logging.Error("status: count outcomes: %v", err)
			fail(w, http.StatusInternalServerError, "ledger unavailable")
			return
		}
		resp.Outcomes = counts

		if limit > 0 {
			recent, err := h.deps.Ledger.RecentEntries(ctx, limit)
			if err != nil {
				logging.Error("status: recent entries: %v", err)
				fail(w, http.StatusInternalServerError, "ledger unavailable")
				return
			}
			resp.Recent = recent
		}
	}

	respond(w, http.StatusOK, resp)
}

// TriggerScan starts a poll cycle or directory scan without waiting for
// the next scheduled one.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Trigger == nil {
		fail(w, http.StatusConflict, "scan trigger not available in "+h.deps.Mode+" mode")
		return
	}
	h.deps.Trigger()
	logging.Info("Scan triggered via API")

	respond(w, http.StatusAccepted, statusBody{Status: "scheduled"})
}
