package gateway

import (
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`    // "ok" or "degraded"
	Store     string `json:"store"`     // "ok" or "unavailable"
	Scheduler string `json:"scheduler"` // scheduler state, or "absent"
	Jobs      int    `json:"jobs"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the store is reachable, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Store:     "ok",
			Scheduler: "absent",
		}

		if !g.handle.Available() {
			resp.Status = "degraded"
			resp.Store = "unavailable"
		}

		if g.scheduler != nil {
			resp.Scheduler = g.scheduler.State().String()
			resp.Jobs = len(g.scheduler.Jobs())
		}

		status := http.StatusOK
		if resp.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
