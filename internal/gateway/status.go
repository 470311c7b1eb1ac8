package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime       time.Duration `json:"uptime_seconds"`
	Store        string        `json:"store"`
	StoreError   string        `json:"store_error,omitempty"`
	Scheduler    string        `json:"scheduler"`
	Jobs         int           `json:"jobs"`
	JobsInFlight int64         `json:"jobs_in_flight"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    time.Since(g.startedAt).Truncate(time.Second) / time.Second,
			Store:     "ok",
			Scheduler: "absent",
		}

		if err := g.handle.Err(); err != nil {
			resp.Store = "unavailable"
			resp.StoreError = err.Error()
		}

		if g.scheduler != nil {
			resp.Scheduler = g.scheduler.State().String()
			resp.Jobs = len(g.scheduler.Jobs())
			resp.JobsInFlight = g.scheduler.InFlight()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
