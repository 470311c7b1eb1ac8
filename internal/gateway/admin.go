package gateway

import (
	"net/http"

	"github.com/flemzord/rollcall/internal/cron"
	"github.com/go-chi/chi/v5"
)

// handleListJobs returns every registered job, soonest first.
func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := []cron.JobInfo{}
		if g.scheduler != nil {
			jobs = append(jobs, g.scheduler.Jobs()...)
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

// handleGetJob returns a single job by its id.
func (g *Gateway) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := cron.ParseJobID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}
		if g.scheduler == nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		info, ok := g.scheduler.Job(id)
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}
