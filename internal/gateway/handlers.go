package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/flemzord/rollcall/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const greeting = "Hello, world!\n"

// handleRoot returns the fixed greeting.
func (g *Gateway) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, greeting)
	}
}

// handleEcho returns the request body unchanged when it is valid UTF-8.
func (g *Gateway) handleEcho() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !utf8.Valid(body) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(body)
	}
}

// handleUser looks a user up by the "id" query parameter. When the key is
// repeated the last value wins.
func (g *Gateway) handleUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		g.logger.Debug("gateway: user lookup", "params", params)

		ids := params["id"]
		if len(ids) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id := ids[len(ids)-1]

		ctx, span := g.tracer.Start(r.Context(), "store.find_user",
			trace.WithAttributes(attribute.String("user.id", id)),
		)
		defer span.End()

		u, err := g.handle.FindFirstByID(ctx, id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, u)
		case errors.Is(err, store.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, store.ErrUnavailable):
			span.SetStatus(codes.Error, "store unavailable")
			g.logger.Warn("gateway: user lookup on unavailable store", "id", id, "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.logger.Error("gateway: user lookup failed", "id", id, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
