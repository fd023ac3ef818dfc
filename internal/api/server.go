// Package api exposes the HTTP surface: POST /predict, GET /blocks,
// POST /report and GET /health.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// NewServer creates and configures the HTTP server.
func NewServer(addr string, predict *PredictHandler, blocks *BlockHandler, report *ReportHandler, health *HealthHandler) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /predict", predict.Handle)
	mux.HandleFunc("GET /blocks", blocks.Handle)
	mux.HandleFunc("POST /report", report.Handle)
	mux.HandleFunc("GET /health", health.Handle)

	return &http.Server{
		Addr:         addr,
		Handler:      withRequestLog(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// withRequestLog logs each request with its wall-clock duration.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request served",
			"method", r.Method, "path", r.URL.Path,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0)
	})
}

// writeJSON encodes a response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// errorBody is the JSON shape of all error responses.
type errorBody struct {
	Error string `json:"error"`
}

// writeError sends a JSON error with the given status. Validation
// failures are surfaced verbatim at 400; internal failures are logged
// and returned as 500.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
