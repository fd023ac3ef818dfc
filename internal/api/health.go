package api

import (
	"net/http"

	"curbcast/pkg/engine"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	DBConnected  bool   `json:"db_connected"`
	SpotsIndexed int    `json:"spots_indexed"`
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	eng *engine.Engine
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(eng *engine.Engine) *HealthHandler {
	return &HealthHandler{eng: eng}
}

// Handle reports degraded when the occupancy model is missing or the
// database does not answer a ping. Prediction still serves in that
// state, on fallbacks.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	dbOK := h.eng.Store.Ping(r.Context()) == nil
	modelOK := h.eng.Models.Loaded()

	status := "ok"
	code := http.StatusOK
	if !dbOK || !modelOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	spots := 0
	if h.eng.Spots.Loaded() {
		spots = h.eng.Spots.Count()
	}

	writeJSON(w, code, &HealthResponse{
		Status:       status,
		ModelLoaded:  modelOK,
		DBConnected:  dbOK,
		SpotsIndexed: spots,
	})
}
