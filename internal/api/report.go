package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"curbcast/pkg/engine"
	"curbcast/pkg/model"
)

// ReportRequest is the body of POST /report.
type ReportRequest struct {
	UserID     string   `json:"user_id"`
	SpotID     int64    `json:"spot_id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	ReportType string   `json:"report_type"`
	Confidence *float64 `json:"confidence"`
}

// ReportResponse acknowledges an accepted crowd report.
type ReportResponse struct {
	ReportID int64  `json:"report_id"`
	Message  string `json:"message"`
}

// ReportHandler serves POST /report.
type ReportHandler struct {
	eng *engine.Engine
}

// NewReportHandler creates the report handler.
func NewReportHandler(eng *engine.Engine) *ReportHandler {
	return &ReportHandler{eng: eng}
}

// Handle validates and appends one crowd report, then invalidates the
// prediction cache around it.
func (h *ReportHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.ReportType != model.ReportSpotFree && req.ReportType != model.ReportSpotTaken {
		writeError(w, http.StatusBadRequest, "report_type must be 'spot_free' or 'spot_taken'")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(w, http.StatusBadRequest, "lat/lng out of range")
		return
	}

	confidence := 0.5
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	if confidence < 0 || confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be in [0, 1]")
		return
	}

	userID := req.UserID
	if userID == "" {
		// Anonymous reporters still get a stable-looking opaque id.
		userID = "anon-" + uuid.NewString()
	}

	id, err := h.eng.SubmitReport(r.Context(), &model.CrowdReport{
		UserID:     userID,
		SpotID:     req.SpotID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		ReportType: req.ReportType,
		ReportedAt: time.Now(),
		Confidence: confidence,
	})
	if err != nil {
		slog.Error("crowd report insert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store report")
		return
	}

	writeJSON(w, http.StatusOK, &ReportResponse{ReportID: id, Message: "Report received"})
}
