package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"curbcast/pkg/engine"
	"curbcast/pkg/ensemble"
	"curbcast/pkg/geo"
)

// Request body limits and defaults for POST /predict.
const (
	defaultRadiusM = 500
	minRadiusM     = 50
	maxRadiusM     = 2000
	defaultLimit   = 50
	maxLimit       = 200
)

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	RadiusM *float64 `json:"radius_m"`
	Time    string   `json:"time"`
	Limit   *int     `json:"limit"`
	Tier    string   `json:"tier"`
}

// SpotPrediction is one scored spot in a predict response.
type SpotPrediction struct {
	SpotID         int64               `json:"spot_id"`
	Street         string              `json:"street"`
	Lat            float64             `json:"lat"`
	Lng            float64             `json:"lng"`
	PFree          float64             `json:"p_free"`
	GuaranteeLevel string              `json:"guarantee_level"`
	Confidence     ensemble.Confidence `json:"confidence"`
	TimeDecay      ensemble.DecayInfo  `json:"time_decay"`
	TurnoverRate   float64             `json:"turnover_rate"`
	ZoneType       string              `json:"zone_type"`
	Restrictions   []string            `json:"restrictions"`
	DistanceM      float64             `json:"distance_m"`
	Neighborhood   string              `json:"neighborhood"`
}

// GarageInfo is one off-street alternative in a predict response.
type GarageInfo struct {
	GarageID        string   `json:"garage_id"`
	Name            string   `json:"name"`
	Lat             float64  `json:"lat"`
	Lng             float64  `json:"lng"`
	TotalSpaces     int      `json:"total_spaces"`
	AvailableSpaces *int     `json:"available_spaces"`
	HourlyRate      float64  `json:"hourly_rate"`
	DistanceM       float64  `json:"distance_m"`
}

// PredictMeta carries timing and provenance for a response.
type PredictMeta struct {
	ModelVersion       string  `json:"model_version"`
	PredictionTimeMS   float64 `json:"prediction_time_ms"`
	TotalSpotsSearched int     `json:"total_spots_searched"`
	Timestamp          string  `json:"timestamp"`
}

// PredictResponse is the body of a successful POST /predict.
type PredictResponse struct {
	Predictions   []SpotPrediction `json:"predictions"`
	NearbyGarages []GarageInfo     `json:"nearby_garages"`
	Meta          PredictMeta      `json:"meta"`
}

// PredictHandler serves POST /predict.
type PredictHandler struct {
	eng *engine.Engine
}

// NewPredictHandler creates the predict handler.
func NewPredictHandler(eng *engine.Engine) *PredictHandler {
	return &PredictHandler{eng: eng}
}

// parseTimestamp accepts ISO-8601 with or without a zone offset.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid time format, use ISO 8601")
}

// validate applies defaults and range checks. Returns a user-facing
// message on failure.
func (req *PredictRequest) validate() (radiusM float64, limit int, tier string, msg string) {
	if req.Lat < -90 || req.Lat > 90 {
		return 0, 0, "", "lat must be in [-90, 90]"
	}
	if req.Lng < -180 || req.Lng > 180 {
		return 0, 0, "", "lng must be in [-180, 180]"
	}

	radiusM = defaultRadiusM
	if req.RadiusM != nil {
		radiusM = *req.RadiusM
	}
	if radiusM < minRadiusM || radiusM > maxRadiusM {
		return 0, 0, "", fmt.Sprintf("radius_m must be in [%d, %d]", minRadiusM, maxRadiusM)
	}

	limit = defaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, "", fmt.Sprintf("limit must be in [1, %d]", maxLimit)
	}

	tier = req.Tier
	if tier == "" {
		tier = "free"
	}
	if tier != "free" && tier != "pro" {
		return 0, 0, "", "tier must be 'free' or 'pro'"
	}
	return radiusM, limit, tier, ""
}

// Handle serves one prediction request: cache lookup, spatial query,
// per-spot scoring, privacy gating, garage lookup, caching.
func (h *PredictHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	radiusM, limit, tier, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	at, err := parseTimestamp(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if cached, ok := h.eng.Cache.Get(req.Lat, req.Lng, at, radiusM); ok {
		if resp, ok := cached.(*PredictResponse); ok {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	ctx := r.Context()
	center := geo.Point{Lat: req.Lat, Lng: req.Lng}
	preds, searched := h.eng.PredictArea(ctx, center, at, radiusM, limit)

	out := make([]SpotPrediction, 0, len(preds))
	for _, p := range preds {
		lat, lng := gateCoords(p.Spot.Lat, p.Spot.Lng, p.DistM, tier, &h.eng.Cfg.Privacy.ProTier)
		restrictions := p.Restrictions
		if restrictions == nil {
			restrictions = []string{}
		}
		out = append(out, SpotPrediction{
			SpotID:         p.Spot.SpotID,
			Street:         p.Spot.StreetName,
			Lat:            lat,
			Lng:            lng,
			PFree:          p.PFree,
			GuaranteeLevel: p.Guarantee,
			Confidence:     p.Confidence,
			TimeDecay:      p.Decay,
			TurnoverRate:   p.TurnoverRate,
			ZoneType:       p.ZoneType,
			Restrictions:   restrictions,
			DistanceM:      math.Round(p.DistM*10) / 10,
			Neighborhood:   p.Spot.Neighborhood,
		})
	}

	garages, err := h.eng.NearbyGarages(ctx, center, radiusM)
	if err != nil {
		slog.Error("garage lookup failed", "error", err)
		garages = nil // predictions still serve
	}
	garageInfos := make([]GarageInfo, 0, len(garages))
	for _, g := range garages {
		info := GarageInfo{
			GarageID:    g.Garage.GarageID,
			Name:        g.Garage.Name,
			Lat:         g.Garage.Lat,
			Lng:         g.Garage.Lng,
			TotalSpaces: g.Garage.TotalSpaces,
			HourlyRate:  g.Garage.HourlyRate,
			DistanceM:   math.Round(g.DistM*10) / 10,
		}
		if g.Garage.HasAvailability {
			avail := g.Garage.AvailableSpaces
			info.AvailableSpaces = &avail
		}
		garageInfos = append(garageInfos, info)
	}

	resp := &PredictResponse{
		Predictions:   out,
		NearbyGarages: garageInfos,
		Meta: PredictMeta{
			ModelVersion:       h.eng.Models.ModelVersion(),
			PredictionTimeMS:   math.Round(float64(time.Since(start).Microseconds())/100) / 10,
			TotalSpotsSearched: searched,
			Timestamp:          at.Format(time.RFC3339),
		},
	}

	h.eng.Cache.Put(req.Lat, req.Lng, at, radiusM, resp)
	writeJSON(w, http.StatusOK, resp)
}
