package api

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"curbcast/pkg/engine"
	"curbcast/pkg/ensemble"
	"curbcast/pkg/geo"
)

// BlockSummary aggregates predictions for one (street, neighborhood)
// block. No per-spot coordinates are exposed, so the endpoint is safe
// for every tier.
type BlockSummary struct {
	Street       string  `json:"street"`
	Neighborhood string  `json:"neighborhood"`
	TotalSpots   int     `json:"total_spots"`
	AvgPFree     float64 `json:"avg_p_free"`
	BestPFree    float64 `json:"best_p_free"`
	ZoneType     string  `json:"zone_type"`
}

// BlockResponse is the body of GET /blocks.
type BlockResponse struct {
	Blocks []BlockSummary `json:"blocks"`
	Meta   PredictMeta    `json:"meta"`
}

// BlockHandler serves GET /blocks.
type BlockHandler struct {
	eng *engine.Engine
}

// NewBlockHandler creates the blocks handler.
func NewBlockHandler(eng *engine.Engine) *BlockHandler {
	return &BlockHandler{eng: eng}
}

// Handle groups in-radius predictions by street and neighborhood and
// emits per-block aggregates sorted by average P(free) descending.
func (h *BlockHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, "lat must be a number in [-90, 90]")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "lng must be a number in [-180, 180]")
		return
	}
	radiusM := float64(defaultRadiusM)
	if s := q.Get("radius_m"); s != "" {
		if radiusM, err = strconv.ParseFloat(s, 64); err != nil {
			writeError(w, http.StatusBadRequest, "radius_m must be a number")
			return
		}
	}
	if radiusM < minRadiusM || radiusM > maxRadiusM {
		writeError(w, http.StatusBadRequest, "radius_m must be in [50, 2000]")
		return
	}

	at := time.Now()
	preds, searched := h.eng.PredictArea(r.Context(), geo.Point{Lat: lat, Lng: lng}, at, radiusM, maxLimit)

	type blockKey struct{ street, neighborhood string }
	groups := make(map[blockKey][]*ensemble.Prediction)
	var order []blockKey
	for _, p := range preds {
		street := p.Spot.StreetName
		if street == "" {
			street = "Unknown"
		}
		k := blockKey{street: street, neighborhood: p.Spot.Neighborhood}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}

	blocks := make([]BlockSummary, 0, len(order))
	for _, k := range order {
		ps := groups[k]
		sum, best := 0.0, 0.0
		for _, p := range ps {
			sum += p.PFree
			if p.PFree > best {
				best = p.PFree
			}
		}
		blocks = append(blocks, BlockSummary{
			Street:       k.street,
			Neighborhood: k.neighborhood,
			TotalSpots:   len(ps),
			AvgPFree:     math.Round(sum/float64(len(ps))*1000) / 1000,
			BestPFree:    math.Round(best*1000) / 1000,
			ZoneType:     ps[0].ZoneType,
		})
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].AvgPFree > blocks[j].AvgPFree })

	writeJSON(w, http.StatusOK, &BlockResponse{
		Blocks: blocks,
		Meta: PredictMeta{
			ModelVersion:       h.eng.Models.ModelVersion(),
			PredictionTimeMS:   math.Round(float64(time.Since(start).Microseconds())/100) / 10,
			TotalSpotsSearched: searched,
			Timestamp:          at.Format(time.RFC3339),
		},
	})
}
