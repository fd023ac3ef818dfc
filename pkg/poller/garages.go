package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"time"

	"curbcast/pkg/model"
)

// defaultGaragesURL is the SFMTA open-data endpoint for off-street
// parking facilities.
const defaultGaragesURL = "https://data.sfgov.org/resource/uupn-yfaw.json"

// garageRow tolerates the endpoint's loose field naming; coordinates and
// numbers arrive as strings.
type garageRow struct {
	FacilityID   string `json:"facility_id"`
	FacilityName string `json:"facility_name"`
	Name         string `json:"name"`
	Latitude     string `json:"latitude"`
	Lat          string `json:"lat"`
	Longitude    string `json:"longitude"`
	Lng          string `json:"lng"`
	Lon          string `json:"lon"`
	TotalSpaces  string `json:"total_spaces"`
	HourlyRate   string `json:"hourly_rate"`
}

func (r *garageRow) id() string {
	if r.FacilityID != "" {
		return r.FacilityID
	}
	if r.FacilityName != "" {
		return r.FacilityName
	}
	return r.Name
}

func (r *garageRow) displayName() string {
	if r.FacilityName != "" {
		return r.FacilityName
	}
	return r.Name
}

func (r *garageRow) coords() (float64, float64, bool) {
	latStr := r.Latitude
	if latStr == "" {
		latStr = r.Lat
	}
	lngStr := r.Longitude
	if lngStr == "" {
		lngStr = r.Lng
	}
	if lngStr == "" {
		lngStr = r.Lon
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil || math.IsNaN(lat) || math.IsNaN(lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

// GaragesJob polls SFMTA garage data, upserting the garage catalogue and
// appending availability snapshots.
type GaragesJob struct {
	BaseJob
	deps Deps
	url  string
}

// NewGaragesJob creates the garages poller.
func NewGaragesJob(deps Deps) *GaragesJob {
	return &GaragesJob{
		BaseJob: NewBaseJob("garages"),
		deps:    deps,
		url:     defaultGaragesURL,
	}
}

func (j *GaragesJob) Interval() time.Duration {
	return j.deps.Cfg.Realtime.GaragesInterval.Std()
}

// Run fetches the garage list and writes catalogue rows plus one
// availability snapshot per garage with a known capacity.
func (j *GaragesJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	body, err := j.deps.Client.Get(ctx, j.url, nil)
	if err != nil {
		slog.Error("garage poll failed", "error", err)
		return
	}
	var rows []garageRow
	if err := json.Unmarshal(body, &rows); err != nil {
		slog.Error("garage payload decode failed", "error", err)
		return
	}

	now := time.Now()
	count := 0
	for i := range rows {
		r := &rows[i]
		lat, lng, ok := r.coords()
		if !ok || r.id() == "" {
			continue
		}
		total, _ := strconv.Atoi(r.TotalSpaces)
		rate, _ := strconv.ParseFloat(r.HourlyRate, 64)

		g := &model.Garage{
			GarageID:    r.id(),
			Name:        r.displayName(),
			Lat:         lat,
			Lng:         lng,
			TotalSpaces: total,
			HourlyRate:  rate,
			Source:      "sfpark",
		}
		if err := j.deps.Garages.UpsertGarage(ctx, g); err != nil {
			slog.Error("garage upsert failed", "garage_id", g.GarageID, "error", err)
			continue
		}
		if total > 0 {
			if err := j.deps.Garages.InsertAvailability(ctx, g.GarageID, now, total); err != nil {
				slog.Error("garage availability insert failed", "garage_id", g.GarageID, "error", err)
				continue
			}
		}
		count++
	}

	if count > 0 {
		j.deps.Cache.InvalidateAll()
		slog.Info("garages refreshed", "count", count)
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
