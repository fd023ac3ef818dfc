// Package signal reads the newest live real-time observation per kind and
// neighborhood and decodes its payload.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"curbcast/pkg/model"
	"curbcast/pkg/store"
)

// TrafficData is the decoded payload of a traffic signal.
type TrafficData struct {
	SpeedRatio      float64 `json:"speed_ratio"`
	AvgSpeedMPH     float64 `json:"avg_speed_mph"`
	CongestionLevel string  `json:"congestion_level"`
}

// CongestionCode encodes the congestion level as free=0, moderate=1,
// heavy=2. Unknown strings map to free.
func (t *TrafficData) CongestionCode() float64 {
	switch t.CongestionLevel {
	case "heavy":
		return 2
	case "moderate":
		return 1
	default:
		return 0
	}
}

// WeatherData is the decoded payload of a weather signal.
type WeatherData struct {
	Condition    string  `json:"condition"`
	Description  string  `json:"description"`
	TemperatureF float64 `json:"temperature_f"`
	Raining      bool    `json:"is_raining"`
}

// IsRaining reports rain either from the explicit flag or from the
// condition string.
func (w *WeatherData) IsRaining() bool {
	if w.Raining {
		return true
	}
	c := strings.ToLower(w.Condition)
	return strings.Contains(c, "rain") || strings.Contains(c, "drizzle") || strings.Contains(c, "thunderstorm")
}

// Event is a single upcoming event near a venue.
type Event struct {
	Name      string  `json:"name"`
	Venue     string  `json:"venue"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	StartTime string  `json:"start_time"`
}

// EventData is the decoded payload of an events signal.
type EventData struct {
	Events []Event `json:"events"`
}

// Reader resolves the newest non-expired signal per kind and decodes it.
type Reader struct {
	store store.SignalStore
}

// NewReader creates a reader over the given signal store.
func NewReader(s store.SignalStore) *Reader {
	return &Reader{store: s}
}

// Traffic returns the live traffic data for a neighborhood plus its age,
// or nil when no live signal exists.
func (r *Reader) Traffic(ctx context.Context, neighborhood string, now time.Time) (*TrafficData, time.Duration, error) {
	sig, err := r.store.LatestSignal(ctx, model.SignalTraffic, neighborhood, now)
	if err != nil || sig == nil {
		return nil, 0, err
	}
	var d TrafficData
	if err := json.Unmarshal([]byte(sig.ValueJSON), &d); err != nil {
		return nil, 0, fmt.Errorf("decode traffic signal %d: %w", sig.SignalID, err)
	}
	return &d, now.Sub(sig.FetchedAt), nil
}

// Weather returns the live city-wide weather data plus its age, or nil
// when no live signal exists. Weather is not keyed by neighborhood.
func (r *Reader) Weather(ctx context.Context, now time.Time) (*WeatherData, time.Duration, error) {
	sig, err := r.store.LatestSignal(ctx, model.SignalWeather, "", now)
	if err != nil || sig == nil {
		return nil, 0, err
	}
	var d WeatherData
	if err := json.Unmarshal([]byte(sig.ValueJSON), &d); err != nil {
		return nil, 0, fmt.Errorf("decode weather signal %d: %w", sig.SignalID, err)
	}
	return &d, now.Sub(sig.FetchedAt), nil
}

// Events returns the live upcoming-events data plus its age, or nil when
// no live signal exists.
func (r *Reader) Events(ctx context.Context, now time.Time) (*EventData, time.Duration, error) {
	sig, err := r.store.LatestSignal(ctx, model.SignalEvent, "", now)
	if err != nil || sig == nil {
		return nil, 0, err
	}
	var d EventData
	if err := json.Unmarshal([]byte(sig.ValueJSON), &d); err != nil {
		return nil, 0, fmt.Errorf("decode event signal %d: %w", sig.SignalID, err)
	}
	return &d, now.Sub(sig.FetchedAt), nil
}
