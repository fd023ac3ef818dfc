package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"curbcast/pkg/model"
)

const (
	defaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

	weatherExpiry = 30 * time.Minute

	// City-center point for the single weather call.
	sfLat = 37.7749
	sfLng = -122.4194
)

// weatherPayload is the signal value for the city-wide weather signal.
// Only is_raining and temperature_f feed the models; the rest is kept
// for display.
type weatherPayload struct {
	Raining      bool    `json:"is_raining"`
	TemperatureF float64 `json:"temperature_f"`
	Humidity     float64 `json:"humidity"`
	Condition    string  `json:"condition"`
	Description  string  `json:"description"`
	WindSpeedMPH float64 `json:"wind_speed_mph"`
}

type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// WeatherJob polls OpenWeatherMap for the city center.
type WeatherJob struct {
	BaseJob
	deps Deps
	url  string
}

// NewWeatherJob creates the weather poller.
func NewWeatherJob(deps Deps) *WeatherJob {
	return &WeatherJob{
		BaseJob: NewBaseJob("weather"),
		deps:    deps,
		url:     defaultWeatherURL,
	}
}

func (j *WeatherJob) Interval() time.Duration {
	return j.deps.Cfg.Realtime.WeatherInterval.Std()
}

// Run fetches the current conditions and writes one city-wide signal.
func (j *WeatherJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	apiKey := os.Getenv("OPENWEATHERMAP_API_KEY")
	if apiKey == "" {
		slog.Debug("weather poller idle, OPENWEATHERMAP_API_KEY not configured")
		return
	}

	params := url.Values{
		"lat":   {formatCoord(sfLat)},
		"lon":   {formatCoord(sfLng)},
		"appid": {apiKey},
		"units": {"imperial"},
	}
	var resp owmResponse
	if err := j.deps.Client.GetJSON(ctx, j.url, params, &resp); err != nil {
		slog.Error("weather poll failed", "error", err)
		return
	}

	var condition, description string
	if len(resp.Weather) > 0 {
		condition = resp.Weather[0].Main
		description = resp.Weather[0].Description
	}
	lower := strings.ToLower(condition)
	payload := weatherPayload{
		Raining:      lower == "rain" || lower == "drizzle" || lower == "thunderstorm",
		TemperatureF: resp.Main.Temp,
		Humidity:     resp.Main.Humidity,
		Condition:    condition,
		Description:  description,
		WindSpeedMPH: resp.Wind.Speed,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("weather payload encode failed", "error", err)
		return
	}

	now := time.Now()
	sig := &model.Signal{
		Kind:         model.SignalWeather,
		Lat:          sfLat,
		Lng:          sfLng,
		Neighborhood: "sf_global",
		ValueJSON:    string(raw),
		FetchedAt:    now,
		ExpiresAt:    now.Add(weatherExpiry),
	}
	if err := j.deps.Signals.InsertSignal(ctx, sig); err != nil {
		slog.Error("weather signal insert failed", "error", err)
		return
	}

	j.deps.Cache.InvalidateAll()
	slog.Info("weather signal refreshed", "condition", condition, "temperature_f", payload.TemperatureF)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
