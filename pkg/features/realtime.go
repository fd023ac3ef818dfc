package features

import (
	"context"
	"math"
	"time"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// eventRadiusM bounds the "events nearby" count around a spot.
const eventRadiusM = 500

// realtimeSource emits features from the live traffic, weather and event
// signals. Missing or expired signals leave NaN.
type realtimeSource struct {
	deps Deps
}

func (realtimeSource) Name() string { return "realtime" }

func (s *realtimeSource) Contribute(ctx context.Context, spot *model.Spot, at time.Time, out *Set) error {
	v := out.Values
	v["speed_ratio"] = math.NaN()
	v["congestion_level"] = math.NaN()
	v["speed_trend"] = math.NaN() // needs a historical diff the online path does not keep
	v["is_raining"] = math.NaN()
	v["temperature_f"] = math.NaN()
	v["events_within_500m"] = math.NaN()

	key := s.deps.Regions.KeyForSpot(spot)
	if key != "" {
		traffic, age, err := s.deps.Signals.Traffic(ctx, key, at)
		if err != nil {
			return err
		}
		if traffic != nil {
			v["speed_ratio"] = traffic.SpeedRatio
			v["congestion_level"] = traffic.CongestionCode()
			out.observeAge(age)
		}
	}

	weather, age, err := s.deps.Signals.Weather(ctx, at)
	if err != nil {
		return err
	}
	if weather != nil {
		v["is_raining"] = boolFeature(weather.IsRaining())
		v["temperature_f"] = weather.TemperatureF
		out.observeAge(age)
	}

	events, age, err := s.deps.Signals.Events(ctx, at)
	if err != nil {
		return err
	}
	if events != nil {
		center := geo.Point{Lat: spot.Lat, Lng: spot.Lng}
		n := 0
		for _, e := range events.Events {
			if geo.Distance(center, geo.Point{Lat: e.Lat, Lng: e.Lng}) <= eventRadiusM {
				n++
			}
		}
		v["events_within_500m"] = float64(n)
		out.observeAge(age)
	}

	return nil
}
