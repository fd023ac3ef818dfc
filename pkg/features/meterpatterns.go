package features

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

// meterPatternSource emits features from the pre-aggregated hourly
// occupancy patterns of the meters around the spot.
type meterPatternSource struct {
	deps Deps
}

func (meterPatternSource) Name() string { return "meter_patterns" }

// lookupPattern tries the month-specific row first and falls back to the
// all-month aggregate (month 0).
func (s *meterPatternSource) lookupPattern(ctx context.Context, postID string, dowSQL, hour, month int) (*model.HourlyPattern, error) {
	p, err := s.deps.Patterns.GetPattern(ctx, postID, dowSQL, hour, month)
	if err != nil || p != nil {
		return p, err
	}
	return s.deps.Patterns.GetPattern(ctx, postID, dowSQL, hour, 0)
}

func (s *meterPatternSource) Contribute(ctx context.Context, spot *model.Spot, at time.Time, out *Set) error {
	v := out.Values
	for _, k := range []string{
		"nearest_meter_occupancy", "nearest_3_meter_avg", "block_avg_occupancy",
		"turnover_rate", "avg_session_duration", "occupancy_trend", "meter_sample_count",
	} {
		v[k] = math.NaN()
	}

	p := geo.Point{Lat: spot.Lat, Lng: spot.Lng}
	nearest := s.deps.Meters.Nearest(p, 3)
	if len(nearest) == 0 {
		return nil
	}

	hour := at.Hour()
	month := int(at.Month())
	// Pattern rows use the SQL convention Sun=0..Sat=6.
	dowSQL := (mon0Weekday(at) + 1) % 7

	var near3 []float64
	for i, m := range nearest {
		pat, err := s.lookupPattern(ctx, m.Meter.PostID, dowSQL, hour, month)
		if err != nil {
			return err
		}
		if pat == nil {
			continue
		}
		near3 = append(near3, pat.OccupancyRate)
		if i == 0 {
			v["nearest_meter_occupancy"] = pat.OccupancyRate
			v["turnover_rate"] = pat.TurnoverRate
			v["avg_session_duration"] = pat.AvgDuration
			v["meter_sample_count"] = float64(pat.SampleCount)

			// Trend against the prior hour's all-month rate, wrapping
			// across midnight (and the day boundary) as needed.
			prevHour := (hour + 23) % 24
			prevDow := dowSQL
			if hour == 0 {
				prevDow = (dowSQL + 6) % 7
			}
			if prior, err := s.deps.Patterns.GetPattern(ctx, m.Meter.PostID, prevDow, prevHour, 0); err == nil && prior != nil {
				v["occupancy_trend"] = pat.OccupancyRate - prior.OccupancyRate
			}
		}
	}
	if len(near3) > 0 {
		v["nearest_3_meter_avg"] = stat.Mean(near3, nil)
	}

	var block []float64
	for _, m := range nearest {
		if m.DistM > 100 {
			continue
		}
		if pat, err := s.lookupPattern(ctx, m.Meter.PostID, dowSQL, hour, month); err == nil && pat != nil {
			block = append(block, pat.OccupancyRate)
		}
	}
	// Widen to up to 10 meters on the block when the nearest 3 are all close.
	if len(block) == 3 {
		for _, m := range s.deps.Meters.Nearest(p, 10)[3:] {
			if m.DistM > 100 {
				break
			}
			if pat, err := s.lookupPattern(ctx, m.Meter.PostID, dowSQL, hour, month); err == nil && pat != nil {
				block = append(block, pat.OccupancyRate)
			}
		}
	}
	if len(block) > 0 {
		v["block_avg_occupancy"] = stat.Mean(block, nil)
	}

	return nil
}
