package features

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"curbcast/pkg/model"
)

// unknownMinutes marks a sweeping interval that cannot be determined.
const unknownMinutes = 9999

// sweepingSideCodes encodes the curb side affected by sweeping.
var sweepingSideCodes = map[string]float64{
	"none":  0,
	"left":  1,
	"right": 2,
	"both":  3,
}

var timeRangePattern = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})`)

// sweepingSource emits street-sweeping features from the spot's schedule
// string, falling back to the persisted corridor schedule.
type sweepingSource struct {
	deps Deps
}

func (sweepingSource) Name() string { return "sweeping" }

func (s *sweepingSource) Contribute(ctx context.Context, spot *model.Spot, at time.Time, out *Set) error {
	v := out.Values
	v["is_sweeping_now"] = 0
	v["minutes_until_sweeping"] = unknownMinutes
	v["minutes_since_sweeping"] = unknownMinutes
	v["sweeping_side"] = sweepingSideCodes["none"]

	schedule := spot.SweepingSchedule
	if schedule == "" && spot.StreetName != "" {
		rules, err := s.deps.Sweeping.RulesForStreet(ctx, spot.StreetName)
		if err != nil {
			return err
		}
		schedule = scheduleFromRules(rules, at)
	}
	if schedule == "" {
		return nil
	}

	v["sweeping_side"] = sideFromSchedule(schedule)

	// Only today's entry matters for the live flags.
	if !strings.Contains(strings.ToLower(schedule), strings.ToLower(at.Format("Mon"))) {
		return nil
	}

	m := timeRangePattern.FindStringSubmatch(schedule)
	if m == nil {
		return nil
	}
	start := atoi(m[1])*60 + atoi(m[2])
	end := atoi(m[3])*60 + atoi(m[4])
	now := at.Hour()*60 + at.Minute()

	switch {
	case now < start:
		v["minutes_until_sweeping"] = float64(start - now)
	case now < end:
		v["is_sweeping_now"] = 1
		v["minutes_until_sweeping"] = 0
		v["minutes_since_sweeping"] = float64(now - start)
	default:
		v["minutes_since_sweeping"] = float64(now - end)
	}
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func sideFromSchedule(schedule string) float64 {
	lower := strings.ToLower(schedule)
	switch {
	case strings.Contains(lower, "both"):
		return sweepingSideCodes["both"]
	case strings.Contains(lower, "left"):
		return sweepingSideCodes["left"]
	case strings.Contains(lower, "right"):
		return sweepingSideCodes["right"]
	default:
		return sweepingSideCodes["none"]
	}
}

// scheduleFromRules synthesises a schedule string from persisted corridor
// rules, preferring a rule for today's weekday.
func scheduleFromRules(rules []model.SweepingRule, at time.Time) string {
	day := at.Format("Mon")
	for _, r := range rules {
		if strings.HasPrefix(r.Weekday, day) && r.StartTime != "" && r.EndTime != "" {
			return day + " " + r.StartTime + "-" + r.EndTime + " " + r.Side
		}
	}
	if len(rules) > 0 {
		r := rules[0]
		return r.Weekday + " " + r.StartTime + "-" + r.EndTime + " " + r.Side
	}
	return ""
}
