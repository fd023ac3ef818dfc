package features

import (
	"context"
	"math"
	"time"

	"curbcast/pkg/model"
)

// temporalSource emits the clock and calendar features. It reads nothing
// but the timestamp.
type temporalSource struct{}

func (temporalSource) Name() string { return "temporal" }

// mon0Weekday converts Go's Sun=0..Sat=6 weekday to Mon=0..Sun=6.
func mon0Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (temporalSource) Contribute(_ context.Context, _ *model.Spot, at time.Time, out *Set) error {
	h := at.Hour()
	hf := float64(h) + float64(at.Minute())/60.0
	dow := mon0Weekday(at)
	month := int(at.Month())
	weekday := dow < 5

	v := out.Values
	v["hour_sin"] = math.Sin(2 * math.Pi * float64(h) / 24)
	v["hour_cos"] = math.Cos(2 * math.Pi * float64(h) / 24)
	v["dow_sin"] = math.Sin(2 * math.Pi * float64(dow) / 7)
	v["dow_cos"] = math.Cos(2 * math.Pi * float64(dow) / 7)
	v["month_sin"] = math.Sin(2 * math.Pi * float64(month) / 12)
	v["month_cos"] = math.Cos(2 * math.Pi * float64(month) / 12)

	v["is_weekend"] = boolFeature(dow >= 5)
	v["is_rush_hour"] = boolFeature(weekday && ((h >= 7 && h < 9) || (h >= 16 && h < 19)))
	v["is_lunch"] = boolFeature(hf >= 11.5 && hf < 13.5)
	v["is_holiday"] = boolFeature(isUSHoliday(at))
	v["is_evening"] = boolFeature(h >= 18 && h < 23)
	v["is_overnight"] = boolFeature(h >= 23 || h < 6)
	// Meters run weekdays and Saturdays 9-18; free on Sundays.
	v["is_metered_hours"] = boolFeature((weekday || dow == 5) && h >= 9 && h < 18)

	v["minutes_since_midnight"] = float64(h*60 + at.Minute())
	v["hour_of_week"] = float64(dow*24 + h)
	v["is_sweeping_day"] = 0 // covered in detail by the sweeping family

	return nil
}

// fixedHolidays is (month, day) of the fixed-date US federal holidays.
var fixedHolidays = [][2]int{
	{1, 1},   // New Year's Day
	{6, 19},  // Juneteenth
	{7, 4},   // Independence Day
	{11, 11}, // Veterans Day
	{12, 25}, // Christmas
}

// floatingHolidays is (month, weekday, nth) with nth=-1 meaning last.
var floatingHolidays = []struct {
	month   time.Month
	weekday time.Weekday
	nth     int
}{
	{time.January, time.Monday, 3},    // MLK Day
	{time.February, time.Monday, 3},   // Presidents' Day
	{time.May, time.Monday, -1},       // Memorial Day
	{time.September, time.Monday, 1},  // Labor Day
	{time.October, time.Monday, 2},    // Indigenous Peoples' Day
	{time.November, time.Thursday, 4}, // Thanksgiving
}

func isUSHoliday(t time.Time) bool {
	m, d := int(t.Month()), t.Day()
	for _, fh := range fixedHolidays {
		if fh[0] == m && fh[1] == d {
			return true
		}
	}
	for _, fh := range floatingHolidays {
		if fh.month != t.Month() || fh.weekday != t.Weekday() {
			continue
		}
		if fh.nth == -1 {
			// Last occurrence of the weekday in the month.
			if t.AddDate(0, 0, 7).Month() != t.Month() {
				return true
			}
			continue
		}
		if (d-1)/7+1 == fh.nth {
			return true
		}
	}
	return false
}
