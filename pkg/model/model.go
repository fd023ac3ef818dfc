package model

import "time"

// Spot is a single on-street parking position from the static catalogue.
// Spots are immutable for the lifetime of the process.
type Spot struct {
	SpotID           int64
	Lat              float64
	Lng              float64
	StreetName       string
	Neighborhood     string
	TimeLimit        string
	Hours            string
	Days             string
	PermitZone       string
	SweepingSchedule string
	CurbColor        string
	ConfidenceScore  float64
	DataSources      string
	ZoneID           string
}

// Meter is a paid parking meter whose historical transactions drive the
// hourly occupancy patterns.
type Meter struct {
	PostID   string
	Lat      float64
	Lng      float64
	Corridor string
}

// HourlyPattern is a pre-aggregated occupancy pattern for one meter at one
// (day-of-week, hour) slot. Month 0 marks the all-month aggregate.
type HourlyPattern struct {
	MeterPostID   string
	DayOfWeek     int // 0=Sun .. 6=Sat (SQL convention)
	Hour          int
	Month         int // 1..12, or 0 for the all-month aggregate
	OccupancyRate float64
	AvgDuration   float64
	TurnoverRate  float64
	SampleCount   int
}

// Signal kinds stored in realtime_signals.
const (
	SignalTraffic = "traffic"
	SignalWeather = "weather"
	SignalEvent   = "event"
	SignalGarage  = "garage_availability"
)

// Signal is a timestamped real-time observation. Only the newest
// non-expired row per (kind, neighborhood) is consulted by the online path.
type Signal struct {
	SignalID     int64
	Kind         string
	Lat          float64
	Lng          float64
	Neighborhood string
	ValueJSON    string
	FetchedAt    time.Time
	ExpiresAt    time.Time
}

// Garage is an off-street parking facility.
type Garage struct {
	GarageID        string
	Name            string
	Lat             float64
	Lng             float64
	TotalSpaces     int
	HourlyRate      float64
	Source          string
	AvailableSpaces int  // latest availability snapshot
	HasAvailability bool // whether an availability row exists
}

// Report types accepted on the crowd-report path.
const (
	ReportSpotFree  = "spot_free"
	ReportSpotTaken = "spot_taken"
)

// CrowdReport is an append-only user observation of a spot.
type CrowdReport struct {
	ReportID   int64
	UserID     string
	SpotID     int64
	Lat        float64
	Lng        float64
	ReportType string
	ReportedAt time.Time
	Confidence float64
}

// SweepingRule is a persisted street-sweeping schedule row.
type SweepingRule struct {
	Corridor    string
	Side        string
	Weekday     string
	WeekOfMonth string
	StartTime   string
	EndTime     string
}

// SignFeature is a curbside sign detection.
type SignFeature struct {
	ObjectValue string
	Lat         float64
	Lng         float64
}

// Regulation is a parking regulation row near a point.
type Regulation struct {
	Regulation string
	TimeLimit  string
	Lat        float64
	Lng        float64
}

// ZoneClassification is a manual per-spot zone override.
type ZoneClassification struct {
	SpotID       int64
	ZoneType     string
	Confidence   float64
	ClassifiedBy string
}
