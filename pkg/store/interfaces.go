package store

import (
	"context"
	"time"

	"curbcast/pkg/model"
)

// SpotStore reads the static curb-spot catalogue.
type SpotStore interface {
	ListSpots(ctx context.Context) ([]model.Spot, error)
}

// MeterStore reads the parking meter catalogue.
type MeterStore interface {
	ListMeters(ctx context.Context) ([]model.Meter, error)
}

// PatternStore reads pre-aggregated hourly meter patterns.
// Month 0 selects the all-month aggregate.
type PatternStore interface {
	GetPattern(ctx context.Context, postID string, dow, hour, month int) (*model.HourlyPattern, error)
}

// SignalStore reads and writes real-time signal rows.
type SignalStore interface {
	// LatestSignal returns the newest non-expired signal of the given kind
	// for a neighborhood key, or nil when none exists. An empty
	// neighborhood matches any (used for weather).
	LatestSignal(ctx context.Context, kind, neighborhood string, now time.Time) (*model.Signal, error)
	InsertSignal(ctx context.Context, s *model.Signal) error
}

// GarageStore reads and writes garages and their availability stream.
type GarageStore interface {
	ListGarages(ctx context.Context) ([]model.Garage, error)
	UpsertGarage(ctx context.Context, g *model.Garage) error
	InsertAvailability(ctx context.Context, garageID string, ts time.Time, available int) error
}

// ReportStore appends crowd reports.
type ReportStore interface {
	InsertReport(ctx context.Context, r *model.CrowdReport) (int64, error)
}

// ZoneStore reads manual zone overrides.
type ZoneStore interface {
	GetZoneOverride(ctx context.Context, spotID int64) (string, bool, error)
}

// SweepingStore reads persisted street-sweeping schedules.
type SweepingStore interface {
	RulesForStreet(ctx context.Context, street string) ([]model.SweepingRule, error)
}

// SignStore reads sign detections and regulations inside a bounding box.
type SignStore interface {
	SignsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]model.SignFeature, error)
	RegulationsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]model.Regulation, error)
}

// Pinger reports storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store composes all sub-interfaces for full store access. Consumers
// should depend on specific sub-interfaces when possible.
type Store interface {
	SpotStore
	MeterStore
	PatternStore
	SignalStore
	GarageStore
	ReportStore
	ZoneStore
	SweepingStore
	SignStore
	Pinger

	Close() error
}
