// Package engine owns the long-lived prediction state: spatial indexes,
// model artifacts, the feature assembler, the signal reader and the
// prediction cache. One Engine is constructed at startup and shared by
// the request handlers and the background pollers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"curbcast/pkg/config"
	"curbcast/pkg/ensemble"
	"curbcast/pkg/features"
	"curbcast/pkg/geo"
	"curbcast/pkg/model"
	"curbcast/pkg/predcache"
	"curbcast/pkg/signal"
	"curbcast/pkg/spatial"
	"curbcast/pkg/store"
)

// Engine is the assembled prediction service.
type Engine struct {
	Cfg     *config.Config
	Store   store.Store
	Spots   *spatial.SpotIndex
	Meters  *spatial.MeterIndex
	Garages *spatial.GarageIndex
	Regions *features.Regions
	Signals *signal.Reader
	Models  *ensemble.Ensemble
	Cache   *predcache.Cache

	assembler *features.Assembler
}

// New wires an engine over a store and configuration. Call LoadIndexes
// and then LoadModels before serving.
func New(cfg *config.Config, st store.Store) (*Engine, error) {
	cache, err := predcache.New(cfg.Serving.CacheMaxEntries,
		time.Duration(cfg.Serving.CacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Cfg:     cfg,
		Store:   st,
		Spots:   spatial.NewSpotIndex(),
		Meters:  spatial.NewMeterIndex(),
		Garages: spatial.NewGarageIndex(),
		Regions: features.NewRegions(cfg),
		Signals: signal.NewReader(st),
		Cache:   cache,
	}
	e.assembler = features.NewAssembler(features.Deps{
		Meters:   e.Meters,
		Garages:  e.Garages,
		Patterns: st,
		Signals:  e.Signals,
		Signs:    st,
		Sweeping: st,
		Zones:    st,
		Regions:  e.Regions,
		Cfg:      cfg,
	})
	return e, nil
}

// LoadModels reads the artifact bundles from the configured directory.
// Missing artifacts demote the affected stages to fallbacks rather than
// failing startup.
func (e *Engine) LoadModels() error {
	models, err := ensemble.Load(e.Cfg)
	if err != nil {
		return err
	}
	e.Models = models
	return nil
}

// LoadIndexes bulk-loads the spatial stores from persistence. Calling it
// again replaces the contents, so it is idempotent.
func (e *Engine) LoadIndexes(ctx context.Context) error {
	spots, err := e.Store.ListSpots(ctx)
	if err != nil {
		return fmt.Errorf("load spot index: %w", err)
	}
	e.Spots.Load(spots)

	meters, err := e.Store.ListMeters(ctx)
	if err != nil {
		return fmt.Errorf("load meter index: %w", err)
	}
	e.Meters.Load(meters)

	garages, err := e.Store.ListGarages(ctx)
	if err != nil {
		return fmt.Errorf("load garage index: %w", err)
	}
	e.Garages.Load(garages)

	slog.Info("spatial indexes loaded",
		"spots", e.Spots.Count(), "meters", e.Meters.Count(), "garages", e.Garages.Count())
	return nil
}

// ScoreSpot assembles features and runs the model chain for one spot.
// A panic inside scoring (e.g. a malformed artifact) is recovered so a
// single bad spot cannot fail a whole request.
func (e *Engine) ScoreSpot(ctx context.Context, spot *model.Spot, at time.Time) (pred *ensemble.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = nil
			err = fmt.Errorf("scoring spot %d: %v", spot.SpotID, r)
		}
	}()
	fs := e.assembler.Assemble(ctx, spot, at)
	return e.Models.PredictSpot(spot, fs), nil
}

// PredictArea scores every spot within radiusM of the center, sorted by
// P(free) descending. The second return is the number of spots searched.
// Spots whose scoring fails are logged and omitted.
func (e *Engine) PredictArea(ctx context.Context, center geo.Point, at time.Time, radiusM float64, limit int) ([]*ensemble.Prediction, int) {
	nearby := e.Spots.Query(center, radiusM, limit)

	preds := make([]*ensemble.Prediction, 0, len(nearby))
	for _, res := range nearby {
		pred, err := e.ScoreSpot(ctx, res.Spot, at)
		if err != nil {
			slog.Error("spot scoring failed", "spot_id", res.Spot.SpotID, "error", err)
			continue
		}
		pred.DistM = res.DistM
		preds = append(preds, pred)
	}

	sort.SliceStable(preds, func(i, j int) bool { return preds[i].PFree > preds[j].PFree })
	return preds, len(nearby)
}

// NearbyGarage is a garage with its distance from the request center.
type NearbyGarage struct {
	Garage *model.Garage
	DistM  float64
}

// NearbyGarages reads the garage catalogue with its latest availability
// snapshot and returns facilities within twice the search radius,
// closest first, capped at 10. Reading from the store rather than the
// startup index keeps availability counts current under the poller.
func (e *Engine) NearbyGarages(ctx context.Context, center geo.Point, radiusM float64) ([]NearbyGarage, error) {
	garages, err := e.Store.ListGarages(ctx)
	if err != nil {
		// Serve from the startup index; availability counts may be stale
		// but the catalogue is still useful.
		slog.Warn("garage store read failed, serving startup index", "error", err)
		var out []NearbyGarage
		for _, r := range e.Garages.Nearby(center, radiusM) {
			out = append(out, NearbyGarage{Garage: r.Garage, DistM: r.DistM})
		}
		return out, nil
	}

	var out []NearbyGarage
	for i := range garages {
		g := &garages[i]
		d := geo.Distance(center, geo.Point{Lat: g.Lat, Lng: g.Lng})
		if d <= 2*radiusM {
			out = append(out, NearbyGarage{Garage: g, DistM: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistM < out[j].DistM })
	if len(out) > 10 {
		out = out[:10]
	}
	return out, nil
}

// SubmitReport appends a crowd report and invalidates the surrounding
// cache area so the next request recomputes.
func (e *Engine) SubmitReport(ctx context.Context, r *model.CrowdReport) (int64, error) {
	id, err := e.Store.InsertReport(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("insert crowd report: %w", err)
	}
	e.Cache.InvalidateArea(r.Lat, r.Lng, 500)
	return id, nil
}
