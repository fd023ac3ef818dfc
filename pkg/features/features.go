// Package features assembles the per-spot feature set consumed by the
// model ensemble. Each source plugin contributes a family of named
// numeric features; missing values are NaN, which the scoring backend
// handles natively.
package features

import (
	"context"
	"log/slog"
	"time"

	"curbcast/pkg/config"
	"curbcast/pkg/model"
	"curbcast/pkg/signal"
	"curbcast/pkg/spatial"
	"curbcast/pkg/store"
)

// Set is the assembled feature set for one (spot, timestamp) pair.
type Set struct {
	// Values maps feature name to value. Absent keys read as NaN when the
	// scoring row is built.
	Values map[string]float64

	// ZoneType is the categorical zone, encoded to an integer only at
	// score time.
	ZoneType string

	// RealtimeAge is the age of the freshest live signal consulted, used
	// by the confidence scorer. AgeKnown is false when no live signal
	// contributed.
	RealtimeAge time.Duration
	AgeKnown    bool
}

func newSet() *Set {
	return &Set{Values: make(map[string]float64, 48)}
}

// observeAge records a signal age, keeping the freshest.
func (s *Set) observeAge(age time.Duration) {
	if !s.AgeKnown || age < s.RealtimeAge {
		s.RealtimeAge = age
		s.AgeKnown = true
	}
}

// Source is one feature-family plugin. Contribute writes its features
// into the set; on error the assembler logs and moves on, leaving the
// family's keys absent (read as NaN downstream).
type Source interface {
	Name() string
	Contribute(ctx context.Context, spot *model.Spot, at time.Time, out *Set) error
}

// Deps bundles everything the standard sources read from.
type Deps struct {
	Meters   *spatial.MeterIndex
	Garages  *spatial.GarageIndex
	Patterns store.PatternStore
	Signals  *signal.Reader
	Signs    store.SignStore
	Sweeping store.SweepingStore
	Zones    store.ZoneStore
	Regions  *Regions
	Cfg      *config.Config
}

// Assembler runs registered sources in order and merges their output.
type Assembler struct {
	sources []Source
}

// NewAssembler builds an assembler with the standard sources registered
// in merge order.
func NewAssembler(deps Deps) *Assembler {
	a := &Assembler{}
	a.Register(&temporalSource{})
	a.Register(&spatialSource{deps: deps})
	a.Register(&meterPatternSource{deps: deps})
	a.Register(&sweepingSource{deps: deps})
	a.Register(&signRuleSource{deps: deps})
	a.Register(&zoneSource{deps: deps})
	a.Register(&realtimeSource{deps: deps})
	return a
}

// Register appends a source. Later sources overwrite keys written by
// earlier ones.
func (a *Assembler) Register(s Source) {
	a.sources = append(a.sources, s)
}

// Assemble produces the feature set for one spot at one timestamp. A
// failing source contributes nothing for its family; the request is not
// failed.
func (a *Assembler) Assemble(ctx context.Context, spot *model.Spot, at time.Time) *Set {
	out := newSet()
	for _, src := range a.sources {
		if err := src.Contribute(ctx, spot, at, out); err != nil {
			slog.Warn("feature source failed",
				"source", src.Name(), "spot_id", spot.SpotID, "error", err)
		}
	}
	return out
}
