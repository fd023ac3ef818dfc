package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curbcast/pkg/config"
	"curbcast/pkg/db"
	"curbcast/pkg/geo"
	"curbcast/pkg/store"
)

func newTestEngine(t *testing.T) (*Engine, *db.DB) {
	t.Helper()

	d, err := db.Init(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)

	st := store.NewSQLiteStore(d)
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	cfg.Model.ArtifactsDir = t.TempDir()
	eng, err := New(cfg, st)
	require.NoError(t, err)
	require.NoError(t, eng.LoadModels())
	return eng, d
}

func seedSpot(t *testing.T, d *db.DB, id int64, lat, lng float64) {
	t.Helper()
	_, err := d.InsertOrIgnore("free_parking_spots",
		[]string{"spot_id", "lat", "lng", "street_name", "neighborhood"},
		id, lat, lng, "Sansome St", "Financial District")
	require.NoError(t, err)
}

func TestPredictAreaSortsByPFree(t *testing.T) {
	eng, d := newTestEngine(t)
	ctx := context.Background()

	// Two spots near the FiDi meter, one without meter coverage.
	seedSpot(t, d, 1, 37.7946, -122.3999)
	seedSpot(t, d, 2, 37.7950, -122.4002)
	seedSpot(t, d, 3, 37.7940, -122.3990)

	_, err := d.InsertOrIgnore("parking_meters",
		[]string{"post_id", "lat", "lng", "corridor"},
		"M-1", 37.7947, -122.3998, "SANSOME ST")
	require.NoError(t, err)
	_, err = d.InsertOrIgnore("meter_occupancy_hourly",
		[]string{"meter_post_id", "day_of_week", "hour", "month", "occupancy_rate", "avg_duration", "turnover_rate", "sample_count"},
		"M-1", 1, 9, 0, 0.85, 45.0, 3.0, 150)
	require.NoError(t, err)

	require.NoError(t, eng.LoadIndexes(ctx))

	at := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) // Monday 09:00
	preds, searched := eng.PredictArea(ctx, geo.Point{Lat: 37.7946, Lng: -122.3999}, at, 300, 50)

	assert.Equal(t, 3, searched)
	require.Len(t, preds, 3)
	for i := 1; i < len(preds); i++ {
		assert.GreaterOrEqual(t, preds[i-1].PFree, preds[i].PFree)
	}
	for _, p := range preds {
		assert.GreaterOrEqual(t, p.DistM, 0.0)
		assert.NotEmpty(t, p.Confidence.Tier)
	}
}

func TestLoadIndexesReplacesContents(t *testing.T) {
	eng, d := newTestEngine(t)
	ctx := context.Background()

	seedSpot(t, d, 1, 37.7946, -122.3999)
	require.NoError(t, eng.LoadIndexes(ctx))
	assert.Equal(t, 1, eng.Spots.Count())

	seedSpot(t, d, 2, 37.7950, -122.4002)
	require.NoError(t, eng.LoadIndexes(ctx))
	assert.Equal(t, 2, eng.Spots.Count())
}

func TestNearbyGaragesCapAndOrder(t *testing.T) {
	eng, d := newTestEngine(t)
	ctx := context.Background()

	// 12 garages marching away from the center, plus one out of reach.
	for i := 0; i < 12; i++ {
		_, err := d.InsertOrIgnore("garages",
			[]string{"garage_id", "name", "lat", "lng", "total_spaces", "hourly_rate", "source"},
			fmt.Sprintf("G-%02d", i), fmt.Sprintf("Garage %d", i),
			37.7946+float64(i)*0.0005, -122.3999, 100, 3.0, "sfpark")
		require.NoError(t, err)
	}
	_, err := d.InsertOrIgnore("garages",
		[]string{"garage_id", "name", "lat", "lng", "total_spaces", "hourly_rate", "source"},
		"G-FAR", "Far Garage", 37.8600, -122.3999, 100, 3.0, "sfpark")
	require.NoError(t, err)

	center := geo.Point{Lat: 37.7946, Lng: -122.3999}
	out, err := eng.NearbyGarages(ctx, center, 500)
	require.NoError(t, err)

	// Capped at 10 even though 12 are within 2x the radius.
	require.Len(t, out, 10)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].DistM, out[i-1].DistM)
	}
	assert.Equal(t, "G-00", out[0].Garage.GarageID)
	for _, g := range out {
		assert.NotEqual(t, "G-FAR", g.Garage.GarageID)
		assert.LessOrEqual(t, g.DistM, 1000.0)
	}
}
