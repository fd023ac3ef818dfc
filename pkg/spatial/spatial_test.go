package spatial

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curbcast/pkg/geo"
	"curbcast/pkg/model"
)

var missionCenter = geo.Point{Lat: 37.7599, Lng: -122.4148}

func testSpots() []model.Spot {
	return []model.Spot{
		{SpotID: 1, Lat: 37.7599, Lng: -122.4148, StreetName: "Valencia St"},
		{SpotID: 2, Lat: 37.7608, Lng: -122.4148, StreetName: "Valencia St"}, // ~100m north
		{SpotID: 3, Lat: 37.7644, Lng: -122.4148, StreetName: "Valencia St"}, // ~500m north
		{SpotID: 4, Lat: 37.7946, Lng: -122.3999, StreetName: "Battery St"},  // FiDi, ~4km away
	}
}

func TestSpotIndexQueryRadiusAndOrder(t *testing.T) {
	idx := NewSpotIndex()
	idx.Load(testSpots())
	require.True(t, idx.Loaded())
	assert.Equal(t, 4, idx.Count())

	results := idx.Query(missionCenter, 300, 0)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].Spot.SpotID)
	assert.Equal(t, int64(2), results[1].Spot.SpotID)
	assert.Less(t, results[0].DistM, results[1].DistM)

	// Wider radius picks up the 500m spot but not FiDi.
	results = idx.Query(missionCenter, 600, 0)
	assert.Len(t, results, 3)
}

func TestSpotIndexQueryLimit(t *testing.T) {
	idx := NewSpotIndex()
	idx.Load(testSpots())

	results := idx.Query(missionCenter, 600, 2)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].Spot.SpotID)
}

func TestSpotIndexEmpty(t *testing.T) {
	idx := NewSpotIndex()
	assert.False(t, idx.Loaded())
	assert.Empty(t, idx.Query(missionCenter, 500, 10))

	idx.Load(nil)
	assert.True(t, idx.Loaded())
	assert.Empty(t, idx.Query(missionCenter, 500, 10))
}

func TestSpotIndexSkipsAndLogsOutOfAreaSpots(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	idx := NewSpotIndex()
	spots := append(testSpots(),
		model.Spot{SpotID: 5, Lat: 40.7128, Lng: -74.0060, StreetName: "Broadway"})
	idx.Load(spots)

	assert.Equal(t, 4, idx.Count())
	assert.Nil(t, idx.Get(5))
	assert.Contains(t, buf.String(), "spot outside service area")
	assert.Contains(t, buf.String(), "spot_id=5")
}

func TestSpotIndexGet(t *testing.T) {
	idx := NewSpotIndex()
	idx.Load(testSpots())

	sp := idx.Get(3)
	require.NotNil(t, sp)
	assert.Equal(t, "Valencia St", sp.StreetName)
	assert.Nil(t, idx.Get(99))
}

func TestMeterIndexNearest(t *testing.T) {
	idx := NewMeterIndex()
	idx.Load([]model.Meter{
		{PostID: "M-far", Lat: 37.7946, Lng: -122.3999},
		{PostID: "M-near", Lat: 37.7600, Lng: -122.4149},
		{PostID: "M-mid", Lat: 37.7620, Lng: -122.4148},
	})

	near := idx.Nearest(missionCenter, 2)
	require.Len(t, near, 2)
	assert.Equal(t, "M-near", near[0].Meter.PostID)
	assert.Equal(t, "M-mid", near[1].Meter.PostID)

	assert.Empty(t, idx.Nearest(missionCenter, 0))
	assert.Equal(t, 2, idx.CountWithin(missionCenter, 300))
}

func TestMeterIndexNearestTiesKeepCatalogueOrder(t *testing.T) {
	idx := NewMeterIndex()
	// Multi-space posts share one pole, so duplicate coordinates happen.
	idx.Load([]model.Meter{
		{PostID: "M-a", Lat: 37.7620, Lng: -122.4148},
		{PostID: "M-b", Lat: 37.7620, Lng: -122.4148},
		{PostID: "M-c", Lat: 37.7620, Lng: -122.4148},
	})

	near := idx.Nearest(missionCenter, 3)
	require.Len(t, near, 3)
	assert.Equal(t, "M-a", near[0].Meter.PostID)
	assert.Equal(t, "M-b", near[1].Meter.PostID)
	assert.Equal(t, "M-c", near[2].Meter.PostID)
}

func TestGarageIndexNearestDistance(t *testing.T) {
	idx := NewGarageIndex()
	assert.True(t, math.IsNaN(idx.NearestDistance(missionCenter)))

	idx.Load([]model.Garage{
		{GarageID: "g1", Lat: 37.7608, Lng: -122.4148},
		{GarageID: "g2", Lat: 37.7946, Lng: -122.3999},
	})

	d := idx.NearestDistance(missionCenter)
	want := geo.Distance(missionCenter, geo.Point{Lat: 37.7608, Lng: -122.4148})
	assert.InDelta(t, want, d, 1e-9)

	// Haversine, not the equirectangular shortcut the meter index uses.
	far := geo.Point{Lat: 37.7946, Lng: -122.3999}
	assert.NotEqual(t, geo.EquirectDistance(missionCenter, far), geo.Distance(missionCenter, far))
}

func TestGarageIndexNearbyDoublesRadius(t *testing.T) {
	idx := NewGarageIndex()
	idx.Load([]model.Garage{
		{GarageID: "g1", Lat: 37.7608, Lng: -122.4148}, // ~100m
		{GarageID: "g2", Lat: 37.7644, Lng: -122.4148}, // ~500m
	})

	// radius 300 searches out to 600m, so both qualify.
	results := idx.Nearby(missionCenter, 300)
	require.Len(t, results, 2)
	assert.Equal(t, "g1", results[0].Garage.GarageID)

	results = idx.Nearby(missionCenter, 200)
	require.Len(t, results, 1)
}
