package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curbcast/pkg/model"
)

// fakeSignalStore serves canned signal rows keyed by kind+neighborhood.
type fakeSignalStore struct {
	rows map[string]*model.Signal
}

func (f *fakeSignalStore) LatestSignal(_ context.Context, kind, neighborhood string, now time.Time) (*model.Signal, error) {
	sig := f.rows[kind+"|"+neighborhood]
	if sig == nil || !sig.ExpiresAt.After(now) {
		return nil, nil
	}
	return sig, nil
}

func (f *fakeSignalStore) InsertSignal(_ context.Context, s *model.Signal) error {
	if f.rows == nil {
		f.rows = make(map[string]*model.Signal)
	}
	f.rows[s.Kind+"|"+s.Neighborhood] = s
	return nil
}

func TestTrafficDecodeAndAge(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	fs := &fakeSignalStore{}
	require.NoError(t, fs.InsertSignal(context.Background(), &model.Signal{
		Kind: model.SignalTraffic, Neighborhood: "soma",
		ValueJSON: `{"speed_ratio":0.45,"avg_speed_mph":12.3,"congestion_level":"heavy"}`,
		FetchedAt: now.Add(-3 * time.Minute), ExpiresAt: now.Add(7 * time.Minute),
	}))

	r := NewReader(fs)
	d, age, err := r.Traffic(context.Background(), "soma", now)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 0.45, d.SpeedRatio)
	assert.Equal(t, float64(2), d.CongestionCode())
	assert.Equal(t, 3*time.Minute, age)

	// Missing neighborhood yields no data, not an error.
	d, _, err = r.Traffic(context.Background(), "marina", now)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestCongestionCode(t *testing.T) {
	assert.Equal(t, float64(0), (&TrafficData{CongestionLevel: "free"}).CongestionCode())
	assert.Equal(t, float64(1), (&TrafficData{CongestionLevel: "moderate"}).CongestionCode())
	assert.Equal(t, float64(2), (&TrafficData{CongestionLevel: "heavy"}).CongestionCode())
	assert.Equal(t, float64(0), (&TrafficData{CongestionLevel: "???"}).CongestionCode())
}

func TestWeatherRainDetection(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	fs := &fakeSignalStore{}
	require.NoError(t, fs.InsertSignal(context.Background(), &model.Signal{
		Kind:      model.SignalWeather,
		ValueJSON: `{"condition":"Rain","temperature_f":58.4}`,
		FetchedAt: now.Add(-time.Minute), ExpiresAt: now.Add(29 * time.Minute),
	}))

	r := NewReader(fs)
	w, _, err := r.Weather(context.Background(), now)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.True(t, w.IsRaining())
	assert.Equal(t, 58.4, w.TemperatureF)

	assert.False(t, (&WeatherData{Condition: "Clear"}).IsRaining())
	assert.True(t, (&WeatherData{Condition: "light drizzle"}).IsRaining())
}

func TestEventsDecode(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	fs := &fakeSignalStore{}
	require.NoError(t, fs.InsertSignal(context.Background(), &model.Signal{
		Kind:      model.SignalEvent,
		ValueJSON: `{"events":[{"name":"Giants vs Dodgers","venue":"Oracle Park","lat":37.7786,"lng":-122.3893}]}`,
		FetchedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
	}))

	r := NewReader(fs)
	e, age, err := r.Events(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, e.Events, 1)
	assert.Equal(t, "Oracle Park", e.Events[0].Venue)
	assert.Equal(t, time.Hour, age)
}

func TestExpiredSignalIgnored(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	fs := &fakeSignalStore{}
	require.NoError(t, fs.InsertSignal(context.Background(), &model.Signal{
		Kind:      model.SignalWeather,
		ValueJSON: `{"condition":"Clear"}`,
		FetchedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-90 * time.Minute),
	}))

	r := NewReader(fs)
	w, _, err := r.Weather(context.Background(), now)
	require.NoError(t, err)
	assert.Nil(t, w)
}
