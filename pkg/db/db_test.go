package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	d1, err := Init(path)
	require.NoError(t, err)
	_, err = d1.Exec(`INSERT INTO garages (garage_id, name, lat, lng) VALUES ('g1', 'Test', 37.7, -122.4)`)
	require.NoError(t, err)
	require.NoError(t, d1.Close())

	// Re-running startup against the same storage must be a no-op
	d2, err := Init(path)
	require.NoError(t, err)
	defer d2.Close()

	var n int
	require.NoError(t, d2.QueryRow("SELECT COUNT(*) FROM garages").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestInsertOrIgnoreDedups(t *testing.T) {
	d := openTestDB(t)

	cols := []string{"meter_post_id", "day_of_week", "hour", "month", "occupancy_rate", "sample_count"}
	ins, err := d.InsertOrIgnore("meter_occupancy_hourly", cols, "M1", 2, 9, 0, 0.8, 100)
	require.NoError(t, err)
	assert.True(t, ins)

	ins, err = d.InsertOrIgnore("meter_occupancy_hourly", cols, "M1", 2, 9, 0, 0.9, 50)
	require.NoError(t, err)
	assert.False(t, ins)

	var rate float64
	require.NoError(t, d.QueryRow(
		"SELECT occupancy_rate FROM meter_occupancy_hourly WHERE meter_post_id = 'M1'").Scan(&rate))
	assert.Equal(t, 0.8, rate)
}

func TestInsertReturningID(t *testing.T) {
	d := openTestDB(t)

	cols := []string{"user_id", "lat", "lng", "report_type", "reported_at", "confidence"}
	id1, err := d.InsertReturningID("crowd_reports", cols, "u1", 37.7, -122.4, "spot_free", "2026-08-25T10:00:00Z", 0.5)
	require.NoError(t, err)
	id2, err := d.InsertReturningID("crowd_reports", cols, "u2", 37.7, -122.4, "spot_taken", "2026-08-25T10:01:00Z", 0.5)
	require.NoError(t, err)

	assert.Greater(t, id1, int64(0))
	assert.Equal(t, id1+1, id2)
}
