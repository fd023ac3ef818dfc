package predcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(128, time.Minute)
	require.NoError(t, err)
	return c
}

func TestKeyFormat(t *testing.T) {
	ts := time.Date(2026, 8, 24, 9, 17, 0, 0, time.UTC)
	// 09:17 falls in bucket 9·4 + 1 = 37.
	assert.Equal(t, "37.795:-122.400:2026-08-24:37:200", Key(37.7946, -122.3999, ts, 200))

	// Same rounded location and bucket share a key.
	assert.Equal(t,
		Key(37.7946, -122.3999, ts, 200),
		Key(37.7949, -122.4001, ts.Add(10*time.Minute), 200))

	// Different bucket, radius or location split keys.
	assert.NotEqual(t, Key(37.7946, -122.3999, ts, 200), Key(37.7946, -122.3999, ts.Add(time.Hour), 200))
	assert.NotEqual(t, Key(37.7946, -122.3999, ts, 200), Key(37.7946, -122.3999, ts, 500))
	assert.NotEqual(t, Key(37.7946, -122.3999, ts, 200), Key(37.8060, -122.4103, ts, 200))
}

func TestPutGet(t *testing.T) {
	c := newTestCache(t)
	ts := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	_, ok := c.Get(37.79, -122.40, ts, 300)
	assert.False(t, ok)

	c.Put(37.79, -122.40, ts, 300, "response")
	c.Wait()

	got, ok := c.Get(37.79, -122.40, ts, 300)
	require.True(t, ok)
	assert.Equal(t, "response", got)
}

func TestInvalidateAll(t *testing.T) {
	c := newTestCache(t)
	ts := time.Now()

	c.Put(37.79, -122.40, ts, 300, "a")
	c.Put(37.80, -122.41, ts, 500, "b")
	c.Wait()

	c.InvalidateAll()

	_, ok := c.Get(37.79, -122.40, ts, 300)
	assert.False(t, ok)
	_, ok = c.Get(37.80, -122.41, ts, 500)
	assert.False(t, ok)
}

func TestInvalidateAreaEvictsNearbyOnly(t *testing.T) {
	c := newTestCache(t)
	ts := time.Now()

	// Financial District entry and a Marina entry ~3.5 km apart.
	c.Put(37.7946, -122.3999, ts, 300, "fidi")
	c.Put(37.8021, -122.4369, ts, 300, "marina")
	c.Wait()

	c.InvalidateArea(37.7946, -122.3999, 500)

	_, ok := c.Get(37.7946, -122.3999, ts, 300)
	assert.False(t, ok, "entry inside the invalidated area should be gone")
	_, ok = c.Get(37.8021, -122.4369, ts, 300)
	assert.True(t, ok, "entry far outside the invalidated area should survive")
}

func TestTTLExpiry(t *testing.T) {
	c, err := New(16, 30*time.Millisecond)
	require.NoError(t, err)
	ts := time.Now()

	c.Put(37.79, -122.40, ts, 300, "short-lived")
	c.Wait()
	_, ok := c.Get(37.79, -122.40, ts, 300)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get(37.79, -122.40, ts, 300)
	assert.False(t, ok)
}
