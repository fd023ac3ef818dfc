package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curbcast/pkg/config"
)

func testClient(retries int) *Client {
	return New(&config.RequestConfig{
		Timeout: config.Duration(2 * time.Second),
		Retries: retries,
		Backoff: config.BackoffConfig{
			BaseDelay: config.Duration(time.Millisecond),
			MaxDelay:  config.Duration(5 * time.Millisecond),
		},
	})
}

func TestGetSuccessWithParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("answer"))
		assert.Contains(t, r.Header.Get("User-Agent"), "curbcast/")
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	body, err := testClient(0).Get(context.Background(), srv.URL, url.Values{"answer": {"42"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`eventually`))
	}))
	defer srv.Close()

	body, err := testClient(3).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "eventually", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such thing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(3).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "4xx must fail without retrying")
}

func TestGetRetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(1).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(2).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")

	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"fidi","count":7}`))
	}))
	defer srv.Close()

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, testClient(0).GetJSON(context.Background(), srv.URL, nil, &out))
	assert.Equal(t, "fidi", out.Name)
	assert.Equal(t, 7, out.Count)
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(0).GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestGetHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(5).Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelayDoubling(t *testing.T) {
	c := testClient(5)
	assert.Equal(t, time.Millisecond, c.delay(1))
	assert.Equal(t, 2*time.Millisecond, c.delay(2))
	assert.Equal(t, 4*time.Millisecond, c.delay(3))
	// Capped at max_delay.
	assert.Equal(t, 5*time.Millisecond, c.delay(4))
}
