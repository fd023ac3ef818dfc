package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"curbcast/pkg/model"
)

const (
	defaultAuthURL  = "https://api.iq.inrix.com/auth/v1/appToken"
	defaultSpeedURL = "https://api.iq.inrix.com/traffic/inrix.php"

	trafficExpiry = 10 * time.Minute
	tokenLifetime = time.Hour
)

// trafficPayload is the signal value written for one neighborhood.
type trafficPayload struct {
	SpeedRatio      float64 `json:"speed_ratio"`
	CongestionLevel string  `json:"congestion_level"`
	AvgSpeedMPH     float64 `json:"avg_speed_mph"`
	AvgFreeflowMPH  float64 `json:"avg_freeflow_mph"`
	SegmentCount    int     `json:"segment_count"`
}

type inrixAuthResponse struct {
	Result struct {
		Token string `json:"token"`
	} `json:"result"`
}

type inrixSpeedResponse struct {
	Result struct {
		SegmentSpeeds []struct {
			Speed   float64 `json:"speed"`
			Average float64 `json:"average"`
		} `json:"segmentSpeeds"`
	} `json:"result"`
}

// tokenCache holds the INRIX app token, refreshed when absent or
// expired.
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

// TrafficJob polls INRIX segment speeds per neighborhood.
type TrafficJob struct {
	BaseJob
	deps     Deps
	tokens   tokenCache
	authURL  string
	speedURL string
}

// NewTrafficJob creates the traffic poller. Endpoint URLs come from the
// environment so tests and deployments can redirect them.
func NewTrafficJob(deps Deps) *TrafficJob {
	authURL := os.Getenv("AUTH_TOKEN_URL")
	if authURL == "" {
		authURL = defaultAuthURL
	}
	return &TrafficJob{
		BaseJob:  NewBaseJob("traffic"),
		deps:     deps,
		authURL:  authURL,
		speedURL: defaultSpeedURL,
	}
}

func (j *TrafficJob) Interval() time.Duration {
	return j.deps.Cfg.Realtime.TrafficInterval.Std()
}

// token returns a cached INRIX app token, refreshing it when expired.
// Returns "" when credentials are not configured.
func (j *TrafficJob) token(ctx context.Context) (string, error) {
	j.tokens.mu.Lock()
	defer j.tokens.mu.Unlock()

	if j.tokens.token != "" && time.Now().Before(j.tokens.expires) {
		return j.tokens.token, nil
	}

	appID := os.Getenv("APP_ID")
	hashToken := os.Getenv("HASH_TOKEN")
	if appID == "" || hashToken == "" {
		return "", nil
	}

	var auth inrixAuthResponse
	params := url.Values{"appId": {appID}, "hashToken": {hashToken}}
	if err := j.deps.Client.GetJSON(ctx, j.authURL, params, &auth); err != nil {
		return "", fmt.Errorf("inrix auth: %w", err)
	}
	if auth.Result.Token == "" {
		return "", fmt.Errorf("inrix auth returned empty token")
	}

	j.tokens.token = auth.Result.Token
	j.tokens.expires = time.Now().Add(tokenLifetime)
	return j.tokens.token, nil
}

// fetchNeighborhood queries segment speeds in a box around a
// neighborhood center and aggregates them into a payload.
func (j *TrafficJob) fetchNeighborhood(ctx context.Context, token string, lat, lng float64) (*trafficPayload, error) {
	params := url.Values{
		"Action":  {"GetSegmentSpeedInBox"},
		"Token":   {token},
		"Corner1": {fmt.Sprintf("%f|%f", lat-0.005, lng-0.005)},
		"Corner2": {fmt.Sprintf("%f|%f", lat+0.005, lng+0.005)},
		"Format":  {"json"},
	}
	var resp inrixSpeedResponse
	if err := j.deps.Client.GetJSON(ctx, j.speedURL, params, &resp); err != nil {
		return nil, err
	}

	var speedSum, freeflowSum float64
	var n int
	for _, seg := range resp.Result.SegmentSpeeds {
		if seg.Speed <= 0 {
			continue
		}
		speedSum += seg.Speed
		if seg.Average > 0 {
			freeflowSum += seg.Average
		} else {
			freeflowSum += seg.Speed
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}

	avgSpeed := speedSum / float64(n)
	avgFreeflow := freeflowSum / float64(n)
	ratio := 1.0
	if avgFreeflow > 0 {
		ratio = avgSpeed / avgFreeflow
	}

	congestion := "heavy"
	switch {
	case ratio >= 0.8:
		congestion = "free"
	case ratio >= 0.5:
		congestion = "moderate"
	}

	return &trafficPayload{
		SpeedRatio:      round3(ratio),
		CongestionLevel: congestion,
		AvgSpeedMPH:     round1(avgSpeed),
		AvgFreeflowMPH:  round1(avgFreeflow),
		SegmentCount:    len(resp.Result.SegmentSpeeds),
	}, nil
}

// Run fetches traffic for every configured neighborhood and writes one
// signal row per neighborhood that returned data.
func (j *TrafficJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	token, err := j.token(ctx)
	if err != nil {
		slog.Error("traffic poll failed", "error", err)
		return
	}
	if token == "" {
		// Credentials absent: no-op until they appear.
		slog.Debug("traffic poller idle, INRIX credentials not configured")
		return
	}

	now := time.Now()
	count := 0
	for key, nbhd := range j.deps.Cfg.Neighborhoods {
		payload, err := j.fetchNeighborhood(ctx, token, nbhd.Lat, nbhd.Lng)
		if err != nil {
			slog.Error("traffic fetch failed", "neighborhood", key, "error", err)
			continue
		}
		if payload == nil {
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Error("traffic payload encode failed", "neighborhood", key, "error", err)
			continue
		}
		sig := &model.Signal{
			Kind:         model.SignalTraffic,
			Lat:          nbhd.Lat,
			Lng:          nbhd.Lng,
			Neighborhood: key,
			ValueJSON:    string(raw),
			FetchedAt:    now,
			ExpiresAt:    now.Add(trafficExpiry),
		}
		if err := j.deps.Signals.InsertSignal(ctx, sig); err != nil {
			slog.Error("traffic signal insert failed", "neighborhood", key, "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		j.deps.Cache.InvalidateAll()
		slog.Info("traffic signals refreshed", "neighborhoods", count)
	}
}
