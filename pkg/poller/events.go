package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"curbcast/pkg/model"
	"curbcast/pkg/signal"
)

const (
	defaultEventsURL = "https://app.ticketmaster.com/discovery/v2/events.json"

	eventsExpiry = 2 * time.Hour
	eventsWindow = 6 * time.Hour
	eventsRadius = 1 // km
)

// eventsPayload is the signal value for one neighborhood's upcoming
// events. The event list shape matches what the feature reader decodes.
type eventsPayload struct {
	Events []signal.Event `json:"events"`
	Count  int            `json:"count"`
}

type tmResponse struct {
	Embedded struct {
		Events []struct {
			Name  string `json:"name"`
			Dates struct {
				Start struct {
					DateTime string `json:"dateTime"`
				} `json:"start"`
			} `json:"dates"`
			Embedded struct {
				Venues []struct {
					Name     string `json:"name"`
					Location struct {
						Latitude  string `json:"latitude"`
						Longitude string `json:"longitude"`
					} `json:"location"`
				} `json:"venues"`
			} `json:"_embedded"`
		} `json:"events"`
	} `json:"_embedded"`
}

// EventsJob polls the Ticketmaster Discovery API per neighborhood for
// events starting within the next six hours.
type EventsJob struct {
	BaseJob
	deps Deps
	url  string
}

// NewEventsJob creates the events poller.
func NewEventsJob(deps Deps) *EventsJob {
	return &EventsJob{
		BaseJob: NewBaseJob("events"),
		deps:    deps,
		url:     defaultEventsURL,
	}
}

func (j *EventsJob) Interval() time.Duration {
	return j.deps.Cfg.Realtime.EventsInterval.Std()
}

func (j *EventsJob) fetchNeighborhood(ctx context.Context, apiKey string, lat, lng float64) ([]signal.Event, error) {
	now := time.Now().UTC()
	params := url.Values{
		"apikey":        {apiKey},
		"latlong":       {formatCoord(lat) + "," + formatCoord(lng)},
		"radius":        {strconv.Itoa(eventsRadius)},
		"unit":          {"km"},
		"startDateTime": {now.Format("2006-01-02T15:04:05Z")},
		"endDateTime":   {now.Add(eventsWindow).Format("2006-01-02T15:04:05Z")},
		"size":          {"20"},
	}
	var resp tmResponse
	if err := j.deps.Client.GetJSON(ctx, j.url, params, &resp); err != nil {
		return nil, err
	}

	var events []signal.Event
	for _, e := range resp.Embedded.Events {
		if len(e.Embedded.Venues) == 0 {
			continue
		}
		venue := e.Embedded.Venues[0]
		vlat, err1 := strconv.ParseFloat(venue.Location.Latitude, 64)
		vlng, err2 := strconv.ParseFloat(venue.Location.Longitude, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		events = append(events, signal.Event{
			Name:      e.Name,
			Venue:     venue.Name,
			Lat:       vlat,
			Lng:       vlng,
			StartTime: e.Dates.Start.DateTime,
		})
	}
	return events, nil
}

// Run fetches events for every configured neighborhood and writes one
// signal per neighborhood with results.
func (j *EventsJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	apiKey := os.Getenv("TICKETMASTER_API_KEY")
	if apiKey == "" {
		slog.Debug("events poller idle, TICKETMASTER_API_KEY not configured")
		return
	}

	now := time.Now()
	count := 0
	for key, nbhd := range j.deps.Cfg.Neighborhoods {
		events, err := j.fetchNeighborhood(ctx, apiKey, nbhd.Lat, nbhd.Lng)
		if err != nil {
			slog.Error("events fetch failed", "neighborhood", key, "error", err)
			continue
		}
		if len(events) == 0 {
			continue
		}
		raw, err := json.Marshal(eventsPayload{Events: events, Count: len(events)})
		if err != nil {
			slog.Error("events payload encode failed", "neighborhood", key, "error", err)
			continue
		}
		sig := &model.Signal{
			Kind:         model.SignalEvent,
			Lat:          nbhd.Lat,
			Lng:          nbhd.Lng,
			Neighborhood: key,
			ValueJSON:    string(raw),
			FetchedAt:    now,
			ExpiresAt:    now.Add(eventsExpiry),
		}
		if err := j.deps.Signals.InsertSignal(ctx, sig); err != nil {
			slog.Error("events signal insert failed", "neighborhood", key, "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		j.deps.Cache.InvalidateAll()
		slog.Info("event signals refreshed", "neighborhoods", count)
	}
}
