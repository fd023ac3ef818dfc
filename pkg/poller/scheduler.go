// Package poller runs the background jobs that refresh the real-time
// signal tables: traffic, weather, events and garage availability. Each
// job fires on its own interval, writes signal rows on success and
// invalidates the prediction cache. Failures are logged and swallowed;
// the job simply retries at its next tick.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"curbcast/pkg/config"
	"curbcast/pkg/predcache"
	"curbcast/pkg/request"
	"curbcast/pkg/store"
)

// Job is one scheduled poller.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context)
}

// BaseJob provides the atomic running flag that prevents a slow fetch
// from overlapping with the next tick.
type BaseJob struct {
	name    string
	running int32
}

// NewBaseJob creates the embedded base for a named job.
func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string { return b.name }

// TryLock attempts to mark the job running. Returns false when a
// previous run is still in flight.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// Deps bundles what the standard jobs read and write.
type Deps struct {
	Cfg     *config.Config
	Client  *request.Client
	Signals store.SignalStore
	Garages store.GarageStore
	Cache   *predcache.Cache
}

// Scheduler drives a set of jobs on independent tickers.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler with the four standard signal jobs.
func NewScheduler(deps Deps) *Scheduler {
	s := &Scheduler{}
	s.Add(NewTrafficJob(deps))
	s.Add(NewWeatherJob(deps))
	s.Add(NewEventsJob(deps))
	s.Add(NewGaragesJob(deps))
	return s
}

// Add registers a job.
func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start launches one goroutine per job. Jobs do not fire immediately:
// the first run happens after one interval, letting startup complete
// before any outbound traffic. Cancel the context to stop.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		if j.Interval() <= 0 {
			slog.Warn("poller disabled, non-positive interval", "job", j.Name())
			continue
		}
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}
	slog.Info("signal pollers started", "jobs", len(s.jobs))
}

// Wait blocks until all job loops have exited after cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("poller stopped", "job", j.Name())
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
