package mixer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vmix-remote/internal/platform/metrics"
)

// ErrInvalidInterval is returned for a non-positive refresh interval.
var ErrInvalidInterval = errors.New("refresh interval must be positive")

// StatusFetcher fetches and parses the mixer status document.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (StatusSnapshot, error)
}

// PolicyUpdate is a partial edit of the RefreshPolicy; nil fields are left
// unchanged.
type PolicyUpdate struct {
	AutoRefresh *bool `json:"autoRefresh"`
	IntervalMs  *int  `json:"intervalMs"`
}

// Scheduler drives periodic and on-demand refreshes. At most one refresh is
// in flight at a time: periodic ticks and RefreshNow are skipped while one
// runs, Converge waits for it.
type Scheduler struct {
	fetcher StatusFetcher
	rec     *Reconciler
	log     *slog.Logger
	metrics *metrics.Metrics

	gate sync.Mutex // held for the duration of one refresh

	mu     sync.Mutex
	policy RefreshPolicy
	wake   chan struct{}
}

// NewScheduler returns a Scheduler applying refresh results to rec.
// Metrics may be nil.
func NewScheduler(f StatusFetcher, rec *Reconciler, policy RefreshPolicy, log *slog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		fetcher: f,
		rec:     rec,
		log:     log,
		metrics: m,
		policy:  policy,
		wake:    make(chan struct{}, 1),
	}
}

// Policy returns the current refresh policy.
func (s *Scheduler) Policy() RefreshPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// SetAutoRefresh enables or disables periodic refresh. Disabling stops future
// ticks; a refresh already in flight completes.
func (s *Scheduler) SetAutoRefresh(on bool) {
	_, _ = s.ApplyPolicy(PolicyUpdate{AutoRefresh: &on})
}

// SetInterval changes the periodic refresh interval.
func (s *Scheduler) SetInterval(ms int) error {
	_, err := s.ApplyPolicy(PolicyUpdate{IntervalMs: &ms})
	return err
}

// ApplyPolicy merges u into the policy. A change takes effect at the next
// scheduling decision of Run and is pushed to the Reconciler's subscribers;
// an update that changes nothing leaves the tick phase alone.
func (s *Scheduler) ApplyPolicy(u PolicyUpdate) (RefreshPolicy, error) {
	if u.IntervalMs != nil && *u.IntervalMs <= 0 {
		return s.Policy(), ErrInvalidInterval
	}

	s.mu.Lock()
	prev := s.policy
	if u.AutoRefresh != nil {
		s.policy.AutoRefresh = *u.AutoRefresh
	}
	if u.IntervalMs != nil {
		s.policy.IntervalMs = *u.IntervalMs
	}
	p := s.policy
	s.mu.Unlock()

	if p == prev {
		return p, nil
	}

	if u.IntervalMs != nil && *u.IntervalMs < MinRecommendedIntervalMs {
		s.log.Warn("refresh interval below recommended floor",
			slog.Int("interval_ms", *u.IntervalMs),
			slog.Int("recommended_min_ms", MinRecommendedIntervalMs))
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.rec.Notify()
	return p, nil
}

// RefreshNow runs one refresh unless another is already in flight, in which
// case it returns false immediately.
func (s *Scheduler) RefreshNow(ctx context.Context) bool {
	if !s.gate.TryLock() {
		return false
	}
	defer s.gate.Unlock()
	s.refreshLocked(ctx)
	return true
}

// Converge runs one refresh after any in-flight refresh has completed. It is
// used after a command so the applied snapshot reflects the command's effect.
func (s *Scheduler) Converge(ctx context.Context) {
	s.gate.Lock()
	defer s.gate.Unlock()
	s.refreshLocked(ctx)
}

func (s *Scheduler) refreshLocked(ctx context.Context) {
	s.rec.BeginRefresh()

	start := time.Now()
	snap, err := s.fetcher.FetchStatus(ctx)
	dur := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObservePoll(dur, err)
	}
	s.log.Debug("status polled",
		slog.Int("duration_ms", int(dur.Milliseconds())),
		slog.Bool("ok", err == nil))

	s.rec.ApplyRefresh(snap, err)
}

// Run performs an initial refresh and then refreshes on every tick while
// auto refresh is enabled. It returns when ctx is cancelled, after any
// tick-started refresh has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	s.RefreshNow(ctx)

	for {
		p := s.Policy()
		var ticker *time.Ticker
		var tick <-chan time.Time
		if p.AutoRefresh {
			ticker = time.NewTicker(p.Interval())
			tick = ticker.C
		}
		s.log.Debug("refresh schedule",
			slog.Bool("auto_refresh", p.AutoRefresh),
			slog.Int("interval_ms", p.IntervalMs))

		if done := s.waitTicks(ctx, tick, &wg); done {
			if ticker != nil {
				ticker.Stop()
			}
			return nil
		}
		if ticker != nil {
			ticker.Stop()
		}
	}
}

// waitTicks fires refreshes on tick until the policy changes (false) or ctx
// ends (true). A nil tick channel never fires.
func (s *Scheduler) waitTicks(ctx context.Context, tick <-chan time.Time, wg *sync.WaitGroup) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case <-s.wake:
			return false
		case <-tick:
			// A tick may win the select against a pending wake.
			if !s.Policy().AutoRefresh {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !s.RefreshNow(ctx) {
					s.log.Debug("tick skipped, refresh in flight")
				}
			}()
		}
	}
}
