package mixer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubFetcher counts fetches. When release is set, each fetch blocks until it
// can receive from release (or release is closed).
type stubFetcher struct {
	mu       sync.Mutex
	calls    int
	inflight int
	maxIn    int
	started  chan struct{}
	release  chan struct{}
	snap     StatusSnapshot
	err      error
}

func (f *stubFetcher) FetchStatus(ctx context.Context) (StatusSnapshot, error) {
	f.mu.Lock()
	f.calls++
	f.inflight++
	if f.inflight > f.maxIn {
		f.maxIn = f.inflight
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	return f.snap, f.err
}

func (f *stubFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *stubFetcher) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxIn
}

// appliedCounter counts completed refreshes seen by the reconciler.
type appliedCounter struct {
	mu sync.Mutex
	n  int
}

func (c *appliedCounter) observe(rec *Reconciler) {
	rec.Subscribe(func(st State) {
		if !st.Sync.Fetching {
			c.mu.Lock()
			c.n++
			c.mu.Unlock()
		}
	})
}

func (c *appliedCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScheduler_RefreshNow_applies_result(t *testing.T) {
	f := &stubFetcher{snap: fiveInputs()}
	rec := NewReconciler(testLogger(), nil)
	sched := NewScheduler(f, rec, DefaultRefreshPolicy(), testLogger(), nil)

	if !sched.RefreshNow(context.Background()) {
		t.Fatal("RefreshNow should run when idle")
	}
	st := rec.State()
	if !st.Sync.Connected || len(st.Snapshot.Inputs) != 5 || st.Sync.Fetching {
		t.Errorf("unexpected state after refresh: %+v", st.Sync)
	}
}

func TestScheduler_RefreshNow_failure(t *testing.T) {
	f := &stubFetcher{err: &NetworkError{Err: errors.New("connection refused")}}
	rec := NewReconciler(testLogger(), nil)
	sched := NewScheduler(f, rec, DefaultRefreshPolicy(), testLogger(), nil)

	sched.RefreshNow(context.Background())
	st := rec.State()
	if st.Sync.Connected || st.Sync.LastError == "" || st.Sync.Fetching {
		t.Errorf("unexpected state after failed refresh: %+v", st.Sync)
	}
}

func TestScheduler_RefreshNow_while_in_flight_is_skipped(t *testing.T) {
	f := &stubFetcher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		snap:    fiveInputs(),
	}
	rec := NewReconciler(testLogger(), nil)
	var applied appliedCounter
	applied.observe(rec)
	sched := NewScheduler(f, rec, DefaultRefreshPolicy(), testLogger(), nil)

	first := make(chan bool)
	go func() { first <- sched.RefreshNow(context.Background()) }()
	<-f.started

	if sched.RefreshNow(context.Background()) {
		t.Error("RefreshNow during an in-flight refresh should be skipped")
	}
	if !rec.State().Sync.Fetching {
		t.Error("fetching should be true while the first refresh runs")
	}

	close(f.release)
	if !<-first {
		t.Error("first RefreshNow should have run")
	}

	if got := applied.get(); got != 1 {
		t.Errorf("expected exactly 1 applied update, got %d", got)
	}
	if f.count() != 1 {
		t.Errorf("expected 1 fetch, got %d", f.count())
	}
}

func TestScheduler_Converge_waits_for_in_flight(t *testing.T) {
	f := &stubFetcher{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
		snap:    fiveInputs(),
	}
	rec := NewReconciler(testLogger(), nil)
	sched := NewScheduler(f, rec, DefaultRefreshPolicy(), testLogger(), nil)

	first := make(chan bool)
	go func() { first <- sched.RefreshNow(context.Background()) }()
	<-f.started

	converged := make(chan struct{})
	go func() {
		sched.Converge(context.Background())
		close(converged)
	}()

	time.Sleep(20 * time.Millisecond)
	if f.count() != 1 {
		t.Fatalf("Converge must not fetch while another refresh is in flight, fetches=%d", f.count())
	}

	close(f.release)
	<-first
	<-converged

	if f.count() != 2 {
		t.Errorf("expected 2 fetches, got %d", f.count())
	}
	if f.maxConcurrent() != 1 {
		t.Errorf("refreshes overlapped: max concurrent %d", f.maxConcurrent())
	}
}

func TestScheduler_Run_initial_refresh_without_auto(t *testing.T) {
	f := &stubFetcher{snap: fiveInputs()}
	rec := NewReconciler(testLogger(), nil)
	sched := NewScheduler(f, rec, RefreshPolicy{AutoRefresh: false, IntervalMs: 5}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return f.count() == 1 })
	time.Sleep(50 * time.Millisecond)
	if f.count() != 1 {
		t.Errorf("auto refresh disabled: expected only the initial fetch, got %d", f.count())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestScheduler_disable_auto_refresh_stops_ticks(t *testing.T) {
	f := &stubFetcher{snap: fiveInputs()}
	rec := NewReconciler(testLogger(), nil)
	sched := NewScheduler(f, rec, RefreshPolicy{AutoRefresh: true, IntervalMs: 10}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return f.count() >= 3 })

	sched.SetAutoRefresh(false)
	time.Sleep(30 * time.Millisecond)
	n := f.count()
	time.Sleep(100 * time.Millisecond)
	if got := f.count(); got != n {
		t.Errorf("refreshes continued after disabling: %d -> %d", n, got)
	}

	sched.SetAutoRefresh(true)
	waitFor(t, time.Second, func() bool { return f.count() > n })

	cancel()
	<-done
}

func TestScheduler_interval_change_takes_effect(t *testing.T) {
	f := &stubFetcher{snap: fiveInputs()}
	rec := NewReconciler(testLogger(), nil)
	sched := NewScheduler(f, rec, RefreshPolicy{AutoRefresh: true, IntervalMs: 60_000}, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() { done <- sched.Run(ctx) }()

	waitFor(t, time.Second, func() bool { return f.count() == 1 })
	if err := sched.SetInterval(10); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}
	waitFor(t, time.Second, func() bool { return f.count() >= 3 })

	cancel()
	<-done
}

func TestScheduler_ApplyPolicy(t *testing.T) {
	sched := NewScheduler(&stubFetcher{}, NewReconciler(testLogger(), nil), DefaultRefreshPolicy(), testLogger(), nil)

	zero := 0
	if _, err := sched.ApplyPolicy(PolicyUpdate{IntervalMs: &zero}); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
	if sched.Policy() != DefaultRefreshPolicy() {
		t.Errorf("rejected update changed the policy: %+v", sched.Policy())
	}

	low := 250
	off := false
	p, err := sched.ApplyPolicy(PolicyUpdate{AutoRefresh: &off, IntervalMs: &low})
	if err != nil {
		t.Fatalf("ApplyPolicy: %v", err)
	}
	if p.AutoRefresh || p.IntervalMs != 250 {
		t.Errorf("policy = %+v", p)
	}
}

func TestScheduler_tick_after_disable_does_not_refresh(t *testing.T) {
	f := &stubFetcher{snap: fiveInputs()}
	sched := NewScheduler(f, NewReconciler(testLogger(), nil), RefreshPolicy{AutoRefresh: false, IntervalMs: 10}, testLogger(), nil)

	tick := make(chan time.Time, 1)
	tick <- time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var wg sync.WaitGroup
	if done := sched.waitTicks(ctx, tick, &wg); !done {
		t.Fatal("waitTicks should return on context end")
	}
	wg.Wait()

	if f.count() != 0 {
		t.Errorf("tick delivered after disabling started %d refreshes", f.count())
	}
}

func TestScheduler_ApplyPolicy_unchanged_keeps_schedule(t *testing.T) {
	rec := NewReconciler(testLogger(), nil)
	var notified int
	rec.Subscribe(func(State) { notified++ })
	sched := NewScheduler(&stubFetcher{}, rec, DefaultRefreshPolicy(), testLogger(), nil)

	same := DefaultIntervalMs
	on := true
	for _, u := range []PolicyUpdate{{}, {IntervalMs: &same}, {AutoRefresh: &on}} {
		if _, err := sched.ApplyPolicy(u); err != nil {
			t.Fatalf("ApplyPolicy(%+v): %v", u, err)
		}
	}
	if len(sched.wake) != 0 {
		t.Error("an update that changes nothing should not wake the loop")
	}
	if notified != 0 {
		t.Errorf("an update that changes nothing should not notify, got %d", notified)
	}

	faster := 1000
	if _, err := sched.ApplyPolicy(PolicyUpdate{IntervalMs: &faster}); err != nil {
		t.Fatalf("ApplyPolicy: %v", err)
	}
	if len(sched.wake) != 1 {
		t.Error("a changed interval should wake the loop")
	}
	if notified != 1 {
		t.Errorf("a changed policy should notify subscribers once, got %d", notified)
	}
}
