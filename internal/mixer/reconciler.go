package mixer

import (
	"log/slog"
	"sync"
	"time"

	"vmix-remote/internal/platform/metrics"
)

// State is a consistent read of the snapshot and the link status.
type State struct {
	Snapshot StatusSnapshot `json:"snapshot"`
	Sync     SyncState      `json:"sync"`
}

// Reconciler owns the authoritative StatusSnapshot and SyncState. Only
// completed refreshes replace the snapshot; readers always get copies.
type Reconciler struct {
	mu      sync.RWMutex
	store   Store
	sync    SyncState
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics

	// notifyMu keeps listener deliveries in mutation order.
	notifyMu  sync.Mutex
	listeners []func(State)
}

// NewReconciler returns a disconnected Reconciler backed by an InMemoryStore.
// Metrics may be nil.
func NewReconciler(log *slog.Logger, m *metrics.Metrics) *Reconciler {
	return NewReconcilerWithStore(NewInMemoryStore(), log, m)
}

// NewReconcilerWithStore returns a Reconciler that keeps its snapshot in store.
func NewReconcilerWithStore(store Store, log *slog.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		store:   store,
		now:     time.Now,
		log:     log,
		metrics: m,
	}
}

// Subscribe registers fn to receive the state after every change.
// fn runs synchronously and must not call back into the Reconciler's mutators.
func (r *Reconciler) Subscribe(fn func(State)) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// State returns a copy of the current snapshot and SyncState.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{Snapshot: r.store.Snapshot().clone(), Sync: r.syncCopyLocked()}
}

// Snapshot returns a copy of the current snapshot.
func (r *Reconciler) Snapshot() StatusSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Snapshot().clone()
}

// BeginRefresh marks a refresh as in flight.
func (r *Reconciler) BeginRefresh() {
	r.mu.Lock()
	r.sync.Fetching = true
	r.mu.Unlock()
	r.notify()
}

// ApplyRefresh applies the outcome of one refresh and clears the fetching
// flag. On success the snapshot is replaced wholesale; on failure the
// previous snapshot stays in place and the link is marked down.
func (r *Reconciler) ApplyRefresh(snap StatusSnapshot, err error) {
	r.mu.Lock()
	wasConnected := r.sync.Connected
	if err != nil {
		r.sync.Connected = false
		r.sync.LastError = err.Error()
	} else {
		r.store.Replace(snap.clone())
		now := r.now()
		r.sync.Connected = true
		r.sync.LastError = ""
		r.sync.LastUpdatedAt = &now
	}
	r.sync.Fetching = false
	inputs := len(r.store.Snapshot().Inputs)
	r.mu.Unlock()

	switch {
	case err != nil && wasConnected:
		r.log.Warn("mixer connection lost", slog.String("error", err.Error()))
	case err != nil:
		r.log.Debug("mixer still unreachable", slog.String("error", err.Error()))
	case !wasConnected:
		r.log.Info("mixer connected", slog.Int("inputs", inputs))
	}

	if r.metrics != nil {
		r.metrics.SetConnected(err == nil)
		r.metrics.SetInputs(inputs)
	}
	r.notify()
}

// RecordCommandError stores a failed command's message in lastError without
// touching connectivity; the next refresh decides whether the link is up.
func (r *Reconciler) RecordCommandError(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.sync.LastError = err.Error()
	r.mu.Unlock()
	r.notify()
}

// Notify delivers the current state to subscribers without changing it.
// It is used when something outside the Reconciler, such as the refresh
// policy, changes what subscribers render.
func (r *Reconciler) Notify() {
	r.notify()
}

func (r *Reconciler) syncCopyLocked() SyncState {
	s := r.sync
	if s.LastUpdatedAt != nil {
		t := *s.LastUpdatedAt
		s.LastUpdatedAt = &t
	}
	return s
}

func (r *Reconciler) notify() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if len(r.listeners) == 0 {
		return
	}
	st := r.State()
	for _, fn := range r.listeners {
		fn(st)
	}
}
