// Package models merges the daemon's installed-model catalog and its
// running-model list into one consistent view for the dashboard.
package models

import (
	"context"
	"sync"
	"time"

	"github.com/jeanpaul/modeldeck/internal/runtime"
)

// Fetcher is the slice of the transport adapter the aggregator needs.
type Fetcher interface {
	ListInstalled(ctx context.Context) ([]runtime.ModelRecord, error)
	ListRunning(ctx context.Context) ([]runtime.RunningModelRecord, error)
}

// UnifiedModel is one installed model joined by exact name against the
// running set. A model absent from the running set is, by definition, not
// loaded; there is no third state. VRAMGB, RAMGB and ExpiresIn are only
// meaningful when Loaded is true; ExpiresIn is nil when the daemon keeps
// the model resident indefinitely or the expiry already passed.
type UnifiedModel struct {
	runtime.ModelRecord
	Loaded    bool
	VRAMGB    float64
	RAMGB     float64
	ExpiresIn *time.Duration
}

// Snapshot is a fully-replaced view produced by one aggregation cycle.
// It is never mutated in place.
type Snapshot struct {
	Models []UnifiedModel
	Taken  time.Time
}

// Aggregator periodically fetches both source lists, joins them, and
// publishes snapshots. If either fetch fails the cycle fails whole: the
// previous stale-but-consistent snapshot stays visible rather than being
// replaced by a partial join.
type Aggregator struct {
	client   Fetcher
	interval time.Duration

	mu      sync.RWMutex
	snap    Snapshot
	hasSnap bool
	subs    []chan Snapshot

	refreshCh chan struct{}
}

func NewAggregator(client Fetcher, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Aggregator{
		client:    client,
		interval:  interval,
		refreshCh: make(chan struct{}, 1),
	}
}

// Refresh fetches the installed and running lists concurrently, so latency
// is bounded by the slower of the two rather than their sum, joins them, and
// publishes the result atomically.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	type installedResult struct {
		models []runtime.ModelRecord
		err    error
	}
	type runningResult struct {
		models []runtime.RunningModelRecord
		err    error
	}

	instCh := make(chan installedResult, 1)
	runCh := make(chan runningResult, 1)
	go func() {
		m, err := a.client.ListInstalled(ctx)
		instCh <- installedResult{m, err}
	}()
	go func() {
		m, err := a.client.ListRunning(ctx)
		runCh <- runningResult{m, err}
	}()

	inst := <-instCh
	run := <-runCh
	if inst.err != nil {
		return Snapshot{}, inst.err
	}
	if run.err != nil {
		return Snapshot{}, run.err
	}

	snap := join(inst.models, run.models, time.Now())
	a.publish(snap)
	return snap, nil
}

func join(installed []runtime.ModelRecord, running []runtime.RunningModelRecord, now time.Time) Snapshot {
	loaded := make(map[string]runtime.RunningModelRecord, len(running))
	for _, r := range running {
		loaded[r.ModelName] = r
	}

	const gb = 1024 * 1024 * 1024
	models := make([]UnifiedModel, len(installed))
	for i, m := range installed {
		u := UnifiedModel{ModelRecord: m}
		if r, ok := loaded[m.Name]; ok {
			u.Loaded = true
			u.VRAMGB = float64(r.VRAMBytes) / gb
			u.RAMGB = float64(r.RAMBytes) / gb
			if r.ExpiresAt != nil && r.ExpiresAt.After(now) {
				d := r.ExpiresAt.Sub(now)
				u.ExpiresIn = &d
			}
		}
		models[i] = u
	}
	return Snapshot{Models: models, Taken: now}
}

func (a *Aggregator) publish(snap Snapshot) {
	a.mu.Lock()
	a.snap = snap
	a.hasSnap = true
	subs := a.subs
	a.mu.Unlock()

	for _, ch := range subs {
		// Non-blocking: a slow observer drops intermediate snapshots and
		// catches up on the next one.
		select {
		case ch <- snap:
		default:
		}
	}
}

// Current returns the last published snapshot, if any.
func (a *Aggregator) Current() (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap, a.hasSnap
}

// Subscribe registers an observer. Each published snapshot is offered to
// the channel; snapshots are dropped rather than blocking publication.
func (a *Aggregator) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	a.mu.Lock()
	a.subs = append(a.subs, ch)
	a.mu.Unlock()
	return ch
}

// RequestRefresh asks the run loop for an immediate out-of-band cycle.
// The download registry calls this when a pull completes; coalescing into
// a buffered signal keeps it idempotent against a racing periodic tick.
func (a *Aggregator) RequestRefresh() {
	select {
	case a.refreshCh <- struct{}{}:
	default:
	}
}

// Run drives the periodic refresh loop until ctx is cancelled. Failures
// are swallowed here; the last good snapshot stays current and the next
// tick retries.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Refresh(ctx)
		case <-a.refreshCh:
			a.Refresh(ctx)
		}
	}
}
