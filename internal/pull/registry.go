package pull

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Puller is the slice of the transport adapter the download machinery
// needs. Cancelling the context passed to StreamPull must tear down the
// underlying connection, not just stop reads.
type Puller interface {
	StreamPull(ctx context.Context, name string) (io.ReadCloser, error)
}

// Registry is the process-wide collection of download tasks and the single
// source of truth the presentation layer observes. The registry mutex only
// guards the task map; per-task state has its own lock, and neither is
// ever held across a network read.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*task
	order []string // creation order, for stable listing

	client     Puller
	onComplete func(modelName string)
}

// NewRegistry creates a registry that pulls through client. onComplete is
// invoked exactly once per task that reaches Completed (and never for
// Failed or Cancelled); the aggregator hooks its refresh in here.
func NewRegistry(client Puller, onComplete func(modelName string)) *Registry {
	if onComplete == nil {
		onComplete = func(string) {}
	}
	return &Registry{
		tasks:      make(map[string]*task),
		client:     client,
		onComplete: onComplete,
	}
}

// Start creates a brand-new task for modelName and begins pulling in the
// background. It never blocks on completion and never deduplicates:
// pulling the same name twice yields two independent tasks. The returned
// id is unique for the lifetime of the registry.
func (r *Registry) Start(modelName string) string {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		snap: Snapshot{
			ID:        uuid.NewString(),
			ModelName: modelName,
			Status:    StatusPending,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.tasks[t.snap.ID] = t
	r.order = append(r.order, t.snap.ID)
	r.mu.Unlock()

	go t.run(ctx, r.client, r.onComplete)
	return t.snap.ID
}

// Cancel requests cancellation of a task. Unknown ids and tasks already in
// a terminal state are no-ops; it is safe to race with the task's own
// completion.
func (r *Registry) Cancel(id string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if ok {
		t.finish(StatusCancelled, "")
	}
}

// Remove drops a task from the observable set, cancelling it first if it
// is still active.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
		for i, oid := range r.order {
			if oid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if ok {
		t.finish(StatusCancelled, "")
	}
}

// ClearTerminal removes every completed, failed and cancelled task.
// Active tasks are untouched.
func (r *Registry) ClearTerminal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, id := range r.order {
		if r.tasks[id].snapshot().Status.Terminal() {
			delete(r.tasks, id)
		} else {
			kept = append(kept, id)
		}
	}
	r.order = kept
}

// ListAll returns a snapshot of every tracked task in creation order.
func (r *Registry) ListAll() []Snapshot {
	r.mu.Lock()
	ts := make([]*task, 0, len(r.order))
	for _, id := range r.order {
		ts = append(ts, r.tasks[id])
	}
	r.mu.Unlock()

	snaps := make([]Snapshot, len(ts))
	for i, t := range ts {
		snaps[i] = t.snapshot()
	}
	return snaps
}

// Get returns the current snapshot of one task.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(), true
}

// IsActive reports whether at least one task for modelName is pending or
// downloading. The dashboard uses this for its duplicate-pull warning;
// Start itself never refuses.
func (r *Registry) IsActive(modelName string) bool {
	for _, s := range r.ListAll() {
		if s.ModelName == modelName && !s.Status.Terminal() {
			return true
		}
	}
	return false
}
