package pull

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of one download task.
type Status int

const (
	StatusPending Status = iota
	StatusDownloading
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Snapshot is an immutable copy of a task's state, safe to read without
// synchronization. ListAll hands these out so callers never observe a task
// mutating under them mid-read.
type Snapshot struct {
	ID             string
	ModelName      string
	Status         Status
	StatusText     string
	Percent        int
	BytesCompleted int64
	BytesTotal     int64
	Error          string
	StartedAt      time.Time
	EndedAt        time.Time // zero until a terminal state is entered
}

// task is one attempted pull of one named model. Fields are mutated only
// by the task's own supervising goroutine (and by Cancel marking the
// terminal state), always under mu. Re-pulling the same model name creates
// a new task rather than mutating an old one.
type task struct {
	mu     sync.Mutex
	snap   Snapshot
	cancel context.CancelFunc
}

func (t *task) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// markDownloading moves Pending → Downloading. The transition happens as
// soon as the daemon accepts the initiating request, before the first
// progress line arrives.
func (t *task) markDownloading() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status == StatusPending {
		t.snap.Status = StatusDownloading
	}
}

// applyEvent folds one decoded progress event into the task state.
// It reports whether the event completed the task, so the supervisor can
// fire the aggregator refresh exactly once.
func (t *task) applyEvent(ev ProgressEvent) (completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status.Terminal() {
		// A cancelled or failed task ignores events still buffered in
		// the stream.
		return false
	}

	if ev.Err != "" {
		t.snap.Error = ev.Err
		t.finishLocked(StatusFailed)
		return false
	}
	if ev.TerminalSuccess() {
		t.snap.StatusText = ev.Status
		t.snap.Percent = 100
		t.finishLocked(StatusCompleted)
		return true
	}

	t.snap.StatusText = ev.Status
	if ev.Total > 0 {
		t.snap.BytesCompleted = ev.Completed
		t.snap.BytesTotal = ev.Total
		// Layers restart the completed/total ratio, so clamp: percent
		// never decreases while downloading.
		if pct := int(float64(ev.Completed) / float64(ev.Total) * 100); pct > t.snap.Percent {
			t.snap.Percent = pct
		}
	}
	return false
}

// finish moves the task to a terminal state unless one was already
// reached. Reports whether this call performed the transition.
func (t *task) finish(status Status, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status.Terminal() {
		return false
	}
	if errMsg != "" {
		t.snap.Error = errMsg
	}
	t.finishLocked(status)
	return true
}

func (t *task) finishLocked(status Status) {
	t.snap.Status = status
	if status == StatusCompleted {
		t.snap.Percent = 100
	}
	t.snap.EndedAt = time.Now()
	// Terminal tasks release their stream; for an already-finished stream
	// this is a no-op, for a cancel it tears the connection down.
	t.cancel()
}

// run supervises one pull from initiation to a terminal state. It is the
// only goroutine that drives this task forward; it suspends only while
// awaiting the next stream chunk or the initiating response, and the
// context keeps it cancellable during either wait.
func (t *task) run(ctx context.Context, client Puller, onComplete func(modelName string)) {
	snap := t.snapshot()

	body, err := client.StreamPull(ctx, snap.ModelName)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			t.finish(StatusCancelled, "")
		} else {
			t.finish(StatusFailed, err.Error())
		}
		return
	}
	defer body.Close()

	t.markDownloading()

	dec := NewDecoder(body)
	lastStatus := ""
	for {
		ev, ok := dec.Next()
		if !ok {
			break
		}
		lastStatus = ev.Status
		if t.applyEvent(ev) {
			onComplete(snap.ModelName)
			return
		}
		if t.snapshot().Status.Terminal() {
			return
		}
	}

	// Stream ended without an explicit terminal event.
	switch {
	case ctx.Err() != nil:
		t.finish(StatusCancelled, "")
	case dec.Err() != nil:
		t.finish(StatusFailed, fmt.Sprintf("stream error: %v", dec.Err()))
	case lastStatus == "success":
		// Some daemons close right after the success line; either signal
		// suffices.
		if t.finish(StatusCompleted, "") {
			onComplete(snap.ModelName)
		}
	default:
		t.finish(StatusFailed, "stream ended before the daemon reported success")
	}
}
