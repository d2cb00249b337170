package wizard

import (
	"context"
	"sync"
	"time"

	"grant-intake/internal/common/logger"
	"grant-intake/internal/common/metrics"
	"grant-intake/internal/models"
	"grant-intake/internal/store"
)

type snapshot struct {
	draft *models.ApplicationDraft
	rev   int64
}

// Autosaver is a single-slot pending queue of draft snapshots. A newer
// snapshot replaces a pending one, the debounce timer restarts on every
// Schedule, and at most one save is in flight. A snapshot that becomes due
// while a save is running is issued right after it.
type Autosaver struct {
	gateway  store.Gateway
	logger   logger.Logger
	debounce time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	idle     *sync.Cond
	timer    *time.Timer
	pending  *snapshot
	due      bool
	inflight bool
	closed   bool
	savedRev int64
	savedAt  *time.Time
	lastErr  error
}

// NewAutosaver returns an autosaver writing through gateway. A debounce of
// zero issues saves as soon as they are scheduled.
func NewAutosaver(gateway store.Gateway, log logger.Logger, debounce, timeout time.Duration, now func() time.Time) *Autosaver {
	a := &Autosaver{
		gateway:  gateway,
		logger:   log,
		debounce: debounce,
		timeout:  timeout,
		now:      now,
	}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// Schedule queues draft, which must be a snapshot the caller no longer
// mutates, as revision rev.
func (a *Autosaver) Schedule(draft *models.ApplicationDraft, rev int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = &snapshot{draft: draft, rev: rev}

	if a.debounce <= 0 {
		a.due = true
		a.startLocked()
		return
	}
	a.due = false
	if a.timer == nil {
		a.timer = time.AfterFunc(a.debounce, a.fire)
		return
	}
	a.timer.Stop()
	a.timer.Reset(a.debounce)
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.due = true
	a.startLocked()
}

func (a *Autosaver) startLocked() {
	if a.inflight || !a.due || a.pending == nil || a.closed {
		return
	}
	snap := a.pending
	a.pending = nil
	a.due = false
	a.inflight = true
	go a.run(snap)
}

func (a *Autosaver) run(snap *snapshot) {
	err := a.save(snap)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completeLocked(snap, err)
}

func (a *Autosaver) save(snap *snapshot) error {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	savedAt := a.now()
	snap.draft.LastSavedAt = &savedAt
	return a.gateway.Save(ctx, snap.draft.ID, snap.draft)
}

func (a *Autosaver) completeLocked(snap *snapshot, err error) {
	if err != nil {
		a.lastErr = err
		metrics.Autosaves.WithLabelValues("failure").Inc()
		a.logger.Warn("autosave failed", map[string]interface{}{
			"draftId":  snap.draft.ID,
			"revision": snap.rev,
			"error":    err,
		})
	} else {
		a.lastErr = nil
		if snap.rev > a.savedRev {
			a.savedRev = snap.rev
			a.savedAt = snap.draft.LastSavedAt
		}
		metrics.Autosaves.WithLabelValues("success").Inc()
		a.logger.Debug("autosave completed", map[string]interface{}{
			"draftId":  snap.draft.ID,
			"revision": snap.rev,
		})
	}
	a.inflight = false
	a.idle.Broadcast()
	a.startLocked()
}

// Quiesce drops any pending snapshot and waits for the in-flight save, so
// that the caller's next gateway write is not interleaved with an autosave.
func (a *Autosaver) Quiesce() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.pending = nil
	a.due = false
	for a.inflight {
		a.idle.Wait()
	}
}

// Flush issues the pending snapshot now and waits for it.
func (a *Autosaver) Flush() error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	for a.inflight {
		a.idle.Wait()
	}
	snap := a.pending
	if snap == nil || a.closed {
		a.mu.Unlock()
		return nil
	}
	a.pending = nil
	a.due = false
	a.inflight = true
	a.mu.Unlock()

	err := a.save(snap)

	a.mu.Lock()
	a.completeLocked(snap, err)
	a.mu.Unlock()
	return err
}

// Close flushes and stops accepting snapshots.
func (a *Autosaver) Close() error {
	err := a.Flush()
	a.mu.Lock()
	a.closed = true
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()
	return err
}

// Saved reports the newest revision persisted by an autosave and when.
func (a *Autosaver) Saved() (int64, *time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.savedAt == nil {
		return a.savedRev, nil
	}
	t := *a.savedAt
	return a.savedRev, &t
}

// Err returns the error of the most recent autosave, nil after a success.
func (a *Autosaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Pending reports whether a snapshot is waiting or being written.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil || a.inflight
}
