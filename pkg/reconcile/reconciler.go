// Package reconcile merges pushed task change events into local client state.
// The transport only promises "mostly delivers, eventually": events may be
// duplicated, reordered, or dropped. The reconciler restores per-task order
// from the sequence numbers and repairs gaps by replaying the timeline.
package reconcile

import (
	"context"
	"sync"
	"time"
)

// Event mirrors the wire payload published for every committed transition.
type Event struct {
	TaskID     string    `json:"task_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	Sequence   uint64    `json:"sequence"`
	CreatedAt  time.Time `json:"created_at"`
}

// TimelineReader replays committed events with sequence > sinceSequence,
// ordered by sequence ascending. Typically backed by the GET timeline
// endpoint.
type TimelineReader interface {
	ReadFrom(ctx context.Context, taskID string, sinceSequence uint64) ([]Event, error)
}

// ApplyFunc receives events strictly in sequence order, exactly once per
// sequence number.
type ApplyFunc func(event Event)

// Reconciler tracks one cursor per task. It is safe for concurrent use; a
// cursor only ever advances.
type Reconciler struct {
	mu      sync.Mutex
	reader  TimelineReader
	apply   ApplyFunc
	cursors map[string]uint64
}

func New(reader TimelineReader, apply ApplyFunc) *Reconciler {
	return &Reconciler{
		reader:  reader,
		apply:   apply,
		cursors: make(map[string]uint64),
	}
}

// Apply merges one pushed event:
//
//   - sequence <= cursor: duplicate delivery, discarded.
//   - sequence == cursor+1: applied, cursor advances.
//   - sequence > cursor+1: gap; the missing range is replayed from the
//     timeline before anything is shown, then applied in order.
//
// On a replay error the cursor is left untouched, so a later event or a
// retry repairs the same gap.
func (r *Reconciler) Apply(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cursor := r.cursors[event.TaskID]
	switch {
	case event.Sequence <= cursor:
		return nil
	case event.Sequence == cursor+1:
		r.applyLocked(event)
		return nil
	}

	replayed, err := r.reader.ReadFrom(ctx, event.TaskID, cursor)
	if err != nil {
		return err
	}
	for _, e := range replayed {
		if e.Sequence == r.cursors[event.TaskID]+1 {
			r.applyLocked(e)
		}
	}
	// The replay may have raced the push and stopped short of the pushed
	// event itself.
	if event.Sequence == r.cursors[event.TaskID]+1 {
		r.applyLocked(event)
	}
	return nil
}

// Resync replays everything past the current cursor, for cold starts and
// reconnects where no push has arrived yet.
func (r *Reconciler) Resync(ctx context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replayed, err := r.reader.ReadFrom(ctx, taskID, r.cursors[taskID])
	if err != nil {
		return err
	}
	for _, e := range replayed {
		if e.Sequence == r.cursors[taskID]+1 {
			r.applyLocked(e)
		}
	}
	return nil
}

// Cursor returns the last applied sequence for the task, zero if none.
func (r *Reconciler) Cursor(taskID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursors[taskID]
}

// Forget drops the task's cursor, once a terminal event has been applied and
// acknowledged by the embedding client.
func (r *Reconciler) Forget(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, taskID)
}

func (r *Reconciler) applyLocked(event Event) {
	r.cursors[event.TaskID] = event.Sequence
	if r.apply != nil {
		r.apply(event)
	}
}
