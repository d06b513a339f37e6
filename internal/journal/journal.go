// Package journal persists the ordered action log produced by the broadcast
// dispatcher. Each dispatched action lands in the journal before subscribers
// observe the resulting snapshot, giving operators an audit trail and a replay
// source for reconstructing broadcast state.
package journal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stagecast/internal/observability/metrics"
)

// Entry is one journaled action.
type Entry struct {
	Sequence   uint64          `json:"sequence"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Journal stores dispatched actions in order.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	Close(ctx context.Context) error
}

// NewMemoryJournal initialises an in-process journal. It backs single-node
// deployments and tests.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// MemoryJournal keeps entries in a slice guarded by a mutex.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
}

func (j *MemoryJournal) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		metrics.Default().ObserveJournalFailure("memory")
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		metrics.Default().ObserveJournalFailure("memory")
		return ErrClosed
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	j.entries = append(j.entries, entry)
	metrics.Default().ObserveJournalAppend("memory")
	return nil
}

func (j *MemoryJournal) Close(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

// Entries returns a copy of the journaled entries in append order.
func (j *MemoryJournal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}
