// Package store owns the live broadcast snapshot. It serialises action
// dispatch through the reducer, journals every action, publishes deep-copied
// snapshots to subscribers, and drives the media transport on lifecycle
// transitions.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"stagecast/internal/broadcast"
	"stagecast/internal/journal"
	"stagecast/internal/media"
	"stagecast/internal/observability/metrics"
)

// Snapshot pairs a deep-copied state value with the version counter it was
// produced at. Versions increase by one per dispatched action.
type Snapshot struct {
	State   broadcast.BroadcastState
	Version uint64
}

// Config wires the dispatcher's collaborators. Journal and Media may be nil;
// dispatch then skips journaling and transport control respectively.
type Config struct {
	Journal journal.Journal
	Media   media.Controller
	Logger  *slog.Logger
	Buffer  int
}

// Store is the single writer for broadcast state.
type Store struct {
	mu      sync.Mutex
	state   broadcast.BroadcastState
	version uint64

	journal journal.Journal
	media   media.Controller
	logger  *slog.Logger
	buffer  int

	subsMu sync.RWMutex
	subs   map[*Subscription]struct{}
}

// New seeds a store with the canonical initial state.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Store{
		state:   broadcast.InitialState(),
		journal: cfg.Journal,
		media:   cfg.Media,
		logger:  logger,
		buffer:  buffer,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Dispatch reduces the action into a new snapshot, journals it, and fans the
// snapshot out to subscribers. A journal failure aborts the dispatch and
// leaves the published state unchanged.
func (s *Store) Dispatch(ctx context.Context, action broadcast.Action) (Snapshot, error) {
	if action == nil {
		return s.Snapshot(), nil
	}

	s.mu.Lock()
	prev := s.state
	next := broadcast.Reduce(prev, action)
	version := s.version + 1

	if s.journal != nil {
		payload, err := json.Marshal(action)
		if err != nil {
			s.mu.Unlock()
			return Snapshot{}, err
		}
		entry := journal.Entry{
			Sequence:   version,
			Kind:       string(action.Kind()),
			Payload:    payload,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.journal.Append(ctx, entry); err != nil {
			s.mu.Unlock()
			return Snapshot{}, err
		}
	}

	s.state = next
	s.version = version
	s.mu.Unlock()

	metrics.Default().ObserveAction(string(action.Kind()))
	metrics.Default().SetActiveFans(len(next.ActiveFans.Order))
	metrics.Default().SetViewers(next.Viewers)

	s.applyTransitions(prev, next)

	snapshot := Snapshot{State: next.Copy(), Version: version}
	s.publish(snapshot)
	return snapshot, nil
}

// applyTransitions issues media control calls for state deltas that carry
// side effects. Closing the event tears down every transport connection.
func (s *Store) applyTransitions(prev, next broadcast.BroadcastState) {
	if s.media == nil {
		return
	}
	if prev.Status() != broadcast.StatusClosed && next.Status() == broadcast.StatusClosed {
		s.logger.Info("event closed, disconnecting media transport")
		s.media.Disconnect()
	}
}

// Snapshot returns the current state as an isolated deep copy.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state.Copy(), Version: s.version}
}

// Subscribe registers for snapshot updates. Slow subscribers miss
// intermediate snapshots rather than stalling dispatch; each delivered
// snapshot is independently deep-copied.
func (s *Store) Subscribe() *Subscription {
	sub := &Subscription{
		store: s,
		ch:    make(chan Snapshot, s.buffer),
	}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	return sub
}

func (s *Store) publish(snapshot Snapshot) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for sub := range s.subs {
		copied := Snapshot{State: snapshot.State.Copy(), Version: snapshot.Version}
		select {
		case sub.ch <- copied:
		default:
			// Drop for this subscriber; the next snapshot supersedes it.
		}
	}
}

// Subscription is one registered snapshot listener.
type Subscription struct {
	once  sync.Once
	store *Store
	ch    chan Snapshot
}

// Updates delivers snapshots in dispatch order. The channel closes when the
// subscription is closed.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Close unregisters the subscription. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.store.subsMu.Lock()
		delete(s.store.subs, s)
		s.store.subsMu.Unlock()
		close(s.ch)
	})
}
