// Package alerts implements the process-wide alert store: a mutex-guarded
// map from alert identity to the latest Alert seen for that identity, with
// change notification to the mute controller and the event bus.
package alerts

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"coldwatch/internal/events"
	"coldwatch/internal/metrics"
	"coldwatch/internal/model"
)

// Store holds I1-I3 from the data model: at most one entry per id, an
// added/removed event on every mutation, and an empty<->non-empty edge
// that the buzzer controller and mute controller react to.
type Store struct {
	mu   sync.Mutex
	byID map[string]model.Alert

	bus        *events.Bus
	logger     *slog.Logger
	forceClear func()
}

// New returns an empty store. forceClear is the mute controller's one-way
// notification hook (see the cyclic-dependency note in DESIGN.md); it may
// be nil until the mute controller is wired in by the caller.
func New(bus *events.Bus, logger *slog.Logger) *Store {
	return &Store{
		byID:   make(map[string]model.Alert),
		bus:    bus,
		logger: logger,
	}
}

// SetForceClear wires the mute controller's force_clear callback. Called
// once during startup, before any upsert can occur.
func (s *Store) SetForceClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceClear = fn
}

// Upsert inserts or overwrites the entry for alert.ID (latest wins) and
// emits alerts://added. Whenever this call introduces a new id — the set
// of active alerts grows, whether from empty or from any smaller
// non-empty set — the mute controller is force-cleared before the event
// is emitted, matching I2/M2: any new active alarm forces mute inactive
// within the same tick. Re-upserting an id that was already present does
// not enlarge the set and does not force-clear.
func (s *Store) Upsert(alert model.Alert) {
	defer s.recoverPoison("upsert")

	s.mu.Lock()
	_, existed := s.byID[alert.ID]
	s.byID[alert.ID] = alert
	forceClear := s.forceClear
	s.mu.Unlock()

	if !existed && forceClear != nil {
		forceClear()
	}
	if s.bus != nil {
		s.bus.Emit("alerts://added", alert)
	}
	metrics.IncAlertEvent("added")
}

// Remove deletes the entry for id, returning whether one existed. Emits
// alerts://removed exactly when it returns true.
func (s *Store) Remove(id string) bool {
	defer s.recoverPoison("remove")

	s.mu.Lock()
	_, existed := s.byID[id]
	if existed {
		delete(s.byID, id)
	}
	s.mu.Unlock()

	if existed {
		if s.bus != nil {
			s.bus.Emit("alerts://removed", model.RemovedEvent{ID: id})
		}
		metrics.IncAlertEvent("removed")
	}
	return existed
}

// Snapshot returns every active alert, sorted newest-first by date_time,
// ties broken by id ascending.
func (s *Store) Snapshot() []model.Alert {
	defer s.recoverPoison("snapshot")

	s.mu.Lock()
	out := make([]model.Alert, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ti, _ := time.Parse("02/01/2006 15:04:05", out[i].DateTime)
		tj, _ := time.Parse("02/01/2006 15:04:05", out[j].DateTime)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsEmpty reports whether the store currently holds no alerts.
func (s *Store) IsEmpty() bool {
	defer s.recoverPoison("is_empty")

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID) == 0
}

// Contains reports whether id is present, used by tests and idempotence checks.
func (s *Store) Contains(id string) bool {
	defer s.recoverPoison("contains")

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// recoverPoison mirrors the spec's poison-recovery requirement: Go mutexes
// don't literally poison, but a panic mid-critical-section would otherwise
// propagate past the store and take down the calling goroutine. Recovering
// here means a programming error in one upsert/remove call degrades to a
// logged warning instead of crashing a source loop.
func (s *Store) recoverPoison(op string) {
	if r := recover(); r != nil {
		if s.logger != nil {
			s.logger.Warn("alert store recovered from panic", "op", op, "recover", r)
		}
	}
}
