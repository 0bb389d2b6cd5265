// Package store is the reference host for the core: an in-memory entity
// store with all-or-nothing transactions and optional snapshot persistence.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"venueops/internal/apperr"
	"venueops/internal/intake"
	appLog "venueops/internal/log"
	"venueops/internal/model"
)

// Snapshot is the full host state. Every collection keeps insertion order,
// which the calendar view relies on.
type Snapshot struct {
	Events    []model.Event                `json:"events"`
	Meetings  []model.Meeting              `json:"meetings"`
	Members   []model.TeamMember           `json:"members"`
	Rooms     []model.Room                 `json:"rooms"`
	Bookings  []model.Booking              `json:"bookings"`
	Tickets   []model.MaintenanceTicket    `json:"tickets"`
	Protocols []model.VipResidencyProtocol `json:"protocols"`
	Signals   []model.CrossDomainSignal    `json:"signals"`
	Tasks     []model.OperationalTask      `json:"tasks"`
}

// Persister durably stores snapshots. Save runs inside the store lock
// before a transaction becomes visible; a failed Save aborts it.
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, bool, error)
}

// Option configures a Store.
type Option func(*Store)

// WithPersister attaches durable storage.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithIDGenerator overrides uuid based ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store guards the host state with a single RWMutex. Readers always see
// either the state before or after a whole transaction.
type Store struct {
	mu        sync.RWMutex
	state     Snapshot
	persister Persister
	newID     func() string

	listenersMu sync.Mutex
	listeners   []func()
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{newID: func() string { return uuid.New().String() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID issues an id from the store's generator.
func (s *Store) NewID() string { return s.newID() }

// Load replaces the in-memory state with the persisted snapshot, if any.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, ok, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		appLog.Info("no persisted snapshot, starting empty")
		return nil
	}
	s.mu.Lock()
	s.state = snap.clone()
	s.mu.Unlock()
	appLog.Info("snapshot loaded",
		"bookings", len(snap.Bookings),
		"signals", len(snap.Signals),
		"meetings", len(snap.Meetings),
	)
	s.notify()
	return nil
}

// OnChange registers fn to run after every committed transaction.
func (s *Store) OnChange(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	fns := append([]func(){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// RunInTransaction runs fn against a private copy of the state. The copy
// replaces the live state only when fn and the persister both succeed.
// Listeners run after the write lock is released.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	swapped, err := s.commit(ctx, fn)
	if swapped {
		s.notify()
	}
	return err
}

func (s *Store) commit(ctx context.Context, fn func(tx *Tx) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{state: s.state.clone(), newID: s.newID}
	if err := fn(tx); err != nil {
		return false, err
	}
	if !tx.dirty {
		return false, nil
	}
	if s.persister != nil {
		if err := s.persister.Save(ctx, tx.state); err != nil {
			appLog.Error("snapshot save failed, transaction discarded", err)
			return false, fmt.Errorf("persist snapshot: %w", err)
		}
	}
	s.state = tx.state
	return true, nil
}

// View runs fn with a read-only copy of the current state.
func (s *Store) View(fn func(snap Snapshot)) {
	s.mu.RLock()
	snap := s.state.clone()
	s.mu.RUnlock()
	fn(snap)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// HasProvenance reports whether any spawned entity carries key.
func (s *Store) HasProvenance(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.hasProvenance(key)
}

// PendingSignals lists signals awaiting authorization.
func (s *Store) PendingSignals() []model.CrossDomainSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSignals(intake.Pending(s.state.Signals))
}

// PendingCount is the number of signals awaiting authorization.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(intake.Pending(s.state.Signals))
}

// StageSignal derives commit defaults for a stored signal.
func (s *Store) StageSignal(wf *intake.Workflow, signalID string) (intake.Staged, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signal, ok := s.state.signal(signalID)
	if !ok {
		return intake.Staged{}, fmt.Errorf("signal %s: %w", signalID, apperr.ErrNotFound)
	}
	return wf.Stage(signal, s.state.Rooms), nil
}

// CommitSignal authorizes a stored signal. Validation, duplicate detection
// and application all happen under the write lock, so concurrent commits of
// the same signal yield exactly one bundle.
func (s *Store) CommitSignal(ctx context.Context, wf *intake.Workflow, signalID, roomID, pickupTime string) (intake.Bundle, error) {
	var bundle intake.Bundle
	err := s.RunInTransaction(ctx, func(tx *Tx) error {
		signal, ok := tx.state.signal(signalID)
		if !ok {
			return fmt.Errorf("signal %s: %w", signalID, apperr.ErrNotFound)
		}
		b, err := wf.Commit(signal, roomID, pickupTime, tx.state.Rooms, tx)
		if err != nil {
			return err
		}
		if err := tx.Apply(b); err != nil {
			return err
		}
		bundle = b
		return nil
	})
	if err != nil {
		appLog.Warn("signal commit rejected", "signal_id", signalID, "kind", apperr.Kind(err), "err", err)
		return intake.Bundle{}, err
	}
	appLog.Info("signal committed",
		"signal_id", signalID,
		"booking_id", bundle.Booking.ID,
		"protocol_id", bundle.Protocol.ID,
		"task_id", bundle.Task.ID,
	)
	return bundle, nil
}

func (s Snapshot) signal(id string) (model.CrossDomainSignal, bool) {
	for _, sig := range s.Signals {
		if sig.ID == id {
			return sig, true
		}
	}
	return model.CrossDomainSignal{}, false
}

func (s Snapshot) hasProvenance(key string) bool {
	if key == "" {
		return false
	}
	for _, p := range s.Protocols {
		if p.Provenance == key {
			return true
		}
	}
	for _, b := range s.Bookings {
		if b.Provenance == key {
			return true
		}
	}
	for _, t := range s.Tasks {
		if t.Provenance == key {
			return true
		}
	}
	return false
}
