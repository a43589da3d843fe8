// Package viaticos owns the users, trips and expenses of the travel-expense
// system, keeps them persisted and synchronises them with the spreadsheet.
package viaticos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/celerix-dev/viaticos/internal/engine"
	"github.com/celerix-dev/viaticos/internal/logging"
	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/pkg/schema"
)

// Persisted keys.
const (
	KeyUsers     = "viaticos_users"
	KeyTrips     = "viaticos_trips"
	KeyExpenses  = "viaticos_expenses"
	KeyLastSync  = "viaticos_last_sync"
	KeySequences = "viaticos_sequences"
)

var (
	// ErrSyncInProgress is returned by mutations and by Sync while a sync is
	// running.
	ErrSyncInProgress = errors.New("sync in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Fetcher reads the whole remote dataset.
type Fetcher interface {
	FetchAll(ctx context.Context) (schema.Dataset, error)
}

// Pusher mirrors a local change to the remote side.
type Pusher interface {
	Push(ctx context.Context, ch sheets.Change) (sheets.Ack, error)
}

// sequences hold the next id to hand out per collection.
type sequences struct {
	Users    int `json:"users"`
	Trips    int `json:"trips"`
	Expenses int `json:"expenses"`
}

// Store is the single owner of the three collections.
type Store struct {
	kv     engine.KV
	remote Fetcher
	pusher Pusher
	notes  notify.Notifier
	log    logging.Logger
	now    func() time.Time

	mu       sync.RWMutex
	users    []schema.User
	trips    []schema.Trip
	expenses []schema.Expense
	lastSync *time.Time
	seq      sequences
	syncing  bool
	closed   bool
}

// Option customises a Store.
type Option func(*Store)

// WithPusher mirrors every local mutation through p.
func WithPusher(p Pusher) Option {
	return func(s *Store) { s.pusher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New loads the persisted collections from kv. Snapshots that do not decode
// are logged and replaced by empty collections.
func New(kv engine.KV, remote Fetcher, notes notify.Notifier, logger logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Store{
		kv:     kv,
		remote: remote,
		notes:  notes,
		log:    logger.With("component", "viaticos"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s
}

func (s *Store) load() {
	ctx := context.Background()
	warn := func(key string, err error) {
		if err != nil {
			s.log.Warn(ctx, "ignoring unreadable snapshot", "key", key, "error", err)
		}
	}

	var err error
	s.users, err = engine.Load(s.kv, KeyUsers, []schema.User{})
	warn(KeyUsers, err)
	s.trips, err = engine.Load(s.kv, KeyTrips, []schema.Trip{})
	warn(KeyTrips, err)
	s.expenses, err = engine.Load(s.kv, KeyExpenses, []schema.Expense{})
	warn(KeyExpenses, err)
	s.lastSync, err = engine.Load[*time.Time](s.kv, KeyLastSync, nil)
	warn(KeyLastSync, err)
	s.seq, err = engine.Load(s.kv, KeySequences, sequences{})
	warn(KeySequences, err)

	if s.users == nil {
		s.users = []schema.User{}
	}
	if s.trips == nil {
		s.trips = []schema.Trip{}
	}
	if s.expenses == nil {
		s.expenses = []schema.Expense{}
	}
	s.seq = s.seq.atLeast(s.users, s.trips, s.expenses)

	s.log.Info(ctx, "store loaded",
		"users", len(s.users), "trips", len(s.trips), "expenses", len(s.expenses),
		"lastSync", s.lastSync)
}

// atLeast raises each counter past the largest id present.
func (q sequences) atLeast(users []schema.User, trips []schema.Trip, expenses []schema.Expense) sequences {
	q.Users = max(q.Users, 1)
	q.Trips = max(q.Trips, 1)
	q.Expenses = max(q.Expenses, 1)
	for _, u := range users {
		q.Users = max(q.Users, u.ID+1)
	}
	for _, t := range trips {
		q.Trips = max(q.Trips, t.ID+1)
	}
	for _, e := range expenses {
		q.Expenses = max(q.Expenses, e.ID+1)
	}
	return q
}

// Close stops the store from accepting mutations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writable must be called with mu held.
func (s *Store) writable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.syncing:
		return ErrSyncInProgress
	}
	return nil
}

type entry struct {
	key string
	val any
}

// prior is a key's encoded value before save overwrote it.
type prior struct {
	key   string
	raw   []byte
	found bool
}

// save writes each entry in order. If any write fails, the keys already
// written get their previous values back, so the persisted snapshot matches
// the in-memory state the caller keeps. The caller commits in-memory state
// only when save succeeds.
func (s *Store) save(ctx context.Context, entries ...entry) error {
	written := make([]prior, 0, len(entries))
	for _, e := range entries {
		raw, err := s.kv.Get(e.key)
		found := err == nil
		if err != nil && !errors.Is(err, engine.ErrKeyNotFound) {
			s.rollback(ctx, written)
			return s.persistFailed(ctx, e.key, err)
		}
		if err := s.kv.Set(e.key, e.val); err != nil {
			s.rollback(ctx, written)
			return s.persistFailed(ctx, e.key, err)
		}
		written = append(written, prior{key: e.key, raw: raw, found: found})
	}
	return nil
}

// rollback restores written keys, newest first.
func (s *Store) rollback(ctx context.Context, written []prior) {
	for i := len(written) - 1; i >= 0; i-- {
		p := written[i]
		var err error
		if p.found {
			err = s.kv.Set(p.key, json.RawMessage(p.raw))
		} else {
			err = s.kv.Delete(p.key)
		}
		if err != nil {
			s.log.Error(ctx, "failed to restore snapshot", "key", p.key, "error", err)
		}
	}
}

func (s *Store) persistFailed(ctx context.Context, key string, err error) error {
	s.log.Error(ctx, "failed to persist", "key", key, "error", err)
	s.notes.Notify(fmt.Sprintf("Error al guardar datos: %v", err), notify.Error)
	return fmt.Errorf("persist %s: %w", key, err)
}

// mirror pushes ch to the remote side when a pusher is configured.
// Failures never undo the local change; they surface as warnings.
func (s *Store) mirror(ctx context.Context, entity, action string, data any) {
	if s.pusher == nil {
		return
	}
	ack, err := s.pusher.Push(ctx, sheets.Change{Entity: entity, Action: action, Data: data})
	if err != nil || !ack.Acknowledged {
		s.log.Warn(ctx, "change not acknowledged by spreadsheet", "entity", entity, "action", action, "status", ack.Status, "error", err)
		s.notes.Notify("El cambio no pudo replicarse en Google Sheets", notify.Warning)
	}
}

// Loading reports whether a sync is running.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// LastSync returns the time of the last successful sync, or nil.
func (s *Store) LastSync() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastSync == nil {
		return nil
	}
	t := *s.lastSync
	return &t
}

// Status summarises sync state and collection sizes.
func (s *Store) Status() schema.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := schema.Status{
		Loading:  s.syncing,
		Users:    len(s.users),
		Trips:    len(s.trips),
		Expenses: len(s.expenses),
	}
	if s.lastSync != nil {
		t := *s.lastSync
		st.LastSync = &t
	}
	return st
}

// Snapshot returns copies of all three collections taken under one lock.
func (s *Store) Snapshot() schema.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schema.Dataset{
		Users:    clone(s.users),
		Trips:    clone(s.trips),
		Expenses: clone(s.expenses),
	}
}

func (s *Store) Users() []schema.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.users)
}

func (s *Store) Trips() []schema.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.trips)
}

func (s *Store) Expenses() []schema.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.expenses)
}

func (s *Store) User(id int) (schema.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.users, func(u schema.User) bool { return u.ID == id })
}

func (s *Store) Trip(id int) (schema.Trip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.trips, func(t schema.Trip) bool { return t.ID == id })
}

func (s *Store) Expense(id int) (schema.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.expenses, func(e schema.Expense) bool { return e.ID == id })
}

func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func find[T any](s []T, match func(T) bool) (T, bool) {
	for _, v := range s {
		if match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func indexOf[T any](s []T, match func(T) bool) int {
	for i, v := range s {
		if match(v) {
			return i
		}
	}
	return -1
}
