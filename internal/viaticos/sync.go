package viaticos

import (
	"context"
	"fmt"

	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/pkg/schema"
)

// Sync replaces all three collections with the spreadsheet contents. An
// empty spreadsheet leaves local data untouched. Mutations are refused while
// the remote read is in flight.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	s.notes.Notify("Sincronizando datos con Google Sheets...", notify.Info)
	started := s.now()

	ds, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.log.Error(ctx, "sync failed", "error", err)
		s.notes.Notify(fmt.Sprintf("Error al sincronizar: %v", err), notify.Error)
		return fmt.Errorf("sync: %w", err)
	}
	if ds.Empty() {
		s.log.Info(ctx, "spreadsheet is empty; keeping local data")
		s.notes.Notify("No se encontraron datos en Google Sheets", notify.Info)
		return nil
	}

	users := nonNil(ds.Users)
	trips := nonNil(ds.Trips)
	expenses := nonNil(ds.Expenses)
	now := s.now().UTC()

	s.mu.Lock()
	seq := s.seq.atLeast(users, trips, expenses)
	err = s.save(ctx,
		entry{KeyUsers, users},
		entry{KeyTrips, trips},
		entry{KeyExpenses, expenses},
		entry{KeyLastSync, now},
		entry{KeySequences, seq},
	)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.users, s.trips, s.expenses = users, trips, expenses
	s.lastSync = &now
	s.seq = seq
	s.mu.Unlock()

	s.log.Info(ctx, "sync finished",
		"users", len(users), "trips", len(trips), "expenses", len(expenses),
		"elapsed", s.now().Sub(started))
	s.notes.Notify(fmt.Sprintf("Datos sincronizados: %d usuarios, %d viajes, %d gastos", len(users), len(trips), len(expenses)), notify.Success)
	return nil
}

// ClearAllData empties every collection and forgets the last sync. It only
// touches local data. Id counters keep running.
func (s *Store) ClearAllData(ctx context.Context) error {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return err
	}
	err := s.save(ctx,
		entry{KeyUsers, []schema.User{}},
		entry{KeyTrips, []schema.Trip{}},
		entry{KeyExpenses, []schema.Expense{}},
		entry{KeyLastSync, nil},
	)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.users = []schema.User{}
	s.trips = []schema.Trip{}
	s.expenses = []schema.Expense{}
	s.lastSync = nil
	s.mu.Unlock()

	s.notes.Notify("Todos los datos han sido eliminados", notify.Success)
	return nil
}

// NeedsSync reports whether the store has never synced or holds no users.
func (s *Store) NeedsSync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync == nil || len(s.users) == 0
}

// Bootstrap runs the start-up sync when NeedsSync says so.
func (s *Store) Bootstrap(ctx context.Context) error {
	if !s.NeedsSync() {
		s.log.Debug(ctx, "skipping start-up sync")
		return nil
	}
	return s.Sync(ctx)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
