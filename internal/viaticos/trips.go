package viaticos

import (
	"context"

	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/pkg/schema"
)

const entityTrips = "viajes"

// AddTrip records a trip request. Estado defaults to pendiente.
func (s *Store) AddTrip(ctx context.Context, in schema.NewTrip) (schema.Trip, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return schema.Trip{}, err
	}

	t := schema.Trip{
		ID:                 s.seq.Trips,
		UsuarioID:          in.UsuarioID,
		Destino:            in.Destino,
		Motivo:             in.Motivo,
		FechaInicio:        in.FechaInicio,
		FechaFin:           in.FechaFin,
		Presupuesto:        in.Presupuesto,
		ViaticoDiario:      in.ViaticoDiario,
		AnticipoSolicitado: in.AnticipoSolicitado,
		Estado:             schema.TripPending,
		FechaCreacion:      s.now().UTC(),
	}
	if in.Estado != "" {
		t.Estado = in.Estado
	}

	seq := s.seq
	seq.Trips++
	trips := append(clone(s.trips), t)
	if err := s.save(ctx, entry{KeySequences, seq}, entry{KeyTrips, trips}); err != nil {
		s.mu.Unlock()
		return schema.Trip{}, err
	}
	s.seq, s.trips = seq, trips
	s.mu.Unlock()

	s.notes.Notify("Viaje agregado correctamente", notify.Success)
	s.mirror(ctx, entityTrips, sheets.ActionCreate, t)
	return t, nil
}

// UpdateTrip merges patch into the trip with the given id. It reports false,
// and changes nothing, when there is no such trip.
func (s *Store) UpdateTrip(ctx context.Context, id int, patch schema.TripPatch) (bool, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := indexOf(s.trips, func(t schema.Trip) bool { return t.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	trips := clone(s.trips)
	patch.Apply(&trips[i])
	if err := s.save(ctx, entry{KeyTrips, trips}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.trips = trips
	updated := trips[i]
	s.mu.Unlock()

	s.notes.Notify("Viaje actualizado correctamente", notify.Success)
	s.mirror(ctx, entityTrips, sheets.ActionUpdate, updated)
	return true, nil
}

// DeleteTrip removes a trip together with all of its expenses.
func (s *Store) DeleteTrip(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := indexOf(s.trips, func(t schema.Trip) bool { return t.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	trips := append(clone(s.trips[:i]), s.trips[i+1:]...)
	expenses := make([]schema.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if e.ViajeID != id {
			expenses = append(expenses, e)
		}
	}
	if err := s.save(ctx, entry{KeyTrips, trips}, entry{KeyExpenses, expenses}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	removed := len(s.expenses) - len(expenses)
	s.trips, s.expenses = trips, expenses
	s.mu.Unlock()

	s.log.Debug(ctx, "trip deleted", "id", id, "expensesRemoved", removed)
	s.notes.Notify("Viaje eliminado correctamente", notify.Success)
	s.mirror(ctx, entityTrips, sheets.ActionDelete, map[string]int{"id": id})
	return true, nil
}
