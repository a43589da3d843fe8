package viaticos

import (
	"context"

	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/pkg/schema"
)

const entityExpenses = "gastos"

// AddExpense records an expense. Aprobado defaults to false.
func (s *Store) AddExpense(ctx context.Context, in schema.NewExpense) (schema.Expense, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return schema.Expense{}, err
	}

	e := schema.Expense{
		ID:            s.seq.Expenses,
		ViajeID:       in.ViajeID,
		Fecha:         in.Fecha,
		Concepto:      in.Concepto,
		Monto:         in.Monto,
		Categoria:     in.Categoria,
		Comprobante:   in.Comprobante,
		FechaCreacion: s.now().UTC(),
	}
	if in.Aprobado != nil {
		e.Aprobado = *in.Aprobado
	}

	seq := s.seq
	seq.Expenses++
	expenses := append(clone(s.expenses), e)
	if err := s.save(ctx, entry{KeySequences, seq}, entry{KeyExpenses, expenses}); err != nil {
		s.mu.Unlock()
		return schema.Expense{}, err
	}
	s.seq, s.expenses = seq, expenses
	s.mu.Unlock()

	s.notes.Notify("Gasto agregado correctamente", notify.Success)
	s.mirror(ctx, entityExpenses, sheets.ActionCreate, e)
	return e, nil
}

// UpdateExpense merges patch into the expense with the given id. It reports
// false, and changes nothing, when there is no such expense.
func (s *Store) UpdateExpense(ctx context.Context, id int, patch schema.ExpensePatch) (bool, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := indexOf(s.expenses, func(e schema.Expense) bool { return e.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	expenses := clone(s.expenses)
	patch.Apply(&expenses[i])
	if err := s.save(ctx, entry{KeyExpenses, expenses}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.expenses = expenses
	updated := expenses[i]
	s.mu.Unlock()

	s.notes.Notify("Gasto actualizado correctamente", notify.Success)
	s.mirror(ctx, entityExpenses, sheets.ActionUpdate, updated)
	return true, nil
}

// DeleteExpense removes an expense.
func (s *Store) DeleteExpense(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := indexOf(s.expenses, func(e schema.Expense) bool { return e.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	expenses := append(clone(s.expenses[:i]), s.expenses[i+1:]...)
	if err := s.save(ctx, entry{KeyExpenses, expenses}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.expenses = expenses
	s.mu.Unlock()

	s.notes.Notify("Gasto eliminado correctamente", notify.Success)
	s.mirror(ctx, entityExpenses, sheets.ActionDelete, map[string]int{"id": id})
	return true, nil
}
