package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/shopspring/decimal"
)

// ErrSortField is returned for a sort field the table does not know.
var ErrSortField = errors.New("unknown sort field")

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// FilterTrips returns the matching trips in the requested order. The default
// order is fechaInicio descending.
func FilterTrips(f schema.TripFilter, trips []schema.Trip, users []schema.User) ([]schema.Trip, error) {
	names := userNames(users)
	term := fold(strings.TrimSpace(f.Search))

	out := make([]schema.Trip, 0, len(trips))
	for _, t := range trips {
		if f.Status != "" && t.Estado != f.Status {
			continue
		}
		if f.UserID != 0 && t.UsuarioID != f.UserID {
			continue
		}
		if term != "" &&
			!containsFolded(t.Destino, term) &&
			!containsFolded(t.Motivo, term) &&
			!containsFolded(names[t.UsuarioID], term) {
			continue
		}
		out = append(out, t)
	}

	field := f.SortField
	if field == "" {
		field = "fechaInicio"
	}
	var key func(t schema.Trip) sortKey
	switch field {
	case "fechaInicio":
		key = func(t schema.Trip) sortKey { return dateKey(t.FechaInicio) }
	case "fechaFin":
		key = func(t schema.Trip) sortKey { return dateKey(t.FechaFin) }
	case "fechaCreacion":
		key = func(t schema.Trip) sortKey { return sortKey{t: t.FechaCreacion} }
	case "destino":
		key = func(t schema.Trip) sortKey { return textKey(t.Destino) }
	case "motivo":
		key = func(t schema.Trip) sortKey { return textKey(t.Motivo) }
	case "estado":
		key = func(t schema.Trip) sortKey { return textKey(string(t.Estado)) }
	case "usuario":
		key = func(t schema.Trip) sortKey { return textKey(names[t.UsuarioID]) }
	case "presupuesto":
		key = func(t schema.Trip) sortKey { return sortKey{d: t.Presupuesto} }
	default:
		return nil, fmt.Errorf("%w: %q", ErrSortField, field)
	}
	desc, err := descending(f.SortDir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]).less(key(out[j]), desc)
	})
	return out, nil
}

// FilterExpenses returns the matching expenses in the requested order. The
// default order is fecha descending.
func FilterExpenses(f schema.ExpenseFilter, expenses []schema.Expense, trips []schema.Trip, users []schema.User) ([]schema.Expense, error) {
	names := userNames(users)
	byID := make(map[int]schema.Trip, len(trips))
	for _, t := range trips {
		byID[t.ID] = t
	}
	destino := func(e schema.Expense) string { return byID[e.ViajeID].Destino }
	owner := func(e schema.Expense) string {
		t, ok := byID[e.ViajeID]
		if !ok {
			return ""
		}
		return names[t.UsuarioID]
	}
	term := fold(strings.TrimSpace(f.Search))

	out := make([]schema.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Categoria != f.Category {
			continue
		}
		if f.TripID != 0 && e.ViajeID != f.TripID {
			continue
		}
		switch f.Approval {
		case "":
		case "aprobado":
			if !e.Aprobado {
				continue
			}
		case "pendiente":
			if e.Aprobado {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown approval filter %q", f.Approval)
		}
		if term != "" &&
			!containsFolded(e.Concepto, term) &&
			!containsFolded(destino(e), term) &&
			!containsFolded(owner(e), term) &&
			!containsFolded(e.Categoria, term) {
			continue
		}
		out = append(out, e)
	}

	field := f.SortField
	if field == "" {
		field = "fecha"
	}
	var key func(e schema.Expense) sortKey
	switch field {
	case "fecha":
		key = func(e schema.Expense) sortKey { return dateKey(e.Fecha) }
	case "fechaCreacion":
		key = func(e schema.Expense) sortKey { return sortKey{t: e.FechaCreacion} }
	case "monto":
		key = func(e schema.Expense) sortKey { return sortKey{d: e.Monto} }
	case "concepto":
		key = func(e schema.Expense) sortKey { return textKey(e.Concepto) }
	case "categoria":
		key = func(e schema.Expense) sortKey { return textKey(e.Categoria) }
	case "viaje":
		key = func(e schema.Expense) sortKey { return textKey(destino(e)) }
	case "usuario":
		key = func(e schema.Expense) sortKey { return textKey(owner(e)) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrSortField, field)
	}
	desc, err := descending(f.SortDir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]).less(key(out[j]), desc)
	})
	return out, nil
}

// Categories lists the distinct non-empty categories in first-seen order.
func Categories(expenses []schema.Expense) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range expenses {
		if e.Categoria == "" || seen[e.Categoria] {
			continue
		}
		seen[e.Categoria] = true
		out = append(out, e.Categoria)
	}
	return out
}

// sortKey holds exactly one of a string, a time or a decimal.
type sortKey struct {
	s string
	t time.Time
	d decimal.Decimal
}

func (a sortKey) cmp(b sortKey) int {
	if c := strings.Compare(a.s, b.s); c != 0 {
		return c
	}
	if c := a.t.Compare(b.t); c != 0 {
		return c
	}
	return a.d.Cmp(b.d)
}

func (a sortKey) less(b sortKey, desc bool) bool {
	if desc {
		return a.cmp(b) > 0
	}
	return a.cmp(b) < 0
}

func textKey(s string) sortKey { return sortKey{s: strings.ToLower(s)} }

// dateKey sorts unparsable dates first in ascending order.
func dateKey(s string) sortKey {
	t, _ := time.Parse(schema.DateLayout, s)
	return sortKey{t: t}
}

func descending(dir string) (bool, error) {
	switch strings.ToLower(dir) {
	case "", Desc:
		return true, nil
	case Asc:
		return false, nil
	}
	return false, fmt.Errorf("unknown sort direction %q", dir)
}

func userNames(users []schema.User) map[int]string {
	names := make(map[int]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Nombre
	}
	return names
}
