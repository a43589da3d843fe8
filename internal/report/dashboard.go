// Package report derives dashboard figures, budget usage, filtered table
// views and exports from snapshots of the viaticos collections. Everything is
// recomputed from its inputs on every call.
package report

import (
	"sort"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/shopspring/decimal"
)

// RecentLimit is how many recent trips and expenses the dashboard shows.
const RecentLimit = 5

// Dashboard computes the overview shown on the landing page.
func Dashboard(ds schema.Dataset) schema.Summary {
	s := schema.Stats{
		TotalUsers:       len(ds.Users),
		TotalTrips:       len(ds.Trips),
		TotalExpenses:    decimal.Zero,
		ApprovedExpenses: decimal.Zero,
	}
	for _, u := range ds.Users {
		if u.Activo {
			s.ActiveUsers++
		}
	}
	for _, t := range ds.Trips {
		switch t.Estado {
		case schema.TripPending:
			s.PendingTrips++
		case schema.TripApproved:
			s.ApprovedTrips++
		}
	}
	for _, e := range ds.Expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Monto)
		if e.Aprobado {
			s.ApprovedExpenses = s.ApprovedExpenses.Add(e.Monto)
		} else {
			s.PendingExpenses++
		}
	}

	return schema.Summary{
		Stats:          s,
		RecentTrips:    RecentTrips(ds.Trips, RecentLimit),
		RecentExpenses: RecentExpenses(ds.Expenses, RecentLimit),
	}
}

// RecentTrips returns up to n trips, newest first by creation time.
func RecentTrips(trips []schema.Trip, n int) []schema.Trip {
	out := append([]schema.Trip(nil), trips...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FechaCreacion.After(out[j].FechaCreacion)
	})
	return head(out, n)
}

// RecentExpenses returns up to n expenses, newest first by creation time.
func RecentExpenses(expenses []schema.Expense, n int) []schema.Expense {
	out := append([]schema.Expense(nil), expenses...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FechaCreacion.After(out[j].FechaCreacion)
	})
	return head(out, n)
}

func head[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		s = s[:n]
	}
	if s == nil {
		return []T{}
	}
	return s
}
