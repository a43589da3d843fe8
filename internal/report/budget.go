package report

import (
	"strings"

	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/shopspring/decimal"
)

// Spend buckets.
const (
	BucketTransporte   = "transporte"
	BucketAlimentacion = "alimentacion"
	BucketOtros        = "otros"
)

var hundred = decimal.NewFromInt(100)

// Bucket classifies an expense description by keyword.
func Bucket(concepto string) string {
	c := fold(concepto)
	switch {
	case strings.Contains(c, BucketTransporte):
		return BucketTransporte
	case strings.Contains(c, BucketAlimentacion):
		return BucketAlimentacion
	default:
		return BucketOtros
	}
}

// UserSpend totals the expenses of every trip belonging to userID.
func UserSpend(userID int, trips []schema.Trip, expenses []schema.Expense) schema.Spend {
	s := schema.Spend{
		UserID:       userID,
		Transporte:   decimal.Zero,
		Alimentacion: decimal.Zero,
		Otros:        decimal.Zero,
		Total:        decimal.Zero,
	}
	owned := tripsOf(userID, trips)
	for _, e := range expenses {
		if !owned[e.ViajeID] {
			continue
		}
		switch Bucket(e.Concepto) {
		case BucketTransporte:
			s.Transporte = s.Transporte.Add(e.Monto)
		case BucketAlimentacion:
			s.Alimentacion = s.Alimentacion.Add(e.Monto)
		default:
			s.Otros = s.Otros.Add(e.Monto)
		}
		s.Total = s.Total.Add(e.Monto)
	}
	return s
}

// Utilization returns total/approved as a percentage. An approved budget of
// zero reports 0%.
func Utilization(total, approved decimal.Decimal) schema.Usage {
	u := schema.Usage{
		Total:      total,
		Approved:   approved,
		Percent:    decimal.Zero,
		OverBudget: total.GreaterThan(approved),
	}
	if !approved.IsZero() {
		u.Percent = total.Div(approved).Mul(hundred)
	}
	return u
}

// budgetedStatuses are the trip states whose presupuesto counts as approved.
var budgetedStatuses = map[schema.TripStatus]bool{
	schema.TripApproved:   true,
	schema.TripInProgress: true,
	schema.TripFinished:   true,
}

// UserBudget measures a user's spend against the budgets of their approved,
// running and finished trips.
func UserBudget(userID int, trips []schema.Trip, expenses []schema.Expense) schema.Usage {
	approved := decimal.Zero
	for _, t := range trips {
		if t.UsuarioID == userID && budgetedStatuses[t.Estado] {
			approved = approved.Add(t.Presupuesto)
		}
	}
	return Utilization(UserSpend(userID, trips, expenses).Total, approved)
}

func tripsOf(userID int, trips []schema.Trip) map[int]bool {
	owned := make(map[int]bool)
	for _, t := range trips {
		if t.UsuarioID == userID {
			owned[t.ID] = true
		}
	}
	return owned
}
