package schema

import "github.com/shopspring/decimal"

// Stats are the dashboard counters.
type Stats struct {
	TotalUsers       int             `json:"totalUsers"`
	ActiveUsers      int             `json:"activeUsers"`
	TotalTrips       int             `json:"totalTrips"`
	PendingTrips     int             `json:"pendingTrips"`
	ApprovedTrips    int             `json:"approvedTrips"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	ApprovedExpenses decimal.Decimal `json:"approvedExpenses"`
	PendingExpenses  int             `json:"pendingExpenses"`
}

// Summary is the full dashboard payload.
type Summary struct {
	Stats          Stats     `json:"stats"`
	RecentTrips    []Trip    `json:"recentTrips"`
	RecentExpenses []Expense `json:"recentExpenses"`
}

// Spend is a user's expense total split by bucket.
type Spend struct {
	UserID       int             `json:"userId"`
	Transporte   decimal.Decimal `json:"transporte"`
	Alimentacion decimal.Decimal `json:"alimentacion"`
	Otros        decimal.Decimal `json:"otros"`
	Total        decimal.Decimal `json:"total"`
}

// Usage compares spending against an approved budget.
type Usage struct {
	Total      decimal.Decimal `json:"total"`
	Approved   decimal.Decimal `json:"approved"`
	Percent    decimal.Decimal `json:"percent"`
	OverBudget bool            `json:"overBudget"`
}

// TripFilter selects and orders trips like the trips table does.
type TripFilter struct {
	Search    string     `form:"search"`
	Status    TripStatus `form:"estado"`
	UserID    int        `form:"usuarioId"`
	SortField string     `form:"sort"`
	SortDir   string     `form:"dir"`
}

// ExpenseFilter selects and orders expenses like the expenses table does.
// Approval is "aprobado", "pendiente" or empty for both.
type ExpenseFilter struct {
	Search    string `form:"search"`
	Category  string `form:"categoria"`
	Approval  string `form:"aprobacion"`
	TripID    int    `form:"viajeId"`
	SortField string `form:"sort"`
	SortDir   string `form:"dir"`
}
