package schema

import "time"

// Dataset groups the three collections. It is what a sync fetches and what
// the store exposes as a consistent snapshot.
type Dataset struct {
	Users    []User    `json:"users"`
	Trips    []Trip    `json:"trips"`
	Expenses []Expense `json:"expenses"`
}

// Empty reports whether all three collections are empty.
func (d Dataset) Empty() bool {
	return len(d.Users) == 0 && len(d.Trips) == 0 && len(d.Expenses) == 0
}

// Status describes the store's sync state.
type Status struct {
	Loading  bool       `json:"loading"`
	LastSync *time.Time `json:"lastSync"`
	Users    int        `json:"users"`
	Trips    int        `json:"trips"`
	Expenses int        `json:"expenses"`
}
