package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/celerix-dev/viaticos/pkg/schema"
)

// FetchAll reads the three collections in one batched request.
// Unlike GetAllData it reports failures to the caller.
func (c *Client) FetchAll(ctx context.Context) (schema.Dataset, error) {
	ranges, err := c.ReadMultipleRanges(ctx, []string{UsersRange, TripsRange, ExpensesRange})
	if err != nil {
		return schema.Dataset{}, err
	}
	now := c.now()
	return schema.Dataset{
		Users:    c.ProcessUsers(ctx, ranges[0].Values, now),
		Trips:    c.ProcessTrips(ctx, ranges[1].Values, now),
		Expenses: c.ProcessExpenses(ctx, ranges[2].Values, now),
	}, nil
}

// GetAllData is FetchAll with failures logged and turned into an empty
// dataset.
func (c *Client) GetAllData(ctx context.Context) schema.Dataset {
	ds, err := c.FetchAll(ctx)
	if err != nil {
		c.log.Error(ctx, "failed to fetch spreadsheet data", "error", err)
		return emptyDataset()
	}
	return ds
}

// GetUsers reads only the Usuarios sheet; failures yield no users.
func (c *Client) GetUsers(ctx context.Context) []schema.User {
	rows, err := c.ReadRange(ctx, UsersRange)
	if err != nil {
		c.log.Error(ctx, "failed to fetch users", "error", err)
		return []schema.User{}
	}
	return c.ProcessUsers(ctx, rows, c.now())
}

// GetTrips reads only the Viajes sheet; failures yield no trips.
func (c *Client) GetTrips(ctx context.Context) []schema.Trip {
	rows, err := c.ReadRange(ctx, TripsRange)
	if err != nil {
		c.log.Error(ctx, "failed to fetch trips", "error", err)
		return []schema.Trip{}
	}
	return c.ProcessTrips(ctx, rows, c.now())
}

// GetExpenses reads only the Gastos sheet; failures yield no expenses.
func (c *Client) GetExpenses(ctx context.Context) []schema.Expense {
	rows, err := c.ReadRange(ctx, ExpensesRange)
	if err != nil {
		c.log.Error(ctx, "failed to fetch expenses", "error", err)
		return []schema.Expense{}
	}
	return c.ProcessExpenses(ctx, rows, c.now())
}

func (c *Client) ProcessUsers(ctx context.Context, rows [][]string, now time.Time) []schema.User {
	return process(ctx, c, "Usuarios", rows, now, DecodeUser)
}

func (c *Client) ProcessTrips(ctx context.Context, rows [][]string, now time.Time) []schema.Trip {
	return process(ctx, c, "Viajes", rows, now, DecodeTrip)
}

func (c *Client) ProcessExpenses(ctx context.Context, rows [][]string, now time.Time) []schema.Expense {
	return process(ctx, c, "Gastos", rows, now, DecodeExpense)
}

func process[T any](ctx context.Context, c *Client, sheet string, rows [][]string, now time.Time, decode func([]string, int, time.Time) Decoded[T]) []T {
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		d := decode(row, i, now)
		if len(d.Issues) > 0 {
			// Row numbers are 1-based and the header occupies row 1.
			c.log.Debug(ctx, "row decoded with defaults", "sheet", sheet, "row", fmt.Sprint(i+2), "issues", d.Issues)
		}
		out = append(out, d.Value)
	}
	return out
}

func emptyDataset() schema.Dataset {
	return schema.Dataset{
		Users:    []schema.User{},
		Trips:    []schema.Trip{},
		Expenses: []schema.Expense{},
	}
}
