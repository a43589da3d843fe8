package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/celerix-dev/viaticos/pkg/schema"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when the server rejected the input.
	ErrInvalid = errors.New("invalid input")
	// ErrSyncInProgress is returned while the server is syncing.
	ErrSyncInProgress = errors.New("sync in progress")
	// ErrUnavailable is returned when the server cannot reach Google Sheets.
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("viaticos: %d %s", e.Status, e.Message)
}

// Is maps status codes to the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrInvalid:
		return e.Status == 400
	case ErrSyncInProgress:
		return e.Status == 409
	case ErrUnavailable:
		return e.Status == 502 || e.Status == 503
	}
	return false
}

// --- Functional Interfaces (Interface Segregation) ---

// SyncService controls the sheet synchronisation.
type SyncService interface {
	Status(ctx context.Context) (schema.Status, error)
	Sync(ctx context.Context) (schema.Status, error)
	ClearAllData(ctx context.Context) error
}

// UserService manages users.
type UserService interface {
	Users(ctx context.Context) ([]schema.User, error)
	User(ctx context.Context, id int) (schema.User, error)
	AddUser(ctx context.Context, in schema.NewUser) (schema.User, error)
	UpdateUser(ctx context.Context, id int, patch schema.UserPatch) (schema.User, error)
	DeleteUser(ctx context.Context, id int) error
}

// TripService manages trips.
type TripService interface {
	Trips(ctx context.Context, f schema.TripFilter) ([]schema.Trip, error)
	Trip(ctx context.Context, id int) (schema.Trip, error)
	AddTrip(ctx context.Context, in schema.NewTrip) (schema.Trip, error)
	UpdateTrip(ctx context.Context, id int, patch schema.TripPatch) (schema.Trip, error)
	DeleteTrip(ctx context.Context, id int) error
}

// ExpenseService manages expenses.
type ExpenseService interface {
	Expenses(ctx context.Context, f schema.ExpenseFilter) ([]schema.Expense, error)
	Expense(ctx context.Context, id int) (schema.Expense, error)
	AddExpense(ctx context.Context, in schema.NewExpense) (schema.Expense, error)
	UpdateExpense(ctx context.Context, id int, patch schema.ExpensePatch) (schema.Expense, error)
	DeleteExpense(ctx context.Context, id int) error
	Categories(ctx context.Context) ([]string, error)
}

// Reporter exposes the derived views.
type Reporter interface {
	Dashboard(ctx context.Context) (schema.Summary, error)
	UserBudget(ctx context.Context, userID int) (schema.Usage, error)
	UserSpend(ctx context.Context, userID int) (schema.Spend, error)
	ExportTrips(ctx context.Context, f schema.TripFilter, w io.Writer) error
}

// Notifications reads the server's transient messages.
type Notifications interface {
	Notifications(ctx context.Context) ([]schema.Notification, error)
	Dismiss(ctx context.Context, id string) error
}

// --- Composite Interfaces ---

// Viaticos is the complete remote API.
type Viaticos interface {
	SyncService
	UserService
	TripService
	ExpenseService
	Reporter
	Notifications
}
