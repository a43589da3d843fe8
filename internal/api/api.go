// Package api exposes the viaticos store over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/celerix-dev/viaticos/internal/logging"
	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/report"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/internal/viaticos"
	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/gin-gonic/gin"
)

// Store is the part of the viaticos store the handlers use.
type Store interface {
	Users() []schema.User
	User(id int) (schema.User, bool)
	AddUser(ctx context.Context, in schema.NewUser) (schema.User, error)
	UpdateUser(ctx context.Context, id int, patch schema.UserPatch) (bool, error)
	DeleteUser(ctx context.Context, id int) (bool, error)

	Trips() []schema.Trip
	Trip(id int) (schema.Trip, bool)
	AddTrip(ctx context.Context, in schema.NewTrip) (schema.Trip, error)
	UpdateTrip(ctx context.Context, id int, patch schema.TripPatch) (bool, error)
	DeleteTrip(ctx context.Context, id int) (bool, error)

	Expenses() []schema.Expense
	Expense(id int) (schema.Expense, bool)
	AddExpense(ctx context.Context, in schema.NewExpense) (schema.Expense, error)
	UpdateExpense(ctx context.Context, id int, patch schema.ExpensePatch) (bool, error)
	DeleteExpense(ctx context.Context, id int) (bool, error)

	Snapshot() schema.Dataset
	Status() schema.Status
	Sync(ctx context.Context) error
	ClearAllData(ctx context.Context) error
}

// Notifications is the read/dismiss side of the notification center.
type Notifications interface {
	List() []notify.Notification
	Dismiss(id string) bool
}

type Handler struct {
	Store         Store
	Notifications Notifications
	Log           logging.Logger
}

var _ Store = (*viaticos.Store)(nil)

// fail maps domain errors to status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var reqErr *sheets.RequestError
	switch {
	case errors.Is(err, viaticos.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, sheets.ErrConfiguration), errors.Is(err, viaticos.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.As(err, &reqErr):
		status = http.StatusBadGateway
	case errors.Is(err, report.ErrSortField):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError && h.Log != nil {
		h.Log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string, id int) {
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%s %d not found", what, id)})
}

// idParam parses :id, answering 400 itself when it is not a positive integer.
func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Status())
}

func (h *Handler) Sync(c *gin.Context) {
	if err := h.Store.Sync(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Store.Status())
}

func (h *Handler) ClearAllData(c *gin.Context) {
	if err := h.Store.ClearAllData(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, report.Dashboard(h.Store.Snapshot()))
}

func (h *Handler) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.Notifications.List())
}

func (h *Handler) DismissNotification(c *gin.Context) {
	if !h.Notifications.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
