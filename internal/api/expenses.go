package api

import (
	"net/http"

	"github.com/celerix-dev/viaticos/internal/report"
	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListExpenses(c *gin.Context) {
	var f schema.ExpenseFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ds := h.Store.Snapshot()
	expenses, err := report.FilterExpenses(f, ds.Expenses, ds.Trips, ds.Users)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, expenses)
}

func (h *Handler) GetExpense(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	e, found := h.Store.Expense(id)
	if !found {
		notFound(c, "expense", id)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) CreateExpense(c *gin.Context) {
	var in schema.NewExpense
	if !bindJSON(c, &in) {
		return
	}
	if !in.Monto.GreaterThan(decimal.Zero) {
		validationFailed(c, fieldErrors{"monto": msgAmount})
		return
	}
	e, err := h.Store.AddExpense(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) UpdateExpense(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch schema.ExpensePatch
	if !bindJSON(c, &patch) {
		return
	}
	if patch.Monto != nil && !patch.Monto.GreaterThan(decimal.Zero) {
		validationFailed(c, fieldErrors{"monto": msgAmount})
		return
	}
	found, err := h.Store.UpdateExpense(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		notFound(c, "expense", id)
		return
	}
	e, _ := h.Store.Expense(id)
	c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteExpense(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.Store.DeleteExpense(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		notFound(c, "expense", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ListCategories returns the categories in use, for the expense filter.
func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, report.Categories(h.Store.Expenses()))
}
