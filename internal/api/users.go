package api

import (
	"net/http"

	"github.com/celerix-dev/viaticos/internal/report"
	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Users())
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, found := h.Store.User(id)
	if !found {
		notFound(c, "user", id)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in schema.NewUser
	if !bindJSON(c, &in) {
		return
	}
	u, err := h.Store.AddUser(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch schema.UserPatch
	if !bindJSON(c, &patch) {
		return
	}
	found, err := h.Store.UpdateUser(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		notFound(c, "user", id)
		return
	}
	u, _ := h.Store.User(id)
	c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.Store.DeleteUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		notFound(c, "user", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) UserBudget(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, found := h.Store.User(id); !found {
		notFound(c, "user", id)
		return
	}
	ds := h.Store.Snapshot()
	c.JSON(http.StatusOK, report.UserBudget(id, ds.Trips, ds.Expenses))
}

func (h *Handler) UserSpend(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, found := h.Store.User(id); !found {
		notFound(c, "user", id)
		return
	}
	ds := h.Store.Snapshot()
	c.JSON(http.StatusOK, report.UserSpend(id, ds.Trips, ds.Expenses))
}
