package api

import (
	"bytes"
	"net/http"

	"github.com/celerix-dev/viaticos/internal/report"
	"github.com/celerix-dev/viaticos/pkg/schema"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTrips(c *gin.Context) {
	var f schema.TripFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ds := h.Store.Snapshot()
	trips, err := report.FilterTrips(f, ds.Trips, ds.Users)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trips)
}

func (h *Handler) GetTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, found := h.Store.Trip(id)
	if !found {
		notFound(c, "trip", id)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTrip(c *gin.Context) {
	var in schema.NewTrip
	if !bindJSON(c, &in) {
		return
	}
	if errs := checkTrip(in.FechaInicio, in.FechaFin, &in.Presupuesto); len(errs) > 0 {
		validationFailed(c, errs)
		return
	}
	t, err := h.Store.AddTrip(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch schema.TripPatch
	if !bindJSON(c, &patch) {
		return
	}
	current, found := h.Store.Trip(id)
	if !found {
		notFound(c, "trip", id)
		return
	}
	merged := current
	patch.Apply(&merged)
	if errs := checkTrip(merged.FechaInicio, merged.FechaFin, patch.Presupuesto); len(errs) > 0 {
		validationFailed(c, errs)
		return
	}

	found, err := h.Store.UpdateTrip(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		notFound(c, "trip", id)
		return
	}
	t, _ := h.Store.Trip(id)
	c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTrip(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.Store.DeleteTrip(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		notFound(c, "trip", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// ExportTrips downloads the filtered trip list as TSV.
func (h *Handler) ExportTrips(c *gin.Context) {
	var f schema.TripFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ds := h.Store.Snapshot()
	trips, err := report.FilterTrips(f, ds.Trips, ds.Users)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := report.ExportTripsTSV(&buf, trips, ds.Users); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="viajes.tsv"`)
	c.Data(http.StatusOK, "text/tab-separated-values; charset=utf-8", buf.Bytes())
}
