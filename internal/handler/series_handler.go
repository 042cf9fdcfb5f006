package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/service"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
	"github.com/nataclub/natation-api/pkg/response"
)

// SeriesHandler exposes recurring series endpoints.
type SeriesHandler struct {
	series *service.SeriesService
}

// NewSeriesHandler constructs SeriesHandler.
func NewSeriesHandler(series *service.SeriesService) *SeriesHandler {
	return &SeriesHandler{series: series}
}

func parseDateQuery(c *gin.Context, key string) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &parsed
}

// List godoc
// @Summary List series
// @Tags Series
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param weekday query int false "Filter by stored weekday (1=Sunday)"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /series [get]
func (h *SeriesHandler) List(c *gin.Context) {
	var filter models.SeriesFilter
	filter.CourseID = c.Query("courseId")
	filter.Status = models.SeriesStatus(strings.ToUpper(c.Query("status")))
	if weekday, err := strconv.Atoi(c.Query("weekday")); err == nil {
		filter.Weekday = weekday
	}
	filter.From = parseDateQuery(c, "from")
	filter.To = parseDateQuery(c, "to")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	series, pagination, err := h.series.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, pagination)
}

// Detail godoc
// @Summary Get a series
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /series/{id} [get]
func (h *SeriesHandler) Detail(c *gin.Context) {
	detail, err := h.series.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create a series and materialize its sessions
// @Tags Series
// @Accept json
// @Produce json
// @Param payload body service.CreateSeriesRequest true "Series payload"
// @Success 201 {object} response.Envelope
// @Router /series [post]
func (h *SeriesHandler) Create(c *gin.Context) {
	var req service.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	series, result, err := h.series.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, series, nil, map[string]interface{}{"generation": result})
}

// Update godoc
// @Summary Update a series and regenerate future sessions
// @Tags Series
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param payload body service.UpdateSeriesRequest true "Series payload"
// @Success 200 {object} response.Envelope
// @Router /series/{id} [put]
func (h *SeriesHandler) Update(c *gin.Context) {
	var req service.UpdateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	series, result, err := h.series.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil, map[string]interface{}{"generation": result})
}

// Regenerate godoc
// @Summary Regenerate future sessions for a series
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} response.Envelope
// @Router /series/{id}/regenerate [post]
func (h *SeriesHandler) Regenerate(c *gin.Context) {
	result, err := h.series.RegenerateByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a series and its future sessions
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} response.Envelope
// @Router /series/{id} [delete]
func (h *SeriesHandler) Cancel(c *gin.Context) {
	result, err := h.series.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
