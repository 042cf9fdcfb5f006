package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/service"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
	"github.com/nataclub/natation-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	profiles    *service.ProfileService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, profiles *service.ProfileService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, profiles: profiles}
}

// callerProfile resolves the profile behind the authenticated account.
// Admins have no profile requirement and get an empty ID.
func (h *EnrollmentHandler) callerProfile(c *gin.Context) (string, bool, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", false, appErrors.ErrUnauthorized
	}
	if isAdmin(claims) {
		return "", true, nil
	}
	profile, err := h.profiles.FindByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		return "", false, err
	}
	return profile.ID, false, nil
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param profileId query string false "Filter by profile"
// @Param seriesId query string false "Filter by series"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.EnrollmentFilter
	filter.ProfileID = c.Query("profileId")
	filter.SeriesID = c.Query("seriesId")
	filter.CourseID = c.Query("courseId")
	filter.Status = models.EnrollmentStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Members only ever see their own enrollments.
	if !admin {
		filter.ProfileID = profileID
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Detail godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Detail(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.enrollments.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !admin && detail.ProfileID != profileID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Quote godoc
// @Summary Price a slot selection without enrolling
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollmentQuoteRequest true "Quote payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/quote [post]
func (h *EnrollmentHandler) Quote(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.EnrollmentQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quote, err := h.enrollments.Quote(c.Request.Context(), req, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

// Create godoc
// @Summary Enroll a profile into a session
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if !admin {
		if req.ProfileID == "" {
			req.ProfileID = profileID
		} else if req.ProfileID != profileID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}

	enrollment, err := h.enrollments.Create(c.Request.Context(), req, admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Cancel godoc
// @Summary Cancel an enrollment and void its pending invoice
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Cancel(c.Request.Context(), c.Param("id"), profileID, admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
