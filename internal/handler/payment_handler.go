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

// PaymentHandler exposes the manual payment review workflow.
type PaymentHandler struct {
	payments *service.PaymentService
	profiles *service.ProfileService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, profiles *service.ProfileService) *PaymentHandler {
	return &PaymentHandler{payments: payments, profiles: profiles}
}

func (h *PaymentHandler) callerProfile(c *gin.Context) (string, bool, error) {
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
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param invoiceId query string false "Filter by invoice"
// @Param profileId query string false "Filter by profile"
// @Param status query string false "Filter by status"
// @Param method query string false "Filter by method"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.PaymentFilter
	filter.InvoiceID = c.Query("invoiceId")
	filter.ProfileID = c.Query("profileId")
	filter.Status = models.PaymentStatus(strings.ToUpper(c.Query("status")))
	filter.Method = models.PaymentMethod(strings.ToLower(c.Query("method")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	if !admin {
		filter.ProfileID = profileID
	}

	payments, pagination, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Record godoc
// @Summary Record a payment declaration for an invoice
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	payment, err := h.payments.Record(c.Request.Context(), req, profileID, admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Approve godoc
// @Summary Approve a pending payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/approve [post]
func (h *PaymentHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.payments.Approve(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Reject godoc
// @Summary Reject a pending payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.payments.Reject(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}
