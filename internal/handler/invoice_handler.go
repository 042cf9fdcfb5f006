package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/service"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
	"github.com/nataclub/natation-api/pkg/response"
)

// InvoiceHandler exposes invoice and receipt endpoints.
type InvoiceHandler struct {
	invoices *service.InvoiceService
	profiles *service.ProfileService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices *service.InvoiceService, profiles *service.ProfileService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, profiles: profiles}
}

func (h *InvoiceHandler) callerProfile(c *gin.Context) (string, bool, error) {
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
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param profileId query string false "Filter by profile"
// @Param status query string false "Filter by status"
// @Param from query string false "Issued after (YYYY-MM-DD)"
// @Param to query string false "Issued before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.InvoiceFilter
	filter.ProfileID = c.Query("profileId")
	filter.Status = models.InvoiceStatus(strings.ToUpper(c.Query("status")))
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

	if !admin {
		filter.ProfileID = profileID
	}

	invoices, pagination, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Detail godoc
// @Summary Get an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Detail(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.invoices.Detail(c.Request.Context(), c.Param("id"), profileID, admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// GenerateReceipt godoc
// @Summary Generate the receipt PDF and return a signed download link
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /invoices/{id}/receipt [post]
func (h *InvoiceHandler) GenerateReceipt(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.invoices.GenerateReceipt(c.Request.Context(), c.Param("id"), profileID, admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadReceipt godoc
// @Summary Download a receipt through a signed token
// @Tags Invoices
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /invoices/receipts/{token} [get]
func (h *InvoiceHandler) DownloadReceipt(c *gin.Context) {
	file, filename, err := h.invoices.OpenReceipt(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}

// UnlockReceipt godoc
// @Summary Clear a stuck receipt generation flag
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 204 {object} response.Envelope
// @Router /invoices/{id}/receipt/unlock [post]
func (h *InvoiceHandler) UnlockReceipt(c *gin.Context) {
	if err := h.invoices.UnlockReceipt(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
