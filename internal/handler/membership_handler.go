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

// MembershipHandler exposes club subscription endpoints.
type MembershipHandler struct {
	memberships *service.MembershipService
	profiles    *service.ProfileService
}

// NewMembershipHandler constructs MembershipHandler.
func NewMembershipHandler(memberships *service.MembershipService, profiles *service.ProfileService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships, profiles: profiles}
}

func (h *MembershipHandler) callerProfile(c *gin.Context) (string, bool, error) {
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
// @Summary List memberships
// @Tags Memberships
// @Produce json
// @Param profileId query string false "Filter by profile"
// @Param kind query string false "Filter by kind"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /memberships [get]
func (h *MembershipHandler) List(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.MembershipFilter
	filter.ProfileID = c.Query("profileId")
	filter.Kind = models.MembershipKind(strings.ToLower(c.Query("kind")))
	filter.Status = models.MembershipStatus(strings.ToUpper(c.Query("status")))
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

	memberships, pagination, err := h.memberships.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memberships, pagination)
}

// Create godoc
// @Summary Subscribe a profile to the club
// @Tags Memberships
// @Accept json
// @Produce json
// @Param payload body service.CreateMembershipRequest true "Membership payload"
// @Success 201 {object} response.Envelope
// @Router /memberships [post]
func (h *MembershipHandler) Create(c *gin.Context) {
	profileID, admin, err := h.callerProfile(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.CreateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if !admin && req.ProfileID == "" {
		req.ProfileID = profileID
	}

	membership, err := h.memberships.Create(c.Request.Context(), req, profileID, admin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, membership)
}

// Cancel godoc
// @Summary Cancel a membership
// @Tags Memberships
// @Produce json
// @Param id path string true "Membership ID"
// @Success 200 {object} response.Envelope
// @Router /memberships/{id} [delete]
func (h *MembershipHandler) Cancel(c *gin.Context) {
	membership, err := h.memberships.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}
