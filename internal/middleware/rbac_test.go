package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nataclub/natation-api/internal/models"
)

func performWithRole(t *testing.T, role models.UserRole, allowed ...models.UserRole) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	})
	r.GET("/protected", RequireRoles(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireRolesAllows(t *testing.T) {
	assert.Equal(t, http.StatusOK, performWithRole(t, models.RoleAdmin, models.RoleAdmin))
	assert.Equal(t, http.StatusOK, performWithRole(t, models.RoleCoach, models.RoleAdmin, models.RoleCoach))
}

func TestRequireRolesRejects(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, performWithRole(t, models.RoleMember, models.RoleAdmin))
}

func TestRequireRolesUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
