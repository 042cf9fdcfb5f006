package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/service"
)

type fakeSessionRepo struct {
	sessions map[string]models.Session
	updated  map[string]models.SessionStatus
}

func (f *fakeSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	out := make([]models.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := f.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessionRepo) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if f.updated == nil {
		f.updated = make(map[string]models.SessionStatus)
	}
	f.updated[id] = status
	return nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string `json:"code"`
		Status int    `json:"status"`
	} `json:"error"`
}

func newSessionHandler(repo *fakeSessionRepo) *SessionHandler {
	svc := service.NewSessionService(repo, nil, "series", nil)
	return NewSessionHandler(svc)
}

func TestSessionHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", SeriesID: "ser-1", Date: time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC), Status: models.SessionStatusActive},
	}}
	h := newSessionHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/sessions?from=2026-01-01&to=2026-01-31", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var sessions []models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "ses-1", sessions[0].ID)
}

func TestSessionHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSessionRepo{sessions: map[string]models.Session{
		"ses-1": {ID: "ses-1", Status: models.SessionStatusActive},
	}}
	h := newSessionHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/sessions/ses-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "ses-1"}}

	h.Cancel(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SessionStatusCancelled, repo.updated["ses-1"])
}

func TestSessionHandlerCancelNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newSessionHandler(&fakeSessionRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/sessions/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Cancel(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, http.StatusNotFound, env.Error.Status)
}
