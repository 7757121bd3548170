package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/config"
	"equipborrow-backend/internal/platform/ids"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2025, 8, 11, 8, 0, 0, 0, time.UTC) }

func newRouter(t *testing.T, mode string) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cfg := config.Default()
	cfg.Mode = mode
	cfg.Auth.JWTSecret = "test-secret"
	return NewRouter(Deps{Config: cfg, DB: conn, Log: zap.NewNop(), Clock: fixedClock{}, IDs: ids.NewULIDGen()}), mock
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	h, mock := newRouter(t, "release")
	mock.ExpectPing()
	w := get(h, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"database":"ok"}`, w.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	w = get(h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIRequiresAuth(t *testing.T) {
	h, _ := newRouter(t, "release")
	for _, p := range []string{"/api/borrows", "/api/equipment", "/api/reports/dashboard", "/api/auth/me"} {
		assert.Equal(t, http.StatusUnauthorized, get(h, p).Code, p)
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newRouter(t, "release")
	w := get(h, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"NOT_FOUND"`)
}

func TestSwaggerOnlyInDev(t *testing.T) {
	h, _ := newRouter(t, "dev")
	w := get(h, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "equipborrow API")
	assert.Contains(t, w.Body.String(), "/borrows/{id}/{action}")

	h, _ = newRouter(t, "release")
	assert.Equal(t, http.StatusNotFound, get(h, "/swagger/doc.json").Code)
}
