package reports

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/validation"
)

var now = time.Date(2025, 8, 11, 8, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	fail error
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	b, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (m *memCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	m.sets++
	return nil
}

type env struct {
	mock   sqlmock.Sqlmock
	cache  *memCache
	router *gin.Engine
}

func newEnv(t *testing.T, actor auth.Actor) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Setup()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	cache := &memCache{data: map[string][]byte{}}
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, actor.UserID)
		c.Set(auth.CtxRoleKey, string(actor.Role))
	})
	RegisterRoutes(api, NewService(conn, cache, fixedClock{}, zap.NewNop()), zap.NewNop())
	return &env{mock: mock, cache: cache, router: r}
}

func (e *env) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

var (
	staff   = auth.Actor{UserID: "STAFF1", Role: auth.RoleStaff}
	student = auth.Actor{UserID: "STU1", Role: auth.RoleStudent}
)

func expectDashboard(mock sqlmock.Sqlmock) {
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`FROM borrows GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).AddRow("PENDING", 4).AddRow("ACTIVE", 2))
	mock.ExpectQuery(`FROM equipment GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).AddRow("AVAILABLE", 10).AddRow("BORROWED", 2))
	mock.ExpectQuery(`PENDING_APPROVAL`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectQuery(`UNRESOLVED`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`status = 'OVERDUE'`).WithArgs(now).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(5))
}

func TestDashboardIsCached(t *testing.T) {
	e := newEnv(t, staff)
	expectDashboard(e.mock)

	w := e.get("/api/reports/dashboard")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, `"borrows_by_status":{"ACTIVE":2,"PENDING":4}`)
	assert.Contains(t, body, `"pending_users":3`)
	assert.Contains(t, body, `"unresolved_deficiencies":1`)
	assert.Contains(t, body, `"overdue":5`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
	assert.Equal(t, 1, e.cache.sets)

	// served from cache: no further queries expected
	w = e.get("/api/reports/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, body, w.Body.String())
}

func TestDashboardSurvivesCacheOutage(t *testing.T) {
	e := newEnv(t, staff)
	e.cache.fail = errors.New("connection refused")
	expectDashboard(e.mock)

	w := e.get("/api/reports/dashboard")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestDashboardQueryFailure(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.MatchExpectationsInOrder(false)
	e.mock.ExpectQuery(`FROM borrows GROUP BY status`).WillReturnError(errors.New("boom"))

	w := e.get("/api/reports/dashboard")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, e.cache.sets)
}

func TestReportsAreStaffOnly(t *testing.T) {
	e := newEnv(t, student)
	assert.Equal(t, http.StatusForbidden, e.get("/api/reports/dashboard").Code)
	assert.Equal(t, http.StatusForbidden, e.get("/api/reports/utilization").Code)
}

var (
	aug1  = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	aug11 = time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)
)

func TestUtilizationReport(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectQuery(`FROM equipment WHERE status <> 'RETIRED'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "equipment_code", "name", "stock_count"}).
			AddRow("E1", "OSC-01", "Oscilloscope", 2).
			AddRow("E2", "MIC-01", "Microscope", 1))
	e.mock.ExpectQuery(`FROM borrows WHERE checkout_time IS NOT NULL`).WithArgs(aug11, aug1).
		WillReturnRows(sqlmock.NewRows([]string{"equipment_id", "class_id", "borrower_id", "checkout_time", "actual_return_time"}).
			AddRow("E1", nil, "STU1", aug1, aug1.Add(24*time.Hour)))

	w := e.get("/api/reports/utilization?from=2025-08-01&to=2025-08-10")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, `"type":"utilization"`)
	assert.Contains(t, body, `"used_hours":24`)
	assert.Contains(t, body, `"utilization_pct":5`)
	assert.Contains(t, body, `"equipment_code":"MIC-01"`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestContactHoursAsShiftJISCSV(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectQuery(`FROM classes ORDER BY course_code`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_code", "section", "name"}).
			AddRow("C1", "PHY101", "A", "物理学実験"))
	e.mock.ExpectQuery(`FROM borrows WHERE checkout_time IS NOT NULL`).WithArgs(aug11, aug1).
		WillReturnRows(sqlmock.NewRows([]string{"equipment_id", "class_id", "borrower_id", "checkout_time", "actual_return_time"}).
			AddRow("E1", "C1", "STU1", aug1, aug1.Add(3*time.Hour)).
			AddRow("E2", "C1", "STU2", aug1, aug1.Add(2*time.Hour)))

	w := e.get("/api/reports/contact_hours?from=2025-08-01T00:00:00Z&to=2025-08-11T00:00:00Z&format=csv&encoding=shift_jis")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=Shift_JIS", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="contact_hours_20250801_20250811.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Course,Section,Name,Contact (h),Borrowers\n"))
	assert.Contains(t, w.Body.String(), ",5.00,2\n")
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestHistoryAsPDF(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectQuery(`FROM borrows b`).WithArgs(now, aug11, aug1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "equipment_code", "name", "borrower", "course_code", "status",
			"requested_start", "requested_end", "checkout_time", "actual_return_time", "return_condition"}).
			AddRow("B1", "OSC-01", "Oscilloscope", "Ada Lovelace", "PHY101", "OVERDUE",
				aug1, aug1.Add(4*time.Hour), aug1, nil, nil))

	w := e.get("/api/reports/borrow_history?from=2025-08-01&to=2025-08-10&format=pdf")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestDeficiencyReportDefaultsToLast30Days(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectQuery(`FROM deficiencies d`).WithArgs(now.Add(-DefaultRange), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "borrow_id", "user", "equipment_code", "type", "status",
			"description", "created_at", "resolved_at"}))

	w := e.get("/api/reports/deficiencies")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"rows":[]`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestGenerateValidation(t *testing.T) {
	e := newEnv(t, staff)
	cases := []struct {
		path string
		code int
	}{
		{"/api/reports/inventory", http.StatusNotFound},
		{"/api/reports/utilization?format=xlsx", http.StatusBadRequest},
		{"/api/reports/utilization?format=csv&encoding=latin-1", http.StatusBadRequest},
		{"/api/reports/utilization?from=yesterday", http.StatusBadRequest},
		{"/api/reports/utilization?from=2025-08-10&to=2025-08-01", http.StatusBadRequest},
		{"/api/reports/utilization?from=2024-01-01&to=2025-08-01", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.code, e.get(tc.path).Code)
		})
	}
	assert.NoError(t, e.mock.ExpectationsWereMet())
}
