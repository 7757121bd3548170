package equipment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	mysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/validation"
)

var now = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

var eqCols = []string{"id", "equipment_code", "name", "description", "category", "status",
	"stock_count", "location", "purchased_at", "created_at", "updated_at"}

func eqRow(id string, status Status, stock int) *sqlmock.Rows {
	return sqlmock.NewRows(eqCols).
		AddRow(id, "OSC-01", "Oscilloscope", nil, "LAB_INSTRUMENT", string(status), stock, "Lab 3", nil, now, now)
}

type env struct {
	mock   sqlmock.Sqlmock
	router *gin.Engine
}

func newEnv(t *testing.T, role auth.Role) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Setup()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	svc := NewService(conn, fixedClock{}, ids.NewULIDGen(), zap.NewNop())
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, "U1")
		c.Set(auth.CtxRoleKey, string(role))
	})
	RegisterRoutes(api, svc, zap.NewNop())
	return &env{mock: mock, router: r}
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestStatusForCheckouts(t *testing.T) {
	cases := []struct {
		cur        Status
		out, stock int
		want       Status
	}{
		{StatusAvailable, 0, 2, StatusAvailable},
		{StatusAvailable, 2, 2, StatusBorrowed},
		{StatusBorrowed, 1, 2, StatusAvailable},
		{StatusUnderMaintenance, 2, 2, StatusUnderMaintenance},
		{StatusLost, 0, 1, StatusLost},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusForCheckouts(tc.cur, tc.out, tc.stock), "%s %d/%d", tc.cur, tc.out, tc.stock)
	}
}

func TestCreateRequiresStaff(t *testing.T) {
	e := newEnv(t, auth.RoleStudent)
	w := e.do("POST", "/api/equipment", `{"equipment_code":"X","name":"Y","category":"TOOL"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t, auth.RoleStaff)

	w := e.do("POST", "/api/equipment", `{"equipment_code":"X","name":"Y","category":"SPACESHIP"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Category must be one of")

	w = e.do("POST", "/api/equipment", `{"equipment_code":"X","name":"Y","category":"TOOL","stock_count":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do("POST", "/api/equipment", `{"equipment_code":"X","name":"Y","category":"TOOL","status":"BORROWED"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate(t *testing.T) {
	e := newEnv(t, auth.RoleStaff)
	e.mock.ExpectExec(`INSERT INTO equipment`).
		WithArgs(sqlmock.AnyArg(), "DMM-07", "Multimeter", nil, "ELECTRONICS", "AVAILABLE", 3, nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := e.do("POST", "/api/equipment", `{"equipment_code":" DMM-07 ","name":"Multimeter","category":"ELECTRONICS","stock_count":3}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"AVAILABLE"`)
	assert.Contains(t, w.Body.String(), `"stock_count":3`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestCreateDuplicateCode(t *testing.T) {
	e := newEnv(t, auth.RoleAdmin)
	e.mock.ExpectExec(`INSERT INTO equipment`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	w := e.do("POST", "/api/equipment", `{"equipment_code":"DMM-07","name":"Multimeter","category":"ELECTRONICS"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "equipment_code already exists")
}

func TestGetNotFound(t *testing.T) {
	e := newEnv(t, auth.RoleStudent)
	e.mock.ExpectQuery(`FROM equipment WHERE id = \?`).WithArgs("NOPE").WillReturnRows(sqlmock.NewRows(eqCols))

	w := e.do("GET", "/api/equipment/NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteWithOpenBorrows(t *testing.T) {
	e := newEnv(t, auth.RoleAdmin)
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 1))
	e.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM borrows`).WithArgs("E1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	e.mock.ExpectRollback()

	w := e.do("DELETE", "/api/equipment/E1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestDeleteRetires(t *testing.T) {
	e := newEnv(t, auth.RoleAdmin)
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 1))
	e.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM borrows`).WithArgs("E1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	e.mock.ExpectExec(`UPDATE equipment SET status = \?`).WithArgs("RETIRED", now, "E1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectCommit()

	w := e.do("DELETE", "/api/equipment/E1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, e.mock.ExpectationsWereMet())

	staff := newEnv(t, auth.RoleStaff)
	assert.Equal(t, http.StatusForbidden, staff.do("DELETE", "/api/equipment/E1", "").Code)
}

func TestAvailability(t *testing.T) {
	e := newEnv(t, auth.RoleStudent)
	e.mock.ExpectQuery(`FROM equipment WHERE id = \?`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 2))
	e.mock.ExpectQuery(`FROM borrows`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "status", "requested_start", "requested_end", "approved_start", "approved_end", "checkout_time"}).
			AddRow("B1", "APPROVED", now.Add(1*time.Hour), now.Add(5*time.Hour), now.Add(1*time.Hour), now.Add(5*time.Hour), nil).
			AddRow("B2", "APPROVED", now.Add(2*time.Hour), now.Add(3*time.Hour), now.Add(2*time.Hour), now.Add(3*time.Hour), nil))

	from := now.Format(time.RFC3339)
	to := now.Add(6 * time.Hour).Format(time.RFC3339)
	w := e.do("GET", "/api/equipment/E1/availability?from="+from+"&to="+to, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"peak_in_use":2`)
	assert.Contains(t, w.Body.String(), `"available":0`)

	w = e.do("GET", "/api/equipment/E1/availability?from="+to+"&to="+from, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorrectiveMaintenanceLifecycle(t *testing.T) {
	e := newEnv(t, auth.RoleStaff)

	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 1))
	e.mock.ExpectExec(`INSERT INTO maintenance_logs`).WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectExec(`UPDATE equipment SET status = \?`).WithArgs("UNDER_MAINTENANCE", now, "E1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectCommit()

	w := e.do("POST", "/api/equipment/E1/maintenance", `{"type":"CORRECTIVE","description":"cracked screen"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, e.mock.ExpectationsWereMet())

	mCols := []string{"id", "equipment_id", "type", "description", "performed_by", "started_at", "completed_at", "created_at"}
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusUnderMaintenance, 1))
	e.mock.ExpectQuery(`FROM maintenance_logs WHERE id = \? AND equipment_id = \? FOR UPDATE`).WithArgs("M1", "E1").
		WillReturnRows(sqlmock.NewRows(mCols).AddRow("M1", "E1", "CORRECTIVE", "cracked screen", nil, now.Add(-2*time.Hour), nil, now.Add(-2*time.Hour)))
	e.mock.ExpectExec(`UPDATE maintenance_logs SET completed_at`).WithArgs(now, "M1").WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectQuery(`COUNT\(\*\) FROM maintenance_logs`).WithArgs("E1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	e.mock.ExpectExec(`UPDATE equipment SET status = \?`).WithArgs("AVAILABLE", now, "E1").WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 1))
	e.mock.ExpectQuery(`COUNT\(\*\) FROM borrows`).WithArgs("E1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	e.mock.ExpectCommit()

	w = e.do("POST", "/api/equipment/E1/maintenance/M1/complete", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"completed_at"`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

var blockCols = []string{"id", "status", "requested_start", "requested_end", "approved_start", "approved_end", "checkout_time"}

func TestLoweringStockBelowBookingsConflicts(t *testing.T) {
	e := newEnv(t, auth.RoleStaff)
	next := now.Add(7 * 24 * time.Hour)
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 2))
	e.mock.ExpectQuery(`SELECT id, status, requested_start`).WillReturnRows(sqlmock.NewRows(blockCols).
		AddRow("B1", "APPROVED", next, next.Add(4*time.Hour), next, next.Add(4*time.Hour), nil).
		AddRow("B2", "APPROVED", next.Add(time.Hour), next.Add(3*time.Hour), next.Add(time.Hour), next.Add(3*time.Hour), nil))
	e.mock.ExpectRollback()

	w := e.do("PATCH", "/api/equipment/E1", `{"stock_count":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "2 unit(s) are out or booked")
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestLoweringStockAroundBookings(t *testing.T) {
	e := newEnv(t, auth.RoleStaff)
	next := now.Add(7 * 24 * time.Hour)
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 3))
	e.mock.ExpectQuery(`SELECT id, status, requested_start`).WillReturnRows(sqlmock.NewRows(blockCols).
		AddRow("B1", "APPROVED", next, next.Add(2*time.Hour), next, next.Add(2*time.Hour), nil).
		AddRow("B2", "APPROVED", next.Add(2*time.Hour), next.Add(3*time.Hour), next.Add(2*time.Hour), next.Add(3*time.Hour), nil))
	e.mock.ExpectExec(`UPDATE equipment SET stock_count = \?`).WithArgs(1, now, "E1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectQuery(`FROM equipment WHERE id = \? FOR UPDATE`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 1))
	e.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM borrows`).WithArgs("E1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	e.mock.ExpectCommit()
	e.mock.ExpectQuery(`FROM equipment WHERE id = \?`).WithArgs("E1").WillReturnRows(eqRow("E1", StatusAvailable, 1))

	w := e.do("PATCH", "/api/equipment/E1", `{"stock_count":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"stock_count":1`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}
