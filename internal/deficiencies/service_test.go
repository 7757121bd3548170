package deficiencies

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/validation"
)

var now = time.Date(2025, 8, 11, 8, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

var cols = []string{"id", "borrow_id", "user_id", "tagged_by_id", "type", "status", "description", "resolution",
	"resolved_by_id", "resolved_at", "created_at", "equipment_code", "name", "user_name"}

func row(id string, status Status) *sqlmock.Rows {
	return sqlmock.NewRows(cols).AddRow(id, "01J8ZB0000000000000000000B", "STU1", "STAFF1", "DAMAGE", string(status),
		"cracked screen", nil, nil, nil, now, "OSC-01", "Oscilloscope", "Ada Lovelace")
}

type env struct {
	mock   sqlmock.Sqlmock
	router *gin.Engine
}

func newEnv(t *testing.T, actor auth.Actor) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Setup()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, actor.UserID)
		c.Set(auth.CtxRoleKey, string(actor.Role))
	})
	RegisterRoutes(api, NewService(conn, fixedClock{}, ids.NewULIDGen(), zap.NewNop()), zap.NewNop())
	return &env{mock: mock, router: r}
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

var (
	staff   = auth.Actor{UserID: "STAFF1", Role: auth.RoleStaff}
	student = auth.Actor{UserID: "STU1", Role: auth.RoleStudent}
)

func TestResolve(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FOR UPDATE OF d`).WithArgs("D1").WillReturnRows(row("D1", StatusUnresolved))
	e.mock.ExpectExec(`UPDATE deficiencies SET status`).
		WithArgs(StatusResolved, "paid for repair", "STAFF1", now, "D1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	e.mock.ExpectCommit()
	e.mock.ExpectQuery(`WHERE d\.id = \?`).WithArgs("D1").WillReturnRows(row("D1", StatusResolved))

	w := e.do("POST", "/api/deficiencies/D1/resolve", `{"resolution":" paid for repair "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"RESOLVED"`)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestResolveTwiceConflicts(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectBegin()
	e.mock.ExpectQuery(`FOR UPDATE OF d`).WithArgs("D1").WillReturnRows(row("D1", StatusResolved))
	e.mock.ExpectRollback()

	w := e.do("POST", "/api/deficiencies/D1/resolve", `{"resolution":"again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, e.mock.ExpectationsWereMet())
}

func TestCreateUnknownBorrow(t *testing.T) {
	e := newEnv(t, staff)
	e.mock.ExpectQuery(`SELECT borrower_id FROM borrows`).WillReturnRows(sqlmock.NewRows([]string{"borrower_id"}))

	w := e.do("POST", "/api/deficiencies", `{"borrow_id":"01J8ZB0000000000000000000B","type":"DAMAGE"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t, staff)
	w := e.do("POST", "/api/deficiencies", `{"borrow_id":"01J8ZB0000000000000000000B","type":"SCRATCH"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "must be one of")
}

func TestStudentSeesOnlyOwn(t *testing.T) {
	e := newEnv(t, student)
	e.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM deficiencies d WHERE 1=1 AND d.user_id = \?`).WithArgs("STU1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	e.mock.ExpectQuery(`FROM deficiencies d`).WillReturnRows(row("D1", StatusUnresolved))

	w := e.do("GET", "/api/deficiencies", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusForbidden, e.do("POST", "/api/deficiencies/D1/resolve", `{"resolution":"x"}`).Code)
}
