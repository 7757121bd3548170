package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/validation"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) New() string { return fmt.Sprintf("ID%024d", g.n.Add(1)) }

type memAccounts struct {
	byID map[string]*Account
}

func newMemAccounts() *memAccounts { return &memAccounts{byID: map[string]*Account{}} }

func (m *memAccounts) GetByID(_ context.Context, id string) (*Account, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*Account, error) {
	for _, a := range m.byID {
		if a.Email == NormalizeEmail(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) Insert(_ context.Context, a *Account) error {
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	m.byID[id].PasswordHash = hash
	return nil
}

func (m *memAccounts) TouchLogin(_ context.Context, id string, now time.Time) error {
	m.byID[id].LastLoginAt = &now
	return nil
}

type fixture struct {
	svc      *Service
	accounts *memAccounts
	sessions *MemorySessionStore
	tokens   *Tokens
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Setup()

	now := time.Now().UTC()
	clock := fixedClock{t: now}
	accounts := newMemAccounts()
	sessions := NewMemorySessionStore(func() time.Time { return now })
	tokens := NewTokens("test-secret", time.Hour, clock)
	log := zap.NewNop()
	svc := NewService(accounts, sessions, tokens, clock, &seqIDs{}, Options{CookieName: "eb_session"}, log)

	r := gin.New()
	api := r.Group("/api")
	guard := NewGuard(tokens, sessions, "eb_session", log)
	authed := api.Group("", guard.RequireAuth())
	RegisterRoutes(api, authed, svc, log)
	authed.GET("/admin-only", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })

	return &fixture{svc: svc, accounts: accounts, sessions: sessions, tokens: tokens, router: r}
}

func (f *fixture) seed(t *testing.T, id, email string, role Role, status UserStatus) {
	t.Helper()
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	require.NoError(t, f.accounts.Insert(context.Background(), &Account{
		ID: id, Email: email, PasswordHash: hash, FirstName: "Ada", LastName: "Lovelace",
		Role: role, Status: status,
	}))
}

func (f *fixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	w := f.do("POST", "/api/auth/login", `{"email":"`+email+`","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Token
}

func TestLoginIssuesTokenAndCookie(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "ada@example.edu", RoleStaff, StatusActive)

	w := f.do("POST", "/api/auth/login", `{"email":"ADA@example.edu","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "eb_session=")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")

	var res LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	claims, err := f.tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.Subject)
	assert.Equal(t, RoleStaff, claims.Role)
	assert.Equal(t, 1, f.sessions.Count("U1"))
	assert.NotNil(t, f.accounts.byID["U1"].LastLoginAt)
}

func TestLoginRejections(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "pending@example.edu", RoleStudent, StatusPendingApproval)
	f.seed(t, "U2", "gone@example.edu", RoleStudent, StatusInactive)
	f.seed(t, "U3", "ok@example.edu", RoleStudent, StatusActive)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"pending", `{"email":"pending@example.edu","password":"correct-horse"}`, http.StatusForbidden},
		{"inactive", `{"email":"gone@example.edu","password":"correct-horse"}`, http.StatusForbidden},
		{"wrong password", `{"email":"ok@example.edu","password":"nope-nope"}`, http.StatusUnauthorized},
		{"unknown", `{"email":"who@example.edu","password":"correct-horse"}`, http.StatusUnauthorized},
		{"bad body", `{"email":"not-an-email"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do("POST", "/api/auth/login", tc.body, "")
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}
}

func TestRegisterCreatesPendingAccount(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/api/auth/register",
		`{"email":"new@example.edu","password":"longenough","first_name":"Grace","last_name":"Hopper","student_number":"2024-0001"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, RoleStudent, p.Role)
	assert.Equal(t, StatusPendingApproval, p.Status)

	w = f.do("POST", "/api/auth/login", `{"email":"new@example.edu","password":"longenough"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterRejectsStaffRole(t *testing.T) {
	f := newFixture(t)
	w := f.do("POST", "/api/auth/register",
		`{"email":"x@example.edu","password":"longenough","first_name":"X","last_name":"Y","role":"ADMIN"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("POST", "/api/auth/register",
		`{"email":"x@example.edu","password":"longenough","first_name":"X","last_name":"Y"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "students need a student number")
}

func TestMeAndLogout(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "ada@example.edu", RoleFaculty, StatusActive)
	token := f.login(t, "ada@example.edu")

	w := f.do("GET", "/api/auth/me", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ada@example.edu"`)
	assert.NotContains(t, w.Body.String(), "password")

	w = f.do("POST", "/api/auth/logout", "", token)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do("GET", "/api/auth/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCookieAuth(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "ada@example.edu", RoleStudent, StatusActive)
	token := f.login(t, "ada@example.edu")

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "eb_session", Value: token})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthFailures(t *testing.T) {
	f := newFixture(t)

	w := f.do("GET", "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"UNAUTHENTICATED"`)

	w = f.do("GET", "/api/auth/me", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid signature but no live session.
	orphan, _, err := f.tokens.Issue("U9", RoleAdmin, "SID-NONE")
	require.NoError(t, err)
	w = f.do("GET", "/api/auth/me", "", orphan)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Token signed with another secret.
	other := NewTokens("other", time.Hour, fixedClock{t: time.Now().UTC()})
	forged, _, err := other.Issue("U9", RoleAdmin, "SID")
	require.NoError(t, err)
	w = f.do("GET", "/api/auth/me", "", forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "student@example.edu", RoleStudent, StatusActive)
	f.seed(t, "U2", "admin@example.edu", RoleAdmin, StatusActive)

	w := f.do("GET", "/api/admin-only", "", f.login(t, "student@example.edu"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do("GET", "/api/admin-only", "", f.login(t, "admin@example.edu"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "U1", "ada@example.edu", RoleStudent, StatusActive)
	first := f.login(t, "ada@example.edu")
	second := f.login(t, "ada@example.edu")
	require.Equal(t, 2, f.sessions.Count("U1"))

	w := f.do("PUT", "/api/auth/password", `{"current_password":"wrong","new_password":"brand-new-pass"}`, first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do("PUT", "/api/auth/password", `{"current_password":"correct-horse","new_password":"brand-new-pass"}`, first)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assert.Equal(t, http.StatusOK, f.do("GET", "/api/auth/me", "", first).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/auth/me", "", second).Code)
	assert.True(t, CheckPassword(f.accounts.byID["U1"].PasswordHash, "brand-new-pass"))
}

func TestTokenExpiry(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, _, err := NewTokens("s", time.Minute, fixedClock{t: issuedAt}).Issue("U1", RoleStudent, "S1")
	require.NoError(t, err)

	_, err = NewTokens("s", time.Minute, fixedClock{t: issuedAt.Add(30 * time.Second)}).Parse(tok)
	assert.NoError(t, err)
	_, err = NewTokens("s", time.Minute, fixedClock{t: issuedAt.Add(2 * time.Minute)}).Parse(tok)
	assert.Error(t, err)
}
