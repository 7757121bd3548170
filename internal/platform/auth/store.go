package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"equipborrow-backend/internal/platform/db"
)

type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	StudentNumber *string
	Role          Role
	Status        UserStatus
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the public view of an account.
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	StudentNumber *string    `json:"student_number,omitempty"`
	Role          Role       `json:"role"`
	Status        UserStatus `json:"status"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (a *Account) Profile() Profile {
	return Profile{
		ID:            a.ID,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		StudentNumber: a.StudentNumber,
		Role:          a.Role,
		Status:        a.Status,
		LastLoginAt:   a.LastLoginAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (a *Account) FullName() string { return strings.TrimSpace(a.FirstName + " " + a.LastName) }

// AccountColumns matches the order ScanAccount expects.
const AccountColumns = `id, email, password_hash, first_name, last_name, student_number, role, status, last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func ScanAccount(row rowScanner) (*Account, error) {
	var (
		a         Account
		studentNo sql.NullString
		lastLogin sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&studentNo, &a.Role, &a.Status, &lastLogin, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.StudentNumber = db.StringPtr(studentNo)
	a.LastLoginAt = db.TimePtr(lastLogin)
	return &a, nil
}

type AccountStore interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Insert(ctx context.Context, a *Account) error
	UpdatePassword(ctx context.Context, id, hash string, now time.Time) error
	TouchLogin(ctx context.Context, id string, now time.Time) error
}

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// GetByID returns nil, nil when the account does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	q := `SELECT ` + AccountColumns + ` FROM users WHERE id = ? LIMIT 1`
	a, err := ScanAccount(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	q := `SELECT ` + AccountColumns + ` FROM users WHERE email = ? LIMIT 1`
	a, err := ScanAccount(s.db.QueryRowContext(ctx, q, NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *Store) Insert(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO users (id, email, password_hash, first_name, last_name, student_number, role, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName,
		db.NullString(a.StudentNumber), a.Role, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string, now time.Time) error {
	const q = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, hash, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) TouchLogin(ctx context.Context, id string, now time.Time) error {
	const q = `UPDATE users SET last_login_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, now, id)
	return err
}

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
