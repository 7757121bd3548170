package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/paging"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// WithTx returns a store bound to tx.
func (s *Store) WithTx(tx db.DBTX) *Store { return &Store{db: tx} }

func (s *Store) Get(ctx context.Context, id string) (*auth.Account, error) {
	return s.get(ctx, id, false)
}

func (s *Store) GetForUpdate(ctx context.Context, id string) (*auth.Account, error) {
	return s.get(ctx, id, true)
}

func (s *Store) get(ctx context.Context, id string, lock bool) (*auth.Account, error) {
	q := `SELECT ` + auth.AccountColumns + ` FROM users WHERE id = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	a, err := auth.ScanAccount(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	return a, err
}

func (s *Store) Insert(ctx context.Context, a *auth.Account) error {
	return auth.NewStore(s.db).Insert(ctx, a)
}

func (s *Store) Update(ctx context.Context, id string, in UpdateUserRequest, now time.Time) error {
	sets := []string{}
	args := []any{}
	if in.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, strings.TrimSpace(*in.FirstName))
	}
	if in.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, strings.TrimSpace(*in.LastName))
	}
	if in.StudentNumber != nil {
		sets = append(sets, "student_number = ?")
		args = append(args, db.NullString(in.StudentNumber))
	}
	if in.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *in.Role)
	}
	if in.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *in.Status)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)
	q := fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) SetStatus(ctx context.Context, id string, status auth.UserStatus, now time.Time) error {
	const q = `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, status, now, id)
	return err
}

func (s *Store) CountBorrows(ctx context.Context, id string) (int64, error) {
	const q = `SELECT COUNT(*) FROM borrows WHERE borrower_id = ?`
	var n int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&n)
	return n, err
}

// Delete removes the user together with enrollment and group-mate rows and
// clears any class the user was faculty in charge of.
func (s *Store) Delete(ctx context.Context, id string) error {
	stmts := []string{
		`DELETE FROM enrollments WHERE user_id = ?`,
		`DELETE FROM borrow_group_mates WHERE user_id = ?`,
		`UPDATE classes SET fic_id = NULL WHERE fic_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context, f UserQuery, p paging.Page) ([]auth.Account, int64, error) {
	var where strings.Builder
	args := []any{}
	where.WriteString(" WHERE 1=1")
	if f.Q != nil && strings.TrimSpace(*f.Q) != "" {
		like := "%" + strings.TrimSpace(*f.Q) + "%"
		where.WriteString(" AND (email LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR student_number LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if f.Role != nil {
		where.WriteString(" AND role = ?")
		args = append(args, *f.Role)
	}
	if f.Status != nil {
		where.WriteString(" AND status = ?")
		args = append(args, *f.Status)
	}

	q := `SELECT ` + auth.AccountColumns + ` FROM users` + where.String() +
		` ORDER BY created_at ` + p.SQLOrder() + `, id ` + p.SQLOrder() + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(append([]any{}, args...), p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []auth.Account{}
	for rows.Next() {
		a, err := auth.ScanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ActiveWithRole returns the subset of ids that are ACTIVE users holding one of roles.
func (s *Store) ActiveWithRole(ctx context.Context, userIDs []string, roles ...auth.Role) (map[string]bool, error) {
	out := map[string]bool{}
	if len(userIDs) == 0 {
		return out, nil
	}
	args := db.StringArgs(userIDs)
	q := `SELECT id FROM users WHERE status = 'ACTIVE' AND id IN (` + db.InPlaceholders(len(userIDs)) + `)`
	if len(roles) > 0 {
		rs := make([]string, len(roles))
		for i, r := range roles {
			rs[i] = string(r)
		}
		q += ` AND role IN (` + db.InPlaceholders(len(rs)) + `)`
		args = append(args, db.StringArgs(rs)...)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
