package classes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/paging"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) WithTx(tx db.DBTX) *Store { return &Store{db: tx} }

const classColumns = `c.id, c.course_code, c.name, c.section, c.semester, c.academic_year, c.schedule, c.venue, c.fic_id, c.is_active, c.created_at, c.updated_at`

// detailColumns adds the FIC name and enrollment count.
const detailColumns = classColumns + `,
  NULLIF(TRIM(CONCAT(COALESCE(u.first_name, ''), ' ', COALESCE(u.last_name, ''))), '') AS fic_name,
  (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrollment_count`

const detailFrom = ` FROM classes c LEFT JOIN users u ON u.id = c.fic_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClassInto(row rowScanner, extra ...any) (*Class, error) {
	var (
		c               Class
		schedule, venue sql.NullString
		ficID           sql.NullString
	)
	dest := []any{&c.ID, &c.CourseCode, &c.Name, &c.Section, &c.Semester, &c.AcademicYear,
		&schedule, &venue, &ficID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Schedule = db.StringPtr(schedule)
	c.Venue = db.StringPtr(venue)
	c.FICID = db.StringPtr(ficID)
	return &c, nil
}

func scanDetail(row rowScanner) (*ClassResponse, error) {
	var (
		ficName sql.NullString
		count   int
	)
	c, err := scanClassInto(row, &ficName, &count)
	if err != nil {
		return nil, err
	}
	res := toResponse(c)
	res.FICName = db.StringPtr(ficName)
	res.EnrollmentCount = count
	return &res, nil
}

func toResponse(c *Class) ClassResponse {
	return ClassResponse{
		ID:           c.ID,
		CourseCode:   c.CourseCode,
		Name:         c.Name,
		Section:      c.Section,
		Semester:     c.Semester,
		AcademicYear: c.AcademicYear,
		Schedule:     c.Schedule,
		Venue:        c.Venue,
		FICID:        c.FICID,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// Get returns sql.ErrNoRows when missing.
func (s *Store) Get(ctx context.Context, id string) (*Class, error) {
	q := `SELECT ` + classColumns + ` FROM classes c WHERE c.id = ?`
	return scanClassInto(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) GetForUpdate(ctx context.Context, id string) (*Class, error) {
	q := `SELECT ` + classColumns + ` FROM classes c WHERE c.id = ? FOR UPDATE`
	return scanClassInto(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) GetDetail(ctx context.Context, id string) (*ClassResponse, error) {
	q := `SELECT ` + detailColumns + detailFrom + ` WHERE c.id = ?`
	return scanDetail(s.db.QueryRowContext(ctx, q, id))
}

func (s *Store) Insert(ctx context.Context, c *Class) error {
	const q = `
INSERT INTO classes (id, course_code, name, section, semester, academic_year, schedule, venue, fic_id, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, c.ID, c.CourseCode, c.Name, c.Section, c.Semester, c.AcademicYear,
		db.NullString(c.Schedule), db.NullString(c.Venue), db.NullString(c.FICID), c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) Update(ctx context.Context, id string, in UpdateClassRequest, now time.Time) error {
	sets := []string{}
	args := []any{}
	str := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, strings.TrimSpace(*v))
		}
	}
	str("course_code", in.CourseCode)
	str("name", in.Name)
	str("section", in.Section)
	str("semester", in.Semester)
	str("academic_year", in.AcademicYear)
	if in.Schedule != nil {
		sets = append(sets, "schedule = ?")
		args = append(args, db.NullString(in.Schedule))
	}
	if in.Venue != nil {
		sets = append(sets, "venue = ?")
		args = append(args, db.NullString(in.Venue))
	}
	if in.FICID != nil {
		sets = append(sets, "fic_id = ?")
		args = append(args, db.NullString(in.FICID))
	}
	if in.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *in.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)
	q := fmt.Sprintf(`UPDATE classes SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) CountBorrows(ctx context.Context, id string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows WHERE class_id = ?`, id).Scan(&n)
	return n, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ?`, id)
	return err
}

func (s *Store) List(ctx context.Context, f ClassQuery, p paging.Page) ([]ClassResponse, int64, error) {
	var where strings.Builder
	args := []any{}
	where.WriteString(" WHERE 1=1")
	if f.Q != nil && strings.TrimSpace(*f.Q) != "" {
		like := "%" + strings.TrimSpace(*f.Q) + "%"
		where.WriteString(" AND (c.course_code LIKE ? OR c.name LIKE ?)")
		args = append(args, like, like)
	}
	if f.Semester != nil {
		where.WriteString(" AND c.semester = ?")
		args = append(args, *f.Semester)
	}
	if f.AcademicYear != nil {
		where.WriteString(" AND c.academic_year = ?")
		args = append(args, *f.AcademicYear)
	}
	if f.FICID != nil {
		where.WriteString(" AND c.fic_id = ?")
		args = append(args, *f.FICID)
	}
	if f.Active != nil {
		where.WriteString(" AND c.is_active = ?")
		args = append(args, *f.Active)
	}
	if f.EnrolledUser != nil {
		where.WriteString(" AND EXISTS (SELECT 1 FROM enrollments en WHERE en.class_id = c.id AND en.user_id = ?)")
		args = append(args, *f.EnrolledUser)
	}

	q := `SELECT ` + detailColumns + detailFrom + where.String() +
		` ORDER BY c.academic_year ` + p.SQLOrder() + `, c.course_code ASC, c.section ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(append([]any{}, args...), p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []ClassResponse{}
	for rows.Next() {
		r, err := scanDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM classes c`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ===== enrollments =====

func (s *Store) ListEnrollments(ctx context.Context, classID string) ([]EnrollmentResponse, error) {
	const q = `
SELECT u.id, u.email, u.first_name, u.last_name, u.student_number, e.enrolled_at
FROM enrollments e JOIN users u ON u.id = e.user_id
WHERE e.class_id = ?
ORDER BY u.last_name, u.first_name, u.id`
	rows, err := s.db.QueryContext(ctx, q, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []EnrollmentResponse{}
	for rows.Next() {
		var (
			r  EnrollmentResponse
			sn sql.NullString
		)
		if err := rows.Scan(&r.UserID, &r.Email, &r.FirstName, &r.LastName, &sn, &r.EnrolledAt); err != nil {
			return nil, err
		}
		r.StudentNumber = db.StringPtr(sn)
		list = append(list, r)
	}
	return list, rows.Err()
}

// EnrolledSet returns which of userIDs are enrolled in the class.
func (s *Store) EnrolledSet(ctx context.Context, classID string, userIDs []string) (map[string]bool, error) {
	out := map[string]bool{}
	if len(userIDs) == 0 {
		return out, nil
	}
	q := `SELECT user_id FROM enrollments WHERE class_id = ? AND user_id IN (` + db.InPlaceholders(len(userIDs)) + `)`
	args := append([]any{classID}, db.StringArgs(userIDs)...)
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

func (s *Store) IsEnrolled(ctx context.Context, classID, userID string) (bool, error) {
	set, err := s.EnrolledSet(ctx, classID, []string{userID})
	if err != nil {
		return false, err
	}
	return set[userID], nil
}

func (s *Store) InsertEnrollment(ctx context.Context, classID, userID string, at time.Time) error {
	const q = `INSERT INTO enrollments (class_id, user_id, enrolled_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, classID, userID, at)
	return err
}

func (s *Store) DeleteEnrollment(ctx context.Context, classID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = ? AND user_id = ?`, classID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
