package reports

import (
	"context"
	"database/sql"
	"time"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// ===== dashboard =====

func (s *Store) countBy(ctx context.Context, q string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			k string
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (s *Store) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

func (s *Store) BorrowsByStatus(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, `SELECT status, COUNT(*) FROM borrows GROUP BY status`)
}

func (s *Store) EquipmentByStatus(ctx context.Context) (map[string]int, error) {
	return s.countBy(ctx, `SELECT status, COUNT(*) FROM equipment GROUP BY status`)
}

func (s *Store) CountPendingUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users WHERE status = 'PENDING_APPROVAL'`)
}

func (s *Store) CountUnresolvedDeficiencies(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM deficiencies WHERE status = 'UNRESOLVED'`)
}

// CountOverdue includes ACTIVE rows already past due that the sweep has not
// marked yet.
func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	return s.count(ctx, `
SELECT COUNT(*) FROM borrows
WHERE status = 'OVERDUE' OR (status = 'ACTIVE' AND COALESCE(approved_end, requested_end) < ?)`, now)
}

// ===== report sources =====

type equipmentRef struct {
	ID    string
	Code  string
	Name  string
	Stock int
}

func (s *Store) Equipment(ctx context.Context) ([]equipmentRef, error) {
	const q = `SELECT id, equipment_code, name, stock_count FROM equipment WHERE status <> 'RETIRED' ORDER BY equipment_code`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equipmentRef
	for rows.Next() {
		var e equipmentRef
		if err := rows.Scan(&e.ID, &e.Code, &e.Name, &e.Stock); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Repairs returns CORRECTIVE logs that touch in.
func (s *Store) Repairs(ctx context.Context, in capacity.Window) ([]Repair, error) {
	const q = `
SELECT equipment_id, started_at, completed_at FROM maintenance_logs
WHERE type = 'CORRECTIVE' AND started_at < ? AND (completed_at IS NULL OR completed_at >= ?)`
	rows, err := s.db.QueryContext(ctx, q, in.End, in.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Repair
	for rows.Next() {
		var (
			r   Repair
			end sql.NullTime
		)
		if err := rows.Scan(&r.EquipmentID, &r.Start, &end); err != nil {
			return nil, err
		}
		r.Start = r.Start.UTC()
		r.End = db.TimePtr(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Usages returns checked-out intervals that touch in.
func (s *Store) Usages(ctx context.Context, in capacity.Window) ([]Usage, error) {
	const q = `
SELECT equipment_id, class_id, borrower_id, checkout_time, actual_return_time FROM borrows
WHERE checkout_time IS NOT NULL AND checkout_time < ? AND (actual_return_time IS NULL OR actual_return_time > ?)`
	rows, err := s.db.QueryContext(ctx, q, in.End, in.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Usage
	for rows.Next() {
		var (
			u       Usage
			classID sql.NullString
			end     sql.NullTime
		)
		if err := rows.Scan(&u.EquipmentID, &classID, &u.BorrowerID, &u.Start, &end); err != nil {
			return nil, err
		}
		u.ClassID = db.StringPtr(classID)
		u.Start = u.Start.UTC()
		u.End = db.TimePtr(end)
		out = append(out, u)
	}
	return out, rows.Err()
}

type classRef struct {
	ID         string
	CourseCode string
	Section    string
	Name       string
}

func (s *Store) Classes(ctx context.Context) ([]classRef, error) {
	const q = `SELECT id, course_code, section, name FROM classes ORDER BY course_code, section`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []classRef
	for rows.Next() {
		var c classRef
		if err := rows.Scan(&c.ID, &c.CourseCode, &c.Section, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// History lists borrows whose requested window touches in. ACTIVE rows past
// due are reported as OVERDUE.
func (s *Store) History(ctx context.Context, in capacity.Window, now time.Time) ([]HistoryRow, error) {
	const q = `
SELECT b.id, e.equipment_code, e.name, CONCAT(u.first_name, ' ', u.last_name), c.course_code,
  CASE WHEN b.status = 'ACTIVE' AND COALESCE(b.approved_end, b.requested_end) < ? THEN 'OVERDUE' ELSE b.status END,
  b.requested_start, b.requested_end, b.checkout_time, b.actual_return_time, b.return_condition
FROM borrows b
JOIN equipment e ON e.id = b.equipment_id
JOIN users u ON u.id = b.borrower_id
LEFT JOIN classes c ON c.id = b.class_id
WHERE b.requested_start < ? AND b.requested_end > ?
ORDER BY b.requested_start, b.id`
	rows, err := s.db.QueryContext(ctx, q, now, in.End, in.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryRow{}
	for rows.Next() {
		var (
			h                  HistoryRow
			course, condition  sql.NullString
			checkout, returned sql.NullTime
		)
		if err := rows.Scan(&h.BorrowID, &h.EquipmentCode, &h.EquipmentName, &h.BorrowerName, &course,
			&h.Status, &h.Start, &h.End, &checkout, &returned, &condition); err != nil {
			return nil, err
		}
		h.CourseCode = db.StringPtr(course)
		h.Condition = db.StringPtr(condition)
		h.CheckoutTime = db.TimePtr(checkout)
		h.ReturnedAt = db.TimePtr(returned)
		h.Start, h.End = h.Start.UTC(), h.End.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) Deficiencies(ctx context.Context, in capacity.Window) ([]DeficiencyRow, error) {
	const q = `
SELECT d.id, d.borrow_id, CONCAT(u.first_name, ' ', u.last_name), e.equipment_code, d.type, d.status,
  d.description, d.created_at, d.resolved_at
FROM deficiencies d
JOIN borrows b ON b.id = d.borrow_id
JOIN equipment e ON e.id = b.equipment_id
JOIN users u ON u.id = d.user_id
WHERE d.created_at >= ? AND d.created_at < ?
ORDER BY d.created_at, d.id`
	rows, err := s.db.QueryContext(ctx, q, in.Start, in.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DeficiencyRow{}
	for rows.Next() {
		var (
			d        DeficiencyRow
			desc     sql.NullString
			resolved sql.NullTime
		)
		if err := rows.Scan(&d.DeficiencyID, &d.BorrowID, &d.UserName, &d.EquipmentCode, &d.Type, &d.Status,
			&desc, &d.CreatedAt, &resolved); err != nil {
			return nil, err
		}
		d.Description = db.StringPtr(desc)
		d.ResolvedAt = db.TimePtr(resolved)
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
