package borrows

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/paging"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) WithTx(tx db.DBTX) *Store { return &Store{db: tx} }

const borrowColumns = `b.id, b.borrow_group_id, b.equipment_id, b.borrower_id, b.class_id, b.fic_id, b.status,
  b.reservation_type, b.purpose, b.requested_start, b.requested_end, b.approved_start, b.approved_end,
  b.approved_by_id, b.rejected_by_id, b.reject_reason, b.checkout_time, b.checked_out_by_id,
  b.return_requested_at, b.actual_return_time, b.received_by_id, b.return_condition, b.return_remarks,
  b.created_at, b.updated_at,
  e.equipment_code, e.name, CONCAT(u.first_name, ' ', u.last_name)`

const borrowFrom = `
FROM borrows b
JOIN equipment e ON e.id = b.equipment_id
JOIN users u ON u.id = b.borrower_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBorrow(row rowScanner) (*Borrow, error) {
	var (
		b                                          Borrow
		groupID, classID, ficID, purpose           sql.NullString
		approvedBy, rejectedBy, reason, checkoutBy sql.NullString
		receivedBy, condition, remarks             sql.NullString
		apStart, apEnd, checkout, retReq, returned sql.NullTime
	)
	err := row.Scan(&b.ID, &groupID, &b.EquipmentID, &b.BorrowerID, &classID, &ficID, &b.Status,
		&b.ReservationType, &purpose, &b.RequestedStart, &b.RequestedEnd, &apStart, &apEnd,
		&approvedBy, &rejectedBy, &reason, &checkout, &checkoutBy,
		&retReq, &returned, &receivedBy, &condition, &remarks,
		&b.CreatedAt, &b.UpdatedAt,
		&b.EquipmentCode, &b.EquipmentName, &b.BorrowerName)
	if err != nil {
		return nil, err
	}
	b.GroupID = db.StringPtr(groupID)
	b.ClassID = db.StringPtr(classID)
	b.FICID = db.StringPtr(ficID)
	b.Purpose = db.StringPtr(purpose)
	b.ApprovedStart = db.TimePtr(apStart)
	b.ApprovedEnd = db.TimePtr(apEnd)
	b.ApprovedByID = db.StringPtr(approvedBy)
	b.RejectedByID = db.StringPtr(rejectedBy)
	b.RejectReason = db.StringPtr(reason)
	b.CheckoutTime = db.TimePtr(checkout)
	b.CheckedOutByID = db.StringPtr(checkoutBy)
	b.ReturnRequestedAt = db.TimePtr(retReq)
	b.ActualReturnTime = db.TimePtr(returned)
	b.ReceivedByID = db.StringPtr(receivedBy)
	b.ReturnRemarks = db.StringPtr(remarks)
	if condition.Valid {
		c := ReturnCondition(condition.String)
		b.ReturnCondition = &c
	}
	b.RequestedStart = b.RequestedStart.UTC()
	b.RequestedEnd = b.RequestedEnd.UTC()
	return &b, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Borrow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Borrow{}
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Get returns sql.ErrNoRows when missing.
func (s *Store) Get(ctx context.Context, id string) (*Borrow, error) {
	return scanBorrow(s.db.QueryRowContext(ctx, `SELECT `+borrowColumns+borrowFrom+` WHERE b.id = ?`, id))
}

func (s *Store) GetMany(ctx context.Context, ids []string) ([]Borrow, error) {
	if len(ids) == 0 {
		return []Borrow{}, nil
	}
	q := `SELECT ` + borrowColumns + borrowFrom + ` WHERE b.id IN (` + db.InPlaceholders(len(ids)) + `) ORDER BY b.id`
	return s.query(ctx, q, db.StringArgs(ids)...)
}

func (s *Store) ListByGroup(ctx context.Context, groupID string) ([]Borrow, error) {
	return s.query(ctx, `SELECT `+borrowColumns+borrowFrom+` WHERE b.borrow_group_id = ? ORDER BY b.id`, groupID)
}

// LockByIDs row-locks the borrows only; joined equipment and users stay unlocked.
func (s *Store) LockByIDs(ctx context.Context, ids []string) ([]Borrow, error) {
	if len(ids) == 0 {
		return []Borrow{}, nil
	}
	q := `SELECT ` + borrowColumns + borrowFrom + ` WHERE b.id IN (` + db.InPlaceholders(len(ids)) + `) ORDER BY b.id FOR UPDATE OF b`
	return s.query(ctx, q, db.StringArgs(ids)...)
}

func (s *Store) LockByGroup(ctx context.Context, groupID string) ([]Borrow, error) {
	q := `SELECT ` + borrowColumns + borrowFrom + ` WHERE b.borrow_group_id = ? ORDER BY b.id FOR UPDATE OF b`
	return s.query(ctx, q, groupID)
}

func (s *Store) Insert(ctx context.Context, b *Borrow) error {
	const q = `
INSERT INTO borrows (id, borrow_group_id, equipment_id, borrower_id, class_id, fic_id, status, reservation_type,
  purpose, requested_start, requested_end, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, b.ID, db.NullString(b.GroupID), b.EquipmentID, b.BorrowerID,
		db.NullString(b.ClassID), db.NullString(b.FICID), b.Status, b.ReservationType, db.NullString(b.Purpose),
		b.RequestedStart, b.RequestedEnd, b.CreatedAt, b.UpdatedAt)
	return err
}

// SaveTransition writes every column a workflow action can touch.
func (s *Store) SaveTransition(ctx context.Context, b *Borrow) error {
	const q = `
UPDATE borrows SET
  status = ?, approved_start = ?, approved_end = ?, approved_by_id = ?, rejected_by_id = ?, reject_reason = ?,
  checkout_time = ?, checked_out_by_id = ?, return_requested_at = ?, actual_return_time = ?, received_by_id = ?,
  return_condition = ?, return_remarks = ?, updated_at = ?
WHERE id = ?`
	var cond sql.NullString
	if b.ReturnCondition != nil {
		cond = sql.NullString{String: string(*b.ReturnCondition), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, q, b.Status, db.NullTime(b.ApprovedStart), db.NullTime(b.ApprovedEnd),
		db.NullString(b.ApprovedByID), db.NullString(b.RejectedByID), db.NullString(b.RejectReason),
		db.NullTime(b.CheckoutTime), db.NullString(b.CheckedOutByID), db.NullTime(b.ReturnRequestedAt),
		db.NullTime(b.ActualReturnTime), db.NullString(b.ReceivedByID), cond, db.NullString(b.ReturnRemarks),
		b.UpdatedAt, b.ID)
	return err
}

// RejectAutomatic moves still-PENDING rows to REJECTED_AUTOMATIC.
func (s *Store) RejectAutomatic(ctx context.Context, ids []string, reason string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := `UPDATE borrows SET status = ?, reject_reason = ?, updated_at = ?
WHERE status = ? AND id IN (` + db.InPlaceholders(len(ids)) + `)`
	args := append([]any{StatusRejectedAutomatic, reason, now, StatusPending}, db.StringArgs(ids)...)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingOverlapping returns PENDING borrows of equipmentID whose requested
// window overlaps in, locked for update.
func (s *Store) PendingOverlapping(ctx context.Context, equipmentID string, in capacity.Window) ([]Candidate, error) {
	const q = `
SELECT id, requested_start, requested_end FROM borrows
WHERE equipment_id = ? AND status = ? AND requested_start < ? AND requested_end > ?
ORDER BY requested_start, id FOR UPDATE`
	rows, err := s.db.QueryContext(ctx, q, equipmentID, StatusPending, in.End, in.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.BorrowID, &c.Window.Start, &c.Window.End); err != nil {
			return nil, err
		}
		c.Window.Start = c.Window.Start.UTC()
		c.Window.End = c.Window.End.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// ===== group mates =====

func (s *Store) InsertMates(ctx context.Context, groupID string, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO borrow_group_mates (borrow_group_id, user_id, added_at) VALUES `)
	args := make([]any, 0, len(userIDs)*3)
	for i, uid := range userIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, groupID, uid, at)
	}
	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *Store) ListMates(ctx context.Context, groupID string) ([]GroupMate, error) {
	const q = `
SELECT m.user_id, CONCAT(u.first_name, ' ', u.last_name), u.email, m.added_at
FROM borrow_group_mates m JOIN users u ON u.id = m.user_id
WHERE m.borrow_group_id = ?
ORDER BY m.added_at, m.user_id`
	rows, err := s.db.QueryContext(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GroupMate{}
	for rows.Next() {
		var m GroupMate
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MateSets maps each group id to the set of its mates' user ids.
func (s *Store) MateSets(ctx context.Context, groupIDs []string) (map[string]map[string]bool, error) {
	out := map[string]map[string]bool{}
	if len(groupIDs) == 0 {
		return out, nil
	}
	q := `SELECT borrow_group_id, user_id FROM borrow_group_mates WHERE borrow_group_id IN (` + db.InPlaceholders(len(groupIDs)) + `)`
	rows, err := s.db.QueryContext(ctx, q, db.StringArgs(groupIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var gid, uid string
		if err := rows.Scan(&gid, &uid); err != nil {
			return nil, err
		}
		if out[gid] == nil {
			out[gid] = map[string]bool{}
		}
		out[gid][uid] = true
	}
	return out, rows.Err()
}

// ===== overdue sweep =====

// LockOverdue returns ACTIVE borrows past their due time.
func (s *Store) LockOverdue(ctx context.Context, now time.Time) ([]string, error) {
	const q = `
SELECT id FROM borrows
WHERE status = ? AND COALESCE(approved_end, requested_end) < ?
ORDER BY id FOR UPDATE`
	rows, err := s.db.QueryContext(ctx, q, StatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) MarkOverdue(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	q := `UPDATE borrows SET status = ?, updated_at = ? WHERE status = ? AND id IN (` + db.InPlaceholders(len(ids)) + `)`
	args := append([]any{StatusOverdue, now, StatusActive}, db.StringArgs(ids)...)
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// ===== listing =====

func (s *Store) List(ctx context.Context, f BorrowQuery, p paging.Page) ([]Borrow, int64, error) {
	var (
		where strings.Builder
		args  []any
	)
	where.WriteString(" WHERE 1=1")
	if f.visibleTo != nil {
		where.WriteString(" AND (b.borrower_id = ? OR b.borrow_group_id IN (SELECT borrow_group_id FROM borrow_group_mates WHERE user_id = ?)")
		args = append(args, *f.visibleTo, *f.visibleTo)
		if f.visibleFIC {
			where.WriteString(" OR b.fic_id = ?")
			args = append(args, *f.visibleTo)
		}
		where.WriteString(")")
	}
	if f.Status != nil {
		where.WriteString(" AND b.status = ?")
		args = append(args, *f.Status)
	}
	if f.EquipmentID != nil {
		where.WriteString(" AND b.equipment_id = ?")
		args = append(args, *f.EquipmentID)
	}
	if f.BorrowerID != nil {
		where.WriteString(" AND b.borrower_id = ?")
		args = append(args, *f.BorrowerID)
	}
	if f.ClassID != nil {
		where.WriteString(" AND b.class_id = ?")
		args = append(args, *f.ClassID)
	}
	if f.GroupID != nil {
		where.WriteString(" AND b.borrow_group_id = ?")
		args = append(args, *f.GroupID)
	}
	if f.From != nil {
		where.WriteString(" AND b.requested_end > ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where.WriteString(" AND b.requested_start < ?")
		args = append(args, *f.To)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows b`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + borrowColumns + borrowFrom + where.String() +
		` ORDER BY b.requested_start ` + p.SQLOrder() + `, b.id ` + p.SQLOrder() + ` LIMIT ? OFFSET ?`
	list, err := s.query(ctx, q, append(append([]any{}, args...), p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
