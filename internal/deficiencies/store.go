package deficiencies

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/paging"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) WithTx(tx db.DBTX) *Store { return &Store{db: tx} }

const columns = `d.id, d.borrow_id, d.user_id, d.tagged_by_id, d.type, d.status, d.description, d.resolution,
  d.resolved_by_id, d.resolved_at, d.created_at,
  e.equipment_code, e.name, CONCAT(u.first_name, ' ', u.last_name)`

const from = `
FROM deficiencies d
JOIN borrows b ON b.id = d.borrow_id
JOIN equipment e ON e.id = b.equipment_id
JOIN users u ON u.id = d.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(row rowScanner) (*Deficiency, error) {
	var (
		d                          Deficiency
		taggedBy, desc, res, resBy sql.NullString
		resolvedAt                 sql.NullTime
	)
	err := row.Scan(&d.ID, &d.BorrowID, &d.UserID, &taggedBy, &d.Type, &d.Status, &desc, &res,
		&resBy, &resolvedAt, &d.CreatedAt, &d.EquipmentCode, &d.EquipmentName, &d.UserName)
	if err != nil {
		return nil, err
	}
	d.TaggedByID = db.StringPtr(taggedBy)
	d.Description = db.StringPtr(desc)
	d.Resolution = db.StringPtr(res)
	d.ResolvedByID = db.StringPtr(resBy)
	d.ResolvedAt = db.TimePtr(resolvedAt)
	return &d, nil
}

// Insert writes a new deficiency. It is also called by the return flow inside
// its own transaction.
func (s *Store) Insert(ctx context.Context, d *Deficiency) error {
	const q = `
INSERT INTO deficiencies (id, borrow_id, user_id, tagged_by_id, type, status, description, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, d.ID, d.BorrowID, d.UserID, db.NullString(d.TaggedByID),
		d.Type, d.Status, db.NullString(d.Description), d.CreatedAt)
	return err
}

// Get returns sql.ErrNoRows when missing.
func (s *Store) Get(ctx context.Context, id string) (*Deficiency, error) {
	return scan(s.db.QueryRowContext(ctx, `SELECT `+columns+from+` WHERE d.id = ?`, id))
}

func (s *Store) GetForUpdate(ctx context.Context, id string) (*Deficiency, error) {
	return scan(s.db.QueryRowContext(ctx, `SELECT `+columns+from+` WHERE d.id = ? FOR UPDATE OF d`, id))
}

func (s *Store) Resolve(ctx context.Context, id, resolution, by string, at time.Time) error {
	const q = `UPDATE deficiencies SET status = ?, resolution = ?, resolved_by_id = ?, resolved_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, StatusResolved, resolution, by, at, id)
	return err
}

// BorrowerOf returns the borrower charged for deficiencies on a borrow.
func (s *Store) BorrowerOf(ctx context.Context, borrowID string) (string, error) {
	var uid string
	err := s.db.QueryRowContext(ctx, `SELECT borrower_id FROM borrows WHERE id = ?`, borrowID).Scan(&uid)
	return uid, err
}

func (s *Store) List(ctx context.Context, f Query, p paging.Page) ([]Deficiency, int64, error) {
	var (
		where strings.Builder
		args  []any
	)
	where.WriteString(" WHERE 1=1")
	if f.Status != nil {
		where.WriteString(" AND d.status = ?")
		args = append(args, *f.Status)
	}
	if f.Type != nil {
		where.WriteString(" AND d.type = ?")
		args = append(args, *f.Type)
	}
	if f.UserID != nil {
		where.WriteString(" AND d.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.BorrowID != nil {
		where.WriteString(" AND d.borrow_id = ?")
		args = append(args, *f.BorrowID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deficiencies d`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + columns + from + where.String() + ` ORDER BY d.created_at ` + p.SQLOrder() + `, d.id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(append([]any{}, args...), p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Deficiency{}
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
