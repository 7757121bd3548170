package equipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/paging"
)

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) WithTx(tx db.DBTX) *Store { return &Store{db: tx} }

const equipmentColumns = `id, equipment_code, name, description, category, status, stock_count, location, purchased_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row rowScanner) (*Equipment, error) {
	var (
		e           Equipment
		desc, loc   sql.NullString
		purchasedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.EquipmentCode, &e.Name, &desc, &e.Category, &e.Status,
		&e.StockCount, &loc, &purchasedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Description = db.StringPtr(desc)
	e.Location = db.StringPtr(loc)
	e.PurchasedAt = db.TimePtr(purchasedAt)
	return &e, nil
}

func (s *Store) Insert(ctx context.Context, e *Equipment) error {
	const q = `
INSERT INTO equipment (id, equipment_code, name, description, category, status, stock_count, location, purchased_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, e.ID, e.EquipmentCode, e.Name, db.NullString(e.Description),
		e.Category, e.Status, e.StockCount, db.NullString(e.Location), db.NullTime(e.PurchasedAt),
		e.CreatedAt, e.UpdatedAt)
	return err
}

// Get returns sql.ErrNoRows when the row is missing.
func (s *Store) Get(ctx context.Context, id string) (*Equipment, error) {
	q := `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = ?`
	return scanEquipment(s.db.QueryRowContext(ctx, q, id))
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (s *Store) GetForUpdate(ctx context.Context, id string) (*Equipment, error) {
	q := `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = ? FOR UPDATE`
	return scanEquipment(s.db.QueryRowContext(ctx, q, id))
}

// GetMany loads several rows keyed by id; missing ids are absent from the map.
func (s *Store) GetMany(ctx context.Context, ids []string, lock bool) (map[string]*Equipment, error) {
	out := map[string]*Equipment{}
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + equipmentColumns + ` FROM equipment WHERE id IN (` + db.InPlaceholders(len(ids)) + `) ORDER BY id`
	if lock {
		q += ` FOR UPDATE`
	}
	rows, err := s.db.QueryContext(ctx, q, db.StringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, id string, in UpdateEquipmentRequest, now time.Time) error {
	sets := []string{}
	args := []any{}
	if in.EquipmentCode != nil {
		sets = append(sets, "equipment_code = ?")
		args = append(args, strings.TrimSpace(*in.EquipmentCode))
	}
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*in.Name))
	}
	if in.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, db.NullString(in.Description))
	}
	if in.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *in.Category)
	}
	if in.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *in.Status)
	}
	if in.StockCount != nil {
		sets = append(sets, "stock_count = ?")
		args = append(args, *in.StockCount)
	}
	if in.Location != nil {
		sets = append(sets, "location = ?")
		args = append(args, db.NullString(in.Location))
	}
	if in.PurchasedAt != nil {
		sets = append(sets, "purchased_at = ?")
		args = append(args, db.NullTime(in.PurchasedAt))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)
	q := fmt.Sprintf(`UPDATE equipment SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) SetStatus(ctx context.Context, id string, status Status, now time.Time) error {
	const q = `UPDATE equipment SET status = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, status, now, id)
	return err
}

func (s *Store) List(ctx context.Context, f EquipmentQuery, p paging.Page) ([]Equipment, int64, error) {
	var where strings.Builder
	args := []any{}
	where.WriteString(" WHERE 1=1")
	if f.Q != nil && strings.TrimSpace(*f.Q) != "" {
		like := "%" + strings.TrimSpace(*f.Q) + "%"
		where.WriteString(" AND (name LIKE ? OR equipment_code LIKE ?)")
		args = append(args, like, like)
	}
	if f.Category != nil {
		where.WriteString(" AND category = ?")
		args = append(args, *f.Category)
	}
	if f.Status != nil {
		where.WriteString(" AND status = ?")
		args = append(args, *f.Status)
	}
	if f.Location != nil {
		where.WriteString(" AND location = ?")
		args = append(args, *f.Location)
	}

	q := `SELECT ` + equipmentColumns + ` FROM equipment` + where.String() +
		` ORDER BY created_at ` + p.SQLOrder() + `, id ` + p.SQLOrder() + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(append([]any{}, args...), p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Equipment{}
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// CountOpenBorrows counts borrows that still have work left on this item.
func (s *Store) CountOpenBorrows(ctx context.Context, id string) (int64, error) {
	const q = `
SELECT COUNT(*) FROM borrows
WHERE equipment_id = ? AND status IN ('PENDING', 'APPROVED', 'ACTIVE', 'OVERDUE', 'PENDING_RETURN')`
	var n int64
	err := s.db.QueryRowContext(ctx, q, id).Scan(&n)
	return n, err
}

// CountCheckedOut counts units physically out of the store room.
func (s *Store) CountCheckedOut(ctx context.Context, id string) (int, error) {
	const q = `
SELECT COUNT(*) FROM borrows
WHERE equipment_id = ? AND status IN ('ACTIVE', 'OVERDUE', 'PENDING_RETURN')`
	var n int
	err := s.db.QueryRowContext(ctx, q, id).Scan(&n)
	return n, err
}

// ===== maintenance =====

const maintenanceColumns = `id, equipment_id, type, description, performed_by, started_at, completed_at, created_at`

func scanMaintenance(row rowScanner) (*MaintenanceLog, error) {
	var (
		m           MaintenanceLog
		performedBy sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.EquipmentID, &m.Type, &m.Description, &performedBy,
		&m.StartedAt, &completedAt, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.PerformedBy = db.StringPtr(performedBy)
	m.CompletedAt = db.TimePtr(completedAt)
	return &m, nil
}

func (s *Store) InsertMaintenance(ctx context.Context, m *MaintenanceLog) error {
	const q = `
INSERT INTO maintenance_logs (id, equipment_id, type, description, performed_by, started_at, completed_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, m.ID, m.EquipmentID, m.Type, m.Description,
		db.NullString(m.PerformedBy), m.StartedAt, db.NullTime(m.CompletedAt), m.CreatedAt)
	return err
}

func (s *Store) ListMaintenance(ctx context.Context, equipmentID string) ([]MaintenanceLog, error) {
	q := `SELECT ` + maintenanceColumns + ` FROM maintenance_logs WHERE equipment_id = ? ORDER BY started_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []MaintenanceLog{}
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func (s *Store) GetMaintenanceForUpdate(ctx context.Context, equipmentID, logID string) (*MaintenanceLog, error) {
	q := `SELECT ` + maintenanceColumns + ` FROM maintenance_logs WHERE id = ? AND equipment_id = ? FOR UPDATE`
	m, err := scanMaintenance(s.db.QueryRowContext(ctx, q, logID, equipmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	return m, err
}

func (s *Store) CompleteMaintenance(ctx context.Context, logID string, at time.Time) error {
	const q = `UPDATE maintenance_logs SET completed_at = ? WHERE id = ? AND completed_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, at, logID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CountOpenCorrective(ctx context.Context, equipmentID string) (int, error) {
	const q = `SELECT COUNT(*) FROM maintenance_logs WHERE equipment_id = ? AND type = 'CORRECTIVE' AND completed_at IS NULL`
	var n int
	err := s.db.QueryRowContext(ctx, q, equipmentID).Scan(&n)
	return n, err
}
