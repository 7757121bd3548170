package equipment

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/paging"
)

// MaxAvailabilityRange bounds the window of an availability query.
const MaxAvailabilityRange = 90 * 24 * time.Hour

type Service struct {
	db    *sql.DB
	store *Store
	clock ids.Clock
	ids   ids.IDGen
	log   *zap.Logger
}

func NewService(conn *sql.DB, clock ids.Clock, idgen ids.IDGen, log *zap.Logger) *Service {
	return &Service{db: conn, store: NewStore(conn), clock: clock, ids: idgen, log: log}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.ErrNotFound("equipment not found")
	}
	return err
}

func (s *Service) List(ctx context.Context, q EquipmentQuery, p paging.Page) ([]EquipmentResponse, int64, error) {
	rows, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]EquipmentResponse, len(rows))
	for i := range rows {
		out[i] = toResponse(&rows[i])
	}
	return out, total, nil
}

func (s *Service) Get(ctx context.Context, id string) (*EquipmentResponse, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	res := toResponse(e)
	return &res, nil
}

func (s *Service) Create(ctx context.Context, req CreateEquipmentRequest) (*EquipmentResponse, error) {
	status := StatusAvailable
	if req.Status != nil {
		status = Status(*req.Status)
	}
	if status == StatusBorrowed || status == StatusRetired {
		return nil, apierr.Invalidf("new equipment cannot start as %s", status)
	}
	stock := 1
	if req.StockCount != nil {
		stock = *req.StockCount
	}
	if stock < 1 {
		return nil, apierr.ErrInvalid("stock_count must be at least 1")
	}
	code := strings.TrimSpace(req.EquipmentCode)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, apierr.ErrInvalid("equipment_code and name are required")
	}

	now := s.clock.Now()
	e := &Equipment{
		ID:            s.ids.New(),
		EquipmentCode: code,
		Name:          name,
		Description:   req.Description,
		Category:      Category(req.Category),
		Status:        status,
		StockCount:    stock,
		Location:      req.Location,
		PurchasedAt:   req.PurchasedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, apierr.FromMySQL(err, "equipment_code already exists", "invalid reference")
	}
	s.log.Info("equipment created", zap.String("equipment_id", e.ID), zap.String("code", code))
	res := toResponse(e)
	return &res, nil
}

// Update applies a partial update. BORROWED is owned by the checkout flow and
// cannot be set by hand; RETIRED goes through Delete.
func (s *Service) Update(ctx context.Context, id string, req UpdateEquipmentRequest) (*EquipmentResponse, error) {
	if req.Status != nil {
		switch Status(*req.Status) {
		case StatusBorrowed:
			return nil, apierr.ErrInvalid("BORROWED is set by checkout, not by hand")
		case StatusRetired:
			return nil, apierr.ErrInvalid("use DELETE to retire equipment")
		}
	}
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		cur, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if cur.Status == StatusRetired {
			return apierr.ErrConflict("equipment is retired")
		}
		if req.StockCount != nil && *req.StockCount < cur.StockCount {
			held, err := capacity.Committed(ctx, tx, id, s.clock.Now())
			if err != nil {
				return err
			}
			if *req.StockCount < held {
				return apierr.Conflictf("%d unit(s) are out or booked at once; stock_count cannot go below that", held)
			}
		}
		if err := st.Update(ctx, id, req, s.clock.Now()); err != nil {
			return apierr.FromMySQL(err, "equipment_code already exists", "invalid reference")
		}
		if req.StockCount != nil && req.Status == nil {
			return SyncBorrowed(ctx, st, id, s.clock.Now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete retires the item. Rows are kept for borrow history and reports.
func (s *Service) Delete(ctx context.Context, id string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		cur, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if cur.Status == StatusRetired {
			return nil
		}
		n, err := st.CountOpenBorrows(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierr.Conflictf("equipment has %d open borrow(s)", n)
		}
		if err := st.SetStatus(ctx, id, StatusRetired, s.clock.Now()); err != nil {
			return err
		}
		s.log.Info("equipment retired", zap.String("equipment_id", id))
		return nil
	})
}

func (s *Service) Availability(ctx context.Context, id string, from, to time.Time) (*capacity.Availability, error) {
	in := capacity.Window{Start: from, End: to}
	if !in.Valid() {
		return nil, apierr.ErrInvalid("from must be before to")
	}
	if in.Duration() > MaxAvailabilityRange {
		return nil, apierr.ErrInvalid("range must not exceed 90 days")
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	bookings, err := capacity.LoadBlocking(ctx, s.db, id, in, s.clock.Now())
	if err != nil {
		return nil, err
	}
	stock := e.StockCount
	if !e.Status.Borrowable() {
		stock = 0
	}
	a := capacity.Compute(capacity.Windows(bookings), in, stock)
	return &a, nil
}

// ===== maintenance =====

func (s *Service) ListMaintenance(ctx context.Context, id string) ([]MaintenanceResponse, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, notFound(err)
	}
	logs, err := s.store.ListMaintenance(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]MaintenanceResponse, len(logs))
	for i := range logs {
		out[i] = toMaintenanceResponse(&logs[i])
	}
	return out, nil
}

// AddMaintenance records a log. An open CORRECTIVE log takes the item out of
// service until it is completed.
func (s *Service) AddMaintenance(ctx context.Context, id string, req CreateMaintenanceRequest) (*MaintenanceResponse, error) {
	now := s.clock.Now()
	m := &MaintenanceLog{
		ID:          s.ids.New(),
		EquipmentID: id,
		Type:        MaintenanceType(req.Type),
		Description: strings.TrimSpace(req.Description),
		PerformedBy: req.PerformedBy,
		StartedAt:   now,
		CompletedAt: req.CompletedAt,
		CreatedAt:   now,
	}
	if req.StartedAt != nil {
		m.StartedAt = req.StartedAt.UTC()
	}
	if m.StartedAt.After(now) {
		return nil, apierr.ErrInvalid("started_at cannot be in the future")
	}
	if m.CompletedAt != nil && m.CompletedAt.Before(m.StartedAt) {
		return nil, apierr.ErrInvalid("completed_at must not be before started_at")
	}

	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		e, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if e.Status == StatusRetired {
			return apierr.ErrConflict("equipment is retired")
		}
		if err := st.InsertMaintenance(ctx, m); err != nil {
			return err
		}
		if m.Type == MaintenanceCorrective && m.CompletedAt == nil && e.Status != StatusLost {
			return st.SetStatus(ctx, id, StatusUnderMaintenance, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := toMaintenanceResponse(m)
	return &res, nil
}

func (s *Service) CompleteMaintenance(ctx context.Context, id, logID string, req CompleteMaintenanceRequest) (*MaintenanceResponse, error) {
	now := s.clock.Now()
	at := now
	if req.CompletedAt != nil {
		at = req.CompletedAt.UTC()
	}
	if at.After(now) {
		return nil, apierr.ErrInvalid("completed_at cannot be in the future")
	}

	var out *MaintenanceLog
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		e, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		m, err := st.GetMaintenanceForUpdate(ctx, id, logID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apierr.ErrNotFound("maintenance log not found")
			}
			return err
		}
		if m.CompletedAt != nil {
			return apierr.ErrConflict("maintenance log already completed")
		}
		if at.Before(m.StartedAt) {
			return apierr.ErrInvalid("completed_at must not be before started_at")
		}
		if err := st.CompleteMaintenance(ctx, logID, at); err != nil {
			return err
		}
		m.CompletedAt = &at
		out = m

		if e.Status != StatusUnderMaintenance {
			return nil
		}
		open, err := st.CountOpenCorrective(ctx, id)
		if err != nil {
			return err
		}
		if open == 0 {
			if err := st.SetStatus(ctx, id, StatusAvailable, now); err != nil {
				return err
			}
			return SyncBorrowed(ctx, st, id, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := toMaintenanceResponse(out)
	return &res, nil
}

// StatusForCheckouts decides between AVAILABLE and BORROWED. Other statuses
// are left alone.
func StatusForCheckouts(cur Status, checkedOut, stock int) Status {
	if cur != StatusAvailable && cur != StatusBorrowed {
		return cur
	}
	if checkedOut >= stock {
		return StatusBorrowed
	}
	return StatusAvailable
}

// SyncBorrowed re-reads checkout counts and flips AVAILABLE/BORROWED. It must
// run inside the transaction that changed the borrows.
func SyncBorrowed(ctx context.Context, st *Store, id string, now time.Time) error {
	e, err := st.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	out, err := st.CountCheckedOut(ctx, id)
	if err != nil {
		return err
	}
	next := StatusForCheckouts(e.Status, out, e.StockCount)
	if next == e.Status {
		return nil
	}
	return st.SetStatus(ctx, id, next, now)
}
