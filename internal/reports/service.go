package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/ids"
)

const (
	dashboardKey = "eb:reports:dashboard"
	DashboardTTL = 60 * time.Second
)

type Service struct {
	store *Store
	cache Cache
	clock ids.Clock
	log   *zap.Logger
}

func NewService(conn *sql.DB, cache Cache, clock ids.Clock, log *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{store: NewStore(conn), cache: cache, clock: clock, log: log}
}

// Dashboard returns live counters, served from cache for up to DashboardTTL.
// Cache failures are logged and never fail the request.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if b, err := s.cache.Get(ctx, dashboardKey); err == nil {
		var d Dashboard
		if err := json.Unmarshal(b, &d); err == nil {
			return &d, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("dashboard cache read failed", zap.Error(err))
	}

	now := s.clock.Now()
	d := &Dashboard{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.BorrowsByStatus, err = s.store.BorrowsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.EquipmentByStatus, err = s.store.EquipmentByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.PendingUsers, err = s.store.CountPendingUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.UnresolvedDeficiencies, err = s.store.CountUnresolvedDeficiencies(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Overdue, err = s.store.CountOverdue(gctx, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	if b, err := json.Marshal(d); err == nil {
		if err := s.cache.Set(ctx, dashboardKey, b, DashboardTTL); err != nil {
			s.log.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return d, nil
}

// Generate builds one report over [From, To).
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Report, error) {
	in := capacity.Window{Start: req.From.UTC(), End: req.To.UTC()}
	if !in.Valid() {
		return nil, apierr.ErrInvalid("from must be before to")
	}
	if in.Duration() > MaxRange {
		return nil, apierr.ErrInvalid("report range cannot exceed 366 days")
	}

	now := s.clock.Now()
	r := &Report{Type: req.Type, From: in.Start, To: in.End, GeneratedAt: now}

	var err error
	switch req.Type {
	case TypeMTTRMTBF:
		r.Rows, r.Table, err = s.reliability(ctx, in, now)
	case TypeUtilization:
		r.Rows, r.Table, err = s.utilization(ctx, in, now)
	case TypeContactHours:
		r.Rows, r.Table, err = s.contactHours(ctx, in, now)
	case TypeBorrowHistory:
		r.Rows, r.Table, err = s.history(ctx, in, now)
	case TypeDeficiencies:
		r.Rows, r.Table, err = s.deficiencies(ctx, in)
	default:
		return nil, apierr.Invalidf("unknown report type %q", req.Type)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("report generated",
		zap.String("type", string(req.Type)),
		zap.Time("from", in.Start),
		zap.Time("to", in.End))
	return r, nil
}

func (s *Service) reliability(ctx context.Context, in capacity.Window, now time.Time) ([]ReliabilityRow, Table, error) {
	eqs, err := s.store.Equipment(ctx)
	if err != nil {
		return nil, Table{}, err
	}
	repairs, err := s.store.Repairs(ctx, in)
	if err != nil {
		return nil, Table{}, err
	}
	byEq := map[string][]Repair{}
	for _, r := range repairs {
		byEq[r.EquipmentID] = append(byEq[r.EquipmentID], r)
	}

	rows := make([]ReliabilityRow, 0, len(eqs))
	t := Table{
		Title:   "Equipment reliability (MTTR / MTBF)",
		Columns: []string{"Code", "Name", "Failures", "Downtime (h)", "MTTR (h)", "MTBF (h)"},
	}
	for _, e := range eqs {
		rs := byEq[e.ID]
		row := ReliabilityRow{
			EquipmentID:   e.ID,
			EquipmentCode: e.Code,
			Name:          e.Name,
			Failures:      Failures(rs, in),
			DowntimeHours: round2(Downtime(rs, in, now)),
			MTTRHours:     MTTR(rs, in),
			MTBFHours:     MTBF(rs, in, now),
		}
		rows = append(rows, row)
		t.Rows = append(t.Rows, []string{
			row.EquipmentCode, row.Name, strconv.Itoa(row.Failures),
			num(row.DowntimeHours), optNum(row.MTTRHours), optNum(row.MTBFHours),
		})
	}
	return rows, t, nil
}

func (s *Service) utilization(ctx context.Context, in capacity.Window, now time.Time) ([]UtilizationRow, Table, error) {
	eqs, err := s.store.Equipment(ctx)
	if err != nil {
		return nil, Table{}, err
	}
	usages, err := s.store.Usages(ctx, in)
	if err != nil {
		return nil, Table{}, err
	}
	byEq := map[string][]Usage{}
	for _, u := range usages {
		byEq[u.EquipmentID] = append(byEq[u.EquipmentID], u)
	}

	rows := make([]UtilizationRow, 0, len(eqs))
	t := Table{
		Title:   "Equipment utilization",
		Columns: []string{"Code", "Name", "Stock", "Used (h)", "Utilization (%)"},
	}
	for _, e := range eqs {
		us := byEq[e.ID]
		row := UtilizationRow{
			EquipmentID:   e.ID,
			EquipmentCode: e.Code,
			Name:          e.Name,
			StockCount:    e.Stock,
			UsedHours:     round2(UsedHours(us, in, now)),
			Utilization:   Utilization(us, in, e.Stock, now),
		}
		rows = append(rows, row)
		t.Rows = append(t.Rows, []string{
			row.EquipmentCode, row.Name, strconv.Itoa(row.StockCount),
			num(row.UsedHours), num(row.Utilization),
		})
	}
	return rows, t, nil
}

func (s *Service) contactHours(ctx context.Context, in capacity.Window, now time.Time) ([]ContactHoursRow, Table, error) {
	classes, err := s.store.Classes(ctx)
	if err != nil {
		return nil, Table{}, err
	}
	usages, err := s.store.Usages(ctx, in)
	if err != nil {
		return nil, Table{}, err
	}
	byClass := map[string][]Usage{}
	for _, u := range usages {
		if u.ClassID != nil {
			byClass[*u.ClassID] = append(byClass[*u.ClassID], u)
		}
	}

	rows := make([]ContactHoursRow, 0, len(classes))
	t := Table{
		Title:   "Class contact hours",
		Columns: []string{"Course", "Section", "Name", "Contact (h)", "Borrowers"},
	}
	for _, c := range classes {
		us := byClass[c.ID]
		row := ContactHoursRow{
			ClassID:      c.ID,
			CourseCode:   c.CourseCode,
			Section:      c.Section,
			Name:         c.Name,
			ContactHours: round2(UsedHours(us, in, now)),
			Borrowers:    DistinctBorrowers(us, in, now),
		}
		rows = append(rows, row)
		t.Rows = append(t.Rows, []string{
			row.CourseCode, row.Section, row.Name, num(row.ContactHours), strconv.Itoa(row.Borrowers),
		})
	}
	return rows, t, nil
}

func (s *Service) history(ctx context.Context, in capacity.Window, now time.Time) ([]HistoryRow, Table, error) {
	rows, err := s.store.History(ctx, in, now)
	if err != nil {
		return nil, Table{}, err
	}
	t := Table{
		Title:   "Borrow history",
		Columns: []string{"Borrow", "Code", "Equipment", "Borrower", "Course", "Status",
			"Start", "End", "Checked out", "Returned", "Condition"},
	}
	for _, h := range rows {
		t.Rows = append(t.Rows, []string{
			h.BorrowID, h.EquipmentCode, h.EquipmentName, h.BorrowerName, optStr(h.CourseCode), h.Status,
			stamp(h.Start), stamp(h.End), optStamp(h.CheckoutTime), optStamp(h.ReturnedAt), optStr(h.Condition),
		})
	}
	return rows, t, nil
}

func (s *Service) deficiencies(ctx context.Context, in capacity.Window) ([]DeficiencyRow, Table, error) {
	rows, err := s.store.Deficiencies(ctx, in)
	if err != nil {
		return nil, Table{}, err
	}
	t := Table{
		Title:   "Deficiencies",
		Columns: []string{"Deficiency", "Borrow", "User", "Code", "Type", "Status", "Description", "Created", "Resolved"},
	}
	for _, d := range rows {
		t.Rows = append(t.Rows, []string{
			d.DeficiencyID, d.BorrowID, d.UserName, d.EquipmentCode, d.Type, d.Status,
			optStr(d.Description), stamp(d.CreatedAt), optStamp(d.ResolvedAt),
		})
	}
	return rows, t, nil
}

// ===== cell formatting =====

const stampLayout = "2006-01-02 15:04"

func num(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func optNum(f *float64) string {
	if f == nil {
		return ""
	}
	return num(*f)
}

func optStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stamp(t time.Time) string { return t.UTC().Format(stampLayout) }

func optStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return stamp(*t)
}
