package borrows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/classes"
	"equipborrow-backend/internal/deficiencies"
	"equipborrow-backend/internal/equipment"
	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/paging"
	"equipborrow-backend/internal/users"
)

// autoRejectReason is stored on pending borrows that lost their slot.
const autoRejectReason = "equipment fully booked by an approved reservation"

type Service struct {
	db    *sql.DB
	store *Store
	clock ids.Clock
	ids   ids.IDGen
	group func() string
	log   *zap.Logger
}

func NewService(conn *sql.DB, clock ids.Clock, idgen ids.IDGen, log *zap.Logger) *Service {
	return &Service{db: conn, store: NewStore(conn), clock: clock, ids: idgen, group: ids.NewGroupID, log: log}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.ErrNotFound("borrow not found")
	}
	return err
}

// ===== reads =====

// List scopes rows to what the caller may see: staff see everything,
// faculty add the borrows of classes they handle, everyone sees their own
// and their group mates'.
func (s *Service) List(ctx context.Context, actor auth.Actor, q BorrowQuery, p paging.Page) ([]BorrowResponse, int64, error) {
	if !actor.IsStaff() {
		q.visibleTo = &actor.UserID
		q.visibleFIC = actor.IsFaculty()
	}
	rows, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return nil, 0, err
	}
	return toResponses(rows), total, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*BorrowResponse, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	mates, err := s.mateSet(ctx, b)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, b, mates) {
		return nil, apierr.ErrForbidden("not allowed to view this borrow")
	}
	res := toResponse(b)
	return &res, nil
}

func (s *Service) GetGroup(ctx context.Context, actor auth.Actor, groupID string) (*GroupResponse, error) {
	rows, err := s.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apierr.ErrNotFound("borrow group not found")
	}
	mates, err := s.store.ListMates(ctx, groupID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(mates))
	for _, m := range mates {
		set[m.UserID] = true
	}
	visible := false
	for i := range rows {
		if CanView(actor, &rows[i], set) {
			visible = true
			break
		}
	}
	if !visible {
		return nil, apierr.ErrForbidden("not allowed to view this borrow group")
	}
	return &GroupResponse{BorrowGroupID: groupID, Borrows: toResponses(rows), Mates: mates}, nil
}

func (s *Service) mateSet(ctx context.Context, b *Borrow) (map[string]bool, error) {
	if b.GroupID == nil {
		return nil, nil
	}
	sets, err := s.store.MateSets(ctx, []string{*b.GroupID})
	if err != nil {
		return nil, err
	}
	return sets[*b.GroupID], nil
}

// ===== creation =====

type draft struct {
	items      []BulkItem
	window     capacity.Window
	purpose    *string
	resType    *string
	classID    *string
	borrowerID *string
	mates      []string
	grouped    bool
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateBorrowRequest) (*BorrowResponse, error) {
	out, err := s.create(ctx, actor, draft{
		items:      []BulkItem{{EquipmentID: req.EquipmentID, Quantity: 1}},
		window:     capacity.Window{Start: req.Start, End: req.End},
		purpose:    req.Purpose,
		resType:    req.ReservationType,
		classID:    req.ClassID,
		borrowerID: req.BorrowerID,
	})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// CreateBulk books several items under one borrow group. A quantity above
// one produces that many rows for the same equipment.
func (s *Service) CreateBulk(ctx context.Context, actor auth.Actor, req CreateBulkRequest) (*GroupResponse, error) {
	out, err := s.create(ctx, actor, draft{
		items:      req.Items,
		window:     capacity.Window{Start: req.Start, End: req.End},
		purpose:    req.Purpose,
		resType:    req.ReservationType,
		classID:    req.ClassID,
		borrowerID: req.BorrowerID,
		mates:      req.GroupMateIDs,
		grouped:    true,
	})
	if err != nil {
		return nil, err
	}
	groupID := *out[0].BorrowGroupID
	mates, err := s.store.ListMates(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &GroupResponse{BorrowGroupID: groupID, Borrows: out, Mates: mates}, nil
}

func (s *Service) create(ctx context.Context, actor auth.Actor, d draft) ([]BorrowResponse, error) {
	now := s.clock.Now()
	w := capacity.Window{Start: d.window.Start.UTC(), End: d.window.End.UTC()}
	if err := ValidateWindow(w, now); err != nil {
		return nil, err
	}

	borrower := actor.UserID
	if d.borrowerID != nil && *d.borrowerID != "" && *d.borrowerID != actor.UserID {
		if !actor.IsStaff() {
			return nil, apierr.ErrForbidden("only staff can book on behalf of another user")
		}
		borrower = *d.borrowerID
	}

	items := mergeItems(d.items)
	if len(items) == 0 {
		return nil, apierr.ErrInvalid("at least one item is required")
	}
	mates := dedupeExcept(d.mates, borrower)

	resType := OutOfClass
	if d.resType != nil {
		resType = ReservationType(*d.resType)
	}
	if resType == InClass && d.classID == nil {
		return nil, apierr.ErrInvalid("IN_CLASS reservations need a class_id")
	}

	var groupID *string
	if d.grouped {
		g := s.group()
		groupID = &g
	}

	var created []string
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		us := users.NewStore(tx)
		if borrower != actor.UserID {
			ok, err := us.ActiveWithRole(ctx, []string{borrower})
			if err != nil {
				return err
			}
			if !ok[borrower] {
				return apierr.ErrInvalid("borrower is not an active user")
			}
		}
		if len(mates) > 0 {
			ok, err := us.ActiveWithRole(ctx, mates)
			if err != nil {
				return err
			}
			for _, m := range mates {
				if !ok[m] {
					return apierr.Invalidf("group mate %s is not an active user", m)
				}
			}
		}

		var ficID *string
		if d.classID != nil {
			cs := classes.NewStore(tx)
			cls, err := cs.Get(ctx, *d.classID)
			if errors.Is(err, sql.ErrNoRows) {
				return apierr.ErrInvalid("class not found")
			}
			if err != nil {
				return err
			}
			if !cls.IsActive {
				return apierr.ErrInvalid("class is not active")
			}
			isFIC := cls.FICID != nil && *cls.FICID == borrower
			check := mates
			if !isFIC {
				check = append([]string{borrower}, mates...)
			}
			if len(check) > 0 {
				enrolled, err := cs.EnrolledSet(ctx, cls.ID, check)
				if err != nil {
					return err
				}
				if !isFIC && !enrolled[borrower] {
					return apierr.ErrForbidden("borrower is not enrolled in this class")
				}
				for _, m := range mates {
					if !enrolled[m] {
						return apierr.Invalidf("group mate %s is not enrolled in this class", m)
					}
				}
			}
			ficID = cls.FICID
			resType = InClass
		}

		eqIDs := make([]string, len(items))
		for i, it := range items {
			eqIDs[i] = it.EquipmentID
		}
		eqs, err := equipment.NewStore(tx).GetMany(ctx, eqIDs, true)
		if err != nil {
			return err
		}
		for _, it := range items {
			e, ok := eqs[it.EquipmentID]
			if !ok {
				return apierr.ErrNotFound("equipment " + it.EquipmentID + " not found")
			}
			if !e.Status.Borrowable() {
				return apierr.Conflictf("equipment %s is %s and cannot be borrowed", e.EquipmentCode, e.Status)
			}
			bookings, err := capacity.LoadBlocking(ctx, tx, e.ID, w, now)
			if err != nil {
				return err
			}
			if !capacity.Fits(capacity.Windows(bookings), w, it.Quantity, e.StockCount) {
				return apierr.Conflictf("not enough %s available in the requested window", e.EquipmentCode)
			}
		}

		st := s.store.WithTx(tx)
		for _, it := range items {
			for i := 0; i < it.Quantity; i++ {
				b := &Borrow{
					ID:              s.ids.New(),
					GroupID:         groupID,
					EquipmentID:     it.EquipmentID,
					BorrowerID:      borrower,
					ClassID:         d.classID,
					FICID:           ficID,
					Status:          StatusPending,
					ReservationType: resType,
					Purpose:         trimPtr(d.purpose),
					RequestedStart:  w.Start,
					RequestedEnd:    w.End,
					CreatedAt:       now,
					UpdatedAt:       now,
				}
				if err := st.Insert(ctx, b); err != nil {
					return apierr.FromMySQL(err, "borrow already exists", "invalid equipment, user or class")
				}
				created = append(created, b.ID)
			}
		}
		if groupID != nil {
			return st.InsertMates(ctx, *groupID, mates, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("borrower_id", borrower), zap.Strings("borrow_ids", created)}
	if groupID != nil {
		fields = append(fields, zap.String("borrow_group_id", *groupID))
	}
	s.log.Info("borrow requested", fields...)

	rows, err := s.store.GetMany(ctx, created)
	if err != nil {
		return nil, err
	}
	return toResponses(rows), nil
}

// ===== transitions =====

// Apply runs one action on a single borrow.
func (s *Service) Apply(ctx context.Context, actor auth.Actor, a Action, id string, req ActionRequest) (*BorrowResponse, error) {
	res, err := s.apply(ctx, actor, a, "", []string{id}, req)
	if err != nil {
		return nil, err
	}
	return &res.Updated[0], nil
}

// ApplyBulk runs one action over a borrow group or an id list. Rows in the
// wrong status are skipped and reported; everything else commits together.
func (s *Service) ApplyBulk(ctx context.Context, actor auth.Actor, a Action, req BulkActionRequest) (*BulkResult, error) {
	groupID := ""
	if req.BorrowGroupID != nil {
		groupID = strings.TrimSpace(*req.BorrowGroupID)
	}
	if (groupID == "") == (len(req.BorrowIDs) == 0) {
		return nil, apierr.ErrInvalid("exactly one of borrowGroupId or borrowIds is required")
	}
	return s.apply(ctx, actor, a, groupID, req.BorrowIDs, req.ActionRequest)
}

func (s *Service) apply(ctx context.Context, actor auth.Actor, a Action, groupID string, borrowIDs []string, req ActionRequest) (*BulkResult, error) {
	if _, ok := transitions[a]; !ok {
		return nil, apierr.Invalidf("unknown action %q", a)
	}
	now := s.clock.Now()
	res := &BulkResult{Action: a, Updated: []BorrowResponse{}, Skipped: []SkippedBorrow{}}

	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		var (
			rows []Borrow
			err  error
		)
		if groupID != "" {
			rows, err = st.LockByGroup(ctx, groupID)
		} else {
			borrowIDs = dedupeExcept(borrowIDs, "")
			rows, err = st.LockByIDs(ctx, borrowIDs)
		}
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.ErrNotFound("no borrows found")
		}

		found := make(map[string]bool, len(rows))
		var groups []string
		for _, b := range rows {
			found[b.ID] = true
			if b.GroupID != nil && !slices.Contains(groups, *b.GroupID) {
				groups = append(groups, *b.GroupID)
			}
		}
		for _, id := range borrowIDs {
			if !found[id] {
				res.Skipped = append(res.Skipped, SkippedBorrow{BorrowID: id, Reason: "not found"})
			}
		}
		mates, err := st.MateSets(ctx, groups)
		if err != nil {
			return err
		}

		var eligible []*Borrow
		for i := range rows {
			b := &rows[i]
			if !CanApply(a, b.Status) {
				res.Skipped = append(res.Skipped, SkippedBorrow{
					BorrowID: b.ID,
					Status:   b.Status,
					Reason:   fmt.Sprintf("cannot %s a %s borrow", a, b.Status),
				})
				continue
			}
			eligible = append(eligible, b)
		}
		if len(eligible) == 0 {
			return apierr.Conflictf("no borrow is eligible for %s", a)
		}
		for _, b := range eligible {
			var set map[string]bool
			if b.GroupID != nil {
				set = mates[*b.GroupID]
			}
			if err := Authorize(a, actor, b, set); err != nil {
				return err
			}
		}

		switch a {
		case ActionApprove:
			res.AutoRejected, err = s.approve(ctx, tx, actor, eligible, now)
		case ActionCheckout:
			err = s.checkout(ctx, tx, actor, eligible, now)
		case ActionReturn:
			res.Deficiencies, err = s.receive(ctx, tx, actor, eligible, req, now)
		default:
			err = s.simple(ctx, st, actor, a, eligible, req, now)
		}
		if err != nil {
			return err
		}
		for _, b := range eligible {
			res.Updated = append(res.Updated, toResponse(b))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("borrow action applied",
		zap.String("action", string(a)),
		zap.String("actor_id", actor.UserID),
		zap.Int("updated", len(res.Updated)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// simple handles the transitions with no stock side effects.
func (s *Service) simple(ctx context.Context, st *Store, actor auth.Actor, a Action, rows []*Borrow, req ActionRequest, now time.Time) error {
	for _, b := range rows {
		b.Status = Target(a, actor)
		switch a {
		case ActionReject:
			b.RejectedByID = &actor.UserID
			b.RejectReason = trimPtr(req.Reason)
		case ActionRequestReturn:
			t := now
			b.ReturnRequestedAt = &t
		}
		b.UpdatedAt = now
		if err := st.SaveTransition(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// approve fixes the approved window to the requested one, re-checks capacity
// and then rejects pending borrows that can no longer be served.
func (s *Service) approve(ctx context.Context, tx db.DBTX, actor auth.Actor, rows []*Borrow, now time.Time) ([]string, error) {
	st := s.store.WithTx(tx)
	es := equipment.NewStore(tx)
	order, byEq := byEquipment(rows)

	var rejected []string
	for _, eid := range order {
		batch := byEq[eid]
		e, err := es.GetForUpdate(ctx, eid)
		if err != nil {
			return nil, err
		}
		if !e.Status.Borrowable() {
			return nil, apierr.Conflictf("equipment %s is %s and cannot be approved", e.EquipmentCode, e.Status)
		}

		wins := make([]capacity.Window, len(batch))
		for i, b := range batch {
			wins[i] = capacity.Window{Start: b.RequestedStart, End: b.RequestedEnd}
		}
		bookings, err := capacity.LoadBlocking(ctx, tx, eid, span(wins), now)
		if err != nil {
			return nil, err
		}
		taken := capacity.Windows(bookings)
		for i, b := range batch {
			if !capacity.Fits(taken, wins[i], 1, e.StockCount) {
				return nil, apierr.Conflictf("equipment %s is fully booked for borrow %s", e.EquipmentCode, b.ID)
			}
			taken = append(taken, wins[i])

			start, end := wins[i].Start, wins[i].End
			b.Status = StatusApproved
			b.ApprovedStart = &start
			b.ApprovedEnd = &end
			b.ApprovedByID = &actor.UserID
			b.UpdatedAt = now
			if err := st.SaveTransition(ctx, b); err != nil {
				return nil, err
			}
		}

		auto, err := s.autoReject(ctx, tx, e, wins, now)
		if err != nil {
			return nil, err
		}
		rejected = append(rejected, auto...)
	}
	return rejected, nil
}

func (s *Service) autoReject(ctx context.Context, tx db.DBTX, e *equipment.Equipment, approved []capacity.Window, now time.Time) ([]string, error) {
	st := s.store.WithTx(tx)
	all, err := st.PendingOverlapping(ctx, e.ID, span(approved))
	if err != nil {
		return nil, err
	}
	var cands []Candidate
	for _, c := range all {
		for _, w := range approved {
			if c.Window.Overlaps(w) {
				cands = append(cands, c)
				break
			}
		}
	}
	if len(cands) == 0 {
		return nil, nil
	}

	cover := make([]capacity.Window, len(cands))
	for i, c := range cands {
		cover[i] = c.Window
	}
	bookings, err := capacity.LoadBlocking(ctx, tx, e.ID, span(cover), now)
	if err != nil {
		return nil, err
	}
	lost := AutoRejectCandidates(cands, capacity.Windows(bookings), e.StockCount)
	if len(lost) == 0 {
		return nil, nil
	}
	if _, err := st.RejectAutomatic(ctx, lost, autoRejectReason, now); err != nil {
		return nil, err
	}
	s.log.Info("pending borrows auto-rejected",
		zap.String("equipment_id", e.ID),
		zap.Strings("borrow_ids", lost))
	return lost, nil
}

func (s *Service) checkout(ctx context.Context, tx db.DBTX, actor auth.Actor, rows []*Borrow, now time.Time) error {
	st := s.store.WithTx(tx)
	es := equipment.NewStore(tx)
	order, byEq := byEquipment(rows)

	for _, eid := range order {
		batch := byEq[eid]
		e, err := es.GetForUpdate(ctx, eid)
		if err != nil {
			return err
		}
		if !e.Status.Borrowable() {
			return apierr.Conflictf("equipment %s is %s and cannot be checked out", e.EquipmentCode, e.Status)
		}
		out, err := es.CountCheckedOut(ctx, eid)
		if err != nil {
			return err
		}
		if out+len(batch) > e.StockCount {
			return apierr.Conflictf("all %d unit(s) of %s are checked out", e.StockCount, e.EquipmentCode)
		}
		if err := s.fitsEarly(ctx, tx, e, batch, now); err != nil {
			return err
		}
		for _, b := range batch {
			t := now
			b.Status = StatusActive
			b.CheckoutTime = &t
			b.CheckedOutByID = &actor.UserID
			b.UpdatedAt = now
			if err := st.SaveTransition(ctx, b); err != nil {
				return err
			}
		}
		if err := equipment.SyncBorrowed(ctx, es, eid, now); err != nil {
			return err
		}
	}
	return nil
}

// fitsEarly checks that rows handed out before their approved start do not
// take a unit another booking holds in the meantime.
func (s *Service) fitsEarly(ctx context.Context, tx db.DBTX, e *equipment.Equipment, batch []*Borrow, now time.Time) error {
	var gaps []capacity.Window
	var early []*Borrow
	for _, b := range batch {
		if b.ApprovedStart != nil && now.Before(*b.ApprovedStart) {
			gaps = append(gaps, capacity.Window{Start: now, End: *b.ApprovedStart})
			early = append(early, b)
		}
	}
	if len(gaps) == 0 {
		return nil
	}
	exclude := make([]string, len(batch))
	for i, b := range batch {
		exclude[i] = b.ID
	}
	bookings, err := capacity.LoadBlocking(ctx, tx, e.ID, span(gaps), now, exclude...)
	if err != nil {
		return err
	}
	taken := capacity.Windows(bookings)
	for i, b := range early {
		if !capacity.Fits(taken, gaps[i], 1, e.StockCount) {
			return apierr.Conflictf("borrow %s starts at %s; %s is booked until then",
				b.ID, b.ApprovedStart.Format(time.RFC3339), e.EquipmentCode)
		}
		taken = append(taken, gaps[i])
	}
	return nil
}

// receive records returns, raises deficiencies and releases stock.
func (s *Service) receive(ctx context.Context, tx db.DBTX, actor auth.Actor, rows []*Borrow, req ActionRequest, now time.Time) ([]string, error) {
	cond := ConditionGood
	if req.Condition != nil {
		cond = ReturnCondition(*req.Condition)
	}
	st := s.store.WithTx(tx)
	es := equipment.NewStore(tx)
	ds := deficiencies.NewStore(tx)
	order, byEq := byEquipment(rows)

	var raised []string
	for _, eid := range order {
		e, err := es.GetForUpdate(ctx, eid)
		if err != nil {
			return nil, err
		}
		lost := 0
		for _, b := range byEq[eid] {
			late := IsLate(b, now)
			t, c := now, cond
			b.Status = StatusReturned
			b.ActualReturnTime = &t
			b.ReceivedByID = &actor.UserID
			b.ReturnCondition = &c
			b.ReturnRemarks = trimPtr(req.Remarks)
			b.UpdatedAt = now
			if err := st.SaveTransition(ctx, b); err != nil {
				return nil, err
			}

			for _, typ := range DeficiencyTypes(cond, late) {
				d := &deficiencies.Deficiency{
					ID:          s.ids.New(),
					BorrowID:    b.ID,
					UserID:      b.BorrowerID,
					TaggedByID:  &actor.UserID,
					Type:        typ,
					Status:      deficiencies.StatusUnresolved,
					Description: describeDeficiency(typ, b, now, req.Remarks),
					CreatedAt:   now,
				}
				if err := ds.Insert(ctx, d); err != nil {
					return nil, err
				}
				raised = append(raised, d.ID)
				s.log.Info("deficiency raised on return",
					zap.String("deficiency_id", d.ID),
					zap.String("borrow_id", b.ID),
					zap.String("type", string(typ)))
			}
			if cond == ConditionLost {
				lost++
			}
		}

		if lost > 0 {
			held, err := capacity.Committed(ctx, tx, eid, now)
			if err != nil {
				return nil, err
			}
			if e.StockCount-lost < held {
				return nil, apierr.Conflictf("%d unit(s) of %s are booked ahead; reschedule or reject them before recording the loss",
					held, e.EquipmentCode)
			}
			if e.StockCount > lost {
				n := e.StockCount - lost
				err = es.Update(ctx, eid, equipment.UpdateEquipmentRequest{StockCount: &n}, now)
			} else {
				err = es.SetStatus(ctx, eid, equipment.StatusLost, now)
			}
			if err != nil {
				return nil, err
			}
			s.log.Warn("equipment reported lost",
				zap.String("equipment_id", eid),
				zap.Int("units", lost))
		}
		if err := equipment.SyncBorrowed(ctx, es, eid, now); err != nil {
			return nil, err
		}
	}
	return raised, nil
}

// MarkOverdue moves every ACTIVE borrow past its due time to OVERDUE.
func (s *Service) MarkOverdue(ctx context.Context, actor auth.Actor) (*OverdueResult, error) {
	now := s.clock.Now()
	res := &OverdueResult{BorrowIDs: []string{}}
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		due, err := st.LockOverdue(ctx, now)
		if err != nil {
			return err
		}
		if err := st.MarkOverdue(ctx, due, now); err != nil {
			return err
		}
		if due != nil {
			res.BorrowIDs = due
		}
		res.Marked = len(due)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Marked > 0 {
		s.log.Info("borrows marked overdue",
			zap.String("actor_id", actor.UserID),
			zap.Strings("borrow_ids", res.BorrowIDs))
	}
	return res, nil
}

// ===== helpers =====

// DeficiencyTypes lists what a return raises. A lost item is not also late.
func DeficiencyTypes(cond ReturnCondition, late bool) []deficiencies.Type {
	switch cond {
	case ConditionDamaged:
		if late {
			return []deficiencies.Type{deficiencies.TypeDamage, deficiencies.TypeLateReturn}
		}
		return []deficiencies.Type{deficiencies.TypeDamage}
	case ConditionLost:
		return []deficiencies.Type{deficiencies.TypeLoss}
	}
	if late {
		return []deficiencies.Type{deficiencies.TypeLateReturn}
	}
	return nil
}

func describeDeficiency(t deficiencies.Type, b *Borrow, at time.Time, remarks *string) *string {
	var msg string
	switch t {
	case deficiencies.TypeDamage:
		msg = fmt.Sprintf("%s returned damaged", b.EquipmentCode)
	case deficiencies.TypeLoss:
		msg = fmt.Sprintf("%s reported lost", b.EquipmentCode)
	case deficiencies.TypeLateReturn:
		msg = fmt.Sprintf("%s returned %s late", b.EquipmentCode, at.Sub(b.DueAt()).Round(time.Minute))
	}
	if r := trimPtr(remarks); r != nil && t != deficiencies.TypeLateReturn {
		msg += ": " + *r
	}
	return &msg
}

// byEquipment groups rows by equipment id. Ids come back sorted so locks are
// always taken in the same order.
func byEquipment(rows []*Borrow) ([]string, map[string][]*Borrow) {
	m := map[string][]*Borrow{}
	var order []string
	for _, b := range rows {
		if _, ok := m[b.EquipmentID]; !ok {
			order = append(order, b.EquipmentID)
		}
		m[b.EquipmentID] = append(m[b.EquipmentID], b)
	}
	slices.Sort(order)
	return order, m
}

// span is the smallest window covering ws.
func span(ws []capacity.Window) capacity.Window {
	out := ws[0]
	for _, w := range ws[1:] {
		if w.Start.Before(out.Start) {
			out.Start = w.Start
		}
		if w.End.After(out.End) {
			out.End = w.End
		}
	}
	return out
}

// mergeItems folds duplicate equipment ids into one line, keeping first-seen order.
func mergeItems(in []BulkItem) []BulkItem {
	idx := map[string]int{}
	var out []BulkItem
	for _, it := range in {
		id := strings.TrimSpace(it.EquipmentID)
		if id == "" {
			continue
		}
		q := it.Quantity
		if q < 1 {
			q = 1
		}
		if i, ok := idx[id]; ok {
			out[i].Quantity += q
			continue
		}
		idx[id] = len(out)
		out = append(out, BulkItem{EquipmentID: id, Quantity: q})
	}
	return out
}

func dedupeExcept(in []string, skip string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || v == skip || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
