package classes

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/paging"
	"equipborrow-backend/internal/users"
)

type Service struct {
	db    *sql.DB
	store *Store
	users *users.Store
	clock ids.Clock
	ids   ids.IDGen
	log   *zap.Logger
}

func NewService(conn *sql.DB, clock ids.Clock, idgen ids.IDGen, log *zap.Logger) *Service {
	return &Service{db: conn, store: NewStore(conn), users: users.NewStore(conn), clock: clock, ids: idgen, log: log}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.ErrNotFound("class not found")
	}
	return err
}

// canManage: staff manage every class, faculty only those they are in charge of.
func canManage(actor auth.Actor, c *Class) bool {
	if actor.IsStaff() {
		return true
	}
	return actor.IsFaculty() && c.FICID != nil && *c.FICID == actor.UserID
}

// List shows students only the classes they are enrolled in.
func (s *Service) List(ctx context.Context, actor auth.Actor, q ClassQuery, p paging.Page) ([]ClassResponse, int64, error) {
	if actor.Role == auth.RoleStudent {
		uid := actor.UserID
		q.EnrolledUser = &uid
	}
	return s.store.List(ctx, q, p)
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*ClassResponse, error) {
	res, err := s.store.GetDetail(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if actor.Role == auth.RoleStudent {
		ok, err := s.store.IsEnrolled(ctx, id, actor.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apierr.ErrForbidden("not enrolled in this class")
		}
	}
	return res, nil
}

func (s *Service) checkFIC(ctx context.Context, q db.DBTX, ficID string) error {
	ok, err := users.NewStore(q).ActiveWithRole(ctx, []string{ficID}, auth.RoleFaculty)
	if err != nil {
		return err
	}
	if !ok[ficID] {
		return apierr.ErrInvalid("fic_id must reference an ACTIVE FACULTY user")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateClassRequest) (*ClassResponse, error) {
	fic := trimPtr(req.FICID)
	if actor.IsFaculty() {
		if fic != nil && *fic != actor.UserID {
			return nil, apierr.ErrForbidden("faculty can only create classes they are in charge of")
		}
		self := actor.UserID
		fic = &self
	} else if !actor.IsStaff() {
		return nil, apierr.ErrForbidden("forbidden")
	}
	if fic != nil {
		if err := s.checkFIC(ctx, s.db, *fic); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	c := &Class{
		ID:           s.ids.New(),
		CourseCode:   strings.TrimSpace(req.CourseCode),
		Name:         strings.TrimSpace(req.Name),
		Section:      strings.TrimSpace(req.Section),
		Semester:     strings.TrimSpace(req.Semester),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Schedule:     req.Schedule,
		Venue:        req.Venue,
		FICID:        fic,
		IsActive:     req.IsActive == nil || *req.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, apierr.FromMySQL(err, "class section already exists for that term", "fic_id does not exist")
	}
	s.log.Info("class created", zap.String("class_id", c.ID), zap.String("course_code", c.CourseCode))
	return s.store.GetDetail(ctx, c.ID)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, req UpdateClassRequest) (*ClassResponse, error) {
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		cur, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if !canManage(actor, cur) {
			return apierr.ErrForbidden("only staff or the faculty in charge can edit this class")
		}
		if req.FICID != nil {
			fic := trimPtr(req.FICID)
			if actor.IsFaculty() && (fic == nil || *fic != actor.UserID) {
				return apierr.ErrForbidden("faculty cannot hand a class to someone else")
			}
			if fic != nil {
				if err := s.checkFIC(ctx, tx, *fic); err != nil {
					return err
				}
			}
			empty := ""
			if fic == nil {
				fic = &empty
			}
			req.FICID = fic
		}
		if err := st.Update(ctx, id, req, s.clock.Now()); err != nil {
			return apierr.FromMySQL(err, "class section already exists for that term", "fic_id does not exist")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetDetail(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		if _, err := st.GetForUpdate(ctx, id); err != nil {
			return notFound(err)
		}
		n, err := st.CountBorrows(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierr.Conflictf("class is referenced by %d borrow(s); deactivate it instead", n)
		}
		if err := st.Delete(ctx, id); err != nil {
			return err
		}
		s.log.Info("class deleted", zap.String("class_id", id))
		return nil
	})
}

// ===== enrollments =====

func (s *Service) ListEnrollments(ctx context.Context, actor auth.Actor, id string) ([]EnrollmentResponse, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !actor.IsStaff() && !actor.IsFaculty() {
		ok, err := s.store.IsEnrolled(ctx, c.ID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apierr.ErrForbidden("not enrolled in this class")
		}
	}
	return s.store.ListEnrollments(ctx, id)
}

// Enroll adds ACTIVE students. Users already enrolled or not eligible are
// reported as skipped, so repeating a call is harmless.
func (s *Service) Enroll(ctx context.Context, actor auth.Actor, id string, req EnrollRequest) (*EnrollResult, error) {
	userIDs := dedupe(req.UserIDs)
	res := &EnrollResult{Added: []string{}, Skipped: []SkippedUser{}}

	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		c, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if !canManage(actor, c) {
			return apierr.ErrForbidden("only staff or the faculty in charge can enroll students")
		}
		students, err := users.NewStore(tx).ActiveWithRole(ctx, userIDs, auth.RoleStudent)
		if err != nil {
			return err
		}
		enrolled, err := st.EnrolledSet(ctx, id, userIDs)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, uid := range userIDs {
			switch {
			case enrolled[uid]:
				res.Skipped = append(res.Skipped, SkippedUser{UserID: uid, Reason: "already enrolled"})
			case !students[uid]:
				res.Skipped = append(res.Skipped, SkippedUser{UserID: uid, Reason: "not an active student"})
			default:
				if err := st.InsertEnrollment(ctx, id, uid, now); err != nil {
					if apierr.IsDuplicateKey(err) {
						res.Skipped = append(res.Skipped, SkippedUser{UserID: uid, Reason: "already enrolled"})
						continue
					}
					return err
				}
				res.Added = append(res.Added, uid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) Unenroll(ctx context.Context, actor auth.Actor, id, userID string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if !canManage(actor, c) {
		return apierr.ErrForbidden("only staff or the faculty in charge can unenroll students")
	}
	n, err := s.store.DeleteEnrollment(ctx, id, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apierr.ErrNotFound("user is not enrolled in this class")
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
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
