package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/db"
	"equipborrow-backend/internal/platform/ids"
	"equipborrow-backend/internal/platform/paging"
)

type Service struct {
	db       *sql.DB
	store    *Store
	sessions auth.SessionStore
	clock    ids.Clock
	ids      ids.IDGen
	log      *zap.Logger
}

func NewService(conn *sql.DB, sessions auth.SessionStore, clock ids.Clock, idgen ids.IDGen, log *zap.Logger) *Service {
	return &Service{db: conn, store: NewStore(conn), sessions: sessions, clock: clock, ids: idgen, log: log}
}

func (s *Service) List(ctx context.Context, q UserQuery, p paging.Page) ([]auth.Profile, int64, error) {
	rows, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]auth.Profile, len(rows))
	for i := range rows {
		out[i] = rows[i].Profile()
	}
	return out, total, nil
}

func (s *Service) ListPending(ctx context.Context, p paging.Page) ([]auth.Profile, int64, error) {
	st := auth.StatusPendingApproval
	return s.List(ctx, UserQuery{Status: &st}, p)
}

func (s *Service) Get(ctx context.Context, id string) (*auth.Profile, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.ErrNotFound("user not found")
		}
		return nil, err
	}
	p := a.Profile()
	return &p, nil
}

// Create adds an account that is ACTIVE immediately.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*auth.Profile, error) {
	role := auth.Role(req.Role)
	studentNo := trimPtr(req.StudentNumber)
	if role == auth.RoleStudent && studentNo == nil {
		return nil, apierr.ErrInvalid("student_number is required for students")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apierr.Invalidf("password must be at least %d characters", auth.MinPasswordLength)
	}
	now := s.clock.Now()
	a := &auth.Account{
		ID:            s.ids.New(),
		Email:         auth.NormalizeEmail(req.Email),
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		StudentNumber: studentNo,
		Role:          role,
		Status:        auth.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, a); err != nil {
		return nil, apierr.FromMySQL(err, "email or student number already registered", "invalid reference")
	}
	s.log.Info("user created", zap.String("user_id", a.ID), zap.String("role", string(role)))
	p := a.Profile()
	return &p, nil
}

// Update edits profile fields. A role or status change signs the user out
// everywhere so the new role takes effect on the next login.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, req UpdateUserRequest) (*auth.Profile, error) {
	if id == actor.UserID && (req.Role != nil || req.Status != nil) {
		return nil, apierr.ErrInvalid("cannot change your own role or status")
	}
	if req.StudentNumber != nil {
		req.StudentNumber = trimPtr(req.StudentNumber)
		if req.StudentNumber == nil {
			empty := ""
			req.StudentNumber = &empty
		}
	}

	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		cur, err := st.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apierr.ErrNotFound("user not found")
			}
			return err
		}
		if req.Status != nil && auth.UserStatus(*req.Status) == auth.StatusPendingApproval && cur.Status != auth.StatusPendingApproval {
			return apierr.ErrInvalid("cannot move an account back to PENDING_APPROVAL")
		}
		revoke := (req.Role != nil && auth.Role(*req.Role) != cur.Role) ||
			(req.Status != nil && auth.UserStatus(*req.Status) != cur.Status)
		if err := st.Update(ctx, id, req, s.clock.Now()); err != nil {
			return apierr.FromMySQL(err, "student number already registered", "invalid reference")
		}
		if revoke {
			return s.revokeAll(ctx, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Approve activates a self-registered account.
func (s *Service) Approve(ctx context.Context, id string) (*auth.Profile, error) {
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		cur, err := st.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apierr.ErrNotFound("user not found")
			}
			return err
		}
		if cur.Status != auth.StatusPendingApproval {
			return apierr.Conflictf("user is %s, not pending approval", cur.Status)
		}
		return st.SetStatus(ctx, id, auth.StatusActive, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user approved", zap.String("user_id", id))
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if id == actor.UserID {
		return apierr.ErrInvalid("cannot delete your own account")
	}
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		if _, err := st.GetForUpdate(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apierr.ErrNotFound("user not found")
			}
			return err
		}
		n, err := st.CountBorrows(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apierr.Conflictf("user has %d borrow record(s); deactivate instead", n)
		}
		if err := st.Delete(ctx, id); err != nil {
			return err
		}
		return s.revokeAll(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("user_id", id), zap.String("by", actor.UserID))
	return nil
}

// CreateAdmin bootstraps an ADMIN account from the command line.
func (s *Service) CreateAdmin(ctx context.Context, email, password, first, last string) (*auth.Profile, error) {
	return s.Create(ctx, CreateUserRequest{
		Email:     email,
		Password:  password,
		FirstName: first,
		LastName:  last,
		Role:      string(auth.RoleAdmin),
	})
}

// revokeAll runs inside the account transaction: a role or status change
// only commits once the old tokens are dead.
func (s *Service) revokeAll(ctx context.Context, id string) error {
	if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
		s.log.Error("revoke sessions", zap.String("user_id", id), zap.Error(err))
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
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
