package deficiencies

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
)

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
		return apierr.ErrNotFound("deficiency not found")
	}
	return err
}

// List returns every deficiency to staff; everyone else only sees their own.
func (s *Service) List(ctx context.Context, actor auth.Actor, q Query, p paging.Page) ([]Response, int64, error) {
	if !actor.IsStaff() {
		q.UserID = &actor.UserID
	}
	rows, total, err := s.store.List(ctx, q, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Response, len(rows))
	for i := range rows {
		out[i] = toResponse(&rows[i])
	}
	return out, total, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*Response, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !actor.IsStaff() && d.UserID != actor.UserID {
		return nil, apierr.ErrForbidden("not your deficiency")
	}
	res := toResponse(d)
	return &res, nil
}

// Create tags a borrow by hand. The deficiency is charged to the borrower.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*Response, error) {
	uid, err := s.store.BorrowerOf(ctx, req.BorrowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.ErrNotFound("borrow not found")
		}
		return nil, err
	}
	d := &Deficiency{
		ID:          s.ids.New(),
		BorrowID:    req.BorrowID,
		UserID:      uid,
		TaggedByID:  &actor.UserID,
		Type:        Type(req.Type),
		Status:      StatusUnresolved,
		Description: trimPtr(req.Description),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.Insert(ctx, d); err != nil {
		return nil, apierr.FromMySQL(err, "deficiency already exists", "invalid borrow or user")
	}
	s.log.Info("deficiency tagged",
		zap.String("deficiency_id", d.ID),
		zap.String("borrow_id", d.BorrowID),
		zap.String("type", string(d.Type)),
		zap.String("by", actor.UserID))
	return s.Get(ctx, actor, d.ID)
}

func (s *Service) Resolve(ctx context.Context, actor auth.Actor, id string, req ResolveRequest) (*Response, error) {
	resolution := strings.TrimSpace(req.Resolution)
	if resolution == "" {
		return nil, apierr.ErrInvalid("resolution is required")
	}
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := s.store.WithTx(tx)
		d, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if d.Status != StatusUnresolved {
			return apierr.Conflictf("deficiency is already %s", d.Status)
		}
		return st.Resolve(ctx, id, resolution, actor.UserID, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
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
