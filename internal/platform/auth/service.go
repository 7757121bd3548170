package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/ids"
)

type Options struct {
	CookieName   string
	CookieSecure bool
}

type Service struct {
	store    AccountStore
	sessions SessionStore
	tokens   *Tokens
	clock    ids.Clock
	ids      ids.IDGen
	opts     Options
	log      *zap.Logger
}

func NewService(store AccountStore, sessions SessionStore, tokens *Tokens, clock ids.Clock, idgen ids.IDGen, opts Options, log *zap.Logger) *Service {
	return &Service{store: store, sessions: sessions, tokens: tokens, clock: clock, ids: idgen, opts: opts, log: log}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	acct, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if acct == nil || !CheckPassword(acct.PasswordHash, req.Password) {
		return nil, apierr.ErrUnauthorized("invalid email or password")
	}
	switch acct.Status {
	case StatusPendingApproval:
		return nil, apierr.ErrForbidden("account pending approval")
	case StatusInactive:
		return nil, apierr.ErrForbidden("account is inactive")
	}

	sid := s.ids.New()
	token, exp, err := s.tokens.Issue(acct.ID, acct.Role, sid)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sid, acct.ID, s.tokens.TTL()); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.store.TouchLogin(ctx, acct.ID, now); err != nil {
		s.log.Warn("record last login", zap.String("user_id", acct.ID), zap.Error(err))
	} else {
		acct.LastLoginAt = &now
	}
	s.log.Info("login", zap.String("user_id", acct.ID), zap.String("role", string(acct.Role)))
	return &LoginResult{Token: token, ExpiresAt: exp, User: acct.Profile()}, nil
}

// Register creates a self-service account that waits for admin approval.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	role := RoleStudent
	if req.Role != "" {
		role = Role(req.Role)
	}
	if role != RoleStudent && role != RoleFaculty {
		return nil, apierr.ErrInvalid("role must be STUDENT or FACULTY")
	}
	if role == RoleStudent && (req.StudentNumber == nil || strings.TrimSpace(*req.StudentNumber) == "") {
		return nil, apierr.ErrInvalid("student_number is required for students")
	}
	if role == RoleFaculty {
		req.StudentNumber = nil
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apierr.Invalidf("password must be at least %d characters", MinPasswordLength)
	}
	now := s.clock.Now()
	acct := &Account{
		ID:            s.ids.New(),
		Email:         NormalizeEmail(req.Email),
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		StudentNumber: trimPtr(req.StudentNumber),
		Role:          role,
		Status:        StatusPendingApproval,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, acct); err != nil {
		return nil, apierr.FromMySQL(err, "email or student number already registered", "invalid reference")
	}
	s.log.Info("registration pending approval", zap.String("user_id", acct.ID), zap.String("role", string(role)))
	p := acct.Profile()
	return &p, nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sid)
}

func (s *Service) Me(ctx context.Context, userID string) (*Profile, error) {
	acct, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, apierr.ErrNotFound("user not found")
	}
	p := acct.Profile()
	return &p, nil
}

// ChangePassword keeps the caller's session and revokes every other one.
func (s *Service) ChangePassword(ctx context.Context, actor Actor, req ChangePasswordRequest) error {
	acct, err := s.store.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if acct == nil {
		return apierr.ErrNotFound("user not found")
	}
	if !CheckPassword(acct.PasswordHash, req.CurrentPassword) {
		return apierr.ErrUnauthorized("current password is incorrect")
	}
	if req.CurrentPassword == req.NewPassword {
		return apierr.ErrInvalid("new password must differ from the current one")
	}
	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return apierr.Invalidf("password must be at least %d characters", MinPasswordLength)
	}
	if err := s.store.UpdatePassword(ctx, acct.ID, hash, s.clock.Now()); err != nil {
		return err
	}
	if err := s.sessions.RevokeOthers(ctx, acct.ID, actor.SessionID); err != nil {
		s.log.Error("revoke sessions after password change", zap.String("user_id", acct.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) Cookie() Options { return s.opts }

func (s *Service) TokenTTL() time.Duration { return s.tokens.TTL() }

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
