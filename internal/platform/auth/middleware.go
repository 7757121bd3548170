package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
)

const (
	CtxUserIDKey  = "user_id"
	CtxRoleKey    = "role"
	CtxSessionKey = "sid"
)

type Guard struct {
	tokens   *Tokens
	sessions SessionStore
	cookie   string
	log      *zap.Logger
}

func NewGuard(tokens *Tokens, sessions SessionStore, cookieName string, log *zap.Logger) *Guard {
	return &Guard{tokens: tokens, sessions: sessions, cookie: cookieName, log: log}
}

// RequireAuth accepts "Authorization: Bearer <jwt>" or the session cookie,
// verifies the token and checks that its session is still live.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := g.tokenFrom(c)
		if err != nil {
			apierr.Write(c, g.log, err)
			return
		}

		claims, err := g.tokens.Parse(raw)
		if err != nil {
			apierr.Write(c, g.log, apierr.ErrUnauthorized("invalid token"))
			return
		}

		sess, err := g.sessions.Get(c.Request.Context(), claims.SID)
		if errors.Is(err, ErrSessionNotFound) {
			apierr.Write(c, g.log, apierr.ErrUnauthorized("session expired"))
			return
		}
		if err != nil {
			apierr.Write(c, g.log, err)
			return
		}
		if sess.UserID != claims.Subject {
			apierr.Write(c, g.log, apierr.ErrUnauthorized("session does not match token"))
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxRoleKey, string(claims.Role))
		c.Set(CtxSessionKey, claims.SID)
		c.Next()
	}
}

func (g *Guard) tokenFrom(c *gin.Context) (string, error) {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", apierr.ErrUnauthorized("invalid Authorization header")
		}
		tok := strings.TrimSpace(parts[1])
		if tok == "" {
			return "", apierr.ErrUnauthorized("empty token")
		}
		return tok, nil
	}
	if ck, err := c.Cookie(g.cookie); err == nil && ck != "" {
		return ck, nil
	}
	return "", apierr.ErrUnauthorized("authentication required")
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...Role) gin.HandlerFunc {
	roleSet := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := Role(c.GetString(CtxRoleKey))
		if role == "" {
			apierr.Write(c, nil, apierr.ErrForbidden("missing role"))
			return
		}
		if _, ok := roleSet[role]; !ok {
			apierr.Write(c, nil, apierr.ErrForbidden("forbidden"))
			return
		}
		c.Next()
	}
}

// StaffOnly is the common STAFF/ADMIN gate.
func StaffOnly() gin.HandlerFunc { return RequireRole(RoleStaff, RoleAdmin) }

func AdminOnly() gin.HandlerFunc { return RequireRole(RoleAdmin) }
