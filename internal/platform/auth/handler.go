package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/validation"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

// RegisterRoutes mounts login/register on public and the rest on authed,
// which must already carry RequireAuth.
func RegisterRoutes(public, authed gin.IRoutes, svc *Service, log *zap.Logger) {
	validation.RegisterEnum("role", Roles...)
	validation.RegisterEnum("user_status", UserStatuses...)

	h := &Handler{svc: svc, log: log}
	public.POST("/auth/login", h.Login)
	public.POST("/auth/register", h.Register)

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)
	authed.PUT("/auth/password", h.ChangePassword)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	opts := h.svc.Cookie()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(opts.CookieName, res.Token, int(h.svc.TokenTTL().Seconds()), "/", "", opts.CookieSecure, true)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Logout(c *gin.Context) {
	actor := ActorFrom(c)
	if err := h.svc.Logout(c.Request.Context(), actor.SessionID); err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	opts := h.svc.Cookie()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(opts.CookieName, "", -1, "/", "", opts.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	res, err := h.svc.Me(c.Request.Context(), ActorFrom(c).UserID)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), ActorFrom(c), req); err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
