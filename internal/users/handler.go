package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/paging"
	"equipborrow-backend/internal/platform/validation"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

// RegisterRoutes mounts the admin user endpoints; r must carry RequireAuth.
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	validation.RegisterEnum("role", auth.Roles...)
	validation.RegisterEnum("user_status", auth.UserStatuses...)

	h := &Handler{svc: svc, log: log}
	admin := auth.AdminOnly()
	r.GET("/users", admin, h.List)
	r.GET("/users/pending", admin, h.ListPending)
	r.POST("/users", admin, h.Create)
	r.GET("/users/:id", admin, h.Get)
	r.PATCH("/users/:id", admin, h.Update)
	r.DELETE("/users/:id", admin, h.Delete)
	r.POST("/users/:id/approve", admin, h.Approve)
}

func (h *Handler) List(c *gin.Context) {
	var q UserQuery
	if v := c.Query("q"); v != "" {
		q.Q = &v
	}
	if v := c.Query("role"); v != "" {
		if !validation.OneOf("role", v) {
			apierr.BadRequest(c, "unknown role")
			return
		}
		r := auth.Role(v)
		q.Role = &r
	}
	if v := c.Query("status"); v != "" {
		if !validation.OneOf("user_status", v) {
			apierr.BadRequest(c, "unknown status")
			return
		}
		st := auth.UserStatus(v)
		q.Status = &st
	}
	p := paging.FromQuery(c)
	items, total, err := h.svc.List(c.Request.Context(), q, p)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paging.NewList(items, total, p))
}

func (h *Handler) ListPending(c *gin.Context) {
	p := paging.FromQuery(c)
	items, total, err := h.svc.ListPending(c.Request.Context(), p)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paging.NewList(items, total, p))
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Header("Location", "/api/users/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Approve(c *gin.Context) {
	res, err := h.svc.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.ActorFrom(c), c.Param("id")); err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
