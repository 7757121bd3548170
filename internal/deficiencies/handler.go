package deficiencies

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

func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	validation.RegisterEnum("deficiency_type", Types...)
	validation.RegisterEnum("deficiency_status", Statuses...)

	h := &Handler{svc: svc, log: log}
	r.GET("/deficiencies", h.List)
	r.GET("/deficiencies/:id", h.Get)
	r.POST("/deficiencies", auth.StaffOnly(), h.Create)
	r.POST("/deficiencies/:id/resolve", auth.StaffOnly(), h.Resolve)
}

func (h *Handler) List(c *gin.Context) {
	var q Query
	if v := c.Query("status"); v != "" {
		if !validation.OneOf("deficiency_status", v) {
			apierr.BadRequest(c, "unknown status")
			return
		}
		q.Status = &v
	}
	if v := c.Query("type"); v != "" {
		if !validation.OneOf("deficiency_type", v) {
			apierr.BadRequest(c, "unknown type")
			return
		}
		q.Type = &v
	}
	if v := c.Query("user_id"); v != "" {
		q.UserID = &v
	}
	if v := c.Query("borrow_id"); v != "" {
		q.BorrowID = &v
	}
	p := paging.FromQuery(c)
	items, total, err := h.svc.List(c.Request.Context(), auth.ActorFrom(c), q, p)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paging.NewList(items, total, p))
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), auth.ActorFrom(c), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Resolve(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
