package classes

import (
	"net/http"
	"strconv"

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
	h := &Handler{svc: svc, log: log}
	managers := auth.RequireRole(auth.RoleFaculty, auth.RoleStaff, auth.RoleAdmin)

	r.GET("/classes", h.List)
	r.GET("/classes/:id", h.Get)
	r.POST("/classes", managers, h.Create)
	r.PATCH("/classes/:id", managers, h.Update)
	r.DELETE("/classes/:id", auth.StaffOnly(), h.Delete)

	r.GET("/classes/:id/enrollments", h.ListEnrollments)
	r.POST("/classes/:id/enrollments", managers, h.Enroll)
	r.DELETE("/classes/:id/enrollments/:userId", managers, h.Unenroll)
}

func (h *Handler) List(c *gin.Context) {
	var q ClassQuery
	if v := c.Query("q"); v != "" {
		q.Q = &v
	}
	if v := c.Query("semester"); v != "" {
		q.Semester = &v
	}
	if v := c.Query("academic_year"); v != "" {
		q.AcademicYear = &v
	}
	if v := c.Query("fic_id"); v != "" {
		q.FICID = &v
	}
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apierr.BadRequest(c, "active must be true or false")
			return
		}
		q.Active = &b
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
	var req CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), auth.ActorFrom(c), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Header("Location", "/api/classes/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateClassRequest
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

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListEnrollments(c *gin.Context) {
	items, err := h.svc.ListEnrollments(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *Handler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Enroll(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Unenroll(c *gin.Context) {
	if err := h.svc.Unenroll(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), c.Param("userId")); err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
