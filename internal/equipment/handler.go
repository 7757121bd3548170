package equipment

import (
	"net/http"
	"time"

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

// RegisterRoutes mounts the catalog; r must carry RequireAuth.
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	validation.RegisterEnum("equipment_status", Statuses...)
	validation.RegisterEnum("equipment_category", Categories...)
	validation.RegisterEnum("maintenance_type", MaintenanceTypes...)

	h := &Handler{svc: svc, log: log}
	staff := auth.StaffOnly()

	r.GET("/equipment", h.List)
	r.GET("/equipment/:id", h.Get)
	r.GET("/equipment/:id/availability", h.Availability)
	r.POST("/equipment", staff, h.Create)
	r.PATCH("/equipment/:id", staff, h.Update)
	r.DELETE("/equipment/:id", auth.AdminOnly(), h.Delete)

	r.GET("/equipment/:id/maintenance", h.ListMaintenance)
	r.POST("/equipment/:id/maintenance", staff, h.AddMaintenance)
	r.POST("/equipment/:id/maintenance/:logId/complete", staff, h.CompleteMaintenance)
}

func (h *Handler) List(c *gin.Context) {
	var q EquipmentQuery
	if v := c.Query("q"); v != "" {
		q.Q = &v
	}
	if v := c.Query("category"); v != "" {
		if !validation.OneOf("equipment_category", v) {
			apierr.BadRequest(c, "unknown category")
			return
		}
		q.Category = &v
	}
	if v := c.Query("status"); v != "" {
		if !validation.OneOf("equipment_status", v) {
			apierr.BadRequest(c, "unknown status")
			return
		}
		q.Status = &v
	}
	if v := c.Query("location"); v != "" {
		q.Location = &v
	}
	p := paging.FromQuery(c)
	items, total, err := h.svc.List(c.Request.Context(), q, p)
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
	var req CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Header("Location", "/api/equipment/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
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

// Availability takes RFC3339 from/to; the default window is the next 24 hours.
func (h *Handler) Availability(c *gin.Context) {
	from := time.Now().UTC()
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierr.BadRequest(c, "from must be RFC3339")
			return
		}
		from = t.UTC()
	}
	to := from.Add(24 * time.Hour)
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierr.BadRequest(c, "to must be RFC3339")
			return
		}
		to = t.UTC()
	}
	res, err := h.svc.Availability(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListMaintenance(c *gin.Context) {
	items, err := h.svc.ListMaintenance(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) AddMaintenance(c *gin.Context) {
	var req CreateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.AddMaintenance(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CompleteMaintenance(c *gin.Context) {
	var req CompleteMaintenanceRequest
	// An empty body means "completed now".
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, validation.Message(err))
			return
		}
	}
	res, err := h.svc.CompleteMaintenance(c.Request.Context(), c.Param("id"), c.Param("logId"), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
