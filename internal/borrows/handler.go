package borrows

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

// RegisterRoutes mounts the borrow workflow; r must carry RequireAuth.
// Role checks for transitions happen per row in the service.
func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	validation.RegisterEnum("borrow_status", Statuses...)
	validation.RegisterEnum("reservation_type", ReservationTypes...)
	validation.RegisterEnum("return_condition", ReturnConditions...)

	h := &Handler{svc: svc, log: log}
	r.GET("/borrows", h.List)
	r.GET("/borrows/groups/:groupId", h.GetGroup)
	r.GET("/borrows/:id", h.Get)
	r.POST("/borrows", h.Create)
	r.POST("/borrows/bulk", h.CreateBulk)
	r.POST("/borrows/bulk/:action", h.ApplyBulk)
	r.POST("/borrows/mark-overdue", auth.StaffOnly(), h.MarkOverdue)
	r.POST("/borrows/:id/:action", h.Apply)
}

func optTime(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		apierr.BadRequest(c, key+" must be RFC3339")
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

func (h *Handler) List(c *gin.Context) {
	var q BorrowQuery
	if v := c.Query("status"); v != "" {
		if !validation.OneOf("borrow_status", v) {
			apierr.BadRequest(c, "unknown status")
			return
		}
		q.Status = &v
	}
	for key, dst := range map[string]**string{
		"equipment_id": &q.EquipmentID,
		"borrower_id":  &q.BorrowerID,
		"class_id":     &q.ClassID,
		"group_id":     &q.GroupID,
	} {
		if v := c.Query(key); v != "" {
			*dst = &v
		}
	}
	var ok bool
	if q.From, ok = optTime(c, "from"); !ok {
		return
	}
	if q.To, ok = optTime(c, "to"); !ok {
		return
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

func (h *Handler) GetGroup(c *gin.Context) {
	res, err := h.svc.GetGroup(c.Request.Context(), auth.ActorFrom(c), c.Param("groupId"))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), auth.ActorFrom(c), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.Header("Location", "/api/borrows/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CreateBulk(c *gin.Context) {
	var req CreateBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.CreateBulk(c.Request.Context(), auth.ActorFrom(c), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Apply(c *gin.Context) {
	a, ok := ParseAction(c.Param("action"))
	if !ok {
		apierr.Write(c, h.log, apierr.ErrNotFound("unknown action"))
		return
	}
	var req ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, validation.Message(err))
			return
		}
	}
	res, err := h.svc.Apply(c.Request.Context(), auth.ActorFrom(c), a, c.Param("id"), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ApplyBulk(c *gin.Context) {
	a, ok := ParseAction(c.Param("action"))
	if !ok {
		apierr.Write(c, h.log, apierr.ErrNotFound("unknown action"))
		return
	}
	var req BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.ApplyBulk(c.Request.Context(), auth.ActorFrom(c), a, req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkOverdue(c *gin.Context) {
	res, err := h.svc.MarkOverdue(c.Request.Context(), auth.ActorFrom(c))
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
