package reports

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
	"equipborrow-backend/internal/platform/validation"
)

// DefaultRange is used when from is omitted.
const DefaultRange = 30 * 24 * time.Hour

type Handler struct {
	svc *Service
	log *zap.Logger
}

func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.Logger) {
	validation.RegisterEnum("report_type", Types...)
	validation.RegisterEnum("report_format", Formats...)
	validation.RegisterEnum("report_encoding", Encodings...)

	h := &Handler{svc: svc, log: log}
	r.GET("/reports/dashboard", auth.StaffOnly(), h.Dashboard)
	r.GET("/reports/:type", auth.StaffOnly(), h.Generate)
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) Generate(c *gin.Context) {
	req := GenerateRequest{
		Type:     Type(c.Param("type")),
		Format:   Format(c.DefaultQuery("format", string(FormatJSON))),
		Encoding: c.DefaultQuery("encoding", EncodingUTF8),
	}
	if !validation.OneOf("report_type", string(req.Type)) {
		apierr.Write(c, h.log, apierr.ErrNotFound("unknown report"))
		return
	}
	if !validation.OneOf("report_format", string(req.Format)) {
		apierr.BadRequest(c, "format must be one of json csv pdf")
		return
	}
	if !validation.OneOf("report_encoding", req.Encoding) {
		apierr.BadRequest(c, "encoding must be one of utf-8 utf-8-bom shift_jis")
		return
	}

	var err error
	req.To = h.svc.clock.Now()
	if v := c.Query("to"); v != "" {
		if req.To, err = parseBound(v, true); err != nil {
			apierr.BadRequest(c, "to: "+err.Error())
			return
		}
	}
	req.From = req.To.Add(-DefaultRange)
	if v := c.Query("from"); v != "" {
		if req.From, err = parseBound(v, false); err != nil {
			apierr.BadRequest(c, "from: "+err.Error())
			return
		}
	}

	rep, err := h.svc.Generate(c.Request.Context(), req)
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}

	var (
		buf   bytes.Buffer
		ctype string
	)
	switch req.Format {
	case FormatJSON:
		c.JSON(http.StatusOK, rep)
		return
	case FormatCSV:
		err = WriteCSV(&buf, rep.Table, req.Encoding)
		ctype = "text/csv; charset=utf-8"
		if req.Encoding == EncodingSJIS {
			ctype = "text/csv; charset=Shift_JIS"
		}
	case FormatPDF:
		err = WritePDF(&buf, rep.Table, subtitle(rep), rep.GeneratedAt)
		ctype = "application/pdf"
	}
	if err != nil {
		apierr.Write(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename(rep, req.Format)))
	c.Data(http.StatusOK, ctype, buf.Bytes())
}

// parseBound accepts RFC3339 or a bare date. A bare date used as the upper
// bound includes that whole day.
func parseBound(v string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, errors.New("expected RFC3339 or YYYY-MM-DD")
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func subtitle(r *Report) string {
	return fmt.Sprintf("%s to %s (UTC), generated %s",
		stamp(r.From), stamp(r.To), stamp(r.GeneratedAt))
}

func filename(r *Report, f Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", r.Type, r.From.Format("20060102"), r.To.Format("20060102"), f)
}
