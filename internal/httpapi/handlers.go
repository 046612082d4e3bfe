package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/engine"
	"schoolattend/internal/export"
	"schoolattend/internal/queue"
)

// dateParam reads ?date=, defaulting to today.
func (h *handler) dateParam(c *gin.Context) (civil.Date, bool) {
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		return h.svc.Today(), true
	}
	d, err := civil.ParseDate(raw)
	if err != nil || !d.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return civil.Date{}, false
	}
	return d, true
}

func sectionParam(c *gin.Context) engine.Section {
	return engine.Section{Program: c.Param("program"), Year: c.Param("year"), Section: c.Param("section")}
}

// canSeePerson allows staff and the person themselves.
func canSeePerson(c *gin.Context, personID string) bool {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return false
	}
	switch claims.Role {
	case auth.RoleAdmin, auth.RoleTeacher:
		return true
	}
	return claims.Subject == personID
}

func (h *handler) audience(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.Audience(c.Request.Context(), date))
}

func (h *handler) liveStatus(c *gin.Context) {
	personID := c.Param("id")
	if !canSeePerson(c, personID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.LiveStatus(c.Request.Context(), personID, date))
}

func (h *handler) history(c *gin.Context) {
	personID := c.Param("id")
	if !canSeePerson(c, personID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	days := 0
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > h.maxDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("days must be between 1 and %d", h.maxDays)})
			return
		}
		days = parsed
	}
	c.JSON(http.StatusOK, h.svc.History(c.Request.Context(), personID, days))
}

func (h *handler) board(c *gin.Context) {
	sec := sectionParam(c)
	claims, _ := auth.ClaimsFrom(c)
	switch {
	case claims.Role == auth.RoleAdmin, claims.Role == auth.RoleTeacher:
	case claims.Role == auth.RoleCaptain && claims.InSection(sec.Program, sec.Year, sec.Section):
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.SectionBoard(c.Request.Context(), sec, date))
}

func (h *handler) assignCaptain(c *gin.Context) {
	var req struct {
		PersonID string `json:"person_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sec := sectionParam(c)
	err := h.svc.AssignCaptain(c.Request.Context(), sec, req.PersonID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"section": sec, "captain": strings.TrimSpace(req.PersonID)})
	case errors.Is(err, attendance.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotMember):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error("assign captain failed", zap.Stringer("section", sec), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign captain failed"})
	}
}

type reportQuery struct {
	Month   string `form:"month" json:"month"`
	Program string `form:"program" json:"program"`
	Year    string `form:"year" json:"year"`
	Section string `form:"section" json:"section"`
	Role    string `form:"role" json:"role" binding:"omitempty,oneof=student teacher"`
}

func (h *handler) toRequest(q reportQuery) (engine.ReportRequest, error) {
	month := engine.MonthOf(h.svc.Today())
	if q.Month != "" {
		parsed, err := engine.ParseMonth(q.Month)
		if err != nil {
			return engine.ReportRequest{}, err
		}
		month = parsed
	}
	return engine.ReportRequest{
		Month: month,
		Filter: engine.RosterFilter{
			Program: q.Program,
			Year:    q.Year,
			Section: q.Section,
			Role:    engine.Role(q.Role),
		},
	}, nil
}

func (h *handler) reportRequest(c *gin.Context) (engine.ReportRequest, bool) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return engine.ReportRequest{}, false
	}
	req, err := h.toRequest(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return engine.ReportRequest{}, false
	}
	return req, true
}

func (h *handler) loadReport(c *gin.Context) (attendance.ReportResult, bool) {
	req, ok := h.reportRequest(c)
	if !ok {
		return attendance.ReportResult{}, false
	}
	cached, _ := strconv.ParseBool(c.DefaultQuery("cached", "false"))
	res, err := h.svc.Report(c.Request.Context(), req, cached)
	if err != nil {
		h.log.Error("report failed", zap.String("key", attendance.ReportKey(req)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return attendance.ReportResult{}, false
	}
	return res, true
}

func (h *handler) monthlyReport(c *gin.Context) {
	res, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) monthlyReportXLSX(c *gin.Context) {
	res, ok := h.loadReport(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteMonthlyReport(&buf, res.Report); err != nil {
		h.log.Error("render xlsx failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s.xlsx"`, res.Report.Month))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *handler) regenerateReport(c *gin.Context) {
	var q reportQuery
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	req, err := h.toRequest(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := queue.NewJob(queue.JobGenerateReport, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode job failed"})
		return
	}
	if err := h.q.Publish(c.Request.Context(), job); err != nil {
		h.log.Error("queue publish failed", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "key": attendance.ReportKey(req)})
}
