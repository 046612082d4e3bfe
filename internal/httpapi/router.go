// Package httpapi exposes the attendance engine over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/engine"
	"schoolattend/internal/httpmiddleware"
	"schoolattend/internal/queue"
)

// Attendance is the query and write surface the handlers use.
type Attendance interface {
	Today() civil.Date
	Audience(ctx context.Context, date civil.Date) engine.Audience
	LiveStatus(ctx context.Context, personID string, date civil.Date) engine.LiveResult
	History(ctx context.Context, personID string, days int) engine.History
	SectionBoard(ctx context.Context, sec engine.Section, date civil.Date) engine.Board
	AssignCaptain(ctx context.Context, sec engine.Section, personID string) error
	Report(ctx context.Context, req engine.ReportRequest, preferStored bool) (attendance.ReportResult, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps wires the router.
type Deps struct {
	Service         Attendance
	Queue           queue.Queue
	Logger          *zap.Logger
	SigningKey      string
	Issuer          string
	RateLimitPerMin int
	MaxHistoryDays  int
	Health          map[string]HealthCheck
}

type handler struct {
	svc     Attendance
	q       queue.Queue
	log     *zap.Logger
	maxDays int
	health  map[string]HealthCheck
}

// NewRouter builds the gin engine with all routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxHistoryDays <= 0 {
		d.MaxHistoryDays = 366
	}
	h := &handler{svc: d.Service, q: d.Queue, log: d.Logger, maxDays: d.MaxHistoryDays, health: d.Health}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Logger, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleTeacher)
	admin := auth.RequireRole(auth.RoleAdmin)

	limiter := httpmiddleware.NewSimpleTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).KeyBy(subjectKey)
	v1 := r.Group("/v1", auth.Authenticate(d.SigningKey, d.Issuer), limiter.GinMiddleware())
	v1.GET("/audience", staff, h.audience)
	v1.GET("/people/:id/status", h.liveStatus)
	v1.GET("/people/:id/history", h.history)
	v1.GET("/sections/:program/:year/:section/board", h.board)
	v1.PUT("/sections/:program/:year/:section/captain", admin, h.assignCaptain)
	v1.GET("/reports/monthly", staff, h.monthlyReport)
	v1.GET("/reports/monthly.xlsx", staff, h.monthlyReportXLSX)
	v1.POST("/reports/monthly/regenerate", admin, h.regenerateReport)

	return r
}

// subjectKey keys the limiter by token subject, falling back to the client
// address.
func subjectKey(c *gin.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return "ip:" + c.ClientIP()
}

func (h *handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
