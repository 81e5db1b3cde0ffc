// Package handler exposes the HTTP API over gin.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusattend/internal/apperr"
	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/metrics"
	"campusattend/internal/qrimage"
	"campusattend/internal/queue"
	"campusattend/internal/token"
)

type Handler struct {
	cfg        config.App
	tokens     *token.Service
	att        *attendance.Service
	summarizer *attendance.Summarizer
	q          queue.Queue
	collector  *metrics.Collector

	// health probes, nil means "not configured" and is reported healthy
	dbHealthy    func(context.Context) bool
	redisHealthy func(context.Context) bool
}

func New(cfg config.App, tokens *token.Service, att *attendance.Service, summarizer *attendance.Summarizer, q queue.Queue, collector *metrics.Collector) *Handler {
	return &Handler{
		cfg:        cfg,
		tokens:     tokens,
		att:        att,
		summarizer: summarizer,
		q:          q,
		collector:  collector,
	}
}

// WithHealthChecks wires liveness probes for the health endpoint.
func (h *Handler) WithHealthChecks(db, redis func(context.Context) bool) *Handler {
	h.dbHealthy = db
	h.redisHealthy = redis
	return h
}

// writeErr maps service errors onto HTTP responses. Internal detail never
// reaches the client.
func writeErr(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": apperr.MessageOf(err)})
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbOK, redisOK := true, true
	if h.dbHealthy != nil {
		dbOK = h.dbHealthy(ctx)
	}
	if h.redisHealthy != nil {
		redisOK = h.redisHealthy(ctx)
	}
	status := http.StatusOK
	if !dbOK || !redisOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "db": dbOK, "redis": redisOK})
}

// ---------- Admin auth ----------

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	role, err := auth.VerifyCredentials(h.cfg.AdminCredentials, req.Username, req.Password)
	if err != nil {
		writeErr(c, err)
		return
	}
	session, err := auth.Issue(req.Username, role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.SessionTTL)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "Internal server error", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.Unix(),
		"username":   req.Username,
		"role":       role,
	})
}

// ---------- Daily QR tokens ----------

type issueTokenRequest struct {
	Date        string `json:"date"`
	ForTomorrow bool   `json:"for_tomorrow"`
}

func (h *Handler) IssueDailyQR(c *gin.Context) {
	var req issueTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	createdBy := "admin"
	if claimsAny, ok := c.Get(auth.ClaimsKey); ok {
		if claims, ok := claimsAny.(auth.Claims); ok && claims.Subject != "" {
			createdBy = claims.Subject
		}
	}
	tok, err := h.tokens.Issue(c.Request.Context(), req.Date, req.ForTomorrow, createdBy)
	if err != nil {
		writeErr(c, err)
		return
	}
	h.collector.RecordTokenIssued()
	c.JSON(http.StatusCreated, tok)
}

func (h *Handler) ListDailyQR(c *gin.Context) {
	toks, err := h.tokens.ListRecent(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if toks == nil {
		toks = []token.DailyToken{}
	}
	c.JSON(http.StatusOK, gin.H{"qr_codes": toks})
}

func (h *Handler) DeleteDailyQR(c *gin.Context) {
	date := c.Param("date")
	tok, err := h.tokens.Delete(c.Request.Context(), date)
	if err != nil {
		writeErr(c, err)
		return
	}
	h.collector.RecordTokenDeleted()
	c.JSON(http.StatusOK, gin.H{
		"message": "QR code deleted. A new one can now be generated for " + tok.Date + ".",
		"deleted": tok,
	})
}

func (h *Handler) TodayDailyQR(c *gin.Context) {
	tok, err := h.tokens.Today(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	// tok may be nil; clients poll this and treat JSON null as "not issued
	// yet" rather than an error.
	c.JSON(http.StatusOK, tok)
}

func (h *Handler) TodayDailyQRImage(c *gin.Context) {
	tok, err := h.tokens.Today(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if tok == nil {
		writeErr(c, token.ErrNotFound)
		return
	}
	png, err := qrimage.PNG(tok.QRToken, qrimage.DefaultSize)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// ---------- Admin attendance views ----------

func (h *Handler) ListAttendance(c *gin.Context) {
	events, err := h.att.ListAll(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	if events == nil {
		events = []attendance.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"attendance": events})
}

func (h *Handler) DailySummary(c *gin.Context) {
	events, err := h.att.ListAll(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.summarizer.Build(events))
}

func (h *Handler) ClearAttendance(c *gin.Context) {
	result, err := h.att.ClearAll(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":             "All attendance data cleared",
		"qr_codes_deleted":    result.Tokens,
		"attendance_deleted":  result.Events,
		"students_deleted":    result.Students,
		"total_rows_affected": result.Total(),
	})
}

// ---------- Student endpoints ----------

type studentLoginRequest struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

func (h *Handler) StudentLogin(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, attendance.ErrMissingFields)
		return
	}
	student, err := h.att.RegisterOrLogin(c.Request.Context(), req.StudentID, req.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "student": student})
}

type scanRequest struct {
	StudentID string `json:"student_id"`
	QRToken   string `json:"qr_token"`
}

func (h *Handler) ScanDailyQR(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, attendance.ErrMissingScanInput)
		return
	}
	result, err := h.att.Scan(c.Request.Context(), req.StudentID, req.QRToken)
	if err != nil {
		h.collector.RecordScanRejected(rejectReason(err))
		writeErr(c, err)
		return
	}
	h.collector.RecordScan(result.Type, "qr")
	h.publishAudit(result.Record, true)
	c.JSON(http.StatusCreated, result)
}

type directRequest struct {
	StudentID string `json:"student_id"`
}

func (h *Handler) DirectAttendance(c *gin.Context) {
	var req directRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, attendance.ErrMissingScanInput)
		return
	}
	result, err := h.att.Direct(c.Request.Context(), req.StudentID)
	if err != nil {
		h.collector.RecordScanRejected(rejectReason(err))
		writeErr(c, err)
		return
	}
	h.collector.RecordScan(result.Type, "direct")
	h.publishAudit(result.Record, false)
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	events, err := h.att.ListByStudent(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		writeErr(c, err)
		return
	}
	if events == nil {
		events = []attendance.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"attendance": events})
}

// publishAudit hands the recorded event to the audit queue. Delivery is
// best effort; a full or unreachable queue never fails the request.
func (h *Handler) publishAudit(evt attendance.Event, gated bool) {
	if h.q == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	audit := queue.ScanAudit{
		EventID:   evt.ID,
		StudentID: evt.StudentID,
		Date:      evt.Date,
		Time:      evt.Time,
		Type:      evt.Type,
		Gated:     gated,
	}
	if err := h.q.Publish(ctx, audit); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, attendance.ErrDailyLimit):
		return "daily_limit"
	case errors.Is(err, attendance.ErrStudentNotFound):
		return "student_not_found"
	case errors.Is(err, token.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, token.ErrNotValidToday):
		return "stale_token"
	case errors.Is(err, attendance.ErrDirectDisabled):
		return "direct_disabled"
	case errors.Is(err, attendance.ErrMissingScanInput):
		return "missing_input"
	default:
		return "other"
	}
}
