package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusattend/internal/auth"
	"campusattend/internal/httpmiddleware"
)

// Router builds the gin engine with middleware and all API routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(h.cfg.RateLimitPerMin, h.cfg.RateLimitPerMin).RateLimit())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")

	api.POST("/admin/login", h.AdminLogin)

	admin := api.Group("/admin", auth.AdminAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	admin.POST("/daily-qr", h.IssueDailyQR)
	admin.GET("/daily-qr", h.ListDailyQR)
	admin.DELETE("/daily-qr/:date", h.DeleteDailyQR)
	admin.GET("/daily-qr/today", h.TodayDailyQR)
	admin.GET("/daily-qr/today/image", h.TodayDailyQRImage)
	admin.GET("/attendance", h.ListAttendance)
	admin.GET("/daily-summary", h.DailySummary)
	admin.DELETE("/clear-attendance", h.ClearAttendance)

	student := api.Group("/student")
	student.POST("/login", h.StudentLogin)
	student.POST("/attendance", h.DirectAttendance)
	student.POST("/scan-daily-qr", h.ScanDailyQR)
	student.GET("/attendance/:studentID", h.StudentAttendance)

	return r
}

// corsMiddleware reflects the caller's Origin so browser dashboards work
// with credentials enabled.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
