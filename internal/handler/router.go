package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/student-erp-api/internal/middleware"
	"github.com/noah-isme/student-erp-api/internal/models"
)

// Handlers groups every HTTP handler mounted by the API.
type Handlers struct {
	Auth        *AuthHandler
	Students    *StudentHandler
	Attendance  *AttendanceHandler
	Complaints  *ComplaintHandler
	Performance *PerformanceHandler
	Metrics     *MetricsHandler
}

// RouteDeps carries the middleware collaborators used by RegisterRoutes.
type RouteDeps struct {
	Tokens       middleware.TokenValidator
	Audit        middleware.AuditRecorder
	LoginLimiter middleware.RateLimiter
	Logger       *zap.Logger
}

// RegisterRoutes mounts the API under prefix and the ops endpoints at the root.
func RegisterRoutes(router *gin.Engine, prefix string, h Handlers, deps RouteDeps) {
	router.GET("/health", h.Metrics.Health)
	router.GET("/ready", h.Metrics.Ready)
	router.GET("/metrics", h.Metrics.Prometheus)

	api := router.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/register", middleware.RateLimit(deps.LoginLimiter, deps.Logger), h.Auth.Register)
	auth.POST("/login", middleware.RateLimit(deps.LoginLimiter, deps.Logger), h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))
	audit := func(action, resource string, idParams ...string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, resource, idParams...)
	}

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	students := secured.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", middleware.StaffOnly(), audit(models.AuditActionCreate, "students"), h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.POST("/:id/results", middleware.StaffOnly(), audit(models.AuditActionUpdate, "students", "id"), h.Students.AddAcademicResult)
	students.POST("/:id/pe-performance", middleware.StaffOnly(), audit(models.AuditActionUpdate, "students", "id"), h.Students.AddPEPerformance)
	students.POST("/:id/reading-time", middleware.StaffOnly(), audit(models.AuditActionUpdate, "students", "id"), h.Students.AddReadingTime)

	attendance := secured.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.POST("", middleware.StaffOnly(), audit(models.AuditActionCreate, "attendance"), h.Attendance.Mark)
	attendance.PUT("/:id", middleware.StaffOnly(), audit(models.AuditActionUpdate, "attendance", "id"), h.Attendance.Update)
	attendance.POST("/:id/acknowledge", h.Attendance.Acknowledge)

	complaints := secured.Group("/complaints")
	complaints.GET("", h.Complaints.List)
	complaints.POST("", audit(models.AuditActionCreate, "complaints"), h.Complaints.Create)
	complaints.POST("/:id/responses", h.Complaints.Respond)
	complaints.PUT("/:id/status", middleware.StaffOnly(), audit(models.AuditActionUpdate, "complaints", "id"), h.Complaints.UpdateStatus)

	performance := secured.Group("/performance")
	performance.GET("/:studentId", h.Performance.Logs)
	performance.GET("/:studentId/analytics", h.Performance.Analytics)
	performance.GET("/:studentId/report", h.Performance.Report)
	performance.POST("/:studentId/comments", middleware.StaffOnly(), audit(models.AuditActionUpdate, "students", "studentId"), h.Performance.AddRemark)

	secured.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), h.Metrics.System)
}
