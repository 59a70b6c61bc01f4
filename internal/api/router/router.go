package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classtrack/backend/config"
	"classtrack/backend/internal/api/handler"
	"classtrack/backend/internal/api/middleware"
	"classtrack/backend/pkg/jwt"
	"classtrack/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证；登录/注册加速率限制）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", middleware.RateLimit(rdb, 10, time.Minute), h.Auth.Register)
			auth.POST("/login", middleware.RateLimit(rdb, 20, time.Minute), h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 科目模块
			subjects := authorized.Group("/subjects")
			{
				subjects.GET("", h.Subject.ListSubjects)
				subjects.POST("", h.Subject.CreateSubject)
				subjects.PUT("/:id", h.Subject.UpdateSubject)
				subjects.DELETE("/:id", h.Subject.DeleteSubject)
			}

			// 出勤模块
			attendance := authorized.Group("/attendance")
			{
				attendance.POST("/mark", h.Attendance.Mark)
				attendance.POST("/mark-all", h.Attendance.MarkAll)
				attendance.POST("/delete", h.Attendance.Delete)
				attendance.GET("/date/:date", h.Attendance.ListByDate)
				attendance.GET("/subject/:id", h.Attendance.ListBySubject)
			}

			// 统计模块
			stats := authorized.Group("/stats")
			{
				stats.GET("", h.Stats.Overall)
				stats.GET("/subject/:id", h.Stats.BySubject)
			}

			// 日记录模块
			days := authorized.Group("/days")
			{
				days.GET("", h.Day.ListDays)
				days.GET("/:date", h.Day.GetDay)
				days.PUT("/:date", h.Day.UpsertDay)
			}

			// 周期模块
			periods := authorized.Group("/periods")
			{
				periods.GET("", h.Period.ListPeriods)
				periods.GET("/active", h.Period.GetActivePeriod)
				periods.POST("", h.Period.StartPeriod)
				periods.POST("/reset", h.Period.ResetPeriod)
			}

			// 同步模块
			sync := authorized.Group("/sync")
			{
				sync.POST("", h.Sync.SyncNow)
				sync.POST("/resolve-conflict", h.Sync.ResolveConflict)
				sync.POST("/migrate-legacy", h.Sync.MigrateLegacy)
			}

			// 导出与备份模块
			export := authorized.Group("/export")
			{
				export.GET("/snapshot", h.Export.ExportSnapshot)
				export.POST("/snapshot", h.Export.ImportSnapshot)
				export.GET("/report", h.Export.ExportReport)
				export.GET("/holidays.ics", h.Export.ExportHolidayCalendar)
			}
		}
	}

	return r
}
