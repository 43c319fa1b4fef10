package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/C4erries/edumax/config"
	"github.com/C4erries/edumax/internal/api/handler"
	"github.com/C4erries/edumax/internal/api/middleware"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/pkg/jwt"
	"github.com/C4erries/edumax/pkg/metrics"
	"github.com/C4erries/edumax/pkg/redis"
	"github.com/C4erries/edumax/pkg/validate"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 与 m 可以为 nil：无 Redis 时限流退化为进程内令牌桶并跳过黑名单检查，无指标时不暴露 /metrics
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validate.Register(v); err != nil {
			logger.Warn("注册自定义校验规则失败", zap.Error(err))
		}
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(cfg.Server.BaseURL))
	r.Use(middleware.CORS(cfg.Server.CORS))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))
	if m != nil {
		r.Use(middleware.Metrics(m))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── 指标 ──
	if m != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(m.Handler()))
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		v1.Use(middleware.RateLimit(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window))
	}

	var blacklist middleware.TokenBlacklist
	if rdb != nil {
		blacklist = rdb
	}
	auth := middleware.JWTAuth(jwtMgr, blacklist, logger)

	{
		// 节次（只读参考数据）
		v1.GET("/timeslots", h.Timeslot.ListTimeslots)

		// 课表模块：查询公开，修改需要教职工或管理员
		schedule := v1.Group("/schedule")
		{
			schedule.GET("", h.Schedule.GetSchedule)
			schedule.GET("/changelog", h.Schedule.ListChangelog)
			schedule.GET("/version", h.Schedule.GetVersion)
			schedule.GET("/export", h.Schedule.ExportSchedule)
			schedule.PATCH("/patch", auth, middleware.RoleAuth(model.RoleStaff, model.RoleAdmin), h.Schedule.PatchSchedule)
		}
	}

	return r
}
