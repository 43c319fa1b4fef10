package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/C4erries/edumax/config"
	"github.com/C4erries/edumax/internal/api/handler"
	"github.com/C4erries/edumax/internal/api/router"
	"github.com/C4erries/edumax/internal/jobs"
	"github.com/C4erries/edumax/internal/notify"
	"github.com/C4erries/edumax/internal/repository"
	"github.com/C4erries/edumax/internal/service"
	"github.com/C4erries/edumax/pkg/archive"
	"github.com/C4erries/edumax/pkg/database"
	"github.com/C4erries/edumax/pkg/jwt"
	applogger "github.com/C4erries/edumax/pkg/logger"
	"github.com/C4erries/edumax/pkg/metrics"
	"github.com/C4erries/edumax/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志（日志级别支持热更新）
	logger, level, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg.Watch(func(l string) {
		if err := applogger.SetLevel(level, l); err != nil {
			logger.Warn("日志级别热更新失败", zap.String("level", l), zap.Error(err))
			return
		}
		logger.Info("日志级别已更新", zap.String("level", l))
	})

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与通知推送将不可用，限流退化为进程内", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器与指标
	jwtMgr := jwt.NewManager(&cfg.Auth)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// 6. 依赖注入: Repository → Notify / Archive → Service → Handler
	repo := repository.NewRepository(db)

	var dispatcher notify.Dispatcher
	var notifier *notify.Service
	if cfg.Notify.Enabled {
		var pub notify.Publisher
		if rdb != nil {
			pub = rdb
		}
		notifier = notify.NewService(&cfg.Notify, repo.Notification, pub, m, logger)
		notifier.Start(context.Background())
		dispatcher = notifier
	}

	var uploader archive.Uploader
	if cfg.Archive.Enabled {
		store, err := archive.NewS3Store(context.Background(), &cfg.Archive)
		if err != nil {
			logger.Fatal("初始化归档存储失败", zap.Error(err))
		}
		uploader = store
	}

	svc := service.NewService(cfg, repo, dispatcher, uploader, m, logger)
	h := handler.NewHandler(svc)

	// 7. 后台任务
	runner := jobs.NewRunner(logger, nil)
	if notifier != nil && cfg.Notify.SweepSpec != "" {
		if err := runner.Add("notify_sweep", cfg.Notify.SweepSpec, func(ctx context.Context) error {
			_, err := notifier.Sweep(ctx)
			return err
		}); err != nil {
			logger.Fatal("注册通知补推任务失败", zap.Error(err))
		}
	}
	if uploader != nil {
		if err := runner.Add("changelog_archive", cfg.Archive.Spec, func(ctx context.Context) error {
			_, err := svc.Archive.Run(ctx)
			return err
		}); err != nil {
			logger.Fatal("注册变更日志归档任务失败", zap.Error(err))
		}
	}
	runner.Start()

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, m, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 先停调度，再排空通知队列
	runner.Stop(ctx)
	if notifier != nil {
		notifier.Stop(ctx)
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
