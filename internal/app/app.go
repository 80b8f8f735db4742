package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staff_training_backend/internal/config"
	"staff_training_backend/internal/controller"
	"staff_training_backend/internal/repository"
	"staff_training_backend/internal/service"
	"staff_training_backend/pkg/database"
	"staff_training_backend/pkg/logger"
	"staff_training_backend/pkg/monitoring"
	"staff_training_backend/pkg/security"
	"staff_training_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	content             *repository.ContentRepository
	interactiveProgress *repository.InteractiveProgressRepository
	videoProgress       *repository.VideoProgressRepository
	skipLog             *repository.SkipAttemptLogRepository
}

type services struct {
	progress      *service.ProgressService
	videoProgress *service.VideoProgressService
	content       *service.ContentService
	audit         *service.AuditSink
}

type controllers struct {
	progress *controller.ProgressController
	video    *controller.VideoController
	content  *controller.ContentController
	health   *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		content:             repository.NewContentRepository(db, rdb),
		interactiveProgress: repository.NewInteractiveProgressRepository(db),
		videoProgress:       repository.NewVideoProgressRepository(db),
		skipLog:             repository.NewSkipAttemptLogRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	clock := service.RealClock()
	guard := service.NewSlideGuard(clock, cfg)
	evaluator := service.NewCompletionEvaluator(cfg)

	s.audit = service.NewAuditSink(repos.skipLog)
	s.progress = service.NewProgressService(repos.content, repos.interactiveProgress, guard, evaluator, s.audit, cfg)
	s.videoProgress = service.NewVideoProgressService(repos.content, repos.videoProgress, evaluator, s.audit, clock, cfg)
	s.content = service.NewContentService(repos.content, repos.interactiveProgress)

	return s
}

func (a *App) initControllers(s *services, repos *repositories, db *gorm.DB) *controllers {
	return &controllers{
		progress: controller.NewProgressController(s.progress),
		video:    controller.NewVideoController(s.videoProgress),
		content:  controller.NewContentController(s.content, repos.skipLog),
		health:   controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(100000, time.Minute)) // 每分钟100000次请求

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	controllers := app.initControllers(services, repos, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("staff-training", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	return app
}

// ReloadConfig 配置热加载回调：进度策略（停留下限、及格线）即时生效
// 服务持有的是同一个 Config 指针，整体替换内容即可
func (a *App) ReloadConfig(newCfg *config.Config) {
	*a.Config = *newCfg
	logger.Log.Info("Config reloaded",
		zap.Int("min_dwell_floor_seconds", newCfg.Progress.MinDwellFloorSeconds),
		zap.Float64("quiz_pass_score", newCfg.Progress.QuizPassScore),
	)
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
