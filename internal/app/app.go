package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"testverse_backend/internal/config"
	"testverse_backend/internal/controller"
	"testverse_backend/internal/repository"
	"testverse_backend/internal/service"
	"testverse_backend/pkg/configwatcher"
	"testverse_backend/pkg/database"
	"testverse_backend/pkg/logger"
	"testverse_backend/pkg/monitoring"
	"testverse_backend/pkg/security"
	"testverse_backend/pkg/tracing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
	sweepCancel     context.CancelFunc
}

type repositories struct {
	user      *repository.UserRepository
	exam      *repository.ExamRepository
	attempt   *repository.AttemptRepository
	result    *repository.ResultRepository
	extension *repository.ExtensionRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	eligibility *service.EligibilityService
	result      *service.ResultService
	attempt     *service.AttemptService
	grading     *service.GradingService
	exam        *service.ExamService
	report      *service.ReportService
	sweep       *service.SweepService
}

type controllers struct {
	auth   *controller.AuthController
	exam   *controller.ExamController
	staff  *controller.StaffExamController
	grade  *controller.GradeController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		exam:      repository.NewExamRepository(db),
		attempt:   repository.NewAttemptRepository(db),
		result:    repository.NewResultRepository(db),
		extension: repository.NewExtensionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.eligibility = service.NewEligibilityService(cfg.Exam.DepartmentAliases)
	s.result = service.NewResultService(repos.exam, repos.attempt, repos.result, nil)
	s.attempt = service.NewAttemptService(
		repos.exam,
		repos.attempt,
		repos.extension,
		s.eligibility,
		s.result,
		time.Duration(cfg.Exam.SaveGraceSeconds)*time.Second,
		nil,
	)
	s.grading = service.NewGradingService(repos.exam, repos.attempt, repos.result, s.result)
	s.exam = service.NewExamService(
		repos.exam,
		repos.attempt,
		repos.result,
		repos.extension,
		s.result,
		s.eligibility,
		nil,
	)
	s.report = service.NewReportService(repos.exam, repos.result)
	s.sweep = service.NewSweepService(
		repos.attempt,
		repos.extension,
		s.result,
		s.eligibility,
		rdb,
		time.Duration(cfg.Exam.SweepIntervalSeconds)*time.Second,
		nil,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth),
		exam:   controller.NewExamController(s.auth, s.exam, s.attempt),
		staff:  controller.NewStaffExamController(s.exam, s.report, s.storage),
		grade:  controller.NewGradeController(s.grading),
		health: controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100000 // 每分钟100000次请求
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 启动过期答卷扫描。多实例部署时通过 Redis 锁保证单实例执行。
func (a *App) startBackgroundTasks(s *services) {
	ctx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	go s.sweep.Run(ctx)
}

func (a *App) watchConfig() {
	go configwatcher.WatchConfig("configs/config.yaml", a.Config, func(cfg interface{}) {
		newCfg, ok := cfg.(*config.Config)
		if !ok {
			return
		}
		a.Config = newCfg
		for _, callback := range a.configCallbacks {
			callback(newCfg)
		}
		logger.Log.Info("Config reloaded")
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis 不可用时降级为单实例模式，不阻止启动
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, sweep runs without distributed lock", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	if cfg.MigrateOnly {
		return app
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("testverse-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.RegisterConfigCallback(func(c *config.Config) {
			if !c.Tracing.Enabled {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
				}
			}
		})
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)
	app.watchConfig()

	return app
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

	// 停止后台扫描
	if a.sweepCancel != nil {
		a.sweepCancel()
	}

	// 关闭服务
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
