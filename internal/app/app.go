package app

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/controller"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"lms_backend/internal/videocache"
	"lms_backend/pkg/configwatcher"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"lms_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	limiter         *security.Limiter
	tracer          *sdktrace.TracerProvider
	stop            context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	course     *repository.CourseRepository
	chapter    *repository.ChapterRepository
	lesson     *repository.LessonRepository
	progress   *repository.ProgressRepository
	enrollment *repository.EnrollmentRepository
	cert       *repository.CertificateRepository
	payment    *repository.PaymentRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	access      *service.AccessChecker
	completion  *service.CompletionService
	progress    *service.ProgressService
	catalog     *service.CatalogService
	checkout    *service.CheckoutService
	enrollment  *service.EnrollmentService
	certificate *service.CertificateService
	dashboard   *service.DashboardService
	playback    *service.PlaybackService
	resolver    *videocache.Resolver
}

type controllers struct {
	auth       *controller.AuthController
	course     *controller.CourseController
	learning   *controller.LearningController
	media      *controller.MediaController
	checkout   *controller.CheckoutController
	enrollment *controller.EnrollmentController
	dashboard  *controller.DashboardController
	health     *controller.HealthController
}

// RegisterConfigCallback 配置热更新回调
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		course:     repository.NewCourseRepository(db),
		chapter:    repository.NewChapterRepository(db),
		lesson:     repository.NewLessonRepository(db),
		progress:   repository.NewProgressRepository(db),
		enrollment: repository.NewEnrollmentRepository(db),
		cert:       repository.NewCertificateRepository(db),
		payment:    repository.NewPaymentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client, gateway service.PaymentGateway) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.access = service.NewAccessChecker(repos.enrollment)
	s.completion = service.NewCompletionService(db, repos.course, repos.progress, repos.cert, repos.enrollment)
	s.progress = service.NewProgressService(repos.course, repos.lesson, repos.progress, repos.cert, s.access, s.completion)
	s.catalog = service.NewCatalogService(repos.course, repos.chapter, repos.lesson, s.access, s.storage)
	s.checkout = service.NewCheckoutService(repos.course, repos.user, repos.enrollment, repos.payment, gateway, &cfg.Payment)
	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.course, repos.user, s.access)
	s.certificate = service.NewCertificateService(repos.cert, repos.user)
	s.dashboard = service.NewDashboardService(repos.course, repos.enrollment, repos.cert, repos.user)

	s.resolver = videocache.New(cfg.VideoCache, rdb)
	s.playback = service.NewPlaybackService(repos.lesson, repos.progress, s.access, s.progress, s.resolver)

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.resolver.SetMaxAge(newCfg.VideoCache.MaxAge())
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		course:     controller.NewCourseController(s.catalog),
		learning:   controller.NewLearningController(s.progress, s.playback),
		media:      controller.NewMediaController(s.playback),
		checkout:   controller.NewCheckoutController(s.checkout),
		enrollment: controller.NewEnrollmentController(s.enrollment, s.certificate),
		dashboard:  controller.NewDashboardController(s.dashboard),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.limiter.Middleware())
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		a.limiter.Update(newCfg.RateLimit.MaxRequests, time.Duration(newCfg.RateLimit.WindowMinutes)*time.Minute)
	})

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 限流器清理、超时待支付订单取消、配置热更新
func (a *App) startBackgroundTasks(ctx context.Context) {
	go a.limiter.Run()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.services.checkout.CancelStalePending(ctx); err != nil {
					logger.Log.Error("cancel stale pending enrollments error", zap.Error(err))
				}
			}
		}
	}()

	configFile := filepath.Join("configs", "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		watcher := configwatcher.New(configFile)
		watcher.OnReload(func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}
}

// New 用已建立的连接装配路由和服务，不启动后台任务
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, gateway service.PaymentGateway) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb, gateway)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis 可选，视频缓存 redis 后端会自动降级
		logger.Log.Warn("Failed to initialize redis", zap.Error(err))
		rdb = nil
	}

	gateway := service.NewMidtransGateway(cfg.Payment.ServerKey, cfg.Payment.Production)
	app := New(cfg, db, rdb, gateway)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("lms-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.stop = cancel
	app.startBackgroundTasks(ctx)

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

	if a.stop != nil {
		a.stop()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
