package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-exam-api/api/swagger"
	"github.com/noah-isme/lms-exam-api/internal/handler"
	"github.com/noah-isme/lms-exam-api/internal/middleware"
	"github.com/noah-isme/lms-exam-api/internal/repository"
	"github.com/noah-isme/lms-exam-api/internal/service"
	"github.com/noah-isme/lms-exam-api/pkg/cache"
	"github.com/noah-isme/lms-exam-api/pkg/config"
	"github.com/noah-isme/lms-exam-api/pkg/database"
	"github.com/noah-isme/lms-exam-api/pkg/events"
	"github.com/noah-isme/lms-exam-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-exam-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-exam-api/pkg/middleware/requestid"
)

// @title LMS Exam API
// @version 0.1.0
// @description Exam allocation and rescheduling engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Env != config.EnvProduction {
		migrateUp(db, cfg, logr)
	}

	metricsSvc := service.NewMetricsService()
	locker, closeLocker := newLocker(ctx, cfg, metricsSvc, logr)
	defer closeLocker() //nolint:errcheck
	publisher := newPublisher(cfg, logr)
	defer publisher.Close() //nolint:errcheck

	validate := validator.New()
	institutes := repository.NewInstituteRepository(db)
	courses := repository.NewCourseRepository(db)
	banks := repository.NewQuestionBankRepository(db)
	students := repository.NewStudentRepository(db)
	exams := repository.NewExamRepository(db)
	cards := repository.NewAdmitCardRepository(db)
	requests := repository.NewRescheduleRequestRepository(db)

	allocationSvc := service.NewExamAllocationService(
		institutes, courses, banks, students, exams, cards, db, locker, nil, publisher, metricsSvc, validate, logr,
		service.ExamAllocationConfig{
			HorizonDays:      cfg.Scheduler.HorizonDays,
			MinNoticeDays:    cfg.Scheduler.MinNoticeDays,
			MarksPerQuestion: cfg.Scheduler.MarksPerQuestion,
		},
	)
	rescheduleSvc := service.NewRescheduleService(
		institutes, courses, students, exams, cards, requests, db, locker, publisher, metricsSvc, validate, logr,
		service.RescheduleConfig{
			TickMinutes:         cfg.Scheduler.TickMinutes,
			MaxAttempts:         cfg.Scheduler.MaxAttempts,
			ApprovalHorizonDays: cfg.Scheduler.ApprovalHorizonDays,
			RescheduledSuffix:   cfg.Scheduler.RescheduledSuffix,
		},
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, cfg.Metrics.Path, "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.Scheduler.Enabled {
		registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
			exams:      handler.NewExamHandler(allocationSvc),
			reschedule: handler.NewRescheduleHandler(rescheduleSvc),
			metrics:    metricsHandler,
		})
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func migrateUp(db *sqlx.DB, cfg *config.Config, logr *zap.Logger) {
	migrator, err := database.NewMigrator(db, cfg.Database)
	if err != nil {
		logr.Warn("migrations skipped", zap.Error(err))
		return
	}
	// Closing the migrator would also close db.
	if err := migrator.Up(); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}
	version, dirty, _ := migrator.Version()
	logr.Info("schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
}

// newLocker returns the institute locker and a closer for its Redis connection.
func newLocker(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (service.InstituteLocker, func() error) {
	noop := func() error { return nil }
	if !cfg.Redis.Enabled {
		return service.NewLocalInstituteLocker(), noop
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-process institute locks", zap.Error(err))
		return service.NewLocalInstituteLocker(), noop
	}
	store := repository.NewAllocationLockRepository(client, logr)
	return service.NewDistributedInstituteLocker(store, cfg.Scheduler.LockTTL, cfg.Scheduler.LockWait, metrics, logr), store.Close
}

func newPublisher(cfg *config.Config, logr *zap.Logger) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}
	}
	publisher, err := events.NewRabbitMQPublisher(cfg.Events, logr)
	if err != nil {
		logr.Warn("rabbitmq unavailable, scheduling events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	return publisher
}
