package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusflow/course-scheduler-api/api/swagger"
	"github.com/campusflow/course-scheduler-api/internal/handler"
	"github.com/campusflow/course-scheduler-api/internal/repository"
	"github.com/campusflow/course-scheduler-api/internal/service"
	"github.com/campusflow/course-scheduler-api/pkg/cache"
	"github.com/campusflow/course-scheduler-api/pkg/config"
	"github.com/campusflow/course-scheduler-api/pkg/database"
	"github.com/campusflow/course-scheduler-api/pkg/logger"
	corsmiddleware "github.com/campusflow/course-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusflow/course-scheduler-api/pkg/middleware/requestid"
	"github.com/campusflow/course-scheduler-api/pkg/response"
)

// @title Course Scheduler API
// @version 1.0.0
// @description Timetable scheduling and enrollment waitlist engine
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.Migrate(ctx, db); err != nil {
			cancel()
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
		cancel()
	}

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	roomRepo := repository.NewRoomRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	optionRepo := repository.NewTimetableOptionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Scheduler.CacheTTL, logr, cfg.Redis.Enabled)
	timetableService := service.NewTimetableService(
		roomRepo, courseRepo, scheduleRepo, optionRepo, db,
		cacheService, metrics, validate, logr,
		service.TimetableConfig{OptionCount: cfg.Scheduler.OptionCount, CacheTTL: cfg.Scheduler.CacheTTL},
	)
	waitlistService := service.NewWaitlistService(
		enrollmentRepo, courseRepo, scheduleRepo, db,
		metrics, validate, logr, cfg.Waitlist.PromotionEnabled,
	)
	roomService := service.NewRoomService(roomRepo, scheduleRepo, cacheService, validate, logr)
	courseService := service.NewCourseService(courseRepo, logr)

	timetableHandler := handler.NewTimetableHandler(timetableService, waitlistService, logr)
	enrollmentHandler := handler.NewEnrollmentHandler(waitlistService)
	roomHandler := handler.NewRoomHandler(roomService)
	courseHandler := handler.NewCourseHandler(courseService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("", roomHandler.List)
			rooms.POST("", roomHandler.Create)
			rooms.GET("/availability", timetableHandler.CheckAvailability)
			rooms.GET("/:id", roomHandler.Get)
			rooms.PATCH("/:id", roomHandler.Update)
			rooms.DELETE("/:id", roomHandler.Delete)
		}

		courses := api.Group("/courses")
		{
			courses.GET("", courseHandler.List)
			courses.GET("/:id", courseHandler.Get)
			courses.GET("/:id/timetable/options", timetableHandler.ListOptions)
			courses.POST("/:id/timetable/options", timetableHandler.GenerateOptions)
			courses.PUT("/:id/timetable/options", timetableHandler.RegenerateOptions)
			courses.POST("/:id/timetable/apply", timetableHandler.ApplyOption)
			courses.GET("/:id/schedule", timetableHandler.ListAssignments)
			courses.POST("/:id/schedule", timetableHandler.ScheduleManually)
			courses.POST("/:id/waitlist/reconcile", enrollmentHandler.Reconcile)
		}

		api.GET("/schedule", timetableHandler.ListGrid)

		enrollments := api.Group("/enrollments")
		{
			enrollments.GET("", enrollmentHandler.List)
			enrollments.POST("", enrollmentHandler.Request)
			enrollments.GET("/:id", enrollmentHandler.Get)
			enrollments.POST("/:id/approve", enrollmentHandler.Approve)
			enrollments.POST("/:id/deny", enrollmentHandler.Deny)
			enrollments.POST("/:id/reposition", enrollmentHandler.Reposition)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
