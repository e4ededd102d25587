package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schedulrr/schedulrr-api/api/swagger"
	"github.com/schedulrr/schedulrr-api/internal/google"
	"github.com/schedulrr/schedulrr-api/internal/handler"
	"github.com/schedulrr/schedulrr-api/internal/identity"
	"github.com/schedulrr/schedulrr-api/internal/middleware"
	"github.com/schedulrr/schedulrr-api/internal/repository"
	"github.com/schedulrr/schedulrr-api/internal/service"
	"github.com/schedulrr/schedulrr-api/internal/uploads"
	"github.com/schedulrr/schedulrr-api/pkg/cache"
	"github.com/schedulrr/schedulrr-api/pkg/config"
	"github.com/schedulrr/schedulrr-api/pkg/database"
	"github.com/schedulrr/schedulrr-api/pkg/logger"
	corsmiddleware "github.com/schedulrr/schedulrr-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schedulrr/schedulrr-api/pkg/middleware/requestid"
)

// @title Schedulrr API
// @version 1.0.0
// @description Scheduling and booking backend with Google Calendar integration
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	// Redis is optional; without it the API simply runs uncached.
	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ProfileTTL, logr, true)
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	clerkClient := identity.NewClerkClient(cfg.Clerk, logr)
	calendarClient := google.NewCalendarClient(cfg.Calendar, logr)
	cloudinaryClient := uploads.NewCloudinaryClient(cfg.Cloudinary, logr)

	authSvc, err := service.NewAuthService(cfg.Clerk, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init auth service", "error", err)
	}
	userSvc := service.NewUserService(userRepo, eventRepo, cacheSvc, validate, logr)
	eventSvc := service.NewEventService(eventRepo, userRepo, cacheSvc, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, userRepo, eventRepo,
		bookingRepo, cacheSvc, cfg.Slots, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, eventRepo, userRepo, availabilityRepo,
		clerkClient, calendarClient, metricsSvc, validate, logr)
	meetingSvc := service.NewMeetingService(bookingRepo, userRepo, clerkClient, calendarClient, metricsSvc, logr)

	userHandler := handler.NewUserHandler(userSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	meetingHandler := handler.NewMeetingHandler(meetingSvc)
	uploadHandler := handler.NewUploadHandler(cloudinaryClient, cfg.Cloudinary)
	webhookHandler := handler.NewWebhookHandler(userSvc, cfg.Clerk, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		// Visitor-facing booking surface, no session required.
		api.GET("/users/:username", userHandler.PublicProfile)
		api.GET("/users/:username/events/:eventID", eventHandler.Public)
		api.GET("/users/:username/events/:eventID/slots", availabilityHandler.Slots)
		api.POST("/bookings", bookingHandler.Create)
		api.POST("/webhooks/clerk", webhookHandler.HandleClerk)

		authed := api.Group("", middleware.JWT(authSvc))
		{
			authed.GET("/me", userHandler.Me)
			authed.PATCH("/me/username", userHandler.UpdateUsername)

			authed.POST("/events", eventHandler.Create)
			authed.GET("/events", eventHandler.List)
			authed.GET("/events/:id", eventHandler.Get)
			authed.DELETE("/events/:id", eventHandler.Delete)

			authed.GET("/availability", availabilityHandler.Get)
			authed.PUT("/availability", availabilityHandler.Update)

			authed.GET("/meetings", meetingHandler.List)
			authed.GET("/meetings/export", meetingHandler.Export)
			authed.DELETE("/meetings/:id", meetingHandler.Cancel)

			authed.POST("/uploads", uploadHandler.Upload)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
