package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ordertrack/internal/config"
	"ordertrack/internal/middleware"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/modules/realtime"
	"ordertrack/internal/modules/task"
	"ordertrack/internal/modules/user"
	jwtsvc "ordertrack/internal/pkg/jwt"
	"ordertrack/internal/repository"
)

type app struct {
	engine *gin.Engine
	hub    *realtime.Hub
	tokens *jwtsvc.Service
	users  *repository.UserRepository

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires every module onto one gin engine. Background work (redis
// fan-in, notification cleanup) stops when ctx is done or Close is called.
func newApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*app, error) {
	a := &app{}

	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	a.users = userRepo

	// Auth
	tokens := jwtsvc.New(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	verifier := auth.NewVerifier(tokens, userRepo)
	twoFactor := auth.NewTwoFactor(userRepo, cfg.Auth.TwoFactorIssuer, cfg.Auth.BackupCodePepper)
	authHandler := auth.NewHandler(auth.NewService(userRepo, tokens, twoFactor, log), twoFactor)
	a.tokens = tokens

	// Realtime
	hub := realtime.NewHub(log)
	var router realtime.Router = hub
	if cfg.Redis.URL != "" {
		rdb, err := config.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		redisRouter := realtime.NewRedisRouter(hub, rdb, cfg.Redis.Channel, log)
		go func() {
			if err := redisRouter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("redis router stopped")
			}
		}()
		router = redisRouter
		log.Info().Str("channel", cfg.Redis.Channel).Msg("room routing across instances via redis")
	}
	emitter := realtime.NewEmitter(router)
	a.hub = hub

	// Notifications
	mailer := notification.NewResendMailer(cfg.Email.ResendAPIKey, cfg.Email.From)
	if mailer == nil {
		log.Info().Msg("RESEND_API_KEY not set, email channel disabled")
	}
	dispatcher := notification.NewDispatcher(notificationRepo, userRepo, emitter, mailer, cfg.Notification.TTL, log)
	notificationService := notification.NewService(notificationRepo, dispatcher)
	notificationHandler := notification.NewHandler(notificationService, emitter, log)

	cleanup := notification.NewCleanupService(notificationRepo, log)
	stopCleanup := cleanup.ScheduleCleanup(ctx, cfg.Notification.CleanupInterval)
	a.closers = append(a.closers, func() { close(stopCleanup) })

	// Domain
	orderHandler := order.NewHandler(order.NewService(orderRepo, userRepo, dispatcher, log))
	taskHandler := task.NewHandler(task.NewService(taskRepo, userRepo, dispatcher, log))
	userHandler := user.NewHandler(user.NewService(userRepo, log))

	wsHandler := realtime.NewHandler(hub, router, realtime.Deps{
		Verifier:      verifier,
		Orders:        orderRepo,
		Tasks:         taskRepo,
		Notifications: notificationService,
		Emergency:     dispatcher,
		Presence:      userRepo,
		CheckOrigin:   middleware.AllowedOrigin(cfg.HTTP.AllowedOrigins),
	}, log)

	r := gin.New()
	r.Use(middleware.ErrorLogger(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": len(hub.OnlineUsers())})
	})
	wsHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		// public
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(verifier))
		{
			authHandler.RegisterProtectedRoutes(protected)
			orderHandler.RegisterRoutes(protected)
			taskHandler.RegisterRoutes(protected)
			notificationHandler.RegisterRoutes(protected)

			admin := protected.Group("")
			admin.Use(middleware.AdminOnly())
			userHandler.RegisterRoutes(admin)
		}
	}

	a.engine = r
	return a, nil
}
