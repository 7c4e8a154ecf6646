package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"room_coordinator/internal/config"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/handler"
	"room_coordinator/internal/middleware"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/repository"
	"room_coordinator/internal/service"
	"room_coordinator/internal/worker"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewWithFormat(cfg.Log.Level, cfg.Log.Format)

	// PostgreSQL; при DATABASE_DRIVER=memory состояние живет в процессе
	var dbPool *pgxpool.Pool
	if cfg.Database.Driver == "postgres" {
		dbPool = connectPostgres(cfg.Database, appLogger)
		defer dbPool.Close()
	}

	// Redis: кэш подписок, rate limit, аренда прохода восстановления и очередь уведомлений
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	repos := repository.NewRepositories(dbPool, rdb, cfg, appLogger)
	hub := notify.NewHub(appLogger)

	// Уведомления: через очередь asynq, если есть Redis, иначе прямо в хаб
	var notifications service.NotificationSink
	var workerServer *worker.Server
	if rdb != nil && cfg.Notifications.QueueEnabled {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		queueClient := asynq.NewClient(redisOpt)
		defer queueClient.Close()

		notifications = service.NewQueueNotificationSink(queueClient, cfg.Notifications.Queue, appLogger)
		workerServer = worker.NewServer(redisOpt, cfg.Notifications, hub, appLogger)
		go workerServer.Start()
	} else {
		notifications = service.NewHubNotificationSink(hub, appLogger)
	}

	services := service.NewServices(repos, notifications, cfg, appLogger)
	services.Events.Start()

	// закрытие последнего соединения пользователя в комнате - уход офлайн
	hub.OnDisconnect(func(roomID, userID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.Lifecycle.Disconnect(ctx, roomID, userID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			appLogger.Warn("Failed to mark participant offline", "room_id", roomID, "user_id", userID, "error", err)
		}
	})

	if cfg.Recovery.Enabled {
		services.Sweeper.Start(context.Background())
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, domain.RateLimitRule{
		Scope:  domain.RateLimitScopeUser,
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	}, appLogger)

	handlers := handler.NewHandlers(services, hub, cfg, appLogger)
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "storage", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	// проход восстановления отменяется, начатая комната доводится до конца
	services.Sweeper.Stop()
	// события, поставленные до остановки, доставляются
	services.Events.Close()
	if workerServer != nil {
		workerServer.Shutdown()
	}

	appLogger.Info("Server exited")
}

func connectPostgres(cfg config.DatabaseConfig, log logger.Logger) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		log.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	// Проверка подключения к БД
	if err := dbPool.Ping(context.Background()); err != nil {
		log.Fatal("Failed to ping database", "error", err)
	}
	log.Info("Database connection established")
	return dbPool
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.OriginIP())
	router.Use(middleware.ErrorHandler(log))

	handlers.RegisterRoutes(router, authMiddleware.RequireAuth(), authMiddleware.RequireAdmin(), rateLimitMiddleware.Limit())

	return router
}
