package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shenikar/sos_dispatch/internal/auth"
	"github.com/shenikar/sos_dispatch/internal/config"
	v1 "github.com/shenikar/sos_dispatch/internal/handler/http/v1"
	"github.com/shenikar/sos_dispatch/internal/handler/ws"
	"github.com/shenikar/sos_dispatch/internal/ledger"
	"github.com/shenikar/sos_dispatch/internal/locator"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/shenikar/sos_dispatch/internal/registry"
	"github.com/shenikar/sos_dispatch/internal/repository"
	"github.com/shenikar/sos_dispatch/internal/service"
	"github.com/shenikar/sos_dispatch/internal/webhook"
	"github.com/shenikar/sos_dispatch/pkg/logger"
	"github.com/shenikar/sos_dispatch/pkg/postgres"
	redisclient "github.com/shenikar/sos_dispatch/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/sos_dispatch/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title SOS Dispatch API
// @version 1.0
// @description Emergency SOS intake, responder dispatch and real-time notification service.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище журнала и справочник ответчиков
	var (
		store  ledger.Store
		loader locator.Loader
		dbpool *pgxpool.Pool
	)
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		if err := runMigrations(cfg, log); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
		dbpool, err = postgres.NewPostgresDB(ctx, cfg, log)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbpool.Close()
		log.Info("Successfully connected to PostgreSQL")

		store = repository.NewEventStore(dbpool)
		loader = repository.NewResponderRepository(dbpool)
	default:
		log.Warn("Using in-memory storage, incidents are lost on restart")
		store = ledger.NewMemoryStore()
		if cfg.RespondersFile != "" {
			loader = locator.FileLoader(cfg.RespondersFile)
		} else {
			loader = locator.StaticLoader{}
		}
	}

	// Redis обслуживает окно идемпотентности и очередь оповещения контактов
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = redisclient.NewRedisClient(ctx, cfg)
		switch {
		case err == nil:
			defer redisClient.Close()
			log.Info("Successfully connected to Redis")
		case cfg.StorageDriver == config.StorageDriverPostgres:
			log.Fatalf("Failed to connect to Redis: %v", err)
		default:
			log.WithError(err).Warn("Redis unavailable, using in-memory idempotency and no contact alerts")
			redisClient = nil
		}
	}

	var (
		idempotency service.IdempotencyStore
		alerter     service.ContactAlerter
	)
	if redisClient != nil {
		idempotency = repository.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyWindow)
		alerter = webhook.NewRedisAlertPublisher(redisClient)
	} else {
		idempotency = service.NewMemoryIdempotencyStore(cfg.IdempotencyWindow)
	}

	// Снимок ответчиков и локатор
	snapshot := locator.NewSnapshot(loader, log)
	if n, err := snapshot.Refresh(ctx); err != nil {
		log.WithError(err).Warn("Initial responder load failed, SOS will be rejected until the next refresh")
	} else {
		log.WithField("count", n).Info("Responder snapshot loaded")
	}

	// Реестр соединений и канал уведомлений
	connections := registry.New(log)
	channel := notify.New(connections, notify.NewReplayBuffer(cfg.ReplayBufferSize, cfg.ReplayBufferTTL), log)

	// Инициализация сервисов
	incidentService := service.NewIncidentService(
		ledger.New(store, log),
		locator.New(snapshot),
		channel,
		idempotency,
		alerter,
		cfg,
		log,
	)

	// Инициализация хэндлеров
	verifier := auth.NewVerifier(cfg.JWTSecret)
	handler := v1.NewHandler(incidentService, verifier, v1.AdminDeps{
		Responders:  snapshot,
		Connections: connections,
		Delivery:    channel,
	}, log, cfg)
	wsHandler := ws.NewHandler(verifier, connections, channel, incidentService, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	wsHandler.RegisterRoutes(router)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return snapshot.Run(gctx, cfg.ResponderRefreshInterval)
	})

	if redisClient != nil {
		worker := webhook.NewAlertWorker(redisClient, log, cfg)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	g.Go(func() error {
		log.Infof("HTTP server started on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Received shutdown signal, shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// websocket-сессии не отслеживаются http.Server после hijack
		connections.Close()
		incidentService.Close()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Shutdown with error: %v", err)
		return
	}
	log.Info("Server gracefully stopped")
}
