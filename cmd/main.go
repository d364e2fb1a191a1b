package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shenikar/hazard_reporting_system/internal/audit"
	"github.com/shenikar/hazard_reporting_system/internal/classifier"
	"github.com/shenikar/hazard_reporting_system/internal/config"
	"github.com/shenikar/hazard_reporting_system/internal/geocoder"
	v1 "github.com/shenikar/hazard_reporting_system/internal/handler/http/v1"
	"github.com/shenikar/hazard_reporting_system/internal/imagestore"
	"github.com/shenikar/hazard_reporting_system/internal/observability"
	"github.com/shenikar/hazard_reporting_system/internal/repository"
	"github.com/shenikar/hazard_reporting_system/internal/service"
	"github.com/shenikar/hazard_reporting_system/pkg/logger"
	"github.com/shenikar/hazard_reporting_system/pkg/postgres"
	redisclient "github.com/shenikar/hazard_reporting_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/hazard_reporting_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Hazard Reporting System API
// @version 1.0
// @description Citizen hazard report intake, classification, geocoding, routing and resolution tracking.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Инициализация хранилища снимков
	store, err := imagestore.New(ctx, cfg.GCSBucket, cfg.GCSUploadPath, log)
	if err != nil {
		log.Fatalf("Failed to create image store: %v", err)
	}
	defer store.Close()
	log.Info("Successfully connected to image storage")

	// Клиенты внешних сервисов обогащения
	hazardClassifier := classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout, log)
	locationResolver := geocoder.NewNominatimClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, log)

	// Инициализация издателя событий аудита
	auditPublisher := audit.NewRedisPublisher(redisClient)

	// Инициализация и запуск воркера доставки аудита
	auditWorker := audit.NewWorker(redisClient, log, cfg)
	auditWorker.Start(ctx)

	// Метрики
	metrics := observability.NewMetrics()

	// Инициализация репозиториев
	reportRepo := repository.NewReportRepository(dbpool, redisClient)

	// Инициализация сервисов
	reportService := service.NewReportService(
		reportRepo,
		store,
		hazardClassifier,
		locationResolver,
		service.NewMayorRouter(),
		auditPublisher,
		metrics,
		clockwork.NewRealClock(),
		log,
	)

	// Инициализация хэндлеров
	handler := v1.NewHandler(reportService, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	api.Use(v1.APIKeyAuthMiddleware(cfg, log))
	handler.RegisterRoutes(api)

	// Маршруты для Swagger UI и метрик Prometheus
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
