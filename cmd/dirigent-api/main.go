// Dirigent API — HTTP-сервер управления платформой.
//
// API:
//   - Публикация и версионирование workflow templates
//   - Создание, запуск и отмена tasks
//   - Управление shared resources и advisory locks
//   - Регистрация и вызов capabilities
//   - Управление schedules
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Dirigent/internal/api"
	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/mq"
	"github.com/shaiso/Dirigent/internal/repo"
	"github.com/shaiso/Dirigent/internal/resource"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting dirigent-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	taskRepo := repo.NewTaskRepo(pool)
	templateRepo := repo.NewTemplateRepo(pool)
	resourceRepo := repo.NewResourceRepo(pool)
	capabilityRepo := repo.NewCapabilityRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ (опционально: без него execute работает через горутину)
	var publisher *mq.Publisher
	var eventPub events.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, "dirigent-api", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, async execution falls back to in-process", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
		eventPub = mq.NewEventBridge(publisher, logger)
	}

	// Собираем ядро
	cat := catalog.New(templateRepo, logger)
	resources := resource.New(resource.Config{
		Store:  resourceRepo,
		Events: eventPub,
		Logger: logger,
	})
	capabilities := capability.New(capability.Config{
		Store:  capabilityRepo,
		Events: eventPub,
		Logger: logger,
	})
	eng := engine.New(engine.Config{
		Tasks:        taskRepo,
		Catalog:      cat,
		Capabilities: capabilities,
		Events:       eventPub,
		HolderID:     "api",
		Logger:       logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Catalog:      cat,
		Engine:       eng,
		Resources:    resources,
		Capabilities: capabilities,
		Schedules:    scheduleRepo,
		Publisher:    publisher,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
