// Dirigent Engine — исполняет tasks.
//
// Engine:
//   - Получает команды task.pending из RabbitMQ
//   - Периодически опрашивает хранилище как fallback
//   - Выполняет шаги template строго последовательно
//   - Фиксирует результаты шагов и финальный статус task
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/mq"
	"github.com/shaiso/Dirigent/internal/repo"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting dirigent-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	taskRepo := repo.NewTaskRepo(pool)
	templateRepo := repo.NewTemplateRepo(pool)
	capabilityRepo := repo.NewCapabilityRepo(pool)

	// RabbitMQ
	var mqConn *mq.Connection
	var eventPub events.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, "dirigent-engine", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		eventPub = mq.NewEventBridge(mq.NewPublisher(mqConn, logger), logger)
	}

	// Собираем ядро
	cat := catalog.New(templateRepo, logger)
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
		Logger:       logger,
	})

	// Запускаем engine
	if err := eng.Start(ctx, mqConn); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем engine
	eng.Stop()
	logger.Info("dirigent-engine stopped")
}
