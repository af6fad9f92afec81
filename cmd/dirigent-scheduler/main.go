// Dirigent Scheduler — создаёт tasks по расписаниям.
//
// Scheduler работает в несколько реплик; лидером на каждый тик
// становится инстанс, удерживающий pg advisory lock. Остальные
// реплики пропускают тики и ждут освобождения lock.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/mq"
	"github.com/shaiso/Dirigent/internal/repo"
	"github.com/shaiso/Dirigent/internal/resource"
	"github.com/shaiso/Dirigent/internal/scheduler"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

const schedLockKey int64 = 731031

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting dirigent-scheduler")

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
	resourceRepo := repo.NewResourceRepo(pool)
	capabilityRepo := repo.NewCapabilityRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ (опционально: без него AutoExecute не публикуется,
	// engine подхватит tasks через polling)
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, "dirigent-scheduler", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Собираем ядро: scheduler создаёт tasks через engine
	cat := catalog.New(templateRepo, logger)
	resources := resource.New(resource.Config{
		Store:  resourceRepo,
		Logger: logger,
	})
	capabilities := capability.New(capability.Config{
		Store:  capabilityRepo,
		Logger: logger,
	})
	eng := engine.New(engine.Config{
		Tasks:        taskRepo,
		Catalog:      cat,
		Capabilities: capabilities,
		HolderID:     "scheduler",
		Logger:       logger,
	})

	sched := scheduler.New(scheduler.Config{
		Schedules: scheduleRepo,
		Engine:    eng,
		Resources: resources,
		Publisher: publisher,
		Logger:    logger,
	})

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("leader lock error", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("tick error", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("dirigent-scheduler stopped")
}
