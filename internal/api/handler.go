package api

import (
	"log/slog"

	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/mq"
	"github.com/shaiso/Dirigent/internal/resource"
	"github.com/shaiso/Dirigent/internal/store"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	catalog      *catalog.Catalog
	engine       *engine.Engine
	resources    *resource.Registry
	capabilities *capability.Registry
	schedules    store.ScheduleStore
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Catalog      *catalog.Catalog
	Engine       *engine.Engine
	Resources    *resource.Registry
	Capabilities *capability.Registry
	Schedules    store.ScheduleStore

	// Publisher — для асинхронного запуска tasks (опционально).
	Publisher *mq.Publisher

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		catalog:      cfg.Catalog,
		engine:       cfg.Engine,
		resources:    cfg.Resources,
		capabilities: cfg.Capabilities,
		schedules:    cfg.Schedules,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}

// requesterID извлекает идентификатор вызывающей стороны из заголовка.
// Заголовок опционален: без него операции идут от имени "api".
const requesterHeader = "X-Requester-ID"

func requesterID(headerValue string) string {
	if headerValue == "" {
		return "api"
	}
	return headerValue
}
