package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/store"
)

// Registry — реестр разделяемых resources.
type Registry struct {
	store  store.ResourceStore
	events events.Publisher
	logger *slog.Logger

	// versioning — архивировать ли снимок перед каждым update.
	versioning bool

	// mu защищает locks и resMu.
	mu sync.Mutex

	// locks — живые locks (resourceID → lock).
	// Истёкшие записи вычищаются лениво при обращении и sweep'ом.
	locks map[uuid.UUID]*domain.Lock

	// resMu — per-resource мьютексы, сериализующие read-modify-write
	// версии и содержимого.
	resMu map[uuid.UUID]*sync.Mutex
}

// Config — конфигурация Registry.
type Config struct {
	// Store — хранилище resources.
	Store store.ResourceStore

	// Events — канал уведомлений (опционально).
	Events events.Publisher

	// Versioning — включить архивные снимки (default: true).
	Versioning *bool

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Registry.
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := cfg.Events
	if pub == nil {
		pub = events.Nop{}
	}
	versioning := true
	if cfg.Versioning != nil {
		versioning = *cfg.Versioning
	}
	return &Registry{
		store:      cfg.Store,
		events:     pub,
		logger:     logger,
		versioning: versioning,
		locks:      make(map[uuid.UUID]*domain.Lock),
		resMu:      make(map[uuid.UUID]*sync.Mutex),
	}
}

// RegisterParams — параметры регистрации resource.
type RegisterParams struct {
	Name        string
	Type        string
	Content     []byte
	OwnerID     string
	AccessLevel domain.AccessLevel
	Tags        []string
}

// Register регистрирует новый resource с версией 1.
func (r *Registry) Register(ctx context.Context, p RegisterParams) (*domain.Resource, error) {
	if p.Name == "" || p.Type == "" || len(p.Content) == 0 {
		return nil, fmt.Errorf("%w: name, type and content are required", ErrInvalidResource)
	}

	level := p.AccessLevel
	if level == "" {
		level = domain.AccessPrivate
	}

	now := time.Now()
	res := &domain.Resource{
		ID:          uuid.New(),
		Name:        p.Name,
		Type:        p.Type,
		Content:     p.Content,
		Version:     1,
		AccessLevel: level,
		OwnerID:     p.OwnerID,
		Tags:        p.Tags,
		Checksum:    domain.ComputeChecksum(p.Content),
		Size:        int64(len(p.Content)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.Put(ctx, res); err != nil {
		return nil, fmt.Errorf("put resource: %w", err)
	}

	r.events.Publish(ctx, events.New(events.KindResourceRegistered, map[string]any{
		"resource_id": res.ID.String(),
		"name":        res.Name,
		"owner_id":    res.OwnerID,
	}))

	r.logger.Debug("resource registered",
		"resource_id", res.ID,
		"name", res.Name,
		"size", res.Size,
	)
	return res, nil
}

// Get возвращает resource с проверкой прав чтения.
func (r *Registry) Get(ctx context.Context, id uuid.UUID, requesterID string) (*domain.Resource, error) {
	res, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.CanRead(requesterID) {
		return nil, fmt.Errorf("%w: resource %s is not readable by %s", ErrAccessDenied, id, requesterID)
	}
	return res, nil
}

// Update заменяет содержимое resource и увеличивает версию на 1.
//
// Только владелец может обновлять. Конкурентные update одного resource
// сериализуются per-resource мьютексом: версия никогда не пропускается
// и не дублируется. При включённом versioning снимок пред-обновлённого
// состояния архивируется до записи.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, requesterID string, newContent []byte) (*domain.Resource, error) {
	if len(newContent) == 0 {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidResource)
	}

	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	res, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsOwner(requesterID) {
		return nil, fmt.Errorf("%w: only owner %s may update resource %s", ErrAccessDenied, res.OwnerID, id)
	}

	if r.versioning {
		snapshot := &domain.ResourceVersion{
			ResourceID: res.ID,
			Version:    res.Version,
			Content:    res.Content,
			Checksum:   res.Checksum,
			Size:       res.Size,
			ArchivedAt: time.Now(),
		}
		if err := r.store.PutVersion(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("archive version %d: %w", res.Version, err)
		}
	}

	res.Content = newContent
	res.Version++
	res.Checksum = domain.ComputeChecksum(newContent)
	res.Size = int64(len(newContent))
	res.UpdatedAt = time.Now()

	if err := r.store.Put(ctx, res); err != nil {
		return nil, fmt.Errorf("put resource: %w", err)
	}

	r.events.Publish(ctx, events.New(events.KindResourceUpdated, map[string]any{
		"resource_id": res.ID.String(),
		"version":     res.Version,
	}))

	r.logger.Debug("resource updated",
		"resource_id", res.ID,
		"version", res.Version,
	)
	return res, nil
}

// Delete удаляет resource, его архивные версии и lock. Только владелец.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID, requesterID string) error {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	res, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if !res.IsOwner(requesterID) {
		return fmt.Errorf("%w: only owner %s may delete resource %s", ErrAccessDenied, res.OwnerID, id)
	}

	if err := r.store.DeleteVersions(ctx, id); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	r.mu.Lock()
	delete(r.locks, id)
	delete(r.resMu, id)
	r.updateLockGauge()
	r.mu.Unlock()

	r.events.Publish(ctx, events.New(events.KindResourceDeleted, map[string]any{
		"resource_id": id.String(),
	}))
	return nil
}

// Share выдаёт grantee права на resource без передачи владения.
// Только владелец.
func (r *Registry) Share(ctx context.Context, id uuid.UUID, requesterID, granteeID string, level domain.GrantLevel) (*domain.Resource, error) {
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	res, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsOwner(requesterID) {
		return nil, fmt.Errorf("%w: only owner %s may share resource %s", ErrAccessDenied, res.OwnerID, id)
	}

	if res.Grants == nil {
		res.Grants = make(map[string]domain.GrantLevel)
	}
	res.Grants[granteeID] = level
	res.UpdatedAt = time.Now()

	if err := r.store.Put(ctx, res); err != nil {
		return nil, fmt.Errorf("put resource: %w", err)
	}

	r.events.Publish(ctx, events.New(events.KindResourceShared, map[string]any{
		"resource_id": id.String(),
		"grantee_id":  granteeID,
		"level":       string(level),
	}))
	return res, nil
}

// Versions возвращает архивные снимки resource по возрастанию версии.
// Права — как у Get.
func (r *Registry) Versions(ctx context.Context, id uuid.UUID, requesterID string) ([]domain.ResourceVersion, error) {
	res, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.CanRead(requesterID) {
		return nil, fmt.Errorf("%w: resource %s is not readable by %s", ErrAccessDenied, id, requesterID)
	}
	versions, err := r.store.ListVersions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// load читает resource из store, транслируя ErrNotFound.
func (r *Registry) load(ctx context.Context, id uuid.UUID) (*domain.Resource, error) {
	res, err := r.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return res, nil
}

// lockFor возвращает per-resource мьютекс, создавая при необходимости.
func (r *Registry) lockFor(id uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	mu, ok := r.resMu[id]
	if !ok {
		mu = &sync.Mutex{}
		r.resMu[id] = mu
	}
	return mu
}
