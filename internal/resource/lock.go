package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/events"
	"github.com/shaiso/Dirigent/internal/telemetry"
)

// Lock захватывает advisory эксклюзивный lock на resource.
//
// Живой lock другого holder'а — ErrAlreadyLocked (без ожидания).
// Повторный захват тем же holder'ом — идемпотентный refresh: срок
// истечения сдвигается на now + timeout. Истёкший lock считается
// отсутствующим и молча перехватывается следующим заявителем.
func (r *Registry) Lock(ctx context.Context, id uuid.UUID, holderID string, timeout time.Duration) (*domain.Lock, error) {
	if _, err := r.load(ctx, id); err != nil {
		return nil, err
	}

	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.locks[id]; ok && !existing.Expired(now) && existing.HolderID != holderID {
		return nil, fmt.Errorf("%w: resource %s held by %s until %s",
			ErrAlreadyLocked, id, existing.HolderID, existing.ExpiresAt.Format(time.RFC3339))
	}

	lock := &domain.Lock{
		ResourceID: id,
		HolderID:   holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(timeout),
	}
	r.locks[id] = lock
	r.updateLockGauge()

	r.events.Publish(ctx, events.New(events.KindResourceLocked, map[string]any{
		"resource_id": id.String(),
		"holder_id":   holderID,
		"expires_at":  lock.ExpiresAt,
	}))

	cp := *lock
	return &cp, nil
}

// Unlock снимает lock.
//
// Отсутствие живого lock — no-op. Живой lock другого holder'а —
// ErrNotLockHolder.
func (r *Registry) Unlock(ctx context.Context, id uuid.UUID, holderID string) error {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.locks[id]
	if !ok || existing.Expired(now) {
		delete(r.locks, id)
		r.updateLockGauge()
		return nil
	}
	if existing.HolderID != holderID {
		return fmt.Errorf("%w: resource %s held by %s", ErrNotLockHolder, id, existing.HolderID)
	}

	delete(r.locks, id)
	r.updateLockGauge()

	r.events.Publish(ctx, events.New(events.KindResourceUnlocked, map[string]any{
		"resource_id": id.String(),
		"holder_id":   holderID,
	}))
	return nil
}

// LiveLock возвращает живой lock resource, если он есть.
func (r *Registry) LiveLock(id uuid.UUID) (*domain.Lock, bool) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[id]
	if !ok {
		return nil, false
	}
	if lock.Expired(now) {
		delete(r.locks, id)
		r.updateLockGauge()
		return nil, false
	}
	cp := *lock
	return &cp, true
}

// SweepExpiredLocks удаляет истёкшие записи locks.
// Вызывается scheduler'ом; корректность не зависит от sweep'а —
// истечение и так проверяется лениво при каждом обращении.
func (r *Registry) SweepExpiredLocks(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for id, lock := range r.locks {
		if lock.Expired(now) {
			delete(r.locks, id)
			swept++
		}
	}
	r.updateLockGauge()
	return swept
}

// updateLockGauge обновляет метрику числа записей locks.
// Вызывается под r.mu после каждой мутации r.locks.
func (r *Registry) updateLockGauge() {
	telemetry.ResourceLocks.Set(float64(len(r.locks)))
}

// lockedCount возвращает число живых locks.
func (r *Registry) lockedCount(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, lock := range r.locks {
		if !lock.Expired(now) {
			count++
		}
	}
	return count
}
