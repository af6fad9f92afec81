package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
)

// Filters — фильтры поиска capabilities.
type Filters struct {
	// Category — точное совпадение категории.
	Category string

	// Runner — точное совпадение вида runner'а.
	Runner string

	// RequesterID — оставить только capabilities, которые requester
	// авторизован вызывать.
	RequesterID string
}

// Search возвращает descriptors, подходящие под запрос и фильтры,
// отсортированные по ID.
//
// query сопоставляется без учёта регистра с ID и категорией.
func (r *Registry) Search(ctx context.Context, query string, f Filters) ([]domain.CapabilityDescriptor, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}

	q := strings.ToLower(query)

	var out []domain.CapabilityDescriptor
	for i := range all {
		d := &all[i]
		if f.Category != "" && d.Category != f.Category {
			continue
		}
		if f.Runner != "" && d.Runner != f.Runner {
			continue
		}
		if f.RequesterID != "" && !d.IsAuthorized(f.RequesterID) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(d.ID), q) &&
			!strings.Contains(strings.ToLower(d.Category), q) {
			continue
		}
		out = append(out, *d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FirstInCategory возвращает descriptor категории с наименьшим ID
// среди авторизующих requester.
//
// Используется engine'ом как детерминированный fallback, когда
// объявленная в шаге capability не авторизует исполнителя.
func (r *Registry) FirstInCategory(ctx context.Context, category, requesterID string) (*domain.CapabilityDescriptor, error) {
	matches, err := r.Search(ctx, "", Filters{Category: category, RequesterID: requesterID})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no authorized capability in category %q", ErrNotFound, category)
	}
	return &matches[0], nil
}

// Stats — агрегированные показатели одной capability.
type Stats struct {
	CapabilityID     string     `json:"capability_id"`
	InvocationCount  int64      `json:"invocation_count"`
	SuccessRate      float64    `json:"success_rate"`
	AverageLatencyMs float64    `json:"average_latency_ms"`
	LastInvokedAt    *time.Time `json:"last_invoked_at,omitempty"`
}

// StatsFor возвращает показатели capability.
func (r *Registry) StatsFor(ctx context.Context, capabilityID string) (*Stats, error) {
	d, err := r.load(ctx, capabilityID)
	if err != nil {
		return nil, err
	}
	return &Stats{
		CapabilityID:     d.ID,
		InvocationCount:  d.Invocations,
		SuccessRate:      d.SuccessRate(),
		AverageLatencyMs: d.AverageLatencyMs(),
		LastInvokedAt:    d.LastInvokedAt,
	}, nil
}
