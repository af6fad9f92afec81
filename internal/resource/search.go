package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shaiso/Dirigent/internal/domain"
)

// Filters — фильтры поиска resources.
type Filters struct {
	// Type — точное совпадение типа.
	Type string

	// OwnerID — точное совпадение владельца.
	OwnerID string

	// Tags — resource должен нести все перечисленные теги.
	Tags []string

	// AccessLevel — точное совпадение уровня доступа.
	AccessLevel domain.AccessLevel

	// From/To — диапазон по UpdatedAt (нулевое время — без границы).
	From time.Time
	To   time.Time
}

// Search возвращает resources, подходящие под запрос и фильтры,
// отсортированные по убыванию UpdatedAt.
//
// query сопоставляется без учёта регистра с именем, тегами и — для
// текстового содержимого — с подстрокой содержимого. Пустой query
// пропускает все resources (работают только фильтры).
func (r *Registry) Search(ctx context.Context, query string, f Filters) ([]domain.Resource, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	q := strings.ToLower(query)

	var out []domain.Resource
	for i := range all {
		res := &all[i]
		if !matchesFilters(res, f) {
			continue
		}
		if q != "" && !matchesQuery(res, q) {
			continue
		}
		out = append(out, *res)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func matchesFilters(res *domain.Resource, f Filters) bool {
	if f.Type != "" && res.Type != f.Type {
		return false
	}
	if f.OwnerID != "" && res.OwnerID != f.OwnerID {
		return false
	}
	if f.AccessLevel != "" && res.AccessLevel != f.AccessLevel {
		return false
	}
	for _, tag := range f.Tags {
		if !hasTag(res, tag) {
			return false
		}
	}
	if !f.From.IsZero() && res.UpdatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && res.UpdatedAt.After(f.To) {
		return false
	}
	return true
}

func matchesQuery(res *domain.Resource, q string) bool {
	if strings.Contains(strings.ToLower(res.Name), q) {
		return true
	}
	for _, tag := range res.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	if utf8.Valid(res.Content) && strings.Contains(strings.ToLower(string(res.Content)), q) {
		return true
	}
	return false
}

func hasTag(res *domain.Resource, tag string) bool {
	for _, t := range res.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Stats — агрегированная статистика registry.
type Stats struct {
	TotalResources int                        `json:"total_resources"`
	TotalSize      int64                      `json:"total_size"`
	ByType         map[string]int             `json:"by_type"`
	ByOwner        map[string]int             `json:"by_owner"`
	ByAccessLevel  map[domain.AccessLevel]int `json:"by_access_level"`
	LockedCount    int                        `json:"locked_count"`
}

// Stats возвращает агрегированную статистику по всем resources.
func (r *Registry) Stats(ctx context.Context) (*Stats, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	stats := &Stats{
		ByType:        make(map[string]int),
		ByOwner:       make(map[string]int),
		ByAccessLevel: make(map[domain.AccessLevel]int),
	}
	for i := range all {
		res := &all[i]
		stats.TotalResources++
		stats.TotalSize += res.Size
		stats.ByType[res.Type]++
		stats.ByOwner[res.OwnerID]++
		stats.ByAccessLevel[res.AccessLevel]++
	}
	stats.LockedCount = r.lockedCount(time.Now())
	return stats, nil
}
