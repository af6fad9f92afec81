package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/invoker"
	"github.com/shaiso/Dirigent/internal/store"
)

// failingRunner всегда возвращает логическую ошибку.
type failingRunner struct{}

func (r *failingRunner) Run(_ context.Context, _, _ map[string]any) (*invoker.Output, error) {
	return &invoker.Output{Error: "downstream unavailable"}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	runners := invoker.NewRegistry()
	runners.Register("failing", &failingRunner{})
	return New(Config{
		Store:   store.NewMemoryCapabilityStore(),
		Runners: runners,
	})
}

func mustRegister(t *testing.T, r *Registry, d *domain.CapabilityDescriptor) *domain.CapabilityDescriptor {
	t.Helper()
	reg, err := r.Register(context.Background(), d)
	if err != nil {
		t.Fatalf("register %s: %v", d.ID, err)
	}
	return reg
}

func TestRegister_Validation(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Register(context.Background(), &domain.CapabilityDescriptor{ID: "x"})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("expected ErrInvalidDescriptor, got %v", err)
	}

	_, err = r.Register(context.Background(), &domain.CapabilityDescriptor{Runner: "echo"})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("expected ErrInvalidDescriptor, got %v", err)
	}
}

func TestRegister_PreservesCounters(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first := mustRegister(t, r, &domain.CapabilityDescriptor{ID: "echo", Runner: "echo"})

	// Накручиваем счётчики вызовом
	if _, err := r.Invoke(ctx, "echo", map[string]any{"k": "v"}, "alice", 0); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	// Перерегистрация меняет авторизацию, но не счётчики
	second := mustRegister(t, r, &domain.CapabilityDescriptor{
		ID:                "echo",
		Runner:            "echo",
		AuthorizedHolders: []string{"alice"},
	})

	if second.Invocations != 1 {
		t.Errorf("expected invocations preserved, got %d", second.Invocations)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("CreatedAt should survive re-registration")
	}
	if len(second.AuthorizedHolders) != 1 {
		t.Error("authorization should be replaced")
	}
}

func TestInvoke_NotFound(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Invoke(context.Background(), "ghost", nil, "alice", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInvoke_Unauthorized(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, &domain.CapabilityDescriptor{
		ID:                "restricted",
		Runner:            "echo",
		AuthorizedHolders: []string{"alice"},
	})

	_, err := r.Invoke(context.Background(), "restricted", nil, "bob", 0)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// Структурный отказ не попадает в счётчики
	d, _ := r.Get(context.Background(), "restricted")
	if d.Invocations != 0 {
		t.Errorf("structural refusal must not count, got %d invocations", d.Invocations)
	}
}

func TestInvoke_SchemaViolation(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, &domain.CapabilityDescriptor{
		ID:     "strict",
		Runner: "echo",
		InputSchema: &domain.Schema{
			Required: []string{"message"},
		},
	})

	_, err := r.Invoke(context.Background(), "strict", map[string]any{}, "alice", 0)
	if !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("expected ErrSchemaViolation, got %v", err)
	}

	d, _ := r.Get(context.Background(), "strict")
	if d.Invocations != 0 {
		t.Errorf("schema refusal must not count, got %d invocations", d.Invocations)
	}
}

func TestInvoke_Success(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "echo", Runner: "echo"})

	res, err := r.Invoke(context.Background(), "echo", map[string]any{"k": "v"}, "alice", 0)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success, got error %q", res.Error)
	}
	if res.Output["k"] != "v" {
		t.Error("echo should return input")
	}

	d, _ := r.Get(context.Background(), "echo")
	if d.Invocations != 1 || d.Successes != 1 || d.Failures != 0 {
		t.Errorf("unexpected counters: inv=%d succ=%d fail=%d", d.Invocations, d.Successes, d.Failures)
	}
	if d.LastInvokedAt == nil {
		t.Error("LastInvokedAt should be set")
	}
}

func TestInvoke_UnimplementedRunner(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "future", Runner: "quantum"})

	res, err := r.Invoke(context.Background(), "future", nil, "alice", 0)
	if err != nil {
		t.Fatalf("unimplemented runner should not return error, got %v", err)
	}
	if res.Success {
		t.Error("expected failure result")
	}
	if res.Error == "" {
		t.Error("expected error message in result")
	}

	// Нереализованный runner — это неуспешный вызов, он считается
	d, _ := r.Get(context.Background(), "future")
	if d.Invocations != 1 || d.Failures != 1 {
		t.Errorf("unexpected counters: inv=%d fail=%d", d.Invocations, d.Failures)
	}
}

func TestInvoke_LogicalFailureCounted(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "flaky", Runner: "failing"})

	res, err := r.Invoke(context.Background(), "flaky", nil, "alice", 0)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Success {
		t.Error("expected failure result")
	}
	if res.Error != "downstream unavailable" {
		t.Errorf("unexpected error: %q", res.Error)
	}

	d, _ := r.Get(context.Background(), "flaky")
	if d.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", d.Failures)
	}
}

func TestInvoke_Timeout(t *testing.T) {
	r := newTestRegistry(t)
	mustRegister(t, r, &domain.CapabilityDescriptor{
		ID:     "slow",
		Runner: "delay",
		Config: map[string]any{"duration_sec": 5},
	})

	started := time.Now()
	res, err := r.Invoke(context.Background(), "slow", nil, "alice", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Success {
		t.Error("expected timeout failure")
	}
	if time.Since(started) > 2*time.Second {
		t.Error("invocation should have been cut off by timeout")
	}
}

func TestStatsFor(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "echo", Runner: "echo"})
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "flaky", Runner: "failing"})

	for i := 0; i < 3; i++ {
		if _, err := r.Invoke(ctx, "echo", nil, "alice", 0); err != nil {
			t.Fatalf("invoke: %v", err)
		}
	}
	if _, err := r.Invoke(ctx, "flaky", nil, "alice", 0); err != nil {
		t.Fatalf("invoke: %v", err)
	}

	stats, err := r.StatsFor(ctx, "echo")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.InvocationCount != 3 {
		t.Errorf("expected 3 invocations, got %d", stats.InvocationCount)
	}
	if stats.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %f", stats.SuccessRate)
	}

	flaky, err := r.StatsFor(ctx, "flaky")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if flaky.SuccessRate != 0 {
		t.Errorf("expected success rate 0, got %f", flaky.SuccessRate)
	}
}

func TestSearch(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "http.fetch", Category: "transport", Runner: "http"})
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "http.post", Category: "transport", Runner: "http"})
	mustRegister(t, r, &domain.CapabilityDescriptor{
		ID: "report.render", Category: "transform", Runner: "transform",
		AuthorizedHolders: []string{"alice"},
	})

	tests := []struct {
		name    string
		query   string
		filters Filters
		want    []string
	}{
		{"all sorted by id", "", Filters{}, []string{"http.fetch", "http.post", "report.render"}},
		{"by category", "", Filters{Category: "transport"}, []string{"http.fetch", "http.post"}},
		{"by runner", "", Filters{Runner: "transform"}, []string{"report.render"}},
		{"by requester", "", Filters{RequesterID: "bob"}, []string{"http.fetch", "http.post"}},
		{"by query", "report", Filters{}, []string{"report.render"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Search(ctx, tt.query, tt.filters)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("result %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestFirstInCategory(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "b.second", Category: "transport", Runner: "echo"})
	mustRegister(t, r, &domain.CapabilityDescriptor{ID: "a.first", Category: "transport", Runner: "echo"})

	d, err := r.FirstInCategory(ctx, "transport", "engine")
	if err != nil {
		t.Fatalf("first in category: %v", err)
	}
	if d.ID != "a.first" {
		t.Errorf("expected lowest ID a.first, got %s", d.ID)
	}

	// Capability с наименьшим ID не авторизует requester — берётся следующая
	mustRegister(t, r, &domain.CapabilityDescriptor{
		ID: "a.first", Category: "transport", Runner: "echo",
		AuthorizedHolders: []string{"someone-else"},
	})

	d, err = r.FirstInCategory(ctx, "transport", "engine")
	if err != nil {
		t.Fatalf("first in category: %v", err)
	}
	if d.ID != "b.second" {
		t.Errorf("expected b.second after a.first lost authorization, got %s", d.ID)
	}

	if _, err := r.FirstInCategory(ctx, "nothing", "engine"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
