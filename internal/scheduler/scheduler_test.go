package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Dirigent/internal/capability"
	"github.com/shaiso/Dirigent/internal/catalog"
	"github.com/shaiso/Dirigent/internal/domain"
	"github.com/shaiso/Dirigent/internal/engine"
	"github.com/shaiso/Dirigent/internal/store"
)

// --- CalculateNextDue Tests ---

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 300, Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(5 * time.Minute)) {
		t.Errorf("expected %v, got %v", from.Add(5*time.Minute), next)
	}
}

func TestCalculateNextDue_Cron(t *testing.T) {
	// Каждый день в 9:00
	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, next)
	}
}

func TestCalculateNextDue_CronWithTimezone(t *testing.T) {
	// 9:00 по Москве — 6:00 UTC
	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, next)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 60, Timezone: "Not/AZone"}
	from := time.Now()

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Before(from) {
		t.Error("next due should be in the future")
	}
}

func TestCalculateNextDue_CronTakesPrecedence(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 9 * * *", IntervalSec: 60, Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Equal(from.Add(time.Minute)) {
		t.Error("cron expression should take precedence over interval")
	}
}

func TestCalculateNextDue_NeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for schedule without cron or interval")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
	if err := ValidateCronExpr("0 9 * *"); err == nil {
		t.Error("four-field expression accepted")
	}
}

// --- Tick Tests ---

type tickFixture struct {
	scheduler *Scheduler
	schedules *store.MemoryScheduleStore
	tasks     *store.MemoryTaskStore
	catalog   *catalog.Catalog
	template  *domain.WorkflowTemplate
}

func newTickFixture(t *testing.T) *tickFixture {
	t.Helper()

	caps := capability.New(capability.Config{Store: store.NewMemoryCapabilityStore()})
	cat := catalog.New(store.NewMemoryTemplateStore(), nil)
	tasks := store.NewMemoryTaskStore()
	schedules := store.NewMemoryScheduleStore()

	eng := engine.New(engine.Config{
		Tasks:        tasks,
		Catalog:      cat,
		Capabilities: caps,
	})

	tpl, err := cat.Publish(context.Background(), &domain.WorkflowTemplate{
		Name:  "nightly",
		Steps: []domain.Step{{Ordinal: 1, Capability: "echo"}},
	})
	if err != nil {
		t.Fatalf("publish template: %v", err)
	}

	return &tickFixture{
		scheduler: New(Config{Schedules: schedules, Engine: eng}),
		schedules: schedules,
		tasks:     tasks,
		catalog:   cat,
		template:  tpl,
	}
}

func (f *tickFixture) putSchedule(t *testing.T, sched *domain.Schedule) {
	t.Helper()
	if err := f.schedules.Put(context.Background(), sched); err != nil {
		t.Fatalf("put schedule: %v", err)
	}
}

func dueSchedule(templateID uuid.UUID) *domain.Schedule {
	past := time.Now().Add(-time.Minute)
	return &domain.Schedule{
		ID:          uuid.New(),
		TemplateID:  templateID,
		Name:        "nightly-run",
		IntervalSec: 3600,
		Timezone:    "UTC",
		Enabled:     true,
		NextDueAt:   &past,
	}
}

func TestTick_CreatesTaskAndAdvances(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	sched := dueSchedule(f.template.ID)
	f.putSchedule(t, sched)

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	all, _ := f.tasks.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 task, got %d", len(all))
	}
	if all[0].TemplateID != f.template.ID {
		t.Error("task should reference schedule template")
	}

	updated, err := f.schedules.Get(ctx, sched.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if updated.NextDueAt == nil || !updated.NextDueAt.After(time.Now()) {
		t.Error("next due should be advanced into the future")
	}
	if updated.LastTaskID == nil || *updated.LastTaskID != all[0].ID {
		t.Error("last task id should be recorded")
	}
	if updated.LastRunAt == nil {
		t.Error("last run time should be recorded")
	}
}

func TestTick_SkipsDisabledAndNotDue(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	disabled := dueSchedule(f.template.ID)
	disabled.Enabled = false
	f.putSchedule(t, disabled)

	future := time.Now().Add(time.Hour)
	notDue := dueSchedule(f.template.ID)
	notDue.NextDueAt = &future
	f.putSchedule(t, notDue)

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	all, _ := f.tasks.List(ctx)
	if len(all) != 0 {
		t.Errorf("expected no tasks, got %d", len(all))
	}
}

func TestTick_IdempotencyBlocksDuplicate(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	sched := dueSchedule(f.template.ID)
	f.putSchedule(t, sched)

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	// Симулируем потерянное обновление next_due_at: возвращаем прежнее
	// время — тот же idempotency key, что и при первом тике
	stale, _ := f.schedules.Get(ctx, sched.ID)
	stale.NextDueAt = sched.NextDueAt
	f.putSchedule(t, stale)

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}

	all, _ := f.tasks.List(ctx)
	if len(all) != 1 {
		t.Errorf("duplicate run should be suppressed, got %d tasks", len(all))
	}

	// Schedule всё равно продвинут вперёд
	updated, _ := f.schedules.Get(ctx, sched.ID)
	if updated.NextDueAt == nil || !updated.NextDueAt.After(time.Now()) {
		t.Error("next due should still be advanced")
	}
}

func TestTick_InactiveTemplateSkipped(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	if err := f.catalog.Deactivate(ctx, f.template.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	sched := dueSchedule(f.template.ID)
	f.putSchedule(t, sched)

	// Недоступный template — skip, не ошибка тика
	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	all, _ := f.tasks.List(ctx)
	if len(all) != 0 {
		t.Errorf("expected no tasks for inactive template, got %d", len(all))
	}
}

func TestTick_RejectedInputsSkipped(t *testing.T) {
	f := newTickFixture(t)
	ctx := context.Background()

	strict, err := f.catalog.Publish(ctx, &domain.WorkflowTemplate{
		Name:        "strict",
		InputSchema: &domain.Schema{Required: []string{"customer_id"}},
		Steps:       []domain.Step{{Ordinal: 1, Capability: "echo"}},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	sched := dueSchedule(strict.ID)
	sched.Inputs = map[string]any{"wrong": "input"}
	f.putSchedule(t, sched)

	if err := f.scheduler.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	all, _ := f.tasks.List(ctx)
	if len(all) != 0 {
		t.Errorf("expected no tasks for rejected inputs, got %d", len(all))
	}
}
