package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Dirigent/internal/events"
)

func newTestOutput(jsonMode bool) (*Output, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &buf, errW: &buf}, &buf
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty stays empty", "", ""},
		{"rfc3339 is compacted", "2026-08-30T09:15:00Z", time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC).Local().Format("2006-01-02 15:04:05")},
		{"unparseable passes through", "soon", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.in); got != tt.want {
				t.Errorf("formatTime(%q) = %q, expected %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOutput_TasksTable(t *testing.T) {
	out, buf := newTestOutput(false)

	out.Tasks([]TaskResponse{{
		ID:          "t-1",
		TemplateID:  "tpl-1",
		Status:      "RUNNING",
		CurrentStep: 2,
		Priority:    "HIGH",
		CreatedAt:   "2026-08-30T09:15:00Z",
	}})

	got := buf.String()
	for _, want := range []string{"ID", "TEMPLATE", "STATUS", "t-1", "RUNNING", "HIGH"} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "2026-08-30T09:15:00Z") {
		t.Error("timestamps should be reformatted in table mode")
	}
}

func TestOutput_JSONMode(t *testing.T) {
	out, buf := newTestOutput(true)

	out.Schedules([]ScheduleResponse{{ID: "s-1", Name: "nightly", CronExpr: "0 3 * * *"}})

	got := buf.String()
	if strings.Contains(got, "TEMPLATE_ID") {
		t.Error("json mode must not print table headers")
	}
	if !strings.Contains(got, `"cron_expr": "0 3 * * *"`) {
		t.Errorf("expected raw response fields in json mode:\n%s", got)
	}
}

func TestOutput_TaskStatusStepTable(t *testing.T) {
	out, buf := newTestOutput(false)

	out.TaskStatus(&TaskStatusResponse{
		TaskID:      "t-1",
		Status:      "FAILED",
		CurrentStep: 1,
		TotalSteps:  2,
		Percentage:  50,
		StepResults: []StepResultView{
			{Ordinal: 1, Capability: "echo", Success: true, LatencyMs: 12},
			{Ordinal: 2, Capability: "http.call", Success: false, Error: "timeout"},
		},
	})

	got := buf.String()
	for _, want := range []string{"PROGRESS", "50%", "ORDINAL", "http.call", "timeout"} {
		if !strings.Contains(got, want) {
			t.Errorf("status output missing %q:\n%s", want, got)
		}
	}
}

func TestOutput_EventLine(t *testing.T) {
	out, buf := newTestOutput(false)

	out.Event(events.Event{
		Kind: events.KindTaskCompleted,
		At:   time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC),
		Fields: map[string]any{
			"task_id": "t-1",
			"steps":   3,
		},
	})

	got := buf.String()
	if !strings.Contains(got, events.KindTaskCompleted) {
		t.Errorf("event line missing kind:\n%s", got)
	}
	// Поля отсортированы по ключу
	if !strings.Contains(got, "steps=3 task_id=t-1") {
		t.Errorf("expected sorted key=value fields:\n%s", got)
	}
}
