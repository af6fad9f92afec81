package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Dirigent/internal/events"
)

// Output управляет форматированием вывода CLI.
//
// Каждому типу ответа API соответствует типизированный метод
// (Templates, Tasks, Resources...), который сам знает колонки таблицы
// и форматирование значений. В режиме --json методы выводят
// исходный ответ без табличной обработки.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// --- Templates ---

var templateHeaders = []string{"ID", "NAME", "LINEAGE", "VERSION", "STEPS", "ACTIVE", "CREATED"}

// Templates выводит список templates.
func (o *Output) Templates(templates []TemplateResponse) {
	rows := make([][]string, len(templates))
	for i := range templates {
		rows[i] = templateRow(&templates[i])
	}
	o.print(templateHeaders, rows, templates)
}

// Template выводит один template.
func (o *Output) Template(t *TemplateResponse) {
	o.print(templateHeaders, [][]string{templateRow(t)}, t)
}

func templateRow(t *TemplateResponse) []string {
	return []string{
		t.ID,
		t.Name,
		t.Lineage,
		strconv.Itoa(t.Version),
		strconv.Itoa(len(t.Steps)),
		strconv.FormatBool(t.Active),
		formatTime(t.CreatedAt),
	}
}

// --- Tasks ---

var taskHeaders = []string{"ID", "TEMPLATE", "STATUS", "STEP", "PRIORITY", "CREATED"}

// Tasks выводит список tasks.
func (o *Output) Tasks(tasks []TaskResponse) {
	rows := make([][]string, len(tasks))
	for i := range tasks {
		rows[i] = taskRow(&tasks[i])
	}
	o.print(taskHeaders, rows, tasks)
}

// Task выводит один task.
func (o *Output) Task(t *TaskResponse) {
	o.print(taskHeaders, [][]string{taskRow(t)}, t)
}

func taskRow(t *TaskResponse) []string {
	return []string{
		t.ID,
		t.TemplateID,
		t.Status,
		strconv.Itoa(t.CurrentStep),
		t.Priority,
		formatTime(t.CreatedAt),
	}
}

// TaskStatus выводит срез состояния task. В табличном режиме после
// сводки печатается таблица результатов шагов.
func (o *Output) TaskStatus(s *TaskStatusResponse) {
	o.print(
		[]string{"ID", "STATUS", "STEP", "TOTAL", "PROGRESS"},
		[][]string{{
			s.TaskID,
			s.Status,
			strconv.Itoa(s.CurrentStep),
			strconv.Itoa(s.TotalSteps),
			fmt.Sprintf("%.0f%%", s.Percentage),
		}},
		s,
	)

	if o.jsonMode || len(s.StepResults) == 0 {
		return
	}

	rows := make([][]string, len(s.StepResults))
	for i, r := range s.StepResults {
		rows[i] = []string{
			strconv.Itoa(r.Ordinal),
			r.Capability,
			strconv.FormatBool(r.Success),
			strconv.FormatInt(r.LatencyMs, 10),
			r.Error,
		}
	}
	o.Table([]string{"ORDINAL", "CAPABILITY", "SUCCESS", "LATENCY_MS", "ERROR"}, rows)
}

// --- Resources ---

var resourceHeaders = []string{"ID", "NAME", "TYPE", "VERSION", "ACCESS", "OWNER", "SIZE", "UPDATED"}

// Resources выводит список resources.
func (o *Output) Resources(resources []ResourceResponse) {
	rows := make([][]string, len(resources))
	for i := range resources {
		rows[i] = resourceRow(&resources[i])
	}
	o.print(resourceHeaders, rows, resources)
}

// Resource выводит один resource.
func (o *Output) Resource(r *ResourceResponse) {
	o.print(resourceHeaders, [][]string{resourceRow(r)}, r)
}

func resourceRow(r *ResourceResponse) []string {
	return []string{
		r.ID,
		r.Name,
		r.Type,
		strconv.Itoa(r.Version),
		r.AccessLevel,
		r.OwnerID,
		strconv.FormatInt(r.Size, 10),
		formatTime(r.UpdatedAt),
	}
}

// --- Capabilities ---

var capabilityHeaders = []string{"ID", "CATEGORY", "RUNNER", "HOLDERS", "INVOCATIONS", "FAILURES"}

// Capabilities выводит список capabilities.
func (o *Output) Capabilities(capabilities []CapabilityResponse) {
	rows := make([][]string, len(capabilities))
	for i := range capabilities {
		rows[i] = capabilityRow(&capabilities[i])
	}
	o.print(capabilityHeaders, rows, capabilities)
}

// Capability выводит один capability descriptor.
func (o *Output) Capability(d *CapabilityResponse) {
	o.print(capabilityHeaders, [][]string{capabilityRow(d)}, d)
}

func capabilityRow(d *CapabilityResponse) []string {
	// Пустой список holders означает открытую авторизацию
	holders := "*"
	if len(d.AuthorizedHolders) > 0 {
		holders = strings.Join(d.AuthorizedHolders, ",")
	}
	return []string{
		d.ID,
		d.Category,
		d.Runner,
		holders,
		strconv.FormatInt(d.Invocations, 10),
		strconv.FormatInt(d.Failures, 10),
	}
}

// --- Schedules ---

var scheduleHeaders = []string{"ID", "TEMPLATE_ID", "NAME", "CRON", "INTERVAL", "ENABLED", "NEXT_DUE"}

// Schedules выводит список schedules.
func (o *Output) Schedules(schedules []ScheduleResponse) {
	rows := make([][]string, len(schedules))
	for i := range schedules {
		rows[i] = scheduleRow(&schedules[i])
	}
	o.print(scheduleHeaders, rows, schedules)
}

// Schedule выводит один schedule.
func (o *Output) Schedule(s *ScheduleResponse) {
	o.print(scheduleHeaders, [][]string{scheduleRow(s)}, s)
}

func scheduleRow(s *ScheduleResponse) []string {
	interval := ""
	if s.IntervalSec > 0 {
		interval = strconv.Itoa(s.IntervalSec) + "s"
	}
	return []string{
		s.ID, s.TemplateID, s.Name, s.CronExpr, interval,
		strconv.FormatBool(s.Enabled), formatTime(s.NextDueAt),
	}
}

// --- Events ---

// Event выводит одно событие потока (events watch): строка на событие,
// поля отсортированы по ключу для стабильного вывода.
func (o *Output) Event(e events.Event) {
	if o.jsonMode {
		o.JSON(e)
		return
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Fields[k])
	}

	fmt.Fprintf(o.w, "%s  %-28s%s\n", e.At.Format("15:04:05"), e.Kind, sb.String())
}

// --- Низкоуровневый вывод ---

// print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// formatTime приводит RFC3339 метку времени API к компактному виду
// для таблиц. Нераспознанное значение возвращается как есть.
func formatTime(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
