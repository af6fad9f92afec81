// Package cli реализует инструмент командной строки Dirigent.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Dirigent API.
// Работает через HTTP и не импортирует внутренние пакеты ядра.
// Исключения: catalog.ParseDefinition для локальной проверки файлов
// определений и mq для подписки на события (events watch). CLI
// используется для управления templates, tasks, resources,
// capabilities и schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Dirigent API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (dataResponse, listResponse, errorResponse)
// и обработку ошибок. Каждый запрос несёт заголовок X-Requester-ID.
//
//	client := cli.NewClient("http://localhost:8080", "cli")
//	templates, err := client.ListTemplates()
//
// ## Output
//
// Форматирование вывода. Каждому типу ответа соответствует
// типизированный метод (Templates, Tasks, Resources...), знающий
// колонки и формат значений. Два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: dirigent task list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - template: list, show, latest, apply, deactivate
//   - task: list, create, status, execute, cancel, stats
//   - resource: search, register, show, update, delete, share, lock, unlock, stats
//   - capability: list, register, show, stats
//   - schedule: list, create, show, delete, enable, disable
//   - events: watch
//
// Каждая группа создаётся через фабричную функцию (NewTemplateCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
