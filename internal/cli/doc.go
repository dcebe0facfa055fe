// Package cli реализует инструмент командной строки scriptsched.
//
// # Обзор
//
// CLI работает с schedules API по HTTP и не импортирует internal/api.
// Списки читаются через store.ScheduleStore, для которого Client
// служит Backend.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для schedules API. Пути относительны базовому URL,
// любая ошибка возвращается как *store.RequestError (статус и JSON тела
// ответа, если он был).
//
//	client := cli.NewClient("http://localhost:8080", cli.WithTimeout(10*time.Second))
//	st := store.New(client, slog.Default())
//	err := st.FetchSchedules(ctx, store.FetchOptions{ScriptName: "backup"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: scriptsched schedule list --json | jq .
//
// ## Commands
//
//   - schedule: list, show, create, update, delete, by-script, watch
//
// NewScheduleCmd принимает clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
