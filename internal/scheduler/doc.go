// Package scheduler вычисляет время следующего запуска расписания.
//
// Сам запуск скриптов выполняет внешний сервис исполнения; здесь только
// арифметика времени, которую API использует для поля next_execution.
//
// Структура:
//   - scheduler.go — NextExecution для repeat_unit (minutes/hours/days/weeks/months)
//   - cron.go      — парсинг cron-выражений и валидация конфигурации
//
// Использование:
//
//	next, ok, err := scheduler.NextExecution(&job.Schedule, time.Now())
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    // расписание завершено
//	}
package scheduler
