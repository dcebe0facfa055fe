// Package store реализует клиентский кэш списка schedules.
//
// ScheduleStore держит последний полученный от API список, флаг загрузки
// и последнюю ошибку. Изменения выполняются только через операции:
//
//	s := store.New(client, logger)
//	if err := s.FetchSchedules(ctx, store.FetchOptions{ScriptName: "backup"}); err != nil {
//	    fmt.Println(s.ErrorValue()) // payload сервера или текст ошибки
//	}
//	_ = s.DeleteSchedule(ctx, "3")        // удаляет запись из кэша после успеха
//	_ = s.UpdateSchedule(ctx, "4", cfg)   // после успеха перезагружает весь список
//	backups := s.SchedulesByScript("backup")
//
// Store ничего не знает о транспорте: он работает через интерфейс Backend,
// который реализует cli.Client. Все ошибки, которые возвращает store,
// это ошибки Backend без изменений (обычно *RequestError).
package store
