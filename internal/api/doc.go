// Package api содержит HTTP API для schedules.
//
// Структура:
//   - handler.go          — Handler с DI (репозиторий, publisher событий, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (recovery, request id, logging, metrics)
//   - response.go         — JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - schedule_handler.go — обработчики для /schedules
//
// Маршруты:
//
//	GET    /schedules[?script=]
//	POST   /schedules
//	GET    /schedules/{id}
//	PUT    /schedules/{id}/update
//	DELETE /schedules/{id}/delete
//	GET    /healthz
//	GET    /metrics
//
// Ответы не оборачиваются в data; ошибки имеют вид
// {"error": {"code": "...", "message": "..."}}.
package api
