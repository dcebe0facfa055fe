// Package mq — события об изменении schedules через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchange и эксклюзивные очереди наблюдателей
//   - publisher.go  — публикация событий (API-сервер)
//   - consumer.go   — потребление событий (scriptsched schedule watch)
//
// Типы сообщений:
//   - schedule.created
//   - schedule.updated
//   - schedule.deleted
//
// Exchange scriptsched.schedules — fanout, каждый наблюдатель получает
// свою копию события. События не переживают рестарт брокера.
package mq
