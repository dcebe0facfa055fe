package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Exchanges — имена обменников.
const (
	// ExchangeSchedules — события изменения schedules (fanout).
	ExchangeSchedules Exchange = "scriptsched.schedules"
)

// SetupTopology объявляет обменники. Очереди наблюдателей создаются
// самими consumer'ами (см. declareWatchQueue).
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return declareExchanges(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeSchedules, amqp.ExchangeFanout},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareWatchQueue создаёт эксклюзивную очередь с именем от сервера
// и привязывает её к exchange. Очередь живёт, пока живо соединение,
// поэтому после reconnect её нужно объявлять заново.
func declareWatchQueue(ch *amqp.Channel, exchange Exchange) (string, error) {
	if err := declareExchanges(ch); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(
		"",    // name (сгенерирует сервер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare watch queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", string(exchange), false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, exchange, err)
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  scriptsched RabbitMQ Topology:

    scriptsched.schedules (fanout)
    └── amq.gen-* (exclusive, auto-delete)
            Consumer: scriptsched schedule watch
  `
}
