package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeScheduleCreated MessageType = "schedule.created"
	MessageTypeScheduleUpdated MessageType = "schedule.updated"
	MessageTypeScheduleDeleted MessageType = "schedule.deleted"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ScheduleEventPayload — payload события об изменении schedule.
type ScheduleEventPayload struct {
	JobID      string `json:"job_id"`
	ScriptName string `json:"script_name"`
}

// NewScheduleEvent собирает сообщение о событии schedule.
func NewScheduleEvent(msgType MessageType, jobID, scriptName string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   ScheduleEventPayload{JobID: jobID, ScriptName: scriptName},
		Timestamp: time.Now().UTC(),
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange), // exchange
			"",               // routing key (fanout)
			false,            // mandatory
			false,            // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient, // события нужны только живым наблюдателям
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", exchange, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishScheduleEvent публикует событие об изменении schedule.
// Потребитель: scriptsched schedule watch.
func (p *Publisher) PublishScheduleEvent(ctx context.Context, msgType MessageType, jobID, scriptName string) error {
	return p.Publish(ctx, ExchangeSchedules, NewScheduleEvent(msgType, jobID, scriptName))
}
