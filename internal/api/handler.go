package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/scriptsched/internal/mq"
	"github.com/shaiso/scriptsched/internal/repo"
)

// EventPublisher публикует события об изменении jobs.
// Реализуется mq.Publisher.
type EventPublisher interface {
	PublishScheduleEvent(ctx context.Context, msgType mq.MessageType, jobID, scriptName string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	repo   repo.ScheduleRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Repo repo.ScheduleRepository

	// Events — необязательный publisher; nil отключает события.
	Events EventPublisher

	Logger *slog.Logger

	// Now — источник времени (по умолчанию time.Now).
	Now func() time.Time
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		repo:   cfg.Repo,
		events: cfg.Events,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}
