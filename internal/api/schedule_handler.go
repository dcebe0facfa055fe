package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shaiso/scriptsched/internal/domain"
	"github.com/shaiso/scriptsched/internal/mq"
	"github.com/shaiso/scriptsched/internal/scheduler"
	"github.com/shaiso/scriptsched/internal/telemetry"
)

// HeaderUser — заголовок с именем пользователя.
const HeaderUser = "X-User"

// ListSchedules возвращает jobs, отсортированные по id.
// GET /schedules?script=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.repo.List(r.Context(), r.URL.Query().Get("script"))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	now := h.now()
	result := make([]JobResponse, len(jobs))
	for i := range jobs {
		result[i] = JobFromDomain(&jobs[i], now)
	}

	Success(w, result)
}

// CreateSchedule создаёт job.
// POST /schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.Header.Get(HeaderUser))
	if user == "" {
		BadRequest(w, "X-User header is required")
		return
	}

	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Валидация
	if req.ScriptName == "" {
		BadRequest(w, "script_name is required")
		return
	}
	if req.Schedule == nil {
		BadRequest(w, "schedule is required")
		return
	}

	now := h.now().UTC()
	if HandleRepoError(w, h.logger, scheduler.Validate(req.Schedule, now, true), "") {
		return
	}

	job := &domain.Job{
		ScriptName:      req.ScriptName,
		User:            user,
		Schedule:        *req.Schedule,
		ParameterValues: req.ParameterValues,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	job.Schedule.ExecutionsCount = 0

	if err := h.repo.Create(r.Context(), job); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	telemetry.FromContext(r.Context()).Info("schedule created",
		"job_id", job.ID,
		"script", job.ScriptName,
		"user", job.User,
	)
	h.publish(r.Context(), mq.MessageTypeScheduleCreated, job)

	Created(w, CreateScheduleResponse{ID: job.ID})
}

// GetSchedule возвращает job по ID.
// GET /schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	job, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, JobFromDomain(job, h.now()))
}

// UpdateSchedule заменяет конфигурацию расписания.
// executions_count сохраняется из текущей версии.
// PUT /schedules/{id}/update
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Schedule == nil {
		BadRequest(w, "schedule is required")
		return
	}

	job, err := h.repo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	now := h.now().UTC()
	if HandleRepoError(w, h.logger, scheduler.Validate(req.Schedule, now, false), "") {
		return
	}

	count := job.Schedule.ExecutionsCount
	job.Schedule = *req.Schedule
	job.Schedule.ExecutionsCount = count
	job.UpdatedAt = now

	if HandleRepoError(w, h.logger, h.repo.Update(r.Context(), job), "schedule not found") {
		return
	}

	telemetry.FromContext(r.Context()).Info("schedule updated", "job_id", job.ID)
	h.publish(r.Context(), mq.MessageTypeScheduleUpdated, job)

	Success(w, JobFromDomain(job, now))
}

// DeleteSchedule удаляет job.
// DELETE /schedules/{id}/delete
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	job, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if HandleRepoError(w, h.logger, h.repo.Delete(r.Context(), job.ID), "schedule not found") {
		return
	}

	telemetry.FromContext(r.Context()).Info("schedule deleted", "job_id", job.ID)
	h.publish(r.Context(), mq.MessageTypeScheduleDeleted, job)

	NoContent(w)
}

// publish отправляет событие, если publisher настроен.
// Ошибка публикации не влияет на ответ.
func (h *Handler) publish(ctx context.Context, msgType mq.MessageType, job *domain.Job) {
	if h.events == nil {
		return
	}

	if err := h.events.PublishScheduleEvent(ctx, msgType, job.ID, job.ScriptName); err != nil {
		telemetry.EventsPublished.WithLabelValues(string(msgType), "error").Inc()
		telemetry.FromContext(ctx).Warn("failed to publish schedule event",
			"type", msgType,
			"job_id", job.ID,
			"error", err,
		)
		return
	}
	telemetry.EventsPublished.WithLabelValues(string(msgType), "ok").Inc()
}
