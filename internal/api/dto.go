package api

import (
	"time"

	"github.com/shaiso/scriptsched/internal/domain"
	"github.com/shaiso/scriptsched/internal/scheduler"
)

// Schedule DTOs

// CreateScheduleRequest — запрос на создание job.
// Пользователь берётся из заголовка X-User.
type CreateScheduleRequest struct {
	ScriptName      string                 `json:"script_name"`
	ParameterValues map[string]any         `json:"parameter_values"`
	Schedule        *domain.ScheduleConfig `json:"schedule"`
}

// UpdateScheduleRequest — запрос на замену конфигурации расписания.
type UpdateScheduleRequest struct {
	Schedule *domain.ScheduleConfig `json:"schedule"`
}

// CreateScheduleResponse — ответ на создание job.
type CreateScheduleResponse struct {
	ID string `json:"id"`
}

// JobResponse — job с вычисленным временем следующего запуска.
type JobResponse struct {
	ID              string                `json:"id"`
	ScriptName      string                `json:"script_name"`
	User            string                `json:"user"`
	Schedule        domain.ScheduleConfig `json:"schedule"`
	ParameterValues map[string]any        `json:"parameter_values"`
	NextExecution   *time.Time            `json:"next_execution"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
// next_execution равен null, если запусков больше не будет.
func JobFromDomain(j *domain.Job, now time.Time) JobResponse {
	resp := JobResponse{
		ID:              j.ID,
		ScriptName:      j.ScriptName,
		User:            j.User,
		Schedule:        j.Schedule,
		ParameterValues: j.ParameterValues,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
	if resp.ParameterValues == nil {
		resp.ParameterValues = map[string]any{}
	}

	if next, ok, err := scheduler.NextExecution(&j.Schedule, now); err == nil && ok {
		resp.NextExecution = &next
	}
	return resp
}
