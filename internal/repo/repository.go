package repo

import (
	"context"

	"github.com/shaiso/scriptsched/internal/domain"
)

// ScheduleRepository — хранилище jobs.
//
// Реализации: ScheduleRepo (PostgreSQL) и MemoryScheduleRepo.
// List возвращает jobs в порядке возрастания числового id.
type ScheduleRepository interface {
	// Create сохраняет job и проставляет job.ID.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID возвращает job или ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Job, error)

	// List возвращает jobs; пустой scriptName — без фильтра.
	List(ctx context.Context, scriptName string) ([]domain.Job, error)

	// Update заменяет schedule и parameter_values. ErrNotFound, если job нет.
	Update(ctx context.Context, job *domain.Job) error

	// Delete удаляет job. ErrNotFound, если job нет.
	Delete(ctx context.Context, id string) error
}

var (
	_ ScheduleRepository = (*ScheduleRepo)(nil)
	_ ScheduleRepository = (*MemoryScheduleRepo)(nil)
)
