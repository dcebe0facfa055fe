package repo

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/shaiso/scriptsched/internal/domain"
)

// MemoryScheduleRepo — репозиторий jobs в памяти.
// Используется, когда DB_URL не задан, и в тестах.
type MemoryScheduleRepo struct {
	mu     sync.RWMutex
	nextID int64
	jobs   map[int64]domain.Job
}

// NewMemoryScheduleRepo создаёт пустой репозиторий.
func NewMemoryScheduleRepo() *MemoryScheduleRepo {
	return &MemoryScheduleRepo{
		nextID: 1,
		jobs:   make(map[int64]domain.Job),
	}
}

// Create сохраняет копию job и назначает следующий id.
func (r *MemoryScheduleRepo) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	job.ID = strconv.FormatInt(id, 10)
	r.jobs[id] = cloneJob(*job)
	return nil
}

// GetByID возвращает копию job.
func (r *MemoryScheduleRepo) GetByID(_ context.Context, id string) (*domain.Job, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[n]
	if !ok {
		return nil, ErrNotFound
	}
	job = cloneJob(job)
	return &job, nil
}

// List возвращает jobs по возрастанию id.
func (r *MemoryScheduleRepo) List(_ context.Context, scriptName string) ([]domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := []domain.Job{}
	for _, id := range slices.Sorted(maps.Keys(r.jobs)) {
		job := r.jobs[id]
		if scriptName != "" && job.ScriptName != scriptName {
			continue
		}
		jobs = append(jobs, cloneJob(job))
	}
	return jobs, nil
}

// Update заменяет schedule, parameter_values и updated_at.
func (r *MemoryScheduleRepo) Update(_ context.Context, job *domain.Job) error {
	n, ok := parseID(job.ID)
	if !ok {
		return ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[n]
	if !ok {
		return ErrNotFound
	}

	updated := cloneJob(*job)
	stored.Schedule = updated.Schedule
	stored.ParameterValues = updated.ParameterValues
	stored.UpdatedAt = updated.UpdatedAt
	r.jobs[n] = stored
	return nil
}

// Delete удаляет job.
func (r *MemoryScheduleRepo) Delete(_ context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[n]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, n)
	return nil
}

// cloneJob копирует изменяемые поля, чтобы вызывающий не менял хранилище.
func cloneJob(job domain.Job) domain.Job {
	job.ParameterValues = maps.Clone(job.ParameterValues)
	job.Schedule.Weekdays = slices.Clone(job.Schedule.Weekdays)
	job.Schedule.EndArg = slices.Clone(job.Schedule.EndArg)
	return job
}
