package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/scriptsched/internal/domain"
)

// ScheduleRepo — репозиторий jobs в PostgreSQL.
// schedule и parameter_values хранятся в JSONB.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const selectJob = `
	SELECT id::text, script_name, username, schedule, parameter_values, created_at, updated_at
	FROM schedules
`

// Create создаёт job; id назначает БД.
func (r *ScheduleRepo) Create(ctx context.Context, job *domain.Job) error {
	scheduleJSON, paramsJSON, err := marshalJob(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO schedules (script_name, username, schedule, parameter_values, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text
	`
	err = r.pool.QueryRow(ctx, query,
		job.ScriptName,
		job.User,
		scheduleJSON,
		paramsJSON,
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&job.ID)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return scanJob(r.pool.QueryRow(ctx, selectJob+` WHERE id = $1`, n))
}

// List возвращает jobs, отсортированные по id.
func (r *ScheduleRepo) List(ctx context.Context, scriptName string) ([]domain.Job, error) {
	query := selectJob + `
		WHERE ($1::text IS NULL OR script_name = $1)
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, nullString(scriptName))
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Update обновляет schedule, parameter_values и updated_at.
func (r *ScheduleRepo) Update(ctx context.Context, job *domain.Job) error {
	n, ok := parseID(job.ID)
	if !ok {
		return ErrNotFound
	}

	scheduleJSON, paramsJSON, err := marshalJob(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE schedules
		SET schedule = $2, parameter_values = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, n, scheduleJSON, paramsJSON, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет job.
func (r *ScheduleRepo) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, n)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func marshalJob(job *domain.Job) (scheduleJSON, paramsJSON []byte, err error) {
	scheduleJSON, err = json.Marshal(job.Schedule)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal schedule: %w", err)
	}

	params := job.ParameterValues
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err = json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal parameter values: %w", err)
	}
	return scheduleJSON, paramsJSON, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var scheduleJSON, paramsJSON []byte

	err := row.Scan(
		&job.ID,
		&job.ScriptName,
		&job.User,
		&scheduleJSON,
		&paramsJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if err := json.Unmarshal(scheduleJSON, &job.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &job.ParameterValues); err != nil {
			return nil, fmt.Errorf("unmarshal parameter values: %w", err)
		}
	}

	return &job, nil
}

// parseID переводит текстовый id в bigint. Нечисловой id не существует.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
