package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/scriptsched/internal/domain"
	"github.com/shaiso/scriptsched/internal/telemetry"
)

// Backend — удалённый источник истины для schedules.
// Реализуется cli.Client.
type Backend interface {
	// ListSchedules выполняет GET schedules[?script=...].
	ListSchedules(ctx context.Context, scriptName string) ([]domain.ScheduleRecord, error)

	// DeleteSchedule выполняет DELETE schedules/{id}/delete.
	DeleteSchedule(ctx context.Context, jobID domain.JobID) error

	// UpdateSchedule выполняет PUT schedules/{id}/update с телом {"schedule": ...}.
	UpdateSchedule(ctx context.Context, jobID domain.JobID, schedule any) error
}

// FetchOptions — фильтр для FetchSchedules.
type FetchOptions struct {
	// ScriptName — если не пустой, сервер вернёт только schedules этого скрипта.
	ScriptName string
}

// State — снимок состояния store.
type State struct {
	Schedules []domain.ScheduleRecord
	Loading   bool
	Err       error
}

// ScheduleStore — кэш списка schedules на стороне клиента.
//
// Store безопасен для конкурентного использования. Сетевые вызовы
// выполняются вне мьютекса.
//
// Перекрывающиеся FetchSchedules упорядочены по моменту вызова:
// ответ, начатый раньше уже применённого, отбрасывается.
type ScheduleStore struct {
	backend Backend
	logger  *slog.Logger
	gauge   prometheus.Gauge

	mu        sync.RWMutex
	schedules []domain.ScheduleRecord
	inFlight  int
	err       error
	errSeq    uint64

	// issued — последний выданный номер fetch, applied — номер последнего применённого.
	issued  uint64
	applied uint64
}

// Option настраивает ScheduleStore.
type Option func(*ScheduleStore)

// WithSchedulesGauge публикует размер кэша в gauge.
// Gauge должен принадлежать одному store: значения разных store затирают друг друга.
func WithSchedulesGauge(g prometheus.Gauge) Option {
	return func(s *ScheduleStore) {
		s.gauge = g
	}
}

// New создаёт пустой store.
func New(backend Backend, logger *slog.Logger, opts ...Option) *ScheduleStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ScheduleStore{
		backend:   backend,
		logger:    logger,
		schedules: []domain.ScheduleRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchSchedules загружает список с сервера и заменяет им кэш.
//
// При ошибке список не меняется, ошибка сохраняется (см. Err, ErrorValue)
// и возвращается вызывающему.
func (s *ScheduleStore) FetchSchedules(ctx context.Context, opts FetchOptions) error {
	seq := s.begin()
	defer s.end()

	records, err := s.backend.ListSchedules(ctx, opts.ScriptName)
	if err != nil {
		s.fail(seq, err)
		telemetry.StoreFetches.WithLabelValues("error").Inc()
		s.logger.Debug("fetch schedules failed", "script", opts.ScriptName, "error", err)
		return err
	}

	if !s.apply(seq, records) {
		telemetry.StoreFetches.WithLabelValues("stale").Inc()
		s.logger.Debug("discarded stale schedules response", "seq", seq)
		return nil
	}

	telemetry.StoreFetches.WithLabelValues("ok").Inc()
	s.logger.Debug("fetched schedules", "script", opts.ScriptName, "count", len(records))
	return nil
}

// DeleteSchedule удаляет schedule на сервере и затем из кэша.
// При ошибке состояние не меняется.
func (s *ScheduleStore) DeleteSchedule(ctx context.Context, jobID domain.JobID) error {
	if err := s.backend.DeleteSchedule(ctx, jobID); err != nil {
		s.logger.Debug("delete schedule failed", "job_id", jobID, "error", err)
		return err
	}

	s.mu.Lock()
	s.schedules = slices.DeleteFunc(slices.Clone(s.schedules), func(r domain.ScheduleRecord) bool {
		return r.ID == jobID
	})
	s.setGauge(len(s.schedules))
	s.mu.Unlock()

	s.logger.Debug("deleted schedule", "job_id", jobID)
	return nil
}

// UpdateSchedule отправляет новую конфигурацию расписания и после успеха
// перезагружает весь список без фильтра. Ошибка перезагрузки возвращается.
func (s *ScheduleStore) UpdateSchedule(ctx context.Context, jobID domain.JobID, schedule any) error {
	if err := s.backend.UpdateSchedule(ctx, jobID, schedule); err != nil {
		s.logger.Debug("update schedule failed", "job_id", jobID, "error", err)
		return err
	}

	s.logger.Debug("updated schedule, refreshing", "job_id", jobID)
	return s.FetchSchedules(ctx, FetchOptions{})
}

// SchedulesByScript возвращает schedules скрипта в исходном порядке.
// Пустой результат — пустой, но не nil slice.
func (s *ScheduleStore) SchedulesByScript(scriptName string) []domain.ScheduleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScheduleRecord, 0)
	for _, r := range s.schedules {
		if r.ScriptName == scriptName {
			out = append(out, r)
		}
	}
	return out
}

// Schedules возвращает копию текущего списка.
func (s *ScheduleStore) Schedules() []domain.ScheduleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.schedules)
}

// Loading сообщает, выполняется ли сейчас FetchSchedules.
func (s *ScheduleStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Err возвращает ошибку последнего неудачного fetch или nil.
func (s *ScheduleStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ErrorValue возвращает payload ошибки сервера, если он был,
// иначе текст ошибки. nil, если ошибки нет.
func (s *ScheduleStore) ErrorValue() any {
	err := s.Err()
	if err == nil {
		return nil
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Value()
	}
	return err.Error()
}

// State возвращает согласованный снимок состояния.
func (s *ScheduleStore) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Schedules: slices.Clone(s.schedules),
		Loading:   s.inFlight > 0,
		Err:       s.err,
	}
}

// setGauge вызывается под s.mu.
func (s *ScheduleStore) setGauge(n int) {
	if s.gauge != nil {
		s.gauge.Set(float64(n))
	}
}

func (s *ScheduleStore) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight++
	s.err = nil
	s.issued++
	return s.issued
}

func (s *ScheduleStore) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
}

// apply заменяет список, если ответ не устарел.
func (s *ScheduleStore) apply(seq uint64, records []domain.ScheduleRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.applied {
		return false
	}
	s.applied = seq
	if s.errSeq < seq {
		s.err = nil
	}

	if records == nil {
		records = []domain.ScheduleRecord{}
	}
	s.schedules = records
	s.setGauge(len(records))
	return true
}

// fail сохраняет ошибку, если после этого fetch не применился более новый.
func (s *ScheduleStore) fail(seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.applied {
		return
	}
	s.err = err
	s.errSeq = seq
}
