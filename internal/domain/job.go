package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job — расписание запуска скрипта на стороне сервера.
//
// Job хранится в репозитории целиком; next_execution не хранится,
// а вычисляется при каждом чтении (см. scheduler.NextExecution).
type Job struct {
	// ID — последовательный идентификатор ("1", "2", ...).
	ID string `json:"id"`

	// ScriptName — имя скрипта.
	ScriptName string `json:"script_name"`

	// User — пользователь, создавший расписание.
	User string `json:"user"`

	// Schedule — конфигурация расписания.
	Schedule ScheduleConfig `json:"schedule"`

	// ParameterValues — значения параметров скрипта для каждого запуска.
	ParameterValues map[string]any `json:"parameter_values"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// RepeatUnit — единица повторения.
type RepeatUnit string

const (
	RepeatMinutes RepeatUnit = "minutes"
	RepeatHours   RepeatUnit = "hours"
	RepeatDays    RepeatUnit = "days"
	RepeatWeeks   RepeatUnit = "weeks"
	RepeatMonths  RepeatUnit = "months"
)

// Valid проверяет, что единица повторения известна.
func (u RepeatUnit) Valid() bool {
	switch u {
	case RepeatMinutes, RepeatHours, RepeatDays, RepeatWeeks, RepeatMonths:
		return true
	default:
		return false
	}
}

// EndOption — условие окончания расписания.
type EndOption string

const (
	// EndNever — расписание бесконечно.
	EndNever EndOption = "never"

	// EndMaxExecutions — остановиться после end_arg запусков.
	EndMaxExecutions EndOption = "max_executions"

	// EndDatetime — остановиться после даты end_arg.
	EndDatetime EndOption = "end_datetime"
)

// ScheduleConfig — параметры расписания.
//
// Режимы:
//   - repeatable=false — один запуск в start_datetime
//   - cron_expr задан — запуски по cron-выражению, repeat_* игнорируются
//   - иначе — каждые repeat_period единиц repeat_unit начиная с start_datetime
type ScheduleConfig struct {
	Repeatable    bool       `json:"repeatable"`
	StartDatetime time.Time  `json:"start_datetime"`
	RepeatUnit    RepeatUnit `json:"repeat_unit,omitempty"`
	RepeatPeriod  int        `json:"repeat_period,omitempty"`

	// Weekdays — дни недели для repeat_unit=weeks ("monday", ...).
	Weekdays []string `json:"weekdays,omitempty"`

	// CronExpr — пятипольное cron-выражение ("0 9 * * 1-5").
	CronExpr string `json:"cron_expr,omitempty"`

	EndOption EndOption `json:"end_option,omitempty"`

	// EndArg — количество запусков или дата, в зависимости от EndOption.
	EndArg json.RawMessage `json:"end_arg,omitempty"`

	// ExecutionsCount — сколько раз расписание уже сработало.
	ExecutionsCount int `json:"executions_count"`
}

// ErrInvalidSchedule — базовая ошибка валидации расписания.
var ErrInvalidSchedule = errors.New("invalid schedule")

// ValidationError — ошибка валидации с сообщением для пользователя.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is позволяет проверять errors.Is(err, ErrInvalidSchedule).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSchedule
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MaxExecutions возвращает end_arg как количество запусков.
func (c *ScheduleConfig) MaxExecutions() (int, error) {
	var n int
	if err := json.Unmarshal(c.EndArg, &n); err != nil {
		return 0, invalid("end_arg should be an integer")
	}
	return n, nil
}

// EndTime возвращает end_arg как дату окончания.
func (c *ScheduleConfig) EndTime() (time.Time, error) {
	var t time.Time
	if err := json.Unmarshal(c.EndArg, &t); err != nil {
		return time.Time{}, invalid("end_arg should be a datetime")
	}
	return t, nil
}

// Validate проверяет конфигурацию.
//
// isNew — расписание создаётся (а не обновляется): для одноразового
// расписания дата старта должна быть в будущем.
// Синтаксис cron_expr здесь не проверяется, это делает scheduler.ValidateCronExpr.
func (c *ScheduleConfig) Validate(now time.Time, isNew bool) error {
	if c.StartDatetime.IsZero() {
		return invalid("start_datetime is required")
	}

	if isNew && !c.Repeatable && c.StartDatetime.Before(now) {
		return invalid("Start date should be in the future")
	}

	if c.Repeatable && c.CronExpr == "" {
		if !c.RepeatUnit.Valid() {
			return invalid("unknown repeat_unit %q", c.RepeatUnit)
		}
		if c.RepeatPeriod <= 0 {
			return invalid("repeat_period should be greater than 0")
		}
		if c.RepeatUnit == RepeatWeeks {
			for _, d := range c.Weekdays {
				if _, err := ParseWeekday(d); err != nil {
					return err
				}
			}
		}
	}

	switch c.EndOption {
	case "", EndNever:
	case EndDatetime:
		end, err := c.EndTime()
		if err != nil {
			return err
		}
		if c.StartDatetime.After(end) {
			return invalid("End date should be after start date")
		}
	case EndMaxExecutions:
		count, err := c.MaxExecutions()
		if err != nil {
			return err
		}
		if count <= 0 {
			return invalid("Count should be greater than 0!")
		}
	default:
		return invalid("unknown end_option %q", c.EndOption)
	}

	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday разбирает название дня недели (регистр не важен).
func ParseWeekday(name string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, invalid("unknown weekday %q", name)
	}
	return d, nil
}
