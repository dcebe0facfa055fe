package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/scriptsched/internal/domain"
)

// cronParser — парсер cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// calculateNextCron вычисляет следующее время по cron-выражению.
func calculateNextCron(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	return schedule.Next(from).UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return &domain.ValidationError{
			Message: fmt.Sprintf("invalid cron expression %q: %v", cronExpr, err),
		}
	}
	return nil
}

// Validate проверяет конфигурацию расписания целиком, включая cron_expr.
func Validate(cfg *domain.ScheduleConfig, now time.Time, isNew bool) error {
	if err := cfg.Validate(now, isNew); err != nil {
		return err
	}
	if cfg.Repeatable && cfg.CronExpr != "" {
		return ValidateCronExpr(cfg.CronExpr)
	}
	return nil
}
