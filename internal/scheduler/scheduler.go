package scheduler

import (
	"time"

	"github.com/shaiso/scriptsched/internal/domain"
)

// NextExecution вычисляет время следующего запуска строго после now.
//
// Возвращает ok=false, если запусков больше не будет: одноразовое
// расписание в прошлом, исчерпан max_executions или следующий запуск
// позже end_datetime. Все вычисления ведутся в UTC.
func NextExecution(cfg *domain.ScheduleConfig, now time.Time) (time.Time, bool, error) {
	now = now.UTC()
	start := cfg.StartDatetime.UTC()

	if !cfg.Repeatable {
		if start.After(now) {
			return start, true, nil
		}
		return time.Time{}, false, nil
	}

	if cfg.EndOption == domain.EndMaxExecutions {
		limit, err := cfg.MaxExecutions()
		if err != nil {
			return time.Time{}, false, err
		}
		if cfg.ExecutionsCount >= limit {
			return time.Time{}, false, nil
		}
	}

	var next time.Time
	var err error

	switch {
	case cfg.CronExpr != "":
		from := now
		if start.After(now) {
			// cron.Next ищет время строго после from, сам start тоже кандидат
			from = start.Add(-time.Second)
		}
		next, err = calculateNextCron(cfg.CronExpr, from)
	case cfg.RepeatUnit == domain.RepeatWeeks:
		next, err = nextWeekly(start, now, cfg.RepeatPeriod, cfg.Weekdays)
	case cfg.RepeatUnit == domain.RepeatMonths:
		next = nextMonthly(start, now, cfg.RepeatPeriod)
	default:
		next = nextFixed(start, now, unitDuration(cfg.RepeatUnit)*time.Duration(cfg.RepeatPeriod))
	}
	if err != nil {
		return time.Time{}, false, err
	}

	if cfg.EndOption == domain.EndDatetime {
		end, err := cfg.EndTime()
		if err != nil {
			return time.Time{}, false, err
		}
		if next.After(end) {
			return time.Time{}, false, nil
		}
	}

	return next, true, nil
}

func unitDuration(unit domain.RepeatUnit) time.Duration {
	switch unit {
	case domain.RepeatMinutes:
		return time.Minute
	case domain.RepeatHours:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// nextFixed — первое start + k*step строго после now.
func nextFixed(start, now time.Time, step time.Duration) time.Time {
	if start.After(now) || step <= 0 {
		return start
	}
	k := now.Sub(start)/step + 1
	return start.Add(k * step)
}

// nextMonthly — первое start + k*period месяцев строго после now.
// День месяца прижимается к последнему дню (31 января + 1 месяц = 28/29 февраля).
func nextMonthly(start, now time.Time, period int) time.Time {
	if start.After(now) || period <= 0 {
		return start
	}

	months := (now.Year()-start.Year())*12 + int(now.Month()-start.Month())
	k := months/period - 1
	if k < 0 {
		k = 0
	}

	for {
		candidate := addMonthsClamped(start, k*period)
		if candidate.After(now) {
			return candidate
		}
		k++
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()

	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// nextWeekly — ближайший подходящий день недели во время суток start.
// Подходят только недели, номер которых от недели start кратен period.
// Недели начинаются с понедельника.
func nextWeekly(start, now time.Time, period int, weekdays []string) (time.Time, error) {
	if period <= 0 {
		period = 1
	}

	days := make(map[time.Weekday]bool, len(weekdays))
	for _, name := range weekdays {
		d, err := domain.ParseWeekday(name)
		if err != nil {
			return time.Time{}, err
		}
		days[d] = true
	}
	if len(days) == 0 {
		days[start.Weekday()] = true
	}

	startDay := midnight(start)
	startWeek := startDay.AddDate(0, 0, -((int(startDay.Weekday()) + 6) % 7))

	from := midnight(now)
	if startDay.After(from) {
		from = startDay
	}

	for i := 0; i <= 7*(period+1); i++ {
		day := from.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(),
			start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), time.UTC)

		if candidate.Before(start) || !candidate.After(now) {
			continue
		}
		if !days[candidate.Weekday()] {
			continue
		}

		week := int(day.Sub(startWeek).Hours()/24) / 7
		if week%period != 0 {
			continue
		}
		return candidate, nil
	}

	// недостижимо при непустом наборе дней
	return time.Time{}, &domain.ValidationError{Message: "no matching weekday"}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
