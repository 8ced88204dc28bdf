package eligibility

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"promoHub/domain"
)

var ErrUnknownPeriod = errors.New("unknown period type")

var periodAliases = map[string]domain.PeriodType{
	"daily":    domain.PeriodDaily,
	"day":      domain.PeriodDaily,
	"weekly":   domain.PeriodWeekly,
	"week":     domain.PeriodWeekly,
	"monthly":  domain.PeriodMonthly,
	"month":    domain.PeriodMonthly,
	"cooldown": domain.PeriodCooldown,
	"all_time": domain.PeriodAllTime,
	"all-time": domain.PeriodAllTime,
	"alltime":  domain.PeriodAllTime,
	"lifetime": domain.PeriodAllTime,
}

// ResolvePeriod maps a configured period key to its type. An empty key means
// the quota never resets.
func ResolvePeriod(key string) (domain.PeriodType, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return domain.PeriodAllTime, nil
	}
	if p, ok := periodAliases[k]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, key)
}

// WindowStart returns the instant from which attempts count toward the quota.
// Calendar periods are aligned in loc; weeks start on Monday.
func WindowStart(period domain.PeriodType, now time.Time, cooldownHours int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)

	switch period {
	case domain.PeriodDaily:
		return midnight(t)
	case domain.PeriodWeekly:
		// Monday = 0 days back, Sunday = 6
		back := (int(t.Weekday()) + 6) % 7
		return midnight(t).AddDate(0, 0, -back)
	case domain.PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case domain.PeriodCooldown:
		return now.Add(-time.Duration(cooldownHours) * time.Hour)
	default:
		return time.Unix(0, 0).UTC()
	}
}

// NextBoundary returns the start of the next calendar window, or nil for
// periods that never reset on the calendar.
func NextBoundary(period domain.PeriodType, now time.Time, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}

	var next time.Time
	switch period {
	case domain.PeriodDaily:
		next = WindowStart(period, now, 0, loc).AddDate(0, 0, 1)
	case domain.PeriodWeekly:
		next = WindowStart(period, now, 0, loc).AddDate(0, 0, 7)
	case domain.PeriodMonthly:
		next = WindowStart(period, now, 0, loc).AddDate(0, 1, 0)
	default:
		return nil
	}
	return &next
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
