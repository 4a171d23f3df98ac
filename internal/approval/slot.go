package approval

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPublishDays are the weekdays posts go out on
var DefaultPublishDays = []time.Weekday{time.Monday, time.Wednesday, time.Friday}

// SlotConfig describes the weekly publish calendar
type SlotConfig struct {
	Days           []time.Weekday
	Hour           int
	UTCOffsetHours int
}

// NextPublishSlot returns the first allowed weekday at Hour:00 in the fixed
// zone that is strictly after now.
func NextPublishSlot(now time.Time, cfg SlotConfig) time.Time {
	days := cfg.Days
	if len(days) == 0 {
		days = DefaultPublishDays
	}
	allowed := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		allowed[d] = true
	}

	loc := time.FixedZone(zoneName(cfg.UTCOffsetHours), cfg.UTCOffsetHours*3600)
	local := now.In(loc)

	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), cfg.Hour, 0, 0, 0, loc)
		if allowed[candidate.Weekday()] && candidate.After(now) {
			return candidate
		}
	}

	// Unreachable with at least one allowed weekday
	return time.Date(local.Year(), local.Month(), local.Day()+7, cfg.Hour, 0, 0, 0, loc)
}

func zoneName(offset int) string {
	if offset == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+d", offset)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekdays converts names like "monday" or "Fri" to weekdays
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		days = append(days, d)
	}
	return days, nil
}
