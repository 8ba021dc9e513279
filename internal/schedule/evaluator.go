package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

// Evaluator decides whether a schedule's time-of-day window covers a
// given instant. Date-range filtering happens upstream in the query;
// weekday and time-of-day attribution happens here.
type Evaluator struct {
	// Grace absorbs tick jitter past a same-day end time: a window that
	// ended moments before the tick fired still counts as active.
	Grace time.Duration
}

// ActiveAt reports whether the schedule is active at now. A schedule
// whose time fields cannot be parsed has no usable window and is
// reported as a configuration error.
func (e Evaluator) ActiveAt(s model.Schedule, now time.Time) (bool, error) {
	startSec, err := parseTimeOfDay(s.StartTime)
	if err != nil {
		return false, fmt.Errorf("schedule %d: bad start_time %q: %w", s.ID, s.StartTime, err)
	}

	nowSec := secondsOfDay(now)
	today := now.Weekday()
	yesterday := (today + 6) % 7

	// Open-ended window: no end time means active from start_time on,
	// on allowed days, until superseded.
	if s.EndTime == nil {
		return nowSec >= startSec && s.DayEnabled(today), nil
	}

	endSec, err := parseTimeOfDay(*s.EndTime)
	if err != nil {
		return false, fmt.Errorf("schedule %d: bad end_time %q: %w", s.ID, *s.EndTime, err)
	}

	// Persistent-until-midnight: end_time of exactly 00:00:00 on a
	// persistent schedule means "no upper bound today", not "ends at
	// midnight".
	if s.IsPersistent && endSec == 0 {
		return nowSec >= startSec && s.DayEnabled(today), nil
	}

	// Overnight window. After the wrap, the instant still belongs to
	// the weekday the window started on; attributing it to the calendar
	// weekday is the classic off-by-one here.
	if endSec < startSec {
		if nowSec >= startSec && s.DayEnabled(today) {
			return true, nil
		}
		if nowSec <= endSec && s.DayEnabled(yesterday) {
			return true, nil
		}
		return false, nil
	}

	// Same-day window with grace past the end.
	graceSec := int(e.Grace / time.Second)
	return nowSec >= startSec && nowSec <= endSec+graceSec && s.DayEnabled(today), nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// parseTimeOfDay parses "HH:MM:SS" (or "HH:MM") into seconds since
// midnight.
func parseTimeOfDay(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("expected HH:MM[:SS]")
	}

	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		vals[i] = n
	}

	h, m, s := vals[0], vals[1], vals[2]
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return h*3600 + m*60 + s, nil
}
