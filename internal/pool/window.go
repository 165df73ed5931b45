package pool

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a UTC time-of-day range during which standby capacity is kept
// warm. An end before start wraps midnight. The zero Window contains every
// instant (always warm).
type Window struct {
	Start time.Duration // offset from midnight UTC
	End   time.Duration
	set   bool
}

// ParseWindow parses "HH:MM" bounds. Empty strings yield the always-open
// window.
func ParseWindow(start, end string) (Window, error) {
	if start == "" && end == "" {
		return Window{}, nil
	}
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	return Window{Start: s, End: e, set: true}, nil
}

func parseClock(v string) (time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Contains reports whether t (evaluated in UTC) falls inside the window.
// The range is half-open: [Start, End).
func (w Window) Contains(t time.Time) bool {
	if !w.set {
		return true
	}
	u := t.UTC()
	day := time.Duration(u.Hour())*time.Hour +
		time.Duration(u.Minute())*time.Minute +
		time.Duration(u.Second())*time.Second

	if w.Start <= w.End {
		return day >= w.Start && day < w.End
	}
	// Wraps midnight, e.g. 22:00 -> 06:00.
	return day >= w.Start || day < w.End
}
