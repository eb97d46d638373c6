// Package waits computes when a suspended execution becomes resumable:
// a timer deadline, the next inbound message, or the next instant
// outside a configured business-hours window.
package waits

import (
	"errors"
	"fmt"
	"time"

	"github.com/zapfy/botflow/pkg/condition"
	"github.com/zapfy/botflow/pkg/models"
)

// ErrBadWindow reports a malformed business-hours configuration.
var ErrBadWindow = errors.New("malformed business hours window")

// ResumeKind discriminates the two resume condition shapes.
type ResumeKind string

const (
	ResumeDeadline     ResumeKind = "deadline"
	ResumeAwaitMessage ResumeKind = "await_message"
)

// Resume is the persisted condition that ends a wait node's suspension.
type Resume struct {
	Kind ResumeKind
	At   time.Time // valid when Kind == ResumeDeadline
}

// Immediate reports whether the deadline has already passed at now.
func (r Resume) Immediate(now time.Time) bool {
	return r.Kind == ResumeDeadline && !r.At.After(now)
}

// ComputeResume maps a wait node's data to its resume condition.
// A zero-duration timer is legal and yields an immediate deadline.
func ComputeResume(data models.WaitData, now time.Time) (Resume, error) {
	switch data.Mode {
	case models.WaitModeTimer:
		d := time.Duration(data.Hours)*time.Hour +
			time.Duration(data.Minutes)*time.Minute +
			time.Duration(data.Seconds)*time.Second

		return Resume{Kind: ResumeDeadline, At: now.Add(d)}, nil

	case models.WaitModeMessage:
		return Resume{Kind: ResumeAwaitMessage}, nil

	case models.WaitModeBusinessHours:
		window, err := parseWindow(data)
		if err != nil {
			return Resume{}, err
		}

		return Resume{Kind: ResumeDeadline, At: window.nextRelease(now)}, nil

	default:
		return Resume{}, fmt.Errorf("unknown wait mode %q", data.Mode)
	}
}

type window struct {
	days  map[time.Weekday]bool
	start int // minutes since midnight
	end   int
}

func parseWindow(data models.WaitData) (window, error) {
	w := window{days: make(map[time.Weekday]bool, len(data.Days))}

	for _, name := range data.Days {
		day, ok := weekday(name)
		if !ok {
			return window{}, fmt.Errorf("%w: unknown day %q", ErrBadWindow, name)
		}

		w.days[day] = true
	}

	if len(w.days) == 0 {
		return window{}, fmt.Errorf("%w: no days configured", ErrBadWindow)
	}

	var ok bool

	w.start, ok = condition.ParseClock(data.Start)
	if !ok {
		return window{}, fmt.Errorf("%w: bad start %q", ErrBadWindow, data.Start)
	}

	w.end, ok = condition.ParseClock(data.End)
	if !ok {
		return window{}, fmt.Errorf("%w: bad end %q", ErrBadWindow, data.End)
	}

	if w.start == w.end {
		return window{}, fmt.Errorf("%w: empty interval", ErrBadWindow)
	}

	return w, nil
}

func weekday(name string) (time.Weekday, bool) {
	switch name {
	case "sun":
		return time.Sunday, true
	case "mon":
		return time.Monday, true
	case "tue":
		return time.Tuesday, true
	case "wed":
		return time.Wednesday, true
	case "thu":
		return time.Thursday, true
	case "fri":
		return time.Friday, true
	case "sat":
		return time.Saturday, true
	default:
		return 0, false
	}
}

// contains tests whether t falls inside the window. Intervals are
// half-open [start, end); an end before start wraps past midnight, in
// which case the early-morning segment belongs to the configured day
// that opened it.
func (w window) contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()

	if w.start < w.end {
		return w.days[t.Weekday()] && minute >= w.start && minute < w.end
	}

	if minute >= w.start {
		return w.days[t.Weekday()]
	}

	if minute < w.end {
		return w.days[previousDay(t.Weekday())]
	}

	return false
}

// nextRelease returns the first instant at or after now that is outside
// the window: now itself when already outside, otherwise the closing
// boundary of the segment now sits in.
func (w window) nextRelease(now time.Time) time.Time {
	if !w.contains(now) {
		return now
	}

	closing := time.Date(now.Year(), now.Month(), now.Day(), w.end/60, w.end%60, 0, 0, now.Location())

	// In a wrapping window the evening segment closes tomorrow.
	if w.start > w.end && now.Hour()*60+now.Minute() >= w.start {
		closing = closing.AddDate(0, 0, 1)
	}

	return closing
}

func previousDay(d time.Weekday) time.Weekday {
	if d == time.Sunday {
		return time.Saturday
	}

	return d - 1
}
