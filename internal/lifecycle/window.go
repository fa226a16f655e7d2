package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/model"
)

var (
	ErrDateOutOfRange = errors.New("date outside booking window")
	ErrUnknownSlot    = errors.New("unknown time slot")
	ErrBadDate        = errors.New("malformed date")
)

const DefaultWindowDays = 3

// DefaultSlots are the two daily booking windows.
var DefaultSlots = []string{
	"9:00 AM - 1:00 PM",
	"3:00 PM - 7:00 PM",
}

// Window constrains which calendar days and slots can be booked.
type Window struct {
	Days     int
	Slots    []string
	Location *time.Location
}

func DefaultWindow() Window {
	return Window{Days: DefaultWindowDays, Slots: append([]string(nil), DefaultSlots...)}
}

func (w Window) loc() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return time.Local
}

func (w Window) day(t time.Time) time.Time {
	y, m, d := t.In(w.loc()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, w.loc())
}

// Bounds returns the first and last bookable day, both inclusive.
func (w Window) Bounds(now time.Time) (first, last time.Time) {
	first = w.day(now)
	return first, first.AddDate(0, 0, w.Days)
}

// CheckDate reports ErrDateOutOfRange for days before today or after
// today+Days. Time of day is ignored on both sides.
func (w Window) CheckDate(date, now time.Time) error {
	first, last := w.Bounds(now)
	d := w.day(date)
	if d.Before(first) || d.After(last) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrDateOutOfRange,
			d.Format(model.DateLayout), first.Format(model.DateLayout), last.Format(model.DateLayout))
	}
	return nil
}

// CheckDateString parses a YYYY-MM-DD day in the window location and checks it.
func (w Window) CheckDateString(date string, now time.Time) error {
	d, err := w.ParseDate(date)
	if err != nil {
		return err
	}
	return w.CheckDate(d, now)
}

func (w Window) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, s, w.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return d, nil
}

func (w Window) CheckSlot(slot string) error {
	for _, s := range w.Slots {
		if s == slot {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
}
