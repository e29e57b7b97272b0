// Package clock supplies wall-clock time in a fixed civil timezone.
//
// Every logical operation takes one Snapshot and reuses it, so the calendar
// fields, the epoch and the formatted text never disagree within a pass.
package clock

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// TextLayout is the human-readable timestamp stored next to every epoch.
const TextLayout = "2006/01/02 15:04:05"

// DefaultOffsetHours is the civil zone used when none is configured (KST).
const DefaultOffsetHours = 9

// Zone returns a fixed zone for the given UTC offset in hours.
func Zone(offsetHours int) *time.Location {
	if offsetHours == DefaultOffsetHours {
		return time.FixedZone("KST", offsetHours*3600)
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// Clock reads time from a clockwork source and converts it into the
// configured civil zone.
type Clock struct {
	src clockwork.Clock
	loc *time.Location
}

// New creates a Clock. A nil source means the real clock, a nil location the
// default zone.
func New(src clockwork.Clock, loc *time.Location) *Clock {
	if src == nil {
		src = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = Zone(DefaultOffsetHours)
	}
	return &Clock{src: src, loc: loc}
}

// Source returns the underlying clockwork clock.
func (c *Clock) Source() clockwork.Clock { return c.src }

// Location returns the civil zone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns a snapshot truncated to whole seconds.
func (c *Clock) Now() Snapshot {
	return At(c.src.Now().In(c.loc).Truncate(time.Second))
}

// Snapshot is one consistent reading of the clock.
type Snapshot struct {
	Time  time.Time
	Epoch int64
	Text  string
}

// At builds a snapshot from t, keeping t's location.
func At(t time.Time) Snapshot {
	return Snapshot{
		Time:  t,
		Epoch: t.Unix(),
		Text:  t.Format(TextLayout),
	}
}

// Date returns the calendar day as YYYY-MM-DD.
func (s Snapshot) Date() string { return s.Time.Format("2006-01-02") }

// YearMonth returns YYYY-MM.
func (s Snapshot) YearMonth() string { return s.Time.Format("2006-01") }

// Quarter returns 1..4.
func (s Snapshot) Quarter() int { return (int(s.Time.Month())-1)/3 + 1 }

// QuarterKey returns the quarter marker, e.g. 2026-Q3.
func (s Snapshot) QuarterKey() string {
	return fmt.Sprintf("%d-Q%d", s.Time.Year(), s.Quarter())
}

// IsFirstMonthOfQuarter reports whether the snapshot falls in January, April,
// July or October.
func (s Snapshot) IsFirstMonthOfQuarter() bool {
	return (int(s.Time.Month())-1)%3 == 0
}

// StartOfDay is midnight of the snapshot's day.
func (s Snapshot) StartOfDay() time.Time {
	t := s.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfQuarter is midnight on the first day of the current quarter.
func (s Snapshot) StartOfQuarter() time.Time {
	t := s.Time
	month := time.Month((s.Quarter()-1)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

// AtTimeOfDay returns today's date at hour:minute.
func (s Snapshot) AtTimeOfDay(hour, minute int) time.Time {
	t := s.Time
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

// Reached reports whether the snapshot is at or after today's hour:minute.
func (s Snapshot) Reached(hour, minute int) bool {
	return !s.Time.Before(s.AtTimeOfDay(hour, minute))
}

// DayRange returns [start, end) epochs covering the snapshot's day.
func (s Snapshot) DayRange() (int64, int64) {
	start := s.StartOfDay()
	return start.Unix(), start.AddDate(0, 0, 1).Unix()
}

// PreviousMonth returns the first instant of the month before the snapshot.
func (s Snapshot) PreviousMonth() time.Time {
	t := s.Time
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, -1, 0)
}

// MonthRange returns [start, end) epochs for the month starting at first.
func MonthRange(first time.Time) (int64, int64) {
	start := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, first.Location())
	return start.Unix(), start.AddDate(0, 1, 0).Unix()
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
