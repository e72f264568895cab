package query

import (
	"errors"
	"fmt"
	"time"
)

// Date range types.
const (
	DateRangeAbsolute = "date-range"
	DateRangeRelative = "relative-date"
)

// Relative date units.
const (
	UnitHours  = "hours"
	UnitDays   = "days"
	UnitWeeks  = "weeks"
	UnitMonths = "months"
	UnitYears  = "years"
)

// DateRange bounds a date field. Absolute ranges carry from/to in epoch
// milliseconds; relative ranges reach num units back from now.
type DateRange struct {
	Type string `json:"type,omitempty"`
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
	Num  int    `json:"num,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// Between creates an absolute range; zero times leave that end open.
func Between(from, to time.Time) DateRange {
	d := DateRange{Type: DateRangeAbsolute}
	if !from.IsZero() {
		ms := from.UnixMilli()
		d.From = &ms
	}
	if !to.IsZero() {
		ms := to.UnixMilli()
		d.To = &ms
	}
	return d
}

// Last creates a relative range covering the last num units.
func Last(num int, unit string) DateRange {
	return DateRange{Type: DateRangeRelative, Num: num, Unit: unit}
}

// IsRelative reports whether the range is resolved against a clock.
func (d DateRange) IsRelative() bool { return d.Type == DateRangeRelative }

// Validate checks range consistency.
func (d DateRange) Validate() error {
	switch d.Type {
	case DateRangeRelative:
		if d.Num <= 0 {
			return errors.New("relative date requires num > 0")
		}
		if _, err := unitDuration(d.Unit, d.Num, time.Now()); err != nil {
			return err
		}
		return nil
	case "", DateRangeAbsolute:
		if d.From == nil && d.To == nil {
			return errors.New("date range requires from or to")
		}
		if d.From != nil && d.To != nil && *d.From > *d.To {
			return errors.New("date range from is after to")
		}
		return nil
	default:
		return fmt.Errorf("unknown date range type %q", d.Type)
	}
}

// Resolve returns the concrete bounds at now. A zero time means an open end.
func (d DateRange) Resolve(now time.Time) (from, to time.Time) {
	if d.IsRelative() {
		start, err := unitDuration(d.Unit, d.Num, now)
		if err != nil {
			return time.Time{}, time.Time{}
		}
		return start, now
	}
	if d.From != nil {
		from = time.UnixMilli(*d.From).UTC()
	}
	if d.To != nil {
		to = time.UnixMilli(*d.To).UTC()
	}
	return from, to
}

func unitDuration(unit string, num int, now time.Time) (time.Time, error) {
	switch unit {
	case UnitHours:
		return now.Add(-time.Duration(num) * time.Hour), nil
	case UnitDays:
		return now.AddDate(0, 0, -num), nil
	case UnitWeeks:
		return now.AddDate(0, 0, -7*num), nil
	case UnitMonths:
		return now.AddDate(0, -num, 0), nil
	case UnitYears:
		return now.AddDate(-num, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown relative date unit %q", unit)
	}
}
