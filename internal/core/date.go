package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ISODate is the layout used for dates in records and query strings.
const ISODate = "2006-01-02"

// Date is a calendar day. The wrapped time is always UTC midnight.
type Date struct {
	time.Time
}

var (
	// MinDate and MaxDate bound the full date domain used by history queries.
	MinDate = NewDate(1, 1, 1)
	MaxDate = NewDate(9999, 12, 31)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISODate, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the ISO calendar form.
func (d Date) String() string {
	return d.Format(ISODate)
}

// Between reports whether d lies in the inclusive range. The bounds may be
// given in either order.
func (d Date) Between(from, to Date) bool {
	if to.Before(from.Time) {
		from, to = to, from
	}
	return !d.Before(from.Time) && !d.After(to.Time)
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return nil, errors.New("date cannot be zero")
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows the promoted time.Time encoding so records carry the
// ISO calendar date only.
func (d Date) MarshalJSON() ([]byte, error) {
	text, err := d.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(text) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}
