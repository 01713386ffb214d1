package catalog

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

const (
	// DateLayout is the only accepted publish date input format (DD.MM.YY).
	DateLayout = "02.01.06"
	isoLayout  = "2006-01-02"
)

// Date is a calendar day at UTC midnight. It serializes as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDateAt parses DD.MM.YY text. YY means 20YY unless that year is after
// now's year, in which case it means 19YY.
func ParseDateAt(text string, now time.Time) (Date, error) {
	if !hasDateShape(text) {
		return Date{}, &DateFormatError{Text: text}
	}
	t, err := time.Parse(DateLayout, text)
	if err != nil {
		return Date{}, &DateFormatError{Text: text, Err: err}
	}

	yy := t.Year() % 100
	year := 2000 + yy
	if year > now.Year() {
		year = 1900 + yy
	}
	d := NewDate(year, t.Month(), t.Day())
	// 29.02 can be valid in one century and not the other.
	if d.Month() != t.Month() || d.Day() != t.Day() {
		return Date{}, &DateFormatError{Text: text}
	}
	return d, nil
}

func hasDateShape(text string) bool {
	if len(text) != len(DateLayout) {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if i == 2 || i == 5 {
			if c != '.' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(isoLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Format(isoLayout))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Date{}
		return nil
	}
	raw, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	t, err := time.Parse(isoLayout, raw)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	*d = Date{t}
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		*d = Date{}
	default:
		return fmt.Errorf("date: cannot scan %T", src)
	}
	return nil
}

func (d *Date) scanText(s string) error {
	if len(s) > len(isoLayout) {
		s = s[:len(isoLayout)]
	}
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	*d = Date{t}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}
