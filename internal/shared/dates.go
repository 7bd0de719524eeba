package shared

import "time"

// DateLayout is the wire format of ledger dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidInput.Detailf(map[string]any{"date": value}, "invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}
