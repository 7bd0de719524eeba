package periods

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Period is the close state of one calendar month of a company. Months
// without a stored row are open.
type Period struct {
	CompanyID int64      `json:"companyId"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	IsClosed  bool       `json:"isClosed"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	ClosedBy  *int64     `json:"closedBy,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// YearMonth identifies a period.
type YearMonth struct {
	Year  int
	Month int
}

// Of returns the period a date belongs to.
func Of(date time.Time) YearMonth {
	return YearMonth{Year: date.Year(), Month: int(date.Month())}
}

// Valid reports whether the month is within 1..12 and the year is plausible.
func (ym YearMonth) Valid() bool {
	return ym.Month >= 1 && ym.Month <= 12 && ym.Year >= 1900 && ym.Year <= 9999
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) after(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year > other.Year
	}
	return ym.Month > other.Month
}

// Span lists every month overlapping [from, to] in order.
func Span(from, to time.Time) []YearMonth {
	start, end := Of(from), Of(to)
	var out []YearMonth
	for ym := start; !ym.after(end); ym = ym.Next() {
		out = append(out, ym)
	}
	return out
}

var (
	// ErrPeriodClosed rejects mutations dated inside a closed month.
	ErrPeriodClosed = shared.NewError(shared.KindConflict, "PERIOD_CLOSED", "accounting period is closed")
	// ErrInvalidPeriod rejects malformed year/month pairs.
	ErrInvalidPeriod = shared.NewError(shared.KindValidation, "INVALID_PERIOD", "invalid accounting period")
)
