package audit

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxExportRows   = 10000
)

// TimelineFilters narrows the audit trail of one company. Zero values are ignored.
type TimelineFilters struct {
	CompanyID int64
	From      time.Time
	To        time.Time
	Entity    string
	EntityID  string
	Action    string
	Page      int
	PageSize  int
}

// TimelineRow is one stored audit record.
type TimelineRow struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"at"`
	ActorID  *int64         `json:"actorId,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Result is one page of the timeline.
type Result struct {
	Rows   []TimelineRow     `json:"rows"`
	Paging shared.Pagination `json:"paging"`
}

var ErrInvalidFilter = shared.NewError(shared.KindValidation, "INVALID_FILTER", "invalid audit filter")
