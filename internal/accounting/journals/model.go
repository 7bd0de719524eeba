package journals

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Source distinguishes machine generated entries from hand entered ones.
type Source string

const (
	SourceSystem Source = "SYSTEM"
	SourceManual Source = "MANUAL"
)

// ReversalSuffix marks the document type of STORNO entries.
const ReversalSuffix = "_REVERSAL"

// DocumentTypeManual is the document type of manual entries.
const DocumentTypeManual = "MANUAL"

// ReversalType returns the document type of the STORNO entry for documentType.
func ReversalType(documentType string) string {
	return documentType + ReversalSuffix
}

// IsReversalType reports whether documentType names a STORNO entry.
func IsReversalType(documentType string) bool {
	return strings.HasSuffix(documentType, ReversalSuffix)
}

// Entry is an immutable journal entry with its ordered lines.
type Entry struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"companyId"`
	Date         time.Time `json:"date"`
	DocumentType string    `json:"documentType"`
	DocumentID   uuid.UUID `json:"documentId"`
	Source       Source    `json:"source"`
	Memo         string    `json:"memo,omitempty"`
	CreatedBy    int64     `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Lines        []Line    `json:"lines"`
}

// Line stores the debit or credit amount booked on an account.
type Line struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entryId"`
	Position  int             `json:"position"`
	AccountID int64           `json:"accountId"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// LineInput describes a line to be written.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// EntryInput groups fields required to create a journal entry.
type EntryInput struct {
	CompanyID    int64
	Date         time.Time
	DocumentType string
	DocumentID   uuid.UUID
	Source       Source
	Memo         string
	CreatedBy    int64
	Lines        []LineInput
}

// Validate checks the entry shape and the balance rule. Account ownership is
// checked against the store by CreateJournalEntry.
func (in EntryInput) Validate() error {
	if in.CompanyID == 0 || in.Date.IsZero() || in.DocumentType == "" || in.DocumentID == uuid.Nil {
		return ErrInvalidEntry
	}
	if in.Source != SourceSystem && in.Source != SourceManual {
		return ErrInvalidEntry.Detailf(map[string]any{"source": in.Source}, "unknown entry source %q", in.Source)
	}
	if len(in.Lines) == 0 {
		return ErrEmptyLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		details := map[string]any{"line": idx, "accountId": line.AccountID}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrNegativeAmount.Detailf(details, "line %d has a negative amount", idx)
		}
		if !line.Debit.Equal(line.Debit.Round(2)) || !line.Credit.Equal(line.Credit.Round(2)) {
			return ErrAmountPrecision.Detailf(details, "line %d has more than two decimals", idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return ErrTwoSidedLine.Detailf(details, "line %d cannot be both debit and credit", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalancedEntry.Detailf(map[string]any{
			"debit":  debit.StringFixed(2),
			"credit": credit.StringFixed(2),
		}, "entry is unbalanced: debit %s, credit %s", debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// ListFilter narrows List.
type ListFilter struct {
	From         *time.Time
	To           *time.Time
	DocumentType string
	Source       Source
	Limit        int
}

// IntegrityIssue reports a stored entry violating the ledger invariants.
type IntegrityIssue struct {
	EntryID   int64           `json:"entryId"`
	CompanyID int64           `json:"companyId"`
	Problem   string          `json:"problem"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

const (
	ProblemNoLines    = "NO_LINES"
	ProblemUnbalanced = "UNBALANCED"
)

var (
	ErrInvalidEntry    = shared.NewError(shared.KindValidation, "INVALID_ENTRY", "journal entry requires company, date, document type and document id")
	ErrEmptyLines      = shared.NewError(shared.KindValidation, "EMPTY_LINES", "journal entry requires at least one line")
	ErrNegativeAmount  = shared.NewError(shared.KindValidation, "NEGATIVE_AMOUNT", "journal line amounts must not be negative")
	ErrAmountPrecision = shared.NewError(shared.KindValidation, "AMOUNT_PRECISION", "journal line amounts allow at most two decimals")
	ErrTwoSidedLine    = shared.NewError(shared.KindValidation, "TWO_SIDED_LINE", "journal line cannot carry debit and credit")
	ErrUnbalancedEntry = shared.NewError(shared.KindValidation, "UNBALANCED_ENTRY", "journal entry debits and credits differ")
	ErrEntryNotFound   = shared.NewError(shared.KindNotFound, "JOURNAL_ENTRY_NOT_FOUND", "journal entry not found")
	ErrLinesEmpty      = shared.NewError(shared.KindIntegrity, "JOURNAL_LINES_EMPTY", "journal entry has no lines")
)
