package journals

import "github.com/shopspring/decimal"

type manualEntryRequest struct {
	Date  string              `json:"date" validate:"required,datetime=2006-01-02"`
	Memo  string              `json:"memo" validate:"max=500"`
	Lines []manualLineRequest `json:"lines" validate:"dive"`
}

type manualLineRequest struct {
	AccountID int64           `json:"accountId" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

func (r manualEntryRequest) lines() []LineInput {
	out := make([]LineInput, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit})
	}
	return out
}
