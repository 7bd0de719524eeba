package journals

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
	Net    decimal.Decimal `json:"net"`
}

// TrialBalanceGroup aggregates the accounts of one account class (first digit of the code).
type TrialBalanceGroup struct {
	Class    string                `json:"class"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalance lists account turnover for a date range.
type TrialBalance struct {
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"totalDebit"`
	TotalCredit decimal.Decimal     `json:"totalCredit"`
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance groups account totals by class, sorted by code.
func BuildTrialBalance(totals []AccountTotal) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range totals {
		key := classOf(acc.Code)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Class: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Accounts = append(grp.Accounts, TrialBalanceAccount{
			Code:   acc.Code,
			Name:   acc.Name,
			Type:   acc.Type,
			Debit:  acc.Debit,
			Credit: acc.Credit,
			Net:    acc.Debit.Sub(acc.Credit),
		})
		grp.Debit = grp.Debit.Add(acc.Debit)
		grp.Credit = grp.Credit.Add(acc.Credit)
	}

	sort.Strings(keys)
	result := TrialBalance{Groups: []TrialBalanceGroup{}, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}

func classOf(code string) string {
	if code == "" {
		return ""
	}
	return code[:1]
}
