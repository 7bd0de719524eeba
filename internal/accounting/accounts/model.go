package accounts

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts entry owned by one company.
type Account struct {
	ID        int64       `json:"id"`
	CompanyID int64       `json:"companyId"`
	Code      string      `json:"code"`
	NameDE    string      `json:"nameDe"`
	NameEN    string      `json:"nameEn"`
	Type      AccountType `json:"type"`
	IsActive  bool        `json:"isActive"`
	IsSystem  bool        `json:"isSystem"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// CreateInput describes a new account.
type CreateInput struct {
	Code   string
	NameDE string
	NameEN string
	Type   AccountType
}

// Patch carries the fields of a partial update; nil means unchanged.
type Patch struct {
	Code     *string
	NameDE   *string
	NameEN   *string
	Type     *AccountType
	IsActive *bool
}

// UsageReport partitions requested account ids for bulk deletion.
type UsageReport struct {
	Total     int     `json:"total"`
	Deletable []int64 `json:"deletable"`
	System    []int64 `json:"system"`
	Protected []int64 `json:"protected"`
}

// BulkDeleteResult summarises a bulk delete.
type BulkDeleteResult struct {
	Deleted        int `json:"deleted"`
	SystemCount    int `json:"systemCount"`
	ProtectedCount int `json:"protectedCount"`
}

// SeedResult lists codes inserted by SeedSystemAccounts.
type SeedResult struct {
	Inserted []string `json:"inserted"`
}

var (
	ErrAccountNotFound  = shared.NewError(shared.KindNotFound, "ACCOUNT_NOT_FOUND", "account not found")
	ErrProtectedAccount = shared.NewError(shared.KindForbidden, "PROTECTED_ACCOUNT", "system account cannot be modified")
	ErrDuplicateAccount = shared.NewError(shared.KindConflict, "DUPLICATE_ACCOUNT", "account code already exists")
	ErrAccountInUse     = shared.NewError(shared.KindConflict, "ACCOUNT_IN_USE", "account is referenced by journal lines")
	ErrInvalidAccount   = shared.NewError(shared.KindValidation, "INVALID_ACCOUNT", "invalid account")
)
