package shared

import "fmt"

// LedgerLockKey names the advisory lock guarding a company's ledger.
// Postings hold it shared, reposting and period changes hold it exclusively.
func LedgerLockKey(companyID int64) string {
	return fmt.Sprintf("ledger:company:%d", companyID)
}

// StockLockKey names the advisory lock serialising availability checks of one
// item. Warehouse and item code are matched exactly, as the movement log does.
func StockLockKey(companyID int64, warehouse, itemCode string) string {
	return fmt.Sprintf("stock:%d:%s:%s", companyID, warehouse, itemCode)
}
