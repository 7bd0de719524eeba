package accounts

// ChartEntry is one account of the built-in system chart (SKR03 numbering).
type ChartEntry struct {
	Code   string
	NameDE string
	NameEN string
	Type   AccountType
}

// systemChart is the single list of protected Stammkonten. Every protection
// check and the seeding routine read it through a Registry.
var systemChart = []ChartEntry{
	{Code: "0800", NameDE: "Gezeichnetes Kapital", NameEN: "Subscribed capital", Type: AccountTypeEquity},
	{Code: "1000", NameDE: "Kasse", NameEN: "Cash", Type: AccountTypeAsset},
	{Code: "1200", NameDE: "Bank", NameEN: "Bank", Type: AccountTypeAsset},
	{Code: "1400", NameDE: "Forderungen aus Lieferungen und Leistungen", NameEN: "Trade receivables", Type: AccountTypeAsset},
	{Code: "1576", NameDE: "Abziehbare Vorsteuer 19%", NameEN: "Input VAT 19%", Type: AccountTypeAsset},
	{Code: "1600", NameDE: "Verbindlichkeiten aus Lieferungen und Leistungen", NameEN: "Trade payables", Type: AccountTypeLiability},
	{Code: "1776", NameDE: "Umsatzsteuer 19%", NameEN: "Output VAT 19%", Type: AccountTypeLiability},
	{Code: "3400", NameDE: "Wareneingang 19% Vorsteuer", NameEN: "Purchased goods 19%", Type: AccountTypeExpense},
	{Code: "3980", NameDE: "Bestand Waren", NameEN: "Inventory", Type: AccountTypeAsset},
	{Code: "8400", NameDE: "Erlöse 19% USt", NameEN: "Revenue 19% VAT", Type: AccountTypeIncome},
}

// Registry answers protection questions against the system chart.
type Registry struct {
	byCode map[string]ChartEntry
}

// NewRegistry builds the registry over the system chart.
func NewRegistry() Registry {
	byCode := make(map[string]ChartEntry, len(systemChart))
	for _, entry := range systemChart {
		byCode[entry.Code] = entry
	}
	return Registry{byCode: byCode}
}

// IsProtected reports whether code belongs to the system chart.
func (r Registry) IsProtected(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// Chart returns the system chart in code order.
func (r Registry) Chart() []ChartEntry {
	out := make([]ChartEntry, len(systemChart))
	copy(out, systemChart)
	return out
}

// ProtectedCodes lists the protected account codes in order.
func ProtectedCodes() []string {
	codes := make([]string, 0, len(systemChart))
	for _, entry := range systemChart {
		codes = append(codes, entry.Code)
	}
	return codes
}
