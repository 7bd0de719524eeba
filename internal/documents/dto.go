package documents

import "github.com/shopspring/decimal"

type postRequest struct {
	DocumentDate     string         `json:"documentDate" validate:"required,datetime=2006-01-02"`
	Series           string         `json:"series" validate:"required,max=20"`
	Number           string         `json:"number" validate:"required,max=40"`
	CounterpartyName string         `json:"counterpartyName" validate:"max=200"`
	WarehouseName    string         `json:"warehouseName" validate:"required,max=100"`
	OperationType    string         `json:"operationType" validate:"max=50"`
	CurrencyCode     string         `json:"currencyCode" validate:"required,len=3"`
	Items            []itemRequest  `json:"items" validate:"required,min=1,dive"`
	Journal          PostingProfile `json:"journal"`
}

type itemRequest struct {
	ItemName        string           `json:"itemName" validate:"max=200"`
	ItemCode        string           `json:"itemCode" validate:"max=60"`
	Quantity        decimal.Decimal  `json:"quantity"`
	PriceWithoutVAT decimal.Decimal  `json:"priceWithoutVat"`
	VATRate         *decimal.Decimal `json:"vatRate"`
}

type repostRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

func (r postRequest) items() []ItemInput {
	out := make([]ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, ItemInput{
			ItemName:        item.ItemName,
			ItemCode:        item.ItemCode,
			Quantity:        item.Quantity,
			PriceWithoutVAT: item.PriceWithoutVAT,
			VATRate:         item.VATRate,
		})
	}
	return out
}
