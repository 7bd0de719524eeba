package accounts

type createRequest struct {
	Code   string `json:"code" validate:"required,max=16"`
	NameDE string `json:"nameDe" validate:"required,max=200"`
	NameEN string `json:"nameEn" validate:"max=200"`
	Type   string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
}

type patchRequest struct {
	Code     *string `json:"code" validate:"omitempty,min=1,max=16"`
	NameDE   *string `json:"nameDe" validate:"omitempty,min=1,max=200"`
	NameEN   *string `json:"nameEn" validate:"omitempty,max=200"`
	Type     *string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	IsActive *bool   `json:"isActive"`
}

func (p patchRequest) toPatch() Patch {
	patch := Patch{Code: p.Code, NameDE: p.NameDE, NameEN: p.NameEN, IsActive: p.IsActive}
	if p.Type != nil {
		t := AccountType(*p.Type)
		patch.Type = &t
	}
	return patch
}

type bulkRequest struct {
	Action string  `json:"action" validate:"required,oneof=check-usage delete"`
	IDs    []int64 `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
}
