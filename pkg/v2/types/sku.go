package types

// SkuVariant is implemented by every sku the server can return. The concrete
// type is selected by the store that sells it.
type SkuVariant interface {
	Base() SkuBase
}

// SkuBase is the store-agnostic part of a sku
type SkuBase struct {
	SkuID     string `json:"identifier"`
	ProductID string `json:"productid"`
	Store     Store  `json:"store"`
}

func (s SkuBase) Base() SkuBase { return s }

// Sku is a Play Store sku. Product is attached once the store resolved it.
type Sku struct {
	SkuID      string             `json:"identifier"`
	Extravars  map[string]string  `json:"extravars,omitempty"`
	OfferingID string             `json:"offeringid,omitempty"`
	Params     ProductDescriptor  `json:"params"`
	Fallback   *ProductDescriptor `json:"fallback,omitempty"`
	Product    *StoreProduct      `json:"product,omitempty"`
}

func (s *Sku) Base() SkuBase {
	return SkuBase{SkuID: s.SkuID, ProductID: s.Params.ProductID, Store: StorePlayStore}
}

// ProductIDs returns the primary product id followed by the fallback one, if any
func (s *Sku) ProductIDs() []string {
	ids := []string{s.Params.ProductID}
	if s.Fallback != nil && s.Fallback.ProductID != "" && s.Fallback.ProductID != s.Params.ProductID {
		ids = append(ids, s.Fallback.ProductID)
	}
	return ids
}

// PaddleSku is sold through Paddle and never touches the device store
type PaddleSku struct {
	SkuID              string            `json:"identifier"`
	ProductID          string            `json:"productid"`
	Extravars          map[string]string `json:"extravars,omitempty"`
	Name               string            `json:"name"`
	InitialPrice       *float64          `json:"initial_price,omitempty"`
	InitialPriceCode   string            `json:"initial_price_code,omitempty"` // ISO 4217
	RecurringPrice     *float64          `json:"recurring_price,omitempty"`
	RecurringPriceCode string            `json:"recurring_price_code,omitempty"` // ISO 4217
}

func (s *PaddleSku) Base() SkuBase {
	return SkuBase{SkuID: s.SkuID, ProductID: s.ProductID, Store: StorePaddle}
}

// AccountableSku is a sku contributing to a permission
type AccountableSku struct {
	SkuID                string `json:"identifier"`
	ProductID            string `json:"productid"`
	BasePlanID           string `json:"baseplan,omitempty"`
	OfferID              string `json:"offerid,omitempty"`
	IsInIntroOfferPeriod bool   `json:"isinintrooffer"`
	IsInTrialPeriod      bool   `json:"istrial"`
	Store                Store  `json:"store"`
}
