package types

// ProductKind tells the reconciler what has to happen to a purchase at the store
type ProductKind string

const (
	ProductKindConsumable    ProductKind = "inapp"         // one-time product, consumed after purchase
	ProductKindSubscription  ProductKind = "subs"          // recurring product, acknowledged once
	ProductKindNonRenewable  ProductKind = "non_renewable" // server-side only
	ProductKindLicenseCode   ProductKind = "license_code"  // server-side only
	ProductKindUniversalCode ProductKind = "glassfy_code"  // server-side only
	ProductKindUnknown       ProductKind = "unknown"       // type not resolved yet
)

// ProductKindFromValue maps the numeric type used by the remote catalog
func ProductKindFromValue(v int) ProductKind {
	switch v {
	case 1:
		return ProductKindSubscription
	case 2:
		return ProductKindConsumable
	case 3:
		return ProductKindNonRenewable
	case 4:
		return ProductKindLicenseCode
	case 5:
		return ProductKindUniversalCode
	default:
		return ProductKindUnknown
	}
}

// IsStoreKind reports whether purchases of this kind are finalized at the store
func (k ProductKind) IsStoreKind() bool {
	return k == ProductKindConsumable || k == ProductKindSubscription
}

// ProductDescriptor identifies one purchasable offer in the store catalog.
// Empty PlanID/OfferID mean "not requested".
type ProductDescriptor struct {
	ProductID string      `json:"productid"`
	PlanID    string      `json:"baseplan,omitempty"`
	OfferID   string      `json:"offerid,omitempty"`
	Kind      ProductKind `json:"type"`
}

// PricingPhase is one step of a subscription offer's pricing schedule
type PricingPhase struct {
	FormattedPrice    string `json:"formatted_price"`
	PriceAmountMicros int64  `json:"price_amount_micros"`
	PriceCurrencyCode string `json:"price_currency_code"`
	BillingPeriod     string `json:"billing_period"`
	BillingCycleCount int    `json:"billing_cycle_count"`
	RecurrenceMode    int    `json:"recurrence_mode"`
}

// SubscriptionOffer is a base plan (OfferID empty) or a promotional offer layered on it
type SubscriptionOffer struct {
	BasePlanID    string         `json:"base_plan_id"`
	OfferID       string         `json:"offer_id,omitempty"`
	OfferToken    string         `json:"offer_token"`
	PricingPhases []PricingPhase `json:"pricing_phases"`
}

// IsBasePlan reports whether this offer is the plain base plan
func (o *SubscriptionOffer) IsBasePlan() bool {
	return len(o.PricingPhases) == 1
}

// OneTimeOffer carries the price of a consumable product
type OneTimeOffer struct {
	FormattedPrice    string `json:"formatted_price"`
	PriceAmountMicros int64  `json:"price_amount_micros"`
	PriceCurrencyCode string `json:"price_currency_code"`
}

// ProductDetails is the raw record the store returns for a catalog query
type ProductDetails struct {
	ProductID          string              `json:"product_id"`
	Kind               ProductKind         `json:"product_type"`
	Title              string              `json:"title"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	OneTime            *OneTimeOffer       `json:"one_time,omitempty"`
	SubscriptionOffers []SubscriptionOffer `json:"subscription_offers,omitempty"`
}

// StoreProduct is a ProductDetails resolved down to one purchasable offer
type StoreProduct struct {
	ProductID   string      `json:"productid"`
	BasePlanID  string      `json:"baseplan,omitempty"`
	OfferID     string      `json:"offerid,omitempty"`
	OfferToken  string      `json:"-"`
	Kind        ProductKind `json:"type"`
	Title       string      `json:"title"`
	Name        string      `json:"name"`
	Description string      `json:"description"`

	Price                    string `json:"price"`
	PriceAmountMicro         int64  `json:"price_micro"`
	PriceCurrencyCode        string `json:"price_currency"`
	OriginalPrice            string `json:"originalprice"`
	OriginalPriceAmountMicro int64  `json:"originalprice_micro"`
	SubscriptionPeriod       string `json:"subscription_period,omitempty"`
	FreeTrialPeriod          string `json:"freetrial_period,omitempty"`

	IntroductoryPrice             string `json:"intro_price,omitempty"`
	IntroductoryPriceAmountMicro  int64  `json:"intro_micro,omitempty"`
	IntroductoryPriceAmountCycles int    `json:"intro_cycles,omitempty"`
	IntroductoryPricePeriod       string `json:"intro_period,omitempty"`
}

// Descriptor returns the descriptor this product satisfies
func (p *StoreProduct) Descriptor() ProductDescriptor {
	return ProductDescriptor{ProductID: p.ProductID, PlanID: p.BasePlanID, OfferID: p.OfferID, Kind: p.Kind}
}
