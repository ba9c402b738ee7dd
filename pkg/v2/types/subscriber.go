package types

// UserProperties are the free-form properties stored for a subscriber
type UserProperties struct {
	Email string            `json:"email,omitempty"`
	Token string            `json:"token,omitempty"`
	Extra map[string]string `json:"info,omitempty"`
}

// AttributionType names a third-party attribution identifier
type AttributionType string

const (
	AttributionAdjustID    AttributionType = "adjustid"
	AttributionAppsFlyerID AttributionType = "appsflyerid"
	AttributionGAID        AttributionType = "gaid"
	AttributionASID        AttributionType = "asid"
	AttributionAID         AttributionType = "aid"
	AttributionIP          AttributionType = "ip"
)

// AttributionItem sets Type to Value. A nil Value clears it.
type AttributionItem struct {
	Type  AttributionType `json:"type"`
	Value *string         `json:"value"`
}

// EventType is the kind of a server-side purchase event
type EventType int

const (
	EventUnknown                EventType = -1
	EventInitialBuy             EventType = 5001
	EventRestarted              EventType = 5002
	EventRenewed                EventType = 5003
	EventExpired                EventType = 5004
	EventDidChangeRenewalStatus EventType = 5005
	EventIsInBillingRetryPeriod EventType = 5006
	EventProductChange          EventType = 5007
	EventInAppPurchase          EventType = 5008
	EventRefund                 EventType = 5009
	EventPaused                 EventType = 5010
	EventResumed                EventType = 5011
	EventConnectLicense         EventType = 5012
	EventDisconnectLicense      EventType = 5013
)

func EventTypeFromValue(v int) EventType {
	if v >= int(EventInitialBuy) && v <= int(EventDisconnectLicense) {
		return EventType(v)
	}
	return EventUnknown
}

// PurchaseHistory is one server-side purchase event
type PurchaseHistory struct {
	ProductID            string    `json:"productid"`
	SkuID                string    `json:"skuid,omitempty"`
	Type                 EventType `json:"type"`
	Store                Store     `json:"store"`
	PurchaseDate         int64     `json:"date_ms,omitempty"`
	ExpireDate           int64     `json:"expire_date_ms,omitempty"`
	TransactionID        string    `json:"transaction_id,omitempty"`
	SubscriberID         string    `json:"subscriberid,omitempty"`
	CurrencyCode         string    `json:"currency_code,omitempty"`
	CountryCode          string    `json:"country_code,omitempty"`
	IsInIntroOfferPeriod bool      `json:"is_in_intro_offer_period"`
	PromotionalOfferID   string    `json:"promotional_offer_id,omitempty"`
	OfferCodeRefName     string    `json:"offer_code_ref_name,omitempty"`
	LicenseCode          string    `json:"licensecode,omitempty"`
	WebOrderLineItemID   string    `json:"web_order_line_item_id,omitempty"`
}

type PurchasesHistory struct {
	All          []PurchaseHistory `json:"purchases"`
	SubscriberID string            `json:"subscriberid"`
	CustomID     string            `json:"customid,omitempty"`
}

// PaywallType is the rendering technology of a paywall
type PaywallType string

const (
	PaywallHTML    PaywallType = "html"
	PaywallNoCode  PaywallType = "nocode"
	PaywallUnknown PaywallType = "unknown"
)

// Paywall is the remote paywall description with its skus resolved
type Paywall struct {
	PaywallID  string      `json:"pwid"`
	ContentURL string      `json:"url"`
	Locale     string      `json:"locale"`
	Type       PaywallType `json:"type"`
	Version    string      `json:"version"`
	Skus       []*Sku      `json:"skus"`
}
