package repository

import (
	"encoding/json"
	"fmt"

	"glassfy/pkg/v2/types"
)

// ErrorDto is the error payload the server embeds in failed responses
type ErrorDto struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// envelope carries the fields every response shares
type envelope struct {
	Status int       `json:"status"`
	Error  *ErrorDto `json:"error"`
}

func (e *envelope) apiError() *ErrorDto { return e.Error }

type response interface {
	apiError() *ErrorDto
}

// DecodeError marks a response whose payload is malformed
type DecodeError struct {
	msg string
}

func (e *DecodeError) Error() string { return e.msg }

func decodeErrorf(format string, args ...interface{}) error {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// Requests

type TokenRequest struct {
	IsSubscription bool     `json:"purchasesubscription"`
	ProductIDs     []string `json:"productid"`
	OrderID        string   `json:"orderid,omitempty"`
	PurchaseTime   int64    `json:"purchasetime"`
	Token          string   `json:"token"`
	Quantity       int      `json:"quantity"`
	OfferingID     string   `json:"offeringidentifier,omitempty"`
}

func TokenFromPurchase(p *types.PurchaseRecord, isSubscription bool) TokenRequest {
	return TokenRequest{
		IsSubscription: isSubscription,
		ProductIDs:     p.ProductIDs,
		OrderID:        p.OrderID,
		PurchaseTime:   p.PurchaseTime,
		Token:          p.PurchaseToken,
		Quantity:       p.Quantity,
	}
}

func TokenFromHistory(h *types.PurchaseHistoryRecord, isSubscription bool) TokenRequest {
	return TokenRequest{
		IsSubscription: isSubscription,
		ProductIDs:     h.ProductIDs,
		PurchaseTime:   h.PurchaseTime,
		Token:          h.PurchaseToken,
		Quantity:       h.Quantity,
	}
}

// HistoryTokens lists subscriptions first, then in-app purchases
func HistoryTokens(subs, inApp []*types.PurchaseHistoryRecord) []TokenRequest {
	tokens := make([]TokenRequest, 0, len(subs)+len(inApp))
	for _, h := range subs {
		tokens = append(tokens, TokenFromHistory(h, true))
	}
	for _, h := range inApp {
		tokens = append(tokens, TokenFromHistory(h, false))
	}
	return tokens
}

type InitializeRequest struct {
	PackageName string         `json:"packagename"`
	Tokens      []TokenRequest `json:"tokens"`
	InstallTime *int64         `json:"install_time,omitempty"`
}

type ConnectRequest struct {
	CustomID   *string      `json:"customid,omitempty"`
	Store      *types.Store `json:"store,omitempty"`
	LicenseKey *string      `json:"licensekey,omitempty"`
	Force      *bool        `json:"force,omitempty"`
}

// UserPropertyRequest sets exactly one property. A nil field clears it on
// the server, so the request is encoded with the key present.
type UserPropertyRequest struct {
	key   string
	value interface{}
}

func EmailProperty(email *string) UserPropertyRequest {
	return UserPropertyRequest{key: "email", value: email}
}

func TokenProperty(token *string) UserPropertyRequest {
	return UserPropertyRequest{key: "token", value: token}
}

func ExtraProperty(extra map[string]string) UserPropertyRequest {
	return UserPropertyRequest{key: "info", value: extra}
}

func (r UserPropertyRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{r.key: r.value})
}

// Responses

type InitializeResponse struct {
	envelope
	SubscriberID string `json:"subscriberid"`
}

// ServerInfo is what a successful initialize returns
type ServerInfo struct {
	SubscriberID string
}

type SkuParamsDto struct {
	ProductID  string `json:"productid"`
	BasePlanID string `json:"baseplan"`
	OfferID    string `json:"offerid"`
}

type PaddlePriceDto struct {
	Price  *float64 `json:"price"`
	Locale string   `json:"locale"`
}

type SkuDto struct {
	Identifier string            `json:"identifier"`
	ProductID  string            `json:"productid"`
	Store      *int              `json:"store"`
	Extravars  map[string]string `json:"extravars"`
	Name       string            `json:"name"`
	// the server swaps these two keys; the field names follow the meaning
	InitialPrice   *PaddlePriceDto `json:"recurringprice"`
	RecurringPrice *PaddlePriceDto `json:"initialprice"`
	BasePlanID     string          `json:"baseplan"`
	OfferID        string          `json:"offerid"`
	Type           *int            `json:"type"`
	Fallback       *SkuParamsDto   `json:"fallbacksku"`
}

// ToSku converts the dto into the variant for its store. offeringID is
// stamped on Play Store skus.
func (d *SkuDto) ToSku(offeringID string) (types.SkuVariant, error) {
	if d.Identifier == "" || d.ProductID == "" || d.Store == nil {
		return nil, decodeErrorf("Unexpected Sku data format: missing identifier/productId")
	}

	store := types.StoreFromValue(*d.Store)
	switch store {
	case types.StorePaddle:
		if d.Name == "" {
			return nil, decodeErrorf("Unexpected PaddleSku data format: missing name")
		}
		sku := &types.PaddleSku{
			SkuID:     d.Identifier,
			ProductID: d.ProductID,
			Extravars: d.Extravars,
			Name:      d.Name,
		}
		if d.InitialPrice != nil {
			sku.InitialPrice, sku.InitialPriceCode = d.InitialPrice.Price, d.InitialPrice.Locale
		}
		if d.RecurringPrice != nil {
			sku.RecurringPrice, sku.RecurringPriceCode = d.RecurringPrice.Price, d.RecurringPrice.Locale
		}
		return sku, nil
	case types.StorePlayStore:
		kind := types.ProductKindUnknown
		if d.Type != nil {
			kind = types.ProductKindFromValue(*d.Type)
		}
		sku := &types.Sku{
			SkuID:      d.Identifier,
			Extravars:  d.Extravars,
			OfferingID: offeringID,
			Params: types.ProductDescriptor{
				ProductID: d.ProductID,
				PlanID:    d.BasePlanID,
				OfferID:   d.OfferID,
				Kind:      kind,
			},
		}
		if d.Fallback != nil && d.Fallback.ProductID != "" && d.Fallback.BasePlanID != "" {
			sku.Fallback = &types.ProductDescriptor{
				ProductID: d.Fallback.ProductID,
				PlanID:    d.Fallback.BasePlanID,
				OfferID:   d.Fallback.OfferID,
				Kind:      kind,
			}
		}
		return sku, nil
	default:
		return types.SkuBase{SkuID: d.Identifier, ProductID: d.ProductID, Store: store}, nil
	}
}

type SkuResponse struct {
	envelope
	Sku *SkuDto `json:"sku"`
}

type OfferingDto struct {
	AppID      string   `json:"appid"`
	Identifier string   `json:"identifier"`
	Skus       []SkuDto `json:"skus"`
}

func (d *OfferingDto) ToOffering() (*types.Offering, error) {
	if d.Identifier == "" {
		return nil, decodeErrorf("Missing offering identifier")
	}
	o := &types.Offering{OfferingID: d.Identifier, Skus: make([]*types.Sku, 0, len(d.Skus))}
	for i := range d.Skus {
		v, err := d.Skus[i].ToSku(d.Identifier)
		if err != nil {
			return nil, err
		}
		// offerings only sell through the device store
		if sku, ok := v.(*types.Sku); ok {
			o.Skus = append(o.Skus, sku)
		}
	}
	return o, nil
}

type OfferingsResponse struct {
	envelope
	Offerings []OfferingDto `json:"offerings"`
}

type SkuBaseDto struct {
	Identifier           string `json:"identifier"`
	ProductID            string `json:"productid"`
	BasePlanID           string `json:"baseplan"`
	OfferID              string `json:"offerid"`
	IsInIntroOfferPeriod bool   `json:"isinintrooffer"`
	IsInTrialPeriod      bool   `json:"istrial"`
	Store                *int   `json:"store"`
}

type PermissionDto struct {
	Identifier  string       `json:"identifier"`
	Entitlement *int         `json:"entitlement"`
	ExpiresDate *int64       `json:"expires_date"`
	SkuArray    []SkuBaseDto `json:"skuarray"`
}

func (d *PermissionDto) ToPermission() (types.Permission, error) {
	if d.Identifier == "" || d.ExpiresDate == nil {
		return types.Permission{}, decodeErrorf("Missing permission identifier or expiresDate")
	}
	entitlement := types.EntitlementNeverBuy
	if d.Entitlement != nil {
		if e := types.Entitlement(*d.Entitlement); e.Valid() {
			entitlement = e
		}
	}
	p := types.Permission{PermissionID: d.Identifier, Entitlement: entitlement, ExpireDate: *d.ExpiresDate}
	for _, s := range d.SkuArray {
		store := types.StoreUnknown
		if s.Store != nil {
			store = types.StoreFromValue(*s.Store)
		}
		p.AccountableSkus = append(p.AccountableSkus, types.AccountableSku{
			SkuID:                s.Identifier,
			ProductID:            s.ProductID,
			BasePlanID:           s.BasePlanID,
			OfferID:              s.OfferID,
			IsInIntroOfferPeriod: s.IsInIntroOfferPeriod,
			IsInTrialPeriod:      s.IsInTrialPeriod,
			Store:                store,
		})
	}
	return p, nil
}

type PermissionsResponse struct {
	envelope
	Permissions                []PermissionDto `json:"permissions"`
	OriginalApplicationVersion string          `json:"original_application_version"`
	OriginalPurchaseDate       string          `json:"original_purchase_date"`
	SubscriberID               string          `json:"subscriberid"`
}

func (r *PermissionsResponse) ToPermissions() (*types.Permissions, error) {
	out := &types.Permissions{
		OriginalApplicationVersion: r.OriginalApplicationVersion,
		OriginalApplicationDate:    r.OriginalPurchaseDate,
		SubscriberID:               r.SubscriberID,
		All:                        make([]types.Permission, 0, len(r.Permissions)),
	}
	for i := range r.Permissions {
		p, err := r.Permissions[i].ToPermission()
		if err != nil {
			return nil, err
		}
		out.All = append(out.All, p)
	}
	return out, nil
}

type StoreInfoDto map[string]interface{}

func (d StoreInfoDto) ToStoreInfo() types.StoreInfo {
	store := types.StoreUnknown
	if v, ok := d["store"].(float64); ok {
		store = types.StoreFromValue(int(v))
	}
	return types.StoreInfo{Store: store, RawData: d}
}

type StoresInfoResponse struct {
	envelope
	Info []StoreInfoDto `json:"info"`
}

type UserPropertiesResponse struct {
	envelope
	Property *types.UserProperties `json:"property"`
}

type PurchaseHistoryDto struct {
	ProductID            string `json:"productid"`
	SkuID                string `json:"skuid"`
	Type                 *int   `json:"type"`
	Store                *int   `json:"store"`
	DateMs               int64  `json:"date_ms"`
	ExpireDateMs         int64  `json:"expire_date_ms"`
	TransactionID        string `json:"transaction_id"`
	SubscriberID         string `json:"subscriberid"`
	CurrencyCode         string `json:"currency_code"`
	CountryCode          string `json:"country_code"`
	IsInIntroOfferPeriod bool   `json:"is_in_intro_offer_period"`
	PromotionalOfferID   string `json:"promotional_offer_id"`
	OfferCodeRefName     string `json:"offer_code_ref_name"`
	LicenseCode          string `json:"licensecode"`
	WebOrderLineItemID   string `json:"web_order_line_item_id"`
}

func (d *PurchaseHistoryDto) ToPurchaseHistory() (types.PurchaseHistory, error) {
	if d.ProductID == "" {
		return types.PurchaseHistory{}, decodeErrorf("Missing purchase productid")
	}
	h := types.PurchaseHistory{
		ProductID:            d.ProductID,
		SkuID:                d.SkuID,
		Type:                 types.EventUnknown,
		Store:                types.StoreUnknown,
		PurchaseDate:         d.DateMs,
		ExpireDate:           d.ExpireDateMs,
		TransactionID:        d.TransactionID,
		SubscriberID:         d.SubscriberID,
		CurrencyCode:         d.CurrencyCode,
		CountryCode:          d.CountryCode,
		IsInIntroOfferPeriod: d.IsInIntroOfferPeriod,
		PromotionalOfferID:   d.PromotionalOfferID,
		OfferCodeRefName:     d.OfferCodeRefName,
		LicenseCode:          d.LicenseCode,
		WebOrderLineItemID:   d.WebOrderLineItemID,
	}
	if d.Type != nil {
		h.Type = types.EventTypeFromValue(*d.Type)
	}
	if d.Store != nil {
		h.Store = types.StoreFromValue(*d.Store)
	}
	return h, nil
}

type PurchaseHistoryResponse struct {
	envelope
	SubscriberID string               `json:"subscriberid"`
	CustomID     string               `json:"customid"`
	Purchases    []PurchaseHistoryDto `json:"purchases"`
}

type PaywallDto struct {
	Version    string `json:"version"`
	Type       string `json:"type"`
	ContentURL string `json:"url"`
	Locale     string `json:"locale"`
	PaywallID  string `json:"pwid"`
}

type PaywallResponse struct {
	envelope
	Paywall *PaywallDto `json:"paywall"`
	Skus    []SkuDto    `json:"skus"`
}

func (r *PaywallResponse) ToPaywall() (*types.Paywall, error) {
	dto := r.Paywall
	switch {
	case dto == nil:
		return nil, decodeErrorf("Unexpected data format")
	case dto.ContentURL == "":
		return nil, decodeErrorf("Unexpected paywall data format: missing content or url")
	case dto.PaywallID == "":
		return nil, decodeErrorf("Unexpected paywall data format: missing pwid")
	case dto.Locale == "":
		return nil, decodeErrorf("Unexpected paywall data format: missing locale")
	case dto.Type == "":
		return nil, decodeErrorf("Unexpected paywall data format: missing type")
	}

	pt := types.PaywallType(dto.Type)
	if pt != types.PaywallHTML && pt != types.PaywallNoCode {
		pt = types.PaywallUnknown
	}
	pw := &types.Paywall{
		PaywallID:  dto.PaywallID,
		ContentURL: dto.ContentURL,
		Locale:     dto.Locale,
		Type:       pt,
		Version:    dto.Version,
	}
	for i := range r.Skus {
		v, err := r.Skus[i].ToSku(dto.PaywallID)
		if err != nil {
			return nil, err
		}
		if sku, ok := v.(*types.Sku); ok {
			pw.Skus = append(pw.Skus, sku)
		}
	}
	return pw, nil
}

type TransactionResponse = PermissionsResponse

type lastSeenResponse struct {
	envelope
	Update bool `json:"update"`
}

type emptyResponse struct {
	envelope
}
