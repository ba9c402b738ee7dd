package types

// PurchaseState mirrors the store's purchase state
type PurchaseState int

const (
	PurchaseStateUnspecified PurchaseState = 0
	PurchaseStatePurchased   PurchaseState = 1
	PurchaseStatePending     PurchaseState = 2
)

func (s PurchaseState) String() string {
	switch s {
	case PurchaseStatePurchased:
		return "purchased"
	case PurchaseStatePending:
		return "pending"
	default:
		return "unspecified"
	}
}

// PurchaseRecord is a currently owned purchase reported by the store
type PurchaseRecord struct {
	OrderID       string        `json:"order_id"`
	PackageName   string        `json:"package_name"`
	PurchaseToken string        `json:"purchase_token"`
	ProductIDs    []string      `json:"product_ids"`
	PurchaseTime  int64         `json:"purchase_time"` // unix millis
	Quantity      int           `json:"quantity"`
	Acknowledged  bool          `json:"acknowledged"`
	AutoRenewing  bool          `json:"auto_renewing"`
	State         PurchaseState `json:"purchase_state"`
	AccountID     string        `json:"account_id,omitempty"`
	Signature     string        `json:"signature,omitempty"`
	OriginalJSON  string        `json:"original_json,omitempty"`
}

// HasProduct reports whether any of ids is part of this purchase
func (p *PurchaseRecord) HasProduct(ids ...string) bool {
	for _, own := range p.ProductIDs {
		for _, id := range ids {
			if own == id {
				return true
			}
		}
	}
	return false
}

// PurchaseHistoryRecord is a past purchase, owned or not
type PurchaseHistoryRecord struct {
	PurchaseToken string   `json:"purchase_token"`
	ProductIDs    []string `json:"product_ids"`
	PurchaseTime  int64    `json:"purchase_time"`
	Quantity      int      `json:"quantity"`
	Signature     string   `json:"signature,omitempty"`
	OriginalJSON  string   `json:"original_json,omitempty"`
}

// ReplacementMode selects how an upgraded subscription is charged
type ReplacementMode int

const (
	ReplacementUnknown             ReplacementMode = 0
	ReplacementWithTimeProration   ReplacementMode = 1
	ReplacementChargeProratedPrice ReplacementMode = 2 // upgrades only
	ReplacementWithoutProration    ReplacementMode = 3
	ReplacementDeferred            ReplacementMode = 4
	ReplacementChargeFullPrice     ReplacementMode = 5
)

const DefaultReplacementMode = ReplacementWithTimeProration

// SubscriptionUpdate describes an upgrade or downgrade from OriginalSku.
// PurchaseToken is filled in by the SDK from the owned purchases.
type SubscriptionUpdate struct {
	OriginalSku   string          `json:"original_sku"`
	Replacement   ReplacementMode `json:"replacement"`
	PurchaseToken string          `json:"-"`
}

// Transaction is the result of a completed purchase
type Transaction struct {
	ProductID        string          `json:"productid"`
	ReceiptValidated bool            `json:"receipt_validated"`
	Permissions      *Permissions    `json:"permissions"`
	Purchase         *PurchaseRecord `json:"purchase,omitempty"`
}

// PurchaseDelegate is notified of every completed purchase, whether or not a
// caller is waiting on it
type PurchaseDelegate interface {
	OnProductPurchase(p *PurchaseRecord, isSubscription bool)
}

// PurchaseDelegateFunc adapts a function to PurchaseDelegate
type PurchaseDelegateFunc func(p *PurchaseRecord, isSubscription bool)

func (f PurchaseDelegateFunc) OnProductPurchase(p *PurchaseRecord, isSubscription bool) {
	f(p, isSubscription)
}
