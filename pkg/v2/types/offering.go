package types

type Offering struct {
	OfferingID string `json:"identifier"`
	Skus       []*Sku `json:"skus"`
}

type Offerings struct {
	All []*Offering `json:"all"`
}

// Entitlement is the server-computed state of a permission
type Entitlement int

const (
	EntitlementNeverBuy             Entitlement = -9
	EntitlementOtherRefund          Entitlement = -8
	EntitlementIssueRefund          Entitlement = -7
	EntitlementUpgraded             Entitlement = -6
	EntitlementExpiredVoluntarily   Entitlement = -5
	EntitlementProductNotAvailable  Entitlement = -4
	EntitlementFailToAcceptIncrease Entitlement = -3
	EntitlementExpiredFromBilling   Entitlement = -2
	EntitlementInRetry              Entitlement = -1
	EntitlementMissingInfo          Entitlement = 0
	EntitlementExpiredInGrace       Entitlement = 1
	EntitlementOffPlatform          Entitlement = 2
	EntitlementNonRenewing          Entitlement = 3
	EntitlementAutoRenewOff         Entitlement = 4
	EntitlementAutoRenewOn          Entitlement = 5
)

// Valid reports whether v is a known entitlement value
func (e Entitlement) Valid() bool {
	return e >= EntitlementNeverBuy && e <= EntitlementAutoRenewOn
}

type Permission struct {
	PermissionID    string           `json:"identifier"`
	Entitlement     Entitlement      `json:"entitlement"`
	ExpireDate      int64            `json:"expires_date"` // unix seconds
	AccountableSkus []AccountableSku `json:"skuarray,omitempty"`
}

// IsValid reports whether the permission currently grants access
func (p *Permission) IsValid() bool {
	return p.Entitlement > 0
}

type Permissions struct {
	OriginalApplicationVersion string       `json:"original_application_version"`
	OriginalApplicationDate    string       `json:"original_purchase_date"`
	SubscriberID               string       `json:"subscriberid"`
	InstallationID             string       `json:"installationid"`
	All                        []Permission `json:"permissions"`
}

// Get returns the permission with the given id
func (p *Permissions) Get(id string) (*Permission, bool) {
	for i := range p.All {
		if p.All[i].PermissionID == id {
			return &p.All[i], true
		}
	}
	return nil, false
}
