package types

import "net/url"

// Store is where a sku is sold
type Store int

const (
	StoreUnknown   Store = -1
	StoreAppStore  Store = 1
	StorePlayStore Store = 2
	StorePaddle    Store = 3
	StoreStripe    Store = 4
	StoreGlassfy   Store = 5
)

// StoreFromValue maps a wire value, unknown values become StoreUnknown
func StoreFromValue(v int) Store {
	switch s := Store(v); s {
	case StoreAppStore, StorePlayStore, StorePaddle, StoreStripe, StoreGlassfy:
		return s
	default:
		return StoreUnknown
	}
}

func (s Store) String() string {
	switch s {
	case StoreAppStore:
		return "appstore"
	case StorePlayStore:
		return "playstore"
	case StorePaddle:
		return "paddle"
	case StoreStripe:
		return "stripe"
	case StoreGlassfy:
		return "glassfy"
	default:
		return "unknown"
	}
}

// StoreInfo describes the subscriber's account on a third-party store
type StoreInfo struct {
	Store   Store                  `json:"store"`
	RawData map[string]interface{} `json:"raw_data"`
}

func (i *StoreInfo) str(key string) string {
	s, _ := i.RawData[key].(string)
	return s
}

func (i *StoreInfo) urlOf(key string) *url.URL {
	raw := i.str(key)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

// Paddle fields

func (i *StoreInfo) UserID() string         { return i.str("userid") }
func (i *StoreInfo) PlanID() string         { return i.str("planid") }
func (i *StoreInfo) UpdateURL() *url.URL    { return i.urlOf("updateurl") }
func (i *StoreInfo) CancelURL() *url.URL    { return i.urlOf("cancelurl") }
func (i *StoreInfo) SubscriptionID() string { return i.str("subscriptionid") }

// Stripe fields

func (i *StoreInfo) CustomerID() string { return i.str("customerid") }
func (i *StoreInfo) ProductID() string  { return i.str("productid") }

type StoresInfo struct {
	All []StoreInfo `json:"all"`
}

// Filter returns the entries belonging to store
func (s *StoresInfo) Filter(store Store) []StoreInfo {
	var out []StoreInfo
	for _, i := range s.All {
		if i.Store == store {
			out = append(out, i)
		}
	}
	return out
}
