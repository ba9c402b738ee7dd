package storesim

import (
	"fmt"

	"glassfy/pkg/v2/types"
)

func formatPrice(micros int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(micros)/1e6, currency)
}

// Phase builds a pricing phase
func Phase(period string, micros int64, currency string, cycles int) types.PricingPhase {
	return types.PricingPhase{
		FormattedPrice:    formatPrice(micros, currency),
		PriceAmountMicros: micros,
		PriceCurrencyCode: currency,
		BillingPeriod:     period,
		BillingCycleCount: cycles,
	}
}

// BasePlan builds a single-phase base plan offer
func BasePlan(planID, period string, micros int64, currency string) types.SubscriptionOffer {
	return types.SubscriptionOffer{
		BasePlanID:    planID,
		OfferToken:    "otk-" + planID,
		PricingPhases: []types.PricingPhase{Phase(period, micros, currency, 0)},
	}
}

// Offer builds a promotional offer on base. The base plan phase is appended
// after the promotional phases.
func Offer(base types.SubscriptionOffer, offerID string, phases ...types.PricingPhase) types.SubscriptionOffer {
	all := append(append([]types.PricingPhase(nil), phases...), base.PricingPhases[0])
	return types.SubscriptionOffer{
		BasePlanID:    base.BasePlanID,
		OfferID:       offerID,
		OfferToken:    "otk-" + base.BasePlanID + "-" + offerID,
		PricingPhases: all,
	}
}

func InAppProduct(id, title string, micros int64, currency string) *types.ProductDetails {
	return &types.ProductDetails{
		ProductID: id,
		Kind:      types.ProductKindConsumable,
		Title:     title,
		Name:      title,
		OneTime: &types.OneTimeOffer{
			FormattedPrice:    formatPrice(micros, currency),
			PriceAmountMicros: micros,
			PriceCurrencyCode: currency,
		},
	}
}

func SubscriptionProduct(id, title string, offers ...types.SubscriptionOffer) *types.ProductDetails {
	return &types.ProductDetails{
		ProductID:          id,
		Kind:               types.ProductKindSubscription,
		Title:              title,
		Name:               title,
		SubscriptionOffers: offers,
	}
}
