package billing

import (
	"glassfy/pkg/v2/types"
)

// Candidates is what the store returned for a batch of catalog queries.
// Details come from the product details API, Legacy from the pre-5.0 sku
// details API.
type Candidates struct {
	Details []*types.ProductDetails
	Legacy  []*types.StoreProduct
}

// Resolve matches primary first, then fallback. A nil result means the
// product is not available for purchase.
func (c *Candidates) Resolve(primary types.ProductDescriptor, fallback *types.ProductDescriptor) *types.StoreProduct {
	if c == nil {
		return nil
	}
	if p := c.resolveOne(primary); p != nil {
		return p
	}
	if fallback != nil {
		return c.resolveOne(*fallback)
	}
	return nil
}

func (c *Candidates) resolveOne(d types.ProductDescriptor) *types.StoreProduct {
	for _, pd := range c.Details {
		if p := matchDetails(d, pd); p != nil {
			return p
		}
	}
	for _, p := range c.Legacy {
		if p.ProductID == d.ProductID && p.BasePlanID == d.PlanID && p.OfferID == d.OfferID {
			return p
		}
	}
	return nil
}

// Match resolves primary, then fallback, against the store product records
func Match(primary types.ProductDescriptor, fallback *types.ProductDescriptor, candidates []*types.ProductDetails) *types.StoreProduct {
	return (&Candidates{Details: candidates}).Resolve(primary, fallback)
}

func matchDetails(d types.ProductDescriptor, pd *types.ProductDetails) *types.StoreProduct {
	if pd == nil || pd.ProductID != d.ProductID {
		return nil
	}
	switch pd.Kind {
	case types.ProductKindConsumable:
		// one-time products have neither plans nor offers
		if d.PlanID != "" || d.OfferID != "" {
			return nil
		}
		return inAppProduct(pd)
	case types.ProductKindSubscription:
		return subscriptionProduct(d, pd)
	default:
		return nil
	}
}

func inAppProduct(pd *types.ProductDetails) *types.StoreProduct {
	if pd.OneTime == nil {
		return nil
	}
	o := pd.OneTime
	return &types.StoreProduct{
		ProductID:                pd.ProductID,
		Kind:                     types.ProductKindConsumable,
		Title:                    pd.Title,
		Name:                     pd.Name,
		Description:              pd.Description,
		Price:                    o.FormattedPrice,
		PriceAmountMicro:         o.PriceAmountMicros,
		PriceCurrencyCode:        o.PriceCurrencyCode,
		OriginalPrice:            o.FormattedPrice,
		OriginalPriceAmountMicro: o.PriceAmountMicros,
	}
}

func subscriptionProduct(d types.ProductDescriptor, pd *types.ProductDetails) *types.StoreProduct {
	if d.PlanID == "" {
		return nil
	}

	var offers []*types.SubscriptionOffer
	for i := range pd.SubscriptionOffers {
		if pd.SubscriptionOffers[i].BasePlanID == d.PlanID {
			offers = append(offers, &pd.SubscriptionOffers[i])
		}
	}

	basePlan := findBasePlan(offers)
	if basePlan == nil {
		return nil
	}

	var offer *types.SubscriptionOffer
	if d.OfferID != "" {
		offer = findOffer(d.OfferID, offers)
		if offer == nil {
			return nil
		}
	}
	return convertSubscription(pd, basePlan, offer)
}

func findBasePlan(offers []*types.SubscriptionOffer) *types.SubscriptionOffer {
	for _, o := range offers {
		if o.IsBasePlan() {
			return o
		}
	}
	return nil
}

func findOffer(offerID string, offers []*types.SubscriptionOffer) *types.SubscriptionOffer {
	for _, o := range offers {
		if o.OfferID == offerID {
			return o
		}
	}
	return nil
}

func convertSubscription(pd *types.ProductDetails, basePlan, offer *types.SubscriptionOffer) *types.StoreProduct {
	base := basePlan.PricingPhases[0]
	p := &types.StoreProduct{
		ProductID:                pd.ProductID,
		BasePlanID:               basePlan.BasePlanID,
		OfferToken:               basePlan.OfferToken,
		Kind:                     types.ProductKindSubscription,
		Title:                    pd.Title,
		Name:                     pd.Name,
		Description:              pd.Description,
		Price:                    base.FormattedPrice,
		PriceAmountMicro:         base.PriceAmountMicros,
		PriceCurrencyCode:        base.PriceCurrencyCode,
		OriginalPrice:            base.FormattedPrice,
		OriginalPriceAmountMicro: base.PriceAmountMicros,
		SubscriptionPeriod:       base.BillingPeriod,
	}
	if offer == nil {
		return p
	}

	p.OfferID = offer.OfferID
	p.OfferToken = offer.OfferToken

	// the base plan phase is repeated at the end of every offer
	var trial, intro *types.PricingPhase
	for i := range offer.PricingPhases {
		ph := &offer.PricingPhases[i]
		if *ph == base {
			continue
		}
		if ph.PriceAmountMicros == 0 && trial == nil {
			trial = ph
		}
		if ph.PriceAmountMicros != 0 && intro == nil {
			intro = ph
		}
	}
	if trial != nil {
		p.FreeTrialPeriod = trial.BillingPeriod
	}
	if intro != nil {
		p.IntroductoryPrice = intro.FormattedPrice
		p.IntroductoryPriceAmountMicro = intro.PriceAmountMicros
		p.IntroductoryPriceAmountCycles = intro.BillingCycleCount
		p.IntroductoryPricePeriod = intro.BillingPeriod
	}
	return p
}
