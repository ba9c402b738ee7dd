package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"glassfy/internal/v2/storesim"
	"glassfy/pkg/v2/types"
)

// catalogFile lists the products sold by the simulated store:
//
//	products:
//	  - id: coins
//	    kind: inapp
//	    title: 100 coins
//	    price_micros: 990000
//	    currency: EUR
//	  - id: premium
//	    kind: subs
//	    title: Premium
//	    plans:
//	      - id: monthly
//	        period: P1M
//	        price_micros: 4990000
//	        currency: EUR
//	        trial: P1W
type catalogFile struct {
	Products []catalogProduct `yaml:"products"`
	Owned    []catalogOwned   `yaml:"owned"`
}

type catalogProduct struct {
	ID          string        `yaml:"id"`
	Kind        string        `yaml:"kind"`
	Title       string        `yaml:"title"`
	PriceMicros int64         `yaml:"price_micros"`
	Currency    string        `yaml:"currency"`
	Plans       []catalogPlan `yaml:"plans"`
}

type catalogPlan struct {
	ID          string `yaml:"id"`
	Period      string `yaml:"period"`
	PriceMicros int64  `yaml:"price_micros"`
	Currency    string `yaml:"currency"`
	Trial       string `yaml:"trial"`
}

// catalogOwned seeds purchases the store reports as already owned
type catalogOwned struct {
	Token        string `yaml:"token"`
	ProductID    string `yaml:"product_id"`
	Kind         string `yaml:"kind"`
	Acknowledged bool   `yaml:"acknowledged"`
}

func loadCatalog(path string, sim *storesim.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c catalogFile
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for _, p := range c.Products {
		switch types.ProductKind(p.Kind) {
		case types.ProductKindConsumable:
			sim.AddProduct(storesim.InAppProduct(p.ID, p.Title, p.PriceMicros, p.Currency))
		case types.ProductKindSubscription:
			var offers []types.SubscriptionOffer
			for _, plan := range p.Plans {
				base := storesim.BasePlan(plan.ID, plan.Period, plan.PriceMicros, plan.Currency)
				offers = append(offers, base)
				if plan.Trial != "" {
					offers = append(offers, storesim.Offer(base, "trial", storesim.Phase(plan.Trial, 0, plan.Currency, 1)))
				}
			}
			sim.AddProduct(storesim.SubscriptionProduct(p.ID, p.Title, offers...))
		default:
			return fmt.Errorf("product %s: unknown kind %q", p.ID, p.Kind)
		}
	}

	for _, o := range c.Owned {
		kind := types.ProductKind(o.Kind)
		if !kind.IsStoreKind() {
			return fmt.Errorf("owned purchase %s: unknown kind %q", o.Token, o.Kind)
		}
		p := &types.PurchaseRecord{
			PurchaseToken: o.Token,
			ProductIDs:    []string{o.ProductID},
			Quantity:      1,
			Acknowledged:  o.Acknowledged,
			State:         types.PurchaseStatePurchased,
		}
		sim.AddOwned(kind, p)
		sim.AddHistory(kind, &types.PurchaseHistoryRecord{
			PurchaseToken: o.Token,
			ProductIDs:    p.ProductIDs,
			Quantity:      1,
		})
	}
	return nil
}
