package services

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/tokenbank/internal/common"
)

// Plan is a purchasable token bundle.
type Plan struct {
	Name     string  `json:"name"`
	Tokens   int64   `json:"tokens"`
	PriceUSD float64 `json:"price_usd"`
	BestFor  string  `json:"best_for"`
}

// PricingCatalog maps app ids and operations to token costs.
type PricingCatalog struct {
	costs map[string]map[string]int64
	plans []Plan
}

// DefaultPricing returns the catalog of the wizard apps.
func DefaultPricing() *PricingCatalog {
	return &PricingCatalog{
		costs: map[string]map[string]int64{
			"thumbnail_wizard": {"analyze": 4},
			"document_wizard":  {"analyze": 4},
			"prompt_wizard":    {"optimize": 5},
			"script_wizard":    {"generate": 3},
			"hook_wizard":      {"generate": 4},
			"a11y_wizard":      {"check": 0},
		},
		plans: []Plan{
			{Name: "free", Tokens: 15, PriceUSD: 0, BestFor: "Testing the waters"},
			{Name: "student", Tokens: 75, PriceUSD: 9.99, BestFor: "Students & personal brands"},
			{Name: "creator", Tokens: 200, PriceUSD: 19.99, BestFor: "Part-time creators (3-4 pieces/week)"},
			{Name: "agency", Tokens: 1000, PriceUSD: 49.99, BestFor: "Full-time creators & small teams"},
		},
	}
}

// Price returns the cost of operation in appID or common.ErrorNotFound.
func (c *PricingCatalog) Price(appID, operation string) (int64, error) {
	ops, ok := c.costs[appID]
	if !ok {
		return 0, fmt.Errorf("app %q: %w", appID, common.ErrorNotFound)
	}
	cost, ok := ops[operation]
	if !ok {
		return 0, fmt.Errorf("operation %q of %q: %w", operation, appID, common.ErrorNotFound)
	}
	return cost, nil
}

// Costs returns a copy of the whole cost table.
func (c *PricingCatalog) Costs() map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(c.costs))
	for app, ops := range c.costs {
		m := make(map[string]int64, len(ops))
		for op, cost := range ops {
			m[op] = cost
		}
		out[app] = m
	}
	return out
}

// Apps lists the known app ids in lexical order.
func (c *PricingCatalog) Apps() []string {
	apps := make([]string, 0, len(c.costs))
	for app := range c.costs {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Plans returns the purchasable bundles, smallest first.
func (c *PricingCatalog) Plans() []Plan {
	return append([]Plan(nil), c.plans...)
}
