// Package finops implements the cost ledger: per-model pricing, budget
// tracking with monotonic alerts, priority-based request routing, and
// pure cost forecasting.
package finops

import (
	"fmt"
	"sort"
	"sync"
)

// ModelPricing is the per-1,000-token rate card for one model.
type ModelPricing struct {
	ModelID         string  `json:"modelId"`
	InputTokenCost  float64 `json:"inputTokenCost"`
	OutputTokenCost float64 `json:"outputTokenCost"`
}

// PricingTable maps model ids to rates. The defaults carry a cheap and
// a premium tier so routing has something to choose between.
type PricingTable struct {
	mu     sync.RWMutex
	models map[string]ModelPricing
}

// DefaultModelCheap and DefaultModelPremium are the out-of-box tiers.
const (
	DefaultModelCheap   = "gemini-2.5-flash"
	DefaultModelPremium = "claude-sonnet-4"
)

// NewPricingTable builds a table preloaded with the default tiers.
func NewPricingTable() *PricingTable {
	t := &PricingTable{models: make(map[string]ModelPricing)}
	t.Register(ModelPricing{ModelID: DefaultModelCheap, InputTokenCost: 0.0005, OutputTokenCost: 0.0015})
	t.Register(ModelPricing{ModelID: DefaultModelPremium, InputTokenCost: 0.015, OutputTokenCost: 0.075})
	return t
}

// Register adds or replaces a model's rate card.
func (t *PricingTable) Register(p ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.models[p.ModelID] = p
}

// Models returns every registered rate card, sorted by model id.
func (t *PricingTable) Models() []ModelPricing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ModelPricing, 0, len(t.models))
	for _, p := range t.models {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// Lookup returns the rate card for a model.
func (t *PricingTable) Lookup(modelID string) (ModelPricing, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.models[modelID]
	if !ok {
		return ModelPricing{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	return p, nil
}

// Cost computes the charge for one transaction against a model.
func (t *PricingTable) Cost(modelID string, inputTokens, outputTokens int) (float64, error) {
	p, err := t.Lookup(modelID)
	if err != nil {
		return 0, err
	}
	return (float64(inputTokens)/1000)*p.InputTokenCost + (float64(outputTokens)/1000)*p.OutputTokenCost, nil
}
