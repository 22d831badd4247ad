package types

import "time"

// BudgetModel is one model entry within a budget, with routing priority
// and an optional per-model sub-cap.
type BudgetModel struct {
	ModelID  string  `json:"modelId"`
	Priority int     `json:"priority"`
	MaxCost  float64 `json:"maxCost,omitempty"`
}

// Budget is a per-scope monetary cap with per-model sub-caps and a
// percentage alert threshold. Alerts fire monotonically, once per
// threshold crossing.
type Budget struct {
	ID             string        `json:"id"`
	MaxCost        float64       `json:"maxCost"`
	CurrentCost    float64       `json:"currentCost"`
	AlertThreshold float64       `json:"alertThreshold"`
	Models         []BudgetModel `json:"models"`
}

// Breached reports whether current cost has reached the cap.
func (b *Budget) Breached() bool {
	return b.CurrentCost >= b.MaxCost
}

// Remaining returns the unspent budget, never negative.
func (b *Budget) Remaining() float64 {
	if r := b.MaxCost - b.CurrentCost; r > 0 {
		return r
	}
	return 0
}

// HasModel reports whether the budget lists the model.
func (b *Budget) HasModel(modelID string) bool {
	for _, m := range b.Models {
		if m.ModelID == modelID {
			return true
		}
	}
	return false
}

// Usage is one provider-mediated token transaction.
type Usage struct {
	ModelID      string    `json:"modelId"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	Cost         float64   `json:"cost"`
	Timestamp    time.Time `json:"timestamp"`
}

// ForecastItem is one entry of a cost forecast breakdown.
type ForecastItem struct {
	ModelID string  `json:"modelId"`
	Tokens  int     `json:"tokens"`
	Cost    float64 `json:"cost"`
}

// Forecast is the output of a pure pricing-table projection.
type Forecast struct {
	EstimatedCost float64        `json:"estimatedCost"`
	Confidence    float64        `json:"confidence"`
	Breakdown     []ForecastItem `json:"breakdown"`
}
