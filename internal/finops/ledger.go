package finops

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codegov/internal/logging"
	"codegov/internal/types"
)

var (
	// ErrBudgetNotFound maps to HTTP 404 at the transport edge.
	ErrBudgetNotFound = errors.New("budget not found")
	// ErrModelNotFound is returned for unpriced models.
	ErrModelNotFound = errors.New("model not registered in pricing table")
	// ErrNoViableModel is returned when no budget model fits the
	// projected cost.
	ErrNoViableModel = errors.New("no viable model within remaining budget")
)

// BudgetExceededError reports a budget whose cap was reached. The usage
// that crossed the cap is still recorded in the usage log.
type BudgetExceededError struct {
	BudgetID    string
	CurrentCost float64
	MaxCost     float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget %s exceeded: %.4f >= %.4f", e.BudgetID, e.CurrentCost, e.MaxCost)
}

// BreachRecorder receives budget breach notifications. The evidence log
// satisfies this through a thin adapter wired at startup.
type BreachRecorder interface {
	RecordBudgetBreach(budgetID string, data map[string]interface{})
}

// Alert is one threshold-crossing notification.
type Alert struct {
	BudgetID  string    `json:"budgetId"`
	Threshold float64   `json:"threshold"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger owns budgets and the usage log. All mutation happens under one
// mutex so concurrent TrackUsage calls serialize and the aggregate cost
// equals the sum of the individual costs.
type Ledger struct {
	mu      sync.Mutex
	pricing *PricingTable
	budgets map[string]*types.Budget
	// alerted tracks which budgets have fired their threshold alert and
	// their breach alert; alerts are monotonic per crossing.
	alerted  map[string]map[string]bool
	alerts   []Alert
	usage    *UsageLog
	recorder BreachRecorder
}

// NewLedger builds a ledger over the given pricing table and usage log.
// recorder may be nil when no evidence sink is attached (tests).
func NewLedger(pricing *PricingTable, usage *UsageLog, recorder BreachRecorder) *Ledger {
	return &Ledger{
		pricing:  pricing,
		budgets:  make(map[string]*types.Budget),
		alerted:  make(map[string]map[string]bool),
		usage:    usage,
		recorder: recorder,
	}
}

// Pricing exposes the rate card table for registration and forecasting.
func (l *Ledger) Pricing() *PricingTable { return l.pricing }

// UsageTotals returns the aggregate recorded usage.
func (l *Ledger) UsageTotals() TokenCounts { return l.usage.Total() }

// CreateBudget registers a budget. A zero alert threshold defaults to 80%.
func (l *Ledger) CreateBudget(b *types.Budget) *types.Budget {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.AlertThreshold == 0 {
		b.AlertThreshold = 80
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgets[b.ID] = b
	l.alerted[b.ID] = make(map[string]bool)
	return b
}

// GetBudget returns a copy of the budget.
func (l *Ledger) GetBudget(id string) (types.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.budgets[id]
	if !ok {
		return types.Budget{}, fmt.Errorf("%w: %s", ErrBudgetNotFound, id)
	}
	return *b, nil
}

// ListBudgets returns copies of all budgets.
func (l *Ledger) ListBudgets() []types.Budget {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Budget, 0, len(l.budgets))
	for _, b := range l.budgets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Alerts returns the threshold alerts fired so far.
func (l *Ledger) Alerts() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// TrackUsage records one provider-mediated transaction. Every budget
// listing the model accumulates the cost; threshold alerts fire once per
// crossing; a cap hit returns BudgetExceededError after the usage has
// been recorded.
func (l *Ledger) TrackUsage(modelID string, inputTokens, outputTokens int, at time.Time) error {
	cost, err := l.pricing.Cost(modelID, inputTokens, outputTokens)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}

	l.usage.Record(types.Usage{
		ModelID:      modelID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
		Timestamp:    at,
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	var exceeded *BudgetExceededError
	for _, b := range l.budgets {
		if !b.HasModel(modelID) {
			continue
		}
		b.CurrentCost += cost

		fired := l.alerted[b.ID]
		alertAt := b.MaxCost * b.AlertThreshold / 100
		if b.CurrentCost >= alertAt && !fired["threshold"] {
			fired["threshold"] = true
			l.alerts = append(l.alerts, Alert{BudgetID: b.ID, Threshold: b.AlertThreshold, Cost: b.CurrentCost, Timestamp: at})
			logging.FinopsInfo("budget %s crossed %.0f%% alert threshold (%.4f/%.4f)", b.ID, b.AlertThreshold, b.CurrentCost, b.MaxCost)
		}
		if b.Breached() && !fired["breach"] {
			fired["breach"] = true
			logging.FinopsInfo("budget %s breached (%.4f/%.4f)", b.ID, b.CurrentCost, b.MaxCost)
			if l.recorder != nil {
				l.recorder.RecordBudgetBreach(b.ID, map[string]interface{}{
					"currentCost": b.CurrentCost,
					"maxCost":     b.MaxCost,
					"modelId":     modelID,
				})
			}
		}
		if b.Breached() && exceeded == nil {
			exceeded = &BudgetExceededError{BudgetID: b.ID, CurrentCost: b.CurrentCost, MaxCost: b.MaxCost}
		}
	}

	if exceeded != nil {
		return exceeded
	}
	return nil
}

// RouteRequest picks the highest-priority model of the budget whose
// projected input cost fits the remaining budget and the model's
// sub-cap. It never selects a model whose projection would exceed
// either limit.
func (l *Ledger) RouteRequest(budgetID string, estimatedInputTokens int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[budgetID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBudgetNotFound, budgetID)
	}

	models := make([]types.BudgetModel, len(b.Models))
	copy(models, b.Models)
	sort.SliceStable(models, func(i, j int) bool { return models[i].Priority > models[j].Priority })

	remaining := b.Remaining()
	for _, m := range models {
		pricing, err := l.pricing.Lookup(m.ModelID)
		if err != nil {
			continue // unpriced models are never routable
		}
		projected := (float64(estimatedInputTokens) / 1000) * pricing.InputTokenCost
		if projected > remaining {
			continue
		}
		if m.MaxCost > 0 && projected > m.MaxCost {
			continue
		}
		return m.ModelID, nil
	}
	return "", fmt.Errorf("%w: budget %s, %d tokens", ErrNoViableModel, budgetID, estimatedInputTokens)
}

// ForecastCost is a pure projection over the pricing table.
func (l *Ledger) ForecastCost(modelID string, inputTokens, outputTokens int) (types.Forecast, error) {
	cost, err := l.pricing.Cost(modelID, inputTokens, outputTokens)
	if err != nil {
		return types.Forecast{}, err
	}
	return types.Forecast{
		EstimatedCost: cost,
		Confidence:    0.95,
		Breakdown: []types.ForecastItem{
			{ModelID: modelID, Tokens: inputTokens + outputTokens, Cost: cost},
		},
	}, nil
}
