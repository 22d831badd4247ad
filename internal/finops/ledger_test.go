package finops

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"codegov/internal/types"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	usage, err := NewUsageLog(filepath.Join(t.TempDir(), "usage.json"))
	if err != nil {
		t.Fatalf("NewUsageLog: %v", err)
	}
	return NewLedger(NewPricingTable(), usage, nil)
}

func TestTrackUsage_AggregateEqualsSumOfTransactions(t *testing.T) {
	l := newTestLedger(t)
	b := l.CreateBudget(&types.Budget{
		MaxCost: 100,
		Models:  []types.BudgetModel{{ModelID: DefaultModelCheap, Priority: 1}},
	})

	var want float64
	for i := 0; i < 5; i++ {
		cost, err := l.Pricing().Cost(DefaultModelCheap, 1000, 500)
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		want += cost
		if err := l.TrackUsage(DefaultModelCheap, 1000, 500, time.Time{}); err != nil {
			t.Fatalf("TrackUsage: %v", err)
		}
	}

	got, err := l.GetBudget(b.ID)
	if err != nil {
		t.Fatalf("GetBudget: %v", err)
	}
	if math.Abs(got.CurrentCost-want) > 1e-9 {
		t.Fatalf("CurrentCost = %v, want %v", got.CurrentCost, want)
	}
	if math.Abs(l.usage.Total().Cost-want) > 1e-9 {
		t.Fatalf("usage total = %v, want %v", l.usage.Total().Cost, want)
	}
}

func TestTrackUsage_UnknownModelRejected(t *testing.T) {
	l := newTestLedger(t)
	err := l.TrackUsage("made-up-model", 100, 100, time.Time{})
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}

func TestTrackUsage_ThresholdAlertFiresOnce(t *testing.T) {
	l := newTestLedger(t)
	// cheap model: 1M input tokens cost 0.50; cap 1.00, alert at 80%.
	l.CreateBudget(&types.Budget{
		MaxCost:        1.0,
		AlertThreshold: 80,
		Models:         []types.BudgetModel{{ModelID: DefaultModelCheap, Priority: 1}},
	})

	// 0.50 then 0.35: second call crosses 0.80.
	if err := l.TrackUsage(DefaultModelCheap, 1_000_000, 0, time.Time{}); err != nil {
		t.Fatalf("TrackUsage: %v", err)
	}
	if len(l.Alerts()) != 0 {
		t.Fatalf("alert fired below threshold: %+v", l.Alerts())
	}
	if err := l.TrackUsage(DefaultModelCheap, 700_000, 0, time.Time{}); err != nil {
		t.Fatalf("TrackUsage: %v", err)
	}
	if len(l.Alerts()) != 1 {
		t.Fatalf("alerts = %d, want 1", len(l.Alerts()))
	}
	// Staying above the threshold fires nothing further.
	if err := l.TrackUsage(DefaultModelCheap, 100_000, 0, time.Time{}); err != nil {
		t.Fatalf("TrackUsage: %v", err)
	}
	if len(l.Alerts()) != 1 {
		t.Fatalf("alert fired again on subsequent usage: %d", len(l.Alerts()))
	}
}

type breachSink struct {
	calls []string
}

func (s *breachSink) RecordBudgetBreach(budgetID string, data map[string]interface{}) {
	s.calls = append(s.calls, budgetID)
}

func TestTrackUsage_ExceededStillRecorded(t *testing.T) {
	usage, err := NewUsageLog(filepath.Join(t.TempDir(), "usage.json"))
	if err != nil {
		t.Fatalf("NewUsageLog: %v", err)
	}
	sink := &breachSink{}
	l := NewLedger(NewPricingTable(), usage, sink)
	b := l.CreateBudget(&types.Budget{
		MaxCost: 0.001,
		Models:  []types.BudgetModel{{ModelID: DefaultModelPremium, Priority: 1}},
	})

	err = l.TrackUsage(DefaultModelPremium, 10_000, 10_000, time.Time{})
	var exceeded *BudgetExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("err = %v, want BudgetExceededError", err)
	}
	if exceeded.BudgetID != b.ID {
		t.Fatalf("breach budget = %s, want %s", exceeded.BudgetID, b.ID)
	}
	if len(usage.Events()) != 1 {
		t.Fatalf("usage events = %d, want 1 despite breach", len(usage.Events()))
	}
	if len(sink.calls) != 1 || sink.calls[0] != b.ID {
		t.Fatalf("breach recorder calls = %v", sink.calls)
	}

	// Further usage keeps recording; breach event fires only once.
	_ = l.TrackUsage(DefaultModelPremium, 1000, 0, time.Time{})
	if len(usage.Events()) != 2 {
		t.Fatalf("usage events = %d, want 2", len(usage.Events()))
	}
	if len(sink.calls) != 1 {
		t.Fatalf("breach recorded %d times, want once", len(sink.calls))
	}
}

func TestRouteRequest_PrefersHighestPriorityThatFits(t *testing.T) {
	l := newTestLedger(t)
	b := l.CreateBudget(&types.Budget{
		MaxCost: 10,
		Models: []types.BudgetModel{
			{ModelID: DefaultModelCheap, Priority: 1},
			{ModelID: DefaultModelPremium, Priority: 2},
		},
	})

	model, err := l.RouteRequest(b.ID, 1000)
	if err != nil {
		t.Fatalf("RouteRequest: %v", err)
	}
	if model != DefaultModelPremium {
		t.Fatalf("routed to %s, want premium tier", model)
	}
}

func TestRouteRequest_FallsBackWhenProjectionExceedsRemaining(t *testing.T) {
	l := newTestLedger(t)
	// 1000 input tokens project to 0.015 premium / 0.0005 cheap.
	b := l.CreateBudget(&types.Budget{
		MaxCost: 0.01,
		Models: []types.BudgetModel{
			{ModelID: DefaultModelCheap, Priority: 1},
			{ModelID: DefaultModelPremium, Priority: 2},
		},
	})

	model, err := l.RouteRequest(b.ID, 1000)
	if err != nil {
		t.Fatalf("RouteRequest: %v", err)
	}
	if model != DefaultModelCheap {
		t.Fatalf("routed to %s, want cheap tier", model)
	}
}

func TestRouteRequest_SubCapExcludesModel(t *testing.T) {
	l := newTestLedger(t)
	b := l.CreateBudget(&types.Budget{
		MaxCost: 10,
		Models: []types.BudgetModel{
			{ModelID: DefaultModelCheap, Priority: 1},
			{ModelID: DefaultModelPremium, Priority: 2, MaxCost: 0.001},
		},
	})

	model, err := l.RouteRequest(b.ID, 1000)
	if err != nil {
		t.Fatalf("RouteRequest: %v", err)
	}
	if model != DefaultModelCheap {
		t.Fatalf("routed to %s, want cheap tier under premium sub-cap", model)
	}
}

func TestRouteRequest_NoViableModel(t *testing.T) {
	l := newTestLedger(t)
	b := l.CreateBudget(&types.Budget{
		MaxCost: 0.0000001,
		Models:  []types.BudgetModel{{ModelID: DefaultModelPremium, Priority: 1}},
	})

	_, err := l.RouteRequest(b.ID, 1_000_000)
	if !errors.Is(err, ErrNoViableModel) {
		t.Fatalf("err = %v, want ErrNoViableModel", err)
	}
}

func TestRouteRequest_UnknownBudget(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.RouteRequest("nope", 100)
	if !errors.Is(err, ErrBudgetNotFound) {
		t.Fatalf("err = %v, want ErrBudgetNotFound", err)
	}
}

func TestForecastCost_PureProjection(t *testing.T) {
	l := newTestLedger(t)

	f, err := l.ForecastCost(DefaultModelPremium, 2000, 1000)
	if err != nil {
		t.Fatalf("ForecastCost: %v", err)
	}
	want := 2*0.015 + 1*0.075
	if math.Abs(f.EstimatedCost-want) > 1e-9 {
		t.Fatalf("EstimatedCost = %v, want %v", f.EstimatedCost, want)
	}
	if len(f.Breakdown) != 1 || f.Breakdown[0].Tokens != 3000 {
		t.Fatalf("breakdown = %+v", f.Breakdown)
	}
	// Forecasting never mutates budgets or the usage log.
	if len(l.usage.Events()) != 0 {
		t.Fatal("forecast recorded usage")
	}
}

func TestUsageLog_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	u, err := NewUsageLog(path)
	if err != nil {
		t.Fatalf("NewUsageLog: %v", err)
	}
	u.Record(types.Usage{ModelID: "m1", InputTokens: 100, OutputTokens: 50, Cost: 0.5, Timestamp: time.Now()})
	u.Record(types.Usage{ModelID: "m1", InputTokens: 200, OutputTokens: 100, Cost: 1.0, Timestamp: time.Now()})
	if err := u.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewUsageLog(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Events()) != 2 {
		t.Fatalf("events = %d, want 2", len(reloaded.Events()))
	}
	if got := reloaded.ByModel()["m1"]; got.Total != 450 || math.Abs(got.Cost-1.5) > 1e-9 {
		t.Fatalf("by-model aggregate = %+v", got)
	}
}
