package finops

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codegov/internal/types"
)

// TokenCounts holds input/output sums for one aggregation bucket.
type TokenCounts struct {
	Input  int64   `json:"input"`
	Output int64   `json:"output"`
	Total  int64   `json:"total"`
	Cost   float64 `json:"cost_usd"`
}

// Add accumulates one transaction into the bucket.
func (tc *TokenCounts) Add(input, output int, cost float64) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
	tc.Cost += cost
}

// UsageData is the root structure persisted to disk.
type UsageData struct {
	Version string                 `json:"version"`
	Events  []types.Usage          `json:"events"`
	ByModel map[string]TokenCounts `json:"by_model"`
	Total   TokenCounts            `json:"total"`
}

// UsageLog records every transaction and mirrors the aggregate to a
// JSON file with a debounced autosave.
type UsageLog struct {
	mu       sync.Mutex
	data     UsageData
	filePath string
	dirty    bool
}

// NewUsageLog creates a usage log persisted at filePath, loading any
// existing data.
func NewUsageLog(filePath string) (*UsageLog, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	u := &UsageLog{
		filePath: filePath,
		data: UsageData{
			Version: "1.0",
			ByModel: make(map[string]TokenCounts),
		},
	}
	if err := u.load(); err != nil && !os.IsNotExist(err) {
		// Corrupt usage files start fresh; the raw events are advisory.
		u.data = UsageData{Version: "1.0", ByModel: make(map[string]TokenCounts)}
	}
	return u, nil
}

func (u *UsageLog) load() error {
	data, err := os.ReadFile(u.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &u.data); err != nil {
		return err
	}
	if u.data.ByModel == nil {
		u.data.ByModel = make(map[string]TokenCounts)
	}
	return nil
}

// Record appends one usage event and schedules an autosave.
func (u *UsageLog) Record(usage types.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.data.Events = append(u.data.Events, usage)
	u.data.Total.Add(usage.InputTokens, usage.OutputTokens, usage.Cost)
	entry := u.data.ByModel[usage.ModelID]
	entry.Add(usage.InputTokens, usage.OutputTokens, usage.Cost)
	u.data.ByModel[usage.ModelID] = entry

	if !u.dirty {
		u.dirty = true
		time.AfterFunc(5*time.Second, func() {
			u.Save()
			u.mu.Lock()
			u.dirty = false
			u.mu.Unlock()
		})
	}
}

// Save writes the usage data to disk.
func (u *UsageLog) Save() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, err := json.MarshalIndent(u.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(u.filePath, data, 0644)
}

// Events returns a copy of the recorded usage events.
func (u *UsageLog) Events() []types.Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]types.Usage, len(u.data.Events))
	copy(out, u.data.Events)
	return out
}

// Total returns the aggregate counts.
func (u *UsageLog) Total() TokenCounts {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.data.Total
}

// ByModel returns a copy of the per-model aggregates.
func (u *UsageLog) ByModel() map[string]TokenCounts {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]TokenCounts, len(u.data.ByModel))
	for k, v := range u.data.ByModel {
		out[k] = v
	}
	return out
}
