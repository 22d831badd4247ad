// Package evidence implements the append-only event store, the derived
// provenance graph, and audit pack assembly. Events are never edited or
// deleted; the store is in-memory with a JSON file mirror per event.
package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codegov/internal/logging"
	"codegov/internal/types"
)

// ErrInvalidEventType is returned for events outside the closed set.
var ErrInvalidEventType = fmt.Errorf("event type not in closed set")

// Store is the append-only evidence log. All writes happen under one
// mutex; the file mirror is written before Append returns so a crash
// never loses an acknowledged event.
type Store struct {
	mu     sync.Mutex
	events []*types.Event
	byID   map[string]*types.Event
	packs  map[string]*PackRecord
	seq    uint64
	dir    string
}

// NewStore creates an event store mirrored under dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return &Store{
		byID:  make(map[string]*types.Event),
		packs: make(map[string]*PackRecord),
		dir:   dir,
	}, nil
}

// Append adds one event. The type must belong to the closed set; id and
// timestamp are filled in when absent. Returns the stored event.
func (s *Store) Append(ev types.Event) (*types.Event, error) {
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, ev.Type)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	ev.Seq = s.seq
	stored := &ev
	s.events = append(s.events, stored)
	s.byID[ev.ID] = stored

	if err := s.mirror(stored); err != nil {
		logging.Get(logging.CategoryEvidence).Error("event mirror failed for %s: %v", ev.ID, err)
	}
	logging.EvidenceDebug("appended %s event %s (mission %s)", ev.Type, ev.ID, ev.MissionID)
	return stored, nil
}

func (s *Store) mirror(ev *types.Event) error {
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, ev.ID+".json"), data, 0644)
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (*types.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.byID[id]
	return ev, ok
}

// Events returns all events in append order.
func (s *Store) Events() []*types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Event, len(s.events))
	copy(out, s.events)
	return out
}

// MissionEvents returns the events of one mission in append order.
func (s *Store) MissionEvents(missionID string) []*types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Event
	for _, ev := range s.events {
		if ev.MissionID == missionID {
			out = append(out, ev)
		}
	}
	return out
}

// Provenance derives the mission's provenance graph: events ordered by
// timestamp (append order breaks ties) and linked into a simple path.
func (s *Store) Provenance(missionID string) *types.ProvenanceGraph {
	events := s.MissionEvents(missionID)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Seq < events[j].Seq
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	graph := &types.ProvenanceGraph{MissionID: missionID}
	for i, ev := range events {
		node := &types.ProvenanceNode{Event: ev}
		if i > 0 {
			node.Parents = []string{events[i-1].ID}
		}
		if i < len(events)-1 {
			node.Next = events[i+1].ID
		}
		graph.Nodes = append(graph.Nodes, node)
	}
	return graph
}

// RecordBudgetBreach appends a BudgetBreached event. It satisfies the
// cost ledger's breach recorder interface; the ledger cannot import
// this package directly without a cycle.
func (s *Store) RecordBudgetBreach(budgetID string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["budgetId"] = budgetID
	if _, err := s.Append(types.Event{Type: types.EventBudgetBreached, Data: data}); err != nil {
		logging.Get(logging.CategoryEvidence).Error("budget breach event append failed: %v", err)
	}
}
