package evidence

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codegov/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func sampleSpec() *types.ChangeSpec {
	return &types.ChangeSpec{
		ID:       "CS-1042",
		Intent:   "rename UserId to AccountId",
		Scope:    []string{"src/**/*.ts"},
		Language: types.LangTypeScript,
		Patches: []types.Patch{{
			Path:     "src/user.ts",
			ASTOp:    types.OpRenameSymbol,
			Selector: "Identifier[name='UserId']",
			Details:  types.PatchDetails{NewName: "AccountId"},
		}},
		Tests: types.TestPlan{Strategy: types.StrategyAugment, MutationThreshold: 0.6},
	}
}

func TestAppend_RejectsUnknownEventType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(types.Event{Type: "MissionPaused"})
	if !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("err = %v, want ErrInvalidEventType", err)
	}
}

func TestAppend_MirrorsEventToDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ev, err := s.Append(types.Event{Type: types.EventMissionCreated, MissionID: "m1"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if ev.ID == "" || ev.Seq != 1 {
		t.Fatalf("event not filled in: %+v", ev)
	}
	if _, err := os.Stat(filepath.Join(dir, ev.ID+".json")); err != nil {
		t.Fatalf("event mirror missing: %v", err)
	}
}

func TestProvenance_OrderedSimplePath(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Same timestamp on the last two; append order must break the tie.
	s.Append(types.Event{Type: types.EventMissionCreated, MissionID: "m1", Timestamp: base})
	s.Append(types.Event{Type: types.EventCheckpointApproved, MissionID: "m1", Timestamp: base.Add(time.Second)})
	s.Append(types.Event{Type: types.EventBatchExecuted, MissionID: "m1", Timestamp: base.Add(2 * time.Second)})
	s.Append(types.Event{Type: types.EventRollbackApplied, MissionID: "m1", Timestamp: base.Add(2 * time.Second)})
	s.Append(types.Event{Type: types.EventMissionCreated, MissionID: "other", Timestamp: base})

	g := s.Provenance("m1")
	if len(g.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(g.Nodes))
	}
	wantOrder := []types.EventType{
		types.EventMissionCreated,
		types.EventCheckpointApproved,
		types.EventBatchExecuted,
		types.EventRollbackApplied,
	}
	for i, node := range g.Nodes {
		if node.Event.Type != wantOrder[i] {
			t.Fatalf("node %d type = %s, want %s", i, node.Event.Type, wantOrder[i])
		}
		if node.Event.Timestamp.After(base.Add(3 * time.Second)) {
			t.Fatalf("node %d timestamp out of range", i)
		}
	}
	// Simple path: every node's Next is the following node, no branching.
	for i := 0; i < len(g.Nodes)-1; i++ {
		if g.Nodes[i].Next != g.Nodes[i+1].Event.ID {
			t.Fatalf("node %d next = %s, want %s", i, g.Nodes[i].Next, g.Nodes[i+1].Event.ID)
		}
	}
	if g.Nodes[len(g.Nodes)-1].Next != "" {
		t.Fatal("terminal node has a next link")
	}
	if len(g.Nodes[0].Parents) != 0 {
		t.Fatal("root node has parents")
	}
}

func TestBuildPack_RequiredEntriesAtRoot(t *testing.T) {
	s := newTestStore(t)
	s.Append(types.Event{Type: types.EventMissionCreated, MissionID: "m1"})
	s.Append(types.Event{Type: types.EventCheckpointApproved, MissionID: "m1"})

	record, archive, err := s.BuildPack(context.Background(), PackInput{
		MissionID:  "m1",
		ChangeSpec: sampleSpec(),
		Versions:   map[string]string{"codegov": "1.0.0"},
	})
	if err != nil {
		t.Fatalf("BuildPack: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	found := map[string]bool{}
	for _, f := range zr.File {
		found[f.Name] = true
	}
	for _, name := range []string{"changespec.json", "provenance.json", "events.json", "versions.json"} {
		if !found[name] {
			t.Fatalf("archive missing %s; entries: %v", name, found)
		}
	}

	// Pack generation itself appends an event.
	events := s.MissionEvents("m1")
	last := events[len(events)-1]
	if last.Type != types.EventAuditPackGenerated {
		t.Fatalf("last event = %s, want AuditPackGenerated", last.Type)
	}

	ok, err := s.VerifyPack(record.ID)
	if err != nil {
		t.Fatalf("VerifyPack: %v", err)
	}
	if !ok {
		t.Fatal("freshly built pack failed verification")
	}
	if record.Signature != "" {
		t.Fatal("signature must stay empty in v1")
	}
}

func TestBuildPack_CancelledContextAborts(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.BuildPack(ctx, PackInput{MissionID: "m1", ChangeSpec: sampleSpec()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestVerifyPack_UnknownID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.VerifyPack("missing")
	if !errors.Is(err, ErrPackNotFound) {
		t.Fatalf("err = %v, want ErrPackNotFound", err)
	}
}

func TestRecordBudgetBreach_AppendsEvent(t *testing.T) {
	s := newTestStore(t)
	s.RecordBudgetBreach("b1", map[string]interface{}{"currentCost": 1.5})

	events := s.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Type != types.EventBudgetBreached {
		t.Fatalf("type = %s, want BudgetBreached", events[0].Type)
	}
	if events[0].Data["budgetId"] != "b1" {
		t.Fatalf("data = %v", events[0].Data)
	}
}
