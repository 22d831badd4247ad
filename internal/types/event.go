package types

import "time"

// EventType enumerates the closed set of evidence event types.
type EventType string

const (
	EventMissionCreated     EventType = "MissionCreated"
	EventCheckpointApproved EventType = "CheckpointApproved"
	EventCheckpointRejected EventType = "CheckpointRejected"
	EventBatchExecuted      EventType = "BatchExecuted"
	EventRollbackApplied    EventType = "RollbackApplied"
	EventBudgetBreached     EventType = "BudgetBreached"
	EventAuditPackGenerated EventType = "AuditPackGenerated"
)

// Valid reports whether the type belongs to the closed event set.
func (t EventType) Valid() bool {
	switch t {
	case EventMissionCreated, EventCheckpointApproved, EventCheckpointRejected,
		EventBatchExecuted, EventRollbackApplied, EventBudgetBreached, EventAuditPackGenerated:
		return true
	}
	return false
}

// Event is one append-only evidence record. Events are never edited or
// deleted once appended.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	MissionID string                 `json:"missionId,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	// Seq breaks timestamp ties; append order per mission is total.
	Seq uint64 `json:"seq"`
}

// ProvenanceNode is one event in a mission's provenance chain. Parents
// is a slice to permit DAG branching later; v1 chains are linear.
type ProvenanceNode struct {
	Event   *Event   `json:"event"`
	Parents []string `json:"parents,omitempty"`
	Next    string   `json:"next,omitempty"`
}

// ProvenanceGraph is the derived, timestamp-ordered view of a mission's
// events linked into a chain.
type ProvenanceGraph struct {
	MissionID string            `json:"missionId"`
	Nodes     []*ProvenanceNode `json:"nodes"`
}
