package types

import "time"

// CheckpointName identifies one of the four ordered mission stages.
type CheckpointName string

const (
	CheckpointPlan     CheckpointName = "plan"
	CheckpointExecute  CheckpointName = "execute"
	CheckpointVerify   CheckpointName = "verify"
	CheckpointFinalize CheckpointName = "finalize"
)

// CheckpointOrder is the canonical stage ordering of every mission.
var CheckpointOrder = []CheckpointName{CheckpointPlan, CheckpointExecute, CheckpointVerify, CheckpointFinalize}

// Valid reports whether the name is one of the four stages.
func (n CheckpointName) Valid() bool {
	switch n {
	case CheckpointPlan, CheckpointExecute, CheckpointVerify, CheckpointFinalize:
		return true
	}
	return false
}

// CheckpointStatus is the gate status of a mission checkpoint.
type CheckpointStatus string

const (
	StatusPending   CheckpointStatus = "pending"
	StatusApproved  CheckpointStatus = "approved"
	StatusRejected  CheckpointStatus = "rejected"
	StatusCompleted CheckpointStatus = "completed"
)

// Actor identifies who may advance a checkpoint.
type Actor string

const (
	ActorHuman Actor = "human"
	ActorAgent Actor = "agent"
	ActorBoth  Actor = "both"
)

// Checkpoint is a named gate within a mission. The name-specific slots
// (plan artifacts, execute batches, verify metrics, finalize audit pack)
// are populated as the mission advances.
type Checkpoint struct {
	Name      CheckpointName     `json:"name"`
	Status    CheckpointStatus   `json:"status"`
	Actor     Actor              `json:"actor"`
	Artifacts []string           `json:"artifacts,omitempty"`
	Batches   []*Batch           `json:"batches,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	AuditPack string             `json:"auditPack,omitempty"`
}

// BatchState tracks the reversibility state of a batch.
type BatchState string

const (
	BatchApplied    BatchState = "applied"
	BatchRolledBack BatchState = "rolled_back"
)

// Batch is a reversible unit of applied work within the execute
// checkpoint. Every batch owns a pre-image snapshot of the files it
// touches.
type Batch struct {
	ID          string     `json:"id"`
	Reversible  bool       `json:"reversible"`
	PRs         []string   `json:"prs"`
	SnapshotRef string     `json:"snapshotRef"`
	State       BatchState `json:"state"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Snapshot is the pre-image of a batch's or checkpoint apply's affected
// files. Its lifetime equals the lifetime of the owning batch: it is
// destroyed when a rollback completes or the mission is purged.
type Snapshot struct {
	Ref       string            `json:"ref"`
	Files     map[string]string `json:"files"`
	Timestamp time.Time         `json:"timestamp"`
}

// Mission is an end-to-end change workflow instance.
type Mission struct {
	MissionID   string        `json:"missionId"`
	Title       string        `json:"title"`
	Risk        RiskLevel     `json:"risk"`
	Checkpoints []*Checkpoint `json:"checkpoints"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Checkpoint returns the named checkpoint, or nil if the mission does
// not carry it.
func (m *Mission) Checkpoint(name CheckpointName) *Checkpoint {
	for _, cp := range m.Checkpoints {
		if cp.Name == name {
			return cp
		}
	}
	return nil
}

// Clone returns a deep copy. The coordinator hands clones to callers so
// JSON marshaling never reads a mission another goroutine is gating.
func (m *Mission) Clone() *Mission {
	out := *m
	out.Checkpoints = make([]*Checkpoint, len(m.Checkpoints))
	for i, cp := range m.Checkpoints {
		out.Checkpoints[i] = cp.Clone()
	}
	return &out
}

// Clone returns a deep copy of the checkpoint.
func (cp *Checkpoint) Clone() *Checkpoint {
	out := *cp
	if cp.Artifacts != nil {
		out.Artifacts = append([]string(nil), cp.Artifacts...)
	}
	if cp.Batches != nil {
		out.Batches = make([]*Batch, len(cp.Batches))
		for i, b := range cp.Batches {
			out.Batches[i] = b.Clone()
		}
	}
	if cp.Metrics != nil {
		out.Metrics = make(map[string]float64, len(cp.Metrics))
		for k, v := range cp.Metrics {
			out.Metrics[k] = v
		}
	}
	return &out
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	out := *b
	if b.PRs != nil {
		out.PRs = append([]string(nil), b.PRs...)
	}
	return &out
}

// ApplyState tracks the execution of a single checkpoint apply. These
// states are orthogonal to the four-checkpoint workflow.
type ApplyState string

const (
	ApplyPending    ApplyState = "pending"
	ApplyApplied    ApplyState = "applied"
	ApplyVerified   ApplyState = "verified"
	ApplyFailed     ApplyState = "failed"
	ApplyRolledBack ApplyState = "rolled_back"
)
