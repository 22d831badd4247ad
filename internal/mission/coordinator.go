// Package mission implements the mission state machine: four ordered
// checkpoints, reversible batches with pre-image snapshots, and the
// checkpoint apply pipeline gating the transform engine behind the
// redactor.
package mission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codegov/internal/diff"
	"codegov/internal/evidence"
	"codegov/internal/logging"
	"codegov/internal/redact"
	"codegov/internal/transform"
	"codegov/internal/types"
)

var (
	// ErrMissionNotFound maps to HTTP 404 at the transport edge.
	ErrMissionNotFound = errors.New("mission not found")
	// ErrCheckpointNotFound is returned for names outside the four stages.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrBatchNotFound is returned for unknown batch ids.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrNotPending is returned when approving or rejecting a checkpoint
	// that already left the pending state.
	ErrNotPending = errors.New("checkpoint is not pending")
	// ErrNotReversible is returned when rolling back a batch that is not
	// in the applied state.
	ErrNotReversible = errors.New("batch cannot be rolled back")
)

// SecurityBlockError aborts a checkpoint apply when any input carries a
// critical finding. No file is mutated when this is returned.
type SecurityBlockError struct {
	Findings []redact.Finding
}

func (e *SecurityBlockError) Error() string {
	return fmt.Sprintf("security block: %d critical finding(s) in input", len(e.Findings))
}

// ApplyOutcome is the result of one checkpoint apply.
type ApplyOutcome struct {
	State       types.ApplyState     `json:"state"`
	Files       map[string]string    `json:"files"`
	Result      *types.DTEResult     `json:"result"`
	ScanResults []*redact.ScanResult `json:"scanResults,omitempty"`
	Diffs       []diff.FileDiff      `json:"diffs,omitempty"`
	SnapshotRef string               `json:"snapshotRef"`
}

// Coordinator owns missions, batches, and snapshots.
type Coordinator struct {
	mu        sync.Mutex
	missions  map[string]*types.Mission
	snapshots *SnapshotStore
	redactor  *redact.Redactor
	engine    *transform.Engine
	events    *evidence.Store
}

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(redactor *redact.Redactor, engine *transform.Engine, events *evidence.Store) *Coordinator {
	return &Coordinator{
		missions:  make(map[string]*types.Mission),
		snapshots: NewSnapshotStore(),
		redactor:  redactor,
		engine:    engine,
		events:    events,
	}
}

// Snapshots exposes the snapshot store, mainly for tests.
func (c *Coordinator) Snapshots() *SnapshotStore { return c.snapshots }

// checkpointActors assigns the default gate owner per stage: humans gate
// planning and finalization, agents may advance the middle stages.
var checkpointActors = map[types.CheckpointName]types.Actor{
	types.CheckpointPlan:     types.ActorHuman,
	types.CheckpointExecute:  types.ActorBoth,
	types.CheckpointVerify:   types.ActorAgent,
	types.CheckpointFinalize: types.ActorHuman,
}

// CreateMission initializes a mission with its four pending checkpoints
// and emits MissionCreated.
func (c *Coordinator) CreateMission(title string, risk types.RiskLevel) (*types.Mission, error) {
	if title == "" {
		return nil, fmt.Errorf("mission title is required")
	}
	if risk == "" {
		risk = types.RiskMedium
	}
	if !risk.Valid() {
		return nil, fmt.Errorf("unrecognized risk %q", risk)
	}

	now := time.Now()
	m := &types.Mission{
		MissionID: uuid.NewString(),
		Title:     title,
		Risk:      risk,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, name := range types.CheckpointOrder {
		m.Checkpoints = append(m.Checkpoints, &types.Checkpoint{
			Name:   name,
			Status: types.StatusPending,
			Actor:  checkpointActors[name],
		})
	}

	c.mu.Lock()
	c.missions[m.MissionID] = m
	created := m.Clone()
	c.mu.Unlock()

	if _, err := c.events.Append(types.Event{
		Type:      types.EventMissionCreated,
		MissionID: m.MissionID,
		Data:      map[string]interface{}{"title": title, "risk": string(risk)},
	}); err != nil {
		return nil, err
	}
	logging.MissionInfo("mission %s created (%s)", m.MissionID, risk)
	return created, nil
}

// GetMission returns a deep copy of the mission with the given id.
// Copies keep callers (and their JSON encoders) off the live object the
// coordinator mutates under its mutex.
func (c *Coordinator) GetMission(id string) (*types.Mission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.missions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, id)
	}
	return m.Clone(), nil
}

// ListMissions returns copies of every mission, oldest first.
func (c *Coordinator) ListMissions() []*types.Mission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Mission, 0, len(c.missions))
	for _, m := range c.missions {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ApproveCheckpoint moves a pending checkpoint to approved and emits
// CheckpointApproved. Order across checkpoints is not enforced.
func (c *Coordinator) ApproveCheckpoint(missionID string, name types.CheckpointName) (*types.Mission, error) {
	return c.gateCheckpoint(missionID, name, types.StatusApproved, types.EventCheckpointApproved)
}

// RejectCheckpoint moves a pending checkpoint to rejected and emits
// CheckpointRejected.
func (c *Coordinator) RejectCheckpoint(missionID string, name types.CheckpointName) (*types.Mission, error) {
	return c.gateCheckpoint(missionID, name, types.StatusRejected, types.EventCheckpointRejected)
}

func (c *Coordinator) gateCheckpoint(missionID string, name types.CheckpointName, to types.CheckpointStatus, event types.EventType) (*types.Mission, error) {
	c.mu.Lock()
	m, ok := c.missions[missionID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, missionID)
	}
	cp := m.Checkpoint(name)
	if cp == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	if cp.Status != types.StatusPending {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, name, cp.Status)
	}
	cp.Status = to
	m.UpdatedAt = time.Now()
	gated := m.Clone()
	c.mu.Unlock()

	if _, err := c.events.Append(types.Event{
		Type:      event,
		MissionID: missionID,
		Data:      map[string]interface{}{"checkpoint": string(name)},
	}); err != nil {
		return nil, err
	}
	logging.MissionInfo("mission %s checkpoint %s -> %s", missionID, name, to)
	return gated, nil
}

// CreateBatch appends a reversible batch to the execute checkpoint,
// capturing a pre-image snapshot of the files it will touch. Prior
// approval of the execute checkpoint is not required.
func (c *Coordinator) CreateBatch(missionID string, prs []string, files map[string]string) (*types.Batch, error) {
	c.mu.Lock()
	m, ok := c.missions[missionID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, missionID)
	}
	cp := m.Checkpoint(types.CheckpointExecute)
	if cp == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: execute", ErrCheckpointNotFound)
	}

	batch := &types.Batch{
		ID:         uuid.NewString(),
		Reversible: true,
		PRs:        prs,
		State:      types.BatchApplied,
		CreatedAt:  time.Now(),
	}
	batch.SnapshotRef = "batch-" + batch.ID
	c.snapshots.Capture(batch.SnapshotRef, files)
	cp.Batches = append(cp.Batches, batch)
	m.UpdatedAt = time.Now()
	created := batch.Clone()
	c.mu.Unlock()

	if _, err := c.events.Append(types.Event{
		Type:      types.EventBatchExecuted,
		MissionID: missionID,
		Data:      map[string]interface{}{"batchId": batch.ID, "files": len(files)},
	}); err != nil {
		return nil, err
	}
	logging.MissionInfo("mission %s batch %s created (%d files snapshotted)", missionID, batch.ID, len(files))
	return created, nil
}

// RollbackBatch restores the batch's snapshot verbatim, marks the batch
// rolled back, destroys the snapshot, and emits RollbackApplied. The
// restored file contents are returned to the caller.
func (c *Coordinator) RollbackBatch(missionID, batchID string) (map[string]string, error) {
	c.mu.Lock()
	m, ok := c.missions[missionID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, missionID)
	}
	cp := m.Checkpoint(types.CheckpointExecute)
	var batch *types.Batch
	if cp != nil {
		for _, b := range cp.Batches {
			if b.ID == batchID {
				batch = b
			}
		}
	}
	if batch == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if !batch.Reversible || batch.State != types.BatchApplied {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReversible, batchID, batch.State)
	}

	files, err := c.snapshots.Restore(batch.SnapshotRef)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	batch.State = types.BatchRolledBack
	m.UpdatedAt = time.Now()
	c.mu.Unlock()

	// Rollback completed: the snapshot's lifetime ends here.
	c.snapshots.Destroy(batch.SnapshotRef)

	if _, err := c.events.Append(types.Event{
		Type:      types.EventRollbackApplied,
		MissionID: missionID,
		Data:      map[string]interface{}{"batchId": batchID},
	}); err != nil {
		return nil, err
	}
	logging.MissionInfo("mission %s batch %s rolled back", missionID, batchID)
	return files, nil
}

// ApplyCheckpoint runs the gated execute pipeline over in-memory file
// contents: redactor scan, snapshot, transform dispatch, and rollback on
// failure. Any critical finding aborts before any mutation.
func (c *Coordinator) ApplyCheckpoint(ctx context.Context, missionID string, spec *types.ChangeSpec, files map[string]string) (*ApplyOutcome, error) {
	if _, err := c.GetMission(missionID); err != nil {
		return nil, err
	}

	scans, scanErr := c.redactor.ScanMultiple(files)
	ordered := make([]*redact.ScanResult, 0, len(scans))
	var critical []redact.Finding
	names := make([]string, 0, len(scans))
	for name := range scans {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := scans[name]
		ordered = append(ordered, res)
		for _, f := range res.Findings {
			if f.Severity == redact.SeverityCritical {
				critical = append(critical, f)
			}
		}
	}
	var violation *redact.PolicyViolationError
	if len(critical) > 0 || errors.As(scanErr, &violation) {
		// The audit entry carries the findings themselves; the matched
		// content is already redacted out of them.
		if _, err := c.events.Append(types.Event{
			Type:      types.EventCheckpointRejected,
			MissionID: missionID,
			Data: map[string]interface{}{
				"checkpoint": string(types.CheckpointExecute),
				"reason":     "security block",
				"findings":   critical,
			},
		}); err != nil {
			return nil, err
		}
		logging.MissionInfo("mission %s apply blocked: %d critical finding(s)", missionID, len(critical))
		return &ApplyOutcome{State: types.ApplyPending, Files: files, ScanResults: ordered},
			&SecurityBlockError{Findings: critical}
	}

	ref := "apply-" + uuid.NewString()
	c.snapshots.Capture(ref, files)

	out, result := c.engine.ApplyContents(ctx, spec, files)
	if !result.Success {
		restored, err := c.snapshots.Restore(ref)
		if err != nil {
			return nil, err
		}
		c.snapshots.Destroy(ref)
		logging.MissionInfo("mission %s apply failed, snapshot restored (%d errors)", missionID, len(result.Errors))
		return &ApplyOutcome{
			State:       types.ApplyFailed,
			Files:       restored,
			Result:      result,
			ScanResults: ordered,
			SnapshotRef: ref,
		}, nil
	}

	diffs := diff.ComputeAll(files, out)
	outcome := &ApplyOutcome{
		State:       types.ApplyApplied,
		Files:       out,
		Result:      result,
		ScanResults: ordered,
		Diffs:       diffs,
		SnapshotRef: ref,
	}

	c.mu.Lock()
	if m, ok := c.missions[missionID]; ok {
		if cp := m.Checkpoint(types.CheckpointExecute); cp != nil {
			cp.Artifacts = append(cp.Artifacts, result.FilesModified...)
			m.UpdatedAt = time.Now()
		}
	}
	c.mu.Unlock()

	findings := make(map[string][]redact.Finding)
	for _, res := range ordered {
		if len(res.Findings) > 0 {
			findings[res.File] = res.Findings
		}
	}
	if _, err := c.events.Append(types.Event{
		Type:      types.EventBatchExecuted,
		MissionID: missionID,
		Data: map[string]interface{}{
			"changeSpec":    spec.ID,
			"filesModified": result.FilesModified,
			"findings":      findings,
			"snapshotRef":   ref,
		},
	}); err != nil {
		return nil, err
	}
	logging.MissionInfo("mission %s apply succeeded: %d file(s) modified", missionID, len(result.FilesModified))
	return outcome, nil
}

// RecordVerification stores verification metrics on the verify
// checkpoint: invariant pass counts and, when mutation testing ran, the
// mutation score.
func (c *Coordinator) RecordVerification(missionID string, result *types.DTEResult) (*types.Mission, error) {
	c.mu.Lock()
	m, ok := c.missions[missionID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, missionID)
	}
	cp := m.Checkpoint(types.CheckpointVerify)
	if cp == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: verify", ErrCheckpointNotFound)
	}
	if cp.Metrics == nil {
		cp.Metrics = make(map[string]float64)
	}
	passed := 0
	for _, inv := range result.Invariants {
		if inv.Passed {
			passed++
		}
	}
	cp.Metrics["invariantsPassed"] = float64(passed)
	cp.Metrics["invariantsTotal"] = float64(len(result.Invariants))
	if result.Mutation != nil {
		cp.Metrics["mutationScore"] = result.Mutation.Score
	}
	m.UpdatedAt = time.Now()
	recorded := m.Clone()
	c.mu.Unlock()

	logging.MissionInfo("mission %s verify metrics recorded (%d/%d invariants)", missionID, passed, len(result.Invariants))
	return recorded, nil
}

// AttachAuditPack records the audit pack on the finalize checkpoint and
// marks it completed.
func (c *Coordinator) AttachAuditPack(missionID, packID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.missions[missionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissionNotFound, missionID)
	}
	cp := m.Checkpoint(types.CheckpointFinalize)
	if cp == nil {
		return fmt.Errorf("%w: finalize", ErrCheckpointNotFound)
	}
	cp.AuditPack = packID
	cp.Status = types.StatusCompleted
	m.UpdatedAt = time.Now()
	return nil
}

// Approvals summarizes the mission's checkpoint gate decisions for the
// audit pack.
func (c *Coordinator) Approvals(missionID string) ([]evidence.Approval, error) {
	// GetMission hands back a private copy; no lock needed to read it.
	m, err := c.GetMission(missionID)
	if err != nil {
		return nil, err
	}
	var out []evidence.Approval
	for _, cp := range m.Checkpoints {
		if cp.Status == types.StatusPending {
			continue
		}
		out = append(out, evidence.Approval{
			Checkpoint: string(cp.Name),
			Status:     string(cp.Status),
			Actor:      string(cp.Actor),
			Timestamp:  m.UpdatedAt,
		})
	}
	return out, nil
}
