package evidence

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"codegov/internal/diff"
	"codegov/internal/logging"
	"codegov/internal/types"
)

// ErrPackNotFound is returned when a pack id is unknown.
var ErrPackNotFound = fmt.Errorf("audit pack not found")

// Approval is one checkpoint approval record carried into a pack.
type Approval struct {
	Checkpoint string    `json:"checkpoint"`
	Status     string    `json:"status"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
}

// PackInput collects everything available for a mission's audit pack.
// Only ChangeSpec is required; the optional slices and maps are included
// in the archive when present.
type PackInput struct {
	MissionID  string
	ChangeSpec *types.ChangeSpec
	Diffs      []diff.FileDiff
	Invariants []types.InvariantResult
	Mutation   *types.MutationReport
	Approvals  []Approval
	Finops     map[string]interface{}
	Versions   map[string]string
}

// PackItem is one archive entry with its verification flag.
type PackItem struct {
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// PackRecord is the persisted manifest of one audit pack. Signature is
// reserved for a future release and always empty in v1.
type PackRecord struct {
	ID          string     `json:"id"`
	MissionID   string     `json:"missionId"`
	CreatedAt   time.Time  `json:"createdAt"`
	ArchivePath string     `json:"archivePath"`
	Items       []PackItem `json:"items"`
	Signature   string     `json:"signature,omitempty"`
}

// BuildPack assembles the audit pack for a mission: a ZIP archive with
// changespec.json, provenance.json and events.json at the root, plus
// whatever optional evidence the input carries. Assembly stages files in
// a unique temp directory that is removed even on failure. The archive
// bytes are returned for streaming and also persisted under the store
// directory.
func (s *Store) BuildPack(ctx context.Context, input PackInput) (*PackRecord, []byte, error) {
	if input.ChangeSpec == nil {
		return nil, nil, fmt.Errorf("audit pack requires a change spec")
	}

	tmp, err := os.MkdirTemp("", "codegov-pack-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create pack staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	record := &PackRecord{
		ID:        uuid.NewString(),
		MissionID: input.MissionID,
		CreatedAt: time.Now(),
	}

	stage := func(name string, v interface{}) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(tmp, name), data, 0644); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		record.Items = append(record.Items, PackItem{Name: name, Verified: true})
		return nil
	}

	if err := stage("changespec.json", input.ChangeSpec); err != nil {
		return nil, nil, err
	}
	if err := stage("provenance.json", s.Provenance(input.MissionID)); err != nil {
		return nil, nil, err
	}
	if err := stage("events.json", s.MissionEvents(input.MissionID)); err != nil {
		return nil, nil, err
	}
	if len(input.Diffs) > 0 {
		if err := stage("diffs.json", input.Diffs); err != nil {
			return nil, nil, err
		}
	}
	if len(input.Invariants) > 0 {
		if err := stage("test-results.json", input.Invariants); err != nil {
			return nil, nil, err
		}
	}
	if input.Mutation != nil {
		if err := stage("mutation-report.json", input.Mutation); err != nil {
			return nil, nil, err
		}
	}
	if len(input.Approvals) > 0 {
		if err := stage("approvals.json", input.Approvals); err != nil {
			return nil, nil, err
		}
	}
	if len(input.Finops) > 0 {
		if err := stage("finops-summary.json", input.Finops); err != nil {
			return nil, nil, err
		}
	}
	if err := stage("versions.json", input.Versions); err != nil {
		return nil, nil, err
	}

	archive, err := zipDir(tmp)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble archive: %w", err)
	}

	s.mu.Lock()
	record.ArchivePath = filepath.Join(s.dir, "pack_"+record.ID+".zip")
	if err := os.WriteFile(record.ArchivePath, archive, 0644); err != nil {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("persist archive: %w", err)
	}
	s.packs[record.ID] = record
	manifest, err := json.MarshalIndent(record, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(s.dir, "pack_"+record.ID+".json"), manifest, 0644)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("persist pack manifest: %w", err)
	}

	if _, err := s.Append(types.Event{
		Type:      types.EventAuditPackGenerated,
		MissionID: input.MissionID,
		Data:      map[string]interface{}{"packId": record.ID, "items": len(record.Items)},
	}); err != nil {
		return nil, nil, err
	}

	logging.EvidenceDebug("audit pack %s assembled for mission %s (%d items, %d bytes)",
		record.ID, input.MissionID, len(record.Items), len(archive))
	return record, archive, nil
}

// VerifyPack checks that every item of the pack carries a set verified
// flag. Cryptographic verification is reserved.
func (s *Store) VerifyPack(id string) (bool, error) {
	s.mu.Lock()
	record, ok := s.packs[id]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrPackNotFound, id)
	}
	for _, item := range record.Items {
		if !item.Verified {
			return false, nil
		}
	}
	return true, nil
}

// GetPack returns a pack manifest by id.
func (s *Store) GetPack(id string) (*PackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.packs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPackNotFound, id)
	}
	return record, nil
}

// zipDir archives every file at the root of dir with maximum deflate
// compression.
func zipDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w, err := zw.Create(entry.Name())
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
