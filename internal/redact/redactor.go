package redact

import (
	"fmt"
	"sort"
	"sync"

	"codegov/internal/logging"
)

// Location is a match position computed against the original content.
// Callers must not rely on position stability after redaction.
type Location struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Finding is one match produced by a policy during a scan.
type Finding struct {
	Type     PolicyType `json:"type"`
	Location Location   `json:"location"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Policy   string     `json:"policy"`
}

// ScanResult carries the scan outcome for one piece of content.
type ScanResult struct {
	File     string    `json:"file,omitempty"`
	Original string    `json:"original"`
	Redacted string    `json:"redacted"`
	Findings []Finding `json:"findings"`
}

// HasCritical reports whether any finding is of critical severity.
func (r *ScanResult) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// PolicyViolationError is raised when a block-action policy matches.
// The caller decides whether to proceed.
type PolicyViolationError struct {
	Finding Finding
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation: %s (%s/%s)", e.Finding.Message, e.Finding.Policy, e.Finding.Severity)
}

// Redactor scans content against an ordered policy set, widened by the
// composite pattern set for token formats the policies do not model.
type Redactor struct {
	mu        sync.RWMutex
	policies  []*Policy
	composite *Composite
}

// New creates a redactor loaded with the default out-of-box policy set
// and the composite patterns.
func New() *Redactor {
	r := &Redactor{composite: NewComposite()}
	for _, p := range defaultPolicies() {
		// Built-in patterns are known-good; compile cannot fail here.
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register compiles and appends a policy. Policies are evaluated in
// insertion order.
func (r *Redactor) Register(p *Policy) error {
	if err := p.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies = append(r.policies, p)
	return nil
}

// Policies returns a snapshot of the registered policies.
func (r *Redactor) Policies() []*Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Policy, len(r.policies))
	copy(out, r.policies)
	return out
}

// replace records a pending text replacement in original coordinates.
type replace struct {
	start, end  int
	placeholder string
}

// Scan evaluates every enabled policy against content. Findings are
// positioned against the original content; redactions are applied from
// the end backwards so earlier offsets stay valid. A block-action match
// returns the result together with a PolicyViolationError.
func (r *Redactor) Scan(content, file string) (*ScanResult, error) {
	r.mu.RLock()
	policies := r.policies
	r.mu.RUnlock()

	result := &ScanResult{
		File:     file,
		Original: content,
		Redacted: content,
		Findings: []Finding{},
	}

	var blocked *PolicyViolationError
	var pending []replace
	var covered [][2]int

	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		for _, re := range p.compiled {
			for _, m := range re.FindAllStringIndex(content, -1) {
				covered = append(covered, [2]int{m[0], m[1]})
				f := Finding{
					Type:     p.Type,
					Location: locate(content, m[0], m[1]),
					Severity: p.Severity,
					Message:  fmt.Sprintf("%s detected", p.Name),
					Policy:   p.ID,
				}
				result.Findings = append(result.Findings, f)

				switch p.Action {
				case ActionRedact:
					pending = append(pending, replace{start: m[0], end: m[1], placeholder: p.placeholder()})
				case ActionBlock:
					if blocked == nil {
						blocked = &PolicyViolationError{Finding: f}
					}
					// Blocked content is still redacted in the result so
					// callers can log a safe preview.
					pending = append(pending, replace{start: m[0], end: m[1], placeholder: p.placeholder()})
				case ActionWarn:
					// Record only.
				}
			}
		}
	}

	// Composite patterns widen coverage; spans a policy already claimed
	// are not re-reported.
	if r.composite != nil {
		for _, p := range r.composite.patterns {
			for _, m := range p.re.FindAllStringIndex(content, -1) {
				if overlapsAny(covered, m[0], m[1]) {
					continue
				}
				result.Findings = append(result.Findings, Finding{
					Type:     p.typ,
					Location: locate(content, m[0], m[1]),
					Severity: SeverityHigh,
					Message:  p.name + " detected",
					Policy:   "composite",
				})
				pending = append(pending, replace{start: m[0], end: m[1], placeholder: p.placeholder})
			}
		}
	}

	result.Redacted = applyReplacements(content, pending)

	if len(result.Findings) > 0 {
		logging.RedactInfo("scan %s: %d findings", file, len(result.Findings))
	}
	if blocked != nil {
		return result, blocked
	}
	return result, nil
}

// ScanMultiple applies Scan to each file independently; there is no
// cross-file correlation. The first block-action violation is returned
// after all files have been scanned.
func (r *Redactor) ScanMultiple(files map[string]string) (map[string]*ScanResult, error) {
	results := make(map[string]*ScanResult, len(files))
	var firstErr error
	// Deterministic order keeps logs and error selection stable.
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res, err := r.Scan(files[name], name)
		results[name] = res
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// overlapsAny reports whether [start,end) intersects any claimed span.
func overlapsAny(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// applyReplacements rewrites content in original coordinates. Overlaps
// are resolved by sorting descending on start and skipping any span that
// collides with one already applied.
func applyReplacements(content string, pending []replace) string {
	if len(pending) == 0 {
		return content
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].start != pending[j].start {
			return pending[i].start > pending[j].start
		}
		return pending[i].end > pending[j].end
	})

	out := content
	lastStart := len(content) + 1
	for _, rep := range pending {
		if rep.end > lastStart {
			continue // overlaps a replacement already applied
		}
		out = out[:rep.start] + rep.placeholder + out[rep.end:]
		lastStart = rep.start
	}
	return out
}

// locate converts byte offsets into 1-based line/column positions.
func locate(content string, start, end int) Location {
	line, col := 1, 1
	loc := Location{}
	for i := 0; i < end && i < len(content); i++ {
		if i == start {
			loc.StartLine, loc.StartColumn = line, col
		}
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	if start == end || start >= len(content) {
		loc.StartLine, loc.StartColumn = line, col
	}
	loc.EndLine, loc.EndColumn = line, col
	return loc
}
