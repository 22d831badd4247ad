package transform

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"codegov/internal/exec"
	"codegov/internal/logging"
	"codegov/internal/types"
)

var noCallsRuleRE = regexp.MustCompile(`^no calls to (\S+)$`)

// Verify runs the spec's invariants sequentially and orchestrates
// mutation testing. A failed invariant never aborts the remaining ones.
// Overall success requires every invariant to pass and the mutation
// score to meet the spec threshold.
func (e *Engine) Verify(ctx context.Context, spec *types.ChangeSpec, workdir string) *types.DTEResult {
	result := &types.DTEResult{Success: true}

	for _, inv := range spec.Invariants {
		res := e.runInvariant(ctx, inv, spec, workdir, result)
		result.Invariants = append(result.Invariants, res)
		if !res.Passed {
			result.Success = false
			result.Errors = append(result.Errors, types.EngineError{
				Kind:    "InvariantFailed",
				Message: fmt.Sprintf("%s: %s", inv.Name, res.Message),
			})
		}
	}

	report, err := e.runMutation(ctx, spec, workdir)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindToolMissing, Message: err.Error()})
		return result
	}
	result.Mutation = report
	if report.Synthesized {
		result.Warnings = append(result.Warnings,
			"mutation report synthesized: no mutation tool available in workdir")
	}
	if report.Score < spec.Tests.MutationThreshold {
		result.Success = false
		result.Errors = append(result.Errors, types.EngineError{
			Kind:    "MutationThreshold",
			Message: fmt.Sprintf("mutation score %.2f below threshold %.2f", report.Score, spec.Tests.MutationThreshold),
		})
	}
	return result
}

func (e *Engine) runInvariant(ctx context.Context, inv types.Invariant, spec *types.ChangeSpec, workdir string, result *types.DTEResult) types.InvariantResult {
	logging.TransformDebug("running invariant %s (%s)", inv.Name, inv.Type)
	switch inv.Type {
	case types.InvTypecheck:
		return e.runTypecheck(ctx, inv, workdir)
	case types.InvSymbolExists:
		return e.runSymbolExists(ctx, inv, spec, workdir)
	case types.InvRegex:
		return e.runRegexSearch(inv, spec, workdir)
	case types.InvSemanticRule:
		return e.runSemanticRule(inv, spec, workdir, result)
	case types.InvAPICompat:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("invariant %s: apiCompat is reserved and always passes", inv.Name))
		return types.InvariantResult{Name: inv.Name, Passed: true, Message: "apiCompat reserved, treated as pass"}
	default:
		return types.InvariantResult{
			Name:    inv.Name,
			Passed:  false,
			Message: fmt.Sprintf("unknown invariant type %q", inv.Type),
		}
	}
}

// runTypecheck executes the invariant spec as a shell command; exit 0
// passes, everything else fails with the captured output.
func (e *Engine) runTypecheck(ctx context.Context, inv types.Invariant, workdir string) types.InvariantResult {
	res, err := e.executor.Run(ctx, exec.Command{
		Binary:           "sh",
		Arguments:        []string{"-c", inv.Spec},
		WorkingDirectory: workdir,
		Timeout:          e.typecheckTimeout,
	})
	if err != nil {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: fmt.Sprintf("typecheck could not run: %v", err)}
	}
	if res.Killed {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: res.KillReason, Output: res.Combined}
	}
	if res.ExitCode != 0 {
		return types.InvariantResult{
			Name:    inv.Name,
			Passed:  false,
			Message: fmt.Sprintf("typecheck exited %d", res.ExitCode),
			Output:  res.Combined,
		}
	}
	return types.InvariantResult{Name: inv.Name, Passed: true, Message: "typecheck passed"}
}

// runSymbolExists searches source files for the symbol text. Passes iff
// at least one file contains it.
func (e *Engine) runSymbolExists(ctx context.Context, inv types.Invariant, spec *types.ChangeSpec, workdir string) types.InvariantResult {
	hits, err := e.searchSources(spec, workdir, func(content string) bool {
		return strings.Contains(content, inv.Spec)
	})
	if err != nil {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: err.Error()}
	}
	if len(hits) == 0 {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: fmt.Sprintf("symbol %q not found in any source file", inv.Spec)}
	}
	return types.InvariantResult{
		Name:    inv.Name,
		Passed:  true,
		Message: fmt.Sprintf("symbol %q found in %d file(s)", inv.Spec, len(hits)),
	}
}

// runRegexSearch passes iff the pattern matches somewhere (presence
// assertion).
func (e *Engine) runRegexSearch(inv types.Invariant, spec *types.ChangeSpec, workdir string) types.InvariantResult {
	re, err := regexp.Compile(inv.Spec)
	if err != nil {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: fmt.Sprintf("bad regex: %v", err)}
	}
	hits, err := e.searchSources(spec, workdir, re.MatchString)
	if err != nil {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: err.Error()}
	}
	if len(hits) == 0 {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: fmt.Sprintf("pattern %q matched nothing", inv.Spec)}
	}
	return types.InvariantResult{Name: inv.Name, Passed: true, Message: fmt.Sprintf("pattern matched in %d file(s)", len(hits))}
}

// runSemanticRule decodes the restricted rule grammar. Only
// "no calls to <X>" is understood: any occurrence of <X> fails.
// Unrecognized rules pass with a warning.
func (e *Engine) runSemanticRule(inv types.Invariant, spec *types.ChangeSpec, workdir string, result *types.DTEResult) types.InvariantResult {
	m := noCallsRuleRE.FindStringSubmatch(strings.TrimSpace(inv.Spec))
	if m == nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("invariant %s: rule %q not decoded, basic validation only", inv.Name, inv.Spec))
		return types.InvariantResult{Name: inv.Name, Passed: true, Message: "rule not decoded, basic validation only"}
	}
	target := m[1]
	hits, err := e.searchSources(spec, workdir, func(content string) bool {
		return strings.Contains(content, target)
	})
	if err != nil {
		return types.InvariantResult{Name: inv.Name, Passed: false, Message: err.Error()}
	}
	if len(hits) > 0 {
		return types.InvariantResult{
			Name:    inv.Name,
			Passed:  false,
			Message: fmt.Sprintf("%q still referenced in %s", target, strings.Join(hits, ", ")),
		}
	}
	return types.InvariantResult{Name: inv.Name, Passed: true, Message: fmt.Sprintf("no calls to %q", target)}
}

// searchSources walks the working directory visiting files with the
// spec language's extensions, skipping excluded directories. Returns
// the relative paths for which match reports true.
func (e *Engine) searchSources(spec *types.ChangeSpec, workdir string, match func(string) bool) ([]string, error) {
	pack, err := e.packs.Get(spec.Language)
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool)
	for _, ext := range pack.Extensions() {
		exts[ext] = true
	}

	var hits []string
	err = filepath.WalkDir(workdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if e.excludeDirs[d.Name()] && path != workdir {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[filepath.Ext(path)] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if match(string(content)) {
			rel, err := filepath.Rel(workdir, path)
			if err != nil {
				return err
			}
			hits = append(hits, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}
