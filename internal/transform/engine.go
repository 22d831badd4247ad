package transform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar"

	"codegov/internal/exec"
	"codegov/internal/langpack"
	"codegov/internal/logging"
	"codegov/internal/types"
)

// Engine applies change specs deterministically. It is stateless between
// calls; every Apply resolves, parses, and writes from scratch.
type Engine struct {
	packs            *langpack.Registry
	executor         *exec.Executor
	excludeDirs      map[string]bool
	typecheckTimeout time.Duration
	mutationTimeout  time.Duration
}

// Config bounds an engine's external tool calls and glob resolution.
type Config struct {
	// ExcludeDirs names directories skipped during glob resolution
	// (build output, dependency trees).
	ExcludeDirs      []string
	TypecheckTimeout time.Duration
	MutationTimeout  time.Duration
}

// NewEngine builds an engine over the given pack registry and executor.
func NewEngine(packs *langpack.Registry, executor *exec.Executor, cfg Config) *Engine {
	ex := make(map[string]bool, len(cfg.ExcludeDirs))
	for _, d := range cfg.ExcludeDirs {
		ex[d] = true
	}
	if cfg.TypecheckTimeout <= 0 {
		cfg.TypecheckTimeout = 60 * time.Second
	}
	if cfg.MutationTimeout <= 0 {
		cfg.MutationTimeout = 5 * time.Minute
	}
	return &Engine{
		packs:            packs,
		executor:         executor,
		excludeDirs:      ex,
		typecheckTimeout: cfg.TypecheckTimeout,
		mutationTimeout:  cfg.MutationTimeout,
	}
}

// ApplyOptions tunes a single apply call.
type ApplyOptions struct {
	// DryRun reports what would change without writing files.
	DryRun bool
}

// compiledPatch is a patch with its selector decoded. Exactly one of
// rename/replace is set for executable operations.
type compiledPatch struct {
	rename  *langpack.RenameQuery
	replace *langpack.ReplaceAPIQuery
}

func compilePatch(p types.Patch, idx int) (*compiledPatch, *types.EngineError) {
	switch p.ASTOp {
	case types.OpRenameSymbol:
		name, err := parseRenameSelector(p.Selector)
		if err != nil {
			return nil, &types.EngineError{Kind: types.ErrKindSelector, Patch: idx, Message: err.Error()}
		}
		return &compiledPatch{rename: &langpack.RenameQuery{Name: name, NewName: p.Details.NewName}}, nil
	case types.OpReplaceAPI:
		object, property, err := parseReplaceAPISelector(p.Selector)
		if err != nil {
			return nil, &types.EngineError{Kind: types.ErrKindSelector, Patch: idx, Message: err.Error()}
		}
		return &compiledPatch{replace: &langpack.ReplaceAPIQuery{
			Object:      object,
			Property:    property,
			NewProperty: p.Details.NewProperty,
			ArgsMap:     p.Details.ArgsMap,
		}}, nil
	default:
		return nil, &types.EngineError{
			Kind:    types.ErrKindUnsupported,
			Patch:   idx,
			Message: fmt.Sprintf("astOp %q is declared but not executable", p.ASTOp),
		}
	}
}

func (cp *compiledPatch) run(ctx context.Context, pack langpack.Pack, content []byte) ([]byte, int, error) {
	if cp.rename != nil {
		return pack.Rename(ctx, content, *cp.rename)
	}
	return pack.ReplaceAPI(ctx, content, *cp.replace)
}

// Apply executes every patch of the spec against the working directory.
// Patches run in list order; within a patch, files are processed in
// lexicographic order. A failed patch never aborts the remaining ones.
func (e *Engine) Apply(ctx context.Context, spec *types.ChangeSpec, workdir string, opts ApplyOptions) *types.DTEResult {
	result := &types.DTEResult{Success: true}

	pack, err := e.packs.Get(spec.Language)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindUnsupported, Message: err.Error()})
		return result
	}

	modified := make(map[string]bool)
	for i, patch := range spec.Patches {
		if ctx.Err() != nil {
			result.Success = false
			result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindTimeout, Patch: i, Message: ctx.Err().Error()})
			return result
		}

		cp, engErr := compilePatch(patch, i)
		if engErr != nil {
			result.Success = false
			result.Errors = append(result.Errors, *engErr)
			continue
		}
		if patch.ASTOp == types.OpRenameSymbol {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("patch %d: renameSymbol performs no binding analysis; shadowed identifiers are renamed too", i))
		}

		files, err := e.resolveFiles(workdir, patch.Path)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindIO, Patch: i, Path: patch.Path, Message: err.Error()})
			continue
		}

		for _, rel := range files {
			content, err := os.ReadFile(filepath.Join(workdir, rel))
			if err != nil {
				result.Success = false
				result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindIO, Patch: i, Path: rel, Message: err.Error()})
				continue
			}
			out, n, err := cp.run(ctx, pack, content)
			if err != nil {
				result.Success = false
				result.Errors = append(result.Errors, engineErrorFor(err, i, rel))
				continue
			}
			if n == 0 {
				continue
			}
			if !opts.DryRun {
				if err := os.WriteFile(filepath.Join(workdir, rel), out, 0644); err != nil {
					result.Success = false
					result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindIO, Patch: i, Path: rel, Message: err.Error()})
					continue
				}
			}
			modified[rel] = true
			logging.TransformDebug("patch %d rewrote %d occurrence(s) in %s", i, n, rel)
		}
	}

	result.FilesModified = sortedKeys(modified)
	return result
}

// ApplyContents runs the spec against an in-memory file set. Used by the
// mission pipeline where inputs arrive over the API rather than from a
// working directory. Returns the post-image map alongside the result.
func (e *Engine) ApplyContents(ctx context.Context, spec *types.ChangeSpec, files map[string]string) (map[string]string, *types.DTEResult) {
	result := &types.DTEResult{Success: true}

	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = v
	}

	pack, err := e.packs.Get(spec.Language)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, types.EngineError{Kind: types.ErrKindUnsupported, Message: err.Error()})
		return out, result
	}

	modified := make(map[string]bool)
	for i, patch := range spec.Patches {
		cp, engErr := compilePatch(patch, i)
		if engErr != nil {
			result.Success = false
			result.Errors = append(result.Errors, *engErr)
			continue
		}
		if patch.ASTOp == types.OpRenameSymbol {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("patch %d: renameSymbol performs no binding analysis; shadowed identifiers are renamed too", i))
		}

		for _, path := range matchContentPaths(patch.Path, out) {
			next, n, err := cp.run(ctx, pack, []byte(out[path]))
			if err != nil {
				result.Success = false
				result.Errors = append(result.Errors, engineErrorFor(err, i, path))
				continue
			}
			if n == 0 {
				continue
			}
			out[path] = string(next)
			modified[path] = true
		}
	}

	result.FilesModified = sortedKeys(modified)
	return out, result
}

func engineErrorFor(err error, patch int, path string) types.EngineError {
	kind := types.ErrKindParse
	if errors.Is(err, langpack.ErrUnsupported) {
		kind = types.ErrKindUnsupported
	} else if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = types.ErrKindTimeout
	}
	return types.EngineError{Kind: kind, Patch: patch, Path: path, Message: err.Error()}
}

// resolveFiles maps a patch path to concrete files: the literal file
// when it exists, otherwise a recursive glob over the working directory
// skipping excluded directories. Paths come back sorted.
func (e *Engine) resolveFiles(workdir, pattern string) ([]string, error) {
	full := filepath.Join(workdir, pattern)
	if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
		return []string{pattern}, nil
	}

	var out []string
	err := filepath.WalkDir(workdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if e.excludeDirs[d.Name()] && path != workdir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(workdir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func matchContentPaths(pattern string, files map[string]string) []string {
	if _, ok := files[pattern]; ok {
		return []string{pattern}
	}
	var out []string
	for path := range files {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
