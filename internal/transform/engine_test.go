package transform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codegov/internal/exec"
	"codegov/internal/langpack"
	"codegov/internal/types"
)

func newTestEngine() *Engine {
	return NewEngine(langpack.NewRegistry(), exec.New(), Config{
		ExcludeDirs: []string{"node_modules", "dist", "build", ".git"},
	})
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func readBack(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func renameSpec() *types.ChangeSpec {
	return &types.ChangeSpec{
		ID:       "CS-1",
		Intent:   "rename UserId to AccountId",
		Scope:    []string{"src/**/*.ts"},
		Language: types.LangTypeScript,
		Patches: []types.Patch{{
			Path:     "src/**/*.ts",
			ASTOp:    types.OpRenameSymbol,
			Selector: "Identifier[name='UserId']",
			Details:  types.PatchDetails{NewName: "AccountId"},
		}},
		Tests: types.TestPlan{Strategy: types.StrategyAugment, MutationThreshold: 0.6},
	}
}

func TestApply_RenameAcrossGlob(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/user.ts":              "export type UserId = string;\nexport function parse(id: UserId): UserId { return id; }\n",
		"src/api/handlers.ts":      "import { UserId } from '../user';\nconst current: UserId = 'u1';\n",
		"src/readme.md":            "UserId is documented here",
		"node_modules/dep/mod.ts":  "export const UserId = 0;\n",
	})

	e := newTestEngine()
	res := e.Apply(context.Background(), renameSpec(), root, ApplyOptions{})
	if !res.Success {
		t.Fatalf("apply failed: %+v", res.Errors)
	}
	if len(res.FilesModified) != 2 {
		t.Fatalf("files modified = %v, want 2 ts files", res.FilesModified)
	}
	if res.FilesModified[0] != "src/api/handlers.ts" || res.FilesModified[1] != "src/user.ts" {
		t.Fatalf("modified order not lexicographic: %v", res.FilesModified)
	}
	if strings.Contains(readBack(t, root, "src/user.ts"), "UserId") {
		t.Fatal("old symbol survived in src/user.ts")
	}
	// Dependency dirs and non-matching files stay untouched.
	if !strings.Contains(readBack(t, root, "node_modules/dep/mod.ts"), "UserId") {
		t.Fatal("node_modules content was rewritten")
	}
	if !strings.Contains(readBack(t, root, "src/readme.md"), "UserId") {
		t.Fatal("non-source file was rewritten")
	}
	// Shadowing limitation surfaces as a warning.
	if len(res.Warnings) == 0 {
		t.Fatal("rename produced no binding-analysis warning")
	}
}

func TestApply_IsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/user.ts": "const UserId = 1;\n",
	})
	e := newTestEngine()

	first := e.Apply(context.Background(), renameSpec(), root, ApplyOptions{})
	if !first.Success || len(first.FilesModified) != 1 {
		t.Fatalf("first apply: %+v", first)
	}
	after := readBack(t, root, "src/user.ts")

	second := e.Apply(context.Background(), renameSpec(), root, ApplyOptions{})
	if !second.Success {
		t.Fatalf("second apply failed: %+v", second.Errors)
	}
	if len(second.FilesModified) != 0 {
		t.Fatalf("second apply modified %v, want none", second.FilesModified)
	}
	if readBack(t, root, "src/user.ts") != after {
		t.Fatal("content changed on re-application")
	}
}

func TestApply_ReplaceAPIWithArgsMap(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/login.ts": "auth.login({ username: user, remember: true });\n",
	})
	spec := &types.ChangeSpec{
		ID:       "CS-2",
		Intent:   "migrate auth.login to auth.signIn",
		Scope:    []string{"src/login.ts"},
		Language: types.LangTypeScript,
		Patches: []types.Patch{{
			Path:     "src/login.ts",
			ASTOp:    types.OpReplaceAPI,
			Selector: "CallExpression[callee.object.name='auth'][callee.property.name='login']",
			Details: types.PatchDetails{
				NewProperty: "signIn",
				ArgsMap:     map[string]string{"username": "email"},
			},
		}},
		Tests: types.TestPlan{Strategy: types.StrategyAugment, MutationThreshold: 0.5},
	}

	e := newTestEngine()
	res := e.Apply(context.Background(), spec, root, ApplyOptions{})
	if !res.Success {
		t.Fatalf("apply failed: %+v", res.Errors)
	}
	got := readBack(t, root, "src/login.ts")
	if !strings.Contains(got, "auth.signIn({ email: user, remember: true })") {
		t.Fatalf("rewrite wrong: %s", got)
	}
}

func TestApply_InvalidSelectorIsStructuredError(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const x = 1;\n"})
	spec := renameSpec()
	spec.Patches[0].Selector = "Identifier[id='UserId']"

	e := newTestEngine()
	res := e.Apply(context.Background(), spec, root, ApplyOptions{})
	if res.Success {
		t.Fatal("bad selector accepted")
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != types.ErrKindSelector {
		t.Fatalf("errors = %+v, want one InvalidSelector", res.Errors)
	}
}

func TestApply_UnsupportedOpContinuesWithRemainingPatches(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const UserId = 1;\n"})
	spec := renameSpec()
	spec.Patches = append([]types.Patch{{
		Path:  "src/a.ts",
		ASTOp: types.OpMoveModule,
	}}, spec.Patches...)

	e := newTestEngine()
	res := e.Apply(context.Background(), spec, root, ApplyOptions{})
	if res.Success {
		t.Fatal("unsupported op did not fail the result")
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != types.ErrKindUnsupported {
		t.Fatalf("errors = %+v", res.Errors)
	}
	// The rename patch after the unsupported one still ran.
	if !strings.Contains(readBack(t, root, "src/a.ts"), "AccountId") {
		t.Fatal("subsequent patch did not run")
	}
}

func TestApply_ParseErrorIsPerFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/broken.ts": "function ((( {\n",
		"src/ok.ts":     "const UserId = 1;\n",
	})

	e := newTestEngine()
	res := e.Apply(context.Background(), renameSpec(), root, ApplyOptions{})
	if res.Success {
		t.Fatal("parse error did not fail the result")
	}
	found := false
	for _, engErr := range res.Errors {
		if engErr.Kind == types.ErrKindParse && engErr.Path == "src/broken.ts" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no per-file parse error: %+v", res.Errors)
	}
	// The healthy file was still rewritten.
	if !strings.Contains(readBack(t, root, "src/ok.ts"), "AccountId") {
		t.Fatal("healthy file skipped after sibling parse error")
	}
}

func TestApply_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const UserId = 1;\n"})

	e := newTestEngine()
	res := e.Apply(context.Background(), renameSpec(), root, ApplyOptions{DryRun: true})
	if !res.Success || len(res.FilesModified) != 1 {
		t.Fatalf("dry run result: %+v", res)
	}
	if !strings.Contains(readBack(t, root, "src/a.ts"), "UserId") {
		t.Fatal("dry run wrote to disk")
	}
}

func TestApplyContents_InMemoryPipeline(t *testing.T) {
	e := newTestEngine()
	files := map[string]string{
		"src/a.ts": "const UserId = 1;\n",
		"src/b.ts": "const other = 2;\n",
	}

	out, res := e.ApplyContents(context.Background(), renameSpec(), files)
	if !res.Success {
		t.Fatalf("apply failed: %+v", res.Errors)
	}
	if len(res.FilesModified) != 1 || res.FilesModified[0] != "src/a.ts" {
		t.Fatalf("modified = %v", res.FilesModified)
	}
	if !strings.Contains(out["src/a.ts"], "AccountId") {
		t.Fatalf("content not rewritten: %s", out["src/a.ts"])
	}
	// The input map is never mutated.
	if !strings.Contains(files["src/a.ts"], "UserId") {
		t.Fatal("input map mutated")
	}
}
