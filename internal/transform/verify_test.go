package transform

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"codegov/internal/types"
)

func verifySpec(invariants ...types.Invariant) *types.ChangeSpec {
	return &types.ChangeSpec{
		ID:         "CS-3",
		Intent:     "verify rename",
		Scope:      []string{"src/**/*.ts"},
		Language:   types.LangTypeScript,
		Invariants: invariants,
		Tests:      types.TestPlan{Strategy: types.StrategyAugment, MutationThreshold: 0.6},
	}
}

func invariantByName(t *testing.T, res *types.DTEResult, name string) types.InvariantResult {
	t.Helper()
	for _, inv := range res.Invariants {
		if inv.Name == name {
			return inv
		}
	}
	t.Fatalf("invariant %s missing from %+v", name, res.Invariants)
	return types.InvariantResult{}
}

func TestVerify_SymbolExists(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.ts": "export const AccountId = 'x';\n",
	})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "new-symbol", Type: types.InvSymbolExists, Spec: "AccountId"},
		types.Invariant{Name: "old-symbol", Type: types.InvSymbolExists, Spec: "UserId"},
	), root)

	if !invariantByName(t, res, "new-symbol").Passed {
		t.Fatal("present symbol reported missing")
	}
	if invariantByName(t, res, "old-symbol").Passed {
		t.Fatal("absent symbol reported present")
	}
	if res.Success {
		t.Fatal("overall success despite failed invariant")
	}
}

func TestVerify_FailureDoesNotAbortRemaining(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const AccountId = 1;\n"})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "fails", Type: types.InvSymbolExists, Spec: "Missing"},
		types.Invariant{Name: "passes", Type: types.InvRegex, Spec: `AccountId\s*=`},
	), root)

	if len(res.Invariants) != 2 {
		t.Fatalf("invariants run = %d, want 2", len(res.Invariants))
	}
	if !invariantByName(t, res, "passes").Passed {
		t.Fatal("second invariant did not run after first failed")
	}
}

func TestVerify_SemanticRuleNoCallsTo(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.ts": "auth.signIn({});\n",
		"src/b.ts": "legacy.login({});\n",
	})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "no-legacy", Type: types.InvSemanticRule, Spec: "no calls to legacy.login"},
		types.Invariant{Name: "no-ghost", Type: types.InvSemanticRule, Spec: "no calls to ghost.api"},
	), root)

	failed := invariantByName(t, res, "no-legacy")
	if failed.Passed {
		t.Fatal("rule passed despite remaining reference")
	}
	if !strings.Contains(failed.Message, "src/b.ts") {
		t.Fatalf("failure message does not name the file: %s", failed.Message)
	}
	if !invariantByName(t, res, "no-ghost").Passed {
		t.Fatal("clean rule failed")
	}
}

func TestVerify_UnrecognizedRulePassesWithWarning(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const x = 1;\n"})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "odd-rule", Type: types.InvSemanticRule, Spec: "all handlers must be pure"},
	), root)

	if !invariantByName(t, res, "odd-rule").Passed {
		t.Fatal("unrecognized rule failed instead of passing with warning")
	}
	warned := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "not decoded") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("no decode warning in %v", res.Warnings)
	}
}

func TestVerify_APICompatReservedPasses(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const x = 1;\n"})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "compat", Type: types.InvAPICompat, Spec: "v2"},
	), root)
	if !invariantByName(t, res, "compat").Passed {
		t.Fatal("apiCompat did not pass")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("apiCompat produced no warning")
	}
}

func TestVerify_UnknownInvariantTypeFails(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const x = 1;\n"})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "mystery", Type: "futureCheck", Spec: "?"},
	), root)
	if invariantByName(t, res, "mystery").Passed {
		t.Fatal("unknown invariant type passed")
	}
}

func TestVerify_TypecheckRunsShellCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell test")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const x = 1;\n"})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "tc-pass", Type: types.InvTypecheck, Spec: "true"},
		types.Invariant{Name: "tc-fail", Type: types.InvTypecheck, Spec: "echo type error 1>&2; exit 2"},
	), root)

	if !invariantByName(t, res, "tc-pass").Passed {
		t.Fatal("exit 0 typecheck failed")
	}
	failed := invariantByName(t, res, "tc-fail")
	if failed.Passed {
		t.Fatal("non-zero typecheck passed")
	}
	if !strings.Contains(failed.Output, "type error") {
		t.Fatalf("captured output missing: %q", failed.Output)
	}
}

func TestVerify_SynthesizedMutationReportMeetsThreshold(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.ts": "const AccountId = 1;\n"})
	e := newTestEngine()

	res := e.Verify(context.Background(), verifySpec(
		types.Invariant{Name: "sym", Type: types.InvSymbolExists, Spec: "AccountId"},
	), root)

	if res.Mutation == nil {
		t.Fatal("no mutation report")
	}
	if !res.Mutation.Synthesized {
		t.Fatal("report not marked synthesized without a tool")
	}
	if res.Mutation.Score != 0.6 {
		t.Fatalf("score = %v, want exactly the 0.6 threshold", res.Mutation.Score)
	}
	if !res.Success {
		t.Fatalf("verify failed: %+v", res.Errors)
	}
	warned := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "synthesized") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("no synthesis warning in %v", res.Warnings)
	}
}

func TestParseMutationReport_AggregatesStatuses(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mutation-report.json": `{
  "files": {
    "src/a.ts": {
      "mutants": [
        {"mutatorName": "ArithmeticOperator", "status": "Killed"},
        {"mutatorName": "BooleanLiteral", "status": "Survived"},
        {"mutatorName": "StringLiteral", "status": "Timeout"},
        {"mutatorName": "ArithmeticOperator", "status": "Killed"}
      ]
    }
  }
}`,
	})

	report, err := parseMutationReport(root)
	if err != nil {
		t.Fatalf("parseMutationReport: %v", err)
	}
	if report.Total != 4 || report.Killed != 2 || report.Survived != 1 || report.Timeouts != 1 {
		t.Fatalf("aggregate = %+v", report)
	}
	if report.Score != 0.5 {
		t.Fatalf("score = %v, want 0.5", report.Score)
	}
	if report.Synthesized {
		t.Fatal("parsed report marked synthesized")
	}
}
