// Package types provides shared type definitions used across codegov packages.
// This package exists to break import cycles between the transform engine,
// the mission coordinator, and the evidence log. Types in this package should
// be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"regexp"
)

// Language identifies a source language handled by the transform engine.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangJava       Language = "java"
)

// KnownLanguages lists every language the engine recognizes.
var KnownLanguages = []Language{LangTypeScript, LangJavaScript, LangPython, LangJava}

// Valid reports whether the language is one of the recognized values.
func (l Language) Valid() bool {
	switch l {
	case LangTypeScript, LangJavaScript, LangPython, LangJava:
		return true
	}
	return false
}

// ASTOp is the kind of AST-level operation a patch performs.
type ASTOp string

const (
	OpRenameSymbol ASTOp = "renameSymbol"
	OpReplaceAPI   ASTOp = "replaceAPI"
	OpMoveModule   ASTOp = "moveModule"
	OpInsertNode   ASTOp = "insertNode"
	OpDeleteNode   ASTOp = "deleteNode"
	OpEditString   ASTOp = "editString"
	OpEditRegex    ASTOp = "editRegex"
)

// Known reports whether the op belongs to the declared operation set.
// Only OpRenameSymbol and OpReplaceAPI are executable in v1; the rest
// fail at apply time with an unsupported-operation error.
func (op ASTOp) Known() bool {
	switch op {
	case OpRenameSymbol, OpReplaceAPI, OpMoveModule, OpInsertNode, OpDeleteNode, OpEditString, OpEditRegex:
		return true
	}
	return false
}

// RiskLevel grades a change specification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether the risk level is recognized.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// PatchDetails carries the operation-specific parameters of a patch.
type PatchDetails struct {
	// NewName is the replacement identifier for renameSymbol.
	NewName string `json:"newName,omitempty"`
	// NewProperty is the replacement property name for replaceAPI.
	NewProperty string `json:"newProperty,omitempty"`
	// ArgsMap renames object-literal argument keys for replaceAPI.
	ArgsMap map[string]string `json:"argsMap,omitempty"`
}

// Patch is one AST-level operation targeting one path or glob.
type Patch struct {
	Path     string       `json:"path"`
	ASTOp    ASTOp        `json:"astOp"`
	Selector string       `json:"selector,omitempty"`
	Details  PatchDetails `json:"details"`
}

// InvariantType classifies a post-condition check.
type InvariantType string

const (
	InvTypecheck    InvariantType = "typecheck"
	InvSymbolExists InvariantType = "symbolExists"
	InvAPICompat    InvariantType = "apiCompat"
	InvRegex        InvariantType = "regex"
	InvSemanticRule InvariantType = "semanticRule"
)

// Invariant is a post-condition that must hold after all patches apply.
// Spec is type-dependent: a shell invocation for typecheck, a symbol
// identifier for symbolExists, a regex for regex, a restricted
// natural-language rule for semanticRule.
type Invariant struct {
	Name string        `json:"name"`
	Type InvariantType `json:"type"`
	Spec string        `json:"spec"`
}

// TestStrategy selects how verification tests are sourced.
type TestStrategy string

const (
	StrategyAugment  TestStrategy = "augment"
	StrategyGenerate TestStrategy = "generate"
	StrategyHybrid   TestStrategy = "hybrid"
)

// Valid reports whether the strategy is recognized.
func (s TestStrategy) Valid() bool {
	switch s {
	case StrategyAugment, StrategyGenerate, StrategyHybrid:
		return true
	}
	return false
}

// TestPlan describes the testing contract of a change spec.
type TestPlan struct {
	Strategy          TestStrategy `json:"strategy"`
	Targets           []string     `json:"targets,omitempty"`
	MutationThreshold float64      `json:"mutationThreshold"`
}

// ChangeSpec is the declarative transform contract. Values are immutable
// once created; the engine never mutates a spec it was handed.
type ChangeSpec struct {
	ID          string            `json:"id"`
	Intent      string            `json:"intent"`
	Scope       []string          `json:"scope"`
	Language    Language          `json:"language"`
	Assumptions []string          `json:"assumptions,omitempty"`
	Patches     []Patch           `json:"patches"`
	Invariants  []Invariant       `json:"invariants"`
	Tests       TestPlan          `json:"tests"`
	Risk        RiskLevel         `json:"risk,omitempty"`
	Telemetry   map[string]string `json:"telemetry,omitempty"`
}

var changeSpecIDPattern = regexp.MustCompile(`^CS-[0-9]+$`)

// Validate checks the spec against the schema contract: id pattern,
// non-empty scope, recognized language, per-operation patch shape, test
// plan enums and threshold range. A nil return means the spec is accepted.
func (s *ChangeSpec) Validate() error {
	if !changeSpecIDPattern.MatchString(s.ID) {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("id %q does not match CS-<digits>", s.ID)}
	}
	if s.Intent == "" {
		return &ValidationError{Field: "intent", Reason: "intent is required"}
	}
	if len(s.Scope) == 0 {
		return &ValidationError{Field: "scope", Reason: "scope must list at least one path or glob"}
	}
	if !s.Language.Valid() {
		return &ValidationError{Field: "language", Reason: fmt.Sprintf("unrecognized language %q", s.Language)}
	}
	if s.Risk != "" && !s.Risk.Valid() {
		return &ValidationError{Field: "risk", Reason: fmt.Sprintf("unrecognized risk %q", s.Risk)}
	}
	for i, p := range s.Patches {
		if err := validatePatch(p); err != nil {
			return &ValidationError{Field: fmt.Sprintf("patches[%d]", i), Reason: err.Error()}
		}
	}
	if !s.Tests.Strategy.Valid() {
		return &ValidationError{Field: "tests.strategy", Reason: fmt.Sprintf("unrecognized strategy %q", s.Tests.Strategy)}
	}
	if s.Tests.MutationThreshold < 0 || s.Tests.MutationThreshold > 1 {
		return &ValidationError{Field: "tests.mutationThreshold", Reason: "mutation threshold must be in [0,1]"}
	}
	return nil
}

// EffectiveRisk returns the declared risk or the medium default.
func (s *ChangeSpec) EffectiveRisk() RiskLevel {
	if s.Risk == "" {
		return RiskMedium
	}
	return s.Risk
}

func validatePatch(p Patch) error {
	if p.Path == "" {
		return fmt.Errorf("patch path is required")
	}
	if !p.ASTOp.Known() {
		return fmt.Errorf("unknown astOp %q", p.ASTOp)
	}
	switch p.ASTOp {
	case OpRenameSymbol:
		if p.Selector == "" {
			return fmt.Errorf("renameSymbol requires a selector")
		}
		if p.Details.NewName == "" {
			return fmt.Errorf("renameSymbol requires details.newName")
		}
	case OpReplaceAPI:
		if p.Selector == "" {
			return fmt.Errorf("replaceAPI requires a selector")
		}
		if p.Details.NewProperty == "" && len(p.Details.ArgsMap) == 0 {
			return fmt.Errorf("replaceAPI requires details.newProperty or details.argsMap")
		}
	}
	return nil
}
