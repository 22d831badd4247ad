// Package langpack provides per-language AST operations on top of
// tree-sitter grammars. Each pack owns its parser; the transform engine
// dispatches typed queries and never touches the trees directly.
package langpack

import (
	"context"
	"errors"

	"codegov/internal/types"
)

// ErrUnsupported is returned by packs that can parse a language but
// cannot execute a requested operation on it.
var ErrUnsupported = errors.New("operation not supported for language")

// RenameQuery renames every occurrence of an identifier.
type RenameQuery struct {
	Name    string
	NewName string
}

// ReplaceAPIQuery rewrites call sites of the form object.property(...).
// NewProperty replaces the member name; ArgsMap renames keys of
// object-literal arguments at the matched call sites.
type ReplaceAPIQuery struct {
	Object      string
	Property    string
	NewProperty string
	ArgsMap     map[string]string
}

// Pack is one language's AST operation surface.
type Pack interface {
	Language() types.Language
	Extensions() []string

	// Check parses the content and fails on syntax errors.
	Check(ctx context.Context, content []byte) error

	// Rename applies a rename query and returns the modified content
	// and the number of occurrences changed.
	Rename(ctx context.Context, content []byte, q RenameQuery) ([]byte, int, error)

	// ReplaceAPI applies an API replacement query and returns the
	// modified content and the number of call sites changed.
	ReplaceAPI(ctx context.Context, content []byte, q ReplaceAPIQuery) ([]byte, int, error)

	// FindSymbol reports whether an identifier with the given name
	// occurs anywhere in the content.
	FindSymbol(ctx context.Context, content []byte, name string) (bool, error)
}
