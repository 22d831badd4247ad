// Package transform implements the deterministic transform engine:
// patch application over language packs, invariant verification, and
// mutation test orchestration.
package transform

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidSelector is returned when a selector does not match the
// restricted grammar of its operation.
var ErrInvalidSelector = errors.New("invalid selector")

var (
	renameSelectorRE     = regexp.MustCompile(`^Identifier\[name='([^']+)'\]$`)
	replaceAPISelectorRE = regexp.MustCompile(`^CallExpression\[callee\.object\.name='([^']+)'\]\[callee\.property\.name='([^']+)'\]$`)
)

// parseRenameSelector extracts the identifier name from a selector of
// the form Identifier[name='X'].
func parseRenameSelector(sel string) (string, error) {
	m := renameSelectorRE.FindStringSubmatch(sel)
	if m == nil {
		return "", fmt.Errorf("%w: renameSymbol expects Identifier[name='X'], got %q", ErrInvalidSelector, sel)
	}
	return m[1], nil
}

// parseReplaceAPISelector extracts the object and property names from a
// selector of the form
// CallExpression[callee.object.name='O'][callee.property.name='P'].
func parseReplaceAPISelector(sel string) (object, property string, err error) {
	m := replaceAPISelectorRE.FindStringSubmatch(sel)
	if m == nil {
		return "", "", fmt.Errorf("%w: replaceAPI expects CallExpression[callee.object.name='O'][callee.property.name='P'], got %q", ErrInvalidSelector, sel)
	}
	return m[1], m[2], nil
}
