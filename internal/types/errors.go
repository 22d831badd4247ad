package types

import "fmt"

// ValidationError reports a change spec or request field that failed
// schema validation. It is non-retryable and maps to HTTP 400 at the
// transport edge.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
