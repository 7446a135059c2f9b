package reconcile

import "fmt"

// ValidationError reports a raw record that cannot be normalized into the
// canonical schema. A record with no name or no location can neither be
// matched nor displayed, so it is rejected and surfaced to the caller
// rather than silently dropped.
type ValidationError struct {
	Source   string
	SourceID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s/%s: %s", e.Source, e.SourceID, e.Reason)
}
