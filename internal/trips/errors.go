package trips

import "fmt"

// ValidationError reports a trip request that cannot be satisfied as given
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
