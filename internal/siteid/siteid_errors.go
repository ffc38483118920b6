package siteid

import "fmt"

// RangeError reports a value outside [0, 2^256-1] or outside the codec alphabet.
type RangeError struct {
	Input  string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("siteid: %q: %s", e.Input, e.Reason)
}
