package pathguard

import (
	"errors"
	"fmt"
)

var (
	ErrNoFixpoint  = errors.New("percent-decoding did not converge")
	ErrInvalidUTF8 = errors.New("decoded path is not valid utf-8")
)

// ValidationError reports the rule a path failed.
type ValidationError struct {
	Path       string
	Normalized string
	Rule       RuleName
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid path %q: %s (%s)", e.Path, e.Reason, e.Rule)
}

// DecodeError reports malformed or non-terminating percent-encoding.
type DecodeError struct {
	Path string
	Pass int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Pass > 0 {
		return fmt.Sprintf("invalid path %q: decode pass %d: %v (%s)", e.Path, e.Pass, e.Err, RuleDecode)
	}
	return fmt.Sprintf("invalid path %q: %v (%s)", e.Path, e.Err, RuleDecode)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FailedRule returns the rule that rejected err, or "" if err is not a validation failure.
func FailedRule(err error) RuleName {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Rule
	}
	var derr *DecodeError
	if errors.As(err, &derr) {
		return RuleDecode
	}
	return ""
}
