package batch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig   = errors.New("invalid batch config")
	ErrMissingResource = errors.New("missing resource")
	ErrInvalidKind     = errors.New("invalid operation kind")
	ErrOutOfOrder      = errors.New("batches out of order")
	ErrCheckpoint      = errors.New("checkpoint failed")
)

// SubmissionError is returned by Execute when it stops. BatchIndex is the first batch that is
// not known to be committed and Committed counts the operations committed before it, so a
// caller can resume from BatchIndex.
type SubmissionError struct {
	BatchIndex int
	Committed  int
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("batch %d failed after %d committed ops: %v", e.BatchIndex, e.Committed, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
