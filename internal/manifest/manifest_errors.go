package manifest

import (
	"errors"
	"fmt"
)

var (
	ErrManifestLocked = errors.New("manifest locked by another process")
)

// CorruptError means a manifest is missing a required field or holds an invalid value.
// It is fatal: no mutation may be planned from a corrupt manifest.
type CorruptError struct {
	File   string
	Field  string
	Reason string
}

func (e *CorruptError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("manifest %s corrupt: %s: %s", e.File, e.Field, e.Reason)
	}
	return fmt.Sprintf("manifest corrupt: %s: %s", e.Field, e.Reason)
}
