package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openmined/sitesync/internal/pathguard"
)

var (
	ErrNoRoot         = errors.New("publish: site root is required")
	ErrNoDomain       = errors.New("publish: domain is required")
	ErrBadConcurrency = errors.New("publish: upload concurrency must be positive")
	ErrBadRetention   = errors.New("publish: retention must be positive")
	ErrNoLedger       = errors.New("publish: ledger is required")
	ErrNoBlobStore    = errors.New("publish: blob store is required")
)

// RuleNonCanonical rejects a file name that only matches its site path after normalization.
const RuleNonCanonical pathguard.RuleName = "non_canonical"

// PathRejection is one local file whose site path failed validation.
type PathRejection struct {
	Path string
	Rule pathguard.RuleName
	Err  error
}

// PathRejectedError lists every rejected path. Nothing is uploaded or submitted when it is returned.
type PathRejectedError struct {
	Rejections []*PathRejection
}

func (e *PathRejectedError) Error() string {
	if len(e.Rejections) == 1 {
		r := e.Rejections[0]
		return fmt.Sprintf("rejected path %q: %s", r.Path, r.Rule)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d rejected paths:", len(e.Rejections))
	for _, r := range e.Rejections {
		fmt.Fprintf(&sb, " %q (%s)", r.Path, r.Rule)
	}
	return sb.String()
}

// IntegrityError means a file changed between scanning and uploading.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s changed during deploy: expected sha256 %s, got %s", e.Path, e.Expected, e.Actual)
}
