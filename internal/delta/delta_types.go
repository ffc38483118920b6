package delta

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/sitesync/internal/manifest"
	"github.com/openmined/sitesync/internal/site"
)

// Result holds the sorted path sets produced by Compute.
type Result struct {
	Added     []string `json:"added" yaml:"added"`
	Modified  []string `json:"modified" yaml:"modified"`
	Removed   []string `json:"removed" yaml:"removed"`
	Unchanged []string `json:"unchanged" yaml:"unchanged"`

	// Drifted lists unchanged paths whose size or content type differs from the manifest.
	// It is informational and overlaps Unchanged.
	Drifted []string `json:"drifted,omitempty" yaml:"drifted,omitempty"`
}

func NewResult() *Result {
	return &Result{
		Added:     []string{},
		Modified:  []string{},
		Removed:   []string{},
		Unchanged: []string{},
	}
}

// HasChanges returns true if anything must be added, updated or removed.
func (r *Result) HasChanges() bool {
	return len(r.Added) > 0 || len(r.Modified) > 0 || len(r.Removed) > 0
}

// All returns the union of the four partitions.
func (r *Result) All() mapset.Set[string] {
	all := mapset.NewThreadUnsafeSet[string]()
	for _, part := range [][]string{r.Added, r.Modified, r.Removed, r.Unchanged} {
		all.Append(part...)
	}
	return all
}

// Validate checks that the four sets are disjoint and cover exactly
// keys(current) ∪ keys(previous.Resources).
func (r *Result) Validate(current map[string]*site.Fingerprint, previous *manifest.Manifest) error {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, part := range [][]string{r.Added, r.Modified, r.Removed, r.Unchanged} {
		for _, path := range part {
			if !seen.Add(path) {
				return fmt.Errorf("delta: path %q appears in more than one set", path)
			}
		}
	}

	want := mapset.NewThreadUnsafeSetWithSize[string](len(current))
	for path := range current {
		want.Add(path)
	}
	if previous != nil {
		for path := range previous.Resources {
			want.Add(path)
		}
	}

	if !seen.Equal(want) {
		return fmt.Errorf("delta: partition mismatch: missing %v, extra %v",
			want.Difference(seen).ToSlice(), seen.Difference(want).ToSlice())
	}
	return nil
}

// Counts returns the size of each set.
func (r *Result) Counts() (added, modified, removed, unchanged int) {
	return len(r.Added), len(r.Modified), len(r.Removed), len(r.Unchanged)
}
