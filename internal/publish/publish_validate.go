package publish

import (
	"sort"

	"github.com/openmined/sitesync/internal/manifest"
	"github.com/openmined/sitesync/internal/pathguard"
	"github.com/openmined/sitesync/internal/site"
)

// validatePaths checks every scanned path and returns all failures at once.
func validatePaths(current map[string]*site.Fingerprint) error {
	var rejections []*PathRejection
	for p := range current {
		err := manifest.ValidatePath(p)
		if err == nil {
			continue
		}
		rule := pathguard.FailedRule(err)
		if rule == "" {
			rule = RuleNonCanonical
		}
		rejections = append(rejections, &PathRejection{Path: p, Rule: rule, Err: err})
	}

	if len(rejections) == 0 {
		return nil
	}
	sort.Slice(rejections, func(i, j int) bool {
		return rejections[i].Path < rejections[j].Path
	})
	return &PathRejectedError{Rejections: rejections}
}
