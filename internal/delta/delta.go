// Package delta compares the files found locally against the last published manifest.
package delta

import (
	"log/slog"
	"sort"

	"github.com/openmined/sitesync/internal/manifest"
	"github.com/openmined/sitesync/internal/site"
)

// Compute partitions current ∪ previous paths into added, modified, removed and unchanged.
//
// A path is unchanged when its content hash equals the published hash. Size or content type
// differences under an equal hash do not make a path modified; they are listed in Drifted.
func Compute(current map[string]*site.Fingerprint, previous *manifest.Manifest) *Result {
	res := NewResult()

	for path, fp := range current {
		published, ok := previous.Get(path)
		switch {
		case !ok:
			res.Added = append(res.Added, path)
		case published.BlobHash != fp.ContentHash:
			res.Modified = append(res.Modified, path)
		default:
			res.Unchanged = append(res.Unchanged, path)
			if published.Size != fp.Size || published.ContentType != fp.ContentType {
				res.Drifted = append(res.Drifted, path)
			}
		}
	}

	if previous != nil {
		for path := range previous.Resources {
			if _, ok := current[path]; !ok {
				res.Removed = append(res.Removed, path)
			}
		}
	}

	sort.Strings(res.Added)
	sort.Strings(res.Modified)
	sort.Strings(res.Removed)
	sort.Strings(res.Unchanged)
	sort.Strings(res.Drifted)

	if len(res.Drifted) > 0 {
		slog.Debug("delta metadata drift under equal hash", "paths", res.Drifted)
	}

	return res
}
