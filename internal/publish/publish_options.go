package publish

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/journal"
	"github.com/openmined/sitesync/internal/manifest"
)

const StateDirName = ".sitesync"

// Options configures one deploy.
type Options struct {
	Root              string
	StateDir          string // defaults to <Root>/.sitesync
	SiteName          string // defaults to the base name of Root
	Domain            string
	Retention         time.Duration
	UploadConcurrency int
	Batch             batch.Config
	DryRun            bool
}

func (o *Options) Validate() error {
	if o.Root == "" {
		return ErrNoRoot
	}
	if o.Domain == "" {
		return ErrNoDomain
	}
	if o.UploadConcurrency <= 0 {
		return ErrBadConcurrency
	}
	if o.Retention <= 0 {
		return ErrBadRetention
	}
	return o.Batch.Validate()
}

func (o *Options) stateDir() string {
	if o.StateDir != "" {
		return o.StateDir
	}
	return filepath.Join(o.Root, StateDirName)
}

func (o *Options) siteName() string {
	if o.SiteName != "" {
		return o.SiteName
	}
	return filepath.Base(filepath.Clean(o.Root))
}

// ManifestPath is where the manifest of this site is kept
func (o *Options) ManifestPath() string {
	return filepath.Join(o.stateDir(), manifest.DefaultFileName)
}

func (o *Options) JournalPath() string {
	return filepath.Join(o.stateDir(), journal.DefaultFileName)
}

// stateExcludes returns the root-relative paths of the state files when they live inside
// the site root, so a scan never publishes them.
func (o *Options) stateExcludes() []string {
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return nil
	}
	dir, err := filepath.Abs(o.stateDir())
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if rel != "." {
		return []string{filepath.ToSlash(rel)}
	}

	return []string{
		manifest.DefaultFileName,
		manifest.DefaultFileName + manifest.LockSuffix,
		journal.DefaultFileName,
		journal.DefaultFileName + "-journal",
		journal.DefaultFileName + "-wal",
		journal.DefaultFileName + "-shm",
	}
}
