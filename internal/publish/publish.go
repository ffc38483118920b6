// Package publish deploys a local directory as a site: it scans, reconciles against the
// last manifest, uploads changed files, submits ledger batches and saves the new manifest.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/blob"
	"github.com/openmined/sitesync/internal/delta"
	"github.com/openmined/sitesync/internal/journal"
	"github.com/openmined/sitesync/internal/ledger"
	"github.com/openmined/sitesync/internal/manifest"
	"github.com/openmined/sitesync/internal/scan"
	"github.com/openmined/sitesync/internal/site"
	"github.com/openmined/sitesync/internal/siteid"
	"github.com/openmined/sitesync/internal/utils"
)

type fileOpener interface {
	Open(sitePath string) (*os.File, error)
}

// Deployer publishes one site root. It keeps one scanner, so repeated Diff and Deploy
// calls reuse file hashes.
type Deployer struct {
	opts    *Options
	blobs   blob.Store
	ledger  ledger.Ledger
	now     func() time.Time
	scanner *scan.Scanner
}

func New(opts *Options, blobs blob.Store, l ledger.Ledger) (*Deployer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !opts.DryRun {
		if blobs == nil {
			return nil, ErrNoBlobStore
		}
		if l == nil {
			return nil, ErrNoLedger
		}
	}

	return &Deployer{
		opts:   opts,
		blobs:  blobs,
		ledger: l,
		now:    time.Now,
	}, nil
}

// Preview is the result of Diff.
type Preview struct {
	Previous *manifest.Manifest `json:"-" yaml:"-"`
	Delta    *delta.Result      `json:"delta" yaml:"delta"`
	Batches  []*batch.Batch     `json:"batches" yaml:"batches"`
	Budget   uint64             `json:"budget" yaml:"budget"`
}

type scanned struct {
	scanner *scan.Scanner
	current map[string]*site.Fingerprint
	delta   *delta.Result
}

// Diff reports what a deploy would change without uploading, submitting or locking.
func (d *Deployer) Diff(ctx context.Context) (*Preview, error) {
	prev, err := manifest.NewStore(d.opts.ManifestPath()).Load()
	if err != nil {
		return nil, err
	}

	jrnl, err := d.existingJournal()
	if err != nil {
		return nil, err
	}
	if jrnl != nil {
		defer jrnl.Close()
	}

	s, err := d.scan(ctx, prev, jrnl, false)
	if err != nil {
		return nil, err
	}

	batches, err := batch.PlanDelta(s.delta, pendingResources(s.current), d.opts.Batch)
	if err != nil {
		return nil, err
	}

	return &Preview{
		Previous: prev,
		Delta:    s.delta,
		Batches:  batches,
		Budget:   batch.TotalBudget(batches),
	}, nil
}

// Deploy publishes the site. On a submission failure the returned report is non-nil and
// the error is a *batch.SubmissionError; running Deploy again resumes after the last
// committed batch as long as the local files have not changed.
func (d *Deployer) Deploy(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New().String(), DryRun: d.opts.DryRun}
	defer func() {
		report.Duration = time.Since(start)
	}()

	store := manifest.NewStore(d.opts.ManifestPath())
	if err := store.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Unlock(); err != nil {
			slog.Warn("manifest unlock", "error", err)
		}
	}()

	prev, err := store.Load()
	if err != nil {
		return nil, err
	}

	var jrnl *journal.Journal
	if d.opts.DryRun {
		jrnl, err = d.existingJournal()
	} else {
		jrnl = journal.New(d.opts.JournalPath(), report.RunID)
		err = jrnl.Open()
	}
	if err != nil {
		return nil, err
	}
	if jrnl != nil {
		defer jrnl.Close()
	}

	s, err := d.scan(ctx, prev, jrnl, !d.opts.DryRun)
	if err != nil {
		return nil, err
	}
	report.Delta = s.delta

	added, modified, removed, unchanged := s.delta.Counts()
	slog.Info("deploy", "run", report.RunID, "added", added, "modified", modified, "removed", removed, "unchanged", unchanged, "dry_run", d.opts.DryRun)

	if d.opts.DryRun {
		return d.dryRun(ctx, s, report)
	}

	siteID, err := d.resolveSite(ctx, jrnl, prev)
	if err != nil {
		return nil, err
	}
	report.SiteID = siteID

	uploaded, stats, err := d.upload(ctx, d.blobs, s.scanner, changedFingerprints(s))
	if err != nil {
		return report, err
	}
	report.UploadedFiles, report.UploadedBytes = stats.files, stats.bytes

	batches, err := batch.PlanDelta(s.delta, uploaded, d.opts.Batch)
	if err != nil {
		return report, err
	}
	report.Batches = len(batches)
	report.Budget = batch.TotalBudget(batches)

	planID := checkpointID(siteID, batches)
	if n, err := jrnl.Prune(ctx, planID); err != nil {
		return report, err
	} else if n > 0 {
		slog.Info("deploy discarded stale progress", "batches", n)
	}

	exec, err := batch.Execute(ctx, batches, ledger.ForSite(d.ledger, siteID),
		batch.WithCheckpoint(jrnl, planID),
		batch.WithCommitHook(func(b *batch.Batch) {
			slog.Info("batch committed", "index", b.Index, "kind", b.Kind, "ops", b.Len())
		}),
	)
	report.applyExec(exec)
	if err != nil {
		return report, err
	}

	next := manifest.Next(prev, siteID, mergeResources(prev, s.delta, uploaded), d.now())
	if err := store.Save(next); err != nil {
		return report, fmt.Errorf("save manifest: %w", err)
	}
	report.Version = next.Version

	if err := jrnl.Clear(ctx, planID); err != nil {
		slog.Warn("journal clear", "error", err)
	}
	if prev == nil {
		if err := jrnl.ClearPendingSite(ctx, d.opts.siteName()); err != nil {
			slog.Warn("journal clear pending site", "error", err)
		}
	}

	report.Address, err = siteid.Address(siteID, d.opts.Domain)
	if err != nil {
		return report, err
	}

	slog.Info("deploy complete", "site", siteID, "version", next.Version, "batches", len(batches), "address", report.Address)
	return report, nil
}

// scan fingerprints the site. Hashes remembered by jrnl are reused and, with remember set,
// replaced by the new ones. jrnl may be nil.
func (d *Deployer) scan(ctx context.Context, prev *manifest.Manifest, jrnl *journal.Journal, remember bool) (*scanned, error) {
	if d.scanner == nil {
		scanner, err := scan.NewScanner(d.opts.Root, scan.WithExclude(d.opts.stateExcludes()...))
		if err != nil {
			return nil, err
		}
		d.scanner = scanner
	}
	scanner := d.scanner

	if jrnl != nil {
		records, err := jrnl.FileHashes(ctx)
		if err != nil {
			return nil, err
		}
		scanner.Seed(records)
	}

	current, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	if jrnl != nil && remember {
		if err := jrnl.SaveFileHashes(ctx, scanner.Hashes()); err != nil {
			slog.Warn("journal save file hashes", "error", err)
		}
	}
	if err := validatePaths(current); err != nil {
		return nil, err
	}

	res := delta.Compute(current, prev)
	if err := res.Validate(current, prev); err != nil {
		return nil, err
	}
	for _, p := range res.Drifted {
		slog.Warn("metadata drift without content change", "path", p)
	}

	return &scanned{scanner: scanner, current: current, delta: res}, nil
}

// existingJournal opens the journal for reading hashes only if an earlier deploy created it.
func (d *Deployer) existingJournal() (*journal.Journal, error) {
	if !utils.FileExists(d.opts.JournalPath()) {
		return nil, nil
	}
	jrnl := journal.New(d.opts.JournalPath(), "")
	if err := jrnl.Open(); err != nil {
		return nil, err
	}
	return jrnl, nil
}

func (d *Deployer) dryRun(ctx context.Context, s *scanned, report *Report) (*Report, error) {
	uploaded, stats, err := d.upload(ctx, blob.NewMemStore(), s.scanner, changedFingerprints(s))
	if err != nil {
		return report, err
	}
	report.UploadedFiles, report.UploadedBytes = stats.files, stats.bytes

	batches, err := batch.PlanDelta(s.delta, uploaded, d.opts.Batch)
	if err != nil {
		return report, err
	}
	report.Batches = len(batches)
	report.Budget = batch.TotalBudget(batches)
	return report, nil
}

// resolveSite returns the site of the previous manifest, or the site created by an earlier
// unfinished first deploy, or a new site.
func (d *Deployer) resolveSite(ctx context.Context, jrnl *journal.Journal, prev *manifest.Manifest) (string, error) {
	if prev != nil {
		return prev.SiteID, nil
	}

	name := d.opts.siteName()
	pending, err := jrnl.PendingSite(ctx, name)
	if err != nil {
		return "", err
	}
	if pending != "" {
		slog.Info("deploy reusing pending site", "site", pending)
		return pending, nil
	}

	siteID, err := d.ledger.CreateSite(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create site: %w", err)
	}
	if _, err := siteid.Canonical(siteID); err != nil {
		return "", fmt.Errorf("ledger returned invalid site id: %w", err)
	}
	if err := jrnl.SetPendingSite(ctx, name, siteID); err != nil {
		return "", err
	}

	slog.Info("site created", "site", siteID, "name", name)
	return siteID, nil
}

func changedFingerprints(s *scanned) []*site.Fingerprint {
	fps := make([]*site.Fingerprint, 0, len(s.delta.Added)+len(s.delta.Modified))
	for _, p := range s.delta.Added {
		fps = append(fps, s.current[p])
	}
	for _, p := range s.delta.Modified {
		fps = append(fps, s.current[p])
	}
	return fps
}

// mergeResources keeps the previous record of unchanged paths and takes uploads for the rest.
func mergeResources(prev *manifest.Manifest, res *delta.Result, uploaded map[string]*site.Resource) map[string]*site.Resource {
	out := make(map[string]*site.Resource, len(res.Unchanged)+len(uploaded))
	for _, p := range res.Unchanged {
		if r, ok := prev.Get(p); ok {
			out[p] = r
		}
	}
	for p, r := range uploaded {
		out[p] = r
	}
	return out
}

// pendingResources describes files that have not been uploaded yet.
func pendingResources(current map[string]*site.Fingerprint) map[string]*site.Resource {
	out := make(map[string]*site.Resource, len(current))
	for p, fp := range current {
		out[p] = &site.Resource{
			Path:        p,
			BlobID:      "pending:" + fp.ContentHash,
			BlobHash:    fp.ContentHash,
			ContentType: fp.ContentType,
			Size:        fp.Size,
		}
	}
	return out
}

// checkpointID ties journal progress to both the site and the exact plan.
func checkpointID(siteID string, batches []*batch.Batch) string {
	h := sha256.New()
	h.Write([]byte(siteID))
	h.Write([]byte{0})
	h.Write([]byte(batch.PlanID(batches)))
	return hex.EncodeToString(h.Sum(nil))
}
