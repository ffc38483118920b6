package publish

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/delta"
)

// Report describes the outcome of a deploy, including a failed one.
type Report struct {
	RunID   string `json:"run_id" yaml:"run_id"`
	SiteID  string `json:"site_id,omitempty" yaml:"site_id,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Version int    `json:"version,omitempty" yaml:"version,omitempty"`
	DryRun  bool   `json:"dry_run" yaml:"dry_run"`

	Delta *delta.Result `json:"delta" yaml:"delta"`

	UploadedFiles int   `json:"uploaded_files" yaml:"uploaded_files"`
	UploadedBytes int64 `json:"uploaded_bytes" yaml:"uploaded_bytes"`

	Batches      int    `json:"batches" yaml:"batches"`
	Submitted    int    `json:"submitted" yaml:"submitted"`
	Resumed      int    `json:"resumed" yaml:"resumed"`
	OpsCommitted int    `json:"ops_committed" yaml:"ops_committed"`
	Budget       uint64 `json:"budget" yaml:"budget"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

func (r *Report) applyExec(exec *batch.Report) {
	if exec == nil {
		return
	}
	r.Submitted = exec.Submitted
	r.Resumed = exec.Skipped
	r.OpsCommitted = exec.OpsCommitted
}

// Summary returns human-readable report lines.
func (r *Report) Summary() []string {
	lines := make([]string, 0, 6)
	if r.Delta != nil {
		added, modified, removed, unchanged := r.Delta.Counts()
		lines = append(lines, fmt.Sprintf("changes: %d added, %d modified, %d removed, %d unchanged", added, modified, removed, unchanged))
	}
	lines = append(lines, fmt.Sprintf("uploaded: %d files (%s)", r.UploadedFiles, humanize.Bytes(uint64(r.UploadedBytes))))
	lines = append(lines, fmt.Sprintf("batches: %d planned, %d submitted, %d resumed, %s ops, budget %s",
		r.Batches, r.Submitted, r.Resumed, humanize.Comma(int64(r.OpsCommitted)), humanize.Comma(int64(r.Budget))))
	if r.Version > 0 {
		lines = append(lines, fmt.Sprintf("manifest: version %d", r.Version))
	}
	if r.Address != "" {
		lines = append(lines, "address: https://"+r.Address)
	}
	lines = append(lines, "took: "+r.Duration.Round(time.Millisecond).String())
	return lines
}
