// Package ledger talks to the append-only ledger that records which resources a site serves.
package ledger

import (
	"context"
	"time"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/site"
)

// Ledger creates sites and applies mutation batches to them. Submit must be atomic: a
// batch is either fully applied or not applied at all.
type Ledger interface {
	CreateSite(ctx context.Context, name string) (string, error)
	Submit(ctx context.Context, siteID string, b *batch.Batch) error
}

// ForSite binds a ledger to one site so it can drive batch.Execute.
func ForSite(l Ledger, siteID string) batch.Submitter {
	return batch.SubmitterFunc(func(ctx context.Context, b *batch.Batch) error {
		return l.Submit(ctx, siteID, b)
	})
}

type CreateSiteRequest struct {
	Name string `json:"name"`
}

type CreateSiteResponse struct {
	SiteID string `json:"site_id"`
}

// SubmitRequest is the wire form of one batch.
type SubmitRequest struct {
	Index     int              `json:"index"`
	Kind      site.OpKind      `json:"kind"`
	Paths     []string         `json:"paths"`
	Resources []*site.Resource `json:"resources,omitempty"`
	Budget    uint64           `json:"budget"`
}

func NewSubmitRequest(b *batch.Batch) *SubmitRequest {
	return &SubmitRequest{
		Index:     b.Index,
		Kind:      b.Kind,
		Paths:     b.Paths,
		Resources: b.Resources,
		Budget:    b.Budget,
	}
}

// Batch converts the request back to a batch. Resource paths are restored from Paths.
func (r *SubmitRequest) Batch() *batch.Batch {
	b := &batch.Batch{
		Index:  r.Index,
		Kind:   r.Kind,
		Paths:  r.Paths,
		Budget: r.Budget,
	}
	if len(r.Resources) > 0 {
		b.Resources = make([]*site.Resource, len(r.Resources))
		for i, res := range r.Resources {
			c := res.Clone()
			if c != nil && i < len(r.Paths) {
				c.Path = r.Paths[i]
			}
			b.Resources[i] = c
		}
	}
	return b
}

type SubmitResponse struct {
	Applied  int    `json:"applied"`
	Revision uint64 `json:"revision"`
}

// SiteState is a snapshot of what a site serves.
type SiteState struct {
	SiteID    string                    `json:"site_id"`
	Name      string                    `json:"name"`
	Revision  uint64                    `json:"revision"`
	CreatedAt time.Time                 `json:"created_at"`
	Resources map[string]*site.Resource `json:"resources"`
}
