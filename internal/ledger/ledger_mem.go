package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/site"
)

// Fault decides whether a submission should fail before it is applied. A nil return lets
// the submission through.
type Fault func(siteID string, b *batch.Batch) error

type memSite struct {
	name      string
	createdAt time.Time
	revision  uint64
	resources map[string]*site.Resource
	applied   []*batch.Batch
}

// MemLedger keeps sites in memory. Batches are validated in full and then applied at once.
//
// Add of a path that already holds the same blob and Delete of a missing path are no-ops,
// so a batch replayed after a lost response does not fail.
type MemLedger struct {
	mu     sync.Mutex
	sites  map[string]*memSite
	maxOps int
	budget *batch.BudgetConfig
	fault  Fault
}

var _ Ledger = (*MemLedger)(nil)

type MemOption func(*MemLedger)

// WithMaxOps rejects batches larger than n with E_BATCH_TOO_LARGE.
func WithMaxOps(n int) MemOption {
	return func(m *MemLedger) {
		m.maxOps = n
	}
}

// WithPricing rejects batches whose budget is below cfg.For(len(batch)).
func WithPricing(cfg batch.BudgetConfig) MemOption {
	return func(m *MemLedger) {
		m.budget = &cfg
	}
}

func WithFault(f Fault) MemOption {
	return func(m *MemLedger) {
		m.fault = f
	}
}

func NewMemLedger(opts ...MemOption) *MemLedger {
	m := &MemLedger{sites: make(map[string]*memSite)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFault replaces the injected fault. Pass nil to clear it.
func (m *MemLedger) SetFault(f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

func (m *MemLedger) CreateSite(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generate site id: %w", err)
	}
	siteID := "0x" + hex.EncodeToString(raw[:])

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sites[siteID] = &memSite{
		name:      name,
		createdAt: time.Now().UTC(),
		resources: make(map[string]*site.Resource),
	}
	slog.Debug("ledger site created", "site", siteID, "name", name)
	return siteID, nil
}

func (m *MemLedger) Submit(ctx context.Context, siteID string, b *batch.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[strings.ToLower(siteID)]
	if !ok {
		return NewAPIError(CodeSiteNotFound, fmt.Sprintf("site %s not found", siteID))
	}
	if m.fault != nil {
		if err := m.fault(siteID, b); err != nil {
			return err
		}
	}
	if err := m.check(b); err != nil {
		return err
	}

	next := maps.Clone(s.resources)
	for i, p := range b.Paths {
		cur, exists := next[p]
		switch b.Kind {
		case site.OpAdd:
			res := b.Resources[i]
			if exists && cur.BlobHash != res.BlobHash {
				return NewAPIError(CodePathConflict, fmt.Sprintf("add %s: path already exists", p))
			}
			next[p] = withPath(res, p)
		case site.OpUpdate:
			if !exists {
				return NewAPIError(CodePathConflict, fmt.Sprintf("update %s: path does not exist", p))
			}
			next[p] = withPath(b.Resources[i], p)
		case site.OpDelete:
			delete(next, p)
		}
	}

	s.resources = next
	s.revision++
	s.applied = append(s.applied, cloneBatch(b))
	return nil
}

func (m *MemLedger) check(b *batch.Batch) error {
	if !b.Kind.Valid() {
		return NewAPIError(CodeInvalidKind, fmt.Sprintf("invalid kind %q", b.Kind))
	}
	if b.Len() == 0 {
		return NewAPIError(CodeInvalidRequest, "empty batch")
	}
	if m.maxOps > 0 && b.Len() > m.maxOps {
		return NewAPIError(CodeBatchTooLarge, fmt.Sprintf("%d operations, limit %d", b.Len(), m.maxOps))
	}
	if m.budget != nil {
		if cost := m.budget.For(b.Len()); b.Budget < cost {
			return NewAPIError(CodeBudgetExceeded, fmt.Sprintf("cost %d exceeds budget %d", cost, b.Budget))
		}
	}
	if b.Kind.CarriesResources() && len(b.Resources) != len(b.Paths) {
		return NewAPIError(CodeInvalidRequest, fmt.Sprintf("%d paths but %d resources", len(b.Paths), len(b.Resources)))
	}

	seen := make(map[string]struct{}, len(b.Paths))
	for i, p := range b.Paths {
		if !strings.HasPrefix(p, "/") {
			return NewAPIError(CodeInvalidRequest, fmt.Sprintf("path %q is not absolute", p))
		}
		if _, dup := seen[p]; dup {
			return NewAPIError(CodeInvalidRequest, fmt.Sprintf("duplicate path %s", p))
		}
		seen[p] = struct{}{}
		if b.Kind.CarriesResources() {
			res := b.Resources[i]
			if res == nil || res.BlobID == "" || res.BlobHash == "" {
				return NewAPIError(CodeInvalidRequest, fmt.Sprintf("incomplete resource for %s", p))
			}
		}
	}
	return nil
}

// Site returns a snapshot of a site.
func (m *MemLedger) Site(_ context.Context, siteID string) (*SiteState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[strings.ToLower(siteID)]
	if !ok {
		return nil, NewAPIError(CodeSiteNotFound, fmt.Sprintf("site %s not found", siteID))
	}

	resources := make(map[string]*site.Resource, len(s.resources))
	for p, r := range s.resources {
		resources[p] = r.Clone()
	}
	return &SiteState{
		SiteID:    siteID,
		Name:      s.name,
		Revision:  s.revision,
		CreatedAt: s.createdAt,
		Resources: resources,
	}, nil
}

// Applied returns every batch applied to a site, in order.
func (m *MemLedger) Applied(siteID string) []*batch.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[strings.ToLower(siteID)]
	if !ok {
		return nil
	}
	out := make([]*batch.Batch, len(s.applied))
	for i, b := range s.applied {
		out[i] = cloneBatch(b)
	}
	return out
}

func withPath(r *site.Resource, p string) *site.Resource {
	c := r.Clone()
	c.Path = p
	return c
}

func cloneBatch(b *batch.Batch) *batch.Batch {
	c := *b
	c.Paths = append([]string(nil), b.Paths...)
	if b.Resources != nil {
		c.Resources = make([]*site.Resource, len(b.Resources))
		for i, r := range b.Resources {
			c.Resources[i] = r.Clone()
		}
	}
	return &c
}
