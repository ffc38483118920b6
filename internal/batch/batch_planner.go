package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/openmined/sitesync/internal/delta"
	"github.com/openmined/sitesync/internal/site"
)

// Plan splits paths into contiguous batches of at most cfg.MaxOps, preserving order.
// Batch indices start at 0.
func Plan(kind site.OpKind, paths []string, resources map[string]*site.Resource, cfg Config) ([]*Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	batches := make([]*Batch, 0, (len(paths)+cfg.MaxOps-1)/cfg.MaxOps)
	for start := 0; start < len(paths); start += cfg.MaxOps {
		end := min(start+cfg.MaxOps, len(paths))
		chunk := make([]string, end-start)
		copy(chunk, paths[start:end])

		b := &Batch{
			Index:  len(batches),
			Kind:   kind,
			Paths:  chunk,
			Budget: cfg.Budget.For(len(chunk)),
		}

		if kind.CarriesResources() {
			b.Resources = make([]*site.Resource, len(chunk))
			for i, path := range chunk {
				res, ok := resources[path]
				if !ok || res == nil {
					return nil, fmt.Errorf("%w for %s %s", ErrMissingResource, kind, path)
				}
				c := res.Clone()
				c.Path = path
				b.Resources[i] = c
			}
		}

		batches = append(batches, b)
	}

	return batches, nil
}

// PlanDelta plans every change in res: adds first, then updates, then deletes.
// The three path sets are disjoint, so no two batches touch the same path.
func PlanDelta(res *delta.Result, resources map[string]*site.Resource, cfg Config) ([]*Batch, error) {
	var all []*Batch
	for _, step := range []struct {
		kind  site.OpKind
		paths []string
	}{
		{site.OpAdd, res.Added},
		{site.OpUpdate, res.Modified},
		{site.OpDelete, res.Removed},
	} {
		batches, err := Plan(step.kind, step.paths, resources, cfg)
		if err != nil {
			return nil, err
		}
		all = append(all, batches...)
	}

	for i, b := range all {
		b.Index = i
	}
	return all, nil
}

// Overlaps reports whether a and b touch a common path.
func Overlaps(a, b *Batch) bool {
	seen := make(map[string]struct{}, len(a.Paths))
	for _, p := range a.Paths {
		seen[p] = struct{}{}
	}
	for _, p := range b.Paths {
		if _, ok := seen[p]; ok {
			return true
		}
	}
	return false
}

// Ordered checks that batches are indexed 0..n-1 in slice order. Since submission follows
// the index, any two batches that share a path keep their relative order.
func Ordered(batches []*Batch) error {
	for i, b := range batches {
		if b.Index != i {
			return fmt.Errorf("%w: position %d holds batch %d", ErrOutOfOrder, i, b.Index)
		}
	}
	return nil
}

// TotalOps returns the number of operations across batches
func TotalOps(batches []*Batch) int {
	n := 0
	for _, b := range batches {
		n += b.Len()
	}
	return n
}

// TotalBudget returns the summed budget across batches, saturating at math.MaxUint64.
func TotalBudget(batches []*Batch) uint64 {
	var n uint64
	for _, b := range batches {
		sum, carry := bits.Add64(n, b.Budget, 0)
		if carry != 0 {
			return math.MaxUint64
		}
		n = sum
	}
	return n
}

// PlanID returns a stable digest of a plan. Two runs that plan the same mutations get the same id.
func PlanID(batches []*Batch) string {
	h := sha256.New()
	for _, b := range batches {
		fmt.Fprintf(h, "%d|%s|%d\n", b.Index, b.Kind, len(b.Paths))
		for i, p := range b.Paths {
			io.WriteString(h, p)
			if i < len(b.Resources) {
				io.WriteString(h, "|"+b.Resources[i].BlobHash)
			}
			io.WriteString(h, "\n")
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
