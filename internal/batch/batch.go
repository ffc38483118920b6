// Package batch turns reconciled path sets into ordered, bounded ledger mutation batches
// and submits them one at a time.
package batch

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/openmined/sitesync/internal/site"
)

// Batch is one group of mutations submitted together. Add and Update batches carry one
// resource per path (same order as Paths); Delete batches carry paths only.
type Batch struct {
	Index     int              `json:"index"`
	Kind      site.OpKind      `json:"kind"`
	Paths     []string         `json:"paths"`
	Resources []*site.Resource `json:"resources,omitempty"`
	Budget    uint64           `json:"budget"`
}

// Len returns the number of operations in the batch
func (b *Batch) Len() int {
	return len(b.Paths)
}

func (b *Batch) String() string {
	return fmt.Sprintf("batch #%d %s ops=%d budget=%d", b.Index, b.Kind, len(b.Paths), b.Budget)
}

// BudgetConfig holds the cost formula max(Floor, Base + PerItem*n).
// Units are whatever the ledger charges in; the values come from configuration.
type BudgetConfig struct {
	Floor   uint64 `json:"floor" mapstructure:"floor"`
	Base    uint64 `json:"base" mapstructure:"base"`
	PerItem uint64 `json:"per_item" mapstructure:"per_item"`
}

// For returns the budget of a batch with n operations, saturating at math.MaxUint64.
func (c BudgetConfig) For(n int) uint64 {
	cost, ok := c.cost(max(n, 0))
	if !ok {
		return math.MaxUint64
	}
	return max(c.Floor, cost)
}

// cost returns Base + PerItem*n and false if it does not fit in 64 bits.
func (c BudgetConfig) cost(n int) (uint64, bool) {
	hi, items := bits.Mul64(c.PerItem, uint64(n))
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(c.Base, items, 0)
	return sum, carry == 0
}

// Config bounds the size and cost of every batch.
type Config struct {
	MaxOps int          `json:"max_ops" mapstructure:"max_ops"`
	Budget BudgetConfig `json:"budget" mapstructure:"budget"`
}

func (c Config) Validate() error {
	if c.MaxOps <= 0 {
		return fmt.Errorf("%w: max ops must be positive, got %d", ErrInvalidConfig, c.MaxOps)
	}
	if _, ok := c.Budget.cost(c.MaxOps); !ok {
		return fmt.Errorf("%w: budget of a %d-op batch overflows uint64", ErrInvalidConfig, c.MaxOps)
	}
	return nil
}
