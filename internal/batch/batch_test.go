package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/openmined/sitesync/internal/delta"
	"github.com/openmined/sitesync/internal/site"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	MaxOps: 50,
	Budget: BudgetConfig{Floor: 5_000, Base: 1_000, PerItem: 100},
}

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/f%03d", i)
	}
	return out
}

func resourcesFor(ps []string) map[string]*site.Resource {
	out := make(map[string]*site.Resource, len(ps))
	for _, p := range ps {
		out[p] = &site.Resource{BlobID: "id" + p, BlobHash: "h" + p, ContentType: "text/plain", Size: 1}
	}
	return out
}

func TestBudgetConfig_For(t *testing.T) {
	cfg := BudgetConfig{Floor: 5_000, Base: 1_000, PerItem: 100}
	assert.Equal(t, uint64(5_000), cfg.For(0))
	assert.Equal(t, uint64(5_000), cfg.For(40))
	assert.Equal(t, uint64(5_100), cfg.For(41))
	assert.Equal(t, uint64(6_000), cfg.For(50))
}

func TestBudgetConfig_Overflow(t *testing.T) {
	huge := BudgetConfig{Base: math.MaxUint64 - 10, PerItem: 1 << 62}
	assert.Equal(t, uint64(math.MaxUint64), huge.For(4))
	assert.Equal(t, uint64(math.MaxUint64), huge.For(1))
	assert.Equal(t, uint64(math.MaxUint64-10), huge.For(0))

	err := Config{MaxOps: 4, Budget: huge}.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	err = Config{MaxOps: 2, Budget: BudgetConfig{PerItem: math.MaxUint64 / 2}}.Validate()
	assert.NoError(t, err)

	total := TotalBudget([]*Batch{{Budget: math.MaxUint64 - 1}, {Budget: 2}})
	assert.Equal(t, uint64(math.MaxUint64), total)
}

func TestPlan_DeleteChunks(t *testing.T) {
	ps := paths(120)

	batches, err := Plan(site.OpDelete, ps, nil, testConfig)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	var sizes []int
	var flat []string
	for i, b := range batches {
		sizes = append(sizes, b.Len())
		flat = append(flat, b.Paths...)
		assert.Equal(t, i, b.Index)
		assert.Equal(t, site.OpDelete, b.Kind)
		assert.Nil(t, b.Resources)
		assert.Equal(t, max(testConfig.Budget.Floor, testConfig.Budget.Base+testConfig.Budget.PerItem*uint64(b.Len())), b.Budget)
	}
	assert.Equal(t, []int{50, 50, 20}, sizes)
	assert.Equal(t, ps, flat, "input order is preserved")
	assert.Equal(t, uint64(6_000+6_000+5_000), TotalBudget(batches))
	assert.Equal(t, 120, TotalOps(batches))
}

func TestPlan_AddCarriesResources(t *testing.T) {
	ps := paths(3)
	resources := resourcesFor(ps)

	batches, err := Plan(site.OpAdd, ps, resources, Config{MaxOps: 2, Budget: testConfig.Budget})
	require.NoError(t, err)
	require.Len(t, batches, 2)

	require.Len(t, batches[0].Resources, 2)
	assert.Equal(t, "/f000", batches[0].Resources[0].Path)
	assert.Equal(t, "id/f001", batches[0].Resources[1].BlobID)
	require.Len(t, batches[1].Resources, 1)
	assert.Equal(t, "h/f002", batches[1].Resources[0].BlobHash)
}

func TestPlan_Errors(t *testing.T) {
	_, err := Plan(site.OpUpdate, []string{"/a"}, map[string]*site.Resource{}, testConfig)
	assert.ErrorIs(t, err, ErrMissingResource)

	_, err = Plan(site.OpDelete, []string{"/a"}, nil, Config{MaxOps: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Plan(site.OpKind("Rename"), []string{"/a"}, nil, testConfig)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestPlan_Empty(t *testing.T) {
	batches, err := Plan(site.OpAdd, nil, nil, testConfig)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestPlanDelta_OrderAndIndices(t *testing.T) {
	res := &delta.Result{
		Added:    []string{"/a1", "/a2", "/a3"},
		Modified: []string{"/m1"},
		Removed:  []string{"/r1", "/r2"},
	}
	resources := resourcesFor(append(append([]string{}, res.Added...), res.Modified...))

	batches, err := PlanDelta(res, resources, Config{MaxOps: 2, Budget: testConfig.Budget})
	require.NoError(t, err)

	var kinds []site.OpKind
	for i, b := range batches {
		assert.Equal(t, i, b.Index)
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []site.OpKind{site.OpAdd, site.OpAdd, site.OpUpdate, site.OpDelete}, kinds)
	require.NoError(t, Ordered(batches))

	for i := range batches {
		for j := i + 1; j < len(batches); j++ {
			assert.False(t, Overlaps(batches[i], batches[j]))
		}
	}
}

func TestOverlapsAndOrdered(t *testing.T) {
	a := &Batch{Index: 0, Kind: site.OpUpdate, Paths: []string{"/x", "/y"}}
	b := &Batch{Index: 1, Kind: site.OpDelete, Paths: []string{"/y"}}
	assert.True(t, Overlaps(a, b))

	assert.NoError(t, Ordered([]*Batch{a, b}))
	assert.ErrorIs(t, Ordered([]*Batch{b, a}), ErrOutOfOrder)
}

func TestPlanID(t *testing.T) {
	ps := paths(10)
	resources := resourcesFor(ps)

	b1, err := Plan(site.OpAdd, ps, resources, testConfig)
	require.NoError(t, err)
	b2, err := Plan(site.OpAdd, ps, resources, testConfig)
	require.NoError(t, err)
	assert.Equal(t, PlanID(b1), PlanID(b2))

	resources["/f003"].BlobHash = "other"
	b3, err := Plan(site.OpAdd, ps, resources, testConfig)
	require.NoError(t, err)
	assert.NotEqual(t, PlanID(b1), PlanID(b3))
}

type memCheckpoint struct {
	last    map[string]int
	failAt  int
	commits int
}

func newMemCheckpoint() *memCheckpoint {
	return &memCheckpoint{last: map[string]int{}, failAt: -1}
}

func (m *memCheckpoint) LastCommitted(_ context.Context, planID string) (int, error) {
	if last, ok := m.last[planID]; ok {
		return last, nil
	}
	return -1, nil
}

func (m *memCheckpoint) Commit(_ context.Context, planID string, b *Batch) error {
	if b.Index == m.failAt {
		return errors.New("disk full")
	}
	m.commits++
	m.last[planID] = b.Index
	return nil
}

func TestExecute_AllCommitted(t *testing.T) {
	batches, err := Plan(site.OpDelete, paths(120), nil, testConfig)
	require.NoError(t, err)

	var seen []int
	sub := SubmitterFunc(func(_ context.Context, b *Batch) error {
		seen = append(seen, b.Index)
		return nil
	})

	var hooked int
	report, err := Execute(context.Background(), batches, sub, WithCommitHook(func(*Batch) { hooked++ }))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 3, report.Submitted)
	assert.Equal(t, 120, report.OpsCommitted)
	assert.Equal(t, 3, hooked)
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	batches, err := Plan(site.OpDelete, paths(120), nil, testConfig)
	require.NoError(t, err)

	ledgerErr := errors.New("ledger rejected batch")
	var attempts []int
	sub := SubmitterFunc(func(_ context.Context, b *Batch) error {
		attempts = append(attempts, b.Index)
		if b.Index == 1 {
			return ledgerErr
		}
		return nil
	})

	report, err := Execute(context.Background(), batches, sub)
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.BatchIndex)
	assert.Equal(t, 50, serr.Committed)
	assert.ErrorIs(t, err, ledgerErr)
	assert.Equal(t, []int{0, 1}, attempts, "no batch after the failure is attempted")
	assert.Equal(t, 1, report.Submitted)
}

func TestExecute_ContextCanceled(t *testing.T) {
	batches, err := Plan(site.OpDelete, paths(10), nil, testConfig)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Execute(ctx, batches, SubmitterFunc(func(context.Context, *Batch) error {
		t.Fatal("submit must not be called")
		return nil
	}))
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.BatchIndex)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_ResumeFromCheckpoint(t *testing.T) {
	batches, err := Plan(site.OpDelete, paths(120), nil, testConfig)
	require.NoError(t, err)
	planID := PlanID(batches)
	cp := newMemCheckpoint()

	failing := SubmitterFunc(func(_ context.Context, b *Batch) error {
		if b.Index == 2 {
			return errors.New("boom")
		}
		return nil
	})
	_, err = Execute(context.Background(), batches, failing, WithCheckpoint(cp, planID))
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.BatchIndex)
	assert.Equal(t, 100, serr.Committed)

	var resumed []int
	ok := SubmitterFunc(func(_ context.Context, b *Batch) error {
		resumed = append(resumed, b.Index)
		return nil
	})
	report, err := Execute(context.Background(), batches, ok, WithCheckpoint(cp, planID))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, resumed)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 120, report.OpsCommitted)
}

func TestExecute_CheckpointFailure(t *testing.T) {
	batches, err := Plan(site.OpDelete, paths(120), nil, testConfig)
	require.NoError(t, err)
	cp := newMemCheckpoint()
	cp.failAt = 0

	_, err = Execute(context.Background(), batches, SubmitterFunc(func(context.Context, *Batch) error { return nil }),
		WithCheckpoint(cp, PlanID(batches)))
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrCheckpoint)
	assert.Equal(t, 1, serr.BatchIndex)
	assert.Equal(t, 50, serr.Committed)
}
