package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/db"
	"github.com/openmined/sitesync/internal/scan"
	"github.com/openmined/sitesync/internal/site"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T, path string) *Journal {
	t.Helper()
	j := New(path, "")
	require.NoError(t, j.Open())
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_CommitAndLast(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, db.MemoryPath)

	last, err := j.LastCommitted(ctx, "plan-a")
	require.NoError(t, err)
	assert.Equal(t, -1, last)

	for i := 0; i < 3; i++ {
		b := &batch.Batch{Index: i, Kind: site.OpDelete, Paths: []string{"/a", "/b"}}
		require.NoError(t, j.Commit(ctx, "plan-a", b))
	}
	require.NoError(t, j.Commit(ctx, "plan-b", &batch.Batch{Index: 0, Kind: site.OpAdd, Paths: []string{"/x"}}))

	last, err = j.LastCommitted(ctx, "plan-a")
	require.NoError(t, err)
	assert.Equal(t, 2, last)

	entries, err := j.Entries(ctx, "plan-a")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 0, entries[0].BatchIndex)
	assert.Equal(t, "Delete", entries[0].Kind)
	assert.Equal(t, 2, entries[0].Ops)
	assert.Equal(t, j.RunID(), entries[0].RunID)
	assert.False(t, entries[0].CommittedAt.IsZero())
}

func TestJournal_CommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, db.MemoryPath)

	b := &batch.Batch{Index: 0, Kind: site.OpAdd, Paths: []string{"/a"}}
	require.NoError(t, j.Commit(ctx, "p", b))
	require.NoError(t, j.Commit(ctx, "p", b))

	entries, err := j.Entries(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJournal_ClearAndPrune(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, db.MemoryPath)

	for _, plan := range []string{"p1", "p2", "p3"} {
		require.NoError(t, j.Commit(ctx, plan, &batch.Batch{Index: 0, Kind: site.OpAdd, Paths: []string{"/a"}}))
	}

	require.NoError(t, j.Clear(ctx, "p1"))
	last, err := j.LastCommitted(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, -1, last)

	n, err := j.Prune(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	last, err = j.LastCommitted(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, 0, last)
}

func TestJournal_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".sitesync", DefaultFileName)

	j := New(path, "")
	require.NoError(t, j.Open())
	require.NoError(t, j.Commit(ctx, "p", &batch.Batch{Index: 4, Kind: site.OpUpdate, Paths: []string{"/a"}}))
	require.NoError(t, j.Close())

	reopened := openJournal(t, path)
	last, err := reopened.LastCommitted(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 4, last)
	assert.NotEqual(t, j.RunID(), reopened.RunID())
}

func TestJournal_NotOpen(t *testing.T) {
	ctx := context.Background()
	j := New(db.MemoryPath, "run-1")
	assert.Equal(t, "run-1", j.RunID())

	_, err := j.LastCommitted(ctx, "p")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, j.Commit(ctx, "p", &batch.Batch{}), ErrNotOpen)
	assert.ErrorIs(t, j.Clear(ctx, "p"), ErrNotOpen)
	assert.ErrorIs(t, j.Close(), ErrNotOpen)
}

func TestJournal_ResumesExecute(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, db.MemoryPath)

	batches := []*batch.Batch{
		{Index: 0, Kind: site.OpDelete, Paths: []string{"/a"}},
		{Index: 1, Kind: site.OpDelete, Paths: []string{"/b"}},
		{Index: 2, Kind: site.OpDelete, Paths: []string{"/c"}},
	}
	planID := batch.PlanID(batches)

	calls := 0
	failing := batch.SubmitterFunc(func(_ context.Context, b *batch.Batch) error {
		calls++
		if b.Index == 2 {
			return assert.AnError
		}
		return nil
	})
	_, err := batch.Execute(ctx, batches, failing, batch.WithCheckpoint(j, planID))
	require.Error(t, err)

	var submitted []int
	ok := batch.SubmitterFunc(func(_ context.Context, b *batch.Batch) error {
		submitted = append(submitted, b.Index)
		return nil
	})
	report, err := batch.Execute(ctx, batches, ok, batch.WithCheckpoint(j, planID))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, submitted)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 3, report.OpsCommitted)
}

func TestJournal_PendingSite(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t, db.MemoryPath)

	id, err := j.PendingSite(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, j.SetPendingSite(ctx, "docs", "0xabc"))
	require.NoError(t, j.SetPendingSite(ctx, "docs", "0xdef"))

	id, err = j.PendingSite(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", id)

	require.NoError(t, j.ClearPendingSite(ctx, "docs"))
	id, err = j.PendingSite(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestJournal_FileHashes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", DefaultFileName)
	mtime := time.Unix(1700000000, 123456789)

	j := New(path, "")
	require.NoError(t, j.Open())

	got, err := j.FileHashes(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, j.SaveFileHashes(ctx, []*scan.HashRecord{
		{Path: "/index.html", Size: 5, ModTime: mtime, Hash: "h1"},
		{Path: "/app.js", Size: 3, ModTime: mtime, Hash: "h2"},
	}))
	require.NoError(t, j.SaveFileHashes(ctx, []*scan.HashRecord{
		{Path: "/index.html", Size: 6, ModTime: mtime.Add(time.Second), Hash: "h3"},
	}))
	require.NoError(t, j.Close())

	j = openJournal(t, path)
	got, err = j.FileHashes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/index.html", got[0].Path)
	assert.Equal(t, int64(6), got[0].Size)
	assert.True(t, got[0].ModTime.Equal(mtime.Add(time.Second)))
	assert.Equal(t, "h3", got[0].Hash)

	_, err = New(db.MemoryPath, "").FileHashes(ctx)
	assert.ErrorIs(t, err, ErrNotOpen)
}
