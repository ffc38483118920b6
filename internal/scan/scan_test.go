package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "hello")
	writeFile(t, root, "assets/app.js", "console.log(1)")
	writeFile(t, root, ".git/HEAD", "ref")
	writeFile(t, root, ".sitesync/manifest.json", "{}")
	writeFile(t, root, ".DS_Store", "x")

	s, err := NewScanner(root)
	require.NoError(t, err)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	index := got["/index.html"]
	require.NotNil(t, index)
	assert.Equal(t, "/index.html", index.Path)
	assert.Equal(t, helloSHA256, index.ContentHash)
	assert.Equal(t, int64(5), index.Size)
	assert.Equal(t, "text/html; charset=utf-8", index.ContentType)

	assert.Contains(t, got, "/assets/app.js")
}

func TestScanner_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "hello")
	writeFile(t, root, "drafts/post.html", "draft")
	writeFile(t, root, "notes.bak", "old")
	writeFile(t, root, IgnoreFileName, "# local rules\ndrafts/\n*.bak\n")

	s, err := NewScanner(root)
	require.NoError(t, err)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "/index.html")
}

func TestScanner_NFCPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "café.html", "x")

	s, err := NewScanner(root)
	require.NoError(t, err)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, "/café.html")
}

func TestScanner_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, t.TempDir(), "secret.txt", "s")
	writeFile(t, root, "index.html", "hello")
	if err := os.Symlink(target, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	s, err := NewScanner(root)
	require.NoError(t, err)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, got, "/link.txt")
}

func TestScanner_ReusesCachedHash(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "index.html", "hello")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	s, err := NewScanner(root)
	require.NoError(t, err)
	_, err = s.Scan(context.Background())
	require.NoError(t, err)

	// same size and mtime: the cached hash is reused
	require.NoError(t, os.WriteFile(path, []byte("HELLO"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, got["/index.html"].ContentHash)

	// a new mtime forces a rehash
	require.NoError(t, os.Chtimes(path, mtime.Add(time.Minute), mtime.Add(time.Minute)))
	got, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, helloSHA256, got["/index.html"].ContentHash)
}

func TestScanner_Canceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "hello")

	s, err := NewScanner(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewScanner_MissingRoot(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSitePath(t *testing.T) {
	assert.Equal(t, "/a/b.txt", SitePath(filepath.Join("a", "b.txt")))
}

func TestScanner_Exclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html", "hello")
	writeFile(t, root, "state/sitesync.manifest.json", "{}")
	writeFile(t, root, "state/sitesync.manifest.json.lock", "")
	writeFile(t, root, "journal.db", "x")
	writeFile(t, root, "docs/state/page.html", "kept")

	s, err := NewScanner(root, WithExclude("state/", "./journal.db"))
	require.NoError(t, err)

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "/index.html")
	assert.Contains(t, got, "/docs/state/page.html")
}

func TestScanner_SeedAndHashes(t *testing.T) {
	root := t.TempDir()
	index := writeFile(t, root, "index.html", "hello")
	app := writeFile(t, root, "app.js", "x()")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(index, mtime, mtime))
	require.NoError(t, os.Chtimes(app, mtime, mtime))

	s, err := NewScanner(root)
	require.NoError(t, err)
	s.Seed([]*HashRecord{
		{Path: "/index.html", Size: 5, ModTime: mtime, Hash: "remembered"},
		{Path: "/app.js", Size: 3, ModTime: mtime.Add(-time.Minute), Hash: "stale"},
	})

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remembered", got["/index.html"].ContentHash)
	assert.NotEqual(t, "stale", got["/app.js"].ContentHash)

	hashes := s.Hashes()
	require.Len(t, hashes, 2)
	assert.Equal(t, "/app.js", hashes[0].Path)
	assert.Equal(t, got["/app.js"].ContentHash, hashes[0].Hash)
	assert.Equal(t, int64(3), hashes[0].Size)
	assert.True(t, hashes[0].ModTime.Equal(mtime))
	assert.Equal(t, "/index.html", hashes[1].Path)
	assert.Equal(t, "remembered", hashes[1].Hash)
}
