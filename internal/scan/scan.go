// Package scan fingerprints the files of a local site directory.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/sitesync/internal/site"
	"github.com/openmined/sitesync/internal/utils"
	"golang.org/x/text/unicode/norm"
)

const defaultCacheSize = 16384

type cachedHash struct {
	size    int64
	modTime time.Time
	hash    string
}

// HashRecord is a file hash remembered between scans, keyed by site path.
type HashRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
	Hash    string
}

// Scanner walks a site root and produces one Fingerprint per regular file.
// Hashes are reused across scans while a file's size and modification time are unchanged.
type Scanner struct {
	root    string
	ignore  *IgnoreList
	exclude map[string]struct{}
	cache   *lru.Cache[string, cachedHash]

	// site path -> OS path of the last scan; names on disk may not be NFC
	osPaths map[string]string
	hashes  []*HashRecord
}

type Option func(*scannerOptions)

type scannerOptions struct {
	cacheSize int
	exclude   []string
}

// WithCacheSize bounds the number of cached file hashes
func WithCacheSize(n int) Option {
	return func(o *scannerOptions) {
		o.cacheSize = n
	}
}

// WithExclude skips the given root-relative, slash-separated paths. An excluded
// directory is skipped with everything below it.
func WithExclude(paths ...string) Option {
	return func(o *scannerOptions) {
		o.exclude = append(o.exclude, paths...)
	}
}

func NewScanner(root string, opts ...Option) (*Scanner, error) {
	o := &scannerOptions{cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(o)
	}

	absRoot, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve site root %q: %w", root, err)
	}
	if !utils.DirExists(absRoot) {
		return nil, fmt.Errorf("site root %s is not a directory", absRoot)
	}

	cache, err := lru.New[string, cachedHash](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create hash cache: %w", err)
	}

	ignore := NewIgnoreList(absRoot)
	if err := ignore.Load(); err != nil {
		return nil, fmt.Errorf("load ignore list: %w", err)
	}

	exclude := make(map[string]struct{}, len(o.exclude))
	for _, p := range o.exclude {
		p = strings.Trim(filepath.ToSlash(filepath.Clean(p)), "/")
		if p != "" && p != "." {
			exclude[p] = struct{}{}
		}
	}

	return &Scanner{
		root:    absRoot,
		ignore:  ignore,
		exclude: exclude,
		cache:   cache,
	}, nil
}

// Root returns the absolute site root
func (s *Scanner) Root() string {
	return s.root
}

// Scan returns the fingerprints of all non-ignored regular files keyed by site path
// ("/" + slash-separated, NFC-normalized path relative to the root).
func (s *Scanner) Scan(ctx context.Context) (map[string]*site.Fingerprint, error) {
	result := make(map[string]*site.Fingerprint)
	osPaths := make(map[string]string)
	var hashes []*HashRecord

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		sitePath := SitePath(rel)

		if _, skip := s.exclude[filepath.ToSlash(rel)]; skip {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if s.ignore.ShouldIgnore(sitePath + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.ignore.ShouldIgnore(sitePath) {
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Debug("scan skip non-regular file", "path", path, "mode", d.Type())
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		hash, err := s.hash(sitePath, path, info)
		if err != nil {
			return err
		}

		if prev, exists := result[sitePath]; exists {
			return fmt.Errorf("%s and another file both normalize to %s", path, prev.Path)
		}

		osPaths[sitePath] = path
		hashes = append(hashes, &HashRecord{Path: sitePath, Size: info.Size(), ModTime: info.ModTime(), Hash: hash})
		result[sitePath] = &site.Fingerprint{
			Path:        sitePath,
			ContentHash: hash,
			Size:        info.Size(),
			ContentType: utils.DetectContentType(sitePath),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}

	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Path < hashes[j].Path
	})
	s.osPaths = osPaths
	s.hashes = hashes
	return result, nil
}

// Seed loads hashes remembered by an earlier process. They are used only while the
// file's size and modification time still match.
func (s *Scanner) Seed(records []*HashRecord) {
	for _, r := range records {
		s.cache.Add(r.Path, cachedHash{size: r.Size, modTime: r.ModTime, hash: r.Hash})
	}
}

// Hashes returns the hash of every file of the last scan, sorted by path.
func (s *Scanner) Hashes() []*HashRecord {
	return s.hashes
}

// Open opens the file behind a site path for reading. It is safe for concurrent use once
// Scan has returned.
func (s *Scanner) Open(sitePath string) (*os.File, error) {
	if p, ok := s.osPaths[sitePath]; ok {
		return os.Open(p)
	}
	return os.Open(filepath.Join(s.root, filepath.FromSlash(sitePath)))
}

func (s *Scanner) hash(sitePath, path string, info fs.FileInfo) (string, error) {
	if c, ok := s.cache.Get(sitePath); ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.hash, nil
	}

	hash, err := HashFile(path)
	if err != nil {
		return "", err
	}
	s.cache.Add(sitePath, cachedHash{size: info.Size(), modTime: info.ModTime(), hash: hash})
	return hash, nil
}

// SitePath converts an OS-relative path into the canonical site path form.
func SitePath(rel string) string {
	return "/" + norm.NFC.String(filepath.ToSlash(rel))
}

// HashFile returns the hex sha256 of a file's contents.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file '%s': %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash '%s': %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
