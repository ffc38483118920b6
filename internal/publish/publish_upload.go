package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/openmined/sitesync/internal/blob"
	"github.com/openmined/sitesync/internal/site"
	"golang.org/x/sync/errgroup"
)

type uploadStats struct {
	files int
	bytes int64
}

// upload stores the contents of every path and returns the resulting resources.
// Files are re-hashed while uploading; a mismatch with the scan aborts the deploy.
func (d *Deployer) upload(ctx context.Context, store blob.Store, files fileOpener, fps []*site.Fingerprint) (map[string]*site.Resource, *uploadStats, error) {
	resources := make(map[string]*site.Resource, len(fps))
	stats := &uploadStats{}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.opts.UploadConcurrency)

	for _, fp := range fps {
		fp := fp
		eg.Go(func() error {
			res, err := d.uploadOne(egCtx, store, files, fp)
			if err != nil {
				return err
			}

			mu.Lock()
			resources[fp.Path] = res
			stats.files++
			stats.bytes += fp.Size
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return resources, stats, nil
}

func (d *Deployer) uploadOne(ctx context.Context, store blob.Store, files fileOpener, fp *site.Fingerprint) (*site.Resource, error) {
	f, err := files.Open(fp.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fp.Path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fp.Path, err)
	}

	if addr := blob.ContentAddress(data); addr != fp.ContentHash {
		return nil, &IntegrityError{Path: fp.Path, Expected: fp.ContentHash, Actual: addr}
	}

	ref, err := store.Put(ctx, &blob.PutParams{
		Data:        data,
		ContentType: fp.ContentType,
		Retention:   d.opts.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fp.Path, err)
	}
	if ref.ContentAddress != fp.ContentHash {
		return nil, &IntegrityError{Path: fp.Path, Expected: fp.ContentHash, Actual: ref.ContentAddress}
	}

	slog.Debug("upload", "path", fp.Path, "size", humanize.Bytes(uint64(fp.Size)), "blob", ref.ContentID)
	return &site.Resource{
		Path:        fp.Path,
		BlobID:      ref.ContentID,
		BlobHash:    ref.ContentAddress,
		ContentType: fp.ContentType,
		Size:        fp.Size,
	}, nil
}
