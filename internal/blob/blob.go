// Package blob stores file contents in content-addressed storage.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	ErrNoParams      = errors.New("blob: missing put params")
	ErrBadRetention  = errors.New("blob: retention must be positive")
	ErrBlobNotFound  = errors.New("blob: not found")
	ErrNotConfigured = errors.New("blob: store not configured")
)

// Store accepts raw bytes, including an empty slice, and keeps them for at least the
// requested retention. Putting content that is already stored extends its retention.
type Store interface {
	Put(ctx context.Context, params *PutParams) (*Ref, error)
}

type PutParams struct {
	Data        []byte
	ContentType string
	Retention   time.Duration
}

func (p *PutParams) validate() error {
	if p == nil {
		return ErrNoParams
	}
	if p.Retention <= 0 {
		return ErrBadRetention
	}
	return nil
}

// Ref identifies a stored blob. ContentID is an opaque pointer understood by the store;
// ContentAddress is the hex sha256 of the stored bytes.
type Ref struct {
	ContentID      string `json:"content_id"`
	ContentAddress string `json:"content_address"`
}

// ContentAddress returns the content address of data
func ContentAddress(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
