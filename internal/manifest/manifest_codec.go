package manifest

import (
	"fmt"
	"strings"
	"time"

	"github.com/openmined/sitesync/internal/pathguard"
	"github.com/openmined/sitesync/internal/site"
)

// wire types use pointers so a missing field can be told apart from a zero value.
type wireManifest struct {
	Version    *int                      `json:"version"`
	SiteID     *string                   `json:"site_id"`
	DeployedAt *string                   `json:"deployed_at"`
	Resources  *map[string]*wireResource `json:"resources"`
}

type wireResource struct {
	BlobID      *string `json:"blob_id"`
	BlobHash    *string `json:"blob_hash"`
	ContentType *string `json:"content_type"`
	Size        *int64  `json:"size"`
}

// Decode parses and validates a manifest. Any missing or invalid required field
// yields a *CorruptError; nothing is defaulted.
func Decode(data []byte) (*Manifest, error) {
	var w wireManifest
	if err := jsonUnmarshal(data, &w); err != nil {
		return nil, &CorruptError{Field: "$", Reason: err.Error()}
	}

	if w.Version == nil {
		return nil, missing("version")
	}
	if w.SiteID == nil {
		return nil, missing("site_id")
	}
	if w.DeployedAt == nil {
		return nil, missing("deployed_at")
	}
	if w.Resources == nil {
		return nil, missing("resources")
	}

	deployedAt, err := time.Parse(time.RFC3339, *w.DeployedAt)
	if err != nil {
		return nil, &CorruptError{Field: "deployed_at", Reason: err.Error()}
	}

	m := &Manifest{
		Version:    *w.Version,
		SiteID:     *w.SiteID,
		DeployedAt: deployedAt.UTC(),
		Resources:  make(map[string]*site.Resource, len(*w.Resources)),
	}

	for path, wr := range *w.Resources {
		res, err := decodeResource(path, wr)
		if err != nil {
			return nil, err
		}
		m.Resources[path] = res
	}

	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeResource(path string, wr *wireResource) (*site.Resource, error) {
	field := func(name string) string {
		return fmt.Sprintf("resources[%q].%s", path, name)
	}

	if wr == nil {
		return nil, &CorruptError{Field: fmt.Sprintf("resources[%q]", path), Reason: "null resource"}
	}
	if wr.BlobID == nil {
		return nil, missing(field("blob_id"))
	}
	if wr.BlobHash == nil {
		return nil, missing(field("blob_hash"))
	}
	if wr.ContentType == nil {
		return nil, missing(field("content_type"))
	}
	if wr.Size == nil {
		return nil, missing(field("size"))
	}

	return &site.Resource{
		Path:        path,
		BlobID:      *wr.BlobID,
		BlobHash:    *wr.BlobHash,
		ContentType: *wr.ContentType,
		Size:        *wr.Size,
	}, nil
}

// Encode validates m and serializes it with sorted resource keys.
func Encode(m *Manifest) ([]byte, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}

	resources := make(map[string]*wireResource, len(m.Resources))
	for path, res := range m.Resources {
		resources[path] = &wireResource{
			BlobID:      &res.BlobID,
			BlobHash:    &res.BlobHash,
			ContentType: &res.ContentType,
			Size:        &res.Size,
		}
	}

	version := m.Version
	siteID := m.SiteID
	deployedAt := m.DeployedAt.UTC().Format(time.RFC3339)

	return jsonMarshalIndent(&wireManifest{
		Version:    &version,
		SiteID:     &siteID,
		DeployedAt: &deployedAt,
		Resources:  &resources,
	}, "", "  ")
}

// Validate checks the invariants of a manifest: a positive version, a site id,
// and canonical, safe resource paths.
func Validate(m *Manifest) error {
	if m == nil {
		return &CorruptError{Field: "$", Reason: "nil manifest"}
	}
	if m.Version < 1 {
		return &CorruptError{Field: "version", Reason: fmt.Sprintf("must be >= 1, got %d", m.Version)}
	}
	if strings.TrimSpace(m.SiteID) == "" {
		return &CorruptError{Field: "site_id", Reason: "empty"}
	}
	if m.DeployedAt.IsZero() {
		return &CorruptError{Field: "deployed_at", Reason: "zero time"}
	}

	for path, res := range m.Resources {
		field := fmt.Sprintf("resources[%q]", path)
		if res == nil {
			return &CorruptError{Field: field, Reason: "null resource"}
		}
		if err := ValidatePath(path); err != nil {
			return &CorruptError{Field: field, Reason: err.Error()}
		}
		if res.BlobID == "" {
			return &CorruptError{Field: field + ".blob_id", Reason: "empty"}
		}
		if res.BlobHash == "" {
			return &CorruptError{Field: field + ".blob_hash", Reason: "empty"}
		}
		if res.Size < 0 {
			return &CorruptError{Field: field + ".size", Reason: fmt.Sprintf("negative size %d", res.Size)}
		}
	}
	return nil
}

// ValidatePath reports whether path is usable as a manifest key: absolute,
// already in normalized form, and accepted by pathguard.
func ValidatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q is not absolute", path)
	}
	if err := pathguard.Validate(path); err != nil {
		return err
	}
	normalized, err := pathguard.Normalize(path)
	if err != nil {
		return err
	}
	if normalized != path {
		return fmt.Errorf("path %q is not canonical (want %q)", path, normalized)
	}
	return nil
}

func missing(field string) *CorruptError {
	return &CorruptError{Field: field, Reason: "missing required field"}
}
