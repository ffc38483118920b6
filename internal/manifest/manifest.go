// Package manifest holds the durable record of what a site currently publishes.
package manifest

import (
	"sort"
	"time"

	"github.com/openmined/sitesync/internal/site"
)

// Manifest is the snapshot written after every successful sync.
type Manifest struct {
	Version    int
	SiteID     string
	DeployedAt time.Time
	Resources  map[string]*site.Resource
}

// New returns the first manifest of a site.
func New(siteID string, resources map[string]*site.Resource, now time.Time) *Manifest {
	return Next(nil, siteID, resources, now)
}

// Next returns the manifest that follows prev after a successful sync.
// The version increases by one and DeployedAt is set to now.
func Next(prev *Manifest, siteID string, resources map[string]*site.Resource, now time.Time) *Manifest {
	version := 1
	if prev != nil {
		version = prev.Version + 1
	}

	copied := make(map[string]*site.Resource, len(resources))
	for path, res := range resources {
		c := res.Clone()
		c.Path = path
		copied[path] = c
	}

	return &Manifest{
		Version:    version,
		SiteID:     siteID,
		DeployedAt: now.UTC().Truncate(time.Second),
		Resources:  copied,
	}
}

// Clone returns a deep copy of the manifest
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := *m
	c.Resources = make(map[string]*site.Resource, len(m.Resources))
	for path, res := range m.Resources {
		c.Resources[path] = res.Clone()
	}
	return &c
}

// Paths returns the published paths in sorted order.
func (m *Manifest) Paths() []string {
	if m == nil {
		return nil
	}
	paths := make([]string, 0, len(m.Resources))
	for path := range m.Resources {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Get returns the resource at path, if published.
func (m *Manifest) Get(path string) (*site.Resource, bool) {
	if m == nil {
		return nil, false
	}
	res, ok := m.Resources[path]
	return res, ok
}
