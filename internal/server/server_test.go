package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/ledger"
	"github.com/openmined/sitesync/internal/site"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, mem *ledger.MemLedger, cfg *Config) *ledger.Client {
	t.Helper()
	srv := httptest.NewServer(SetupRoutes(mem, cfg))
	t.Cleanup(srv.Close)

	client, err := ledger.NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestServer_ClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemLedger()
	client := newTestLedger(t, mem, &Config{Addr: DefaultAddr})

	siteID, err := client.CreateSite(ctx, "docs")
	require.NoError(t, err)
	assert.Len(t, siteID, 66)

	err = client.Submit(ctx, siteID, &batch.Batch{
		Index:     0,
		Kind:      site.OpAdd,
		Paths:     []string{"/index.html"},
		Resources: []*site.Resource{{BlobID: "b1", BlobHash: "h1", ContentType: "text/html", Size: 10}},
		Budget:    1,
	})
	require.NoError(t, err)

	state, err := client.Site(ctx, siteID)
	require.NoError(t, err)
	assert.Equal(t, "docs", state.Name)
	assert.Equal(t, uint64(1), state.Revision)
	require.Contains(t, state.Resources, "/index.html")
	assert.Equal(t, "h1", state.Resources["/index.html"].BlobHash)

	applied := mem.Applied(siteID)
	require.Len(t, applied, 1)
	assert.Equal(t, "/index.html", applied[0].Resources[0].Path)
}

func TestServer_ErrorCodes(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemLedger(ledger.WithMaxOps(1))
	client := newTestLedger(t, mem, &Config{Addr: DefaultAddr})

	err := client.Submit(ctx, "0x01", &batch.Batch{Kind: site.OpDelete, Paths: []string{"/a"}})
	assert.True(t, ledger.IsCode(err, ledger.CodeSiteNotFound), "got %v", err)

	siteID, err := client.CreateSite(ctx, "docs")
	require.NoError(t, err)

	err = client.Submit(ctx, siteID, &batch.Batch{Kind: site.OpDelete, Paths: []string{"/a", "/b"}})
	assert.True(t, ledger.IsCode(err, ledger.CodeBatchTooLarge), "got %v", err)

	_, err = client.Site(ctx, "0x02")
	assert.True(t, ledger.IsCode(err, ledger.CodeSiteNotFound), "got %v", err)
}

func TestServer_Health(t *testing.T) {
	srv := httptest.NewServer(SetupRoutes(ledger.NewMemLedger(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Addr: DefaultAddr, CertFile: "c.pem"}).Validate())
	assert.NoError(t, (&Config{Addr: DefaultAddr, RateLimit: DefaultRateLimit}).Validate())
	assert.Error(t, (&Config{Addr: DefaultAddr, RateLimit: "lots"}).Validate())

	_, err := New(&Config{}, ledger.NewMemLedger())
	assert.Error(t, err)
}

func TestServer_StartStop(t *testing.T) {
	s, err := New(&Config{Addr: "127.0.0.1:0"}, ledger.NewMemLedger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
