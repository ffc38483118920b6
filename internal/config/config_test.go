package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "sitesync.page", cfg.Domain)
	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, 8, cfg.UploadConcurrency)
	assert.Equal(t, BlobBackendMemory, cfg.BlobBackend)
	assert.Equal(t, batch.Config{
		MaxOps: 50,
		Budget: batch.BudgetConfig{Floor: 5_000_000, Base: 1_000_000, PerItem: 200_000},
	}, cfg.BatchConfig())
	assert.ErrorIs(t, cfg.RequireLedger(), ErrNoLedgerURL)
	assert.NotEmpty(t, cfg.Path)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `{
		"domain": "pages.example.com",
		"ledger_url": "http://127.0.0.1:8090",
		"retention": "48h",
		"max_batch_ops": 10,
		"blob_backend": "s3",
		"s3": {"bucket": "sites", "region": "eu-west-1", "endpoint": "http://localhost:9000"}
	}`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "pages.example.com", cfg.Domain)
	assert.Equal(t, 48*time.Hour, cfg.Retention)
	assert.Equal(t, 10, cfg.MaxBatchOps)
	assert.NoError(t, cfg.RequireLedger())
	assert.Equal(t, blob.S3Config{BucketName: "sites", Region: "eu-west-1", Endpoint: "http://localhost:9000"}, cfg.S3)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SITESYNC_DOMAIN", "env.example.com")
	t.Setenv("SITESYNC_MAX_BATCH_OPS", "7")
	t.Setenv("SITESYNC_S3_BUCKET", "from-env")

	cfg, err := Load(New(), writeConfig(t, `{"domain": "file.example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "env.example.com", cfg.Domain)
	assert.Equal(t, 7, cfg.MaxBatchOps)
	assert.Equal(t, "from-env", cfg.S3.BucketName)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SITESYNC_LEDGER_URL=http://dotenv:8090\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("SITESYNC_LEDGER_URL")
	})

	cfg, err := Load(New(), writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "http://dotenv:8090", cfg.LedgerURL)
}

func TestLoad_BadFile(t *testing.T) {
	_, err := Load(New(), writeConfig(t, `{not json`))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Domain:            "sitesync.page",
			Retention:         time.Hour,
			UploadConcurrency: 1,
			MaxBatchOps:       1,
			BlobBackend:       BlobBackendMemory,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty domain", func(c *Config) { c.Domain = " . " }},
		{"zero retention", func(c *Config) { c.Retention = 0 }},
		{"zero concurrency", func(c *Config) { c.UploadConcurrency = 0 }},
		{"zero batch ops", func(c *Config) { c.MaxBatchOps = 0 }},
		{"unknown backend", func(c *Config) { c.BlobBackend = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.BlobBackend = BlobBackendS3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
