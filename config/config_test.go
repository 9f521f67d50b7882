package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cytomine/cbir/distance"
	"github.com/cytomine/cbir/persistence"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "/data", cfg.DataPath)
	assert.Equal(t, 128, cfg.NFeatures)
	assert.Equal(t, "localhost:6379", cfg.KV.Redis.Addr())
	assert.Zero(t, cfg.KV.Redis.DB)
	assert.False(t, cfg.Accelerated)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_path: /srv/cbir
n_features: 64
compression: zstd
kv:
  backend: badger
  badger:
    dir: /srv/kv
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/cbir", cfg.DataPath)
	assert.Equal(t, 64, cfg.NFeatures)
	assert.Equal(t, KVBadger, cfg.KV.Backend)
	assert.Equal(t, "/srv/kv", cfg.KV.Badger.Dir)
	assert.Equal(t, 6379, cfg.KV.Redis.Port, "unset fields keep defaults")

	ct, err := cfg.ParsedCompression()
	require.NoError(t, err)
	assert.Equal(t, persistence.CompressionZSTD, ct)
	require.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbir.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n_features: [1"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CBIR_DATA_PATH", "/tmp/x")
	t.Setenv("CBIR_N_FEATURES", "32")
	t.Setenv("CBIR_REDIS_HOST", "redis")
	t.Setenv("CBIR_REDIS_PORT", "7000")
	t.Setenv("CBIR_ACCELERATED", "true")
	t.Setenv("CBIR_METRIC", "cosine")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", cfg.DataPath)
	assert.Equal(t, 32, cfg.NFeatures)
	assert.Equal(t, "redis:7000", cfg.KV.Redis.Addr())
	assert.True(t, cfg.Accelerated)

	m, err := cfg.ParsedMetric()
	require.NoError(t, err)
	assert.Equal(t, distance.MetricCosine, m)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("CBIR_N_FEATURES", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero features", func(c *Config) { c.NFeatures = 0 }},
		{"bad metric", func(c *Config) { c.Metric = "hamming" }},
		{"bad compression", func(c *Config) { c.Compression = "brotli" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"s3 without bucket", func(c *Config) { c.Blob.Backend = BlobS3 }},
		{"minio without endpoint", func(c *Config) { c.Blob.Backend = BlobMinIO; c.Blob.Bucket = "b" }},
		{"unknown blob backend", func(c *Config) { c.Blob.Backend = "ftp" }},
		{"redis port", func(c *Config) { c.KV.Redis.Port = 0 }},
		{"badger without dir", func(c *Config) { c.KV.Backend = KVBadger }},
		{"unknown kv backend", func(c *Config) { c.KV.Backend = "etcd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KV.Backend = KVMemory
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cbir.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
