package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))

	require.NoError(t, err)
	assert.Equal(t, "rag_ingestion", cfg.Ingestion.LockKey)
	assert.Equal(t, 60, cfg.Ingestion.LockTTLMinutes)
	assert.Equal(t, 3, cfg.Ingestion.MaxRetries)
	assert.Equal(t, 100, cfg.Ingestion.MinContentLength)
	assert.Equal(t, 25000, cfg.Chunker.WindowSize)
	assert.Equal(t, 8000, cfg.Chunker.Overlap)
	assert.Equal(t, 30, cfg.Chunker.MinSectionLength)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ingestion]
lock_key = "custom_lock"
max_retries = 5

[chunker]
window_size = 1000

[library]
base_url = "https://library.example.com/api"
scopes = ["files.read"]

[vector]
endpoint = "https://vectors.example.com/api"
namespace = "docs"
`), 0600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "custom_lock", cfg.Ingestion.LockKey)
	assert.Equal(t, 5, cfg.Ingestion.MaxRetries)
	// Untouched settings keep their defaults.
	assert.Equal(t, 60, cfg.Ingestion.LockTTLMinutes)
	assert.Equal(t, 1000, cfg.Chunker.WindowSize)
	assert.Equal(t, 8000, cfg.Chunker.Overlap)
	assert.Equal(t, "https://library.example.com/api", cfg.Library.BaseURL)
	assert.Equal(t, []string{"files.read"}, cfg.Library.Scopes)
	assert.Equal(t, "docs", cfg.Vector.Namespace)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
