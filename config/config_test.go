package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, "markdown", cfg.Reader.ExportType)
	assert.Equal(t, "doc_hash", cfg.Reader.IDGenerator)
	assert.Equal(t, "local", cfg.Converter.Type)
	assert.Equal(t, 120*time.Second, cfg.PythonService.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "data/uploads", cfg.Storage.Path)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Queue.Enable)
	assert.Equal(t, 168*time.Hour, cfg.Queue.TaskTTL)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
reader:
  export_type: json
  chunk_docs: false
converter:
  type: service
python_service:
  base_url: http://docling:5001
  api_key: ${DOCLING_TEST_KEY}
queue:
  enable: true
  retry_delay: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("DOCLING_TEST_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Reader.ExportType)
	assert.False(t, cfg.Reader.ChunkDocs)
	assert.Equal(t, "service", cfg.Converter.Type)
	assert.Equal(t, "http://docling:5001", cfg.PythonService.BaseURL)
	assert.Equal(t, "secret", cfg.PythonService.APIKey)
	assert.True(t, cfg.Queue.Enable)
	assert.Equal(t, 30*time.Second, cfg.Queue.RetryDelay)
	// 未配置的项保留默认值
	assert.Equal(t, 4, cfg.Queue.Concurrency)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("CACHE_TYPE", "redis")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Type)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("DOCLING_SET", "value")

	assert.Equal(t, "value", expandEnv("${DOCLING_SET}"))
	assert.Equal(t, "${DOCLING_UNSET_VAR}", expandEnv("${DOCLING_UNSET_VAR}"))
	assert.Equal(t, "plain", expandEnv("plain"))
	assert.Equal(t, "prefix-${DOCLING_SET}", expandEnv("prefix-${DOCLING_SET}"))
}
