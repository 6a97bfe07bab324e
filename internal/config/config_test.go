package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadS3(t *testing.T) {
	path := writeConfig(t, `
backend:
  kind: s3
s3:
  endpoint: http://minio:9000
  bucket: kanban
  access_key: minio
  secret_key: minio123
  use_path_style: true
board:
  default_lists: [Backlog, Doing, Shipped]
client:
  timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendS3, cfg.Backend.Kind)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.Equal(t, "board.json", cfg.S3.Key, "default survives partial section")
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, []string{"Backlog", "Doing", "Shipped"}, cfg.Board.DefaultLists)
	assert.Equal(t, 2*time.Second, cfg.Client.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown kind", "backend:\n  kind: postgres\n", "unknown backend kind"},
		{"s3 without endpoint", "backend:\n  kind: s3\ns3:\n  bucket: b\n", "s3.endpoint is required"},
		{"s3 without bucket", "backend:\n  kind: s3\ns3:\n  endpoint: http://x\n", "s3.bucket is required"},
		{"redis without addr", "backend:\n  kind: redis\nredis:\n  addr: \"\"\n", "redis.addr is required"},
		{"unknown field", "server:\n  port: 80\n", "field port not found"},
		{"bad yaml", "server: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
