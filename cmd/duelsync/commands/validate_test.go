package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duelsync.yml")
	require.NoError(t, os.WriteFile(path, []byte(`instance: prod
bot_handle: duelbot
snapshot_url: "http://ledger:9000"
creator: local
`), 0644))

	stdout, stderr, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "✓ "+path+" is valid")
	assert.Contains(t, stdout, "instance:   prod")
	assert.Contains(t, stdout, "bot:        @duelbot")
	assert.Contains(t, stdout, "creator:    local")
	assert.Contains(t, stdout, "redis_url not set")
}

func TestValidate_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duelsync.yml")
	require.NoError(t, os.WriteFile(path, []byte("instance: prod\n"), 0644))

	_, stderr, err := execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
	assert.Contains(t, stderr, "snapshot_url is required")
}

func TestValidate_MissingFile(t *testing.T) {
	_, stderr, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Equal(t, "config file not found", err.Error())
	assert.Contains(t, stderr, "duelsync validate --config <path>")
}
