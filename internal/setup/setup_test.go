package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, BinaryName)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
	return path
}

func TestLoadClientConfig_Missing(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadClientConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestConfigure_PreservesExistingEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {"other": {"command": "/bin/other", "args": ["--x"]}}
}`), 0644))

	binary := fakeBinary(t, dir, 0755)
	written, err := Configure(Options{ConfigPath: path, BinaryPath: binary, DataDir: "/data/snpedia"})
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Ctrl+Space", raw["globalShortcut"])

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, MCPServerConfig{Command: "/bin/other", Args: []string{"--x"}}, cfg.MCPServers["other"])
	assert.Equal(t, MCPServerConfig{
		Command: binary,
		Env:     map[string]string{"SNPEDIA_DATA_DIR": "/data/snpedia"},
	}, cfg.MCPServers[ServerName])
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	status, err := GetStatus(path)
	require.NoError(t, err)
	assert.False(t, status.Configured)
	assert.Equal(t, []string{"server is not registered"}, status.Issues)

	binary := fakeBinary(t, dir, 0755)
	_, err = Configure(Options{ConfigPath: path, BinaryPath: binary, DataDir: "/data"})
	require.NoError(t, err)

	status, err = GetStatus(path)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.Equal(t, binary, status.BinaryPath)
	assert.Equal(t, "/data", status.DataDir)
	assert.Empty(t, status.Issues)

	require.NoError(t, os.Chmod(binary, 0644))
	status, err = GetStatus(path)
	require.NoError(t, err)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not executable")

	require.NoError(t, os.Remove(binary))
	status, err = GetStatus(path)
	require.NoError(t, err)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "not found")
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	removed, err := Remove(path)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = Configure(Options{ConfigPath: path, BinaryPath: fakeBinary(t, dir, 0755)})
	require.NoError(t, err)

	removed, err = Remove(path)
	require.NoError(t, err)
	assert.True(t, removed)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.NotContains(t, cfg.MCPServers, ServerName)
}

func TestFindBinary_OnPath(t *testing.T) {
	dir := t.TempDir()
	binary := fakeBinary(t, dir, 0755)
	t.Setenv("PATH", dir)

	found, err := FindBinary()
	require.NoError(t, err)
	assert.Equal(t, binary, found)
}
