package settingscore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "swiftgraph.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("repo_path: /repos/FeedKit\ndefault_branch: develop\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "/repos/FeedKit", cfg.RepoPath)
	assert.Equal(t, "develop", cfg.DefaultBranch)
	assert.Equal(t, Default().MasterDBPath, cfg.MasterDBPath)
}

func TestLoadWithMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().DefaultBranch, cfg.DefaultBranch)
}
