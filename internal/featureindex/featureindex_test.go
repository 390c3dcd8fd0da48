package featureindex

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/swiftgraph/indexer/internal/settingscore"
	"github.com/swiftgraph/indexer/internal/store"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	require.NoError(t, cmd.Run())
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// S1: a feature branch with a committed change and a dirty working
// tree is fully visible through the overlay store, including the
// synthetic worktree commit.
func TestSyncIndexesBranchCommitsAndWorktree(t *testing.T) {
	repoDir := t.TempDir()
	runGit(t, repoDir, "init", "-q", "-b", "main")
	writeFile(t, repoDir, "Sources/Greeter.swift", "struct Greeter {\n    func greet() {}\n}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "initial")

	runGit(t, repoDir, "checkout", "-q", "-b", "feature/bye")
	writeFile(t, repoDir, "Sources/Bye.swift", "struct Bye {\n    func bye() {}\n}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "add bye")

	writeFile(t, repoDir, "Sources/Dirty.swift", "struct Dirty {}\n")

	settings := settingscore.Default()
	settings.RepoPath = repoDir
	settings.FeatureDBPath = filepath.Join(t.TempDir(), "feature.db")

	st, err := store.Open(settings.FeatureDBPath, quietLogger())
	require.NoError(t, err)
	defer st.Close()

	svc := New(settings, st, quietLogger())
	ctx := context.Background()

	head, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, head)

	// The feature store only holds this branch's divergence from the
	// merge-base plus the dirty worktree (§4.7's query service is what
	// overlays this onto the master store's Greeter entity).
	var names []string
	require.NoError(t, svc.store.Select(ctx, &names, `SELECT name FROM entity_latest ORDER BY name`))
	require.Equal(t, []string{"Bye", "Dirty"}, names)

	stamped, ok, err := svc.records.GetMeta(ctx, "feature_branch")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "feature/bye", stamped)
}

// S2: syncing again after the dirty file is deleted replaces the
// worktree overlay rather than accumulating it.
func TestSyncReplacesPriorWorktreeOverlay(t *testing.T) {
	repoDir := t.TempDir()
	runGit(t, repoDir, "init", "-q", "-b", "main")
	writeFile(t, repoDir, "Sources/Greeter.swift", "struct Greeter {}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "initial")
	runGit(t, repoDir, "checkout", "-q", "-b", "feature/x")

	settings := settingscore.Default()
	settings.RepoPath = repoDir
	settings.FeatureDBPath = filepath.Join(t.TempDir(), "feature.db")

	st, err := store.Open(settings.FeatureDBPath, quietLogger())
	require.NoError(t, err)
	defer st.Close()

	svc := New(settings, st, quietLogger())
	ctx := context.Background()

	writeFile(t, repoDir, "Sources/Scratch.swift", "struct Scratch {}\n")
	_, err = svc.Sync(ctx)
	require.NoError(t, err)

	var count int
	require.NoError(t, svc.store.Get(ctx, &count, `SELECT COUNT(*) FROM entity_latest WHERE name = 'Scratch'`))
	require.Equal(t, 1, count)

	require.NoError(t, os.Remove(filepath.Join(repoDir, "Sources", "Scratch.swift")))
	_, err = svc.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.store.Get(ctx, &count, `SELECT COUNT(*) FROM entity_latest WHERE name = 'Scratch'`))
	require.Equal(t, 0, count)
}

// S3: a detached HEAD skips the sync entirely.
func TestSyncSkipsDetachedHead(t *testing.T) {
	repoDir := t.TempDir()
	runGit(t, repoDir, "init", "-q", "-b", "main")
	writeFile(t, repoDir, "Sources/Greeter.swift", "struct Greeter {}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "initial")
	runGit(t, repoDir, "checkout", "-q", "--detach")

	settings := settingscore.Default()
	settings.RepoPath = repoDir
	settings.FeatureDBPath = filepath.Join(t.TempDir(), "feature.db")

	st, err := store.Open(settings.FeatureDBPath, quietLogger())
	require.NoError(t, err)
	defer st.Close()

	svc := New(settings, st, quietLogger())
	head, err := svc.Sync(context.Background())
	require.NoError(t, err)
	require.Empty(t, head)
}
