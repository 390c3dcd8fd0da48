package indexer

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

// S1: init-then-update, end to end over a real git repo.
func TestInitializeThenUpdate(t *testing.T) {
	repoDir := t.TempDir()
	runGit(t, repoDir, "init", "-q", "-b", "main")
	writeFile(t, repoDir, "Sources/Greeter.swift", "struct Greeter {\n    func greet() {}\n}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "initial")

	settings := settingscore.Default()
	settings.RepoPath = repoDir
	settings.MasterDBPath = filepath.Join(t.TempDir(), "master.db")

	st, err := store.Open(settings.MasterDBPath, quietLogger())
	require.NoError(t, err)
	defer st.Close()

	svc := New(settings, st, quietLogger())
	ctx := context.Background()

	head, err := svc.Initialize(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, head)

	var memberNames string
	require.NoError(t, st.Get(ctx, &memberNames, `SELECT member_names FROM entity_latest WHERE name = 'Greeter'`))
	require.Equal(t, "greet", memberNames)

	writeFile(t, repoDir, "Sources/Greeter.swift", "struct Greeter {\n    func greet() {}\n    func bye() {}\n}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "add bye")

	processed, err := svc.Update(ctx)
	require.NoError(t, err)
	require.Len(t, processed, 1)

	var count int
	require.NoError(t, st.Get(ctx, &count, `SELECT COUNT(*) FROM entity_latest WHERE name = 'Greeter'`))
	require.Equal(t, 1, count)

	require.NoError(t, st.Get(ctx, &memberNames, `SELECT member_names FROM entity_latest WHERE name = 'Greeter'`))
	require.Contains(t, memberNames, "greet")
	require.Contains(t, memberNames, "bye")
}
