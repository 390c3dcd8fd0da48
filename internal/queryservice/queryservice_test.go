package queryservice

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/graphquery"
	"github.com/swiftgraph/indexer/internal/indexer"
	"github.com/swiftgraph/indexer/internal/settingscore"
	"github.com/swiftgraph/indexer/internal/store"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

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

func seedRepo(t *testing.T) (*settingscore.Settings, *store.Store) {
	repoDir := t.TempDir()
	runGit(t, repoDir, "init", "-q", "-b", "main")
	writeFile(t, repoDir, "Sources/Greeter.swift",
		"struct Greeter {\n    func greet() -> String { return \"hi\" }\n}\n")
	runGit(t, repoDir, "add", ".")
	runGit(t, repoDir, "commit", "-q", "-m", "initial")

	settings := settingscore.Default()
	settings.RepoPath = repoDir
	settings.MasterDBPath = filepath.Join(t.TempDir(), "master.db")
	settings.FeatureDBPath = filepath.Join(t.TempDir(), "feature.db")

	st, err := store.Open(settings.MasterDBPath, quietLogger())
	require.NoError(t, err)

	idx := indexer.New(settings, st, quietLogger())
	_, err = idx.Initialize(context.Background())
	require.NoError(t, err)

	return settings, st
}

func TestSearchFindsByNameSubstring(t *testing.T) {
	settings, st := seedRepo(t)
	defer st.Close()

	qs := New(settings, st, quietLogger())
	matches, err := qs.Search(context.Background(), "greet", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "Greeter", matches[0].Name)
}

func TestMembersListsEntityMembers(t *testing.T) {
	settings, st := seedRepo(t)
	defer st.Close()

	qs := New(settings, st, quietLogger())
	members, err := qs.Members(context.Background(), []string{"Greeter"}, "")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "greet", members[0].MemberName)
}

func TestGraphUnknownEntityReturnsNotFound(t *testing.T) {
	settings, st := seedRepo(t)
	defer st.Close()

	qs := New(settings, st, quietLogger())
	_, err := qs.Graph(context.Background(), graphquery.Params{
		EntityName: "Nope", Direction: graphquery.DirectionBoth, TargetType: graphquery.FilterAll,
	})
	require.Error(t, err)
	require.True(t, codeerrors.Is(err, codeerrors.KindNotFound))
}

func TestGraphUsesMasterOnlyWhenNoFeatureStampMatches(t *testing.T) {
	settings, st := seedRepo(t)
	defer st.Close()

	qs := New(settings, st, quietLogger())
	payload, err := qs.Graph(context.Background(), graphquery.Params{
		EntityName: "Greeter", Direction: graphquery.DirectionBoth, TargetType: graphquery.FilterAll,
	})
	require.NoError(t, err)
	require.Equal(t, "Greeter", payload.Entity.Name)
	require.Len(t, payload.Nodes, 1)
	require.Equal(t, "master", payload.Nodes[0].Origin)
}
