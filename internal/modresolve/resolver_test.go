package modresolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedKitManifest = `
let project = Project.Module(
    name: "FeedKit",
    targets: [
        .Target(
            name: "FeedKit",
            product: .framework,
            sources: ["Sources/**"],
            tests: [
                .Tests(testsType: "unit", sources: ["Tests/**"])
            ]
        ),
        .Target(
            name: "FeedKitInterfaces",
            product: .io,
            sources: ["Interfaces/**"]
        )
    ]
)
`

func writeManifest(t *testing.T, root, relDir string) {
	t.Helper()
	dir := filepath.Join(root, relDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Project.swift"), []byte(feedKitManifest), 0o644))
}

func TestResolverLongestPrefixMatch(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "Projects/FeedKit")

	r, err := NewResolver(root)
	require.NoError(t, err)

	module, targetType := r.ResolveModule("Projects/FeedKit/Sources/Feed.swift")
	assert.Equal(t, "FeedKit", module)
	assert.Equal(t, "app", targetType)
}

func TestResolverTestRootsWinOverBroaderAppRoot(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "Projects/FeedKit")

	r, err := NewResolver(root)
	require.NoError(t, err)

	module, targetType := r.ResolveModule("Projects/FeedKit/Tests/FeedTests.swift")
	assert.Equal(t, "FeedKitUnitTests", module)
	assert.Equal(t, "test", targetType)
}

func TestResolverInterfaceTarget(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "Projects/FeedKit")

	r, err := NewResolver(root)
	require.NoError(t, err)

	module, targetType := r.ResolveModule("Projects/FeedKit/Interfaces/FeedProtocol.swift")
	assert.Equal(t, "FeedKitInterfaces", module)
	assert.Equal(t, "interface", targetType)
}

func TestResolverFallsBackToParentDirectoryName(t *testing.T) {
	root := t.TempDir()

	r, err := NewResolver(root)
	require.NoError(t, err)

	module, targetType := r.ResolveModule("Scripts/Generator/Main.swift")
	assert.Equal(t, "Generator", module)
	assert.Equal(t, "app", targetType)
}

func TestResolverFallsBackToRootForTopLevelFile(t *testing.T) {
	root := t.TempDir()

	r, err := NewResolver(root)
	require.NoError(t, err)

	module, _ := r.ResolveModule("main.swift")
	assert.Equal(t, "root", module)
}

func TestResolverCachesLookups(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "Projects/FeedKit")

	r, err := NewResolver(root)
	require.NoError(t, err)

	first, ok1 := r.TargetFor("Projects/FeedKit/Sources/Feed.swift")
	second, ok2 := r.TargetFor("Projects/FeedKit/Sources/Feed.swift")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Same(t, first, second)
}
