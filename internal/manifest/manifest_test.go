package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
import ProjectDescription

let project = Project.Module(
    name: "FeedKit",
    targets: [
        .Target(
            name: "FeedKit",
            product: .framework,
            sources: ["Sources/**"],
            dependencies: [
                .target(name: "FeedKitInterfaces"),
                .product(name: "Logging", package: "swift-log")
            ],
            tests: [
                .Tests(
                    testsType: "unit",
                    sources: ["Tests/**"],
                    dependencies: [.target(name: "FeedKit")]
                )
            ]
        ),
        .Target(
            name: "FeedKitInterfaces",
            product: .io,
            sources: ["Interfaces/**"]
        ),
        .Target(
            name: "FeedKitMock",
            product: .framework,
            sources: ["Mocks/**"]
        )
    ]
)
`

func TestParseModuleAndTargets(t *testing.T) {
	p, err := Parse("Projects/FeedKit/Project.swift", []byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "FeedKit", p.Name)
	require.Len(t, p.Targets, 3)

	feedKit := p.Targets[0]
	assert.Equal(t, "FeedKit", feedKit.Name)
	assert.Equal(t, "app", feedKit.TargetType)
	assert.Equal(t, []string{"Sources/**"}, feedKit.Sources)

	require.Len(t, feedKit.Tests, 1)
	assert.Equal(t, "unit", feedKit.Tests[0].TestsType)
	assert.Equal(t, []string{"Tests/**"}, feedKit.Tests[0].Sources)
	assert.Equal(t, SyntheticTestTargetName("FeedKit", "unit"), "FeedKitUnitTests")

	iface := p.Targets[1]
	assert.Equal(t, "interface", iface.TargetType)

	mock := p.Targets[2]
	assert.Equal(t, "mock", mock.TargetType)
}

func TestParseDependencyNames(t *testing.T) {
	p, err := Parse("Projects/FeedKit/Project.swift", []byte(sampleManifest))
	require.NoError(t, err)

	feedKit := p.Targets[0]
	deps := feedKit.Tests[0].Dependencies
	require.Len(t, deps, 1)
	assert.Equal(t, "target:FeedKit", deps[0])
}

func TestClassifyTargetRules(t *testing.T) {
	assert.Equal(t, "test", classifyTarget("FeedKitTests", ""))
	assert.Equal(t, "test", classifyTarget("FeedKit", "unitTests"))
	assert.Equal(t, "mock", classifyTarget("FeedKitMock", ""))
	assert.Equal(t, "interface", classifyTarget("FeedKitInterface", ""))
	assert.Equal(t, "interface", classifyTarget("FeedKitIO", ""))
	assert.Equal(t, "app", classifyTarget("FeedKit", "framework"))
}

func TestParseMissingModuleCallIsError(t *testing.T) {
	_, err := Parse("Projects/Empty/Project.swift", []byte("let x = 1\n"))
	assert.Error(t, err)
}

func TestFallbackProjectName(t *testing.T) {
	assert.Equal(t, "FeedKit", fallbackProjectName("Projects/FeedKit/Project.swift"))
}
