package codeerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithCause(t *testing.T) {
	cause := errors.New("file not found")
	err := Wrap(KindConfiguration, "repo_path missing", cause)
	assert.Contains(t, err.Error(), "configuration")
	assert.Contains(t, err.Error(), "repo_path missing")
	assert.Contains(t, err.Error(), "file not found")
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsMatchesByKind(t *testing.T) {
	err := New(KindNotFound, "Presenter")
	assert.True(t, errors.Is(err, New(KindNotFound, "")))
	assert.False(t, errors.Is(err, New(KindFilterMismatch, "")))
}

func TestFatalClassification(t *testing.T) {
	assert.True(t, New(KindConfiguration, "").Fatal())
	assert.True(t, New(KindSchema, "").Fatal())
	assert.True(t, New(KindStoreIO, "").Fatal())
	assert.False(t, New(KindParse, "").Fatal())
	assert.False(t, New(KindResolutionMiss, "").Fatal())
}

func TestWithContext(t *testing.T) {
	err := New(KindParse, "unterminated string").WithContext("file", "Sources/Greeter.swift")
	assert.Equal(t, "Sources/Greeter.swift", err.Context["file"])
}
