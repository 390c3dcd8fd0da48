package graphcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftgraph/indexer/internal/graphquery"
)

func TestCacheMissOnCommitHashChange(t *testing.T) {
	c := New(time.Minute, nil)
	payload := &graphquery.Payload{Entity: graphquery.EntitySummary{Name: "Greeter"}}

	key := Key{EntityName: "Greeter", Direction: graphquery.DirectionBoth, MasterCommitHash: "abc"}
	c.Set(key, payload)

	_, ok := c.Get(key)
	require.True(t, ok)

	changed := key
	changed.MasterCommitHash = "def"
	_, ok = c.Get(changed)
	require.False(t, ok)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, nil)
	key := Key{EntityName: "Greeter", MasterCommitHash: "abc"}
	c.Set(key, &graphquery.Payload{})

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get(key)
	require.False(t, ok)
}
