// Package graphcache caches graph-query payloads in memory, keyed on
// the query's parameters plus the commit hash they were computed
// against (Design Note 9): a branch switch or new commit changes the
// key, so stale entries simply age out rather than needing an
// explicit invalidation pass.
package graphcache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/swiftgraph/indexer/internal/graphquery"
)

// Cache is an instance-owned, TTL-bounded cache of graph payloads.
type Cache struct {
	inner  *gocache.Cache
	logger *logrus.Logger
}

// New builds a Cache with the given TTL and a cleanup sweep at 2x TTL,
// mirroring go-cache's documented usage pattern.
func New(ttl time.Duration, logger *logrus.Logger) *Cache {
	return &Cache{inner: gocache.New(ttl, 2*ttl), logger: logger}
}

// Key identifies one cached graph query: every parameter that affects
// the result, plus the commit hash(es) the data was loaded at.
type Key struct {
	EntityName              string
	StopName                string
	Direction               graphquery.Direction
	IncludeSiblingSubgraphs bool
	MaxHops                 *int
	TargetType              graphquery.TargetTypeFilter
	MasterCommitHash        string
	FeatureCommitHash       string // "" when no feature overlay is in play
}

func (k Key) token() string {
	hops := "nil"
	if k.MaxHops != nil {
		hops = fmt.Sprintf("%d", *k.MaxHops)
	}
	return fmt.Sprintf("%s|%s|%s|%t|%s|%s|%s|%s",
		k.EntityName, k.StopName, k.Direction, k.IncludeSiblingSubgraphs, hops,
		k.TargetType, k.MasterCommitHash, k.FeatureCommitHash)
}

// Get returns a cached payload if present and unexpired.
func (c *Cache) Get(key Key) (*graphquery.Payload, bool) {
	v, ok := c.inner.Get(key.token())
	if !ok {
		return nil, false
	}
	payload, ok := v.(*graphquery.Payload)
	return payload, ok
}

// Set stores a payload under key with the cache's default TTL. Each
// store is tagged with a fresh entry id for tracing cache churn in
// logs, since Key.token() alone is too long to read at a glance.
func (c *Cache) Set(key Key, payload *graphquery.Payload) {
	c.inner.SetDefault(key.token(), payload)
	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"entity": key.EntityName,
			"entry":  uuid.NewString(),
		}).Debug("graph payload cached")
	}
}
