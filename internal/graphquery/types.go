// Package graphquery implements the centered-graph traversal engine
// (§4.6): given a start entity, it walks creation ("createdBy" chain)
// and reference edges to build a bounded, sorted payload. Graph state
// is loaded either from the materialized "_latest" tables (the fast
// path, §4.6.2) or from the versioned tables with tombstones (for a
// feature overlay). There is no lazy per-entity expansion path: every
// query loads the full entity and relationship sets of each store.
package graphquery

import "github.com/swiftgraph/indexer/internal/models"

// Direction is the traversal direction requested by the caller.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
	DirectionBoth       Direction = "both"
)

// TargetTypeFilter narrows which entities participate in a query.
type TargetTypeFilter string

const (
	FilterApp  TargetTypeFilter = "app"
	FilterTest TargetTypeFilter = "test"
	FilterAll  TargetTypeFilter = "all"
)

// Params is one graph query's input (§4.6).
type Params struct {
	EntityName              string
	StopName                string
	Direction               Direction
	IncludeSiblingSubgraphs bool
	MaxHops                 *int // nil = unbounded; pointer-to-0 = no expansion
	TargetType              TargetTypeFilter
	StopAtModuleBoundary    bool // accepted; not used by the traversal
}

// node is the merged, in-memory view of one entity for one query.
type node struct {
	StableID    string
	Name        string
	Module      string
	Kind        models.EntityKind
	TargetType  models.TargetType
	Visibility  string
	FilePath    string
	Signature   string
	Properties  map[string]string
	MemberNames []string
	Origin      string // "master" | "feature"
	Extensions  []ExtensionSummary
}

// ExtensionSummary is one extension attached to a node in the payload
// ("nodes[].extensions", §6).
type ExtensionSummary struct {
	ExtendedType string
	Visibility   string
	Constraints  string
	Conformances []string
}

// edge is the merged, in-memory view of one relationship for one query.
type edge struct {
	SourceStableID string
	SourceName     string
	TargetStableID string // empty until resolved
	TargetName     string
	TargetModule   string
	EdgeType       models.EdgeType
	Metadata       map[string]string
	Origin         string
}

// EntitySummary is the "entity" field of the payload (§6).
type EntitySummary struct {
	Name     string `json:"name"`
	Module   string `json:"module"`
	Kind     string `json:"kind"`
	StableID string `json:"stable_id"`
}

// NodePayload is one element of the payload's "nodes" array.
type NodePayload struct {
	Name       string             `json:"name"`
	StableID   string             `json:"stable_id"`
	Module     string             `json:"module"`
	Kind       string             `json:"kind"`
	TargetType string             `json:"target_type"`
	Visibility string             `json:"visibility"`
	FilePath   string             `json:"file_path"`
	Signature  string             `json:"signature"`
	Members    []string           `json:"members"`
	Origin     string             `json:"origin"`
	Extensions []ExtensionSummary `json:"extensions,omitempty"`
}

// EdgePayload is one element of the payload's "edges" array.
type EdgePayload struct {
	Type     string            `json:"type"`
	Source   string            `json:"source"`
	Target   string            `json:"target"`
	Metadata map[string]string `json:"metadata"`
}

// Payload is the full graph-query result (§6).
type Payload struct {
	Entity                  EntitySummary     `json:"entity"`
	StopAt                  *string           `json:"stop_at"`
	Direction               Direction         `json:"direction"`
	IncludeSiblingSubgraphs bool              `json:"include_sibling_subgraphs"`
	MaxHops                 *int              `json:"max_hops"`
	TargetTypeFilter        TargetTypeFilter  `json:"target_type_filter"`
	Edges                   []EdgePayload     `json:"edges"`
	Nodes                   []NodePayload     `json:"nodes"`
}
