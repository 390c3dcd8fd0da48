package graphquery

import (
	"fmt"
	"sort"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/models"
)

// targetTypeMatches implements §4.6 step 3's filter semantics: "app"
// keeps every target type except "test"; "test" keeps only "test".
func targetTypeMatches(t models.TargetType, filter TargetTypeFilter) bool {
	switch filter {
	case FilterTest:
		return t == models.TargetTest
	case FilterApp:
		return t != models.TargetTest
	default:
		return true
	}
}

// filterByTargetType applies §4.6 step 3: remove entities failing the
// target_type filter, and drop any relationship touching a removed
// entity. Returns an error if the start entity itself fails the filter.
func filterByTargetType(entities map[string]node, edges []edge, startID string, filter TargetTypeFilter) (map[string]node, []edge, error) {
	if filter == FilterAll || filter == "" {
		return entities, edges, nil
	}
	filtered := make(map[string]node, len(entities))
	for id, n := range entities {
		if targetTypeMatches(n.TargetType, filter) {
			filtered[id] = n
		}
	}
	if start, ok := entities[startID]; ok {
		if _, kept := filtered[startID]; !kept {
			return nil, nil, codeerrors.New(codeerrors.KindFilterMismatch,
				fmt.Sprintf("entity %q does not belong to targetType %q", start.Name, filter))
		}
	}
	return filtered, pruneDanglingRelationships(edges, filtered), nil
}

// pickStartEntity implements §4.6 step 2's name-match tie-break:
// feature origin wins, then module ascending, then stable_id.
func pickStartEntity(entities map[string]node, name string) (node, bool) {
	var candidates []node
	for _, n := range entities {
		if n.Name == name {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return node{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		ao, bo := a.Origin == "feature", b.Origin == "feature"
		if ao != bo {
			return ao
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.StableID < b.StableID
	})
	return candidates[0], true
}

// edgeDedupKey identifies one emitted payload edge for deduplication,
// since the same underlying relationship can be reached by more than
// one BFS path.
type edgeDedupKey struct {
	kind   string
	source string
	target string
	name   string
	etype  string
}

// categorized groups relationships by role for payload construction.
type categorized struct {
	createsByChild map[string][]edge // keyed by created (target) stable_id
	referenceEdges []edge            // every non-creates, non-structural edge
	structuralBySource map[string][]edge
}

func categorize(edges []edge) categorized {
	c := categorized{
		createsByChild:     make(map[string][]edge),
		structuralBySource: make(map[string][]edge),
	}
	for _, e := range edges {
		switch {
		case e.EdgeType == models.EdgeCreates:
			if e.TargetStableID != "" {
				c.createsByChild[e.TargetStableID] = append(c.createsByChild[e.TargetStableID], e)
			}
		case e.EdgeType.IsStructural():
			c.structuralBySource[e.SourceStableID] = append(c.structuralBySource[e.SourceStableID], e)
		default:
			c.referenceEdges = append(c.referenceEdges, e)
		}
	}
	return c
}

// collectFocusNodes implements §4.6.1's focus-node definition: start +
// every ancestor reachable by walking creates_by_child upward, BFS,
// stopping expansion at stopID (stopID itself is still added to focus
// so its createdBy edge can be suppressed later, but not expanded past).
func collectFocusNodes(startID, stopID string, createsByChild map[string][]edge) map[string]bool {
	focus := map[string]bool{}
	queue := []string{startID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if focus[id] {
			continue
		}
		focus[id] = true
		for _, rel := range createsByChild[id] {
			parent := rel.SourceStableID
			if parent == "" || focus[parent] {
				continue
			}
			focus[parent] = true
			if stopID == "" || parent != stopID {
				queue = append(queue, parent)
			}
		}
	}
	return focus
}

// referenceEdgeDedupKey matches the original's edge-identity tuple
// for display purposes (source, target, target_name, edge_type) —
// deliberately excludes target_module.
func referenceEdgeDedupKey(e edge) edgeDedupKey {
	return edgeDedupKey{kind: "reference", source: e.SourceStableID, target: e.TargetStableID, name: e.TargetName, etype: string(e.EdgeType)}
}

func createdByDedupKey(e edge) edgeDedupKey {
	child := e.TargetStableID
	if child == "" {
		child = e.TargetName
	}
	return edgeDedupKey{kind: "createdBy", source: e.SourceStableID, target: child}
}

// hopBoundedReferenceEdges runs a multi-source BFS along reference
// edges starting at startIDs, emitting every edge touched up to
// maxHops hops (nil = unbounded), matching §4.6.1's "BFS-bounded from
// each focus node up to max_hops hops" (Mode A) and "full
// reference-edge BFS from start_id ... up to max_hops" (Mode B,
// called with a single start id).
func hopBoundedReferenceEdges(startIDs []string, referenceEdges []edge, maxHops *int) []edge {
	adjacency := make(map[string][]edge)
	for _, e := range referenceEdges {
		adjacency[e.SourceStableID] = append(adjacency[e.SourceStableID], e)
		if e.TargetStableID != "" {
			adjacency[e.TargetStableID] = append(adjacency[e.TargetStableID], e)
		}
	}

	visited := map[string]bool{}
	frontier := make([]string, 0, len(startIDs))
	for _, id := range startIDs {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	seen := map[edgeDedupKey]bool{}
	var emitted []edge
	for hop := 0; len(frontier) > 0; hop++ {
		if maxHops != nil && hop >= *maxHops {
			break
		}
		var next []string
		for _, id := range frontier {
			for _, e := range adjacency[id] {
				key := referenceEdgeDedupKey(e)
				if !seen[key] {
					seen[key] = true
					emitted = append(emitted, e)
				}
				other := otherEndpoint(e, id)
				if other != "" && !visited[other] {
					visited[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}
	return emitted
}

func otherEndpoint(e edge, from string) string {
	if e.SourceStableID == from {
		return e.TargetStableID
	}
	return e.SourceStableID
}

// buildPayload implements §4.6.1 in full: focus/display node
// derivation, Mode A/B edge emission, structural-edge attachment, the
// solitary-start-node case, and max_hops=0's early return.
func buildPayload(entities map[string]node, edges []edge, start node, stopID string, p Params) Payload {
	entityLabel := func(stableID, fallback string) string {
		if stableID != "" {
			if n, ok := entities[stableID]; ok {
				return n.Name
			}
		}
		if fallback != "" {
			return fallback
		}
		return "<unknown>"
	}

	var stopAt *string
	if stopID != "" {
		if n, ok := entities[stopID]; ok {
			name := n.Name
			stopAt = &name
		}
	}

	base := Payload{
		Entity: EntitySummary{Name: start.Name, Module: start.Module, Kind: string(start.Kind), StableID: start.StableID},
		StopAt: stopAt, Direction: p.Direction, IncludeSiblingSubgraphs: p.IncludeSiblingSubgraphs,
		MaxHops: p.MaxHops, TargetTypeFilter: p.TargetType,
	}

	if p.MaxHops != nil && *p.MaxHops == 0 {
		base.Nodes = []NodePayload{serializeNode(start)}
		base.Edges = []EdgePayload{}
		return base
	}

	cat := categorize(edges)
	focus := collectFocusNodes(start.StableID, stopID, cat.createsByChild)

	display := map[string]bool{}
	for id := range focus {
		display[id] = true
	}
	for _, rel := range cat.referenceEdges {
		s, t := rel.SourceStableID, rel.TargetStableID
		if focus[s] || (t != "" && focus[t]) {
			if s != "" {
				display[s] = true
			}
			if t != "" {
				display[t] = true
			}
		}
	}

	included := map[string]bool{}
	seenEdges := map[edgeDedupKey]bool{}
	var out []EdgePayload

	appendCreatedBy := func(rel edge) {
		key := createdByDedupKey(rel)
		if seenEdges[key] {
			return
		}
		seenEdges[key] = true
		meta := cloneMeta(rel.Metadata)
		meta["origin"] = rel.Origin
		meta["creator"] = rel.SourceName
		out = append(out, EdgePayload{
			Type:     "createdBy",
			Source:   entityLabel(rel.TargetStableID, rel.TargetName),
			Target:   entityLabel(rel.SourceStableID, rel.SourceName),
			Metadata: meta,
		})
		addNode(included, rel.TargetStableID, stopID)
		addNode(included, rel.SourceStableID, stopID)
	}
	appendReference := func(rel edge) {
		key := referenceEdgeDedupKey(rel)
		if seenEdges[key] {
			return
		}
		seenEdges[key] = true
		meta := cloneMeta(rel.Metadata)
		meta["origin"] = rel.Origin
		out = append(out, EdgePayload{
			Type:     string(rel.EdgeType),
			Source:   entityLabel(rel.SourceStableID, rel.SourceName),
			Target:   entityLabel(rel.TargetStableID, rel.TargetName),
			Metadata: meta,
		})
		addNode(included, rel.SourceStableID, stopID)
		addNode(included, rel.TargetStableID, stopID)
	}

	if p.IncludeSiblingSubgraphs {
		if p.Direction == DirectionDownstream || p.Direction == DirectionBoth {
			for _, rel := range hopBoundedReferenceEdges([]string{start.StableID}, cat.referenceEdges, p.MaxHops) {
				appendReference(rel)
			}
		}
		for id := range display {
			for _, rel := range cat.createsByChild[id] {
				appendCreatedBy(rel)
			}
		}
	} else {
		for id := range display {
			for _, rel := range cat.createsByChild[id] {
				appendCreatedBy(rel)
			}
		}
		if p.Direction == DirectionDownstream || p.Direction == DirectionBoth {
			focusIDs := make([]string, 0, len(focus))
			for id := range focus {
				focusIDs = append(focusIDs, id)
			}
			for _, rel := range hopBoundedReferenceEdges(focusIDs, cat.referenceEdges, p.MaxHops) {
				appendReference(rel)
			}
		}
		if p.Direction == DirectionUpstream || p.Direction == DirectionBoth {
			for id := range focus {
				if id != stopID {
					included[id] = true
				}
			}
		}
	}

	// Structural edges whose source is already included are appended
	// unconditionally, bypassing the hop budget (§4.6.1).
	for id := range included {
		for _, rel := range cat.structuralBySource[id] {
			key := referenceEdgeDedupKey(rel)
			if seenEdges[key] {
				continue
			}
			seenEdges[key] = true
			meta := cloneMeta(rel.Metadata)
			meta["origin"] = rel.Origin
			out = append(out, EdgePayload{
				Type:     string(rel.EdgeType),
				Source:   entityLabel(rel.SourceStableID, rel.SourceName),
				Target:   entityLabel(rel.TargetStableID, rel.TargetName),
				Metadata: meta,
			})
			addNode(included, rel.TargetStableID, stopID)
		}
	}

	if !included[start.StableID] && (stopID == "" || start.StableID != stopID) {
		included[start.StableID] = true
	}

	var sortedIDs []string
	for id := range included {
		if _, ok := entities[id]; ok {
			sortedIDs = append(sortedIDs, id)
		}
	}
	sort.Slice(sortedIDs, func(i, j int) bool { return entities[sortedIDs[i]].Name < entities[sortedIDs[j]].Name })

	nodes := make([]NodePayload, 0, len(sortedIDs))
	for _, id := range sortedIDs {
		nodes = append(nodes, serializeNode(entities[id]))
	}

	base.Nodes = nodes
	if out == nil {
		out = []EdgePayload{}
	}
	base.Edges = out
	return base
}

func addNode(set map[string]bool, stableID, stopID string) {
	if stableID == "" {
		return
	}
	if stopID != "" && stableID == stopID {
		return
	}
	set[stableID] = true
}

func cloneMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func serializeNode(n node) NodePayload {
	return NodePayload{
		Name: n.Name, StableID: n.StableID, Module: n.Module, Kind: string(n.Kind),
		TargetType: string(n.TargetType), Visibility: n.Visibility, FilePath: n.FilePath,
		Signature: n.Signature, Members: n.MemberNames, Origin: n.Origin, Extensions: n.Extensions,
	}
}
