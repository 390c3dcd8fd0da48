package graphquery

// entityState is one stable_id's latest known state in one store,
// including whether that latest state is a tombstone — needed so a
// feature-store deletion can erase a master entry even though neither
// store's own "latest" view would otherwise express a deletion once
// merged (§4.6 step 1: "Tombstones from either side remove entries").
type entityState struct {
	StableID string
	Deleted  bool
	Node     node
}

// relationshipState is the analogous latest-state-with-tombstone view
// for one relationship dedup key (source, target_stable_id, target_name,
// target_module, edge_type).
type relationshipState struct {
	Key     relKey
	Deleted bool
	Edge    edge
}

type relKey struct {
	SourceStableID string
	TargetStableID string
	TargetName     string
	TargetModule   string
	EdgeType       string
}

func relationshipKey(e edge) relKey {
	return relKey{
		SourceStableID: e.SourceStableID,
		TargetStableID: e.TargetStableID,
		TargetName:     e.TargetName,
		TargetModule:   e.TargetModule,
		EdgeType:       string(e.EdgeType),
	}
}

// mergeEntities overlays feature states onto master by stable_id
// (feature wins whenever present, deleted or not), then drops every
// stable_id whose winning state is a tombstone.
func mergeEntities(master, feature []entityState) map[string]node {
	merged := make(map[string]entityState, len(master)+len(feature))
	for _, e := range master {
		merged[e.StableID] = e
	}
	for _, e := range feature {
		merged[e.StableID] = e
	}
	out := make(map[string]node, len(merged))
	for id, e := range merged {
		if e.Deleted {
			continue
		}
		out[id] = e.Node
	}
	return out
}

// mergeRelationships is mergeEntities' analog keyed by the 5-tuple
// dedup key (§4.6 step 1 / §6 relationship_latest unique constraint).
func mergeRelationships(master, feature []relationshipState) []edge {
	merged := make(map[relKey]relationshipState, len(master)+len(feature))
	for _, r := range master {
		merged[r.Key] = r
	}
	for _, r := range feature {
		merged[r.Key] = r
	}
	out := make([]edge, 0, len(merged))
	for _, r := range merged {
		if r.Deleted {
			continue
		}
		out = append(out, r.Edge)
	}
	return out
}

// pruneDanglingRelationships drops any edge whose source or (resolved)
// target stable_id was removed by tombstone merging, per §4.6 step 1:
// "Relationships whose source or target is in the deleted set are
// pruned."
func pruneDanglingRelationships(edges []edge, entities map[string]node) []edge {
	out := make([]edge, 0, len(edges))
	for _, e := range edges {
		if _, ok := entities[e.SourceStableID]; !ok {
			continue
		}
		if e.TargetStableID != "" {
			if _, ok := entities[e.TargetStableID]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
