package graphquery

import (
	"context"
	"fmt"

	"github.com/swiftgraph/indexer/internal/codeerrors"
)

// Query implements §4.6 end to end: load + merge master/feature state,
// filter by target_type, locate the start entity, and build the
// bounded payload. feature may be nil for master-only queries (the
// common case per §4.7's branch-aware gating, decided by the caller).
func Query(ctx context.Context, master Loader, feature Loader, p Params) (*Payload, error) {
	masterEntities, masterEdges, err := master.Load(ctx)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindStoreIO, "load master graph state", err)
	}

	var entities map[string]node
	var edges []edge
	if feature != nil {
		featureEntities, featureEdges, err := feature.Load(ctx)
		if err != nil {
			return nil, codeerrors.Wrap(codeerrors.KindStoreIO, "load feature graph state", err)
		}
		entities = mergeEntities(masterEntities, featureEntities)
		edges = pruneDanglingRelationships(mergeRelationships(masterEdges, featureEdges), entities)
	} else {
		entities = entitiesByID(masterEntities)
		edges = pruneDanglingRelationships(rawEdges(masterEdges), entities)
	}

	start, ok := pickStartEntity(entities, p.EntityName)
	if !ok {
		return nil, codeerrors.New(codeerrors.KindNotFound,
			fmt.Sprintf("entity %q was not found in indexed metadata", p.EntityName))
	}

	filteredEntities, filteredEdges, err := filterByTargetType(entities, edges, start.StableID, p.TargetType)
	if err != nil {
		return nil, err
	}
	start = filteredEntities[start.StableID]

	stopID := ""
	if p.StopName != "" {
		if stop, ok := pickStartEntity(filteredEntities, p.StopName); ok {
			stopID = stop.StableID
		}
	}

	payload := buildPayload(filteredEntities, filteredEdges, start, stopID, p)
	return &payload, nil
}

func entitiesByID(states []entityState) map[string]node {
	out := make(map[string]node, len(states))
	for _, s := range states {
		if s.Deleted {
			continue
		}
		out[s.StableID] = s.Node
	}
	return out
}

func rawEdges(states []relationshipState) []edge {
	out := make([]edge, 0, len(states))
	for _, s := range states {
		if s.Deleted {
			continue
		}
		out = append(out, s.Edge)
	}
	return out
}
