package graphquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/models"
)

type staticLoader struct {
	entities []entityState
	rels     []relationshipState
}

func (l staticLoader) Load(ctx context.Context) ([]entityState, []relationshipState, error) {
	return l.entities, l.rels, nil
}

func entityFixture(origin, stableID, name, module string, kind models.EntityKind, targetType models.TargetType) entityState {
	return entityState{
		StableID: stableID,
		Node: node{
			StableID: stableID, Name: name, Module: module, Kind: kind,
			TargetType: targetType, Origin: origin,
		},
	}
}

func relFixture(origin, sourceID, sourceName, targetID, targetName, targetModule string, edgeType models.EdgeType) relationshipState {
	e := edge{
		SourceStableID: sourceID, SourceName: sourceName, TargetStableID: targetID,
		TargetName: targetName, TargetModule: targetModule, EdgeType: edgeType,
		Metadata: map[string]string{}, Origin: origin,
	}
	return relationshipState{Key: relationshipKey(e), Edge: e}
}

func intPtr(v int) *int { return &v }

// S4: stop-at and createdBy chain.
func TestQueryStopAtAndCreatedByChain(t *testing.T) {
	entities := []entityState{
		entityFixture("master", "assembly", "Assembly", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "presenter", "Presenter", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "view", "View", "App", models.KindClass, models.TargetApp),
	}
	rels := []relationshipState{
		relFixture("master", "assembly", "Assembly", "presenter", "Presenter", "App", models.EdgeCreates),
		relFixture("master", "assembly", "Assembly", "view", "View", "App", models.EdgeCreates),
		relFixture("master", "view", "View", "presenter", "Presenter", "App", models.EdgeStrongReference),
	}
	loader := staticLoader{entities: entities, rels: rels}

	payload, err := Query(context.Background(), loader, nil, Params{
		EntityName: "View", StopName: "Assembly", Direction: DirectionBoth,
	})
	require.NoError(t, err)

	require.NotNil(t, payload.StopAt)
	assert.Equal(t, "Assembly", *payload.StopAt)

	nodeNames := make([]string, 0, len(payload.Nodes))
	for _, n := range payload.Nodes {
		nodeNames = append(nodeNames, n.Name)
	}
	assert.ElementsMatch(t, []string{"View", "Presenter"}, nodeNames)
	assert.NotContains(t, nodeNames, "Assembly")

	found := map[string]bool{}
	for _, e := range payload.Edges {
		found[e.Type+":"+e.Source+":"+e.Target] = true
	}
	assert.True(t, found["createdBy:View:Assembly"])
	assert.True(t, found["createdBy:Presenter:Assembly"])
	assert.True(t, found["strongReference:View:Presenter"])
}

// S5: max-hops limit.
func TestQueryMaxHopsLimit(t *testing.T) {
	entities := []entityState{
		entityFixture("master", "a", "A", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "b", "B", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "c", "C", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "d", "D", "App", models.KindClass, models.TargetApp),
	}
	rels := []relationshipState{
		relFixture("master", "a", "A", "b", "B", "App", models.EdgeStrongReference),
		relFixture("master", "b", "B", "c", "C", "App", models.EdgeStrongReference),
		relFixture("master", "c", "C", "d", "D", "App", models.EdgeStrongReference),
	}
	loader := staticLoader{entities: entities, rels: rels}

	payload, err := Query(context.Background(), loader, nil, Params{
		EntityName: "A", IncludeSiblingSubgraphs: true, Direction: DirectionDownstream, MaxHops: intPtr(1),
	})
	require.NoError(t, err)

	found := map[string]bool{}
	for _, e := range payload.Edges {
		found[e.Source+"->"+e.Target] = true
	}
	assert.True(t, found["A->B"])
	assert.False(t, found["B->C"])
	assert.False(t, found["C->D"])
}

// S6: target-type filter.
func TestQueryTargetTypeFilter(t *testing.T) {
	entities := []entityState{
		entityFixture("master", "presenter", "Presenter", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "presentertests", "PresenterTests", "AppTests", models.KindClass, models.TargetTest),
	}
	rels := []relationshipState{
		relFixture("master", "presentertests", "PresenterTests", "presenter", "Presenter", "App", models.EdgeStrongReference),
	}
	loader := staticLoader{entities: entities, rels: rels}

	payload, err := Query(context.Background(), loader, nil, Params{
		EntityName: "Presenter", TargetType: FilterApp, Direction: DirectionBoth,
	})
	require.NoError(t, err)
	for _, n := range payload.Nodes {
		assert.NotEqual(t, "PresenterTests", n.Name)
	}

	_, err = Query(context.Background(), loader, nil, Params{
		EntityName: "PresenterTests", TargetType: FilterApp, Direction: DirectionBoth,
	})
	require.Error(t, err)
	assert.True(t, codeerrors.Is(err, codeerrors.KindFilterMismatch))
}

// Invariant 8: max_hops = 0 yields one node and zero edges.
func TestQueryMaxHopsZeroYieldsSingleNode(t *testing.T) {
	entities := []entityState{
		entityFixture("master", "a", "A", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "b", "B", "App", models.KindClass, models.TargetApp),
	}
	rels := []relationshipState{
		relFixture("master", "a", "A", "b", "B", "App", models.EdgeStrongReference),
	}
	loader := staticLoader{entities: entities, rels: rels}

	payload, err := Query(context.Background(), loader, nil, Params{
		EntityName: "A", Direction: DirectionBoth, MaxHops: intPtr(0),
	})
	require.NoError(t, err)
	assert.Len(t, payload.Nodes, 1)
	assert.Equal(t, "A", payload.Nodes[0].Name)
	assert.Empty(t, payload.Edges)
}

// Invariant 9 / S9-equivalent: feature overlay precedence, including
// tombstone absence.
func TestQueryFeatureOverlayPrecedenceAndTombstones(t *testing.T) {
	masterEntities := []entityState{
		entityFixture("master", "presenter", "Presenter", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "view", "View", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "obsolete", "Obsolete", "App", models.KindClass, models.TargetApp),
	}
	masterRels := []relationshipState{
		relFixture("master", "presenter", "Presenter", "view", "View", "App", models.EdgeWeakReference),
	}
	featureEntities := []entityState{
		entityFixture("feature", "obsolete", "Obsolete", "App", models.KindClass, models.TargetApp),
	}
	featureEntities[0].Deleted = true

	featureRel := relFixture("feature", "presenter", "Presenter", "view", "View", "App", models.EdgeWeakReference)
	featureRel.Edge.Metadata = map[string]string{"branch": "feature"}

	master := staticLoader{entities: masterEntities, rels: masterRels}
	feature := staticLoader{entities: featureEntities, rels: []relationshipState{featureRel}}

	payload, err := Query(context.Background(), master, feature, Params{
		EntityName: "Presenter", Direction: DirectionBoth, IncludeSiblingSubgraphs: true,
	})
	require.NoError(t, err)

	for _, n := range payload.Nodes {
		assert.NotEqual(t, "Obsolete", n.Name)
	}

	require.Len(t, payload.Edges, 1)
	assert.Equal(t, "feature", payload.Edges[0].Metadata["origin"])
	assert.Equal(t, "feature", payload.Edges[0].Metadata["branch"])
}

// Invariant 7: every edge's endpoints are in the node set or equal stop_at.
func TestQueryEdgeEndpointsAreInNodeSetOrStopAt(t *testing.T) {
	entities := []entityState{
		entityFixture("master", "assembly", "Assembly", "App", models.KindClass, models.TargetApp),
		entityFixture("master", "presenter", "Presenter", "App", models.KindClass, models.TargetApp),
	}
	rels := []relationshipState{
		relFixture("master", "assembly", "Assembly", "presenter", "Presenter", "App", models.EdgeCreates),
	}
	loader := staticLoader{entities: entities, rels: rels}

	payload, err := Query(context.Background(), loader, nil, Params{
		EntityName: "Presenter", StopName: "Assembly", Direction: DirectionBoth,
	})
	require.NoError(t, err)

	nodeNames := map[string]bool{}
	for _, n := range payload.Nodes {
		nodeNames[n.Name] = true
	}
	stopName := ""
	if payload.StopAt != nil {
		stopName = *payload.StopAt
	}
	for _, e := range payload.Edges {
		assert.True(t, nodeNames[e.Source] || e.Source == stopName)
		assert.True(t, nodeNames[e.Target] || e.Target == stopName)
	}
}

func TestQueryUnknownEntityReturnsNotFound(t *testing.T) {
	loader := staticLoader{}
	_, err := Query(context.Background(), loader, nil, Params{EntityName: "Nope", Direction: DirectionBoth})
	require.Error(t, err)
	assert.True(t, codeerrors.Is(err, codeerrors.KindNotFound))
}
