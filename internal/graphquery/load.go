package graphquery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/swiftgraph/indexer/internal/models"
	"github.com/swiftgraph/indexer/internal/store"
)

// Loader produces one store's entity/relationship states for a graph
// query. FastLoader and VersionedLoader are the two implementations:
// FastLoader (the fast path, §4.6.2) reads the materialized "_latest"
// tables directly (valid whenever no feature overlay needs tombstone
// visibility);
// VersionedLoader reads the versioned tables so a feature store's
// deletions can be seen and merged against master (§4.6 step 1).
type Loader interface {
	Load(ctx context.Context) ([]entityState, []relationshipState, error)
}

// FastLoader implements the fast path (§4.6.2): entities and
// relationships come straight from entity_latest / relationship_latest,
// which by construction hold only non-deleted rows. NULL columns read
// as empty strings, so an edge whose target is still unresolved has an
// empty TargetStableID.
type FastLoader struct {
	Store  *store.Store
	Origin string // "master" or "feature"
}

type entityLatestRow struct {
	StableID    string `db:"stable_id"`
	Name        string `db:"name"`
	Kind        string `db:"kind"`
	Module      string `db:"module"`
	FilePath    string `db:"file_path"`
	Signature   string `db:"signature"`
	Properties  string `db:"properties"`
	MemberNames string `db:"member_names"`
	TargetType  string `db:"target_type"`
	Visibility  string `db:"visibility"`
}

type relationshipLatestRow struct {
	SourceStableID string `db:"source_stable_id"`
	SourceName     string `db:"source_name"`
	TargetStableID string `db:"target_stable_id"`
	TargetName     string `db:"target_name"`
	TargetModule   string `db:"target_module"`
	EdgeType       string `db:"edge_type"`
	Metadata       string `db:"metadata"`
}

func (l FastLoader) Load(ctx context.Context) ([]entityState, []relationshipState, error) {
	var entityRows []entityLatestRow
	if err := l.Store.Select(ctx, &entityRows, `SELECT stable_id, name, kind, module, COALESCE(file_path, '') AS file_path, COALESCE(signature, '') AS signature, COALESCE(properties, '') AS properties, COALESCE(member_names, '') AS member_names, COALESCE(target_type, '') AS target_type, COALESCE(visibility, '') AS visibility FROM entity_latest`); err != nil {
		return nil, nil, err
	}

	var extRows []extensionLatestRow
	if err := l.Store.Select(ctx, &extRows, `SELECT COALESCE(entity_stable_id, '') AS entity_stable_id, extended_type, COALESCE(visibility, '') AS visibility, COALESCE(constraints, '') AS constraints, COALESCE(conformances, '') AS conformances FROM extension_latest`); err != nil {
		return nil, nil, err
	}
	extsByEntity := make(map[string][]ExtensionSummary, len(extRows))
	for _, r := range extRows {
		extsByEntity[r.EntityStableID] = append(extsByEntity[r.EntityStableID], r.toSummary())
	}

	states := make([]entityState, 0, len(entityRows))
	for _, r := range entityRows {
		states = append(states, entityState{StableID: r.StableID, Node: r.toNode(l.Origin, extsByEntity[r.StableID])})
	}

	var relRows []relationshipLatestRow
	if err := l.Store.Select(ctx, &relRows, `SELECT source_stable_id, source_name, COALESCE(target_stable_id, '') AS target_stable_id, target_name, COALESCE(target_module, '') AS target_module, edge_type, COALESCE(metadata, '') AS metadata FROM relationship_latest`); err != nil {
		return nil, nil, err
	}
	relStates := make([]relationshipState, 0, len(relRows))
	for _, r := range relRows {
		e := r.toEdge(l.Origin)
		relStates = append(relStates, relationshipState{Key: relationshipKey(e), Edge: e})
	}

	return states, relStates, nil
}

type extensionLatestRow struct {
	EntityStableID string `db:"entity_stable_id"`
	ExtendedType   string `db:"extended_type"`
	Visibility     string `db:"visibility"`
	Constraints    string `db:"constraints"`
	Conformances   string `db:"conformances"`
}

func (r extensionLatestRow) toSummary() ExtensionSummary {
	var conformances []string
	if r.Conformances != "" {
		_ = json.Unmarshal([]byte(r.Conformances), &conformances)
	}
	return ExtensionSummary{ExtendedType: r.ExtendedType, Visibility: r.Visibility, Constraints: r.Constraints, Conformances: conformances}
}

func (r entityLatestRow) toNode(origin string, exts []ExtensionSummary) node {
	var props map[string]string
	if r.Properties != "" {
		_ = json.Unmarshal([]byte(r.Properties), &props)
	}
	var members []string
	if r.MemberNames != "" {
		members = strings.Split(r.MemberNames, "|")
	}
	return node{
		StableID: r.StableID, Name: r.Name, Module: r.Module, Kind: models.EntityKind(r.Kind),
		TargetType: models.TargetType(r.TargetType), Visibility: r.Visibility, FilePath: r.FilePath,
		Signature: r.Signature, Properties: props, MemberNames: members, Origin: origin, Extensions: exts,
	}
}

func (r relationshipLatestRow) toEdge(origin string) edge {
	var meta map[string]string
	if r.Metadata != "" {
		_ = json.Unmarshal([]byte(r.Metadata), &meta)
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return edge{
		SourceStableID: r.SourceStableID, SourceName: r.SourceName, TargetStableID: r.TargetStableID,
		TargetName: r.TargetName, TargetModule: r.TargetModule, EdgeType: models.EdgeType(r.EdgeType),
		Metadata: meta, Origin: origin,
	}
}

// VersionedLoader implements the slower, tombstone-aware path used
// whenever a feature overlay is present: it reads the latest version
// row per entity_id / relationship dedup key directly from the
// versioned tables, carrying the is_deleted flag so mergeEntities and
// mergeRelationships can honor cross-store tombstones (§4.6 step 1).
type VersionedLoader struct {
	Store  *store.Store
	Origin string
}

type entityVersionRow struct {
	StableID   string `db:"stable_id"`
	Name       string `db:"name"`
	Kind       string `db:"kind"`
	Module     string `db:"module"`
	FilePath   string `db:"file_path"`
	Signature  string `db:"signature"`
	Properties string `db:"properties"`
	IsDeleted  bool   `db:"is_deleted"`
}

func (l VersionedLoader) Load(ctx context.Context) ([]entityState, []relationshipState, error) {
	var rows []entityVersionRow
	query := `
		WITH latest AS (
			SELECT entity_id, MAX(commit_id) AS commit_id
			FROM entity_versions
			GROUP BY entity_id
		)
		SELECT e.stable_id, e.name, e.kind, e.module, COALESCE(f.path, '') AS file_path,
		       COALESCE(ev.signature, '') AS signature, COALESCE(ev.properties, '') AS properties, ev.is_deleted
		FROM latest
		JOIN entity_versions ev ON ev.entity_id = latest.entity_id AND ev.commit_id = latest.commit_id
		JOIN entities e ON e.id = latest.entity_id
		LEFT JOIN files f ON f.id = ev.file_id
	`
	if err := l.Store.Select(ctx, &rows, query); err != nil {
		return nil, nil, err
	}

	states := make([]entityState, 0, len(rows))
	for _, r := range rows {
		var props map[string]string
		if r.Properties != "" {
			_ = json.Unmarshal([]byte(r.Properties), &props)
		}
		n := node{
			StableID: r.StableID, Name: r.Name, Module: r.Module, Kind: models.EntityKind(r.Kind),
			FilePath: r.FilePath, Signature: r.Signature, Properties: props, Origin: l.Origin,
		}
		if tt, ok := props["target_type"]; ok {
			n.TargetType = models.TargetType(tt)
		}
		if v, ok := props["visibility"]; ok {
			n.Visibility = v
		}
		states = append(states, entityState{StableID: r.StableID, Deleted: r.IsDeleted, Node: n})
	}

	type relVersionRow struct {
		SourceStableID string `db:"source_stable_id"`
		SourceName     string `db:"source_name"`
		TargetStableID string `db:"target_stable_id"`
		TargetName     string `db:"target_name"`
		TargetModule   string `db:"target_module"`
		EdgeType       string `db:"edge_type"`
		Metadata       string `db:"metadata"`
		IsDeleted      bool   `db:"is_deleted"`
	}
	var relRows []relVersionRow
	relQuery := `
		WITH ranked AS (
			SELECT er.*,
			       ROW_NUMBER() OVER (
			           PARTITION BY er.source_entity_id, COALESCE(er.target_entity_id, -1),
			                        er.target_name, COALESCE(er.target_module, ''), er.edge_type
			           ORDER BY er.commit_id DESC, er.id DESC
			       ) AS rn
			FROM entity_relationships er
		)
		SELECT src.stable_id AS source_stable_id, src.name AS source_name,
		       COALESCE(tgt.stable_id, '') AS target_stable_id, ranked.target_name,
		       COALESCE(ranked.target_module, '') AS target_module,
		       ranked.edge_type, COALESCE(ranked.metadata, '') AS metadata, ranked.is_deleted
		FROM ranked
		JOIN entities src ON src.id = ranked.source_entity_id
		LEFT JOIN entities tgt ON tgt.id = ranked.target_entity_id
		WHERE ranked.rn = 1
	`
	if err := l.Store.Select(ctx, &relRows, relQuery); err != nil {
		return nil, nil, err
	}
	relStates := make([]relationshipState, 0, len(relRows))
	for _, r := range relRows {
		var meta map[string]string
		if r.Metadata != "" {
			_ = json.Unmarshal([]byte(r.Metadata), &meta)
		}
		if meta == nil {
			meta = map[string]string{}
		}
		e := edge{
			SourceStableID: r.SourceStableID, SourceName: r.SourceName, TargetStableID: r.TargetStableID,
			TargetName: r.TargetName, TargetModule: r.TargetModule, EdgeType: models.EdgeType(r.EdgeType),
			Metadata: meta, Origin: l.Origin,
		}
		relStates = append(relStates, relationshipState{Key: relationshipKey(e), Deleted: r.IsDeleted, Edge: e})
	}

	return states, relStates, nil
}
