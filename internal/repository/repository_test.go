package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/swiftgraph/indexer/internal/models"
	"github.com/swiftgraph/indexer/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(nowhere{})
	s, err := store.Open(filepath.Join(t.TempDir(), "graph.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type nowhere struct{}

func (nowhere) Write(p []byte) (int, error) { return len(p), nil }

// S1: init-then-update. One commit indexes Greeter with one member;
// a second commit adds a member and entity_latest still has exactly
// one row, now reflecting two members.
func TestPersistEntitiesInitThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	repo := New(s)

	commit1, err := repo.RecordCommit(ctx, models.Commit{Hash: "c1", Branch: "main", IsMaster: true})
	require.NoError(t, err)

	greeter := models.EntityRecord{
		StableID: "swift:App:Greeter", Name: "Greeter", Kind: models.KindStruct, Module: "App",
		Language: "swift", PrimaryFilePath: "Sources/Greeter.swift",
		Properties: map[string]string{"target_type": "app"},
		Members: []models.MemberRecord{
			{Name: "greet", Kind: models.MemberFunction, Signature: "func greet()"},
		},
	}
	_, err = repo.PersistEntities(ctx, commit1, []models.EntityRecord{greeter})
	require.NoError(t, err)
	require.NoError(t, repo.RebuildLatestTables(ctx, "c1"))

	var memberNames string
	require.NoError(t, s.Get(ctx, &memberNames, `SELECT member_names FROM entity_latest WHERE name = 'Greeter'`))
	require.Equal(t, "greet", memberNames)

	commit2, err := repo.RecordCommit(ctx, models.Commit{Hash: "c2", ParentHash: "c1", Branch: "main", IsMaster: true})
	require.NoError(t, err)

	greeterV2 := greeter
	greeterV2.Members = append(greeterV2.Members, models.MemberRecord{Name: "bye", Kind: models.MemberFunction, Signature: "func bye()"})
	_, err = repo.PersistEntities(ctx, commit2, []models.EntityRecord{greeterV2})
	require.NoError(t, err)
	require.NoError(t, repo.RebuildLatestTables(ctx, "c2"))

	var count int
	require.NoError(t, s.Get(ctx, &count, `SELECT COUNT(*) FROM entity_latest WHERE name = 'Greeter'`))
	require.Equal(t, 1, count)

	require.NoError(t, s.Get(ctx, &memberNames, `SELECT member_names FROM entity_latest WHERE name = 'Greeter'`))
	require.Contains(t, memberNames, "greet")
	require.Contains(t, memberNames, "bye")
}

// S2: deleting a file tombstones its entities; the relationship rows
// targeting them are left as they are, and the next rebuild drops them
// from relationship_latest.
func TestMarkEntitiesDeletedForFileCascadesRelationships(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	repo := New(s)

	commit1, err := repo.RecordCommit(ctx, models.Commit{Hash: "c1", Branch: "main", IsMaster: true})
	require.NoError(t, err)

	presenter := models.EntityRecord{
		StableID: "swift:App:Presenter", Name: "Presenter", Kind: models.KindClass, Module: "App",
		Language: "swift", PrimaryFilePath: "Sources/Presenter.swift",
		Properties: map[string]string{"target_type": "app"},
	}
	obsolete := models.EntityRecord{
		StableID: "swift:App:ObsoleteView", Name: "ObsoleteView", Kind: models.KindClass, Module: "App",
		Language: "swift", PrimaryFilePath: "Sources/Obsolete.swift",
		Properties: map[string]string{"target_type": "app"},
	}
	ids, err := repo.PersistEntities(ctx, commit1, []models.EntityRecord{presenter, obsolete})
	require.NoError(t, err)

	rel := models.RelationshipRecord{
		SourceStableID: presenter.StableID, TargetName: "ObsoleteView", TargetModule: "App",
		EdgeType: models.EdgeStrongReference, Metadata: map[string]string{},
	}
	require.NoError(t, repo.PersistRelationships(ctx, commit1, ids, []models.RelationshipRecord{rel}))
	require.NoError(t, repo.RebuildLatestTables(ctx, "c1"))

	var preCount int
	require.NoError(t, s.Get(ctx, &preCount, `SELECT COUNT(*) FROM relationship_latest WHERE target_name = 'ObsoleteView'`))
	require.Equal(t, 1, preCount)

	commit2, err := repo.RecordCommit(ctx, models.Commit{Hash: "c2", ParentHash: "c1", Branch: "main", IsMaster: true})
	require.NoError(t, err)
	require.NoError(t, repo.MarkEntitiesDeletedForFile(ctx, "Sources/Obsolete.swift", commit2))
	require.NoError(t, repo.RebuildLatestTables(ctx, "c2"))

	var postEntityCount int
	require.NoError(t, s.Get(ctx, &postEntityCount, `SELECT COUNT(*) FROM entity_latest WHERE name = 'ObsoleteView'`))
	require.Equal(t, 0, postEntityCount)

	var postCount int
	require.NoError(t, s.Get(ctx, &postCount, `SELECT COUNT(*) FROM relationship_latest WHERE target_name = 'ObsoleteView'`))
	require.Equal(t, 0, postCount)
}

// S7: deferred-target resolution. Assembly.swift parses before
// Presenter.swift, so the edge starts with a null target; rebuilding
// after Presenter is persisted resolves it.
func TestDeferredTargetResolution(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	repo := New(s)

	commit1, err := repo.RecordCommit(ctx, models.Commit{Hash: "c1", Branch: "main", IsMaster: true})
	require.NoError(t, err)

	assembly := models.EntityRecord{
		StableID: "swift:App:Assembly", Name: "Assembly", Kind: models.KindClass, Module: "App",
		Language: "swift", PrimaryFilePath: "Sources/Assembly.swift",
		Properties: map[string]string{"target_type": "app"},
	}
	ids, err := repo.PersistEntities(ctx, commit1, []models.EntityRecord{assembly})
	require.NoError(t, err)

	rel := models.RelationshipRecord{
		SourceStableID: assembly.StableID, TargetName: "Presenter", TargetModule: "App",
		EdgeType: models.EdgeCreates, Metadata: map[string]string{},
	}
	require.NoError(t, repo.PersistRelationships(ctx, commit1, ids, []models.RelationshipRecord{rel}))

	var targetEntityID *int64
	require.NoError(t, s.Get(ctx, &targetEntityID, `SELECT target_entity_id FROM entity_relationships WHERE target_name = 'Presenter'`))
	require.Nil(t, targetEntityID)

	presenter := models.EntityRecord{
		StableID: "swift:App:Presenter", Name: "Presenter", Kind: models.KindClass, Module: "App",
		Language: "swift", PrimaryFilePath: "Sources/Presenter.swift",
		Properties: map[string]string{"target_type": "app"},
	}
	_, err = repo.PersistEntities(ctx, commit1, []models.EntityRecord{presenter})
	require.NoError(t, err)

	require.NoError(t, repo.RebuildLatestTables(ctx, "c1"))

	var resolvedTarget string
	require.NoError(t, s.Get(ctx, &resolvedTarget, `
		SELECT target_stable_id FROM relationship_latest WHERE target_name = 'Presenter'`))
	require.Equal(t, presenter.StableID, resolvedTarget)
}
