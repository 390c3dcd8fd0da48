// Package repository implements the write path (§4.5): upserting
// entities/members/extensions, recording per-commit versions,
// tombstoning a file's rows on deletion, persisting relationships with
// the tombstone-then-reinsert dedup rule, and rebuilding the
// materialized "_latest" views from the versioned tables.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/models"
	"github.com/swiftgraph/indexer/internal/store"
)

// Repository wraps one store.Store with the write-path operations.
type Repository struct {
	store *store.Store
}

func New(s *store.Store) *Repository {
	return &Repository{store: s}
}

// RecordCommit inserts a commit row (ignoring a duplicate hash) and
// returns its id, mirroring the teacher's insert-then-select pattern
// for assigning surrogate ids without a RETURNING clause.
func (r *Repository) RecordCommit(ctx context.Context, c models.Commit) (int64, error) {
	var id int64
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO commits (hash, parent_hash, branch, is_master, author, message, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Hash, nullable(c.ParentHash), c.Branch, boolToInt(c.IsMaster), c.Author, c.Message, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert commit: %w", err)
		}
		return tx.GetContext(ctx, &id, `SELECT id FROM commits WHERE hash = ?`, c.Hash)
	})
	if err != nil {
		return 0, codeerrors.Wrap(codeerrors.KindStoreIO, "record commit", err)
	}
	return id, nil
}

// LatestMasterCommit returns the hash of the newest is_master=1 commit,
// or "" if none exists yet (fresh repository).
func (r *Repository) LatestMasterCommit(ctx context.Context) (string, error) {
	var hash string
	err := r.store.Get(ctx, &hash, `SELECT hash FROM commits WHERE is_master = 1 ORDER BY id DESC LIMIT 1`)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindStoreIO, "latest master commit", err)
	}
	return hash, nil
}

// LatestBranchCommit returns the newest real (non-worktree-overlay)
// commit hash recorded for a branch, or "" if none exists yet — the
// feature-branch indexer's anchor source before falling back to a
// merge-base (§4.9 step 4).
func (r *Repository) LatestBranchCommit(ctx context.Context, branch string) (string, error) {
	var hash string
	err := r.store.Get(ctx, &hash, `
		SELECT hash FROM commits
		WHERE branch = ? AND is_master = 0 AND hash NOT LIKE 'worktree:%'
		ORDER BY id DESC LIMIT 1`, branch)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindStoreIO, "latest branch commit", err)
	}
	return hash, nil
}

func (r *Repository) ensureFile(ctx context.Context, tx *sqlx.Tx, path, language string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO files (path, language) VALUES (?, ?)`, path, language); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.GetContext(ctx, &id, `SELECT id FROM files WHERE path = ?`, path); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) upsertEntity(ctx context.Context, tx *sqlx.Tx, rec models.EntityRecord, fileID int64) (int64, error) {
	var existing int64
	err := tx.GetContext(ctx, &existing, `SELECT id FROM entities WHERE stable_id = ?`, rec.StableID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE entities SET name = ?, kind = ?, module = ?, language = ?, primary_file_id = ?
			WHERE id = ?`,
			rec.Name, string(rec.Kind), rec.Module, rec.Language, fileID, existing); err != nil {
			return 0, err
		}
	case err == sql.ErrNoRows:
		res, insertErr := tx.ExecContext(ctx, `
			INSERT INTO entities (stable_id, name, kind, module, language, primary_file_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.StableID, rec.Name, string(rec.Kind), rec.Module, rec.Language, fileID, time.Now().UTC())
		if insertErr != nil {
			return 0, insertErr
		}
		existing, insertErr = res.LastInsertId()
		if insertErr != nil {
			return 0, insertErr
		}
	default:
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entity_files (entity_id, file_id, is_primary) VALUES (?, ?, 1)
		ON CONFLICT(entity_id, file_id) DO UPDATE SET is_primary = excluded.is_primary`,
		existing, fileID)
	return existing, err
}

func (r *Repository) recordEntityVersion(ctx context.Context, tx *sqlx.Tx, entityID, commitID, fileID int64, rec models.EntityRecord) error {
	props, err := json.Marshal(rec.Properties)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entity_versions (entity_id, commit_id, file_id, start_line, end_line, signature, docstring, code, properties, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entityID, commitID, fileID, rec.StartLine, rec.EndLine, rec.Signature, rec.Docstring, rec.Code, string(props), boolToInt(rec.IsDeleted))
	return err
}

func memberStableID(entityID int64, m models.MemberRecord) string {
	return fmt.Sprintf("%d:%s:%s", entityID, m.Kind, m.Name)
}

func (r *Repository) upsertMember(ctx context.Context, tx *sqlx.Tx, entityID int64, m models.MemberRecord) (int64, error) {
	stableID := memberStableID(entityID, m)
	var existing int64
	err := tx.GetContext(ctx, &existing, `SELECT id FROM members WHERE stable_id = ?`, stableID)
	if err == nil {
		_, err := tx.ExecContext(ctx, `UPDATE members SET name = ?, kind = ? WHERE id = ?`, m.Name, string(m.Kind), existing)
		return existing, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO members (entity_id, stable_id, name, kind) VALUES (?, ?, ?, ?)`,
		entityID, stableID, m.Name, string(m.Kind))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) recordMemberVersion(ctx context.Context, tx *sqlx.Tx, memberID, commitID, fileID int64, m models.MemberRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO member_versions (member_id, commit_id, file_id, start_line, end_line, signature, code, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		memberID, commitID, fileID, m.StartLine, m.EndLine, m.Signature, m.Code, boolToInt(m.IsDeleted))
	return err
}

// PersistEntities implements §4.5: for each entity record, ensure its
// file row, upsert the entity and its members, and record a version
// for each at this commit. Returns the stable_id → entity_id map so
// the caller can pass it to PersistRelationships.
func (r *Repository) PersistEntities(ctx context.Context, commitID int64, records []models.EntityRecord) (map[string]int64, error) {
	entityIDs := make(map[string]int64, len(records))
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range records {
			fileID, err := r.ensureFile(ctx, tx, rec.PrimaryFilePath, rec.Language)
			if err != nil {
				return fmt.Errorf("ensure file %q: %w", rec.PrimaryFilePath, err)
			}
			entityID, err := r.upsertEntity(ctx, tx, rec, fileID)
			if err != nil {
				return fmt.Errorf("upsert entity %q: %w", rec.StableID, err)
			}
			entityIDs[rec.StableID] = entityID
			if err := r.recordEntityVersion(ctx, tx, entityID, commitID, fileID, rec); err != nil {
				return fmt.Errorf("record entity version %q: %w", rec.StableID, err)
			}
			for _, m := range rec.Members {
				memberID, err := r.upsertMember(ctx, tx, entityID, m)
				if err != nil {
					return fmt.Errorf("upsert member %q: %w", m.Name, err)
				}
				if err := r.recordMemberVersion(ctx, tx, memberID, commitID, fileID, m); err != nil {
					return fmt.Errorf("record member version %q: %w", m.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindStoreIO, "persist entities", err)
	}
	return entityIDs, nil
}

// PersistExtensions mirrors PersistEntities for extension records.
func (r *Repository) PersistExtensions(ctx context.Context, commitID int64, records []models.ExtensionRecord, entityIDs map[string]int64) error {
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range records {
			fileID, err := r.ensureFile(ctx, tx, rec.FilePath, rec.Language)
			if err != nil {
				return fmt.Errorf("ensure file %q: %w", rec.FilePath, err)
			}

			var ownerID interface{}
			if id, ok := entityIDs[rec.EntityStableID]; ok {
				ownerID = id
			}

			var existing int64
			err = tx.GetContext(ctx, &existing, `SELECT id FROM extensions WHERE stable_id = ?`, rec.StableID)
			if err == nil {
				if _, err := tx.ExecContext(ctx, `
					UPDATE extensions SET entity_id = ?, extended_type = ?, module = ?, language = ?
					WHERE id = ?`, ownerID, rec.ExtendedType, rec.Module, rec.Language, existing); err != nil {
					return err
				}
			} else {
				res, insErr := tx.ExecContext(ctx, `
					INSERT INTO extensions (stable_id, entity_id, extended_type, module, language)
					VALUES (?, ?, ?, ?, ?)`, rec.StableID, ownerID, rec.ExtendedType, rec.Module, rec.Language)
				if insErr != nil {
					return insErr
				}
				existing, insErr = res.LastInsertId()
				if insErr != nil {
					return insErr
				}
			}

			conformances, err := json.Marshal(rec.Conformances)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO extension_versions (extension_id, commit_id, file_id, start_line, end_line, signature, code, visibility, constraints, conformances, is_deleted)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				existing, commitID, fileID, rec.StartLine, rec.EndLine, rec.Signature, rec.Code,
				rec.Visibility, rec.Constraints, string(conformances), boolToInt(rec.IsDeleted))
			if err != nil {
				return fmt.Errorf("record extension version %q: %w", rec.StableID, err)
			}
		}
		return nil
	})
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "persist extensions", err)
	}
	return nil
}

// PersistRelationships implements §4.5 step 2-4: tombstone every
// active edge whose source is in srcMap at this commit, resolve each
// new relationship's target ((name, module) exact match, falling back
// to (name) alone by latest id), then insert the new set active.
func (r *Repository) PersistRelationships(ctx context.Context, commitID int64, srcMap map[string]int64, rels []models.RelationshipRecord) error {
	return r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sourceIDs := make([]int64, 0, len(srcMap))
		for _, id := range srcMap {
			sourceIDs = append(sourceIDs, id)
		}
		if len(sourceIDs) > 0 {
			query, args, err := sqlx.In(`
				INSERT INTO entity_relationships (source_entity_id, target_entity_id, target_name, target_module, edge_type, metadata, commit_id, is_deleted)
				SELECT source_entity_id, target_entity_id, target_name, target_module, edge_type, metadata, ?, 1
				FROM entity_relationships
				WHERE source_entity_id IN (?) AND is_deleted = 0`, commitID, sourceIDs)
			if err != nil {
				return fmt.Errorf("build tombstone query: %w", err)
			}
			query = tx.Rebind(query)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("tombstone prior edges: %w", err)
			}
		}

		for _, rel := range rels {
			sourceID, ok := srcMap[rel.SourceStableID]
			if !ok {
				if err := tx.GetContext(ctx, &sourceID, `SELECT id FROM entities WHERE stable_id = ?`, rel.SourceStableID); err != nil {
					return fmt.Errorf("resolve source %q: %w", rel.SourceStableID, err)
				}
			}

			targetID, err := r.resolveTarget(ctx, tx, rel.TargetName, rel.TargetModule)
			if err != nil {
				return fmt.Errorf("resolve target %q: %w", rel.TargetName, err)
			}

			meta, err := json.Marshal(rel.Metadata)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO entity_relationships (source_entity_id, target_entity_id, target_name, target_module, edge_type, metadata, commit_id, is_deleted)
				VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
				sourceID, targetID, rel.TargetName, nullable(rel.TargetModule), string(rel.EdgeType), string(meta), commitID)
			if err != nil {
				return fmt.Errorf("insert relationship %q->%q: %w", rel.SourceStableID, rel.TargetName, err)
			}
		}
		return nil
	})
}

// resolveTarget implements §4.5 step 3: exact (name, module) match
// first, else the most recently created entity named target_name,
// else nil (left for resolve_pending_relationships to fill later).
func (r *Repository) resolveTarget(ctx context.Context, tx *sqlx.Tx, name, module string) (interface{}, error) {
	var id int64
	if module != "" {
		err := tx.GetContext(ctx, &id, `SELECT id FROM entities WHERE name = ? AND module = ?`, name, module)
		if err == nil {
			return id, nil
		}
	}
	err := tx.GetContext(ctx, &id, `SELECT id FROM entities WHERE name = ? ORDER BY id DESC LIMIT 1`, name)
	if err != nil {
		return nil, nil
	}
	return id, nil
}

// MarkEntitiesDeletedForFile implements §4.5's deletion path: for every
// entity and member tied to the file, insert a tombstone version at
// this commit, then drop the file's entity_files rows so future
// commits can reassign the file without a stale primary claim.
func (r *Repository) MarkEntitiesDeletedForFile(ctx context.Context, filePath string, commitID int64) error {
	return r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var fileID int64
		err := tx.GetContext(ctx, &fileID, `SELECT id FROM files WHERE path = ?`, filePath)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		var entityIDs []int64
		if err := tx.SelectContext(ctx, &entityIDs, `SELECT entity_id FROM entity_files WHERE file_id = ?`, fileID); err != nil {
			return err
		}
		for _, entityID := range entityIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO entity_versions (entity_id, commit_id, file_id, is_deleted) VALUES (?, ?, ?, 1)`,
				entityID, commitID, fileID); err != nil {
				return err
			}

			var memberIDs []int64
			if err := tx.SelectContext(ctx, &memberIDs, `SELECT id FROM members WHERE entity_id = ?`, entityID); err != nil {
				return err
			}
			for _, memberID := range memberIDs {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO member_versions (member_id, commit_id, file_id, is_deleted) VALUES (?, ?, ?, 1)`,
					memberID, commitID, fileID); err != nil {
					return err
				}
			}
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM entity_files WHERE file_id = ?`, fileID)
		return err
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
