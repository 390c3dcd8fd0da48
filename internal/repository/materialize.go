package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/swiftgraph/indexer/internal/codeerrors"
)

// RebuildLatestTables implements §6/§8 invariant 5: repopulate
// entity_latest, relationship_latest, and extension_latest from the
// versioned tables by taking, per key, the non-tombstoned version with
// the maximum commit id. Pending relationship targets are resolved
// first (ResolvePendingRelationships), so relationship_latest reflects
// forward references made resolvable by this pass. Idempotent: running
// it twice in a row with no intervening writes yields the same rows
// (relationship_latest's autoincrement ids aside).
func (r *Repository) RebuildLatestTables(ctx context.Context, headCommitHash string) error {
	if err := r.ResolvePendingRelationships(ctx); err != nil {
		return err
	}
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entity_latest`); err != nil {
			return fmt.Errorf("clear entity_latest: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationship_latest`); err != nil {
			return fmt.Errorf("clear relationship_latest: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM extension_latest`); err != nil {
			return fmt.Errorf("clear extension_latest: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO entity_latest (
				stable_id, entity_id, name, kind, module, file_path, signature,
				docstring, properties, member_names, target_type, visibility, commit_hash
			)
			SELECT
				e.stable_id, e.id, e.name, e.kind, e.module, f.path, ev.signature,
				ev.docstring, ev.properties,
				(
					SELECT GROUP_CONCAT(m.name, '|')
					FROM members m
					JOIN member_versions mv ON mv.member_id = m.id
					WHERE m.entity_id = e.id
					AND mv.commit_id = (SELECT MAX(commit_id) FROM member_versions WHERE member_id = m.id)
					AND mv.is_deleted = 0
				),
				json_extract(ev.properties, '$.target_type'),
				json_extract(ev.properties, '$.visibility'),
				?
			FROM entities e
			JOIN entity_versions ev ON ev.entity_id = e.id
				AND ev.commit_id = (SELECT MAX(commit_id) FROM entity_versions WHERE entity_id = e.id)
			LEFT JOIN files f ON f.id = ev.file_id
			WHERE ev.is_deleted = 0`, headCommitHash)
		if err != nil {
			return fmt.Errorf("populate entity_latest: %w", err)
		}

		// source/target entities must still be live (present in the
		// entity_latest just populated above), not merely undeleted in
		// entity_versions: a source or target in a different state of
		// deletion timing than the relationship row itself must not
		// leave a dangling edge behind (§8 Scenario S2).
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO relationship_latest (
				source_stable_id, source_name, target_stable_id, target_name, target_module, edge_type, metadata
			)
			SELECT
				src_latest.stable_id, src_latest.name, tgt_latest.stable_id, ranked.target_name, ranked.target_module,
				ranked.edge_type, ranked.metadata
			FROM (
				SELECT er.*
				FROM entity_relationships er
				JOIN (
					SELECT source_entity_id, COALESCE(target_entity_id, -1) AS tgt_key, target_name,
					       COALESCE(target_module, '') AS mod_key, edge_type,
					       MAX(commit_id) AS max_commit
					FROM entity_relationships
					GROUP BY source_entity_id, tgt_key, target_name, mod_key, edge_type
				) latest ON latest.source_entity_id = er.source_entity_id
					AND COALESCE(er.target_entity_id, -1) = latest.tgt_key
					AND er.target_name = latest.target_name
					AND COALESCE(er.target_module, '') = latest.mod_key
					AND er.edge_type = latest.edge_type
					AND er.commit_id = latest.max_commit
			) ranked
			JOIN entity_latest src_latest ON src_latest.entity_id = ranked.source_entity_id
			LEFT JOIN entity_latest tgt_latest ON tgt_latest.entity_id = ranked.target_entity_id
			WHERE ranked.is_deleted = 0
				AND (ranked.target_entity_id IS NULL OR tgt_latest.entity_id IS NOT NULL)`)
		if err != nil {
			return fmt.Errorf("populate relationship_latest: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO extension_latest (
				stable_id, extension_id, entity_id, entity_stable_id, extended_type, module,
				file_path, signature, visibility, constraints, conformances, member_names, target_type, commit_hash
			)
			SELECT
				x.stable_id, x.id, x.entity_id, owner.stable_id, x.extended_type, x.module,
				f.path, xv.signature, xv.visibility, xv.constraints, xv.conformances,
				(
					SELECT GROUP_CONCAT(m.name, '|')
					FROM members m
					JOIN member_versions mv ON mv.member_id = m.id
					WHERE m.entity_id = x.entity_id
					AND mv.commit_id = (SELECT MAX(commit_id) FROM member_versions WHERE member_id = m.id)
					AND mv.is_deleted = 0
				),
				json_extract(xv.properties, '$.target_type'),
				?
			FROM extensions x
			JOIN extension_versions xv ON xv.extension_id = x.id
				AND xv.commit_id = (SELECT MAX(commit_id) FROM extension_versions WHERE extension_id = x.id)
			LEFT JOIN files f ON f.id = xv.file_id
			LEFT JOIN entities owner ON owner.id = x.entity_id
			WHERE xv.is_deleted = 0`, headCommitHash)
		if err != nil {
			return fmt.Errorf("populate extension_latest: %w", err)
		}

		return nil
	})
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "rebuild latest tables", err)
	}
	return nil
}

// ResolvePendingRelationships implements §4.5/§8 invariant 6: for every
// active relationship row still missing a target_entity_id, try to
// resolve it by (name, module) then by name alone; never touches
// tombstoned rows, and never overwrites an already-resolved target.
func (r *Repository) ResolvePendingRelationships(ctx context.Context) error {
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		type pending struct {
			ID           int64  `db:"id"`
			TargetName   string `db:"target_name"`
			TargetModule string `db:"target_module"`
		}
		var rows []pending
		if err := tx.SelectContext(ctx, &rows, `
			SELECT id, target_name, target_module
			FROM entity_relationships
			WHERE target_entity_id IS NULL AND is_deleted = 0`); err != nil {
			return fmt.Errorf("list pending relationships: %w", err)
		}

		for _, row := range rows {
			target, err := r.resolveTarget(ctx, tx, row.TargetName, row.TargetModule)
			if err != nil {
				return fmt.Errorf("resolve pending target %q: %w", row.TargetName, err)
			}
			if target == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE entity_relationships SET target_entity_id = ? WHERE id = ?`, target, row.ID); err != nil {
				return fmt.Errorf("update pending relationship %d: %w", row.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "resolve pending relationships", err)
	}
	return nil
}
