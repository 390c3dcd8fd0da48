package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/store"
)

// GetMeta reads a schema_meta value (§4.9 step 3's feature_branch key,
// and the schema version stamp). Returns ok=false if the key is unset.
func (r *Repository) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.store.Get(ctx, &value, `SELECT value FROM schema_meta WHERE key = ?`, key)
	if err == store.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, codeerrors.Wrap(codeerrors.KindStoreIO, "read schema_meta", err)
	}
	return value, true, nil
}

// DeleteCommitByHash implements §4.9 step 6's "delete any prior
// worktree:<branch> commit row": removes the commit row and every
// version/relationship row stamped with its commit_id, so a repeated
// worktree resync doesn't accumulate phantom history. A no-op if the
// hash is not recorded.
func (r *Repository) DeleteCommitByHash(ctx context.Context, hash string) error {
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var commitID int64
		err := tx.GetContext(ctx, &commitID, `SELECT id FROM commits WHERE hash = ?`, hash)
		if err != nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entity_versions WHERE commit_id = ?`, commitID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM member_versions WHERE commit_id = ?`, commitID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM extension_versions WHERE commit_id = ?`, commitID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entity_relationships WHERE commit_id = ?`, commitID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM commits WHERE id = ?`, commitID)
		return err
	})
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "delete commit by hash", err)
	}
	return nil
}

// SetMeta upserts a schema_meta value.
func (r *Repository) SetMeta(ctx context.Context, key, value string) error {
	err := r.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schema_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return err
	})
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "write schema_meta", err)
	}
	return nil
}
