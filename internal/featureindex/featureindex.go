// Package featureindex implements the feature-branch indexer (§4.9):
// a per-branch overlay database kept in sync with a feature branch's
// real commits plus its dirty working tree, so queries against an
// in-progress branch see uncommitted changes without polluting the
// master store. It mirrors the master indexer's per-file parse/persist
// logic (see indexFile) against its own store.Store and
// repository.Repository.
package featureindex

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/gitutil"
	"github.com/swiftgraph/indexer/internal/modresolve"
	"github.com/swiftgraph/indexer/internal/models"
	"github.com/swiftgraph/indexer/internal/repository"
	"github.com/swiftgraph/indexer/internal/schema"
	"github.com/swiftgraph/indexer/internal/settingscore"
	"github.com/swiftgraph/indexer/internal/store"
	"github.com/swiftgraph/indexer/internal/swiftparser"
)

// worktreeHashPrefix, followed by the branch name, forms the synthetic
// commit hash the working-tree overlay pass is recorded under (§4.9
// step 6).
const worktreeHashPrefix = "worktree:"

// Service owns a feature branch's overlay store.
type Service struct {
	settings *settingscore.Settings
	repo     *gitutil.Repo
	store    *store.Store
	records  *repository.Repository
	logger   *logrus.Logger
}

func New(settings *settingscore.Settings, st *store.Store, logger *logrus.Logger) *Service {
	return &Service{
		settings: settings,
		repo:     gitutil.Open(settings.RepoPath),
		store:    st,
		records:  repository.New(st),
		logger:   logger,
	}
}

// Sync implements §4.9's six steps. Returns "" and no error if the
// working tree is on the default branch or in detached HEAD — in
// either case there is no feature overlay to maintain.
func (s *Service) Sync(ctx context.Context) (string, error) {
	branch, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	if branch == "" || branch == s.settings.DefaultBranch {
		s.logger.WithField("branch", branch).Debug("feature index skipped: default branch or detached HEAD")
		return "", nil
	}

	if err := s.resetIfBranchMismatch(ctx, branch); err != nil {
		return "", err
	}
	if err := s.records.SetMeta(ctx, schema.MetaFeatureBranch, branch); err != nil {
		return "", err
	}

	head, err := s.repo.BranchHead(ctx, branch)
	if err != nil {
		return "", err
	}

	anchor, err := s.computeAnchor(ctx, branch)
	if err != nil {
		return "", err
	}

	if err := s.processCommits(ctx, branch, anchor, head); err != nil {
		return "", err
	}
	if err := s.indexWorktree(ctx, branch, head); err != nil {
		return "", err
	}
	if err := s.records.RebuildLatestTables(ctx, head); err != nil {
		return "", err
	}
	return head, nil
}

// resetIfBranchMismatch implements §4.9 step 2: if the feature store
// was last stamped for a different branch, close it, remove its file
// (plus WAL/SHM sidecars), and reopen a fresh store at the same path,
// replacing s.store and s.records so the rest of Sync works against
// the clean store.
func (s *Service) resetIfBranchMismatch(ctx context.Context, branch string) error {
	stamped, ok, err := s.records.GetMeta(ctx, schema.MetaFeatureBranch)
	if err != nil {
		return err
	}
	if !ok || stamped == branch {
		return nil
	}

	s.logger.WithFields(logrus.Fields{"stamped": stamped, "current": branch}).
		Info("feature store stamped for a different branch, resetting")

	path := s.store.Path()
	if err := s.store.Close(); err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "close feature store before reset", err)
	}
	if err := store.RemoveFeatureDatabase(path); err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "remove stale feature store", err)
	}
	fresh, err := store.Open(path, s.logger)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindStoreIO, "reopen feature store", err)
	}
	s.store = fresh
	s.records = repository.New(fresh)
	return nil
}

// computeAnchor implements §4.9 step 4: resume from this branch's
// latest indexed real commit in the feature store, or fall back to
// its merge-base with the default branch for a first sync.
func (s *Service) computeAnchor(ctx context.Context, branch string) (string, error) {
	anchor, err := s.records.LatestBranchCommit(ctx, branch)
	if err != nil {
		return "", err
	}
	if anchor != "" {
		return anchor, nil
	}
	return s.repo.MergeBase(ctx, branch, s.settings.DefaultBranch)
}

// processCommits implements §4.9 step 5: index every real commit in
// (anchor, head], the same way the master indexer processes commits,
// against the feature store instead.
func (s *Service) processCommits(ctx context.Context, branch, anchor, head string) error {
	commits, err := s.repo.CommitsSince(ctx, anchor, branch)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return nil
	}

	resolver, err := modresolve.NewResolver(s.settings.RepoPath)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindConfiguration, "build module resolver", err)
	}
	parser := swiftparser.NewSwiftParser()

	for _, commit := range commits {
		commitID, err := s.records.RecordCommit(ctx, models.Commit{
			Hash: commit.Hash, ParentHash: commit.ParentHash, Branch: branch,
			IsMaster: false, Author: commit.Author, Message: commit.Message,
		})
		if err != nil {
			return err
		}

		changed, err := s.repo.ChangedFiles(ctx, commit.Hash)
		if err != nil {
			return err
		}

		var live []string
		for _, change := range changed {
			if change.Deleted {
				if err := s.records.MarkEntitiesDeletedForFile(ctx, change.Path, commitID); err != nil {
					return err
				}
				continue
			}
			live = append(live, change.Path)
		}

		blobs, err := fetchBlobs(ctx, s.repo, commit.Hash, live)
		if err != nil {
			return err
		}

		entityIDs := make(map[string]int64)
		var relationships []models.RelationshipRecord
		for i, path := range live {
			if !blobs[i].ok {
				continue
			}
			if err := indexFile(ctx, s.records, s.logger, parser, resolver, commitID, path, blobs[i].content, entityIDs, &relationships); err != nil {
				return err
			}
		}
		if err := s.records.PersistRelationships(ctx, commitID, entityIDs, relationships); err != nil {
			return err
		}
	}
	return nil
}

// indexWorktree implements §4.9 step 6: overlay the dirty working tree
// as a synthetic commit, replacing any prior overlay for this branch.
func (s *Service) indexWorktree(ctx context.Context, branch, head string) error {
	hash := worktreeHashPrefix + branch
	if err := s.records.DeleteCommitByHash(ctx, hash); err != nil {
		return err
	}

	changes, err := s.repo.WorkingTreeChanges(ctx)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	commitID, err := s.records.RecordCommit(ctx, models.Commit{
		Hash: hash, ParentHash: head, Branch: branch, IsMaster: false,
	})
	if err != nil {
		return err
	}

	resolver, err := modresolve.NewResolver(s.settings.RepoPath)
	if err != nil {
		return codeerrors.Wrap(codeerrors.KindConfiguration, "build module resolver", err)
	}
	parser := swiftparser.NewSwiftParser()

	var live []string
	for _, change := range changes {
		if change.Deleted {
			if err := s.records.MarkEntitiesDeletedForFile(ctx, change.Path, commitID); err != nil {
				return err
			}
			continue
		}
		live = append(live, change.Path)
	}

	contents := make([]string, len(live))
	g, _ := errgroup.WithContext(ctx)
	for i, path := range live {
		i, path := i, path
		g.Go(func() error {
			content, err := s.repo.ReadWorkingTreeFile(path)
			if err != nil {
				return err
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	entityIDs := make(map[string]int64)
	var relationships []models.RelationshipRecord
	for i, path := range live {
		if err := indexFile(ctx, s.records, s.logger, parser, resolver, commitID, path, contents[i], entityIDs, &relationships); err != nil {
			return err
		}
	}
	return s.records.PersistRelationships(ctx, commitID, entityIDs, relationships)
}

// blob is one file's content fetched at a commit.
type blob struct {
	content string
	ok      bool
}

// fetchBlobs mirrors internal/indexer's fetchBlobs: each git-show call
// is an independent subprocess, safe to fan out with errgroup the way
// the teacher's ingestion orchestrator fans out independent store
// writes. The parser's TypeRegistry is single-threaded (§5), so the
// caller keeps parsing sequential and only parallelizes this fetch.
func fetchBlobs(ctx context.Context, repo *gitutil.Repo, commitHash string, paths []string) ([]blob, error) {
	blobs := make([]blob, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			content, ok, err := repo.FileContentAtCommit(gctx, commitHash, path)
			if err != nil {
				return err
			}
			blobs[i] = blob{content: content, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blobs, nil
}

// indexFile mirrors internal/indexer's per-file parse/persist step;
// duplicated rather than shared across packages because it closes over
// a *repository.Repository that may be swapped mid-Sync by a branch
// reset (see resetIfBranchMismatch), which a shared method on a fixed
// *indexer.Service could not express.
func indexFile(
	ctx context.Context,
	records *repository.Repository,
	logger *logrus.Logger,
	parser *swiftparser.SwiftParser,
	resolver *modresolve.Resolver,
	commitID int64,
	path, content string,
	entityIDs map[string]int64,
	relationships *[]models.RelationshipRecord,
) error {
	module, targetType := resolver.ResolveModule(path)

	parsed, err := parser.Parse(path, []byte(content), module)
	if err != nil {
		logger.WithError(err).WithField("file", path).Warn("swift parse failed, skipping file")
		return nil
	}

	for i := range parsed.Entities {
		if parsed.Entities[i].Properties == nil {
			parsed.Entities[i].Properties = map[string]string{}
		}
		parsed.Entities[i].Properties["target_type"] = targetType
	}
	for i := range parsed.Extensions {
		parsed.Extensions[i].TargetType = models.TargetType(targetType)
	}

	ids, err := records.PersistEntities(ctx, commitID, parsed.Entities)
	if err != nil {
		return fmt.Errorf("persist entities for %q: %w", path, err)
	}
	for id, entityID := range ids {
		entityIDs[id] = entityID
	}

	if len(parsed.Extensions) > 0 {
		if err := records.PersistExtensions(ctx, commitID, parsed.Extensions, entityIDs); err != nil {
			return fmt.Errorf("persist extensions for %q: %w", path, err)
		}
	}

	*relationships = append(*relationships, parsed.Relationships...)
	return nil
}
