// Package indexer implements the master-branch indexer (§4.8):
// initialize() walks HEAD once, update() walks only the commits since
// the last indexed master commit. Both route every file through the
// module resolver then the Swift parser, persist the result, and
// finish by rebuilding the materialized "_latest" views.
package indexer

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
	"github.com/swiftgraph/indexer/internal/settingscore"
	"github.com/swiftgraph/indexer/internal/store"
	"github.com/swiftgraph/indexer/internal/swiftparser"
)

// Service owns the master store and the git working tree it indexes.
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

// Initialize implements §4.8's initialize(): index every tracked Swift
// file as of the default branch's current head, as a single commit.
func (s *Service) Initialize(ctx context.Context) (string, error) {
	head, err := s.repo.BranchHead(ctx, s.settings.DefaultBranch)
	if err != nil {
		return "", err
	}

	resolver, err := modresolve.NewResolver(s.settings.RepoPath)
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindConfiguration, "build module resolver", err)
	}

	commitID, err := s.records.RecordCommit(ctx, models.Commit{
		Hash: head, Branch: s.settings.DefaultBranch, IsMaster: true,
	})
	if err != nil {
		return "", err
	}

	files, err := s.repo.TrackedSwiftFiles(ctx)
	if err != nil {
		return "", err
	}

	blobs, err := s.fetchBlobs(ctx, head, files)
	if err != nil {
		return "", err
	}

	parser := swiftparser.NewSwiftParser()
	entityIDs := make(map[string]int64)
	var relationships []models.RelationshipRecord

	for i, path := range files {
		if !blobs[i].ok {
			continue
		}
		if err := s.indexFile(ctx, parser, resolver, commitID, path, blobs[i].content, entityIDs, &relationships); err != nil {
			return "", err
		}
	}

	if err := s.records.PersistRelationships(ctx, commitID, entityIDs, relationships); err != nil {
		return "", err
	}
	if err := s.records.RebuildLatestTables(ctx, head); err != nil {
		return "", err
	}
	return head, nil
}

// Update implements §4.8's update(): process every master commit since
// the last one recorded, in topological order, tombstoning deleted
// files and persisting changed ones, then rebuild the latest views.
func (s *Service) Update(ctx context.Context) ([]string, error) {
	last, err := s.records.LatestMasterCommit(ctx)
	if err != nil {
		return nil, err
	}

	commits, err := s.repo.CommitsSince(ctx, last, s.settings.DefaultBranch)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, nil
	}

	resolver, err := modresolve.NewResolver(s.settings.RepoPath)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindConfiguration, "build module resolver", err)
	}
	parser := swiftparser.NewSwiftParser()

	var processed []string
	var headHash string
	for _, commit := range commits {
		commitID, err := s.records.RecordCommit(ctx, models.Commit{
			Hash: commit.Hash, ParentHash: commit.ParentHash, Branch: s.settings.DefaultBranch,
			IsMaster: true, Author: commit.Author, Message: commit.Message,
		})
		if err != nil {
			return processed, err
		}

		changed, err := s.repo.ChangedFiles(ctx, commit.Hash)
		if err != nil {
			return processed, err
		}

		var live []string
		for _, change := range changed {
			if change.Deleted {
				if err := s.records.MarkEntitiesDeletedForFile(ctx, change.Path, commitID); err != nil {
					return processed, err
				}
				continue
			}
			live = append(live, change.Path)
		}

		blobs, err := s.fetchBlobs(ctx, commit.Hash, live)
		if err != nil {
			return processed, err
		}

		entityIDs := make(map[string]int64)
		var relationships []models.RelationshipRecord
		for i, path := range live {
			if !blobs[i].ok {
				continue
			}
			if err := s.indexFile(ctx, parser, resolver, commitID, path, blobs[i].content, entityIDs, &relationships); err != nil {
				return processed, err
			}
		}
		if err := s.records.PersistRelationships(ctx, commitID, entityIDs, relationships); err != nil {
			return processed, err
		}

		processed = append(processed, commit.Hash)
		headHash = commit.Hash
	}

	if err := s.records.RebuildLatestTables(ctx, headHash); err != nil {
		return processed, err
	}
	return processed, nil
}

// blob is one file's content fetched at a commit.
type blob struct {
	content string
	ok      bool
}

// fetchBlobs reads every path's content at commitHash concurrently: each
// FileContentAtCommit call is an independent git-show subprocess with no
// shared state, the same shape of independent I/O the teacher's
// ingestion orchestrator fans out with errgroup. The Swift parser's
// TypeRegistry is explicitly single-threaded (§5), so parsing itself
// stays sequential in the caller; only the blob fetch is parallel here.
func (s *Service) fetchBlobs(ctx context.Context, commitHash string, paths []string) ([]blob, error) {
	blobs := make([]blob, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			content, ok, err := s.repo.FileContentAtCommit(gctx, commitHash, path)
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

// indexFile resolves one file's module, parses it, stamps each
// record's target_type from the resolver's classification (§4.3), and
// persists entities/extensions, accumulating ids and relationships for
// the caller to persist once per commit.
func (s *Service) indexFile(
	ctx context.Context,
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
		s.logger.WithError(err).WithField("file", path).Warn("swift parse failed, skipping file")
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

	ids, err := s.records.PersistEntities(ctx, commitID, parsed.Entities)
	if err != nil {
		return fmt.Errorf("persist entities for %q: %w", path, err)
	}
	for id, entityID := range ids {
		entityIDs[id] = entityID
	}

	if len(parsed.Extensions) > 0 {
		if err := s.records.PersistExtensions(ctx, commitID, parsed.Extensions, entityIDs); err != nil {
			return fmt.Errorf("persist extensions for %q: %w", path, err)
		}
	}

	*relationships = append(*relationships, parsed.Relationships...)
	return nil
}
