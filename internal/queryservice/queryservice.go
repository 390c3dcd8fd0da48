// Package queryservice implements the branch-aware façade (§4.7): the
// three knowledge operations (search, members, extensions) plus the
// graph navigation operation, each deciding independently whether the
// feature-branch overlay applies before delegating to the read path.
package queryservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/swiftgraph/indexer/internal/codeerrors"
	"github.com/swiftgraph/indexer/internal/gitutil"
	"github.com/swiftgraph/indexer/internal/graphcache"
	"github.com/swiftgraph/indexer/internal/graphquery"
	"github.com/swiftgraph/indexer/internal/settingscore"
	"github.com/swiftgraph/indexer/internal/store"
)

// QueryService wraps the master store (always open) and lazily opens
// the feature store per call, matching the teacher's per-request
// connection discipline (§5: "each query opens its own read
// connection(s)").
type QueryService struct {
	settings *settingscore.Settings
	master   *store.Store
	repo     *gitutil.Repo
	logger   *logrus.Logger
	cache    *graphcache.Cache
}

func New(settings *settingscore.Settings, master *store.Store, logger *logrus.Logger) *QueryService {
	return &QueryService{
		settings: settings,
		master:   master,
		repo:     gitutil.Open(settings.RepoPath),
		logger:   logger,
		cache:    graphcache.New(30*time.Second, logger),
	}
}

// EntityMatch is one row of a Search result.
type EntityMatch struct {
	Name       string `db:"name"`
	Module     string `db:"module"`
	Kind       string `db:"kind"`
	FilePath   string `db:"file_path"`
	Signature  string `db:"signature"`
	TargetType string `db:"target_type"`
}

// Search implements the first knowledge operation: a case-insensitive
// name/module/path substring scan over entity_latest, comma- or
// space-separated terms each independently matched.
func (q *QueryService) Search(ctx context.Context, needle string, limit int) ([]EntityMatch, error) {
	terms := splitSearchTerms(needle)
	if limit <= 0 {
		limit = 25
	}

	var clauses []string
	var args []interface{}
	for _, term := range terms {
		lowered := strings.ToLower(term)
		clauses = append(clauses, `(LOWER(name) LIKE ? OR LOWER(module) LIKE ? OR LOWER(file_path) LIKE ?)`)
		pattern := "%" + lowered + "%"
		args = append(args, pattern, pattern, pattern)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " OR ")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT name, module, kind, file_path, signature, target_type
		FROM entity_latest
		%s
		ORDER BY name
		LIMIT ?`, where)

	var matches []EntityMatch
	if err := q.master.Select(ctx, &matches, query, args...); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindStoreIO, "search entities", err)
	}
	return matches, nil
}

func splitSearchTerms(needle string) []string {
	var raw []string
	if strings.Contains(needle, ",") {
		raw = strings.Split(needle, ",")
	} else {
		raw = strings.Fields(needle)
	}
	var terms []string
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r != "" {
			terms = append(terms, r)
		}
	}
	return terms
}

// MemberInfo is one row of a Members result.
type MemberInfo struct {
	EntityName string `db:"entity_name"`
	MemberName string `db:"member_name"`
	MemberKind string `db:"member_kind"`
	Signature  string `db:"signature"`
	FilePath   string `db:"file_path"`
}

// Members implements the second knowledge operation: every current
// member of the named entities, optionally filtered by a member-name
// substring.
func (q *QueryService) Members(ctx context.Context, entityNames []string, memberFilter string) ([]MemberInfo, error) {
	if len(entityNames) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(entityNames))
	args := make([]interface{}, 0, len(entityNames)+1)
	for i, name := range entityNames {
		placeholders[i] = "?"
		args = append(args, name)
	}

	memberClause := ""
	if memberFilter != "" {
		memberClause = "AND m.name LIKE ?"
		args = append(args, "%"+memberFilter+"%")
	}

	query := fmt.Sprintf(`
		SELECT
			e.name AS entity_name,
			m.name AS member_name,
			m.kind AS member_kind,
			mv.signature AS signature,
			f.path AS file_path
		FROM members m
		JOIN entities e ON e.id = m.entity_id
		JOIN member_versions mv ON mv.id = (
			SELECT id FROM member_versions
			WHERE member_id = m.id
			ORDER BY commit_id DESC, id DESC LIMIT 1
		)
		LEFT JOIN files f ON f.id = mv.file_id
		WHERE e.name IN (%s) AND mv.is_deleted = 0
		%s
		ORDER BY e.name, m.name`, strings.Join(placeholders, ","), memberClause)

	var members []MemberInfo
	if err := q.master.Select(ctx, &members, query, args...); err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindStoreIO, "load members", err)
	}
	return members, nil
}

// ExtensionInfo is one row of an Extensions result.
type ExtensionInfo struct {
	ExtendedType string `db:"extended_type"`
	Visibility   string `db:"visibility"`
	Constraints  string `db:"constraints"`
	Conformances string `db:"conformances"`
	FilePath     string `db:"file_path"`
}

// Extensions implements the third knowledge operation: every current
// extension of the named entity, read from extension_latest.
func (q *QueryService) Extensions(ctx context.Context, entityName string) ([]ExtensionInfo, error) {
	var extensions []ExtensionInfo
	err := q.master.Select(ctx, &extensions, `
		SELECT extended_type, visibility, constraints, conformances, file_path
		FROM extension_latest
		WHERE entity_stable_id = (SELECT stable_id FROM entity_latest WHERE name = ? LIMIT 1)
		ORDER BY extended_type`, entityName)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindStoreIO, "load extensions", err)
	}
	return extensions, nil
}

// Graph implements the navigation operation: builds a centered graph
// payload, deciding whether the feature-branch overlay applies
// (§4.7's five-condition gate) and caching the result keyed on the
// commit hash(es) actually used.
func (q *QueryService) Graph(ctx context.Context, p graphquery.Params) (*graphquery.Payload, error) {
	masterHash, err := q.commitHash(ctx, q.master)
	if err != nil {
		return nil, err
	}

	featureStore, featureHash, useFeature := q.maybeOpenFeatureStore(ctx)
	if featureStore != nil {
		defer featureStore.Close()
	}

	cacheKey := graphcache.Key{
		EntityName: p.EntityName, StopName: p.StopName, Direction: p.Direction,
		IncludeSiblingSubgraphs: p.IncludeSiblingSubgraphs, MaxHops: p.MaxHops, TargetType: p.TargetType,
		MasterCommitHash: masterHash, FeatureCommitHash: featureHash,
	}
	if cached, ok := q.cache.Get(cacheKey); ok {
		return cached, nil
	}

	masterLoader := &graphquery.FastLoader{Store: q.master, Origin: "master"}
	var featureLoader graphquery.Loader
	if useFeature {
		featureLoader = &graphquery.VersionedLoader{Store: featureStore, Origin: "feature"}
	}

	payload, err := graphquery.Query(ctx, masterLoader, featureLoader, p)
	if err != nil {
		return nil, err
	}
	q.cache.Set(cacheKey, payload)
	return payload, nil
}

func (q *QueryService) commitHash(ctx context.Context, s *store.Store) (string, error) {
	var hash string
	err := s.Get(ctx, &hash, `SELECT hash FROM commits ORDER BY id DESC LIMIT 1`)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindStoreIO, "read latest commit hash", err)
	}
	return hash, nil
}

// maybeOpenFeatureStore implements §4.7's gate: feature DB configured,
// its file exists, branch determinable and non-default, and its own
// feature_branch stamp matches the current branch. Any failure to
// satisfy one of these falls back to master-only (useFeature=false)
// rather than erroring the query.
func (q *QueryService) maybeOpenFeatureStore(ctx context.Context) (*store.Store, string, bool) {
	if q.settings.FeatureDBPath == "" {
		return nil, "", false
	}
	if !store.Exists(q.settings.FeatureDBPath) {
		return nil, "", false
	}

	branch, err := q.repo.CurrentBranch(ctx)
	if err != nil || branch == "" || branch == q.settings.DefaultBranch {
		return nil, "", false
	}

	featureStore, err := store.OpenReadOnly(q.settings.FeatureDBPath, q.logger)
	if err != nil {
		q.logger.WithError(err).Warn("failed to open feature store, falling back to master only")
		return nil, "", false
	}

	var stampedBranch string
	err = featureStore.Get(ctx, &stampedBranch, `SELECT value FROM schema_meta WHERE key = 'feature_branch'`)
	if err != nil || stampedBranch != branch {
		featureStore.Close()
		return nil, "", false
	}

	hash, err := q.commitHash(ctx, featureStore)
	if err != nil {
		featureStore.Close()
		return nil, "", false
	}
	return featureStore, hash, true
}
