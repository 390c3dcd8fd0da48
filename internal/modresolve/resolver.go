// Package modresolve implements the module resolver (§4.3): given a
// file's path relative to a repository root, it answers which target
// (module name + target type) owns that file.
//
// The primary strategy mirrors original_source's TuistDependenciesWorker:
// load every Project.swift manifest under the root once, flatten each
// target's (and nested test target's) source globs into normalized
// source roots, then resolve a file by longest-prefix match across all
// roots. Test source roots are registered ahead of their owning
// target's main roots so a file under both a target's general sources
// and a narrower test root classifies as "test".
package modresolve

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/swiftgraph/indexer/internal/manifest"
)

// TargetInfo is one flattened, resolvable target.
type TargetInfo struct {
	Name        string
	TargetType  string
	SourceRoots []string // slash-separated, relative to the repository root
}

// Resolver answers module/target-type queries for files under one
// repository root. One Resolver should be built per indexing pass and
// reused across every file of that pass (§5: its lookup cache is local
// to one indexing pass).
type Resolver struct {
	root    string
	targets []TargetInfo
	cache   map[string]*TargetInfo
}

// NewResolver walks root for Project.swift manifests and loads their
// targets. A root with no manifests produces a Resolver that always
// falls through to the ancestor-walk and final fallback strategies.
func NewResolver(root string) (*Resolver, error) {
	r := &Resolver{root: root, cache: make(map[string]*TargetInfo)}
	manifestPaths, err := findManifests(root)
	if err != nil {
		return nil, err
	}
	for _, path := range manifestPaths {
		src, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		project, err := manifest.Parse(path, src)
		if err != nil {
			continue
		}
		r.targets = append(r.targets, flattenTargets(root, filepath.Dir(path), project)...)
	}
	return r, nil
}

// findManifests returns every Project.swift file under root, matching
// DependenciesWorker._project_files's rglob("Project.swift").
func findManifests(root string) ([]string, error) {
	var found []string
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return found, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == "Project.swift" {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// flattenTargets expands one parsed Project's targets (and their
// nested test subtargets) into resolvable TargetInfo entries, test
// entries first so they win ties against their parent target's
// broader roots at equal depth.
func flattenTargets(root, projectDir string, project *manifest.Project) []TargetInfo {
	var out []TargetInfo
	for _, t := range project.Targets {
		for _, test := range t.Tests {
			if len(test.Sources) == 0 {
				continue
			}
			out = append(out, TargetInfo{
				Name:        manifest.SyntheticTestTargetName(t.Name, test.TestsType),
				TargetType:  "test",
				SourceRoots: normalizeSources(root, projectDir, test.Sources),
			})
		}

		sources := t.Sources
		if len(sources) == 0 {
			sources = []string{defaultSourcePath(root, projectDir, t.Name)}
		}
		out = append(out, TargetInfo{
			Name:        t.Name,
			TargetType:  t.TargetType,
			SourceRoots: normalizeSources(root, projectDir, sources),
		})
	}
	return out
}

// defaultSourcePath reproduces _default_sources: <project_dir>/Targets/<name>/Sources.
func defaultSourcePath(root, projectDir, name string) string {
	abs := filepath.Join(projectDir, "Targets", name, "Sources")
	return toRelativeSlash(root, abs)
}

// normalizeSources applies _normalize_source to each glob: trim at the
// first wildcard/brace token, strip trailing slashes, and re-root
// relative to the repository root.
func normalizeSources(root, projectDir string, sources []string) []string {
	roots := make([]string, 0, len(sources))
	for _, src := range sources {
		roots = append(roots, normalizeSource(root, projectDir, src))
	}
	return roots
}

func normalizeSource(root, projectDir, source string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(source), `\`, "/")
	if cleaned == "" {
		return toRelativeSlash(root, projectDir)
	}
	cut := len(cleaned)
	for _, token := range []string{"{", "*"} {
		if idx := strings.IndexByte(cleaned, token[0]); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	cleaned = strings.TrimRight(cleaned[:cut], "/")
	if cleaned == "" {
		return toRelativeSlash(root, projectDir)
	}
	return toRelativeSlash(root, filepath.Join(projectDir, cleaned))
}

func toRelativeSlash(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = abs
	}
	return filepath.ToSlash(rel)
}

// TargetFor resolves the target owning relativePath via longest-prefix
// match across every loaded target's source roots (§4.3 step 1).
// Depth is measured in path segments, matching _path_is_within's
// part-count tie-break. A miss here falls through to ResolveModule's
// ancestor-walk and final-fallback strategies.
func (r *Resolver) TargetFor(relativePath string) (*TargetInfo, bool) {
	relativePath = filepath.ToSlash(relativePath)
	if cached, ok := r.cache[relativePath]; ok {
		return cached, cached != nil
	}

	var best *TargetInfo
	bestDepth := -1
	for i := range r.targets {
		target := &r.targets[i]
		for _, root := range target.SourceRoots {
			if !pathIsWithin(relativePath, root) {
				continue
			}
			depth := len(strings.Split(root, "/"))
			if depth > bestDepth {
				best = target
				bestDepth = depth
			}
		}
	}
	r.cache[relativePath] = best
	return best, best != nil
}

// pathIsWithin mirrors _path_is_within: an empty root matches
// everything; otherwise candidate's leading path segments must equal
// root's segments exactly.
func pathIsWithin(candidate, root string) bool {
	if root == "" || root == "." {
		return true
	}
	candidateParts := strings.Split(candidate, "/")
	rootParts := strings.Split(root, "/")
	if len(candidateParts) < len(rootParts) {
		return false
	}
	for i, part := range rootParts {
		if candidateParts[i] != part {
			return false
		}
	}
	return true
}

// ResolveModule implements the full §4.3 resolution order: longest-
// prefix match against loaded targets, then an ancestor-directory walk
// reading any manifest found along the way, then a final fallback to
// the file's parent directory name (or "root").
func (r *Resolver) ResolveModule(relativePath string) (module, targetType string) {
	if target, ok := r.TargetFor(relativePath); ok {
		return target.Name, target.TargetType
	}
	if target, ok := r.walkAncestors(relativePath); ok {
		return target.Name, target.TargetType
	}
	return fallbackModuleName(relativePath), "app"
}

// walkAncestors implements §4.3 step 2 for repositories with no
// up-front loaded manifests (or files outside every loaded target):
// walk up from the file's directory, and at the first ancestor holding
// a Project.swift, parse it on the spot and pick the target whose
// source root covers the file; else its first target; else give up.
func (r *Resolver) walkAncestors(relativePath string) (*TargetInfo, bool) {
	dir := filepath.Dir(relativePath)
	for {
		manifestPath := filepath.Join(r.root, dir, "Project.swift")
		if src, err := os.ReadFile(manifestPath); err == nil {
			if project, err := manifest.Parse(manifestPath, src); err == nil {
				targets := flattenTargets(r.root, filepath.Join(r.root, dir), project)
				for i := range targets {
					for _, root := range targets[i].SourceRoots {
						if pathIsWithin(relativePath, root) {
							return &targets[i], true
						}
					}
				}
				if len(targets) > 0 {
					return &targets[0], true
				}
			}
		}
		if dir == "." || dir == "/" || dir == "" {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, false
}

// fallbackModuleName implements §4.3 step 3: the file's parent
// directory name, or "root" for a file at the repository root.
func fallbackModuleName(relativePath string) string {
	dir := filepath.Dir(filepath.ToSlash(relativePath))
	if dir == "." || dir == "/" || dir == "" {
		return "root"
	}
	base := filepath.Base(dir)
	if base == "." || base == "/" || base == "" {
		return "root"
	}
	return base
}
