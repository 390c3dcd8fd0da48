// Package gitutil wraps the `git` binary via os/exec, in the teacher's
// internal/git style: small, single-purpose command wrappers rather
// than a go-git object-model dependency. It backs the indexer's commit
// enumeration, per-commit changed-file discovery, and the
// feature-branch indexer's branch/merge-base/worktree-diff needs.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/swiftgraph/indexer/internal/codeerrors"
)

// Repo wraps one on-disk git working tree.
type Repo struct {
	path string
}

func Open(path string) *Repo {
	return &Repo{path: path}
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w (stderr: %s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// CommitInfo is one commit's plumbing-relevant metadata.
type CommitInfo struct {
	Hash       string
	ParentHash string
	Author     string
	Message    string
}

// BranchHead resolves a branch name to its current commit hash.
func (r *Repo) BranchHead(ctx context.Context, branch string) (string, error) {
	out, err := r.run(ctx, "rev-parse", branch)
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindGit, fmt.Sprintf("resolve branch %q", branch), err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name, or "" for a
// detached HEAD (§4.9 step 1's "skip on detached HEAD" case).
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// MergeBase returns the merge-base commit of a and b.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := r.run(ctx, "merge-base", a, b)
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindGit, fmt.Sprintf("merge-base %s %s", a, b), err)
	}
	return strings.TrimSpace(out), nil
}

// CommitsSince lists every commit reachable from `branch`'s head,
// excluding everything reachable from `since` (empty means "all"), in
// topological order (parents before children) so the indexer can
// process them in causal order.
func (r *Repo) CommitsSince(ctx context.Context, since, branch string) ([]CommitInfo, error) {
	rangeSpec := branch
	if since != "" {
		rangeSpec = since + ".." + branch
	}
	const sep = "\x1f"
	out, err := r.run(ctx, "log", "--topo-order", "--reverse",
		"--format=%H"+sep+"%P"+sep+"%an"+sep+"%s", rangeSpec)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindGit, fmt.Sprintf("log %s", rangeSpec), err)
	}
	var commits []CommitInfo
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, sep, 4)
		if len(fields) != 4 {
			continue
		}
		parents := strings.Fields(fields[1])
		parent := ""
		if len(parents) > 0 {
			parent = parents[0]
		}
		commits = append(commits, CommitInfo{Hash: fields[0], ParentHash: parent, Author: fields[2], Message: fields[3]})
	}
	return commits, nil
}

// ChangedFile is one file touched by a commit relative to its first
// parent (or the empty tree, for a root commit).
type ChangedFile struct {
	Path    string
	Deleted bool
}

// ChangedFiles returns the Swift files a commit touched.
func (r *Repo) ChangedFiles(ctx context.Context, commitHash string) ([]ChangedFile, error) {
	out, err := r.run(ctx, "diff-tree", "--no-commit-id", "--name-status", "-r", "--root", commitHash)
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindGit, fmt.Sprintf("diff-tree %s", commitHash), err)
	}
	var files []ChangedFile
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		path := parts[1]
		if !strings.HasSuffix(path, ".swift") {
			continue
		}
		files = append(files, ChangedFile{Path: path, Deleted: strings.HasPrefix(parts[0], "D")})
	}
	return files, nil
}

// FileContentAtCommit returns a file's blob content at commitHash, and
// false if the path did not exist in that commit's tree.
func (r *Repo) FileContentAtCommit(ctx context.Context, commitHash, path string) (string, bool, error) {
	out, err := r.run(ctx, "show", fmt.Sprintf("%s:%s", commitHash, path))
	if err != nil {
		return "", false, nil
	}
	return out, true, nil
}

// TrackedSwiftFiles lists every .swift file tracked at HEAD.
func (r *Repo) TrackedSwiftFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "ls-files", "*.swift")
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindGit, "ls-files", err)
	}
	return nonEmptyLines(out), nil
}

// WorkingTreeChanges implements §4.9 step 6's worktree overlay input:
// modified/deleted tracked files (index vs working tree) plus
// untracked .swift files.
func (r *Repo) WorkingTreeChanges(ctx context.Context) ([]ChangedFile, error) {
	var changes []ChangedFile

	diffOut, err := r.run(ctx, "diff", "--name-status")
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindGit, "diff --name-status", err)
	}
	for _, line := range strings.Split(diffOut, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 || !strings.HasSuffix(parts[1], ".swift") {
			continue
		}
		changes = append(changes, ChangedFile{Path: parts[1], Deleted: strings.HasPrefix(parts[0], "D")})
	}

	untrackedOut, err := r.run(ctx, "ls-files", "--others", "--exclude-standard", "*.swift")
	if err != nil {
		return nil, codeerrors.Wrap(codeerrors.KindGit, "ls-files --others", err)
	}
	for _, path := range nonEmptyLines(untrackedOut) {
		changes = append(changes, ChangedFile{Path: path, Deleted: false})
	}

	return changes, nil
}

// ReadWorkingTreeFile reads a file's current on-disk content relative
// to the repository root, for the worktree overlay pass.
func (r *Repo) ReadWorkingTreeFile(path string) (string, error) {
	out, err := os.ReadFile(filepath.Join(r.path, path))
	if err != nil {
		return "", codeerrors.Wrap(codeerrors.KindGit, fmt.Sprintf("read working tree file %q", path), err)
	}
	return string(out), nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
