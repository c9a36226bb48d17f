// Package flowver derives SemVer versions for Git repositories that follow
// git-flow branch conventions.
package flowver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

const (
	// DefaultRemote is the remote tags are fetched from
	DefaultRemote = "origin"

	shortHashLength = 7
)

var tagRefSpec = config.RefSpec("+refs/tags/*:refs/tags/*")

// Source provides the repository facts a calculation needs
type Source interface {
	// Fetch updates tags from the remote
	Fetch(ctx context.Context) error
	// Branch returns the checked out branch, or "" for a detached HEAD
	Branch() (string, error)
	// ShortHash returns the abbreviated HEAD commit hash
	ShortHash() (string, error)
	// Tags returns the tags reachable from HEAD, newest first
	Tags() ([]string, error)
	// CountCommits counts commits reachable from HEAD but not from tag.
	// An empty tag counts every commit reachable from HEAD.
	CountCommits(tag string) (uint64, error)
}

// GitSource reads repository facts with go-git
type GitSource struct {
	Repository *git.Repository

	// Remote to fetch tags from (default: "origin")
	Remote string

	Logger *zap.Logger
}

var _ Source = (*GitSource)(nil)

// OpenRepository opens a Git repository at the specified path
func OpenRepository(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

// NewGitSource returns a Source reading from repo
func NewGitSource(repo *git.Repository) *GitSource {
	return &GitSource{Repository: repo, Remote: DefaultRemote}
}

func (s *GitSource) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *GitSource) Fetch(ctx context.Context) error {
	remote := s.Remote
	if remote == "" {
		remote = DefaultRemote
	}

	err := s.Repository.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{tagRefSpec},
		Tags:       git.AllTags,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		s.logger().Debug("tags already up to date", zap.String("remote", remote))
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching from %q: %w", remote, err)
	}
	return nil
}

func (s *GitSource) Branch() (string, error) {
	head, err := s.Repository.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		s.logger().Debug("HEAD is detached", zap.Stringer("hash", head.Hash()))
		return "", nil
	}
	return head.Name().Short(), nil
}

func (s *GitSource) ShortHash() (string, error) {
	head, err := s.Repository.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return head.Hash().String()[:shortHashLength], nil
}

func (s *GitSource) Tags() ([]string, error) {
	head, err := s.Repository.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	byCommit, err := s.tagsByCommit()
	if err != nil {
		return nil, err
	}
	if len(byCommit) == 0 {
		return nil, nil
	}

	commit, err := s.Repository.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting commit object: %w", err)
	}

	// Breadth-first so tags closer to HEAD come first across merges
	var tags []string
	walker := object.NewCommitIterBSF(commit, nil, nil)
	err = walker.ForEach(func(c *object.Commit) error {
		tags = append(tags, byCommit[c.Hash]...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}

	s.logger().Debug("found reachable tags", zap.Int("count", len(tags)))
	return tags, nil
}

// tagsByCommit maps commit hashes to the names of the tags pointing at them.
// Names on the same commit are sorted descending.
func (s *GitSource) tagsByCommit() (map[plumbing.Hash][]string, error) {
	refs, err := s.Repository.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	byCommit := make(map[plumbing.Hash][]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		target, err := s.tagTarget(ref)
		if errors.Is(err, object.ErrUnsupportedObject) {
			s.logger().Debug("skipping tag not pointing at a commit", zap.String("tag", ref.Name().Short()))
			return nil
		}
		if err != nil {
			return err
		}
		byCommit[target] = append(byCommit[target], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, names := range byCommit {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return byCommit, nil
}

// tagTarget resolves a tag reference to the commit it points at, following
// annotated tag objects.
func (s *GitSource) tagTarget(ref *plumbing.Reference) (plumbing.Hash, error) {
	obj, err := s.Repository.TagObject(ref.Hash())
	switch err {
	case nil:
		// Annotated tag
		commit, err := obj.Commit()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolving tag %q: %w", ref.Name().Short(), err)
		}
		return commit.Hash, nil
	case plumbing.ErrObjectNotFound:
		// Lightweight tag
		return ref.Hash(), nil
	default:
		return plumbing.ZeroHash, err
	}
}

func (s *GitSource) CountCommits(tag string) (uint64, error) {
	head, err := s.Repository.Head()
	if err != nil {
		return 0, fmt.Errorf("resolving HEAD: %w", err)
	}

	excluded := map[plumbing.Hash]bool{}
	if tag != "" {
		excluded, err = s.ancestors(tag)
		if err != nil {
			return 0, err
		}
	}

	commit, err := s.Repository.CommitObject(head.Hash())
	if err != nil {
		return 0, fmt.Errorf("getting commit object: %w", err)
	}

	var count uint64
	walker := object.NewCommitPreorderIter(commit, excluded, nil)
	err = walker.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking history: %w", err)
	}
	return count, nil
}

// ancestors returns the tagged commit and every commit reachable from it
func (s *GitSource) ancestors(tag string) (map[plumbing.Hash]bool, error) {
	ref, err := s.Repository.Tag(tag)
	if err != nil {
		return nil, fmt.Errorf("looking up tag %q: %w", tag, err)
	}
	target, err := s.tagTarget(ref)
	if err != nil {
		return nil, err
	}
	commit, err := s.Repository.CommitObject(target)
	if err != nil {
		return nil, fmt.Errorf("getting commit object: %w", err)
	}

	seen := map[plumbing.Hash]bool{}
	walker := object.NewCommitPreorderIter(commit, nil, nil)
	err = walker.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	return seen, nil
}
