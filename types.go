// Package flowver derives SemVer versions for Git repositories that follow
// git-flow branch conventions.
package flowver

import (
	"errors"

	"github.com/blang/semver"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedBranch is returned when the branch matches none of the
	// git-flow categories.
	ErrUnsupportedBranch = errors.New("unsupported branch")

	// ErrInvalidBranchName is returned when a branch belongs to a category but
	// its name cannot be used, e.g. release/1.x or a missing application prefix.
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrUntaggedRelease is returned for main branch commits without a tag when
	// Options.RequireTag is set.
	ErrUntaggedRelease = errors.New("cannot version a production release from a commit without a tag")
)

// Category is the git-flow role of a branch
type Category int

const (
	CategoryOther Category = iota
	CategoryMain
	CategoryDevelop
	CategoryFeature
	CategoryRelease
	CategoryHotfix
)

func (c Category) String() string {
	switch c {
	case CategoryMain:
		return "main"
	case CategoryDevelop:
		return "develop"
	case CategoryFeature:
		return "feature"
	case CategoryRelease:
		return "release"
	case CategoryHotfix:
		return "hotfix"
	default:
		return "other"
	}
}

// Branch is a classified branch name. Version is only set for release and
// hotfix branches, Identifier only for feature branches.
type Branch struct {
	Name       string
	Category   Category
	Version    semver.Version
	Identifier semver.PRVersion
}

// Tag is a repository tag whose name parsed as a version
type Tag struct {
	Name    string
	Version semver.Version
}

// Options configures version calculation behavior
type Options struct {
	// AppName prefixes tags ("app-1.0.0") and release branches ("release/app-1.0.0")
	AppName string

	// BuildNumber overrides the commit count used in pre-release identifiers
	BuildNumber *uint64

	// SkipFetch disables fetching tags from the remote before calculating
	SkipFetch bool

	// Branch overrides the branch name read from HEAD (detached CI checkouts)
	Branch string

	// RequireTag fails main branch builds unless HEAD is exactly a tag
	RequireTag bool

	// Logger receives debug output; nil disables logging
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// VersionContext holds the facts gathered for a single calculation. It is
// built once by NewVersionContext and only read afterwards.
type VersionContext struct {
	Branch    Branch
	Base      semver.Version
	BaseFound bool
	Tag       string
	ShortHash string
	RevCount  uint64
	AppName   string
}

// NewVersionContext bundles the classified branch, resolved tag and commit facts.
func NewVersionContext(branch Branch, tag Tag, found bool, shortHash string, revCount uint64, appName string) VersionContext {
	return VersionContext{
		Branch:    branch,
		Base:      tag.Version,
		BaseFound: found,
		Tag:       tag.Name,
		ShortHash: shortHash,
		RevCount:  revCount,
		AppName:   appName,
	}
}

// Result is the output record of a calculation
type Result struct {
	AppVersion   string `json:"app_version"`
	ContainerTag string `json:"container_tag"`
	GitBranch    string `json:"git_branch"`
	GitRev       string `json:"git_rev"`
	RevCount     string `json:"rev_count"`
}
