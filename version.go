// Package flowver derives SemVer versions for Git repositories that follow
// git-flow branch conventions.
package flowver

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"go.uber.org/zap"
)

// Calculate gathers branch, tag and commit facts from src and derives the
// version record for the current HEAD.
func Calculate(ctx context.Context, src Source, opts Options) (*Result, error) {
	if src == nil {
		return nil, fmt.Errorf("source is required")
	}
	log := opts.logger()

	if !opts.SkipFetch {
		log.Debug("fetching tags")
		if err := src.Fetch(ctx); err != nil {
			return nil, fmt.Errorf("fetching tags: %w", err)
		}
	}

	branchName := opts.Branch
	if branchName == "" {
		var err error
		branchName, err = src.Branch()
		if err != nil {
			return nil, fmt.Errorf("reading branch: %w", err)
		}
	}

	branch, err := ClassifyBranch(branchName, opts.AppName)
	if err != nil {
		return nil, fmt.Errorf("classifying branch: %w", err)
	}
	log.Debug("classified branch",
		zap.String("branch", branch.Name),
		zap.Stringer("category", branch.Category))

	tags, err := src.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	tag, found := ResolveTag(slices.Values(tags), opts.AppName)
	log.Debug("resolved base version",
		zap.String("tag", tag.Name),
		zap.Bool("found", found),
		zap.Stringer("version", tag.Version))

	shortHash, err := src.ShortHash()
	if err != nil {
		return nil, fmt.Errorf("reading commit hash: %w", err)
	}

	var commitCount uint64
	if opts.BuildNumber == nil || opts.RequireTag {
		commitCount, err = src.CountCommits(tag.Name)
		if err != nil {
			return nil, fmt.Errorf("counting commits: %w", err)
		}
	}

	if opts.RequireTag && branch.Category == CategoryMain && (!found || commitCount != 0) {
		return nil, ErrUntaggedRelease
	}

	revCount := commitCount
	if opts.BuildNumber != nil {
		revCount = *opts.BuildNumber
	}

	vctx := NewVersionContext(branch, tag, found, shortHash, revCount, opts.AppName)
	version, err := Compose(vctx)
	if err != nil {
		return nil, fmt.Errorf("composing version: %w", err)
	}
	log.Debug("composed version",
		zap.Stringer("version", version),
		zap.Uint64("rev_count", revCount))

	result := Format(version, vctx)
	return &result, nil
}

// Compose builds the version for the branch category in ctx. Only the patch
// number is ever bumped.
func Compose(ctx VersionContext) (semver.Version, error) {
	build, err := semver.NewBuildVersion(ctx.ShortHash)
	if err != nil {
		return semver.Version{}, fmt.Errorf("commit hash %q: %w", ctx.ShortHash, err)
	}

	version := semver.Version{
		Major: ctx.Base.Major,
		Minor: ctx.Base.Minor,
		Patch: ctx.Base.Patch,
		Build: []string{build},
	}
	count := semver.PRVersion{VersionNum: ctx.RevCount, IsNum: true}

	switch ctx.Branch.Category {
	case CategoryMain:
	case CategoryDevelop:
		version.Patch++
		version.Pre = []semver.PRVersion{{VersionStr: "beta"}, count}
	case CategoryFeature:
		version.Patch++
		version.Pre = []semver.PRVersion{{VersionStr: "alpha"}, count, ctx.Branch.Identifier}
	case CategoryRelease, CategoryHotfix:
		version.Major = ctx.Branch.Version.Major
		version.Minor = ctx.Branch.Version.Minor
		version.Patch = ctx.Branch.Version.Patch
		version.Pre = []semver.PRVersion{{VersionStr: "rc"}, count}
	default:
		return semver.Version{}, fmt.Errorf("%w: %q", ErrUnsupportedBranch, ctx.Branch.Name)
	}

	return version, nil
}

// Format renders version into the output record
func Format(version semver.Version, ctx VersionContext) Result {
	return Result{
		AppVersion:   version.String(),
		ContainerTag: containerTag(version),
		GitBranch:    ctx.Branch.Name,
		GitRev:       ctx.ShortHash,
		RevCount:     strconv.FormatUint(ctx.RevCount, 10),
	}
}

// containerTag joins every version component with "." since image tags
// cannot contain "+".
func containerTag(version semver.Version) string {
	parts := []string{
		strconv.FormatUint(version.Major, 10),
		strconv.FormatUint(version.Minor, 10),
		strconv.FormatUint(version.Patch, 10),
	}
	for _, pre := range version.Pre {
		parts = append(parts, pre.String())
	}
	parts = append(parts, version.Build...)
	return strings.Join(parts, ".")
}
