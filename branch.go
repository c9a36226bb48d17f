package flowver

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
)

const (
	featurePrefix = "feature/"
	releasePrefix = "release/"
	hotfixPrefix  = "hotfix/"
)

// ClassifyBranch maps a branch name to its git-flow category. Release and
// hotfix branches carry their version in the name; when appName is set that
// version must be prefixed with it, e.g. "release/app-1.2.0".
func ClassifyBranch(name, appName string) (Branch, error) {
	switch {
	case name == "main" || name == "master":
		return Branch{Name: name, Category: CategoryMain}, nil
	case name == "develop":
		return Branch{Name: name, Category: CategoryDevelop}, nil
	case strings.HasPrefix(name, featurePrefix):
		return classifyFeature(name)
	case strings.HasPrefix(name, releasePrefix):
		return classifyCandidate(name, releasePrefix, CategoryRelease, appName)
	case strings.HasPrefix(name, hotfixPrefix):
		return classifyCandidate(name, hotfixPrefix, CategoryHotfix, appName)
	}

	return Branch{Name: name, Category: CategoryOther}, fmt.Errorf("%w: %q", ErrUnsupportedBranch, name)
}

func classifyFeature(name string) (Branch, error) {
	escaped := escapeBranch(strings.TrimPrefix(name, featurePrefix))
	if escaped == "" {
		return Branch{}, fmt.Errorf("%w: %q has no feature name", ErrInvalidBranchName, name)
	}

	// Numeric names with leading zeros are not legal pre-release identifiers
	identifier, err := semver.NewPRVersion(escaped)
	if err != nil {
		return Branch{}, fmt.Errorf("%w: %q: %v", ErrInvalidBranchName, name, err)
	}

	return Branch{Name: name, Category: CategoryFeature, Identifier: identifier}, nil
}

func classifyCandidate(name, prefix string, category Category, appName string) (Branch, error) {
	remainder := strings.TrimPrefix(name, prefix)
	if appName != "" {
		appPrefix := appName + "-"
		if !strings.HasPrefix(remainder, appPrefix) {
			return Branch{}, fmt.Errorf("%w: %q is missing the %q prefix", ErrInvalidBranchName, name, appPrefix)
		}
		remainder = strings.TrimPrefix(remainder, appPrefix)
	}

	version, err := semver.Parse(remainder)
	if err != nil {
		return Branch{}, fmt.Errorf("%w: %q: %v", ErrInvalidBranchName, name, err)
	}
	if len(version.Pre) > 0 || len(version.Build) > 0 {
		return Branch{}, fmt.Errorf("%w: %q must name a plain major.minor.patch version", ErrInvalidBranchName, name)
	}

	return Branch{Name: name, Category: category, Version: version}, nil
}

// escapeBranch replaces every character outside [A-Za-z0-9] with a single "-".
// Runs are not collapsed so existing tags built from these names stay stable.
func escapeBranch(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
