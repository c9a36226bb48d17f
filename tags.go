package flowver

import (
	"iter"
	"strings"

	"github.com/blang/semver"
)

// ResolveTag returns the first tag in tags that parses as a version. Tags are
// expected newest first and are consumed only until a match is found. When
// appName is set only tags named "{appName}-{version}" are considered.
//
// Tags that do not parse are skipped. If nothing matches, the 0.0.0 fallback
// is returned with found set to false.
func ResolveTag(tags iter.Seq[string], appName string) (tag Tag, found bool) {
	for name := range tags {
		version, ok := parseTag(name, appName)
		if ok {
			return Tag{Name: name, Version: version}, true
		}
	}
	return Tag{}, false
}

func parseTag(name, appName string) (semver.Version, bool) {
	remainder := name
	if appName != "" {
		appPrefix := appName + "-"
		if !strings.HasPrefix(name, appPrefix) {
			return semver.Version{}, false
		}
		remainder = strings.TrimPrefix(name, appPrefix)
	}

	version, err := semver.Parse(strings.TrimPrefix(remainder, "v"))
	if err != nil {
		return semver.Version{}, false
	}

	// Only the numeric core of an existing tag is trusted
	return semver.Version{
		Major: version.Major,
		Minor: version.Minor,
		Patch: version.Patch,
	}, true
}
