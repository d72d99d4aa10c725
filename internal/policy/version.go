package policy

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const versionSyntaxPatternConstant = `^[vV]?\d+(\.\d+)*(\.[xX*])?$`

var versionSyntaxPattern = regexp.MustCompile(versionSyntaxPatternConstant)

// RecognizeVersion reports whether the declared version uses a supported syntax.
//
// Supported values are numeric version prefixes such as "5", "5.12", and
// "5.12.0", optionally prefixed with "v" or terminated with a wildcard segment
// as in "5.x".
func RecognizeVersion(declaredVersion string) bool {
	return versionSyntaxPattern.MatchString(strings.TrimSpace(declaredVersion))
}

// NormalizeVersion parses a declared version, padding partial values to full semantic versions.
func NormalizeVersion(declaredVersion string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimSpace(declaredVersion))
}

// VersionsEquivalent reports whether two version values denote the same version.
//
// Values that both parse as semantic versions compare by version equality, so
// "5" matches "5.0.0". Wildcard values fall back to a case-insensitive string
// comparison.
func VersionsEquivalent(firstVersion string, secondVersion string) bool {
	firstParsed, firstParseError := NormalizeVersion(firstVersion)
	secondParsed, secondParseError := NormalizeVersion(secondVersion)
	if firstParseError == nil && secondParseError == nil {
		return firstParsed.Equal(secondParsed)
	}
	return strings.EqualFold(strings.TrimSpace(firstVersion), strings.TrimSpace(secondVersion))
}
