package pipeline

import "strings"

const (
	gitVersionActionTypeConstant      = "gitversion"
	gitVersionSetupIdentifierConstant = "gitversion/setup"
	versionSpecPropertyNameConstant   = "versionSpec"
	versionSpecLookaheadLimitConstant = 10
)

// ActionShape describes how one action family declares its version beyond the inline task identifier.
//
// Shapes with a VersionProperty scan the lines following the invocation for a
// dedicated version-bearing property. The scan stops at the lookahead limit or
// at the next task invocation, whichever comes first.
type ActionShape struct {
	// ActionType names the action family the extracted reference belongs to.
	ActionType string
	// MatchesIdentifier reports whether a task identifier belongs to this shape.
	MatchesIdentifier func(identifier string) bool
	// VersionProperty names the property holding the version value.
	VersionProperty string
	// LookaheadLimit bounds how many lines after the invocation are scanned.
	LookaheadLimit int
}

// DefaultShapes returns the action shapes recognized out of the box.
func DefaultShapes() []ActionShape {
	return []ActionShape{
		{
			ActionType: gitVersionActionTypeConstant,
			MatchesIdentifier: func(identifier string) bool {
				return strings.EqualFold(identifier, gitVersionSetupIdentifierConstant)
			},
			VersionProperty: versionSpecPropertyNameConstant,
			LookaheadLimit:  versionSpecLookaheadLimitConstant,
		},
	}
}
