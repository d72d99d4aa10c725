package policy

import (
	"fmt"
	"strings"
)

const (
	validStateStandardStringConstant      = "standard"
	validStateNonStandardStringConstant   = "non_standard"
	validStateUnparseableStringConstant   = "unparseable"
	validStateNotApplicableStringConstant = "not_applicable"
	unknownValidStateTemplateConstant     = "unknown valid state: %s"
)

// ValidState classifies one task reference against the policy.
type ValidState string

// Classification outcomes.
const (
	// ValidStateStandard marks declarations matching the required version.
	ValidStateStandard ValidState = ValidState(validStateStandardStringConstant)
	// ValidStateNonStandard marks declarations diverging from the required version.
	ValidStateNonStandard ValidState = ValidState(validStateNonStandardStringConstant)
	// ValidStateUnparseable marks declarations whose version is absent or unreadable.
	ValidStateUnparseable ValidState = ValidState(validStateUnparseableStringConstant)
	// ValidStateNotApplicable marks action types the policy defines no rule for.
	ValidStateNotApplicable ValidState = ValidState(validStateNotApplicableStringConstant)
)

// KnownValidStates returns every classification the classifier can produce.
func KnownValidStates() []ValidState {
	return []ValidState{ValidStateStandard, ValidStateNonStandard, ValidStateUnparseable, ValidStateNotApplicable}
}

// ParseValidState converts a textual state into a ValidState.
func ParseValidState(value string) (ValidState, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(value))
	for _, knownState := range KnownValidStates() {
		if normalizedValue == string(knownState) {
			return knownState, nil
		}
	}
	return "", fmt.Errorf(unknownValidStateTemplateConstant, value)
}

// Classify maps a task reference to exactly one ValidState.
//
// The outcome depends only on the action type, the declared version, and the
// policy snapshot. Action types without a policy entry are NotApplicable
// regardless of the declared version; unreadable versions are Unparseable only
// when a policy entry exists.
func Classify(actionType string, declaredVersion string, configuration Configuration) ValidState {
	requiredVersion, entryExists := configuration.RequiredVersion(actionType)
	if !entryExists {
		return ValidStateNotApplicable
	}
	if !RecognizeVersion(declaredVersion) {
		return ValidStateUnparseable
	}
	if VersionsEquivalent(declaredVersion, requiredVersion) {
		return ValidStateStandard
	}
	return ValidStateNonStandard
}
