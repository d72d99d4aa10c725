package policy_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/internal/policy"
)

const classifierSubtestNameTemplateConstant = "%d_%s"

func standardPolicyConfiguration() policy.Configuration {
	return policy.Configuration{
		Tasks: map[string]string{
			"gitversion":    "5.12.0",
			"DotNetCoreCLI": "2",
		},
	}
}

func TestClassifyDecisionTable(testInstance *testing.T) {
	testCases := []struct {
		name            string
		actionType      string
		declaredVersion string
		expectedState   policy.ValidState
	}{
		{
			name:            "no_policy_entry",
			actionType:      "PublishBuildArtifacts",
			declaredVersion: "1",
			expectedState:   policy.ValidStateNotApplicable,
		},
		{
			name:            "no_policy_entry_with_absent_version",
			actionType:      "PublishBuildArtifacts",
			declaredVersion: "",
			expectedState:   policy.ValidStateNotApplicable,
		},
		{
			name:            "absent_version_with_entry",
			actionType:      "gitversion",
			declaredVersion: "",
			expectedState:   policy.ValidStateUnparseable,
		},
		{
			name:            "variable_version_with_entry",
			actionType:      "gitversion",
			declaredVersion: "$(gitVersionTag)",
			expectedState:   policy.ValidStateUnparseable,
		},
		{
			name:            "exact_match",
			actionType:      "gitversion",
			declaredVersion: "5.12.0",
			expectedState:   policy.ValidStateStandard,
		},
		{
			name:            "padded_match",
			actionType:      "DotNetCoreCLI",
			declaredVersion: "2.0.0",
			expectedState:   policy.ValidStateStandard,
		},
		{
			name:            "case_insensitive_action_lookup",
			actionType:      "GitVersion",
			declaredVersion: "5.12.0",
			expectedState:   policy.ValidStateStandard,
		},
		{
			name:            "diverging_version",
			actionType:      "gitversion",
			declaredVersion: "4.0.0",
			expectedState:   policy.ValidStateNonStandard,
		},
		{
			name:            "diverging_major_shorthand",
			actionType:      "DotNetCoreCLI",
			declaredVersion: "3",
			expectedState:   policy.ValidStateNonStandard,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(classifierSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			classifiedState := policy.Classify(testCase.actionType, testCase.declaredVersion, standardPolicyConfiguration())
			require.Equal(testInstance, testCase.expectedState, classifiedState)
		})
	}
}

func TestClassifyWildcardPolicyValues(testInstance *testing.T) {
	configuration := policy.Configuration{Tasks: map[string]string{"gitversion": "5.x"}}

	require.Equal(testInstance, policy.ValidStateStandard, policy.Classify("gitversion", "5.x", configuration))
	require.Equal(testInstance, policy.ValidStateStandard, policy.Classify("gitversion", "5.X", configuration))
	require.Equal(testInstance, policy.ValidStateNonStandard, policy.Classify("gitversion", "6.x", configuration))
}

func TestClassifyAlwaysProducesKnownState(testInstance *testing.T) {
	actionTypes := []string{"gitversion", "DotNetCoreCLI", "UnknownTask", ""}
	declaredVersions := []string{"", "5.12.0", "banana", "$(variable)", "v2", "5.x"}

	for _, actionType := range actionTypes {
		for _, declaredVersion := range declaredVersions {
			classifiedState := policy.Classify(actionType, declaredVersion, standardPolicyConfiguration())
			require.Contains(testInstance, policy.KnownValidStates(), classifiedState)
		}
	}
}

func TestParseValidState(testInstance *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectError   bool
		expectedState policy.ValidState
	}{
		{name: "standard", input: "standard", expectedState: policy.ValidStateStandard},
		{name: "mixed_case", input: "Non_Standard", expectedState: policy.ValidStateNonStandard},
		{name: "padded_whitespace", input: " unparseable ", expectedState: policy.ValidStateUnparseable},
		{name: "not_applicable", input: "not_applicable", expectedState: policy.ValidStateNotApplicable},
		{name: "unknown_value", input: "pending", expectError: true},
		{name: "empty_value", input: "", expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(classifierSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			parsedState, parseError := policy.ParseValidState(testCase.input)

			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}

			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedState, parsedState)
		})
	}
}
