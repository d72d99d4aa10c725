package policy_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/internal/policy"
)

const (
	barePolicyDocumentConstant = "tasks:\n" +
		"  gitversion: \"5.12.0\"\n" +
		"  DotNetCoreCLI: \"2\"\n"
	wrappedPolicyDocumentConstant = "policy:\n" +
		"  tasks:\n" +
		"    gitversion: \"5.12.0\"\n"
	emptyVersionPolicyDocumentConstant = "tasks:\n" +
		"  gitversion: \"\"\n"
	malformedPolicyDocumentConstant = "tasks: [unbalanced\n"
	policyFileNameConstant          = "policy.yaml"
)

func TestParseConfiguration(testInstance *testing.T) {
	testCases := []struct {
		name          string
		document      string
		expectError   bool
		expectedTasks map[string]string
	}{
		{
			name:     "bare_layout",
			document: barePolicyDocumentConstant,
			expectedTasks: map[string]string{
				"gitversion":    "5.12.0",
				"DotNetCoreCLI": "2",
			},
		},
		{
			name:     "wrapped_layout",
			document: wrappedPolicyDocumentConstant,
			expectedTasks: map[string]string{
				"gitversion": "5.12.0",
			},
		},
		{
			name:        "empty_required_version",
			document:    emptyVersionPolicyDocumentConstant,
			expectError: true,
		},
		{
			name:        "malformed_document",
			document:    malformedPolicyDocumentConstant,
			expectError: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(classifierSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			configuration, parseError := policy.ParseConfiguration([]byte(testCase.document))

			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}

			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedTasks, configuration.Tasks)
		})
	}
}

func TestLoadConfigurationFromFile(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	policyFilePath := filepath.Join(temporaryDirectory, policyFileNameConstant)
	require.NoError(testInstance, os.WriteFile(policyFilePath, []byte(barePolicyDocumentConstant), 0o600))

	configuration, loadError := policy.LoadConfigurationFromFile(policyFilePath)
	require.NoError(testInstance, loadError)

	requiredVersion, entryExists := configuration.RequiredVersion("gitversion")
	require.True(testInstance, entryExists)
	require.Equal(testInstance, "5.12.0", requiredVersion)
}

func TestLoadConfigurationFromFileMissing(testInstance *testing.T) {
	_, loadError := policy.LoadConfigurationFromFile(filepath.Join(testInstance.TempDir(), policyFileNameConstant))
	require.Error(testInstance, loadError)
}

func TestRequiredVersionLookup(testInstance *testing.T) {
	configuration := policy.Configuration{Tasks: map[string]string{"DotNetCoreCLI": "2"}}

	testCases := []struct {
		name            string
		actionType      string
		expectFound     bool
		expectedVersion string
	}{
		{name: "exact_case", actionType: "DotNetCoreCLI", expectFound: true, expectedVersion: "2"},
		{name: "lowered_case", actionType: "dotnetcorecli", expectFound: true, expectedVersion: "2"},
		{name: "missing_entry", actionType: "PublishBuildArtifacts", expectFound: false},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(classifierSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			requiredVersion, entryExists := configuration.RequiredVersion(testCase.actionType)
			require.Equal(testInstance, testCase.expectFound, entryExists)
			require.Equal(testInstance, testCase.expectedVersion, requiredVersion)
		})
	}
}
