package gitrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/internal/execshell"
	"github.com/temirov/pipealign/internal/gitrepo"
)

const (
	testRemoteURLConstant        = "https://dev.example.com/platform/payments.git"
	testCloneDirectoryConstant   = "/tmp/pipealign/payments"
	testRepositoryPathConstant   = "/tmp/pipealign/payments"
	testDefaultBranchOutput      = "ref: refs/heads/main\tHEAD\n84f2f86f\tHEAD\n"
	testBranchlessSymrefOutput   = "84f2f86f\tHEAD\n"
	testCommitMessageConstant    = "Align pipeline task versions with the configured standard"
	testPushRemoteNameConstant   = "origin"
	testPushReferenceConstant    = "HEAD"
	testSparsePatternYMLConstant = "*pipeline*.yml"
)

type scriptedGitExecutor struct {
	executedDetails []execshell.CommandDetails
	scriptedResult  execshell.ExecutionResult
	scriptedError   error
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.executedDetails = append(executor.executedDetails, details)
	return executor.scriptedResult, executor.scriptedError
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	manager, constructionError := gitrepo.NewRepositoryManager(nil)
	require.Error(testInstance, constructionError)
	require.Nil(testInstance, manager)
}

func TestRepositoryManagerCloneSparse(testInstance *testing.T) {
	testCases := []struct {
		name              string
		options           gitrepo.CloneOptions
		expectError       bool
		expectedArguments []string
	}{
		{
			name: "clone_without_branch",
			options: gitrepo.CloneOptions{
				RemoteURL:       testRemoteURLConstant,
				TargetDirectory: testCloneDirectoryConstant,
			},
			expectedArguments: []string{
				"clone", "--filter=blob:none", "--no-checkout", "--depth", "1",
				testRemoteURLConstant, testCloneDirectoryConstant,
			},
		},
		{
			name: "clone_with_branch",
			options: gitrepo.CloneOptions{
				RemoteURL:       testRemoteURLConstant,
				TargetDirectory: testCloneDirectoryConstant,
				BranchName:      "develop",
			},
			expectedArguments: []string{
				"clone", "--filter=blob:none", "--no-checkout", "--depth", "1",
				"--branch", "develop",
				testRemoteURLConstant, testCloneDirectoryConstant,
			},
		},
		{
			name:        "missing_remote",
			options:     gitrepo.CloneOptions{TargetDirectory: testCloneDirectoryConstant},
			expectError: true,
		},
		{
			name:        "missing_target_directory",
			options:     gitrepo.CloneOptions{RemoteURL: testRemoteURLConstant},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{}
			manager, constructionError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, constructionError)

			cloneError := manager.CloneSparse(context.Background(), testCase.options)

			if testCase.expectError {
				require.Error(testInstance, cloneError)
				require.IsType(testInstance, gitrepo.InvalidInputError{}, cloneError)
				require.Empty(testInstance, executor.executedDetails)
				return
			}

			require.NoError(testInstance, cloneError)
			require.Len(testInstance, executor.executedDetails, 1)
			require.Equal(testInstance, testCase.expectedArguments, executor.executedDetails[0].Arguments)
			require.Empty(testInstance, executor.executedDetails[0].WorkingDirectory)
		})
	}
}

func TestRepositoryManagerConfigureSparsePatterns(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	configurationError := manager.ConfigureSparsePatterns(
		context.Background(),
		testRepositoryPathConstant,
		[]string{testSparsePatternYMLConstant, "*pipeline*.yaml"},
	)

	require.NoError(testInstance, configurationError)
	require.Len(testInstance, executor.executedDetails, 1)
	require.Equal(
		testInstance,
		[]string{"sparse-checkout", "set", "--no-cone", testSparsePatternYMLConstant, "*pipeline*.yaml"},
		executor.executedDetails[0].Arguments,
	)
	require.Equal(testInstance, testRepositoryPathConstant, executor.executedDetails[0].WorkingDirectory)
}

func TestRepositoryManagerConfigureSparsePatternsRequiresPatterns(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	configurationError := manager.ConfigureSparsePatterns(context.Background(), testRepositoryPathConstant, nil)

	require.Error(testInstance, configurationError)
	require.Empty(testInstance, executor.executedDetails)
}

func TestRepositoryManagerPopulateWorktree(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	populateError := manager.PopulateWorktree(context.Background(), testRepositoryPathConstant)

	require.NoError(testInstance, populateError)
	require.Len(testInstance, executor.executedDetails, 1)
	require.Equal(testInstance, []string{"checkout"}, executor.executedDetails[0].Arguments)
	require.Equal(testInstance, testRepositoryPathConstant, executor.executedDetails[0].WorkingDirectory)
}

func TestRepositoryManagerResolveDefaultBranch(testInstance *testing.T) {
	testCases := []struct {
		name           string
		scriptedOutput string
		expectedBranch string
		expectSentinel bool
	}{
		{
			name:           "symref_advertised",
			scriptedOutput: testDefaultBranchOutput,
			expectedBranch: "main",
		},
		{
			name:           "symref_missing",
			scriptedOutput: testBranchlessSymrefOutput,
			expectSentinel: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{scriptedResult: execshell.ExecutionResult{StandardOutput: testCase.scriptedOutput}}
			manager, constructionError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, constructionError)

			resolvedBranch, resolutionError := manager.ResolveDefaultBranch(context.Background(), testRemoteURLConstant)

			require.Len(testInstance, executor.executedDetails, 1)
			require.Equal(
				testInstance,
				[]string{"ls-remote", "--symref", testRemoteURLConstant, "HEAD"},
				executor.executedDetails[0].Arguments,
			)

			if testCase.expectSentinel {
				require.ErrorIs(testInstance, resolutionError, gitrepo.ErrDefaultBranchNotDetected)
				return
			}

			require.NoError(testInstance, resolutionError)
			require.Equal(testInstance, testCase.expectedBranch, resolvedBranch)
		})
	}
}

func TestRepositoryManagerStageCommitPush(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	stageError := manager.StageFiles(context.Background(), testRepositoryPathConstant, []string{"build/pipeline.yml"})
	require.NoError(testInstance, stageError)

	commitError := manager.CreateCommit(context.Background(), testRepositoryPathConstant, testCommitMessageConstant)
	require.NoError(testInstance, commitError)

	pushError := manager.Push(context.Background(), testRepositoryPathConstant, testPushRemoteNameConstant, testPushReferenceConstant)
	require.NoError(testInstance, pushError)

	require.Len(testInstance, executor.executedDetails, 3)
	require.Equal(testInstance, []string{"add", "--", "build/pipeline.yml"}, executor.executedDetails[0].Arguments)
	require.Equal(testInstance, []string{"commit", "-m", testCommitMessageConstant}, executor.executedDetails[1].Arguments)
	require.Equal(testInstance, []string{"push", testPushRemoteNameConstant, testPushReferenceConstant}, executor.executedDetails[2].Arguments)
	for _, details := range executor.executedDetails {
		require.Equal(testInstance, testRepositoryPathConstant, details.WorkingDirectory)
	}
}
