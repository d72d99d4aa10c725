package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/pipealign/internal/execshell"
)

const (
	gitCloneSubcommandConstant          = "clone"
	gitBlobFilterFlagConstant           = "--filter=blob:none"
	gitNoCheckoutFlagConstant           = "--no-checkout"
	gitDepthFlagConstant                = "--depth"
	gitShallowDepthValueConstant        = "1"
	gitBranchFlagConstant               = "--branch"
	gitSparseCheckoutSubcommandConstant = "sparse-checkout"
	gitSparseCheckoutSetVerbConstant    = "set"
	gitNoConeFlagConstant               = "--no-cone"
	gitCheckoutSubcommandConstant       = "checkout"
	gitLSRemoteSubcommandConstant       = "ls-remote"
	gitSymrefFlagConstant               = "--symref"
	gitHeadReferenceConstant            = "HEAD"
	gitAddSubcommandConstant            = "add"
	gitPathSeparatorFlagConstant        = "--"
	gitCommitSubcommandConstant         = "commit"
	gitMessageFlagConstant              = "-m"
	gitPushSubcommandConstant           = "push"
	refsHeadsPrefixConstant             = "refs/heads/"
	symrefLinePrefixConstant            = "ref:"
	symrefFieldSeparatorConstant        = "\t"
	gitExecutorMissingMessageConstant   = "git executor not configured"
	defaultBranchNotDetectedMessage     = "default branch not detected"
	remoteURLFieldNameConstant          = "remote_url"
	targetDirectoryFieldNameConstant    = "target_directory"
	repositoryPathFieldNameConstant     = "repository_path"
	sparsePatternsFieldNameConstant     = "patterns"
	stagedPathsFieldNameConstant        = "paths"
	commitMessageFieldNameConstant      = "commit_message"
	remoteNameFieldNameConstant         = "remote_name"
	pushReferenceFieldNameConstant      = "reference"
)

var (
	errGitExecutorMissing = errors.New(gitExecutorMissingMessageConstant)

	// ErrDefaultBranchNotDetected indicates the remote advertised no usable HEAD symref.
	ErrDefaultBranchNotDetected = errors.New(defaultBranchNotDetectedMessage)
)

// GitExecutor exposes the subset of shell execution used by the repository manager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// InvalidInputError describes repository operation validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", inputError.FieldName, inputError.Message)
}

// CloneOptions configures a sparse shallow clone.
type CloneOptions struct {
	RemoteURL       string
	TargetDirectory string
	BranchName      string
}

// RepositoryManager performs repository-level git operations through a shell executor.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, errGitExecutorMissing
	}
	return &RepositoryManager{executor: executor}, nil
}

// CloneSparse creates a blob-filtered shallow clone without materializing the worktree.
func (manager *RepositoryManager) CloneSparse(executionContext context.Context, options CloneOptions) error {
	if len(strings.TrimSpace(options.RemoteURL)) == 0 {
		return InvalidInputError{FieldName: remoteURLFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.TargetDirectory)) == 0 {
		return InvalidInputError{FieldName: targetDirectoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: sparseCloneArguments(options),
	})
	return executionError
}

// ConfigureSparsePatterns restricts the sparse checkout to the provided patterns.
func (manager *RepositoryManager) ConfigureSparsePatterns(executionContext context.Context, repositoryPath string, patterns []string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return InvalidInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(patterns) == 0 {
		return InvalidInputError{FieldName: sparsePatternsFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        sparsePatternArguments(patterns),
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// PopulateWorktree materializes the files selected by the sparse patterns.
func (manager *RepositoryManager) PopulateWorktree(executionContext context.Context, repositoryPath string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return InvalidInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCheckoutSubcommandConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// ResolveDefaultBranch queries the remote HEAD symref and returns the branch it points at.
func (manager *RepositoryManager) ResolveDefaultBranch(executionContext context.Context, remoteURL string) (string, error) {
	if len(strings.TrimSpace(remoteURL)) == 0 {
		return "", InvalidInputError{FieldName: remoteURLFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitLSRemoteSubcommandConstant, gitSymrefFlagConstant, remoteURL, gitHeadReferenceConstant},
	})
	if executionError != nil {
		return "", executionError
	}

	for _, outputLine := range strings.Split(executionResult.StandardOutput, "\n") {
		if !strings.HasPrefix(outputLine, symrefLinePrefixConstant) {
			continue
		}
		components := strings.Split(outputLine, symrefFieldSeparatorConstant)
		referenceParts := strings.Fields(components[0])
		if len(referenceParts) < 2 {
			continue
		}
		reference := referenceParts[1]
		if !strings.HasPrefix(reference, refsHeadsPrefixConstant) {
			continue
		}
		return strings.TrimPrefix(reference, refsHeadsPrefixConstant), nil
	}

	return "", ErrDefaultBranchNotDetected
}

// StageFiles adds the provided repository-relative paths to the index.
func (manager *RepositoryManager) StageFiles(executionContext context.Context, repositoryPath string, paths []string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return InvalidInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(paths) == 0 {
		return InvalidInputError{FieldName: stagedPathsFieldNameConstant, Message: requiredValueMessageConstant}
	}

	stageArguments := []string{gitAddSubcommandConstant, gitPathSeparatorFlagConstant}
	stageArguments = append(stageArguments, paths...)
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        stageArguments,
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// CreateCommit records the staged changes using the provided message.
func (manager *RepositoryManager) CreateCommit(executionContext context.Context, repositoryPath string, message string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return InvalidInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(message)) == 0 {
		return InvalidInputError{FieldName: commitMessageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitMessageFlagConstant, message},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// Push publishes the provided reference to the named remote.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string, reference string) error {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return InvalidInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(remoteName)) == 0 {
		return InvalidInputError{FieldName: remoteNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(reference)) == 0 {
		return InvalidInputError{FieldName: pushReferenceFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitPushSubcommandConstant, remoteName, reference},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

func sparseCloneArguments(options CloneOptions) []string {
	cloneArguments := []string{
		gitCloneSubcommandConstant,
		gitBlobFilterFlagConstant,
		gitNoCheckoutFlagConstant,
		gitDepthFlagConstant,
		gitShallowDepthValueConstant,
	}
	trimmedBranch := strings.TrimSpace(options.BranchName)
	if len(trimmedBranch) > 0 {
		cloneArguments = append(cloneArguments, gitBranchFlagConstant, trimmedBranch)
	}
	return append(cloneArguments, options.RemoteURL, options.TargetDirectory)
}

func sparsePatternArguments(patterns []string) []string {
	patternArguments := []string{
		gitSparseCheckoutSubcommandConstant,
		gitSparseCheckoutSetVerbConstant,
		gitNoConeFlagConstant,
	}
	return append(patternArguments, patterns...)
}
