package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitCloneSubcommandNameConstant          = "clone"
	gitSparseCheckoutSubcommandNameConstant = "sparse-checkout"
	gitCheckoutSubcommandNameConstant       = "checkout"
	gitLSRemoteSubcommandNameConstant       = "ls-remote"
	gitSymrefFlagConstant                   = "--symref"
	gitAddSubcommandNameConstant            = "add"
	gitCommitSubcommandNameConstant         = "commit"
	gitMessageFlagConstant                  = "-m"
	gitPushSubcommandNameConstant           = "push"
)

const (
	gitCloneStartTemplateConstant                            = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant                          = "Cloned %s into %s"
	gitCloneFailureTemplateConstant                          = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant                 = "Unable to clone %s into %s: %s"
	gitSparseCheckoutStartTemplateConstant                   = "Configuring sparse checkout in %s"
	gitSparseCheckoutSuccessTemplateConstant                 = "Configured sparse checkout in %s"
	gitSparseCheckoutFailureTemplateConstant                 = "Failed to configure sparse checkout in %s (exit code %d%s)"
	gitSparseCheckoutExecutionFailureTemplateConstant        = "Unable to configure sparse checkout in %s: %s"
	gitCheckoutStartTemplateConstant                         = "Materializing checkout in %s"
	gitCheckoutSuccessTemplateConstant                       = "Materialized checkout in %s"
	gitCheckoutFailureTemplateConstant                       = "Failed to materialize checkout in %s (exit code %d%s)"
	gitCheckoutExecutionFailureTemplateConstant              = "Unable to materialize checkout in %s: %s"
	gitCheckoutBranchStartTemplateConstant                   = "Switching %s to branch %s"
	gitCheckoutBranchSuccessTemplateConstant                 = "%s now on branch %s"
	gitCheckoutBranchFailureTemplateConstant                 = "Failed to switch %s to branch %s (exit code %d%s)"
	gitCheckoutBranchExecutionFailureTemplateConstant        = "Unable to switch %s to branch %s: %s"
	gitLSRemoteDefaultBranchStartTemplateConstant            = "Checking default branch on %s"
	gitLSRemoteDefaultBranchSuccessTemplateConstant          = "Retrieved default branch information for %s"
	gitLSRemoteDefaultBranchFailureTemplateConstant          = "Failed to check default branch on %s (exit code %d%s)"
	gitLSRemoteDefaultBranchExecutionFailureTemplateConstant = "Unable to check default branch on %s: %s"
	gitLSRemoteGenericStartTemplateConstant                  = "Querying remote references on %s"
	gitLSRemoteGenericSuccessTemplateConstant                = "Queried remote references on %s"
	gitLSRemoteGenericFailureTemplateConstant                = "Failed to query remote references on %s (exit code %d%s)"
	gitLSRemoteGenericExecutionFailureTemplateConstant       = "Unable to query remote references on %s: %s"
	gitAddStartTemplateConstant                              = "Staging %s in %s"
	gitAddSuccessTemplateConstant                            = "Staged %s in %s"
	gitAddFailureTemplateConstant                            = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant                   = "Unable to stage %s in %s: %s"
	gitCommitStartTemplateConstant                           = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant                         = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant                         = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant                = "Unable to create commit in %s with message %q: %s"
	gitPushStartTemplateConstant                             = "Pushing %s to %s from %s"
	gitPushSuccessTemplateConstant                           = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant                           = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant                  = "Unable to push %s to %s from %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	switch subcommand {
	case gitCloneSubcommandNameConstant:
		return formatter.describeGitCloneMessage(command, result, failure, stage)
	case gitSparseCheckoutSubcommandNameConstant:
		return formatter.describeGitSparseCheckoutMessage(command, result, failure, stage)
	case gitCheckoutSubcommandNameConstant:
		return formatter.describeGitCheckoutMessage(command, result, failure, stage)
	case gitLSRemoteSubcommandNameConstant:
		return formatter.describeGitLSRemoteMessage(command, result, failure, stage)
	case gitAddSubcommandNameConstant:
		return formatter.describeGitAddMessage(command, result, failure, stage)
	case gitCommitSubcommandNameConstant:
		return formatter.describeGitCommitMessage(command, result, failure, stage)
	case gitPushSubcommandNameConstant:
		return formatter.describeGitPushMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCloneMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	positionalArguments := formatter.collectNonFlagArguments(command.Details.Arguments[1:])
	remoteLabel := fallbackUnknownValueLabelConstant
	destinationLabel := fallbackUnknownValueLabelConstant
	if len(positionalArguments) > 0 {
		remoteLabel = RedactCredentialArgument(positionalArguments[0])
	}
	if len(positionalArguments) > 1 {
		destinationLabel = positionalArguments[1]
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCloneStartTemplateConstant, remoteLabel, destinationLabel)
	case messageStageSuccess:
		return fmt.Sprintf(gitCloneSuccessTemplateConstant, remoteLabel, destinationLabel)
	case messageStageFailure:
		return fmt.Sprintf(gitCloneFailureTemplateConstant, remoteLabel, destinationLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, remoteLabel, destinationLabel, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitSparseCheckoutMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitSparseCheckoutStartTemplateConstant, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitSparseCheckoutSuccessTemplateConstant, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitSparseCheckoutFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitSparseCheckoutExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCheckoutMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	branchName := formatter.extractFirstNonFlagArgument(command.Details.Arguments[1:])

	if len(branchName) == 0 {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCheckoutStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitCheckoutSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitCheckoutFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCheckoutExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		default:
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCheckoutBranchStartTemplateConstant, workingDirectory, branchName)
	case messageStageSuccess:
		return fmt.Sprintf(gitCheckoutBranchSuccessTemplateConstant, workingDirectory, branchName)
	case messageStageFailure:
		return fmt.Sprintf(gitCheckoutBranchFailureTemplateConstant, workingDirectory, branchName, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCheckoutBranchExecutionFailureTemplateConstant, workingDirectory, branchName, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitLSRemoteMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	remoteLabel := formatter.ensureValue(RedactCredentialArgument(formatter.extractFirstNonFlagArgument(arguments[1:])))
	hasSymref := containsArgument(arguments, gitSymrefFlagConstant)

	switch stage {
	case messageStageStart:
		if hasSymref {
			return fmt.Sprintf(gitLSRemoteDefaultBranchStartTemplateConstant, remoteLabel)
		}
		return fmt.Sprintf(gitLSRemoteGenericStartTemplateConstant, remoteLabel)
	case messageStageSuccess:
		if hasSymref {
			return fmt.Sprintf(gitLSRemoteDefaultBranchSuccessTemplateConstant, remoteLabel)
		}
		return fmt.Sprintf(gitLSRemoteGenericSuccessTemplateConstant, remoteLabel)
	case messageStageFailure:
		if hasSymref {
			return fmt.Sprintf(gitLSRemoteDefaultBranchFailureTemplateConstant, remoteLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		}
		return fmt.Sprintf(gitLSRemoteGenericFailureTemplateConstant, remoteLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		if hasSymref {
			return fmt.Sprintf(gitLSRemoteDefaultBranchExecutionFailureTemplateConstant, remoteLabel, formatter.describeFailure(failure))
		}
		return fmt.Sprintf(gitLSRemoteGenericExecutionFailureTemplateConstant, remoteLabel, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitAddMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	targetPath := formatter.ensureValue(formatter.extractFirstNonFlagArgument(command.Details.Arguments[1:]))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitAddStartTemplateConstant, targetPath, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitAddSuccessTemplateConstant, targetPath, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitAddFailureTemplateConstant, targetPath, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, targetPath, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCommitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	commitMessage := formatter.extractCommitMessage(command.Details.Arguments)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, commitMessage)
	case messageStageSuccess:
		return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, commitMessage)
	case messageStageFailure:
		return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, commitMessage, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, commitMessage, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitPushMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	positionalArguments := formatter.collectNonFlagArguments(command.Details.Arguments[1:])
	remoteLabel := fallbackUnknownValueLabelConstant
	referenceLabel := fallbackUnknownValueLabelConstant
	if len(positionalArguments) > 0 {
		remoteLabel = RedactCredentialArgument(positionalArguments[0])
	}
	if len(positionalArguments) > 1 {
		referenceLabel = positionalArguments[1]
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitPushStartTemplateConstant, referenceLabel, remoteLabel, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, referenceLabel, remoteLabel, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitPushFailureTemplateConstant, referenceLabel, remoteLabel, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, referenceLabel, remoteLabel, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		redactedArguments := make([]string, 0, len(command.Details.Arguments))
		for _, argument := range command.Details.Arguments {
			redactedArguments = append(redactedArguments, RedactCredentialArgument(argument))
		}
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(redactedArguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, RedactCredentialArgument(trimmedStandardError))
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			continue
		}
		return trimmed
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) collectNonFlagArguments(arguments []string) []string {
	collected := make([]string, 0, len(arguments))
	skipNext := false
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if skipNext {
			skipNext = false
			continue
		}
		if len(trimmed) == 0 {
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			if flagExpectsValue(trimmed) {
				skipNext = true
			}
			continue
		}
		collected = append(collected, trimmed)
	}
	return collected
}

func (formatter CommandMessageFormatter) extractCommitMessage(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == gitMessageFlagConstant && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return fallbackUnknownValueLabelConstant
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

// flagExpectsValue reports whether the flag consumes the following argument.
func flagExpectsValue(flag string) bool {
	switch flag {
	case "--branch", "--filter", "--depth", "-b", gitMessageFlagConstant:
		return true
	default:
		return false
	}
}
