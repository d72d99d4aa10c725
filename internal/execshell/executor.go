package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	gitCommandNameConstant                     = "git"
	commandFailedErrorTemplateConstant         = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant      = "%s could not be executed: %v"
	commandFailedStandardErrorSuffixTemplate   = ": %s"
	loggerNotConfiguredMessageConstant         = "shell executor requires a logger"
	commandRunnerNotConfiguredMessageConstant  = "shell executor requires a command runner"
	logFieldCommandNameConstant                = "command_name"
	logFieldWorkingDirectoryConstant           = "working_directory"
	logFieldExitCodeConstant                   = "exit_code"
	executionResultUnavailableExitCodeConstant = -1
	redactedCredentialPlaceholderConstant      = "***"
	credentialSchemeSeparatorConstant          = "://"
	credentialUserInfoSeparatorConstant        = "@"
)

// CommandName identifies an external executable the executor can launch.
type CommandName string

// CommandGit identifies the git executable.
const CommandGit CommandName = CommandName(gitCommandNameConstant)

// CommandDetails captures the invocation parameters for a shell command.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult reports the observable outcome of a completed command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands and reports their results.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ErrLoggerNotConfigured reports that a ShellExecutor was constructed without a logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured reports that a ShellExecutor was constructed without a command runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandFailedError describes a command that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error implements the error interface for CommandFailedError.
func (commandError CommandFailedError) Error() string {
	standardErrorSuffix := ""
	trimmedStandardError := strings.TrimSpace(commandError.Result.StandardError)
	if len(trimmedStandardError) > 0 {
		standardErrorSuffix = fmt.Sprintf(commandFailedStandardErrorSuffixTemplate, trimmedStandardError)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode, standardErrorSuffix)
}

// CommandExecutionError describes a command that could not be executed at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error implements the error interface for CommandExecutionError.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As inspection.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs external commands through a CommandRunner while logging lifecycle events.
type ShellExecutor struct {
	logger           *zap.Logger
	commandRunner    CommandRunner
	eventObserver    CommandEventObserver
	messageFormatter CommandMessageFormatter
}

// NewShellExecutor constructs a ShellExecutor with a no-op event observer.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner) (*ShellExecutor, error) {
	return NewShellExecutorWithObserver(logger, commandRunner, nil)
}

// NewShellExecutorWithObserver constructs a ShellExecutor routing lifecycle events to the supplied observer.
func NewShellExecutorWithObserver(logger *zap.Logger, commandRunner CommandRunner, eventObserver CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	if eventObserver == nil {
		eventObserver = noopCommandEventObserver{}
	}
	return &ShellExecutor{
		logger:           logger,
		commandRunner:    commandRunner,
		eventObserver:    eventObserver,
		messageFormatter: CommandMessageFormatter{},
	}, nil
}

// ExecuteGit runs the git executable with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs the supplied command, logging its start and completion and notifying observers.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executor.eventObserver.CommandStarted(command)
	executor.logger.Debug(
		executor.messageFormatter.BuildStartedMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	)

	executionResult, runError := executor.commandRunner.Run(executionContext, command)
	if runError != nil {
		executor.eventObserver.CommandExecutionFailed(command, runError)
		executor.logger.Error(
			executor.messageFormatter.BuildExecutionFailureMessage(command, runError),
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResultUnavailableExitCodeConstant),
		)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.eventObserver.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Warn(
			executor.messageFormatter.BuildFailureMessage(command, executionResult),
			zap.String(logFieldCommandNameConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
		)
		return executionResult, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		executor.messageFormatter.BuildSuccessMessage(command),
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
	)
	return executionResult, nil
}

// RedactCredentialArgument removes embedded user information from URL-shaped arguments.
func RedactCredentialArgument(argument string) string {
	schemeIndex := strings.Index(argument, credentialSchemeSeparatorConstant)
	if schemeIndex < 0 {
		return argument
	}
	remainder := argument[schemeIndex+len(credentialSchemeSeparatorConstant):]
	userInfoIndex := strings.Index(remainder, credentialUserInfoSeparatorConstant)
	if userInfoIndex < 0 {
		return argument
	}
	return argument[:schemeIndex+len(credentialSchemeSeparatorConstant)] + redactedCredentialPlaceholderConstant + remainder[userInfoIndex:]
}
