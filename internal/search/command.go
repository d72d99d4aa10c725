package search

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/execshell"
	"github.com/temirov/pipealign/internal/fetch"
	"github.com/temirov/pipealign/internal/gitrepo"
	"github.com/temirov/pipealign/internal/store"
	"github.com/temirov/pipealign/internal/ui"
	flagutils "github.com/temirov/pipealign/internal/utils/flags"
)

const (
	searchCommandUseConstant             = "search <substring>"
	searchCommandShortConstant           = "Search pipeline definitions for a substring"
	searchCommandLongConstant            = "search retrieves pipeline definitions from every registered repository and prints each line containing the given substring."
	searchExecutionErrorTemplateConstant = "search failed: %w"
	queryArgumentMessageConstant         = "exactly one substring argument is required"
	openStoreErrorTemplateConstant       = "unable to open inspection store: %w"
	closeStoreWarningMessageConstant     = "Unable to close inspection store"
	matchLineTemplateConstant            = "%s: %s:%d: %s\n"
	noMatchesMessageConstant             = "No matches found\n"
)

var errQueryArgumentRequired = errors.New(queryArgumentMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the search command configuration.
type ConfigurationProvider func() Configuration

// HumanReadableLoggingProvider reports whether console formatting is enabled.
type HumanReadableLoggingProvider func() bool

// CommandBuilder assembles the search command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider HumanReadableLoggingProvider
	GitExecutor                  gitrepo.GitExecutor
	Retriever                    fetch.RepositoryRetriever
}

// Build constructs the search command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   searchCommandUseConstant,
		Short: searchCommandShortConstant,
		Long:  searchCommandLongConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments)
		},
	}

	defaults := DefaultConfiguration()
	command.Flags().StringArray(flagutils.RepositoryFlagName, nil, flagutils.RepositoryFlagUsage)
	command.Flags().String(flagutils.DatabaseFlagName, defaults.DatabasePath, flagutils.DatabaseFlagUsage)
	command.Flags().Int(flagutils.ConcurrencyFlagName, defaults.ConcurrencyLimit, flagutils.ConcurrencyFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errQueryArgumentRequired
	}

	configuration := builder.resolveConfiguration()
	options := parseOptions(command, configuration, arguments[0])

	logger := builder.resolveLogger()

	registryStore, storeError := store.Open(options.DatabasePath)
	if storeError != nil {
		return fmt.Errorf(openStoreErrorTemplateConstant, storeError)
	}
	defer func() {
		if closeError := registryStore.Close(); closeError != nil {
			logger.Warn(closeStoreWarningMessageConstant, zap.Error(closeError))
		}
	}()

	retriever, retrieverError := builder.resolveRetriever(logger)
	if retrieverError != nil {
		return retrieverError
	}

	fetchService, fetchServiceError := fetch.NewService(fetch.ServiceDependencies{Retriever: retriever, Logger: logger})
	if fetchServiceError != nil {
		return fetchServiceError
	}

	service, serviceError := NewService(ServiceDependencies{
		Fetcher:  fetchService,
		Registry: registryStore,
		Logger:   logger,
	})
	if serviceError != nil {
		return serviceError
	}

	summary, runError := service.Run(command.Context(), options.Run)
	if runError != nil {
		return fmt.Errorf(searchExecutionErrorTemplateConstant, runError)
	}

	renderMatches(command.OutOrStdout(), summary.Matches)
	return nil
}

// commandOptions carries the parsed flag and configuration values for one
// search invocation.
type commandOptions struct {
	DatabasePath string
	Run          RunOptions
}

func parseOptions(command *cobra.Command, configuration Configuration, query string) commandOptions {
	repositoryNames, _ := command.Flags().GetStringArray(flagutils.RepositoryFlagName)

	databasePath := configuration.DatabasePath
	if command.Flags().Changed(flagutils.DatabaseFlagName) {
		databaseValue, _ := command.Flags().GetString(flagutils.DatabaseFlagName)
		trimmedDatabaseValue := strings.TrimSpace(databaseValue)
		if len(trimmedDatabaseValue) > 0 {
			databasePath = trimmedDatabaseValue
		}
	}

	concurrencyLimit := configuration.ConcurrencyLimit
	if command.Flags().Changed(flagutils.ConcurrencyFlagName) {
		concurrencyValue, _ := command.Flags().GetInt(flagutils.ConcurrencyFlagName)
		if concurrencyValue > 0 {
			concurrencyLimit = concurrencyValue
		}
	}

	runOptions := RunOptions{
		Query:            query,
		RepositoryNames:  repositoryNames,
		ConcurrencyLimit: concurrencyLimit,
		WorkspaceRoot:    configuration.WorkspaceRoot,
		SparsePatterns:   configuration.PipelineGlobs,
		Credentials: gitrepo.Credentials{
			Username: configuration.Username,
			Token:    configuration.Token,
		},
	}

	return commandOptions{DatabasePath: databasePath, Run: runOptions}
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration().sanitize()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) humanReadableLoggingEnabled() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger) (gitrepo.GitExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}
	commandRunner := execshell.NewOSCommandRunner()
	if builder.humanReadableLoggingEnabled() {
		consoleObserver := ui.NewConsoleCommandEventLogger(logger)
		return execshell.NewShellExecutorWithObserver(logger, commandRunner, consoleObserver)
	}
	return execshell.NewShellExecutor(logger, commandRunner)
}

func (builder *CommandBuilder) resolveRetriever(logger *zap.Logger) (fetch.RepositoryRetriever, error) {
	if builder.Retriever != nil {
		return builder.Retriever, nil
	}
	gitExecutor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}
	gitManager, managerError := gitrepo.NewRepositoryManager(gitExecutor)
	if managerError != nil {
		return nil, managerError
	}
	return gitManager, nil
}

func renderMatches(outputWriter io.Writer, matches []Match) {
	if len(matches) == 0 {
		fmt.Fprint(outputWriter, noMatchesMessageConstant)
		return
	}
	for _, match := range matches {
		fmt.Fprintf(outputWriter, matchLineTemplateConstant, match.RepositoryName, match.FilePath, match.LineNumber, match.LineText)
	}
}
