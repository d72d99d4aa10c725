package repos

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/execshell"
	"github.com/temirov/pipealign/internal/gitrepo"
	"github.com/temirov/pipealign/internal/store"
	"github.com/temirov/pipealign/internal/ui"
	flagutils "github.com/temirov/pipealign/internal/utils/flags"
)

const (
	repoCommandUseConstant               = "repo"
	repoCommandShortConstant             = "Manage the repository registry"
	repoCommandLongConstant              = "repo registers, removes, and lists the repositories pipealign inspects."
	addCommandUseConstant                = "add <remote-url>"
	addCommandShortConstant              = "Register a repository for inspection"
	addCommandLongConstant               = "add validates the remote URL, derives the registry name when none is given, and records the repository in the inspection database."
	addExecutionErrorTemplateConstant    = "repository registration failed: %w"
	removeCommandUseConstant             = "remove <name-or-url>"
	removeCommandShortConstant           = "Remove a repository from the registry"
	removeCommandLongConstant            = "remove deletes the registry entry addressed by name or by registered remote URL."
	removeExecutionErrorTemplateConstant = "repository removal failed: %w"
	listCommandUseConstant               = "list"
	listCommandShortConstant             = "List registered repositories"
	listCommandLongConstant              = "list prints every registered repository with its remote URL and default branch."
	listExecutionErrorTemplateConstant   = "repository listing failed: %w"
	nameFlagNameConstant                 = "name"
	nameFlagUsageConstant                = "Registry name overriding the name derived from the remote URL"
	branchFlagNameConstant               = "branch"
	branchFlagUsageConstant              = "Default branch checked out during retrieval"
	remoteURLArgumentMessageConstant     = "exactly one remote URL argument is required"
	nameOrURLArgumentMessageConstant     = "exactly one repository name or remote URL argument is required"
	listArgumentsMessageConstant         = "positional arguments are not accepted"
	openStoreErrorTemplateConstant       = "unable to open inspection store: %w"
	closeStoreWarningMessageConstant     = "Unable to close inspection store"
	registeredLineTemplateConstant       = "Registered %s (%s)\n"
	removedLineTemplateConstant          = "Removed %s\n"
	emptyRegistryMessageConstant         = "No repositories registered\n"
	repositoryRowTemplateConstant        = "%s\t%s\t%s\n"
	missingBranchPlaceholderConstant     = "-"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the registry command configuration.
type ConfigurationProvider func() Configuration

// HumanReadableLoggingProvider reports whether console formatting is enabled.
type HumanReadableLoggingProvider func() bool

// CommandBuilder assembles the repo command tree with configurable
// dependencies.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider HumanReadableLoggingProvider
	GitExecutor                  gitrepo.GitExecutor
	BranchResolver               DefaultBranchResolver
}

// Build constructs the repo command with its add, remove, and list
// subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	repoCommand := &cobra.Command{
		Use:   repoCommandUseConstant,
		Short: repoCommandShortConstant,
		Long:  repoCommandLongConstant,
	}
	repoCommand.AddCommand(builder.buildAddCommand(), builder.buildRemoveCommand(), builder.buildListCommand())
	return repoCommand, nil
}

func (builder *CommandBuilder) buildAddCommand() *cobra.Command {
	addCommand := &cobra.Command{
		Use:   addCommandUseConstant,
		Short: addCommandShortConstant,
		Long:  addCommandLongConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runAdd(command, arguments)
		},
	}

	addCommand.Flags().String(nameFlagNameConstant, "", nameFlagUsageConstant)
	addCommand.Flags().String(branchFlagNameConstant, "", branchFlagUsageConstant)
	registerDatabaseFlag(addCommand)

	return addCommand
}

func (builder *CommandBuilder) buildRemoveCommand() *cobra.Command {
	removeCommand := &cobra.Command{
		Use:   removeCommandUseConstant,
		Short: removeCommandShortConstant,
		Long:  removeCommandLongConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runRemove(command, arguments)
		},
	}

	registerDatabaseFlag(removeCommand)

	return removeCommand
}

func (builder *CommandBuilder) buildListCommand() *cobra.Command {
	listCommand := &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortConstant,
		Long:  listCommandLongConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runList(command, arguments)
		},
	}

	registerDatabaseFlag(listCommand)

	return listCommand
}

func registerDatabaseFlag(command *cobra.Command) {
	defaults := DefaultConfiguration()
	command.Flags().String(flagutils.DatabaseFlagName, defaults.DatabasePath, flagutils.DatabaseFlagUsage)
}

func (builder *CommandBuilder) runAdd(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New(remoteURLArgumentMessageConstant)
	}

	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	registryStore, storeError := store.Open(resolveDatabasePath(command, configuration))
	if storeError != nil {
		return fmt.Errorf(openStoreErrorTemplateConstant, storeError)
	}
	defer func() {
		if closeError := registryStore.Close(); closeError != nil {
			logger.Warn(closeStoreWarningMessageConstant, zap.Error(closeError))
		}
	}()

	branchResolver, resolverError := builder.resolveBranchResolver(logger)
	if resolverError != nil {
		return resolverError
	}

	service, serviceError := NewService(ServiceDependencies{
		Store:          registryStore,
		BranchResolver: branchResolver,
		Logger:         logger,
	})
	if serviceError != nil {
		return serviceError
	}

	nameValue, _ := command.Flags().GetString(nameFlagNameConstant)
	branchValue, _ := command.Flags().GetString(branchFlagNameConstant)
	registeredRepository, addError := service.Add(command.Context(), AddOptions{
		RemoteURL:     arguments[0],
		Name:          nameValue,
		DefaultBranch: branchValue,
	})
	if addError != nil {
		return fmt.Errorf(addExecutionErrorTemplateConstant, addError)
	}

	fmt.Fprintf(command.OutOrStdout(), registeredLineTemplateConstant, registeredRepository.Name, registeredRepository.RemoteURL)
	return nil
}

func (builder *CommandBuilder) runRemove(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New(nameOrURLArgumentMessageConstant)
	}

	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	registryStore, storeError := store.Open(resolveDatabasePath(command, configuration))
	if storeError != nil {
		return fmt.Errorf(openStoreErrorTemplateConstant, storeError)
	}
	defer func() {
		if closeError := registryStore.Close(); closeError != nil {
			logger.Warn(closeStoreWarningMessageConstant, zap.Error(closeError))
		}
	}()

	service, serviceError := NewService(ServiceDependencies{Store: registryStore, Logger: logger})
	if serviceError != nil {
		return serviceError
	}

	removedName, removeError := service.Remove(command.Context(), arguments[0])
	if removeError != nil {
		return fmt.Errorf(removeExecutionErrorTemplateConstant, removeError)
	}

	fmt.Fprintf(command.OutOrStdout(), removedLineTemplateConstant, removedName)
	return nil
}

func (builder *CommandBuilder) runList(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(listArgumentsMessageConstant)
	}

	configuration := builder.resolveConfiguration()
	logger := builder.resolveLogger()

	registryStore, storeError := store.Open(resolveDatabasePath(command, configuration))
	if storeError != nil {
		return fmt.Errorf(openStoreErrorTemplateConstant, storeError)
	}
	defer func() {
		if closeError := registryStore.Close(); closeError != nil {
			logger.Warn(closeStoreWarningMessageConstant, zap.Error(closeError))
		}
	}()

	service, serviceError := NewService(ServiceDependencies{Store: registryStore, Logger: logger})
	if serviceError != nil {
		return serviceError
	}

	registeredRepositories, listError := service.List(command.Context())
	if listError != nil {
		return fmt.Errorf(listExecutionErrorTemplateConstant, listError)
	}

	renderRepositoryList(command.OutOrStdout(), registeredRepositories)
	return nil
}

func resolveDatabasePath(command *cobra.Command, configuration Configuration) string {
	databasePath := configuration.DatabasePath
	if command.Flags().Changed(flagutils.DatabaseFlagName) {
		databaseValue, _ := command.Flags().GetString(flagutils.DatabaseFlagName)
		trimmedDatabaseValue := strings.TrimSpace(databaseValue)
		if len(trimmedDatabaseValue) > 0 {
			databasePath = trimmedDatabaseValue
		}
	}
	return databasePath
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

func (builder *CommandBuilder) resolveBranchResolver(logger *zap.Logger) (DefaultBranchResolver, error) {
	if builder.BranchResolver != nil {
		return builder.BranchResolver, nil
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

func renderRepositoryList(outputWriter io.Writer, repositories []store.Repository) {
	if len(repositories) == 0 {
		fmt.Fprint(outputWriter, emptyRegistryMessageConstant)
		return
	}
	for _, repository := range repositories {
		branchDisplay := repository.DefaultBranch
		if len(branchDisplay) == 0 {
			branchDisplay = missingBranchPlaceholderConstant
		}
		fmt.Fprintf(outputWriter, repositoryRowTemplateConstant, repository.Name, repository.RemoteURL, branchDisplay)
	}
}
