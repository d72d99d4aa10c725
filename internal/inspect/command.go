package inspect

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
	"github.com/temirov/pipealign/internal/policy"
	"github.com/temirov/pipealign/internal/reconcile"
	"github.com/temirov/pipealign/internal/store"
	"github.com/temirov/pipealign/internal/ui"
	flagutils "github.com/temirov/pipealign/internal/utils/flags"
)

const (
	inspectCommandUseConstant               = "inspect"
	inspectCommandShortDescriptionConstant  = "Inspect registered repositories and record task version states"
	inspectCommandLongDescriptionConstant   = "inspect retrieves pipeline definitions from every registered repository, classifies each task version against the policy, and records the results in the inspection database."
	inspectExecutionErrorTemplateConstant   = "inspection failed: %w"
	reconcileCommandUseConstant             = "reconcile"
	reconcileCommandShortConstant           = "Rewrite divergent task versions and push the aligned pipelines"
	reconcileCommandLongConstant            = "reconcile runs an inspection and rewrites task versions that diverge from the policy, committing and pushing the aligned pipeline files back to each repository."
	reconcileExecutionErrorTemplateConstant = "reconciliation failed: %w"
	unexpectedArgumentsMessageConstant      = "positional arguments are not accepted"
	policyLoadErrorTemplateConstant         = "unable to load policy file: %w"
	policyValidationErrorTemplateConstant   = "invalid task version policy: %w"
	openStoreErrorTemplateConstant          = "unable to open inspection store: %w"
	closeStoreWarningMessageConstant        = "Unable to close inspection store"
	summaryRunLineTemplateConstant          = "Run %s: %d repositories inspected, %d failed, %d without pipeline files\n"
	summaryReferenceLineTemplateConstant    = "Files parsed: %d, references classified: %d (standard %d, non_standard %d, unparseable %d, not_applicable %d)\n"
	summaryRecordFailuresTemplateConstant   = "Record failures: %d\n"
	summaryRewriteLineTemplateConstant      = "Rewrites applied: %d, skipped: %d, write-backs performed: %d, failed: %d\n"
	summaryDryRunLineTemplateConstant       = "Rewrites computed: %d, skipped: %d (dry run, nothing published)\n"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the configuration sections consumed by the
// inspection commands.
type ConfigurationProvider func() CommandConfiguration

// HumanReadableLoggingProvider reports whether console formatting is enabled.
type HumanReadableLoggingProvider func() bool

// CommandBuilder assembles the inspect and reconcile commands with
// configurable dependencies.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider HumanReadableLoggingProvider
	GitExecutor                  gitrepo.GitExecutor
	Retriever                    fetch.RepositoryRetriever
	Publisher                    RewritePublisher
}

// BuildInspectCommand constructs the inspect command.
func (builder *CommandBuilder) BuildInspectCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   inspectCommandUseConstant,
		Short: inspectCommandShortDescriptionConstant,
		Long:  inspectCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, false)
		},
	}

	builder.registerCommonFlags(command)

	return command, nil
}

// BuildReconcileCommand constructs the reconcile command.
func (builder *CommandBuilder) BuildReconcileCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   reconcileCommandUseConstant,
		Short: reconcileCommandShortConstant,
		Long:  reconcileCommandLongConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, true)
		},
	}

	builder.registerCommonFlags(command)
	flagutils.AddToggleFlag(command.Flags(), nil, flagutils.DryRunFlagName, "", false, flagutils.DryRunFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) registerCommonFlags(command *cobra.Command) {
	defaults := DefaultCommandConfiguration()
	command.Flags().StringArray(flagutils.RepositoryFlagName, nil, flagutils.RepositoryFlagUsage)
	command.Flags().String(flagutils.DatabaseFlagName, defaults.Store.DatabasePath, flagutils.DatabaseFlagUsage)
	command.Flags().String(flagutils.PolicyFlagName, "", flagutils.PolicyFlagUsage)
	command.Flags().Int(flagutils.ConcurrencyFlagName, defaults.Fetch.ConcurrencyLimit, flagutils.ConcurrencyFlagUsage)
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, applyRewrites bool) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	executionErrorTemplate := inspectExecutionErrorTemplateConstant
	if applyRewrites {
		executionErrorTemplate = reconcileExecutionErrorTemplateConstant
	}

	configuration := builder.resolveConfiguration()
	options, optionsError := builder.parseOptions(command, configuration, applyRewrites)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()

	inspectionStore, storeError := store.Open(options.DatabasePath)
	if storeError != nil {
		return fmt.Errorf(openStoreErrorTemplateConstant, storeError)
	}
	defer func() {
		if closeError := inspectionStore.Close(); closeError != nil {
			logger.Warn(closeStoreWarningMessageConstant, zap.Error(closeError))
		}
	}()

	retriever, publisher, collaboratorError := builder.resolveCollaborators(logger, applyRewrites)
	if collaboratorError != nil {
		return collaboratorError
	}

	fetchService, fetchServiceError := fetch.NewService(fetch.ServiceDependencies{Retriever: retriever, Logger: logger})
	if fetchServiceError != nil {
		return fetchServiceError
	}

	service, serviceError := NewService(ServiceDependencies{
		Fetcher:   fetchService,
		Store:     inspectionStore,
		Publisher: publisher,
		Logger:    logger,
	})
	if serviceError != nil {
		return serviceError
	}

	summary, runError := service.Run(command.Context(), options.Run)
	if runError != nil {
		return fmt.Errorf(executionErrorTemplate, runError)
	}

	renderRunSummary(command.OutOrStdout(), summary, applyRewrites, options.Run.DryRun)
	return nil
}

// commandOptions carries the parsed flag and configuration values for one
// command invocation.
type commandOptions struct {
	DatabasePath string
	Run          RunOptions
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, configuration CommandConfiguration, applyRewrites bool) (commandOptions, error) {
	repositoryNames, _ := command.Flags().GetStringArray(flagutils.RepositoryFlagName)

	databasePath := configuration.Store.DatabasePath
	if command.Flags().Changed(flagutils.DatabaseFlagName) {
		databaseValue, _ := command.Flags().GetString(flagutils.DatabaseFlagName)
		trimmedDatabaseValue := strings.TrimSpace(databaseValue)
		if len(trimmedDatabaseValue) > 0 {
			databasePath = trimmedDatabaseValue
		}
	}

	concurrencyLimit := configuration.Fetch.ConcurrencyLimit
	if command.Flags().Changed(flagutils.ConcurrencyFlagName) {
		concurrencyValue, _ := command.Flags().GetInt(flagutils.ConcurrencyFlagName)
		if concurrencyValue > 0 {
			concurrencyLimit = concurrencyValue
		}
	}

	policyConfiguration := configuration.Policy
	if command.Flags().Changed(flagutils.PolicyFlagName) {
		policyPathValue, _ := command.Flags().GetString(flagutils.PolicyFlagName)
		loadedPolicy, policyLoadError := policy.LoadConfigurationFromFile(strings.TrimSpace(policyPathValue))
		if policyLoadError != nil {
			return commandOptions{}, fmt.Errorf(policyLoadErrorTemplateConstant, policyLoadError)
		}
		policyConfiguration = loadedPolicy
	}
	if validationError := policyConfiguration.Validate(); validationError != nil {
		return commandOptions{}, fmt.Errorf(policyValidationErrorTemplateConstant, validationError)
	}

	dryRunValue := configuration.Reconcile.DryRun
	if applyRewrites && command.Flags().Changed(flagutils.DryRunFlagName) {
		toggledValue, _ := command.Flags().GetBool(flagutils.DryRunFlagName)
		dryRunValue = toggledValue
	}

	runOptions := RunOptions{
		RepositoryNames:  repositoryNames,
		ConcurrencyLimit: concurrencyLimit,
		WorkspaceRoot:    configuration.Fetch.WorkspaceRoot,
		SparsePatterns:   configuration.Fetch.PipelineGlobs,
		Credentials: gitrepo.Credentials{
			Username: configuration.Credentials.Username,
			Token:    configuration.Credentials.Token,
		},
		Policy:        policyConfiguration,
		ApplyRewrites: applyRewrites,
		DryRun:        applyRewrites && dryRunValue,
		CommitMessage: configuration.Reconcile.CommitMessage,
	}

	return commandOptions{DatabasePath: databasePath, Run: runOptions}, nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration().sanitize()
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

func (builder *CommandBuilder) resolveCollaborators(logger *zap.Logger, applyRewrites bool) (fetch.RepositoryRetriever, RewritePublisher, error) {
	retriever := builder.Retriever
	publisher := builder.Publisher
	if retriever != nil && (!applyRewrites || publisher != nil) {
		return retriever, publisher, nil
	}

	gitExecutor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return nil, nil, executorError
	}
	gitManager, managerError := gitrepo.NewRepositoryManager(gitExecutor)
	if managerError != nil {
		return nil, nil, managerError
	}
	if retriever == nil {
		retriever = gitManager
	}
	if applyRewrites && publisher == nil {
		builtPublisher, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{GitManager: gitManager, Logger: logger})
		if publisherError != nil {
			return nil, nil, publisherError
		}
		publisher = builtPublisher
	}
	return retriever, publisher, nil
}

func renderRunSummary(outputWriter io.Writer, summary RunSummary, applyRewrites bool, dryRun bool) {
	fmt.Fprintf(
		outputWriter,
		summaryRunLineTemplateConstant,
		summary.RunIdentifier,
		summary.RepositoriesSucceeded,
		summary.RepositoriesFailed,
		summary.RepositoriesWithoutFiles,
	)
	fmt.Fprintf(
		outputWriter,
		summaryReferenceLineTemplateConstant,
		summary.FilesParsed,
		summary.ReferencesClassified,
		summary.StateCounts[policy.ValidStateStandard],
		summary.StateCounts[policy.ValidStateNonStandard],
		summary.StateCounts[policy.ValidStateUnparseable],
		summary.StateCounts[policy.ValidStateNotApplicable],
	)
	if summary.RecordFailures > 0 {
		fmt.Fprintf(outputWriter, summaryRecordFailuresTemplateConstant, summary.RecordFailures)
	}
	if !applyRewrites {
		return
	}
	if dryRun {
		fmt.Fprintf(outputWriter, summaryDryRunLineTemplateConstant, summary.RewritesApplied, summary.RewritesSkipped)
		return
	}
	fmt.Fprintf(
		outputWriter,
		summaryRewriteLineTemplateConstant,
		summary.RewritesApplied,
		summary.RewritesSkipped,
		summary.WriteBacksPerformed,
		summary.WriteBackFailures,
	)
}
