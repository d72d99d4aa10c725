package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/inspect"
	"github.com/temirov/pipealign/internal/policy"
	"github.com/temirov/pipealign/internal/repos"
	"github.com/temirov/pipealign/internal/report"
	"github.com/temirov/pipealign/internal/search"
	"github.com/temirov/pipealign/internal/utils"
	flagutils "github.com/temirov/pipealign/internal/utils/flags"
)

const (
	applicationNameConstant                 = "pipealign"
	applicationShortDescriptionConstant     = "Command-line interface for pipeline task version alignment"
	applicationLongDescriptionConstant      = "pipealign retrieves pipeline definitions from registered repositories, classifies task version conformance against a configured standard, and reconciles divergent declarations."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "PIPEALIGN"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "pipealign CLI executed"
	rootCommandDebugMessageConstant         = "pipealign CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	versionFlagArgumentConstant             = "--version"
	versionOutputTemplateConstant           = "pipealign version: %s\n"
	defaultVersionValueConstant             = "dev"
)

// ApplicationConfiguration describes the persisted configuration for the CLI
// entrypoint. The store, fetch, policy, credentials, and reconcile sections
// are shared by every command that touches them.
type ApplicationConfiguration struct {
	Common      ApplicationCommonConfiguration   `mapstructure:"common"`
	Store       inspect.StoreConfiguration       `mapstructure:"store"`
	Fetch       inspect.FetchConfiguration       `mapstructure:"fetch"`
	Policy      policy.Configuration             `mapstructure:"policy"`
	Credentials inspect.CredentialsConfiguration `mapstructure:"credentials"`
	Reconcile   inspect.ReconcileConfiguration   `mapstructure:"reconcile"`
	Report      ApplicationReportConfiguration   `mapstructure:"report"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationReportConfiguration holds the report rendering preferences.
type ApplicationReportConfiguration struct {
	Format string `mapstructure:"format"`
}

// VersionResolver reports the application version string.
type VersionResolver func(executionContext context.Context) string

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	versionResolver        VersionResolver
	exitFunction           func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveVersionFromBuildInfo,
		exitFunction:           os.Exit,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	inspectBuilder := inspect.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.inspectConfiguration,
	}
	inspectCommand, inspectBuildError := inspectBuilder.BuildInspectCommand()
	if inspectBuildError == nil {
		cobraCommand.AddCommand(inspectCommand)
	}
	reconcileCommand, reconcileBuildError := inspectBuilder.BuildReconcileCommand()
	if reconcileBuildError == nil {
		cobraCommand.AddCommand(reconcileCommand)
	}

	reposBuilder := repos.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.reposConfiguration,
	}
	reposCommand, reposBuildError := reposBuilder.Build()
	if reposBuildError == nil {
		cobraCommand.AddCommand(reposCommand)
	}

	reportBuilder := report.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: application.reportConfiguration,
	}
	reportCommand, reportBuildError := reportBuilder.Build()
	if reportBuildError == nil {
		cobraCommand.AddCommand(reportCommand)
	}

	searchBuilder := search.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.searchConfiguration,
	}
	searchCommand, searchBuildError := searchBuilder.Build()
	if searchBuildError == nil {
		cobraCommand.AddCommand(searchCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	for _, argumentValue := range os.Args[1:] {
		if argumentValue == versionFlagArgumentConstant {
			fmt.Printf(versionOutputTemplateConstant, application.versionResolver(application.rootCommand.Context()))
			application.exitFunction(0)
			return nil
		}
	}

	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(os.Args[1:]))
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) inspectConfiguration() inspect.CommandConfiguration {
	return inspect.CommandConfiguration{
		Store:       application.configuration.Store,
		Fetch:       application.configuration.Fetch,
		Policy:      application.configuration.Policy,
		Credentials: application.configuration.Credentials,
		Reconcile:   application.configuration.Reconcile,
	}
}

func (application *Application) reposConfiguration() repos.Configuration {
	return repos.Configuration{
		DatabasePath: application.configuration.Store.DatabasePath,
	}
}

func (application *Application) reportConfiguration() report.Configuration {
	return report.Configuration{
		DatabasePath: application.configuration.Store.DatabasePath,
		Format:       application.configuration.Report.Format,
	}
}

func (application *Application) searchConfiguration() search.Configuration {
	return search.Configuration{
		DatabasePath:     application.configuration.Store.DatabasePath,
		ConcurrencyLimit: application.configuration.Fetch.ConcurrencyLimit,
		WorkspaceRoot:    application.configuration.Fetch.WorkspaceRoot,
		PipelineGlobs:    application.configuration.Fetch.PipelineGlobs,
		Username:         application.configuration.Credentials.Username,
		Token:            application.configuration.Credentials.Token,
	}
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range inspect.DefaultConfigurationValues() {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range report.DefaultConfigurationValues() {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func resolveVersionFromBuildInfo(executionContext context.Context) string {
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if !buildInfoAvailable {
		return defaultVersionValueConstant
	}
	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) == 0 {
		return defaultVersionValueConstant
	}
	return trimmedVersion
}
