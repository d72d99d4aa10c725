package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/policy"
	"github.com/temirov/pipealign/internal/store"
	flagutils "github.com/temirov/pipealign/internal/utils/flags"
)

const (
	reportCommandUseConstant             = "report"
	reportCommandShortConstant           = "Render recorded inspection results"
	reportCommandLongConstant            = "report renders inspection records from the store as csv or markdown, filtered by repository, task, and state."
	reportExecutionErrorTemplateConstant = "report rendering failed: %w"
	unexpectedArgumentsMessageConstant   = "positional arguments are not accepted"
	openStoreErrorTemplateConstant       = "unable to open inspection store: %w"
	closeStoreWarningMessageConstant     = "Unable to close inspection store"
	taskFlagNameConstant                 = "task"
	taskFlagUsageConstant                = "Limit the report to the named task action types (repeatable)"
	stateFlagNameConstant                = "state"
	stateFlagUsageConstant               = "Limit the report to records in the named states (repeatable)"
	historyFlagNameConstant              = "history"
	historyFlagUsageConstant             = "Include superseded records instead of only the latest per location"
	formatFlagNameConstant               = "format"
	formatFlagDescriptionConstant        = "Report output format"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the report command configuration.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the report command with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
}

// Build constructs the report command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   reportCommandUseConstant,
		Short: reportCommandShortConstant,
		Long:  reportCommandLongConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments)
		},
	}

	defaults := DefaultConfiguration()
	command.Flags().StringArray(flagutils.RepositoryFlagName, nil, flagutils.RepositoryFlagUsage)
	command.Flags().StringArray(taskFlagNameConstant, nil, taskFlagUsageConstant)
	command.Flags().StringArray(stateFlagNameConstant, nil, stateFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), nil, historyFlagNameConstant, "", false, historyFlagUsageConstant)
	command.Flags().String(
		formatFlagNameConstant,
		defaults.Format,
		flagutils.FormatChoiceUsage(defaults.Format, KnownFormatNames(), formatFlagDescriptionConstant),
	)
	command.Flags().String(flagutils.DatabaseFlagName, defaults.DatabasePath, flagutils.DatabaseFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration := builder.resolveConfiguration()
	options, optionsError := parseOptions(command, configuration)
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

	service, serviceError := NewService(ServiceDependencies{Source: inspectionStore})
	if serviceError != nil {
		return serviceError
	}

	if renderError := service.Render(command.Context(), command.OutOrStdout(), options.Render); renderError != nil {
		return fmt.Errorf(reportExecutionErrorTemplateConstant, renderError)
	}
	return nil
}

// commandOptions carries the parsed flag and configuration values for one
// report invocation.
type commandOptions struct {
	DatabasePath string
	Render       RenderOptions
}

func parseOptions(command *cobra.Command, configuration Configuration) (commandOptions, error) {
	repositoryNames, _ := command.Flags().GetStringArray(flagutils.RepositoryFlagName)
	actionTypes, _ := command.Flags().GetStringArray(taskFlagNameConstant)

	stateValues, _ := command.Flags().GetStringArray(stateFlagNameConstant)
	states := make([]policy.ValidState, 0, len(stateValues))
	for _, stateValue := range stateValues {
		parsedState, parseError := policy.ParseValidState(stateValue)
		if parseError != nil {
			return commandOptions{}, parseError
		}
		states = append(states, parsedState)
	}

	includeHistory := false
	if command.Flags().Changed(historyFlagNameConstant) {
		historyValue, _ := command.Flags().GetBool(historyFlagNameConstant)
		includeHistory = historyValue
	}

	formatValue := configuration.Format
	if command.Flags().Changed(formatFlagNameConstant) {
		flagFormatValue, _ := command.Flags().GetString(formatFlagNameConstant)
		formatValue = flagFormatValue
	}
	reportFormat, formatError := ParseFormat(formatValue)
	if formatError != nil {
		return commandOptions{}, formatError
	}

	databasePath := configuration.DatabasePath
	if command.Flags().Changed(flagutils.DatabaseFlagName) {
		databaseValue, _ := command.Flags().GetString(flagutils.DatabaseFlagName)
		trimmedDatabaseValue := strings.TrimSpace(databaseValue)
		if len(trimmedDatabaseValue) > 0 {
			databasePath = trimmedDatabaseValue
		}
	}

	renderOptions := RenderOptions{
		Filter: store.QueryFilter{
			RepositoryNames: repositoryNames,
			ActionTypes:     actionTypes,
			States:          states,
			IncludeHistory:  includeHistory,
		},
		Format: reportFormat,
	}

	return commandOptions{DatabasePath: databasePath, Render: renderOptions}, nil
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
