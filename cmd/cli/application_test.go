package cli_test

import (
	"bytes"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/cmd/cli"
	"github.com/temirov/pipealign/internal/inspect"
)

const (
	embeddedDefaultDatabasePathConstant  = "pipealign.db"
	embeddedDefaultConcurrencyConstant   = 4
	embeddedDefaultReportFormatConstant  = "csv"
	embeddedDefaultLogLevelConstant      = "info"
	embeddedDefaultLogFormatConstant     = "structured"
	embeddedDefaultCommitMessageConstant = "Align pipeline task versions with the configured standard"
	fetchConfigurationSectionConstant    = "fetch"
)

func decodeEmbeddedApplicationConfiguration(testingInstance testing.TB) cli.ApplicationConfiguration {
	testingInstance.Helper()

	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)

	readError := viperInstance.ReadConfig(bytes.NewReader(configurationData))
	require.NoError(testingInstance, readError)

	var configuration cli.ApplicationConfiguration
	unmarshalError := viperInstance.Unmarshal(&configuration)
	require.NoError(testingInstance, unmarshalError)

	return configuration
}

func decodeConfigurationSection(testingInstance testing.TB, sectionValues map[string]any, target any) {
	testingInstance.Helper()

	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "mapstructure", Result: target})
	require.NoError(testingInstance, decoderError)

	decodeError := decoder.Decode(sectionValues)
	require.NoError(testingInstance, decodeError)
}

func TestEmbeddedDefaultsDescribeEverySection(t *testing.T) {
	configuration := decodeEmbeddedApplicationConfiguration(t)

	require.Equal(t, embeddedDefaultLogLevelConstant, configuration.Common.LogLevel)
	require.Equal(t, embeddedDefaultLogFormatConstant, configuration.Common.LogFormat)
	require.Equal(t, embeddedDefaultDatabasePathConstant, configuration.Store.DatabasePath)
	require.Equal(t, embeddedDefaultConcurrencyConstant, configuration.Fetch.ConcurrencyLimit)
	require.Equal(t, []string{"*pipeline*.yml", "*pipeline*.yaml", "*pipeline*/"}, configuration.Fetch.PipelineGlobs)
	require.Empty(t, configuration.Policy.Tasks)
	require.Empty(t, configuration.Credentials.Username)
	require.Empty(t, configuration.Credentials.Token)
	require.False(t, configuration.Reconcile.DryRun)
	require.Equal(t, embeddedDefaultCommitMessageConstant, configuration.Reconcile.CommitMessage)
	require.Equal(t, embeddedDefaultReportFormatConstant, configuration.Report.Format)
}

func TestEmbeddedFetchSectionDecodesIntoCommandConfiguration(t *testing.T) {
	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(t, viperInstance.ReadConfig(bytes.NewReader(configurationData)))

	var fetchSection inspect.FetchConfiguration
	decodeConfigurationSection(t, viperInstance.GetStringMap(fetchConfigurationSectionConstant), &fetchSection)

	require.Equal(t, embeddedDefaultConcurrencyConstant, fetchSection.ConcurrencyLimit)
	require.Len(t, fetchSection.PipelineGlobs, 3)
}
