package report

import (
	"strings"

	pathutils "github.com/temirov/pipealign/internal/utils/path"
)

var reportConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const (
	reportConfigurationKeyConstant    = "report"
	formatKeyConstant                 = "format"
	configurationKeySeparatorConstant = "."
	defaultDatabasePathConstant       = "pipealign.db"
)

// Configuration carries the report command settings.
type Configuration struct {
	DatabasePath string `mapstructure:"database_path"`
	Format       string `mapstructure:"format"`
}

// DefaultConfiguration returns baseline report command settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		DatabasePath: defaultDatabasePathConstant,
		Format:       string(FormatCSV),
	}
}

// DefaultConfigurationValues exposes the report defaults for configuration
// merging.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		reportConfigurationKeyConstant + configurationKeySeparatorConstant + formatKeyConstant: defaults.Format,
	}
}

func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	sanitized.DatabasePath = strings.TrimSpace(configuration.DatabasePath)
	if len(sanitized.DatabasePath) == 0 {
		sanitized.DatabasePath = defaultDatabasePathConstant
	}
	sanitized.DatabasePath = reportConfigurationHomeDirectoryExpander.Expand(sanitized.DatabasePath)
	sanitized.Format = strings.TrimSpace(configuration.Format)
	if len(sanitized.Format) == 0 {
		sanitized.Format = string(FormatCSV)
	}
	return sanitized
}
