package repos

import (
	"strings"

	pathutils "github.com/temirov/pipealign/internal/utils/path"
)

var reposConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const defaultDatabasePathConstant = "pipealign.db"

// Configuration carries the settings shared by the registry commands.
type Configuration struct {
	DatabasePath string `mapstructure:"database_path"`
}

// DefaultConfiguration returns baseline registry command settings.
func DefaultConfiguration() Configuration {
	return Configuration{DatabasePath: defaultDatabasePathConstant}
}

func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	sanitized.DatabasePath = strings.TrimSpace(configuration.DatabasePath)
	if len(sanitized.DatabasePath) == 0 {
		sanitized.DatabasePath = defaultDatabasePathConstant
	}
	sanitized.DatabasePath = reposConfigurationHomeDirectoryExpander.Expand(sanitized.DatabasePath)
	return sanitized
}
