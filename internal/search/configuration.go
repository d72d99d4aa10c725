package search

import (
	"strings"

	"github.com/temirov/pipealign/internal/fetch"
	pathutils "github.com/temirov/pipealign/internal/utils/path"
)

var searchConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const (
	defaultDatabasePathConstant     = "pipealign.db"
	defaultConcurrencyLimitConstant = 4
)

// Configuration carries the search command settings composed from the store,
// fetch, and credentials sections.
type Configuration struct {
	DatabasePath     string
	ConcurrencyLimit int
	WorkspaceRoot    string
	PipelineGlobs    []string
	Username         string
	Token            string
}

// DefaultConfiguration returns baseline search command settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		DatabasePath:     defaultDatabasePathConstant,
		ConcurrencyLimit: defaultConcurrencyLimitConstant,
		PipelineGlobs:    fetch.DefaultSparsePatterns(),
	}
}

func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	sanitized.DatabasePath = strings.TrimSpace(configuration.DatabasePath)
	if len(sanitized.DatabasePath) == 0 {
		sanitized.DatabasePath = defaultDatabasePathConstant
	}
	sanitized.DatabasePath = searchConfigurationHomeDirectoryExpander.Expand(sanitized.DatabasePath)
	if sanitized.ConcurrencyLimit <= 0 {
		sanitized.ConcurrencyLimit = defaultConcurrencyLimitConstant
	}
	sanitized.WorkspaceRoot = searchConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.WorkspaceRoot))
	sanitized.PipelineGlobs = trimPipelineGlobs(configuration.PipelineGlobs)
	sanitized.Username = strings.TrimSpace(configuration.Username)
	sanitized.Token = strings.TrimSpace(configuration.Token)
	return sanitized
}

func trimPipelineGlobs(pipelineGlobs []string) []string {
	trimmedGlobs := make([]string, 0, len(pipelineGlobs))
	for _, pipelineGlob := range pipelineGlobs {
		trimmedGlob := strings.TrimSpace(pipelineGlob)
		if len(trimmedGlob) == 0 {
			continue
		}
		trimmedGlobs = append(trimmedGlobs, trimmedGlob)
	}
	if len(trimmedGlobs) == 0 {
		return fetch.DefaultSparsePatterns()
	}
	return trimmedGlobs
}
