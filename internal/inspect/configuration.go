package inspect

import (
	"strings"

	"github.com/temirov/pipealign/internal/fetch"
	"github.com/temirov/pipealign/internal/policy"
	"github.com/temirov/pipealign/internal/reconcile"
	pathutils "github.com/temirov/pipealign/internal/utils/path"
)

var inspectConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const (
	storeConfigurationKeyConstant       = "store"
	fetchConfigurationKeyConstant       = "fetch"
	policyConfigurationKeyConstant      = "policy"
	credentialsConfigurationKeyConstant = "credentials"
	reconcileConfigurationKeyConstant   = "reconcile"
	databasePathKeyConstant             = "database_path"
	concurrencyLimitKeyConstant         = "concurrency_limit"
	workspaceRootKeyConstant            = "workspace_root"
	pipelineGlobsKeyConstant            = "pipeline_globs"
	tasksKeyConstant                    = "tasks"
	usernameKeyConstant                 = "username"
	tokenKeyConstant                    = "token"
	dryRunKeyConstant                   = "dry_run"
	commitMessageKeyConstant            = "commit_message"
	configurationKeySeparatorConstant   = "."
	defaultDatabasePathConstant         = "pipealign.db"
	defaultConcurrencyLimitConstant     = 4
)

// StoreConfiguration locates the inspection database.
type StoreConfiguration struct {
	DatabasePath string `mapstructure:"database_path"`
}

// FetchConfiguration bounds repository retrieval.
type FetchConfiguration struct {
	ConcurrencyLimit int      `mapstructure:"concurrency_limit"`
	WorkspaceRoot    string   `mapstructure:"workspace_root"`
	PipelineGlobs    []string `mapstructure:"pipeline_globs"`
}

// CredentialsConfiguration carries the HTTPS credentials injected into clone
// URLs. Values are read from configuration or the environment and are never
// persisted alongside inspection records.
type CredentialsConfiguration struct {
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
}

// ReconcileConfiguration controls how version rewrites are published.
type ReconcileConfiguration struct {
	DryRun        bool   `mapstructure:"dry_run"`
	CommitMessage string `mapstructure:"commit_message"`
}

// CommandConfiguration aggregates the sections consumed by the inspection
// commands.
type CommandConfiguration struct {
	Store       StoreConfiguration
	Fetch       FetchConfiguration
	Policy      policy.Configuration
	Credentials CredentialsConfiguration
	Reconcile   ReconcileConfiguration
}

// DefaultCommandConfiguration returns baseline values for the inspection
// commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Store: StoreConfiguration{
			DatabasePath: defaultDatabasePathConstant,
		},
		Fetch: FetchConfiguration{
			ConcurrencyLimit: defaultConcurrencyLimitConstant,
			WorkspaceRoot:    "",
			PipelineGlobs:    fetch.DefaultSparsePatterns(),
		},
		Policy: policy.Configuration{
			Tasks: map[string]string{},
		},
		Credentials: CredentialsConfiguration{
			Username: "",
			Token:    "",
		},
		Reconcile: ReconcileConfiguration{
			DryRun:        false,
			CommitMessage: reconcile.DefaultCommitMessage(),
		},
	}
}

// DefaultConfigurationValues produces Viper defaults for the inspection
// configuration sections.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		storeConfigurationKeyConstant + configurationKeySeparatorConstant + databasePathKeyConstant:      defaults.Store.DatabasePath,
		fetchConfigurationKeyConstant + configurationKeySeparatorConstant + concurrencyLimitKeyConstant:  defaults.Fetch.ConcurrencyLimit,
		fetchConfigurationKeyConstant + configurationKeySeparatorConstant + workspaceRootKeyConstant:     defaults.Fetch.WorkspaceRoot,
		fetchConfigurationKeyConstant + configurationKeySeparatorConstant + pipelineGlobsKeyConstant:     defaults.Fetch.PipelineGlobs,
		policyConfigurationKeyConstant + configurationKeySeparatorConstant + tasksKeyConstant:            defaults.Policy.Tasks,
		credentialsConfigurationKeyConstant + configurationKeySeparatorConstant + usernameKeyConstant:    defaults.Credentials.Username,
		credentialsConfigurationKeyConstant + configurationKeySeparatorConstant + tokenKeyConstant:       defaults.Credentials.Token,
		reconcileConfigurationKeyConstant + configurationKeySeparatorConstant + dryRunKeyConstant:        defaults.Reconcile.DryRun,
		reconcileConfigurationKeyConstant + configurationKeySeparatorConstant + commitMessageKeyConstant: defaults.Reconcile.CommitMessage,
	}
}

// sanitize normalizes the aggregated configuration values.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Store.DatabasePath = strings.TrimSpace(configuration.Store.DatabasePath)
	if len(sanitized.Store.DatabasePath) == 0 {
		sanitized.Store.DatabasePath = defaultDatabasePathConstant
	}
	sanitized.Store.DatabasePath = inspectConfigurationHomeDirectoryExpander.Expand(sanitized.Store.DatabasePath)
	if sanitized.Fetch.ConcurrencyLimit <= 0 {
		sanitized.Fetch.ConcurrencyLimit = defaultConcurrencyLimitConstant
	}
	sanitized.Fetch.WorkspaceRoot = inspectConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.Fetch.WorkspaceRoot))
	sanitized.Fetch.PipelineGlobs = trimPipelineGlobs(configuration.Fetch.PipelineGlobs)
	if len(sanitized.Fetch.PipelineGlobs) == 0 {
		sanitized.Fetch.PipelineGlobs = fetch.DefaultSparsePatterns()
	}
	sanitized.Credentials.Username = strings.TrimSpace(configuration.Credentials.Username)
	sanitized.Credentials.Token = strings.TrimSpace(configuration.Credentials.Token)
	sanitized.Reconcile.CommitMessage = strings.TrimSpace(configuration.Reconcile.CommitMessage)
	if len(sanitized.Reconcile.CommitMessage) == 0 {
		sanitized.Reconcile.CommitMessage = reconcile.DefaultCommitMessage()
	}
	return sanitized
}

func trimPipelineGlobs(globs []string) []string {
	trimmed := make([]string, 0, len(globs))
	for _, glob := range globs {
		trimmedGlob := strings.TrimSpace(glob)
		if len(trimmedGlob) == 0 {
			continue
		}
		trimmed = append(trimmed, trimmedGlob)
	}
	return trimmed
}
