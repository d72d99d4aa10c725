package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/fetch"
	"github.com/temirov/pipealign/internal/gitrepo"
	"github.com/temirov/pipealign/internal/store"
)

const (
	fetcherRequiredMessageConstant        = "pipeline fetcher required"
	registryRequiredMessageConstant       = "repository registry required"
	queryRequiredMessageConstant          = "search query required"
	unknownRepositoriesTemplateConstant   = "unknown repositories requested: %s"
	listRepositoriesErrorTemplateConstant = "unable to list registered repositories: %w"
	createWorkspaceErrorTemplateConstant  = "unable to create retrieval workspace: %w"
	searchRunErrorTemplateConstant        = "search aborted: %w"
	repositoryNameSeparatorConstant       = ", "
	lineSeparatorConstant                 = "\n"
	workspaceCleanupFailedMessageConstant = "Unable to remove retrieval workspace"
	noRepositoriesMessageConstant         = "No repositories registered for search"
	searchCompleteMessageConstant         = "Search complete"
	logFieldQueryConstant                 = "query"
	logFieldMatchesConstant               = "matches"
	logFieldFailedConstant                = "repositories_failed"
)

var (
	errFetcherRequired  = errors.New(fetcherRequiredMessageConstant)
	errRegistryRequired = errors.New(registryRequiredMessageConstant)
	errQueryRequired    = errors.New(queryRequiredMessageConstant)
)

// PipelineFetcher retrieves pipeline files for the selected repositories.
type PipelineFetcher interface {
	FetchRepositories(executionContext context.Context, repositories []store.Repository, workspace *fetch.Workspace, options fetch.Options, handleOutcome fetch.OutcomeHandler) error
}

// RepositoryRegistry lists the repositories eligible for searching.
type RepositoryRegistry interface {
	ListRepositories(executionContext context.Context) ([]store.Repository, error)
}

// Match locates one pipeline line containing the search query.
type Match struct {
	RepositoryName string
	FilePath       string
	LineNumber     int
	LineText       string
}

// RunOptions configures a single search run.
type RunOptions struct {
	Query            string
	RepositoryNames  []string
	ConcurrencyLimit int
	WorkspaceRoot    string
	SparsePatterns   []string
	Credentials      gitrepo.Credentials
}

// RunSummary counts what one search run scanned, with the collected matches
// ordered by repository, file, and line.
type RunSummary struct {
	RepositoriesSearched     int
	RepositoriesFailed       int
	RepositoriesWithoutFiles int
	FilesScanned             int
	Matches                  []Match
}

// ServiceDependencies bundles the collaborators required by the search
// service.
type ServiceDependencies struct {
	Fetcher  PipelineFetcher
	Registry RepositoryRegistry
	Logger   *zap.Logger
}

// Service scans retrieved pipeline files for lines containing a substring.
type Service struct {
	fetcher  PipelineFetcher
	registry RepositoryRegistry
	logger   *zap.Logger
}

// NewService validates the dependencies and constructs a search service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Fetcher == nil {
		return nil, errFetcherRequired
	}
	if dependencies.Registry == nil {
		return nil, errRegistryRequired
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher:  dependencies.Fetcher,
		registry: dependencies.Registry,
		logger:   logger,
	}, nil
}

// Run retrieves pipeline files from the selected repositories and collects
// every line containing the query. Retrieval failures are isolated per
// repository; the returned error reflects setup failures and cancellation
// only.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunSummary, error) {
	summary := RunSummary{Matches: []Match{}}

	if len(strings.TrimSpace(options.Query)) == 0 {
		return summary, errQueryRequired
	}

	registeredRepositories, listError := service.registry.ListRepositories(executionContext)
	if listError != nil {
		return summary, fmt.Errorf(listRepositoriesErrorTemplateConstant, listError)
	}

	targetRepositories, filterError := filterRepositories(registeredRepositories, options.RepositoryNames)
	if filterError != nil {
		return summary, filterError
	}
	if len(targetRepositories) == 0 {
		service.logger.Info(noRepositoriesMessageConstant, zap.String(logFieldQueryConstant, options.Query))
		return summary, nil
	}

	workspace, workspaceError := fetch.NewWorkspace(options.WorkspaceRoot)
	if workspaceError != nil {
		return summary, fmt.Errorf(createWorkspaceErrorTemplateConstant, workspaceError)
	}
	defer func() {
		if closeError := workspace.Close(); closeError != nil {
			service.logger.Warn(workspaceCleanupFailedMessageConstant, zap.Error(closeError))
		}
	}()

	fetchOptions := fetch.Options{
		ConcurrencyLimit: options.ConcurrencyLimit,
		SparsePatterns:   options.SparsePatterns,
		Credentials:      options.Credentials,
	}

	var summaryMutex sync.Mutex
	outcomeHandler := func(handlerContext context.Context, outcome fetch.RepositoryOutcome) error {
		scan := scanOutcome(outcome, options.Query)
		summaryMutex.Lock()
		defer summaryMutex.Unlock()
		mergeScan(&summary, scan)
		return nil
	}

	fetchError := service.fetcher.FetchRepositories(executionContext, targetRepositories, workspace, fetchOptions, outcomeHandler)
	if fetchError != nil {
		return summary, fmt.Errorf(searchRunErrorTemplateConstant, fetchError)
	}

	sortMatches(summary.Matches)

	service.logger.Info(
		searchCompleteMessageConstant,
		zap.String(logFieldQueryConstant, options.Query),
		zap.Int(logFieldMatchesConstant, len(summary.Matches)),
		zap.Int(logFieldFailedConstant, summary.RepositoriesFailed),
	)
	return summary, nil
}

// repositoryScan carries the matches gathered for one repository before they
// are merged into the run summary.
type repositoryScan struct {
	repositoryFailed     bool
	withoutPipelineFiles bool
	filesScanned         int
	matches              []Match
}

func scanOutcome(outcome fetch.RepositoryOutcome, query string) repositoryScan {
	scan := repositoryScan{}

	if outcome.Failure != nil {
		if errors.Is(outcome.Failure, fetch.ErrNoPipelineFiles) {
			scan.withoutPipelineFiles = true
			return scan
		}
		scan.repositoryFailed = true
		return scan
	}

	for _, pipelineFile := range outcome.PipelineFiles {
		scan.filesScanned++
		for lineIndex, lineText := range strings.Split(pipelineFile.Content, lineSeparatorConstant) {
			if !strings.Contains(lineText, query) {
				continue
			}
			scan.matches = append(scan.matches, Match{
				RepositoryName: outcome.Repository.Name,
				FilePath:       pipelineFile.Path,
				LineNumber:     lineIndex + 1,
				LineText:       strings.TrimSpace(lineText),
			})
		}
	}
	return scan
}

func mergeScan(summary *RunSummary, scan repositoryScan) {
	switch {
	case scan.repositoryFailed:
		summary.RepositoriesFailed++
	case scan.withoutPipelineFiles:
		summary.RepositoriesWithoutFiles++
	default:
		summary.RepositoriesSearched++
	}
	summary.FilesScanned += scan.filesScanned
	summary.Matches = append(summary.Matches, scan.matches...)
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(firstIndex int, secondIndex int) bool {
		firstMatch, secondMatch := matches[firstIndex], matches[secondIndex]
		if firstMatch.RepositoryName != secondMatch.RepositoryName {
			return firstMatch.RepositoryName < secondMatch.RepositoryName
		}
		if firstMatch.FilePath != secondMatch.FilePath {
			return firstMatch.FilePath < secondMatch.FilePath
		}
		return firstMatch.LineNumber < secondMatch.LineNumber
	})
}

func filterRepositories(registeredRepositories []store.Repository, requestedNames []string) ([]store.Repository, error) {
	trimmedNames := make([]string, 0, len(requestedNames))
	seenNames := make(map[string]struct{}, len(requestedNames))
	for _, requestedName := range requestedNames {
		trimmedName := strings.TrimSpace(requestedName)
		if len(trimmedName) == 0 {
			continue
		}
		if _, alreadySeen := seenNames[trimmedName]; alreadySeen {
			continue
		}
		seenNames[trimmedName] = struct{}{}
		trimmedNames = append(trimmedNames, trimmedName)
	}
	if len(trimmedNames) == 0 {
		return registeredRepositories, nil
	}

	repositoriesByName := make(map[string]store.Repository, len(registeredRepositories))
	for _, registeredRepository := range registeredRepositories {
		repositoriesByName[registeredRepository.Name] = registeredRepository
	}

	selectedRepositories := make([]store.Repository, 0, len(trimmedNames))
	missingNames := make([]string, 0)
	for _, trimmedName := range trimmedNames {
		selectedRepository, repositoryFound := repositoriesByName[trimmedName]
		if !repositoryFound {
			missingNames = append(missingNames, trimmedName)
			continue
		}
		selectedRepositories = append(selectedRepositories, selectedRepository)
	}
	if len(missingNames) > 0 {
		return nil, fmt.Errorf(unknownRepositoriesTemplateConstant, strings.Join(missingNames, repositoryNameSeparatorConstant))
	}
	return selectedRepositories, nil
}
