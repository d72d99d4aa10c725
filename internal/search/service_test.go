package search_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/internal/fetch"
	"github.com/temirov/pipealign/internal/search"
	"github.com/temirov/pipealign/internal/store"
)

const (
	searchQueryConstant         = "gitversion"
	alphaRepositoryNameConstant = "alpha-service"
	betaRepositoryNameConstant  = "beta-service"
	gammaRepositoryNameConstant = "gamma-service"
	buildPipelinePathConstant   = "pipelines/build-pipeline.yml"
	releasePipelinePathConstant = "pipelines/release-pipeline.yml"
)

const alphaBuildContentConstant = `steps:
  - task: gitversion@5.2.0
`

const alphaReleaseContentConstant = `stages:
  - stage: release
    jobs:
      - job: tag
        steps:
          - task: gitversion@5.2.0
`

const betaBuildContentConstant = `steps:
  - task: gitversion@5.1.0
  - script: echo gitversion done
`

type stubFetcher struct {
	outcomes        map[string]fetch.RepositoryOutcome
	observedNames   []string
	observedOptions fetch.Options
}

func (fetcher *stubFetcher) FetchRepositories(executionContext context.Context, repositories []store.Repository, workspace *fetch.Workspace, options fetch.Options, handleOutcome fetch.OutcomeHandler) error {
	fetcher.observedOptions = options
	for _, repository := range repositories {
		fetcher.observedNames = append(fetcher.observedNames, repository.Name)
		outcome := fetcher.outcomes[repository.Name]
		outcome.Repository = repository
		if handlerError := handleOutcome(executionContext, outcome); handlerError != nil {
			return handlerError
		}
	}
	return nil
}

type stubRegistry struct {
	repositories []store.Repository
	listError    error
}

func (registry *stubRegistry) ListRepositories(executionContext context.Context) ([]store.Repository, error) {
	if registry.listError != nil {
		return nil, registry.listError
	}
	return append([]store.Repository{}, registry.repositories...), nil
}

func testRepository(repositoryName string) store.Repository {
	return store.Repository{
		Name:      repositoryName,
		RemoteURL: fmt.Sprintf("https://dev.example.com/org/%s.git", repositoryName),
	}
}

func pipelineOutcome(repositoryName string, pipelineFiles ...fetch.PipelineFile) fetch.RepositoryOutcome {
	return fetch.RepositoryOutcome{
		CheckoutDirectory: "/tmp/pipealign-search/" + repositoryName,
		PipelineFiles:     pipelineFiles,
	}
}

func newSearchService(t *testing.T, fetcher search.PipelineFetcher, registry search.RepositoryRegistry) *search.Service {
	t.Helper()
	service, serviceError := search.NewService(search.ServiceDependencies{
		Fetcher:  fetcher,
		Registry: registry,
	})
	require.NoError(t, serviceError)
	return service
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	testCases := []struct {
		name         string
		dependencies search.ServiceDependencies
	}{
		{name: "missing_fetcher", dependencies: search.ServiceDependencies{Registry: &stubRegistry{}}},
		{name: "missing_registry", dependencies: search.ServiceDependencies{Fetcher: &stubFetcher{}}},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			service, serviceError := search.NewService(testCase.dependencies)
			require.Error(t, serviceError)
			require.Nil(t, service)
		})
	}
}

func TestRunCollectsSortedMatches(t *testing.T) {
	registry := &stubRegistry{repositories: []store.Repository{
		testRepository(betaRepositoryNameConstant),
		testRepository(alphaRepositoryNameConstant),
	}}
	fetcher := &stubFetcher{outcomes: map[string]fetch.RepositoryOutcome{
		betaRepositoryNameConstant: pipelineOutcome(
			betaRepositoryNameConstant,
			fetch.PipelineFile{Path: buildPipelinePathConstant, Content: betaBuildContentConstant},
		),
		alphaRepositoryNameConstant: pipelineOutcome(
			alphaRepositoryNameConstant,
			fetch.PipelineFile{Path: releasePipelinePathConstant, Content: alphaReleaseContentConstant},
			fetch.PipelineFile{Path: buildPipelinePathConstant, Content: alphaBuildContentConstant},
		),
	}}
	service := newSearchService(t, fetcher, registry)

	summary, runError := service.Run(context.Background(), search.RunOptions{Query: searchQueryConstant})
	require.NoError(t, runError)

	require.Equal(t, 2, summary.RepositoriesSearched)
	require.Equal(t, 3, summary.FilesScanned)
	require.Equal(t, []search.Match{
		{RepositoryName: alphaRepositoryNameConstant, FilePath: buildPipelinePathConstant, LineNumber: 2, LineText: "- task: gitversion@5.2.0"},
		{RepositoryName: alphaRepositoryNameConstant, FilePath: releasePipelinePathConstant, LineNumber: 6, LineText: "- task: gitversion@5.2.0"},
		{RepositoryName: betaRepositoryNameConstant, FilePath: buildPipelinePathConstant, LineNumber: 2, LineText: "- task: gitversion@5.1.0"},
		{RepositoryName: betaRepositoryNameConstant, FilePath: buildPipelinePathConstant, LineNumber: 3, LineText: "- script: echo gitversion done"},
	}, summary.Matches)
}

func TestRunIsolatesRepositoryRetrievalFailures(t *testing.T) {
	registry := &stubRegistry{repositories: []store.Repository{
		testRepository(alphaRepositoryNameConstant),
		testRepository(betaRepositoryNameConstant),
		testRepository(gammaRepositoryNameConstant),
	}}
	fetcher := &stubFetcher{outcomes: map[string]fetch.RepositoryOutcome{
		alphaRepositoryNameConstant: pipelineOutcome(
			alphaRepositoryNameConstant,
			fetch.PipelineFile{Path: buildPipelinePathConstant, Content: alphaBuildContentConstant},
		),
		betaRepositoryNameConstant: {
			Failure: fetch.RetrievalError{
				RepositoryName: betaRepositoryNameConstant,
				Kind:           fetch.RetrievalErrorKindNetwork,
				Message:        "connection reset",
			},
		},
		gammaRepositoryNameConstant: pipelineOutcome(
			gammaRepositoryNameConstant,
			fetch.PipelineFile{Path: buildPipelinePathConstant, Content: alphaBuildContentConstant},
		),
	}}
	service := newSearchService(t, fetcher, registry)

	summary, runError := service.Run(context.Background(), search.RunOptions{Query: searchQueryConstant})
	require.NoError(t, runError)

	require.Equal(t, 2, summary.RepositoriesSearched)
	require.Equal(t, 1, summary.RepositoriesFailed)
	require.Len(t, summary.Matches, 2)
	for _, collectedMatch := range summary.Matches {
		require.NotEqual(t, betaRepositoryNameConstant, collectedMatch.RepositoryName)
	}
}

func TestRunCountsRepositoriesWithoutPipelineFiles(t *testing.T) {
	registry := &stubRegistry{repositories: []store.Repository{testRepository(alphaRepositoryNameConstant)}}
	fetcher := &stubFetcher{outcomes: map[string]fetch.RepositoryOutcome{
		alphaRepositoryNameConstant: {Failure: fetch.ErrNoPipelineFiles},
	}}
	service := newSearchService(t, fetcher, registry)

	summary, runError := service.Run(context.Background(), search.RunOptions{Query: searchQueryConstant})
	require.NoError(t, runError)

	require.Equal(t, 1, summary.RepositoriesWithoutFiles)
	require.Zero(t, summary.RepositoriesSearched)
	require.Zero(t, summary.RepositoriesFailed)
	require.Empty(t, summary.Matches)
}

func TestRunRequiresQuery(t *testing.T) {
	testCases := []struct {
		name  string
		query string
	}{
		{name: "empty", query: ""},
		{name: "whitespace", query: "   "},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(t *testing.T) {
			registry := &stubRegistry{repositories: []store.Repository{testRepository(alphaRepositoryNameConstant)}}
			fetcher := &stubFetcher{}
			service := newSearchService(t, fetcher, registry)

			_, runError := service.Run(context.Background(), search.RunOptions{Query: testCase.query})
			require.Error(t, runError)
			require.ErrorContains(t, runError, "search query required")
			require.Empty(t, fetcher.observedNames)
		})
	}
}

func TestRunFiltersRepositories(t *testing.T) {
	registry := &stubRegistry{repositories: []store.Repository{
		testRepository(alphaRepositoryNameConstant),
		testRepository(betaRepositoryNameConstant),
	}}
	fetcher := &stubFetcher{outcomes: map[string]fetch.RepositoryOutcome{
		betaRepositoryNameConstant: pipelineOutcome(
			betaRepositoryNameConstant,
			fetch.PipelineFile{Path: buildPipelinePathConstant, Content: betaBuildContentConstant},
		),
	}}
	service := newSearchService(t, fetcher, registry)

	summary, runError := service.Run(context.Background(), search.RunOptions{
		Query:            searchQueryConstant,
		RepositoryNames:  []string{betaRepositoryNameConstant, betaRepositoryNameConstant},
		ConcurrencyLimit: 3,
		SparsePatterns:   []string{"pipelines/*.yml"},
	})
	require.NoError(t, runError)
	require.Equal(t, []string{betaRepositoryNameConstant}, fetcher.observedNames)
	require.Equal(t, 3, fetcher.observedOptions.ConcurrencyLimit)
	require.Equal(t, []string{"pipelines/*.yml"}, fetcher.observedOptions.SparsePatterns)
	require.Equal(t, 1, summary.RepositoriesSearched)
}

func TestRunRejectsUnknownRepositoryNames(t *testing.T) {
	registry := &stubRegistry{repositories: []store.Repository{testRepository(alphaRepositoryNameConstant)}}
	fetcher := &stubFetcher{}
	service := newSearchService(t, fetcher, registry)

	_, runError := service.Run(context.Background(), search.RunOptions{
		Query:           searchQueryConstant,
		RepositoryNames: []string{"missing-service"},
	})
	require.Error(t, runError)
	require.ErrorContains(t, runError, "unknown repositories requested: missing-service")
	require.Empty(t, fetcher.observedNames)
}

func TestRunWithoutRegisteredRepositories(t *testing.T) {
	registry := &stubRegistry{}
	fetcher := &stubFetcher{}
	service := newSearchService(t, fetcher, registry)

	summary, runError := service.Run(context.Background(), search.RunOptions{Query: searchQueryConstant})
	require.NoError(t, runError)
	require.Zero(t, summary.RepositoriesSearched)
	require.Empty(t, summary.Matches)
	require.Empty(t, fetcher.observedNames)
}

func TestRunReportsRegistryFailures(t *testing.T) {
	registry := &stubRegistry{listError: errors.New("database locked")}
	fetcher := &stubFetcher{}
	service := newSearchService(t, fetcher, registry)

	_, runError := service.Run(context.Background(), search.RunOptions{Query: searchQueryConstant})
	require.Error(t, runError)
	require.ErrorContains(t, runError, "unable to list registered repositories")
}
