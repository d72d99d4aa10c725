package inspect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/fetch"
	"github.com/temirov/pipealign/internal/gitrepo"
	"github.com/temirov/pipealign/internal/pipeline"
	"github.com/temirov/pipealign/internal/policy"
	"github.com/temirov/pipealign/internal/reconcile"
	"github.com/temirov/pipealign/internal/store"
)

const (
	fetcherRequiredMessageConstant        = "pipeline fetcher required"
	storeRequiredMessageConstant          = "inspection store required"
	publisherRequiredMessageConstant      = "rewrite publisher required for write-back"
	unknownRepositoriesTemplateConstant   = "unknown repositories requested: %s"
	listRepositoriesErrorTemplateConstant = "unable to list registered repositories: %w"
	createWorkspaceErrorTemplateConstant  = "unable to create retrieval workspace: %w"
	inspectionRunErrorTemplateConstant    = "inspection run aborted: %w"
	repositoryNameSeparatorConstant       = ", "
	recordFailureMessageConstant          = "Unable to record inspection"
	rewriteFailureMessageConstant         = "Unable to rewrite pipeline file"
	writeBackFailureMessageConstant       = "Unable to publish pipeline rewrites"
	dryRunRewritesMessageConstant         = "Dry run: computed rewrites left unpublished"
	workspaceCleanupFailedMessageConstant = "Unable to remove retrieval workspace"
	noRepositoriesMessageConstant         = "No repositories registered for inspection"
	runCompleteMessageConstant            = "Inspection run complete"
	logFieldRunIdentifierConstant         = "run_identifier"
	logFieldRepositoryConstant            = "repository"
	logFieldFilePathConstant              = "file_path"
	logFieldLineNumberConstant            = "line_number"
	logFieldRewriteCountConstant          = "rewrites"
	logFieldSucceededConstant             = "repositories_succeeded"
	logFieldFailedConstant                = "repositories_failed"
	logFieldFilesParsedConstant           = "files_parsed"
	logFieldReferencesConstant            = "references_classified"
)

var (
	errFetcherRequired   = errors.New(fetcherRequiredMessageConstant)
	errStoreRequired     = errors.New(storeRequiredMessageConstant)
	errPublisherRequired = errors.New(publisherRequiredMessageConstant)
)

// PipelineFetcher retrieves pipeline files for the selected repositories.
type PipelineFetcher interface {
	FetchRepositories(executionContext context.Context, repositories []store.Repository, workspace *fetch.Workspace, options fetch.Options, handleOutcome fetch.OutcomeHandler) error
}

// ReferenceParser extracts task references from pipeline file content.
type ReferenceParser interface {
	ParseFile(filePath string, content []byte) []pipeline.TaskReference
}

// InspectionStore covers the persistence operations an inspection run needs.
type InspectionStore interface {
	ListRepositories(executionContext context.Context) ([]store.Repository, error)
	RecordInspection(executionContext context.Context, record store.InspectionRecord) error
}

// RewritePublisher commits and pushes rewritten pipeline files.
type RewritePublisher interface {
	PublishRewrites(executionContext context.Context, repositoryDirectory string, rewrites []reconcile.FileRewrite, commitMessage string) error
}

// RunOptions configures a single inspection run.
type RunOptions struct {
	RepositoryNames  []string
	ConcurrencyLimit int
	WorkspaceRoot    string
	SparsePatterns   []string
	Credentials      gitrepo.Credentials
	Policy           policy.Configuration
	ApplyRewrites    bool
	DryRun           bool
	CommitMessage    string
}

// RunSummary counts what one inspection run observed and changed.
type RunSummary struct {
	RunIdentifier            string
	RepositoriesSucceeded    int
	RepositoriesFailed       int
	RepositoriesWithoutFiles int
	FilesParsed              int
	ReferencesClassified     int
	StateCounts              map[policy.ValidState]int
	RecordFailures           int
	RewritesApplied          int
	RewritesSkipped          int
	WriteBacksPerformed      int
	WriteBackFailures        int
}

// NewRunSummary returns an empty summary with every classification state
// present in StateCounts.
func NewRunSummary(runIdentifier string) RunSummary {
	stateCounts := make(map[policy.ValidState]int, len(policy.KnownValidStates()))
	for _, validState := range policy.KnownValidStates() {
		stateCounts[validState] = 0
	}
	return RunSummary{RunIdentifier: runIdentifier, StateCounts: stateCounts}
}

// ServiceDependencies bundles the collaborators required by the inspection
// service.
type ServiceDependencies struct {
	Fetcher             PipelineFetcher
	Parser              ReferenceParser
	Store               InspectionStore
	Publisher           RewritePublisher
	Logger              *zap.Logger
	IdentifierGenerator func() string
}

// Service runs repository inspections: it retrieves pipeline files,
// classifies every task reference against the policy, records the outcome,
// and optionally reconciles divergent versions.
type Service struct {
	fetcher             PipelineFetcher
	parser              ReferenceParser
	store               InspectionStore
	publisher           RewritePublisher
	logger              *zap.Logger
	identifierGenerator func() string
}

// NewService validates the dependencies and constructs an inspection service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Fetcher == nil {
		return nil, errFetcherRequired
	}
	if dependencies.Store == nil {
		return nil, errStoreRequired
	}
	parser := dependencies.Parser
	if parser == nil {
		parser = pipeline.NewParser()
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	identifierGenerator := dependencies.IdentifierGenerator
	if identifierGenerator == nil {
		identifierGenerator = uuid.NewString
	}
	return &Service{
		fetcher:             dependencies.Fetcher,
		parser:              parser,
		store:               dependencies.Store,
		publisher:           dependencies.Publisher,
		logger:              logger,
		identifierGenerator: identifierGenerator,
	}, nil
}

// Run inspects the selected repositories and returns the accumulated
// summary. Retrieval and persistence failures are isolated per repository
// and per record; the returned error reflects setup failures and
// cancellation only.
func (service *Service) Run(executionContext context.Context, options RunOptions) (RunSummary, error) {
	runIdentifier := service.identifierGenerator()
	summary := NewRunSummary(runIdentifier)

	if options.ApplyRewrites && !options.DryRun && service.publisher == nil {
		return summary, errPublisherRequired
	}

	registeredRepositories, listError := service.store.ListRepositories(executionContext)
	if listError != nil {
		return summary, fmt.Errorf(listRepositoriesErrorTemplateConstant, listError)
	}

	targetRepositories, filterError := filterRepositories(registeredRepositories, options.RepositoryNames)
	if filterError != nil {
		return summary, filterError
	}
	if len(targetRepositories) == 0 {
		service.logger.Info(noRepositoriesMessageConstant, zap.String(logFieldRunIdentifierConstant, runIdentifier))
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
		inspection := service.inspectOutcome(handlerContext, outcome, options, runIdentifier)
		summaryMutex.Lock()
		defer summaryMutex.Unlock()
		mergeInspection(&summary, inspection)
		return nil
	}

	fetchError := service.fetcher.FetchRepositories(executionContext, targetRepositories, workspace, fetchOptions, outcomeHandler)
	if fetchError != nil {
		return summary, fmt.Errorf(inspectionRunErrorTemplateConstant, fetchError)
	}

	service.logger.Info(
		runCompleteMessageConstant,
		zap.String(logFieldRunIdentifierConstant, runIdentifier),
		zap.Int(logFieldSucceededConstant, summary.RepositoriesSucceeded),
		zap.Int(logFieldFailedConstant, summary.RepositoriesFailed),
		zap.Int(logFieldFilesParsedConstant, summary.FilesParsed),
		zap.Int(logFieldReferencesConstant, summary.ReferencesClassified),
	)
	return summary, nil
}

// repositoryInspection carries the counts gathered for one repository before
// they are merged into the run summary.
type repositoryInspection struct {
	repositoryFailed     bool
	withoutPipelineFiles bool
	filesParsed          int
	referencesClassified int
	stateCounts          map[policy.ValidState]int
	recordFailures       int
	rewritesApplied      int
	rewritesSkipped      int
	writeBackPerformed   bool
	writeBackFailed      bool
}

func (service *Service) inspectOutcome(executionContext context.Context, outcome fetch.RepositoryOutcome, options RunOptions, runIdentifier string) repositoryInspection {
	inspection := repositoryInspection{stateCounts: map[policy.ValidState]int{}}

	if outcome.Failure != nil {
		if errors.Is(outcome.Failure, fetch.ErrNoPipelineFiles) {
			inspection.withoutPipelineFiles = true
			return inspection
		}
		inspection.repositoryFailed = true
		return inspection
	}

	fileRewrites := make([]reconcile.FileRewrite, 0, len(outcome.PipelineFiles))
	for _, pipelineFile := range outcome.PipelineFiles {
		references := service.parser.ParseFile(pipelineFile.Path, []byte(pipelineFile.Content))
		inspection.filesParsed++

		classifiedReferences := make([]reconcile.ClassifiedReference, 0, len(references))
		for _, reference := range references {
			requiredVersion, _ := options.Policy.RequiredVersion(reference.ActionType)
			validState := policy.Classify(reference.ActionType, reference.DeclaredVersion, options.Policy)
			inspection.stateCounts[validState]++
			inspection.referencesClassified++
			classifiedReferences = append(classifiedReferences, reconcile.ClassifiedReference{
				Reference:       reference,
				State:           validState,
				RequiredVersion: requiredVersion,
			})

			record := store.InspectionRecord{
				RunIdentifier:   runIdentifier,
				RepositoryName:  outcome.Repository.Name,
				FilePath:        reference.FilePath,
				ActionType:      reference.ActionType,
				LineNumber:      reference.LineNumber,
				SpanStart:       reference.VersionSpan.Start,
				SpanEnd:         reference.VersionSpan.End,
				DeclaredVersion: reference.DeclaredVersion,
				RequiredVersion: requiredVersion,
				ValidState:      validState,
			}
			if recordError := service.store.RecordInspection(executionContext, record); recordError != nil {
				inspection.recordFailures++
				service.logger.Error(
					recordFailureMessageConstant,
					zap.String(logFieldRepositoryConstant, outcome.Repository.Name),
					zap.String(logFieldFilePathConstant, reference.FilePath),
					zap.Int(logFieldLineNumberConstant, reference.LineNumber),
					zap.Error(recordError),
				)
			}
		}

		if !options.ApplyRewrites {
			continue
		}

		rewrittenContent, rewriteCount, rewriteError := reconcile.RewriteContent(pipelineFile.Path, pipelineFile.Content, classifiedReferences)
		if rewriteError != nil {
			inspection.rewritesSkipped += countRewriteCandidates(classifiedReferences)
			service.logger.Warn(
				rewriteFailureMessageConstant,
				zap.String(logFieldRepositoryConstant, outcome.Repository.Name),
				zap.String(logFieldFilePathConstant, pipelineFile.Path),
				zap.Error(rewriteError),
			)
			continue
		}
		if rewriteCount == 0 {
			continue
		}
		inspection.rewritesApplied += rewriteCount
		fileRewrites = append(fileRewrites, reconcile.FileRewrite{
			Path:             pipelineFile.Path,
			AbsolutePath:     pipelineFile.AbsolutePath,
			RewrittenContent: rewrittenContent,
			RewriteCount:     rewriteCount,
		})
	}

	if len(fileRewrites) == 0 {
		return inspection
	}
	if options.DryRun {
		service.logger.Info(
			dryRunRewritesMessageConstant,
			zap.String(logFieldRepositoryConstant, outcome.Repository.Name),
			zap.Int(logFieldRewriteCountConstant, inspection.rewritesApplied),
		)
		return inspection
	}
	publishError := service.publisher.PublishRewrites(executionContext, outcome.CheckoutDirectory, fileRewrites, options.CommitMessage)
	if publishError != nil {
		inspection.writeBackFailed = true
		service.logger.Error(
			writeBackFailureMessageConstant,
			zap.String(logFieldRepositoryConstant, outcome.Repository.Name),
			zap.Error(publishError),
		)
		return inspection
	}
	inspection.writeBackPerformed = true
	return inspection
}

func mergeInspection(summary *RunSummary, inspection repositoryInspection) {
	switch {
	case inspection.repositoryFailed:
		summary.RepositoriesFailed++
	case inspection.withoutPipelineFiles:
		summary.RepositoriesWithoutFiles++
	default:
		summary.RepositoriesSucceeded++
	}
	summary.FilesParsed += inspection.filesParsed
	summary.ReferencesClassified += inspection.referencesClassified
	for validState, stateCount := range inspection.stateCounts {
		summary.StateCounts[validState] += stateCount
	}
	summary.RecordFailures += inspection.recordFailures
	summary.RewritesApplied += inspection.rewritesApplied
	summary.RewritesSkipped += inspection.rewritesSkipped
	if inspection.writeBackPerformed {
		summary.WriteBacksPerformed++
	}
	if inspection.writeBackFailed {
		summary.WriteBackFailures++
	}
}

func countRewriteCandidates(references []reconcile.ClassifiedReference) int {
	candidateCount := 0
	for _, classifiedReference := range references {
		if classifiedReference.State != policy.ValidStateNonStandard {
			continue
		}
		if classifiedReference.Reference.VersionSpan.IsEmpty() {
			continue
		}
		if len(classifiedReference.RequiredVersion) == 0 {
			continue
		}
		candidateCount++
	}
	return candidateCount
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
