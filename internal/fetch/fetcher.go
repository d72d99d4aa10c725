package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/pipealign/internal/gitrepo"
	"github.com/temirov/pipealign/internal/store"
)

const (
	defaultConcurrencyLimitConstant        = 4
	pipelineTokenConstant                  = "pipeline"
	ymlExtensionConstant                   = ".yml"
	yamlExtensionConstant                  = ".yaml"
	gitMetadataDirectoryNameConstant       = ".git"
	sparsePipelineYmlPatternConstant       = "*pipeline*.yml"
	sparsePipelineYamlPatternConstant      = "*pipeline*.yaml"
	sparsePipelineDirectoryPatternConstant = "*pipeline*/"
	noPipelineFilesMessageConstant         = "no pipeline files matched"
	retrieverRequiredMessageConstant       = "repository retriever required"
	workspaceRequiredMessageConstant       = "workspace required"
	outcomeHandlerRequiredMessageConstant  = "outcome handler required"
	retrievalErrorTemplateConstant         = "%s retrieval failed for %s: %s"
	pipelineFileReadErrorTemplateConstant  = "unable to read pipeline file: %w"
	fetchedRepositoryMessageConstant       = "Fetched repository"
	noPipelineFilesLogMessageConstant      = "Repository matched no pipeline files"
	retrievalFailedLogMessageConstant      = "Repository retrieval failed"
	checkoutCleanupFailedMessageConstant   = "Unable to remove repository checkout"
	logFieldRepositoryConstant             = "repository"
	logFieldPipelineFileCountConstant      = "pipeline_files"
)

// RetrievalErrorKind names the failure category of one repository retrieval.
type RetrievalErrorKind string

const (
	// RetrievalErrorKindAuthentication marks rejected or missing credentials.
	RetrievalErrorKindAuthentication RetrievalErrorKind = "authentication"
	// RetrievalErrorKindNotFound marks a remote repository that does not exist.
	RetrievalErrorKindNotFound RetrievalErrorKind = "not_found"
	// RetrievalErrorKindNetwork marks transport failures and every other cause.
	RetrievalErrorKindNetwork RetrievalErrorKind = "network"
)

// ErrNoPipelineFiles marks a repository whose checkout matched no pipeline
// files. It is a distinguished outcome, not a retrieval failure.
var ErrNoPipelineFiles = errors.New(noPipelineFilesMessageConstant)

var (
	errRetrieverRequired      = errors.New(retrieverRequiredMessageConstant)
	errWorkspaceRequired      = errors.New(workspaceRequiredMessageConstant)
	errOutcomeHandlerRequired = errors.New(outcomeHandlerRequiredMessageConstant)

	authenticationFailureFragments = []string{"authentication", "could not read username", "invalid username or password", "access denied", "403"}
	notFoundFailureFragments       = []string{"not found", "repository does not exist", "404"}
)

// RetrievalError describes why one repository could not be retrieved. Message
// text never carries embedded credentials.
type RetrievalError struct {
	RepositoryName string
	Kind           RetrievalErrorKind
	Message        string
}

// Error implements the error interface for RetrievalError.
func (retrievalError RetrievalError) Error() string {
	return fmt.Sprintf(retrievalErrorTemplateConstant, retrievalError.Kind, retrievalError.RepositoryName, retrievalError.Message)
}

// PipelineFile is one retrieved pipeline definition.
type PipelineFile struct {
	Path         string
	AbsolutePath string
	Content      string
}

// RepositoryOutcome is the result of retrieving one repository. Failure is
// nil on success, ErrNoPipelineFiles when nothing matched, and a
// RetrievalError otherwise. CheckoutDirectory remains available only while
// the outcome handler runs.
type RepositoryOutcome struct {
	Repository        store.Repository
	CheckoutDirectory string
	PipelineFiles     []PipelineFile
	Failure           error
}

// OutcomeHandler receives each repository outcome as retrieval completes.
// Handlers may be invoked concurrently from separate retrieval tasks; a
// non-nil handler error cancels the remaining retrievals.
type OutcomeHandler func(executionContext context.Context, outcome RepositoryOutcome) error

// RepositoryRetriever covers the sparse checkout operations the fetcher
// drives per repository.
type RepositoryRetriever interface {
	CloneSparse(executionContext context.Context, options gitrepo.CloneOptions) error
	ConfigureSparsePatterns(executionContext context.Context, repositoryDirectory string, patterns []string) error
	PopulateWorktree(executionContext context.Context, repositoryDirectory string) error
}

// Options configures one retrieval run.
type Options struct {
	ConcurrencyLimit int
	SparsePatterns   []string
	Credentials      gitrepo.Credentials
}

// DefaultSparsePatterns returns the checkout patterns used when configuration
// supplies none.
func DefaultSparsePatterns() []string {
	return []string{sparsePipelineYmlPatternConstant, sparsePipelineYamlPatternConstant, sparsePipelineDirectoryPatternConstant}
}

// ServiceDependencies bundles the collaborators required by the fetch service.
type ServiceDependencies struct {
	Retriever RepositoryRetriever
	Logger    *zap.Logger
}

// Service retrieves pipeline files from registered repositories with bounded
// concurrency.
type Service struct {
	retriever RepositoryRetriever
	logger    *zap.Logger
}

// NewService validates the dependencies and constructs a fetch service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Retriever == nil {
		return nil, errRetrieverRequired
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: dependencies.Retriever, logger: logger}, nil
}

// FetchRepositories retrieves pipeline files for every repository, at most
// Options.ConcurrencyLimit retrievals in flight, delivering each repository's
// outcome to handleOutcome as it completes. Retrieval failures are isolated
// per repository; the returned error reflects handler failures and
// cancellation only.
func (service *Service) FetchRepositories(executionContext context.Context, repositories []store.Repository, workspace *Workspace, options Options, handleOutcome OutcomeHandler) error {
	if workspace == nil {
		return errWorkspaceRequired
	}
	if handleOutcome == nil {
		return errOutcomeHandlerRequired
	}

	concurrencyLimit := options.ConcurrencyLimit
	if concurrencyLimit <= 0 {
		concurrencyLimit = defaultConcurrencyLimitConstant
	}
	if len(options.SparsePatterns) == 0 {
		options.SparsePatterns = DefaultSparsePatterns()
	}

	retrievalGroup, groupContext := errgroup.WithContext(executionContext)
	retrievalGroup.SetLimit(concurrencyLimit)

	for _, repository := range repositories {
		targetRepository := repository
		retrievalGroup.Go(func() error {
			return service.fetchRepository(groupContext, targetRepository, workspace, options, handleOutcome)
		})
	}

	return retrievalGroup.Wait()
}

func (service *Service) fetchRepository(executionContext context.Context, repository store.Repository, workspace *Workspace, options Options, handleOutcome OutcomeHandler) error {
	checkoutDirectory := workspace.RepositoryDirectory(repository.Name)
	defer func() {
		if removeError := os.RemoveAll(checkoutDirectory); removeError != nil {
			service.logger.Warn(
				checkoutCleanupFailedMessageConstant,
				zap.String(logFieldRepositoryConstant, repository.Name),
				zap.Error(removeError),
			)
		}
	}()

	pipelineFiles, retrievalError := service.retrievePipelineFiles(executionContext, repository, checkoutDirectory, options)
	switch {
	case retrievalError == nil:
		service.logger.Info(
			fetchedRepositoryMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.Name),
			zap.Int(logFieldPipelineFileCountConstant, len(pipelineFiles)),
		)
	case errors.Is(retrievalError, ErrNoPipelineFiles):
		service.logger.Info(
			noPipelineFilesLogMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.Name),
		)
	default:
		service.logger.Warn(
			retrievalFailedLogMessageConstant,
			zap.String(logFieldRepositoryConstant, repository.Name),
			zap.Error(retrievalError),
		)
	}

	outcome := RepositoryOutcome{
		Repository:        repository,
		CheckoutDirectory: checkoutDirectory,
		PipelineFiles:     pipelineFiles,
		Failure:           retrievalError,
	}
	return handleOutcome(executionContext, outcome)
}

func (service *Service) retrievePipelineFiles(executionContext context.Context, repository store.Repository, checkoutDirectory string, options Options) ([]PipelineFile, error) {
	cloneURL, credentialError := gitrepo.BuildAuthenticatedURL(repository.RemoteURL, options.Credentials)
	if credentialError != nil {
		return nil, classifyRetrievalFailure(repository, credentialError, cloneURL)
	}

	cloneOptions := gitrepo.CloneOptions{
		RemoteURL:       cloneURL,
		TargetDirectory: checkoutDirectory,
		BranchName:      repository.DefaultBranch,
	}
	if cloneError := service.retriever.CloneSparse(executionContext, cloneOptions); cloneError != nil {
		return nil, classifyRetrievalFailure(repository, cloneError, cloneURL)
	}
	if sparseError := service.retriever.ConfigureSparsePatterns(executionContext, checkoutDirectory, options.SparsePatterns); sparseError != nil {
		return nil, classifyRetrievalFailure(repository, sparseError, cloneURL)
	}
	if checkoutError := service.retriever.PopulateWorktree(executionContext, checkoutDirectory); checkoutError != nil {
		return nil, classifyRetrievalFailure(repository, checkoutError, cloneURL)
	}

	pipelineFiles, collectError := collectPipelineFiles(checkoutDirectory)
	if collectError != nil {
		return nil, classifyRetrievalFailure(repository, collectError, cloneURL)
	}
	if len(pipelineFiles) == 0 {
		return nil, ErrNoPipelineFiles
	}
	return pipelineFiles, nil
}

func classifyRetrievalFailure(repository store.Repository, failure error, authenticatedURL string) RetrievalError {
	sanitizedMessage := failure.Error()
	if len(authenticatedURL) > 0 && authenticatedURL != repository.RemoteURL {
		sanitizedMessage = strings.ReplaceAll(sanitizedMessage, authenticatedURL, repository.RemoteURL)
	}

	loweredMessage := strings.ToLower(sanitizedMessage)
	failureKind := RetrievalErrorKindNetwork
	switch {
	case containsAnyFragment(loweredMessage, authenticationFailureFragments):
		failureKind = RetrievalErrorKindAuthentication
	case containsAnyFragment(loweredMessage, notFoundFailureFragments):
		failureKind = RetrievalErrorKindNotFound
	}

	return RetrievalError{RepositoryName: repository.Name, Kind: failureKind, Message: sanitizedMessage}
}

func containsAnyFragment(messageText string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(messageText, fragment) {
			return true
		}
	}
	return false
}

func collectPipelineFiles(checkoutDirectory string) ([]PipelineFile, error) {
	pipelineFiles := make([]PipelineFile, 0)
	walkError := filepath.WalkDir(checkoutDirectory, func(currentPath string, directoryEntry fs.DirEntry, visitError error) error {
		if visitError != nil {
			return visitError
		}
		if directoryEntry.IsDir() {
			if directoryEntry.Name() == gitMetadataDirectoryNameConstant {
				return fs.SkipDir
			}
			return nil
		}

		relativePath, relativeError := filepath.Rel(checkoutDirectory, currentPath)
		if relativeError != nil {
			return relativeError
		}
		normalizedPath := filepath.ToSlash(relativePath)
		if !isPipelineFilePath(normalizedPath) {
			return nil
		}

		fileContent, readError := os.ReadFile(currentPath)
		if readError != nil {
			return fmt.Errorf(pipelineFileReadErrorTemplateConstant, readError)
		}
		pipelineFiles = append(pipelineFiles, PipelineFile{
			Path:         normalizedPath,
			AbsolutePath: currentPath,
			Content:      string(fileContent),
		})
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	return pipelineFiles, nil
}

func isPipelineFilePath(relativePath string) bool {
	loweredPath := strings.ToLower(relativePath)
	if !strings.HasSuffix(loweredPath, ymlExtensionConstant) && !strings.HasSuffix(loweredPath, yamlExtensionConstant) {
		return false
	}
	return strings.Contains(loweredPath, pipelineTokenConstant)
}
