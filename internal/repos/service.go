package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/gitrepo"
	"github.com/temirov/pipealign/internal/store"
)

const (
	storeRequiredMessageConstant        = "registry store required"
	remoteURLRequiredMessageConstant    = "remote URL required"
	nameOrURLRequiredMessageConstant    = "repository name or remote URL required"
	invalidRemoteURLTemplateConstant    = "invalid remote URL: %w"
	deriveNameErrorTemplateConstant     = "unable to derive repository name: %w"
	registerErrorTemplateConstant       = "unable to register repository: %w"
	removeErrorTemplateConstant         = "unable to remove repository: %w"
	listErrorTemplateConstant           = "unable to list repositories: %w"
	branchResolutionWarningConstant     = "Unable to resolve default branch"
	registeredRepositoryMessageConstant = "Registered repository"
	removedRepositoryMessageConstant    = "Removed repository"
	logFieldRepositoryConstant          = "repository"
	logFieldRemoteURLConstant           = "remote_url"
	logFieldDefaultBranchConstant       = "default_branch"
)

var (
	errStoreRequired     = errors.New(storeRequiredMessageConstant)
	errRemoteURLRequired = errors.New(remoteURLRequiredMessageConstant)
	errNameOrURLRequired = errors.New(nameOrURLRequiredMessageConstant)
)

// RegistryStore covers the persistence operations the registry commands need.
type RegistryStore interface {
	RegisterRepository(executionContext context.Context, repository store.Repository) error
	RemoveRepository(executionContext context.Context, repositoryName string) error
	ListRepositories(executionContext context.Context) ([]store.Repository, error)
}

// DefaultBranchResolver resolves the branch a remote HEAD points at.
type DefaultBranchResolver interface {
	ResolveDefaultBranch(executionContext context.Context, remoteURL string) (string, error)
}

// ServiceDependencies bundles the collaborators for the registry service.
type ServiceDependencies struct {
	Store          RegistryStore
	BranchResolver DefaultBranchResolver
	Logger         *zap.Logger
}

// Service manages the repository registry backing inspection runs.
type Service struct {
	store          RegistryStore
	branchResolver DefaultBranchResolver
	logger         *zap.Logger
}

// NewService validates the dependencies and constructs a registry service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Store == nil {
		return nil, errStoreRequired
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          dependencies.Store,
		branchResolver: dependencies.BranchResolver,
		logger:         logger,
	}, nil
}

// AddOptions configures one repository registration.
type AddOptions struct {
	RemoteURL     string
	Name          string
	DefaultBranch string
}

// Add registers a repository, deriving the registry name from the remote URL
// when none is given and resolving the default branch when possible. Branch
// resolution failures are non-fatal; retrieval then follows the remote HEAD.
func (service *Service) Add(executionContext context.Context, options AddOptions) (store.Repository, error) {
	trimmedRemote := strings.TrimSpace(options.RemoteURL)
	if len(trimmedRemote) == 0 {
		return store.Repository{}, errRemoteURLRequired
	}
	if _, parseError := gitrepo.ParseRemoteURL(trimmedRemote); parseError != nil {
		return store.Repository{}, fmt.Errorf(invalidRemoteURLTemplateConstant, parseError)
	}

	repositoryName := strings.TrimSpace(options.Name)
	if len(repositoryName) == 0 {
		derivedName, deriveError := gitrepo.DeriveRepositoryName(trimmedRemote)
		if deriveError != nil {
			return store.Repository{}, fmt.Errorf(deriveNameErrorTemplateConstant, deriveError)
		}
		repositoryName = derivedName
	}

	defaultBranch := strings.TrimSpace(options.DefaultBranch)
	if len(defaultBranch) == 0 && service.branchResolver != nil {
		resolvedBranch, resolveError := service.branchResolver.ResolveDefaultBranch(executionContext, trimmedRemote)
		if resolveError != nil {
			service.logger.Warn(
				branchResolutionWarningConstant,
				zap.String(logFieldRepositoryConstant, repositoryName),
				zap.Error(resolveError),
			)
		} else {
			defaultBranch = strings.TrimSpace(resolvedBranch)
		}
	}

	repository := store.Repository{
		Name:          repositoryName,
		RemoteURL:     trimmedRemote,
		DefaultBranch: defaultBranch,
	}
	if registerError := service.store.RegisterRepository(executionContext, repository); registerError != nil {
		return store.Repository{}, fmt.Errorf(registerErrorTemplateConstant, registerError)
	}

	service.logger.Info(
		registeredRepositoryMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.Name),
		zap.String(logFieldRemoteURLConstant, repository.RemoteURL),
		zap.String(logFieldDefaultBranchConstant, repository.DefaultBranch),
	)
	return repository, nil
}

// Remove deletes a registry entry addressed by name or by registered remote
// URL and returns the removed name.
func (service *Service) Remove(executionContext context.Context, nameOrRemoteURL string) (string, error) {
	trimmedInput := strings.TrimSpace(nameOrRemoteURL)
	if len(trimmedInput) == 0 {
		return "", errNameOrURLRequired
	}

	removeError := service.store.RemoveRepository(executionContext, trimmedInput)
	if removeError == nil {
		service.logger.Info(removedRepositoryMessageConstant, zap.String(logFieldRepositoryConstant, trimmedInput))
		return trimmedInput, nil
	}
	if !errors.Is(removeError, store.ErrRepositoryNotFound) {
		return "", fmt.Errorf(removeErrorTemplateConstant, removeError)
	}

	registeredRepositories, listError := service.store.ListRepositories(executionContext)
	if listError != nil {
		return "", fmt.Errorf(listErrorTemplateConstant, listError)
	}
	for _, registeredRepository := range registeredRepositories {
		if registeredRepository.RemoteURL != trimmedInput {
			continue
		}
		if urlRemoveError := service.store.RemoveRepository(executionContext, registeredRepository.Name); urlRemoveError != nil {
			return "", fmt.Errorf(removeErrorTemplateConstant, urlRemoveError)
		}
		service.logger.Info(removedRepositoryMessageConstant, zap.String(logFieldRepositoryConstant, registeredRepository.Name))
		return registeredRepository.Name, nil
	}

	return "", fmt.Errorf(removeErrorTemplateConstant, removeError)
}

// List returns the registered repositories ordered by name.
func (service *Service) List(executionContext context.Context) ([]store.Repository, error) {
	registeredRepositories, listError := service.store.ListRepositories(executionContext)
	if listError != nil {
		return nil, fmt.Errorf(listErrorTemplateConstant, listError)
	}
	return registeredRepositories, nil
}
