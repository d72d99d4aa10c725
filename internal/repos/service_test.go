package repos_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/internal/repos"
	"github.com/temirov/pipealign/internal/store"
)

const (
	registryRemoteURLConstant     = "https://github.com/example/billing-service.git"
	derivedRepositoryNameConstant = "billing-service"
	customRepositoryNameConstant  = "billing"
	resolvedBranchNameConstant    = "main"
	explicitBranchNameConstant    = "release/2026"
)

type fakeRegistryStore struct {
	repositories  []store.Repository
	registerError error
	listError     error
	removedNames  []string
}

func (fake *fakeRegistryStore) RegisterRepository(_ context.Context, repository store.Repository) error {
	if fake.registerError != nil {
		return fake.registerError
	}
	fake.repositories = append(fake.repositories, repository)
	return nil
}

func (fake *fakeRegistryStore) RemoveRepository(_ context.Context, repositoryName string) error {
	for index, registered := range fake.repositories {
		if registered.Name == repositoryName {
			fake.repositories = append(fake.repositories[:index], fake.repositories[index+1:]...)
			fake.removedNames = append(fake.removedNames, repositoryName)
			return nil
		}
	}
	return store.ErrRepositoryNotFound
}

func (fake *fakeRegistryStore) ListRepositories(_ context.Context) ([]store.Repository, error) {
	if fake.listError != nil {
		return nil, fake.listError
	}
	return append([]store.Repository(nil), fake.repositories...), nil
}

type stubBranchResolver struct {
	branchName    string
	resolveError  error
	requestedURLs []string
}

func (resolver *stubBranchResolver) ResolveDefaultBranch(_ context.Context, remoteURL string) (string, error) {
	resolver.requestedURLs = append(resolver.requestedURLs, remoteURL)
	if resolver.resolveError != nil {
		return "", resolver.resolveError
	}
	return resolver.branchName, nil
}

func newRegistryService(t *testing.T, registryStore repos.RegistryStore, branchResolver repos.DefaultBranchResolver) *repos.Service {
	t.Helper()
	service, serviceError := repos.NewService(repos.ServiceDependencies{Store: registryStore, BranchResolver: branchResolver})
	require.NoError(t, serviceError)
	return service
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, serviceError := repos.NewService(repos.ServiceDependencies{})
	require.ErrorContains(t, serviceError, "registry store required")
}

func TestAddDerivesNameAndResolvesBranch(t *testing.T) {
	registryStore := &fakeRegistryStore{}
	branchResolver := &stubBranchResolver{branchName: resolvedBranchNameConstant}
	service := newRegistryService(t, registryStore, branchResolver)

	registeredRepository, addError := service.Add(context.Background(), repos.AddOptions{RemoteURL: registryRemoteURLConstant})
	require.NoError(t, addError)

	require.Equal(t, derivedRepositoryNameConstant, registeredRepository.Name)
	require.Equal(t, registryRemoteURLConstant, registeredRepository.RemoteURL)
	require.Equal(t, resolvedBranchNameConstant, registeredRepository.DefaultBranch)
	require.Len(t, registryStore.repositories, 1)
	require.Equal(t, []string{registryRemoteURLConstant}, branchResolver.requestedURLs)
}

func TestAddHonorsExplicitNameAndBranch(t *testing.T) {
	registryStore := &fakeRegistryStore{}
	branchResolver := &stubBranchResolver{branchName: resolvedBranchNameConstant}
	service := newRegistryService(t, registryStore, branchResolver)

	registeredRepository, addError := service.Add(context.Background(), repos.AddOptions{
		RemoteURL:     registryRemoteURLConstant,
		Name:          customRepositoryNameConstant,
		DefaultBranch: explicitBranchNameConstant,
	})
	require.NoError(t, addError)

	require.Equal(t, customRepositoryNameConstant, registeredRepository.Name)
	require.Equal(t, explicitBranchNameConstant, registeredRepository.DefaultBranch)
	require.Empty(t, branchResolver.requestedURLs)
}

func TestAddToleratesBranchResolutionFailure(t *testing.T) {
	registryStore := &fakeRegistryStore{}
	branchResolver := &stubBranchResolver{resolveError: errors.New("remote unreachable")}
	service := newRegistryService(t, registryStore, branchResolver)

	registeredRepository, addError := service.Add(context.Background(), repos.AddOptions{RemoteURL: registryRemoteURLConstant})
	require.NoError(t, addError)

	require.Equal(t, derivedRepositoryNameConstant, registeredRepository.Name)
	require.Empty(t, registeredRepository.DefaultBranch)
	require.Len(t, registryStore.repositories, 1)
}

func TestAddWithoutBranchResolver(t *testing.T) {
	registryStore := &fakeRegistryStore{}
	service := newRegistryService(t, registryStore, nil)

	registeredRepository, addError := service.Add(context.Background(), repos.AddOptions{RemoteURL: registryRemoteURLConstant})
	require.NoError(t, addError)
	require.Empty(t, registeredRepository.DefaultBranch)
}

func TestAddRejectsInvalidRemoteURL(t *testing.T) {
	service := newRegistryService(t, &fakeRegistryStore{}, nil)

	_, addError := service.Add(context.Background(), repos.AddOptions{RemoteURL: "example.com/missing-protocol"})
	require.ErrorContains(t, addError, "invalid remote URL")
}

func TestAddRequiresRemoteURL(t *testing.T) {
	service := newRegistryService(t, &fakeRegistryStore{}, nil)

	_, addError := service.Add(context.Background(), repos.AddOptions{RemoteURL: "   "})
	require.ErrorContains(t, addError, "remote URL required")
}

func TestAddReportsRegistrationFailure(t *testing.T) {
	registryStore := &fakeRegistryStore{registerError: errors.New("disk full")}
	service := newRegistryService(t, registryStore, nil)

	_, addError := service.Add(context.Background(), repos.AddOptions{RemoteURL: registryRemoteURLConstant})
	require.ErrorContains(t, addError, "unable to register repository")
}

func TestRemoveByName(t *testing.T) {
	registryStore := &fakeRegistryStore{repositories: []store.Repository{
		{Name: derivedRepositoryNameConstant, RemoteURL: registryRemoteURLConstant},
	}}
	service := newRegistryService(t, registryStore, nil)

	removedName, removeError := service.Remove(context.Background(), derivedRepositoryNameConstant)
	require.NoError(t, removeError)
	require.Equal(t, derivedRepositoryNameConstant, removedName)
	require.Empty(t, registryStore.repositories)
}

func TestRemoveByRemoteURL(t *testing.T) {
	registryStore := &fakeRegistryStore{repositories: []store.Repository{
		{Name: customRepositoryNameConstant, RemoteURL: registryRemoteURLConstant},
	}}
	service := newRegistryService(t, registryStore, nil)

	removedName, removeError := service.Remove(context.Background(), registryRemoteURLConstant)
	require.NoError(t, removeError)
	require.Equal(t, customRepositoryNameConstant, removedName)
	require.Equal(t, []string{customRepositoryNameConstant}, registryStore.removedNames)
}

func TestRemoveUnknownRepository(t *testing.T) {
	service := newRegistryService(t, &fakeRegistryStore{}, nil)

	_, removeError := service.Remove(context.Background(), "ghost-service")
	require.ErrorIs(t, removeError, store.ErrRepositoryNotFound)
}

func TestRemoveRequiresNameOrURL(t *testing.T) {
	service := newRegistryService(t, &fakeRegistryStore{}, nil)

	_, removeError := service.Remove(context.Background(), "   ")
	require.ErrorContains(t, removeError, "repository name or remote URL required")
}

func TestListReturnsRepositories(t *testing.T) {
	registered := []store.Repository{
		{Name: customRepositoryNameConstant, RemoteURL: registryRemoteURLConstant, DefaultBranch: resolvedBranchNameConstant},
	}
	service := newRegistryService(t, &fakeRegistryStore{repositories: registered}, nil)

	listedRepositories, listError := service.List(context.Background())
	require.NoError(t, listError)
	require.Equal(t, registered, listedRepositories)
}

func TestListReportsStoreFailure(t *testing.T) {
	registryStore := &fakeRegistryStore{listError: errors.New("database locked")}
	service := newRegistryService(t, registryStore, nil)

	_, listError := service.List(context.Background())
	require.ErrorContains(t, listError, "unable to list repositories")
}
