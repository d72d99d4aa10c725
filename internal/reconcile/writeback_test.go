package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/pipealign/internal/execshell"
	"github.com/temirov/pipealign/internal/reconcile"
)

type recordingGitPublisher struct {
	stagedPaths     []string
	stageDirectory  string
	commitDirectory string
	commitMessage   string
	commitError     error
	pushDirectory   string
	pushRemoteName  string
	pushReference   string
	pushCallCount   int
}

func (publisher *recordingGitPublisher) StageFiles(_ context.Context, repositoryPath string, paths []string) error {
	publisher.stageDirectory = repositoryPath
	publisher.stagedPaths = append(publisher.stagedPaths, paths...)
	return nil
}

func (publisher *recordingGitPublisher) CreateCommit(_ context.Context, repositoryPath string, message string) error {
	publisher.commitDirectory = repositoryPath
	publisher.commitMessage = message
	return publisher.commitError
}

func (publisher *recordingGitPublisher) Push(_ context.Context, repositoryPath string, remoteName string, reference string) error {
	publisher.pushDirectory = repositoryPath
	publisher.pushRemoteName = remoteName
	publisher.pushReference = reference
	publisher.pushCallCount++
	return nil
}

func TestNewPublisherRequiresGitManager(testInstance *testing.T) {
	_, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{})
	require.Error(testInstance, publisherError)
}

func TestPublishRewritesWritesStagesCommitsAndPushes(testInstance *testing.T) {
	gitPublisher := &recordingGitPublisher{}
	publisher, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{GitManager: gitPublisher})
	require.NoError(testInstance, publisherError)

	checkoutDirectory := testInstance.TempDir()
	rewrittenFilePath := filepath.Join(checkoutDirectory, "build-pipeline.yml")
	require.NoError(testInstance, os.WriteFile(rewrittenFilePath, []byte("task: gitversion@4\n"), 0o644))

	rewrites := []reconcile.FileRewrite{{
		Path:             "build-pipeline.yml",
		AbsolutePath:     rewrittenFilePath,
		RewrittenContent: "task: gitversion@5.12.0\n",
		RewriteCount:     1,
	}}

	publishError := publisher.PublishRewrites(context.Background(), checkoutDirectory, rewrites, "Standardize gitversion")
	require.NoError(testInstance, publishError)

	writtenContent, readError := os.ReadFile(rewrittenFilePath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "task: gitversion@5.12.0\n", string(writtenContent))

	require.Equal(testInstance, checkoutDirectory, gitPublisher.stageDirectory)
	require.Equal(testInstance, []string{"build-pipeline.yml"}, gitPublisher.stagedPaths)
	require.Equal(testInstance, "Standardize gitversion", gitPublisher.commitMessage)
	require.Equal(testInstance, 1, gitPublisher.pushCallCount)
	require.Equal(testInstance, "origin", gitPublisher.pushRemoteName)
	require.Equal(testInstance, "HEAD", gitPublisher.pushReference)
}

func TestPublishRewritesDefaultsCommitMessage(testInstance *testing.T) {
	gitPublisher := &recordingGitPublisher{}
	publisher, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{GitManager: gitPublisher})
	require.NoError(testInstance, publisherError)

	checkoutDirectory := testInstance.TempDir()
	rewrites := []reconcile.FileRewrite{{
		Path:             "build-pipeline.yml",
		AbsolutePath:     filepath.Join(checkoutDirectory, "build-pipeline.yml"),
		RewrittenContent: "task: gitversion@5.12.0\n",
		RewriteCount:     1,
	}}

	publishError := publisher.PublishRewrites(context.Background(), checkoutDirectory, rewrites, "   ")
	require.NoError(testInstance, publishError)
	require.Equal(testInstance, reconcile.DefaultCommitMessage(), gitPublisher.commitMessage)
}

func TestPublishRewritesToleratesCommitWithoutChanges(testInstance *testing.T) {
	commitFailure := fmt.Errorf("unable to run git commit: %w", execshell.CommandFailedError{})
	gitPublisher := &recordingGitPublisher{commitError: commitFailure}
	publisher, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{GitManager: gitPublisher})
	require.NoError(testInstance, publisherError)

	checkoutDirectory := testInstance.TempDir()
	rewrites := []reconcile.FileRewrite{{
		Path:             "build-pipeline.yml",
		AbsolutePath:     filepath.Join(checkoutDirectory, "build-pipeline.yml"),
		RewrittenContent: "task: gitversion@5.12.0\n",
		RewriteCount:     1,
	}}

	publishError := publisher.PublishRewrites(context.Background(), checkoutDirectory, rewrites, "")
	require.NoError(testInstance, publishError)
	require.Zero(testInstance, gitPublisher.pushCallCount)
}

func TestPublishRewritesSurfacesUnexpectedCommitFailure(testInstance *testing.T) {
	commitFailure := errors.New("remote hook rejected the commit")
	gitPublisher := &recordingGitPublisher{commitError: commitFailure}
	publisher, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{GitManager: gitPublisher})
	require.NoError(testInstance, publisherError)

	checkoutDirectory := testInstance.TempDir()
	rewrites := []reconcile.FileRewrite{{
		Path:             "build-pipeline.yml",
		AbsolutePath:     filepath.Join(checkoutDirectory, "build-pipeline.yml"),
		RewrittenContent: "task: gitversion@5.12.0\n",
		RewriteCount:     1,
	}}

	publishError := publisher.PublishRewrites(context.Background(), checkoutDirectory, rewrites, "")
	require.ErrorIs(testInstance, publishError, commitFailure)
	require.Zero(testInstance, gitPublisher.pushCallCount)
}

func TestPublishRewritesWithoutRewritesIsNoOp(testInstance *testing.T) {
	gitPublisher := &recordingGitPublisher{}
	publisher, publisherError := reconcile.NewPublisher(reconcile.PublisherDependencies{GitManager: gitPublisher})
	require.NoError(testInstance, publisherError)

	publishError := publisher.PublishRewrites(context.Background(), testInstance.TempDir(), nil, "")
	require.NoError(testInstance, publishError)
	require.Empty(testInstance, gitPublisher.stagedPaths)
	require.Zero(testInstance, gitPublisher.pushCallCount)
}
