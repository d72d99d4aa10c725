package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/pipealign/internal/execshell"
)

const (
	defaultRemoteNameConstant           = "origin"
	defaultPushReferenceConstant        = "HEAD"
	defaultCommitMessageConstant        = "Align pipeline task versions with the configured standard"
	gitPublisherRequiredMessageConstant = "git publisher required"
	rewriteWriteErrorTemplateConstant   = "unable to write rewritten file: %w"
	stageErrorTemplateConstant          = "unable to stage rewritten files: %w"
	commitErrorTemplateConstant         = "unable to commit rewritten files: %w"
	pushErrorTemplateConstant           = "unable to push rewritten files: %w"
	noChangesToCommitMessageConstant    = "No pipeline changes to commit"
	publishedRewritesMessageConstant    = "Published pipeline rewrites"
	logFieldRepositoryDirectoryConstant = "repository_directory"
	logFieldRewrittenFileCountConstant  = "rewritten_files"
	rewrittenFilePermissionsConstant    = 0o644
)

var errGitPublisherRequired = errors.New(gitPublisherRequiredMessageConstant)

// GitPublisher covers the git operations needed to publish rewritten files.
type GitPublisher interface {
	StageFiles(executionContext context.Context, repositoryPath string, paths []string) error
	CreateCommit(executionContext context.Context, repositoryPath string, message string) error
	Push(executionContext context.Context, repositoryPath string, remoteName string, reference string) error
}

// PublisherDependencies bundles the collaborators required by the publisher.
type PublisherDependencies struct {
	GitManager GitPublisher
	Logger     *zap.Logger
}

// Publisher writes rewritten pipeline files into a repository checkout and
// publishes them with git add, commit, and push.
type Publisher struct {
	gitManager GitPublisher
	logger     *zap.Logger
}

// NewPublisher validates the dependencies and constructs a publisher.
func NewPublisher(dependencies PublisherDependencies) (*Publisher, error) {
	if dependencies.GitManager == nil {
		return nil, errGitPublisherRequired
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{gitManager: dependencies.GitManager, logger: logger}, nil
}

// DefaultCommitMessage returns the commit message used when configuration
// supplies none.
func DefaultCommitMessage() string {
	return defaultCommitMessageConstant
}

// PublishRewrites writes each rewritten file into the checkout, stages the
// paths, commits with commitMessage, and pushes to the default remote. A
// commit reporting no changes ends publication without pushing.
func (publisher *Publisher) PublishRewrites(executionContext context.Context, repositoryDirectory string, rewrites []FileRewrite, commitMessage string) error {
	if len(rewrites) == 0 {
		return nil
	}

	stagedPaths := make([]string, 0, len(rewrites))
	for _, fileRewrite := range rewrites {
		if writeError := os.WriteFile(fileRewrite.AbsolutePath, []byte(fileRewrite.RewrittenContent), rewrittenFilePermissionsConstant); writeError != nil {
			return fmt.Errorf(rewriteWriteErrorTemplateConstant, writeError)
		}
		stagedPaths = append(stagedPaths, fileRewrite.Path)
	}

	trimmedMessage := strings.TrimSpace(commitMessage)
	if len(trimmedMessage) == 0 {
		trimmedMessage = defaultCommitMessageConstant
	}

	if stageError := publisher.gitManager.StageFiles(executionContext, repositoryDirectory, stagedPaths); stageError != nil {
		return fmt.Errorf(stageErrorTemplateConstant, stageError)
	}

	if commitError := publisher.gitManager.CreateCommit(executionContext, repositoryDirectory, trimmedMessage); commitError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(commitError, &commandFailure) {
			publisher.logger.Info(
				noChangesToCommitMessageConstant,
				zap.String(logFieldRepositoryDirectoryConstant, repositoryDirectory),
			)
			return nil
		}
		return fmt.Errorf(commitErrorTemplateConstant, commitError)
	}

	if pushError := publisher.gitManager.Push(executionContext, repositoryDirectory, defaultRemoteNameConstant, defaultPushReferenceConstant); pushError != nil {
		return fmt.Errorf(pushErrorTemplateConstant, pushError)
	}

	publisher.logger.Info(
		publishedRewritesMessageConstant,
		zap.String(logFieldRepositoryDirectoryConstant, repositoryDirectory),
		zap.Int(logFieldRewrittenFileCountConstant, len(rewrites)),
	)
	return nil
}
