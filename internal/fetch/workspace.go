package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	workspacePrefixConstant               = "pipealign-"
	workspaceDirectorySeparatorConstant   = "/"
	workspaceNameSeparatorConstant        = "-"
	workspaceDirectoryPermissionsConstant = 0o755
	workspaceCreateErrorTemplateConstant  = "unable to create workspace: %w"
)

// Workspace is a per-run scratch directory holding repository checkouts. It is
// removed entirely by Close; individual checkouts are removed as soon as their
// repository finishes processing.
type Workspace struct {
	rootDirectory string
}

// NewWorkspace creates a scratch directory beneath parentDirectory, falling
// back to the system temporary directory when parentDirectory is empty.
func NewWorkspace(parentDirectory string) (*Workspace, error) {
	trimmedParent := strings.TrimSpace(parentDirectory)
	if len(trimmedParent) > 0 {
		if directoryError := os.MkdirAll(trimmedParent, workspaceDirectoryPermissionsConstant); directoryError != nil {
			return nil, fmt.Errorf(workspaceCreateErrorTemplateConstant, directoryError)
		}
	}

	rootDirectory, temporaryError := os.MkdirTemp(trimmedParent, workspacePrefixConstant)
	if temporaryError != nil {
		return nil, fmt.Errorf(workspaceCreateErrorTemplateConstant, temporaryError)
	}
	return &Workspace{rootDirectory: rootDirectory}, nil
}

// Root returns the workspace root directory.
func (workspace *Workspace) Root() string {
	return workspace.rootDirectory
}

// RepositoryDirectory returns the checkout directory reserved for the named
// repository.
func (workspace *Workspace) RepositoryDirectory(repositoryName string) string {
	flattenedName := strings.ReplaceAll(repositoryName, workspaceDirectorySeparatorConstant, workspaceNameSeparatorConstant)
	return filepath.Join(workspace.rootDirectory, flattenedName)
}

// Close removes the workspace and everything beneath it.
func (workspace *Workspace) Close() error {
	return os.RemoveAll(workspace.rootDirectory)
}
