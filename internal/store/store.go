package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/temirov/pipealign/internal/policy"
)

const (
	sqliteDriverNameConstant                = "sqlite"
	sqliteDSNTemplateConstant               = "file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	databasePathRequiredMessageConstant     = "database path required"
	repositoryNotFoundMessageConstant       = "repository not found"
	databaseDirectoryErrorTemplateConstant  = "unable to create database directory: %w"
	databaseOpenErrorTemplateConstant       = "unable to open database: %w"
	repositoryRegisterErrorTemplateConstant = "unable to register repository: %w"
	repositoryRemoveErrorTemplateConstant   = "unable to remove repository: %w"
	repositoryListErrorTemplateConstant     = "unable to list repositories: %w"
	repositoryLookupErrorTemplateConstant   = "unable to look up repository: %w"
	inspectionRecordErrorTemplateConstant   = "unable to record inspection: %w"
	inspectionQueryErrorTemplateConstant    = "unable to query inspections: %w"
	databaseBusyFragmentConstant            = "busy"
	databaseLockedFragmentConstant          = "locked"
	queryPlaceholderConstant                = "?"
	queryPlaceholderSeparatorConstant       = ", "
	queryConditionSeparatorConstant         = " AND "
	defaultDirectoryPermissionsConstant     = 0o755
	defaultMaximumRetryCountConstant        = 5
	retryInitialIntervalConstant            = 50 * time.Millisecond

	registerRepositoryStatementConstant = `INSERT INTO repositories (name, remote_url, default_branch, registered_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET remote_url = excluded.remote_url, default_branch = excluded.default_branch`
	removeRepositoryStatementConstant = `DELETE FROM repositories WHERE name = ?`
	listRepositoriesQueryConstant     = `SELECT name, remote_url, default_branch, registered_at FROM repositories ORDER BY name`
	lookupRepositoryQueryConstant     = `SELECT name, remote_url, default_branch, registered_at FROM repositories WHERE name = ?`
	insertInspectionStatementConstant = `INSERT INTO inspection_records
(run_identifier, repository_name, file_path, action_type, line_number, span_start, span_end, declared_version, required_version, valid_state, inspected_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	inspectionSelectColumnsConstant = `SELECT records.run_identifier, records.repository_name, records.file_path, records.action_type,
records.line_number, records.span_start, records.span_end, records.declared_version,
records.required_version, records.valid_state, records.inspected_at`
	latestInspectionFromClauseConstant = `
FROM inspection_records AS records
JOIN (
    SELECT MAX(id) AS id
    FROM inspection_records
    GROUP BY repository_name, file_path, action_type, line_number, span_start
) AS latest ON latest.id = records.id`
	historyInspectionFromClauseConstant = `
FROM inspection_records AS records`
	inspectionOrderClauseConstant = `
ORDER BY records.repository_name, records.file_path, records.line_number, records.span_start, records.id`
)

// ErrRepositoryNotFound indicates the named repository is not registered.
var ErrRepositoryNotFound = errors.New(repositoryNotFoundMessageConstant)

var errDatabasePathRequired = errors.New(databasePathRequiredMessageConstant)

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Repository is a registered inspection target.
type Repository struct {
	Name          string
	RemoteURL     string
	DefaultBranch string
	RegisteredAt  time.Time
}

// InspectionRecord is the persisted outcome of classifying one task reference.
//
// A record for the same (repository, file, action type, line, span start)
// location supersedes earlier ones in latest-state queries while the earlier
// rows remain available as history.
type InspectionRecord struct {
	RunIdentifier   string
	RepositoryName  string
	FilePath        string
	ActionType      string
	LineNumber      int
	SpanStart       int
	SpanEnd         int
	DeclaredVersion string
	RequiredVersion string
	ValidState      policy.ValidState
	InspectedAt     time.Time
}

// QueryFilter narrows inspection queries.
type QueryFilter struct {
	RepositoryNames []string
	ActionTypes     []string
	States          []policy.ValidState
	RunIdentifier   string
	IncludeHistory  bool
}

// Store persists repositories and inspection records in a SQLite database.
type Store struct {
	databaseHandle    *sql.DB
	clock             Clock
	maximumRetryCount uint64
}

// Open prepares a store at the provided path using the system clock.
func Open(databasePath string) (*Store, error) {
	return OpenWithClock(databasePath, SystemClock{})
}

// OpenWithClock prepares a store with a caller-supplied clock, creating or
// migrating the schema as needed.
func OpenWithClock(databasePath string, clock Clock) (*Store, error) {
	trimmedPath := strings.TrimSpace(databasePath)
	if len(trimmedPath) == 0 {
		return nil, errDatabasePathRequired
	}
	if clock == nil {
		clock = SystemClock{}
	}

	if directoryError := os.MkdirAll(filepath.Dir(trimmedPath), defaultDirectoryPermissionsConstant); directoryError != nil {
		return nil, fmt.Errorf(databaseDirectoryErrorTemplateConstant, directoryError)
	}

	databaseHandle, openError := sql.Open(sqliteDriverNameConstant, fmt.Sprintf(sqliteDSNTemplateConstant, trimmedPath))
	if openError != nil {
		return nil, fmt.Errorf(databaseOpenErrorTemplateConstant, openError)
	}
	databaseHandle.SetMaxOpenConns(1)

	if migrationError := applyMigrations(databaseHandle); migrationError != nil {
		if closeError := databaseHandle.Close(); closeError != nil {
			return nil, errors.Join(migrationError, closeError)
		}
		return nil, migrationError
	}

	return &Store{databaseHandle: databaseHandle, clock: clock, maximumRetryCount: defaultMaximumRetryCountConstant}, nil
}

// Close releases the underlying database handle.
func (store *Store) Close() error {
	return store.databaseHandle.Close()
}

// RegisterRepository stores a repository, updating the remote URL and default
// branch when the name is already registered.
func (store *Store) RegisterRepository(executionContext context.Context, repository Repository) error {
	registeredAt := repository.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = store.clock.Now().UTC()
	}

	_, registerError := store.databaseHandle.ExecContext(
		executionContext,
		registerRepositoryStatementConstant,
		repository.Name,
		repository.RemoteURL,
		repository.DefaultBranch,
		registeredAt,
	)
	if registerError != nil {
		return fmt.Errorf(repositoryRegisterErrorTemplateConstant, registerError)
	}
	return nil
}

// RemoveRepository deletes the named repository from the registry.
func (store *Store) RemoveRepository(executionContext context.Context, repositoryName string) error {
	executionResult, removeError := store.databaseHandle.ExecContext(executionContext, removeRepositoryStatementConstant, repositoryName)
	if removeError != nil {
		return fmt.Errorf(repositoryRemoveErrorTemplateConstant, removeError)
	}

	affectedRows, affectedError := executionResult.RowsAffected()
	if affectedError != nil {
		return fmt.Errorf(repositoryRemoveErrorTemplateConstant, affectedError)
	}
	if affectedRows == 0 {
		return ErrRepositoryNotFound
	}
	return nil
}

// ListRepositories returns every registered repository ordered by name.
func (store *Store) ListRepositories(executionContext context.Context) ([]Repository, error) {
	rows, queryError := store.databaseHandle.QueryContext(executionContext, listRepositoriesQueryConstant)
	if queryError != nil {
		return nil, fmt.Errorf(repositoryListErrorTemplateConstant, queryError)
	}
	defer rows.Close()

	repositories := make([]Repository, 0)
	for rows.Next() {
		repository := Repository{}
		if scanError := rows.Scan(&repository.Name, &repository.RemoteURL, &repository.DefaultBranch, &repository.RegisteredAt); scanError != nil {
			return nil, fmt.Errorf(repositoryListErrorTemplateConstant, scanError)
		}
		repositories = append(repositories, repository)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(repositoryListErrorTemplateConstant, rowsError)
	}
	return repositories, nil
}

// GetRepository returns the named repository or ErrRepositoryNotFound.
func (store *Store) GetRepository(executionContext context.Context, repositoryName string) (Repository, error) {
	repository := Repository{}
	scanError := store.databaseHandle.QueryRowContext(executionContext, lookupRepositoryQueryConstant, repositoryName).
		Scan(&repository.Name, &repository.RemoteURL, &repository.DefaultBranch, &repository.RegisteredAt)
	if errors.Is(scanError, sql.ErrNoRows) {
		return Repository{}, ErrRepositoryNotFound
	}
	if scanError != nil {
		return Repository{}, fmt.Errorf(repositoryLookupErrorTemplateConstant, scanError)
	}
	return repository, nil
}

// RecordInspection durably writes one inspection record, retrying transient
// database contention with exponential backoff.
func (store *Store) RecordInspection(executionContext context.Context, record InspectionRecord) error {
	if record.InspectedAt.IsZero() {
		record.InspectedAt = store.clock.Now().UTC()
	}

	insertOperation := func() error {
		_, insertError := store.databaseHandle.ExecContext(
			executionContext,
			insertInspectionStatementConstant,
			record.RunIdentifier,
			record.RepositoryName,
			record.FilePath,
			record.ActionType,
			record.LineNumber,
			record.SpanStart,
			record.SpanEnd,
			record.DeclaredVersion,
			record.RequiredVersion,
			string(record.ValidState),
			record.InspectedAt,
		)
		if insertError == nil {
			return nil
		}
		if isTransientDatabaseError(insertError) {
			return insertError
		}
		return backoff.Permanent(insertError)
	}

	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = retryInitialIntervalConstant
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(exponentialBackoff, store.maximumRetryCount), executionContext)

	if recordError := backoff.Retry(insertOperation, retryPolicy); recordError != nil {
		return fmt.Errorf(inspectionRecordErrorTemplateConstant, recordError)
	}
	return nil
}

// QueryInspections returns the inspection records matching the filter.
//
// Without IncludeHistory only the most recent record per reference location is
// returned; with it, every retained record matching the filter is returned.
func (store *Store) QueryInspections(executionContext context.Context, filter QueryFilter) ([]InspectionRecord, error) {
	queryText, queryArguments := buildInspectionQuery(filter)

	rows, queryError := store.databaseHandle.QueryContext(executionContext, queryText, queryArguments...)
	if queryError != nil {
		return nil, fmt.Errorf(inspectionQueryErrorTemplateConstant, queryError)
	}
	defer rows.Close()

	records := make([]InspectionRecord, 0)
	for rows.Next() {
		record := InspectionRecord{}
		stateText := ""
		scanError := rows.Scan(
			&record.RunIdentifier,
			&record.RepositoryName,
			&record.FilePath,
			&record.ActionType,
			&record.LineNumber,
			&record.SpanStart,
			&record.SpanEnd,
			&record.DeclaredVersion,
			&record.RequiredVersion,
			&stateText,
			&record.InspectedAt,
		)
		if scanError != nil {
			return nil, fmt.Errorf(inspectionQueryErrorTemplateConstant, scanError)
		}
		record.ValidState = policy.ValidState(stateText)
		records = append(records, record)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(inspectionQueryErrorTemplateConstant, rowsError)
	}
	return records, nil
}

func buildInspectionQuery(filter QueryFilter) (string, []any) {
	conditions := make([]string, 0, 4)
	queryArguments := make([]any, 0, 8)

	if len(filter.RepositoryNames) > 0 {
		conditions = append(conditions, fmt.Sprintf("records.repository_name IN (%s)", queryPlaceholders(len(filter.RepositoryNames))))
		for _, repositoryName := range filter.RepositoryNames {
			queryArguments = append(queryArguments, repositoryName)
		}
	}
	if len(filter.ActionTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("LOWER(records.action_type) IN (%s)", queryPlaceholders(len(filter.ActionTypes))))
		for _, actionType := range filter.ActionTypes {
			queryArguments = append(queryArguments, strings.ToLower(actionType))
		}
	}
	if len(filter.States) > 0 {
		conditions = append(conditions, fmt.Sprintf("records.valid_state IN (%s)", queryPlaceholders(len(filter.States))))
		for _, state := range filter.States {
			queryArguments = append(queryArguments, string(state))
		}
	}
	if len(strings.TrimSpace(filter.RunIdentifier)) > 0 {
		conditions = append(conditions, "records.run_identifier = ?")
		queryArguments = append(queryArguments, filter.RunIdentifier)
	}

	fromClause := latestInspectionFromClauseConstant
	if filter.IncludeHistory {
		fromClause = historyInspectionFromClauseConstant
	}

	queryText := inspectionSelectColumnsConstant + fromClause
	if len(conditions) > 0 {
		queryText += "\nWHERE " + strings.Join(conditions, queryConditionSeparatorConstant)
	}
	queryText += inspectionOrderClauseConstant

	return queryText, queryArguments
}

func queryPlaceholders(placeholderCount int) string {
	placeholders := make([]string, placeholderCount)
	for placeholderIndex := range placeholders {
		placeholders[placeholderIndex] = queryPlaceholderConstant
	}
	return strings.Join(placeholders, queryPlaceholderSeparatorConstant)
}

func isTransientDatabaseError(candidateError error) bool {
	if candidateError == nil {
		return false
	}
	messageText := strings.ToLower(candidateError.Error())
	return strings.Contains(messageText, databaseBusyFragmentConstant) || strings.Contains(messageText, databaseLockedFragmentConstant)
}
