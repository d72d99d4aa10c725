package flags

const (
	// RepositoryFlagName exposes the shared repository filter flag name.
	RepositoryFlagName = "repo"
	// RepositoryFlagUsage describes the shared repository filter flag purpose.
	RepositoryFlagUsage = "Limit the run to the named repositories (repeatable)"
	// DatabaseFlagName exposes the shared inspection database flag name.
	DatabaseFlagName = "database"
	// DatabaseFlagUsage describes the shared inspection database flag purpose.
	DatabaseFlagUsage = "Path to the inspection database"
	// PolicyFlagName exposes the shared policy file flag name.
	PolicyFlagName = "policy"
	// PolicyFlagUsage describes the shared policy file flag purpose.
	PolicyFlagUsage = "Path to a task version policy file overriding the configured policy"
	// ConcurrencyFlagName exposes the shared retrieval concurrency flag name.
	ConcurrencyFlagName = "concurrency"
	// ConcurrencyFlagUsage describes the shared retrieval concurrency flag purpose.
	ConcurrencyFlagUsage = "Maximum repositories retrieved in parallel"
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Preview version rewrites without committing or pushing"
)
