package pipeline

// ByteSpan identifies a half-open byte range inside a pipeline file.
type ByteSpan struct {
	Start int
	End   int
}

// IsEmpty reports whether the span covers no bytes.
func (span ByteSpan) IsEmpty() bool {
	return span.End <= span.Start
}

// Overlaps reports whether two spans share at least one byte.
func (span ByteSpan) Overlaps(other ByteSpan) bool {
	if span.IsEmpty() || other.IsEmpty() {
		return false
	}
	return span.Start < other.End && other.Start < span.End
}

// TaskReference describes one version-bearing task invocation found in a pipeline file.
//
// DeclaredVersion is empty when the invocation carried no readable version
// value; VersionSpan is empty in that case and the reference cannot be
// rewritten.
type TaskReference struct {
	ActionType      string
	DeclaredVersion string
	FilePath        string
	LineNumber      int
	VersionSpan     ByteSpan
}
