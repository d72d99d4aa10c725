package reconcile

import (
	"fmt"
	"sort"

	"github.com/temirov/pipealign/internal/pipeline"
	"github.com/temirov/pipealign/internal/policy"
)

const (
	conflictErrorTemplateConstant  = "overlapping version spans in %s: [%d,%d) and [%d,%d)"
	spanOutOfRangeTemplateConstant = "version span [%d,%d) exceeds content length %d in %s"
)

// ClassifiedReference pairs a parsed task reference with its classification
// and the required version configured for its action type.
type ClassifiedReference struct {
	Reference       pipeline.TaskReference
	State           policy.ValidState
	RequiredVersion string
}

// ConflictError reports two references whose version spans overlap; the file
// is left unmodified.
type ConflictError struct {
	FilePath   string
	FirstSpan  pipeline.ByteSpan
	SecondSpan pipeline.ByteSpan
}

// Error implements the error interface for ConflictError.
func (conflictError ConflictError) Error() string {
	return fmt.Sprintf(
		conflictErrorTemplateConstant,
		conflictError.FilePath,
		conflictError.FirstSpan.Start,
		conflictError.FirstSpan.End,
		conflictError.SecondSpan.Start,
		conflictError.SecondSpan.End,
	)
}

// SpanRangeError reports a version span lying outside the file content.
type SpanRangeError struct {
	FilePath      string
	Span          pipeline.ByteSpan
	ContentLength int
}

// Error implements the error interface for SpanRangeError.
func (rangeError SpanRangeError) Error() string {
	return fmt.Sprintf(
		spanOutOfRangeTemplateConstant,
		rangeError.Span.Start,
		rangeError.Span.End,
		rangeError.ContentLength,
		rangeError.FilePath,
	)
}

// FileRewrite carries one file's rewritten content for publication.
type FileRewrite struct {
	Path             string
	AbsolutePath     string
	RewrittenContent string
	RewriteCount     int
}

// RewriteContent replaces the version field of every non_standard reference
// with its required version, preserving every byte outside the rewritten
// spans. Standard, unparseable, and not_applicable references are never
// touched. The returned count is the number of rewrites applied; content is
// returned unchanged when it is zero.
func RewriteContent(filePath string, content string, references []ClassifiedReference) (string, int, error) {
	if overlapError := detectSpanOverlap(filePath, references); overlapError != nil {
		return content, 0, overlapError
	}

	rewriteCandidates := make([]ClassifiedReference, 0, len(references))
	for _, classifiedReference := range references {
		if classifiedReference.State != policy.ValidStateNonStandard {
			continue
		}
		referenceSpan := classifiedReference.Reference.VersionSpan
		if referenceSpan.IsEmpty() || len(classifiedReference.RequiredVersion) == 0 {
			continue
		}
		if referenceSpan.End > len(content) {
			return content, 0, SpanRangeError{FilePath: filePath, Span: referenceSpan, ContentLength: len(content)}
		}
		rewriteCandidates = append(rewriteCandidates, classifiedReference)
	}
	if len(rewriteCandidates) == 0 {
		return content, 0, nil
	}

	sort.Slice(rewriteCandidates, func(firstIndex int, secondIndex int) bool {
		return rewriteCandidates[firstIndex].Reference.VersionSpan.Start > rewriteCandidates[secondIndex].Reference.VersionSpan.Start
	})

	rewrittenContent := content
	for _, rewriteCandidate := range rewriteCandidates {
		referenceSpan := rewriteCandidate.Reference.VersionSpan
		rewrittenContent = rewrittenContent[:referenceSpan.Start] + rewriteCandidate.RequiredVersion + rewrittenContent[referenceSpan.End:]
	}
	return rewrittenContent, len(rewriteCandidates), nil
}

func detectSpanOverlap(filePath string, references []ClassifiedReference) error {
	referenceSpans := make([]pipeline.ByteSpan, 0, len(references))
	for _, classifiedReference := range references {
		if classifiedReference.Reference.VersionSpan.IsEmpty() {
			continue
		}
		referenceSpans = append(referenceSpans, classifiedReference.Reference.VersionSpan)
	}

	sort.Slice(referenceSpans, func(firstIndex int, secondIndex int) bool {
		return referenceSpans[firstIndex].Start < referenceSpans[secondIndex].Start
	})
	for spanIndex := 1; spanIndex < len(referenceSpans); spanIndex++ {
		if referenceSpans[spanIndex-1].Overlaps(referenceSpans[spanIndex]) {
			return ConflictError{
				FilePath:   filePath,
				FirstSpan:  referenceSpans[spanIndex-1],
				SecondSpan: referenceSpans[spanIndex],
			}
		}
	}
	return nil
}
