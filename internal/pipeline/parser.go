package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	taskReferencePatternConstant   = `^\s*-?\s*task:\s*["']?([A-Za-z0-9_./-]+)(?:@([^\s"'#]+))?["']?\s*(?:#.*)?$`
	versionPropertyPatternTemplate = `^\s*%s:\s*["']?([^\s"'#]+)["']?\s*(?:#.*)?$`
	commentLinePrefixConstant      = "#"
	carriageReturnSuffixConstant   = "\r"
	lineSeparatorConstant          = "\n"
)

// Parser extracts task references from pipeline file content.
type Parser struct {
	shapes           []ActionShape
	taskPattern      *regexp.Regexp
	propertyPatterns []*regexp.Regexp
}

// NewParser constructs a Parser recognizing the default action shapes.
func NewParser() *Parser {
	return NewParserWithShapes(DefaultShapes())
}

// NewParserWithShapes constructs a Parser recognizing the provided shapes.
func NewParserWithShapes(shapes []ActionShape) *Parser {
	propertyPatterns := make([]*regexp.Regexp, len(shapes))
	for shapeIndex, shape := range shapes {
		propertyPatterns[shapeIndex] = regexp.MustCompile(fmt.Sprintf(versionPropertyPatternTemplate, regexp.QuoteMeta(shape.VersionProperty)))
	}
	return &Parser{
		shapes:           shapes,
		taskPattern:      regexp.MustCompile(taskReferencePatternConstant),
		propertyPatterns: propertyPatterns,
	}
}

// ParseFile extracts the task references declared in the provided content.
//
// Content that is not pipeline syntax yields no references rather than an
// error, and comment lines are never treated as invocations. Returned spans
// index into the original content bytes.
func (parser *Parser) ParseFile(filePath string, content []byte) []TaskReference {
	lines := scanLines(content)
	references := make([]TaskReference, 0)

	for lineIndex, line := range lines {
		if isCommentLine(line.text) {
			continue
		}

		matchIndexes := parser.taskPattern.FindStringSubmatchIndex(line.text)
		if matchIndexes == nil {
			continue
		}

		identifier := submatchValue(line.text, matchIndexes, 1)
		reference := TaskReference{
			ActionType: identifier,
			FilePath:   filePath,
			LineNumber: lineIndex + 1,
		}
		versionStart, versionEnd := submatchBounds(matchIndexes, 2)
		if versionStart >= 0 {
			reference.DeclaredVersion = line.text[versionStart:versionEnd]
			reference.VersionSpan = ByteSpan{Start: line.startOffset + versionStart, End: line.startOffset + versionEnd}
		}
		references = append(references, reference)

		for shapeIndex, shape := range parser.shapes {
			if shape.MatchesIdentifier == nil || !shape.MatchesIdentifier(identifier) {
				continue
			}
			references = append(references, parser.extractPropertyReference(filePath, lines, lineIndex, shape, parser.propertyPatterns[shapeIndex]))
		}
	}

	return references
}

func (parser *Parser) extractPropertyReference(filePath string, lines []scannedLine, invocationIndex int, shape ActionShape, propertyPattern *regexp.Regexp) TaskReference {
	reference := TaskReference{
		ActionType: shape.ActionType,
		FilePath:   filePath,
		LineNumber: invocationIndex + 1,
	}

	for lookaheadOffset := 1; lookaheadOffset <= shape.LookaheadLimit; lookaheadOffset++ {
		lineIndex := invocationIndex + lookaheadOffset
		if lineIndex >= len(lines) {
			break
		}
		candidateLine := lines[lineIndex]
		if isCommentLine(candidateLine.text) {
			continue
		}
		if parser.taskPattern.MatchString(candidateLine.text) {
			break
		}
		matchIndexes := propertyPattern.FindStringSubmatchIndex(candidateLine.text)
		if matchIndexes == nil {
			continue
		}
		valueStart, valueEnd := submatchBounds(matchIndexes, 1)
		reference.DeclaredVersion = candidateLine.text[valueStart:valueEnd]
		reference.LineNumber = lineIndex + 1
		reference.VersionSpan = ByteSpan{Start: candidateLine.startOffset + valueStart, End: candidateLine.startOffset + valueEnd}
		break
	}

	return reference
}

type scannedLine struct {
	text        string
	startOffset int
}

func scanLines(content []byte) []scannedLine {
	rawLines := strings.Split(string(content), lineSeparatorConstant)
	scanned := make([]scannedLine, 0, len(rawLines))
	currentOffset := 0
	for _, rawLine := range rawLines {
		scanned = append(scanned, scannedLine{
			text:        strings.TrimSuffix(rawLine, carriageReturnSuffixConstant),
			startOffset: currentOffset,
		})
		currentOffset += len(rawLine) + 1
	}
	return scanned
}

func isCommentLine(lineText string) bool {
	return strings.HasPrefix(strings.TrimSpace(lineText), commentLinePrefixConstant)
}

func submatchValue(lineText string, matchIndexes []int, groupNumber int) string {
	startIndex, endIndex := submatchBounds(matchIndexes, groupNumber)
	if startIndex < 0 {
		return ""
	}
	return lineText[startIndex:endIndex]
}

func submatchBounds(matchIndexes []int, groupNumber int) (int, int) {
	return matchIndexes[2*groupNumber], matchIndexes[2*groupNumber+1]
}
