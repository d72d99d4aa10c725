package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/temirov/pipealign/internal/policy"
	"github.com/temirov/pipealign/internal/store"
)

const (
	formatCSVStringConstant            = "csv"
	formatMarkdownStringConstant       = "markdown"
	unknownFormatTemplateConstant      = "unknown report format: %s"
	sourceRequiredMessageConstant      = "inspection source required"
	queryErrorTemplateConstant         = "unable to query inspection records: %w"
	csvWriteErrorTemplateConstant      = "unable to write csv report: %w"
	markdownWriteErrorTemplateConstant = "unable to write markdown report: %w"
	csvHeaderRepositoryConstant        = "repository"
	csvHeaderFilePathConstant          = "file_path"
	csvHeaderLineNumberConstant        = "line"
	csvHeaderActionTypeConstant        = "task"
	csvHeaderDeclaredVersionConstant   = "declared_version"
	csvHeaderRequiredVersionConstant   = "required_version"
	csvHeaderValidStateConstant        = "state"
	csvHeaderRunIdentifierConstant     = "run_identifier"
	csvHeaderInspectedAtConstant       = "inspected_at"
	reportTitleLineConstant            = "# Pipeline Task Inspection Report\n\n"
	generatedAtTemplateConstant        = "*Generated on %s*\n\n"
	summaryHeadingLineConstant         = "## Summary\n\n"
	summaryLineTemplateConstant        = "- **%d** references across **%d** repositories\n"
	stateCountLineTemplateConstant     = "- %s: %d\n"
	repositoryHeadingTemplateConstant  = "## %s\n\n"
	tableHeaderLineConstant            = "| File | Line | Task | Declared | Required | State |\n"
	tableSeparatorLineConstant         = "|---|---|---|---|---|---|\n"
	tableRowTemplateConstant           = "| %s | %d | %s | %s | %s | %s |\n"
	sectionSeparatorConstant           = "\n"
	emptyValuePlaceholderConstant      = "-"
	timestampLayoutConstant            = time.RFC3339
)

var errSourceRequired = errors.New(sourceRequiredMessageConstant)

// Format enumerates the report output formats.
type Format string

// Supported report formats.
const (
	FormatCSV      Format = Format(formatCSVStringConstant)
	FormatMarkdown Format = Format(formatMarkdownStringConstant)
)

// KnownFormats returns every renderable format.
func KnownFormats() []Format {
	return []Format{FormatCSV, FormatMarkdown}
}

// KnownFormatNames returns the format names for flag usage text.
func KnownFormatNames() []string {
	knownFormats := KnownFormats()
	names := make([]string, 0, len(knownFormats))
	for _, knownFormat := range knownFormats {
		names = append(names, string(knownFormat))
	}
	return names
}

// ParseFormat matches a textual format name case-insensitively.
func ParseFormat(value string) (Format, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(value))
	for _, knownFormat := range KnownFormats() {
		if normalizedValue == string(knownFormat) {
			return knownFormat, nil
		}
	}
	return Format(""), fmt.Errorf(unknownFormatTemplateConstant, value)
}

// InspectionSource supplies recorded inspections for rendering.
type InspectionSource interface {
	QueryInspections(executionContext context.Context, filter store.QueryFilter) ([]store.InspectionRecord, error)
}

// ServiceDependencies bundles the collaborators for the report service.
type ServiceDependencies struct {
	Source InspectionSource
	Clock  store.Clock
}

// Service renders inspection reports from recorded store state.
type Service struct {
	source InspectionSource
	clock  store.Clock
}

// NewService validates the dependencies and constructs a report service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Source == nil {
		return nil, errSourceRequired
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &Service{source: dependencies.Source, clock: clock}, nil
}

// RenderOptions configures one report rendering.
type RenderOptions struct {
	Filter store.QueryFilter
	Format Format
}

// Render queries the store and writes the report in the selected format. The
// csv format emits a header plus one row per record; the markdown format
// groups records into per-repository tables under a summary section.
func (service *Service) Render(executionContext context.Context, outputWriter io.Writer, options RenderOptions) error {
	records, queryError := service.source.QueryInspections(executionContext, options.Filter)
	if queryError != nil {
		return fmt.Errorf(queryErrorTemplateConstant, queryError)
	}

	switch options.Format {
	case FormatMarkdown:
		return service.renderMarkdown(outputWriter, records)
	case FormatCSV:
		return renderCSV(outputWriter, records)
	default:
		return fmt.Errorf(unknownFormatTemplateConstant, options.Format)
	}
}

func renderCSV(outputWriter io.Writer, records []store.InspectionRecord) error {
	csvWriter := csv.NewWriter(outputWriter)
	header := []string{
		csvHeaderRepositoryConstant,
		csvHeaderFilePathConstant,
		csvHeaderLineNumberConstant,
		csvHeaderActionTypeConstant,
		csvHeaderDeclaredVersionConstant,
		csvHeaderRequiredVersionConstant,
		csvHeaderValidStateConstant,
		csvHeaderRunIdentifierConstant,
		csvHeaderInspectedAtConstant,
	}
	if writeError := csvWriter.Write(header); writeError != nil {
		return fmt.Errorf(csvWriteErrorTemplateConstant, writeError)
	}
	for _, record := range records {
		if writeError := csvWriter.Write(csvRecordFields(record)); writeError != nil {
			return fmt.Errorf(csvWriteErrorTemplateConstant, writeError)
		}
	}
	csvWriter.Flush()
	if flushError := csvWriter.Error(); flushError != nil {
		return fmt.Errorf(csvWriteErrorTemplateConstant, flushError)
	}
	return nil
}

func csvRecordFields(record store.InspectionRecord) []string {
	return []string{
		record.RepositoryName,
		record.FilePath,
		strconv.Itoa(record.LineNumber),
		record.ActionType,
		record.DeclaredVersion,
		record.RequiredVersion,
		string(record.ValidState),
		record.RunIdentifier,
		record.InspectedAt.UTC().Format(timestampLayoutConstant),
	}
}

func (service *Service) renderMarkdown(outputWriter io.Writer, records []store.InspectionRecord) error {
	stateCounts := make(map[policy.ValidState]int, len(policy.KnownValidStates()))
	repositoriesSeen := make(map[string]struct{})
	for _, record := range records {
		stateCounts[record.ValidState]++
		repositoriesSeen[record.RepositoryName] = struct{}{}
	}

	reportBuilder := &strings.Builder{}
	reportBuilder.WriteString(reportTitleLineConstant)
	fmt.Fprintf(reportBuilder, generatedAtTemplateConstant, service.clock.Now().UTC().Format(timestampLayoutConstant))
	reportBuilder.WriteString(summaryHeadingLineConstant)
	fmt.Fprintf(reportBuilder, summaryLineTemplateConstant, len(records), len(repositoriesSeen))
	for _, knownState := range policy.KnownValidStates() {
		fmt.Fprintf(reportBuilder, stateCountLineTemplateConstant, string(knownState), stateCounts[knownState])
	}

	currentRepository := ""
	for _, record := range records {
		if record.RepositoryName != currentRepository {
			currentRepository = record.RepositoryName
			reportBuilder.WriteString(sectionSeparatorConstant)
			fmt.Fprintf(reportBuilder, repositoryHeadingTemplateConstant, currentRepository)
			reportBuilder.WriteString(tableHeaderLineConstant)
			reportBuilder.WriteString(tableSeparatorLineConstant)
		}
		fmt.Fprintf(
			reportBuilder,
			tableRowTemplateConstant,
			record.FilePath,
			record.LineNumber,
			record.ActionType,
			markdownCell(record.DeclaredVersion),
			markdownCell(record.RequiredVersion),
			string(record.ValidState),
		)
	}

	if _, writeError := io.WriteString(outputWriter, reportBuilder.String()); writeError != nil {
		return fmt.Errorf(markdownWriteErrorTemplateConstant, writeError)
	}
	return nil
}

func markdownCell(value string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return emptyValuePlaceholderConstant
	}
	return value
}
