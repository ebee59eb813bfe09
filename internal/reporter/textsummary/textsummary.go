// Package textsummary renders a coverage container as a plain text table
// with one row per file and a total row.
package textsummary

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gcovr/gcovr-sub000/internal/model"
)

const ruleWidth = 78

// Options selects the order and the columns of the table.
type Options struct {
	// Root is stripped from the file names.
	Root       string
	SortKey    model.SortKey
	SortMetric model.SortMetric
	Reverse    bool
	// ShowDecisions adds the decision columns.
	ShowDecisions bool
}

// TextReportBuilder writes the summary table to an io.Writer.
type TextReportBuilder struct {
	out  io.Writer
	opts Options
}

func NewTextReportBuilder(out io.Writer, opts Options) *TextReportBuilder {
	if opts.SortKey == "" {
		opts.SortKey = model.SortByFilename
	}
	if opts.SortMetric == "" {
		opts.SortMetric = model.MetricLine
	}
	return &TextReportBuilder{out: out, opts: opts}
}

func (b *TextReportBuilder) ReportType() string {
	return "TextSummary"
}

// CreateReport writes the table for container.
func (b *TextReportBuilder) CreateReport(container *model.CoverageContainer) error {
	rule := strings.Repeat("-", ruleWidth)
	fmt.Fprintln(b.out, rule)
	fmt.Fprintln(b.out, "GCC Code Coverage Report")
	if b.opts.Root != "" {
		fmt.Fprintf(b.out, "Directory: %s\n", b.opts.Root)
	}
	fmt.Fprintln(b.out, rule)

	tw := tabwriter.NewWriter(b.out, 0, 0, 2, ' ', 0)
	header := []string{"File", "Lines", "Exec", "Cover", "Branches", "Taken", "Cover", "Conditions", "Covered", "Cover"}
	if b.opts.ShowDecisions {
		header = append(header, "Decisions", "Covered", "Cover")
	}
	b.writeRow(tw, header)

	for _, name := range container.SortCoverage(b.opts.SortKey, b.opts.Reverse, b.opts.SortMetric) {
		b.writeRow(tw, b.statsRow(b.displayName(name), container.File(name).Stats()))
	}
	b.writeRow(tw, b.statsRow("TOTAL", container.Stats()))
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write text summary: %w", err)
	}
	_, err := fmt.Fprintln(b.out, rule)
	return err
}

func (b *TextReportBuilder) writeRow(w io.Writer, cells []string) {
	fmt.Fprintf(w, "%s\t\n", strings.Join(cells, "\t"))
}

func (b *TextReportBuilder) statsRow(name string, stats model.SummarizedStats) []string {
	row := []string{name}
	row = append(row, statCells(stats.Line)...)
	row = append(row, statCells(stats.Branch)...)
	row = append(row, statCells(stats.Condition)...)
	if b.opts.ShowDecisions {
		row = append(row, statCells(stats.Decision.CoverageStat())...)
	}
	return row
}

func (b *TextReportBuilder) displayName(filename string) string {
	if b.opts.Root == "" {
		return filepath.ToSlash(filename)
	}
	rel, err := filepath.Rel(b.opts.Root, filename)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filename)
	}
	return filepath.ToSlash(rel)
}

func statCells(stat model.CoverageStat) []string {
	return []string{fmt.Sprint(stat.Total), fmt.Sprint(stat.Covered), formatPercent(stat)}
}

// formatPercent renders a percentage with one decimal, or "--" without
// data.
func formatPercent(stat model.CoverageStat) string {
	p, ok := stat.Percent()
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%.1f%%", p)
}
