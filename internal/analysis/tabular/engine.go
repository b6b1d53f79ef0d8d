// Package tabular is the builtin analysis engine: it parses a CSV or XLSX
// upload, profiles every column and renders a standalone HTML report.
package tabular

import (
	"context"

	"github.com/spaghetti-software-inc/ninjapivot/internal/analysis"
)

const ContentTypeHTML = "text/html; charset=utf-8"

// Engine implements analysis.Engine for tabular uploads. Structural
// ceilings are enforced right after parsing, the first unit of work, so an
// oversized table surfaces as a failed job with a descriptive error rather
// than a silent drop.
type Engine struct {
	maxRows    int
	maxColumns int
}

var _ analysis.Engine = (*Engine)(nil)

func NewEngine(maxRows, maxColumns int) *Engine {
	return &Engine{maxRows: maxRows, maxColumns: maxColumns}
}

func (e *Engine) Run(ctx context.Context, input analysis.Input, report analysis.ReportFunc) (*analysis.Artifact, error) {
	report(analysis.Milestone{Percent: 5, Message: "parsing input"})

	table, err := parseTable(input.Filename, input.Data)
	if err != nil {
		return nil, analysis.NewBadInputError("malformed input: %v", err)
	}

	if len(table.Columns) > e.maxColumns {
		return nil, analysis.NewBadInputError("table has %d columns, limit is %d", len(table.Columns), e.maxColumns)
	}
	if len(table.Rows) > e.maxRows {
		return nil, analysis.NewBadInputError("table has %d rows, limit is %d", len(table.Rows), e.maxRows)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(analysis.Milestone{Percent: 30, Message: "computing statistics"})

	summaries := summarize(table)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(analysis.Milestone{Percent: 80, Message: "rendering report"})

	content, err := renderHTML(input.Filename, table, summaries)
	if err != nil {
		return nil, err
	}

	report(analysis.Milestone{Percent: 100, Message: "report ready"})
	return &analysis.Artifact{Content: content, ContentType: ContentTypeHTML}, nil
}
