package ops

import (
	"bytes"
	"context"
	"strings"

	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/grouping"
)

// RedactCSVInput contains parameters for the RedactCSV operation.
type RedactCSVInput struct {
	Path    string // input file; or
	Content string // inline CSV

	OutputPath string // optional; when empty the CSV is returned inline

	NoHeader   bool   // first row is data, columns are named by index ("0", "1", ...)
	TextColumn string // required
	GroupBy    string // optional column; rows sharing a value are redacted together
	OrderBy    string // optional integer column ordering rows inside a group

	Settings Settings
}

// RedactCSVOutput contains the result of the RedactCSV operation.
type RedactCSVOutput struct {
	Summary
	Rows       int    `json:"rows"`
	OutputPath string `json:"output_path,omitempty"`
	CSV        string `json:"csv,omitempty"`
}

// RedactCSV redacts one text column of a CSV. Rows are grouped by GroupBy and
// each group is redacted with a single call. The file is written back with the
// same header, rows and columns.
func RedactCSV(ctx context.Context, env *Env, input RedactCSVInput) (*RedactCSVOutput, error) {
	textColumn := strings.TrimSpace(input.TextColumn)
	if textColumn == "" {
		return nil, errors.NewInvalidRequest("text_column is required")
	}
	redact, reconcileOpts, stats, err := env.redactFunc(input.Settings)
	if err != nil {
		return nil, err
	}

	cfg := env.config()
	if input.OutputPath != "" {
		if err := ValidatePath(input.OutputPath, PathCheckWrite, CSVExtensions, cfg); err != nil {
			return nil, err
		}
	}
	data, source, err := readInput(input.Path, input.Content, CSVExtensions, cfg)
	if err != nil {
		return nil, err
	}

	opts := grouping.CSVOptions{
		HasHeader:  !input.NoHeader,
		TextColumn: textColumn,
		Reconcile:  reconcileOpts,
	}
	if col := strings.TrimSpace(input.GroupBy); col != "" {
		opts.GroupBy = grouping.GroupByColumn(col)
		opts.Columns = append(opts.Columns, col)
	}
	if col := strings.TrimSpace(input.OrderBy); col != "" {
		opts.OrderBy = grouping.OrderByColumn(col)
		opts.Columns = append(opts.Columns, col)
	}

	buf, results, err := grouping.RedactAndReconstructCSV(ctx, bytes.NewReader(data), opts, redact)
	if err != nil {
		return nil, err
	}

	out := &RedactCSVOutput{
		Summary: stats.summary(len(results)),
		Rows:    len(results),
	}
	if input.OutputPath != "" {
		if err := writeOutput(input.OutputPath, buf.Bytes(), CSVExtensions, cfg); err != nil {
			return nil, err
		}
		out.OutputPath = absPath(input.OutputPath)
	} else {
		out.CSV = buf.String()
	}

	env.journal(ctx, db.KindCSV, source, &out.Summary)
	return out, nil
}
