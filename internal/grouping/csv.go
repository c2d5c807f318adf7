package grouping

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// Row is one CSV data row keyed by header name, or by column index when the
// file has no header.
type Row struct {
	// Index is the zero-based position among data rows.
	Index  int
	Fields map[string]string
}

// Get returns the value of a column, or "" when absent.
func (r Row) Get(column string) string {
	return r.Fields[column]
}

// CSVOptions controls how rows are grouped and which text is redacted.
type CSVOptions struct {
	HasHeader bool

	// GroupBy returns the group key of a row. Nil puts every row in one group.
	GroupBy func(Row) string

	// OrderBy orders the rows of one group before joining. It must return a
	// permutation of its input. Nil keeps file order.
	OrderBy func([]Row) []Row

	// Text returns the text to redact from a row. Nil reads TextColumn.
	Text func(Row) string

	// TextColumn names the text column. RedactAndReconstructCSV writes the
	// redacted text back into it.
	TextColumn string

	// Columns names the columns GroupBy and OrderBy read. Each must be in the
	// header, so a misspelt column fails instead of merging every row into
	// one group.
	Columns []string

	Reconcile []reconcile.Option
}

// GroupByColumn groups rows by the value of one column.
func GroupByColumn(column string) func(Row) string {
	return func(r Row) string { return r.Get(column) }
}

// OrderByColumn orders rows by an integer column. Rows whose value does not
// parse sort last, keeping file order among themselves.
func OrderByColumn(column string) func([]Row) []Row {
	return func(rows []Row) []Row {
		out := make([]Row, len(rows))
		copy(out, rows)
		key := func(r Row) (int, bool) {
			n, err := strconv.Atoi(r.Get(column))
			return n, err == nil
		}
		sort.SliceStable(out, func(i, j int) bool {
			ka, okA := key(out[i])
			kb, okB := key(out[j])
			if okA != okB {
				return okA
			}
			return okA && ka < kb
		})
		return out
	}
}

type csvTable struct {
	header []string
	rows   []Row
	raw    [][]string
}

// requireColumn fails when a non-empty table has no column named name.
func (t *csvTable) requireColumn(role, name string) error {
	if len(t.header) == 0 || slices.Contains(t.header, name) {
		return nil
	}
	return errors.NewInvalidRequest(fmt.Sprintf("%s column %q not found in csv", role, name))
}

func readCSV(r io.Reader, hasHeader bool) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to parse csv: %v", err))
	}

	t := &csvTable{}
	if len(records) == 0 {
		return t, nil
	}

	if hasHeader {
		t.header = records[0]
		records = records[1:]
	} else {
		t.header = make([]string, len(records[0]))
		for i := range t.header {
			t.header[i] = strconv.Itoa(i)
		}
	}

	for i, rec := range records {
		if len(rec) != len(t.header) {
			return nil, errors.NewInvalidRow(i, len(rec), len(t.header))
		}
		fields := make(map[string]string, len(rec))
		for k, h := range t.header {
			fields[h] = rec[k]
		}
		t.rows = append(t.rows, Row{Index: i, Fields: fields})
	}
	t.raw = records
	return t, nil
}

// RedactCSV reads a CSV, redacts each group of rows with one call, and returns
// one result per data row in file order.
func RedactCSV(ctx context.Context, r io.Reader, opts CSVOptions, redact RedactFunc) ([]redaction.Response, error) {
	t, err := readCSV(r, opts.HasHeader)
	if err != nil {
		return nil, err
	}
	return redactTable(ctx, t, opts, redact)
}

// RedactAndReconstructCSV redacts like RedactCSV and writes the file back out
// with the same header, rows and column order, TextColumn replaced by each
// row's redacted text. The per-row results are returned alongside.
func RedactAndReconstructCSV(ctx context.Context, r io.Reader, opts CSVOptions, redact RedactFunc) (*bytes.Buffer, []redaction.Response, error) {
	if opts.TextColumn == "" {
		return nil, nil, errors.NewInvalidRequest("text column is required to reconstruct csv")
	}

	t, err := readCSV(r, opts.HasHeader)
	if err != nil {
		return nil, nil, err
	}
	if err := t.requireColumn("text", opts.TextColumn); err != nil {
		return nil, nil, err
	}
	col := slices.Index(t.header, opts.TextColumn)

	results, err := redactTable(ctx, t, opts, redact)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if opts.HasHeader && t.header != nil {
		if err := w.Write(t.header); err != nil {
			return nil, nil, errors.NewInternal(err)
		}
	}
	for i, rec := range t.raw {
		out := make([]string, len(rec))
		copy(out, rec)
		out[col] = results[i].RedactedText
		if err := w.Write(out); err != nil {
			return nil, nil, errors.NewInternal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, nil, errors.NewInternal(err)
	}
	return &buf, results, nil
}

func redactTable(ctx context.Context, t *csvTable, opts CSVOptions, redact RedactFunc) ([]redaction.Response, error) {
	text := opts.Text
	if text == nil {
		if opts.TextColumn == "" {
			return nil, errors.NewInvalidRequest("text getter or text column is required")
		}
		text = func(r Row) string { return r.Get(opts.TextColumn) }
		if err := t.requireColumn("text", opts.TextColumn); err != nil {
			return nil, err
		}
	}
	for _, c := range opts.Columns {
		if err := t.requireColumn("grouping", c); err != nil {
			return nil, err
		}
	}

	// Groups keep the order their first row appears in.
	var keys []string
	groups := make(map[string][]Row)
	for _, row := range t.rows {
		key := ""
		if opts.GroupBy != nil {
			key = opts.GroupBy(row)
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}

	results := make([]redaction.Response, len(t.rows))
	for _, key := range keys {
		rows := groups[key]
		if opts.OrderBy != nil {
			ordered := opts.OrderBy(rows)
			if err := checkPermutation(rows, ordered); err != nil {
				return nil, err
			}
			rows = ordered
		}

		texts := make([]string, len(rows))
		for i, row := range rows {
			texts[i] = text(row)
		}
		groupResults, err := RedactGroup(ctx, texts, redact, opts.Reconcile...)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			results[row.Index] = groupResults[i]
		}
	}
	return results, nil
}

func checkPermutation(rows, ordered []Row) error {
	if len(rows) != len(ordered) {
		return errors.NewInvalidRequest(fmt.Sprintf("ordering returned %d rows for a group of %d", len(ordered), len(rows)))
	}
	want := make(map[int]bool, len(rows))
	for _, r := range rows {
		want[r.Index] = true
	}
	for _, r := range ordered {
		if !want[r.Index] {
			return errors.NewInvalidRequest(fmt.Sprintf("ordering returned row %d which is not in the group or appears twice", r.Index))
		}
		delete(want, r.Index)
	}
	return nil
}
