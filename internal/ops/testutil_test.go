package ops

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/textual/internal/client"
	"github.com/hpungsan/textual/internal/config"
	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/redaction"
	"github.com/hpungsan/textual/internal/redaction/redactiontest"
)

// fakeRedactor stands in for the service. It detects a fixed set of
// entities and remembers what it was asked.
type fakeRedactor struct {
	inner    *redactiontest.Redactor
	defaults client.RedactOptions

	mu      sync.Mutex
	formats []string
	opts    []client.RedactOptions
}

func newFakeRedactor() *fakeRedactor {
	return &fakeRedactor{
		inner: &redactiontest.Redactor{Entities: map[string]string{
			"Adam":    "NAME_GIVEN",
			"Jane":    "NAME_GIVEN",
			"Ad\nam":  "NAME_GIVEN",
			"Atlanta": "LOCATION_CITY",
		}},
	}
}

func (f *fakeRedactor) record(format string, opts client.RedactOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formats = append(f.formats, format)
	f.opts = append(f.opts, opts)
}

func (f *fakeRedactor) Redact(ctx context.Context, text string, opts client.RedactOptions) (*redaction.Response, error) {
	f.record(FormatText, opts)
	return f.inner.Redact(ctx, text)
}

func (f *fakeRedactor) RedactBulk(ctx context.Context, texts []string, opts client.RedactOptions) (*redaction.BulkResponse, error) {
	f.record("bulk", opts)
	out := &redaction.BulkResponse{BulkText: texts}
	for _, text := range texts {
		resp, err := f.inner.Redact(ctx, text)
		if err != nil {
			return nil, err
		}
		out.BulkRedactedText = append(out.BulkRedactedText, resp.RedactedText)
		out.DeIdentifyResults = append(out.DeIdentifyResults, resp.DeIdentifyResults)
		out.Usage += resp.Usage
	}
	return out, nil
}

func (f *fakeRedactor) RedactJSON(ctx context.Context, jsonText string, _ map[string][]string, opts client.RedactOptions) (*redaction.Response, error) {
	f.record(FormatJSON, opts)
	return f.inner.Redact(ctx, jsonText)
}

func (f *fakeRedactor) RedactXML(ctx context.Context, xmlText string, opts client.RedactOptions) (*redaction.Response, error) {
	f.record(FormatXML, opts)
	return f.inner.Redact(ctx, xmlText)
}

func (f *fakeRedactor) RedactHTML(ctx context.Context, htmlText string, opts client.RedactOptions) (*redaction.Response, error) {
	f.record(FormatHTML, opts)
	return f.inner.Redact(ctx, htmlText)
}

func (f *fakeRedactor) Unredact(_ context.Context, text string, _ *int) (string, error) {
	f.record("unredact", client.RedactOptions{})
	text = strings.ReplaceAll(text, "[NAME_GIVEN]", "Adam")
	return strings.ReplaceAll(text, "[LOCATION_CITY]", "Atlanta"), nil
}

func (f *fakeRedactor) Defaults() client.RedactOptions {
	return f.defaults
}

func (f *fakeRedactor) Formats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.formats...)
}

func (f *fakeRedactor) LastOptions() client.RedactOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts[len(f.opts)-1]
}

// newTestEnv returns an env with a fresh journal and files allowed in a
// temp directory, which it also returns.
func newTestEnv(t *testing.T) (*Env, *fakeRedactor, string) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	filesDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{filesDir}

	fake := newFakeRedactor()
	return &Env{DB: database, Cfg: cfg, Redactor: fake}, fake, filesDir
}

func countRuns(t *testing.T, database *sql.DB, kind string) int {
	t.Helper()
	n, err := db.CountRuns(context.Background(), database, kind)
	require.NoError(t, err)
	return n
}

func intPtr(i int) *int {
	return &i
}
