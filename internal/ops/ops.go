package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/textual/internal/client"
	"github.com/hpungsan/textual/internal/config"
	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/grouping"
	"github.com/hpungsan/textual/internal/logger"
	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Redactor is the redaction service as seen by the operations.
// *client.Client implements it.
type Redactor interface {
	Redact(ctx context.Context, text string, opts client.RedactOptions) (*redaction.Response, error)
	RedactBulk(ctx context.Context, texts []string, opts client.RedactOptions) (*redaction.BulkResponse, error)
	RedactJSON(ctx context.Context, jsonText string, jsonPathAllowLists map[string][]string, opts client.RedactOptions) (*redaction.Response, error)
	RedactXML(ctx context.Context, xmlText string, opts client.RedactOptions) (*redaction.Response, error)
	RedactHTML(ctx context.Context, htmlText string, opts client.RedactOptions) (*redaction.Response, error)
	Unredact(ctx context.Context, text string, seed *int) (string, error)
	Defaults() client.RedactOptions
}

// Env carries what every operation needs. A nil DB disables the journal.
type Env struct {
	DB       *sql.DB
	Cfg      *config.Config
	Redactor Redactor
	Log      *logger.Logger
}

func (e *Env) logger() *logger.Logger {
	if e.Log == nil {
		return logger.NewNop()
	}
	return e.Log
}

func (e *Env) config() *config.Config {
	if e.Cfg == nil {
		return config.DefaultConfig()
	}
	return e.Cfg
}

// Settings override the configured redaction settings for one operation.
type Settings struct {
	GeneratorDefault string              `json:"generator_default,omitempty"`
	GeneratorConfig  map[string]string   `json:"generator_config,omitempty"`
	CustomEntities   []string            `json:"custom_entities,omitempty"`
	LabelAllowLists  map[string][]string `json:"label_allow_lists,omitempty"`
	LabelBlockLists  map[string][]string `json:"label_block_lists,omitempty"`
	RandomSeed       *int                `json:"random_seed,omitempty"`
	NewSpanPolicy    string              `json:"new_span_policy,omitempty"`

	// RetentionHours asks the service to record the request. 0 does not record.
	RetentionHours int `json:"retention_hours,omitempty"`
}

// errNoRedactor is returned when the service client could not be built,
// which only happens without an API key.
func errNoRedactor() error {
	return errors.NewUnauthorized(fmt.Sprintf("API key is required (set api_key in config or %s)", config.EnvAPIKey))
}

// resolve merges s over the redactor defaults and the configured span policy.
func (e *Env) resolve(s Settings) (client.RedactOptions, []reconcile.Option, error) {
	if e.Redactor == nil {
		return client.RedactOptions{}, nil, errNoRedactor()
	}
	opts := e.Redactor.Defaults()

	if s.GeneratorDefault != "" {
		state, err := redaction.ParsePiiState(s.GeneratorDefault)
		if err != nil {
			return opts, nil, errors.NewInvalidRequest(err.Error())
		}
		opts.GeneratorDefault = state
	}
	if len(s.GeneratorConfig) > 0 {
		merged := make(map[string]redaction.PiiState, len(opts.GeneratorConfig)+len(s.GeneratorConfig))
		for label, state := range opts.GeneratorConfig {
			merged[label] = state
		}
		for label, state := range s.GeneratorConfig {
			parsed, err := redaction.ParsePiiState(state)
			if err != nil {
				return opts, nil, errors.NewInvalidRequest(fmt.Sprintf("generator_config.%s: %v", label, err))
			}
			merged[label] = parsed
		}
		opts.GeneratorConfig = merged
	}
	if len(s.CustomEntities) > 0 {
		opts.CustomEntities = append(append([]string{}, opts.CustomEntities...), s.CustomEntities...)
	}
	if s.LabelAllowLists != nil {
		opts.LabelAllowLists = s.LabelAllowLists
	}
	if s.LabelBlockLists != nil {
		opts.LabelBlockLists = s.LabelBlockLists
	}
	if s.RandomSeed != nil {
		opts.RandomSeed = s.RandomSeed
	}
	if s.RetentionHours != 0 {
		opts.Record = &client.RecordOptions{RetentionTimeInHours: s.RetentionHours}
	}

	policy := e.config().Policy()
	if s.NewSpanPolicy != "" {
		p, err := reconcile.ParsePolicy(s.NewSpanPolicy)
		if err != nil {
			return opts, nil, errors.NewInvalidRequest(err.Error())
		}
		policy = p
	}

	// Surface payload errors before any file is read or request sent.
	if _, err := client.BuildPayload(opts); err != nil {
		return opts, nil, err
	}
	return opts, []reconcile.Option{reconcile.WithNewSpanPolicy(policy)}, nil
}

// callStats counts the service calls made through a wrapped RedactFunc,
// along with the entities each call found in its joined group text.
type callStats struct {
	mu           sync.Mutex
	calls        int
	usage        int
	replacements int
	labels       map[string]int
}

func (c *callStats) wrap(redact grouping.RedactFunc) grouping.RedactFunc {
	return func(ctx context.Context, text string) (*redaction.Response, error) {
		resp, err := redact(ctx, text)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.calls++
		if resp != nil {
			c.usage += resp.Usage
			c.replacements += len(resp.DeIdentifyResults)
			for label, n := range resp.Labels() {
				if c.labels == nil {
					c.labels = map[string]int{}
				}
				c.labels[label] += n
			}
		}
		c.mu.Unlock()
		return resp, nil
	}
}

// summary describes a grouped run over the given number of fragments. An
// entity that spans fragments is one replacement, however many fragments
// show a piece of it.
func (c *callStats) summary(fragments int) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		Fragments:    fragments,
		Groups:       c.calls,
		Replacements: c.replacements,
		Usage:        c.usage,
		Labels:       maps.Clone(c.labels),
	}
}

// redactFunc returns the grouping collaborator for s along with a counter.
func (e *Env) redactFunc(s Settings) (grouping.RedactFunc, []reconcile.Option, *callStats, error) {
	opts, reconcileOpts, err := e.resolve(s)
	if err != nil {
		return nil, nil, nil, err
	}
	stats := &callStats{}
	redact := func(ctx context.Context, text string) (*redaction.Response, error) {
		return e.Redactor.Redact(ctx, text, opts)
	}
	return stats.wrap(redact), reconcileOpts, stats, nil
}

// Summary describes a finished run.
type Summary struct {
	RunID        string         `json:"run_id"`
	Fragments    int            `json:"fragments"`
	Groups       int            `json:"groups"`
	Replacements int            `json:"replacements"`
	Usage        int            `json:"usage"`
	Labels       map[string]int `json:"labels,omitempty"`
}

// summarize tallies replacements and labels over results that share no
// context, where every replacement belongs to exactly one result.
func summarize(results []redaction.Response, groups, usage int) Summary {
	s := Summary{Fragments: len(results), Groups: groups, Usage: usage}
	for i := range results {
		s.Replacements += len(results[i].DeIdentifyResults)
		for label, n := range results[i].Labels() {
			if s.Labels == nil {
				s.Labels = map[string]int{}
			}
			s.Labels[label] += n
		}
	}
	return s
}

// journal assigns a run id and records the run unless the journal is
// disabled. A failed write is logged and does not fail the operation.
func (e *Env) journal(ctx context.Context, kind string, source *string, s *Summary) {
	id, err := generateULID()
	if err != nil {
		e.logger().Warn("failed to generate run id", zap.Error(err))
		return
	}
	s.RunID = id

	log := e.logger().WithRunID(id)
	log.Info("run finished",
		zap.String("kind", kind),
		zap.Int("fragments", s.Fragments),
		zap.Int("groups", s.Groups),
		zap.Int("replacements", s.Replacements),
	)

	if e.DB == nil || e.config().DisableJournal {
		return
	}
	run := &db.Run{
		ID:           id,
		Kind:         kind,
		Source:       source,
		Fragments:    s.Fragments,
		Groups:       s.Groups,
		Replacements: s.Replacements,
		Usage:        s.Usage,
		Labels:       s.Labels,
		CreatedAt:    time.Now().Unix(),
	}
	if err := db.InsertRun(ctx, e.DB, run); err != nil {
		log.Warn("failed to journal run", zap.Error(err))
	}
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
