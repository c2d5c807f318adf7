package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/grouping"
	"github.com/hpungsan/textual/internal/redaction"
)

// Text formats accepted by RedactText.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatHTML = "html"
)

// RedactTextInput contains parameters for the RedactText operation.
type RedactTextInput struct {
	Text string // one text

	// Fragments are redacted together so entities crossing fragment
	// boundaries are found, unless Independent is set.
	Fragments   []string
	Independent bool // one bulk request, no context shared between fragments

	Format string // text (default), json, xml or html; applies to Text only

	// JSONPathAllowLists maps entity types to JSONPath expressions whose values
	// are always that type. Format json only.
	JSONPathAllowLists map[string][]string

	Settings Settings
}

// RedactTextOutput contains the result of the RedactText operation.
type RedactTextOutput struct {
	Summary
	RedactedText string               `json:"redacted_text,omitempty"`
	Results      []redaction.Response `json:"results"`
}

// RedactText redacts a single text, a document in a structured format, or a
// list of fragments.
func RedactText(ctx context.Context, env *Env, input RedactTextInput) (*RedactTextOutput, error) {
	hasText := input.Text != ""
	hasFragments := input.Fragments != nil
	if hasText == hasFragments {
		return nil, errors.NewInvalidRequest("specify exactly one of text or fragments")
	}

	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatText
	}
	if hasFragments && format != FormatText {
		return nil, errors.NewInvalidRequest("format applies to text only")
	}
	if format != FormatJSON && input.JSONPathAllowLists != nil {
		return nil, errors.NewInvalidRequest("json_path_allow_lists requires format json")
	}

	if hasFragments {
		if input.Independent {
			return redactBulk(ctx, env, input)
		}
		return redactFragments(ctx, env, input)
	}

	opts, _, err := env.resolve(input.Settings)
	if err != nil {
		return nil, err
	}

	var resp *redaction.Response
	switch format {
	case FormatText:
		resp, err = env.Redactor.Redact(ctx, input.Text, opts)
	case FormatJSON:
		resp, err = env.Redactor.RedactJSON(ctx, input.Text, input.JSONPathAllowLists, opts)
	case FormatXML:
		resp, err = env.Redactor.RedactXML(ctx, input.Text, opts)
	case FormatHTML:
		resp, err = env.Redactor.RedactHTML(ctx, input.Text, opts)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format must be one of: %s, %s, %s, %s", FormatText, FormatJSON, FormatXML, FormatHTML))
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.NewInternal(fmt.Errorf("redactor returned no response"))
	}
	// Structured formats report offsets into the document's own model.
	if format == FormatText {
		if err := resp.Validate(); err != nil {
			return nil, err
		}
	}

	results := []redaction.Response{*resp}
	out := &RedactTextOutput{
		Summary:      summarize(results, 1, resp.Usage),
		RedactedText: resp.RedactedText,
		Results:      results,
	}
	env.journal(ctx, db.KindText, nil, &out.Summary)
	return out, nil
}

func redactFragments(ctx context.Context, env *Env, input RedactTextInput) (*RedactTextOutput, error) {
	redact, reconcileOpts, stats, err := env.redactFunc(input.Settings)
	if err != nil {
		return nil, err
	}
	results, err := grouping.RedactGroup(ctx, input.Fragments, redact, reconcileOpts...)
	if err != nil {
		return nil, err
	}

	out := &RedactTextOutput{
		Summary: stats.summary(len(results)),
		Results: results,
	}
	env.journal(ctx, db.KindText, nil, &out.Summary)
	return out, nil
}

func redactBulk(ctx context.Context, env *Env, input RedactTextInput) (*RedactTextOutput, error) {
	opts, _, err := env.resolve(input.Settings)
	if err != nil {
		return nil, err
	}

	results := []redaction.Response{}
	usage, groups := 0, 0
	if len(input.Fragments) > 0 {
		bulk, err := env.Redactor.RedactBulk(ctx, input.Fragments, opts)
		if err != nil {
			return nil, err
		}
		if len(bulk.BulkText) != len(input.Fragments) {
			return nil, errors.NewRemote(200, fmt.Sprintf("bulk redaction returned %d results for %d texts", len(bulk.BulkText), len(input.Fragments)))
		}
		results = bulk.Responses()
		usage, groups = bulk.Usage, 1
	}

	out := &RedactTextOutput{
		Summary: summarize(results, groups, usage),
		Results: results,
	}
	env.journal(ctx, db.KindText, nil, &out.Summary)
	return out, nil
}

// UnredactInput contains parameters for the Unredact operation.
type UnredactInput struct {
	Text       string
	RandomSeed *int
}

// UnredactOutput contains the result of the Unredact operation.
type UnredactOutput struct {
	RunID string `json:"run_id"`
	Text  string `json:"text"`
}

// Unredact restores original values in a text the service redacted.
func Unredact(ctx context.Context, env *Env, input UnredactInput) (*UnredactOutput, error) {
	if input.Text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}
	if env.Redactor == nil {
		return nil, errNoRedactor()
	}

	seed := input.RandomSeed
	if seed == nil {
		seed = env.Redactor.Defaults().RandomSeed
	}
	text, err := env.Redactor.Unredact(ctx, input.Text, seed)
	if err != nil {
		return nil, err
	}

	summary := Summary{Fragments: 1, Groups: 1}
	env.journal(ctx, db.KindUnredact, nil, &summary)
	return &UnredactOutput{RunID: summary.RunID, Text: text}, nil
}
