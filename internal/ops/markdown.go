package ops

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/grouping"
)

// RedactMarkdownInput contains parameters for the RedactMarkdown operation.
type RedactMarkdownInput struct {
	Path    string // .md file; or
	Content string // inline markdown

	// OutputPath is optional. An .html path receives the rendered HTML,
	// anything else the redacted markdown.
	OutputPath string

	HTML bool // also render the redacted markdown to HTML

	Settings Settings
}

// RedactMarkdownOutput contains the result of the RedactMarkdown operation.
type RedactMarkdownOutput struct {
	Summary
	Markdown   string `json:"markdown,omitempty"`
	HTML       string `json:"html,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

// RedactMarkdown redacts the prose of a markdown document in one call. Code
// blocks and raw HTML are left untouched.
func RedactMarkdown(ctx context.Context, env *Env, input RedactMarkdownInput) (*RedactMarkdownOutput, error) {
	redact, reconcileOpts, stats, err := env.redactFunc(input.Settings)
	if err != nil {
		return nil, err
	}

	cfg := env.config()
	writeHTML := strings.EqualFold(filepath.Ext(input.OutputPath), ".html")
	if input.OutputPath != "" {
		if err := ValidatePath(input.OutputPath, PathCheckWrite, MarkdownOutExtensions, cfg); err != nil {
			return nil, err
		}
	}
	data, source, err := readInput(input.Path, input.Content, MarkdownExtensions, cfg)
	if err != nil {
		return nil, err
	}

	result, err := grouping.RedactMarkdown(ctx, data, redact, reconcileOpts...)
	if err != nil {
		return nil, err
	}

	out := &RedactMarkdownOutput{
		Summary: stats.summary(len(result.Results)),
	}
	var html string
	if input.HTML || writeHTML {
		html, err = grouping.RenderHTML(result.Markdown)
		if err != nil {
			return nil, err
		}
	}

	if input.OutputPath != "" {
		body := result.Markdown
		if writeHTML {
			body = html
		}
		if err := writeOutput(input.OutputPath, []byte(body), MarkdownOutExtensions, cfg); err != nil {
			return nil, err
		}
		out.OutputPath = absPath(input.OutputPath)
	} else {
		out.Markdown = result.Markdown
	}
	if input.HTML {
		out.HTML = html
	}

	env.journal(ctx, db.KindMarkdown, source, &out.Summary)
	return out, nil
}
