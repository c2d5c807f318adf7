package grouping

import (
	"bytes"
	"context"
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// MarkdownFragment is one line of prose in a markdown document.
type MarkdownFragment struct {
	Text  string
	Start int // byte offset in the source
	Stop  int
}

// MarkdownResult is a redacted markdown document.
type MarkdownResult struct {
	Markdown  string
	Fragments []MarkdownFragment
	Results   []redaction.Response
}

// MarkdownFragments returns the text lines of every prose block in source, in
// document order. Code blocks and raw HTML are not fragments.
func MarkdownFragments(source []byte) []MarkdownFragment {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var frags []MarkdownFragment
	// The walker never returns an error, so neither does Walk.
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		}

		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			value := bytes.TrimRight(source[seg.Start:seg.Stop], "\r\n")
			if len(value) == 0 {
				continue
			}
			frags = append(frags, MarkdownFragment{
				Text:  string(value),
				Start: seg.Start,
				Stop:  seg.Start + len(value),
			})
		}
		return ast.WalkContinue, nil
	})

	sort.SliceStable(frags, func(i, j int) bool { return frags[i].Start < frags[j].Start })
	return frags
}

// RedactMarkdown redacts all prose lines of a document with one call and
// splices the redacted lines back into the source. Everything outside those
// lines is kept byte for byte.
func RedactMarkdown(ctx context.Context, source []byte, redact RedactFunc, opts ...reconcile.Option) (*MarkdownResult, error) {
	frags := MarkdownFragments(source)
	texts := make([]string, len(frags))
	for i, f := range frags {
		texts[i] = f.Text
	}

	results, err := RedactGroup(ctx, texts, redact, opts...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	cursor := 0
	for i, f := range frags {
		if f.Start < cursor {
			return nil, errors.NewInternal(nil)
		}
		buf.Write(source[cursor:f.Start])
		buf.WriteString(results[i].RedactedText)
		cursor = f.Stop
	}
	buf.Write(source[cursor:])

	return &MarkdownResult{
		Markdown:  buf.String(),
		Fragments: frags,
		Results:   results,
	}, nil
}

// RenderHTML converts markdown to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", errors.NewInternal(err)
	}
	return buf.String(), nil
}
