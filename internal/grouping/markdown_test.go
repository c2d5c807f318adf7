package grouping

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMarkdown = "# Notes for Adam\n\nAdam met the client in\nAtlanta last week.\n\n- call Jane\n- book flight\n\n```\nAdam = 1\n```\n\n> quoted Jane\n"

func TestMarkdownFragments(t *testing.T) {
	frags := MarkdownFragments([]byte(sampleMarkdown))

	var texts []string
	for _, f := range frags {
		texts = append(texts, f.Text)
		require.Equal(t, f.Text, sampleMarkdown[f.Start:f.Stop])
	}
	require.Equal(t, []string{
		"Notes for Adam",
		"Adam met the client in",
		"Atlanta last week.",
		"call Jane",
		"book flight",
		"quoted Jane",
	}, texts)
}

func TestRedactMarkdown(t *testing.T) {
	r := newRedactor()

	got, err := RedactMarkdown(context.Background(), []byte(sampleMarkdown), r.Redact)
	require.NoError(t, err)
	require.Len(t, r.Calls(), 1)

	want := "# Notes for [NAME_GIVEN]\n\n[NAME_GIVEN] met the client in\n[LOCATION_CITY] last week.\n\n- call [NAME_GIVEN]\n- book flight\n\n```\nAdam = 1\n```\n\n> quoted [NAME_GIVEN]\n"
	require.Equal(t, want, got.Markdown)
	require.Len(t, got.Results, len(got.Fragments))
}

func TestRedactMarkdown_NameAcrossSoftBreak(t *testing.T) {
	r := newRedactor()
	source := "My name is Ad\nam and I live here.\n"

	got, err := RedactMarkdown(context.Background(), []byte(source), r.Redact)
	require.NoError(t, err)
	require.Equal(t, "My name is [NAME_GIVEN]\n[NAME_GIVEN] and I live here.\n", got.Markdown)
}

func TestRedactMarkdown_NoProse(t *testing.T) {
	r := newRedactor()
	source := "```\nAdam\n```\n"

	got, err := RedactMarkdown(context.Background(), []byte(source), r.Redact)
	require.NoError(t, err)
	require.Equal(t, source, got.Markdown)
	require.Empty(t, r.Calls())
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\nbody [NAME_GIVEN]")
	require.NoError(t, err)
	require.True(t, strings.Contains(html, "<h1>Title</h1>"), html)
	require.True(t, strings.Contains(html, "<p>body [NAME_GIVEN]</p>"), html)
}
