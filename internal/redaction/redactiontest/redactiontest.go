// Package redactiontest provides a deterministic in-process redactor for tests.
package redactiontest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hpungsan/textual/internal/redaction"
)

// Span marks an entity in an original text.
type Span struct {
	Start   int
	End     int
	Label   string
	NewText string
}

// Build redacts original by substituting each span with its NewText and
// returns a result with consistent offsets. Spans must not overlap.
func Build(original string, spans ...Span) *redaction.Response {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	runes := []rune(original)
	resp := &redaction.Response{
		OriginalText:      original,
		Usage:             len(strings.Fields(original)),
		DeIdentifyResults: []redaction.Replacement{},
	}

	var b strings.Builder
	cursor, written := 0, 0
	for _, s := range sorted {
		b.WriteString(string(runes[cursor:s.Start]))
		written += s.Start - cursor
		n := len([]rune(s.NewText))
		resp.DeIdentifyResults = append(resp.DeIdentifyResults, redaction.Replacement{
			Start:    s.Start,
			End:      s.End,
			NewStart: written,
			NewEnd:   written + n,
			Label:    s.Label,
			Text:     string(runes[s.Start:s.End]),
			Score:    0.9,
			Language: "en",
			NewText:  s.NewText,
		})
		b.WriteString(s.NewText)
		written += n
		cursor = s.End
	}
	b.WriteString(string(runes[cursor:]))
	resp.RedactedText = b.String()
	return resp
}

// Redactor finds fixed entity strings and replaces them with "[LABEL]".
type Redactor struct {
	// Entities maps entity text to its label. Matching is literal.
	Entities map[string]string
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls []string
}

// Redact implements the redaction collaborator signature.
func (r *Redactor) Redact(ctx context.Context, text string) (*redaction.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return Build(text, r.find(text)...), nil
}

// Calls returns the texts passed to Redact, in order.
func (r *Redactor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Redactor) find(text string) []Span {
	runes := []rune(text)
	var found []Span
	for entity, label := range r.Entities {
		er := []rune(entity)
		if len(er) == 0 {
			continue
		}
		for i := 0; i+len(er) <= len(runes); i++ {
			if string(runes[i:i+len(er)]) == entity {
				found = append(found, Span{Start: i, End: i + len(er), Label: label, NewText: "[" + label + "]"})
			}
		}
	}

	// Earliest first, longest wins a tie, overlaps dropped.
	sort.Slice(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End > found[j].End
	})
	var out []Span
	end := -1
	for _, s := range found {
		if s.Start < end {
			continue
		}
		out = append(out, s)
		end = s.End
	}
	return out
}
