// Package redaction holds the data model shared by the client, the span
// reconciler and the grouping adapters.
//
// All offsets are code point positions, matching the redaction service.
package redaction

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/textual/internal/errors"
)

// Replacement is one detected entity in a redaction result.
type Replacement struct {
	Start            int     `json:"start"`
	End              int     `json:"end"`
	NewStart         int     `json:"newStart"`
	NewEnd           int     `json:"newEnd"`
	Label            string  `json:"label"`
	Text             string  `json:"text"`
	Score            float64 `json:"score"`
	Language         string  `json:"language,omitempty"`
	NewText          string  `json:"newText"`
	ExampleRedaction string  `json:"exampleRedaction,omitempty"`
	JSONPath         string  `json:"jsonPath,omitempty"`
	XMLPath          string  `json:"xmlPath,omitempty"`
}

// Describe returns a one-line summary of the replacement.
func (r Replacement) Describe() string {
	return fmt.Sprintf("%q is a %s (%d:%d) replaced by %q (%d:%d), score %.2f",
		r.Text, r.Label, r.Start, r.End, r.NewText, r.NewStart, r.NewEnd, r.Score)
}

// Response is the result of redacting one text. Per-fragment results share the
// shape; their Usage is -1.
type Response struct {
	OriginalText      string        `json:"originalText"`
	RedactedText      string        `json:"redactedText"`
	Usage             int           `json:"usage"`
	DeIdentifyResults []Replacement `json:"deIdentifyResults"`
}

// Describe renders the redacted text followed by one line per replacement.
func (r *Response) Describe() string {
	var b strings.Builder
	b.WriteString(r.RedactedText)
	b.WriteString("\n")
	for _, rep := range r.DeIdentifyResults {
		b.WriteString(rep.Describe())
		b.WriteString("\n")
	}
	return b.String()
}

// Labels counts replacements per label.
func (r *Response) Labels() map[string]int {
	counts := make(map[string]int)
	for _, rep := range r.DeIdentifyResults {
		counts[rep.Label]++
	}
	return counts
}

// Validate checks that every replacement's offsets lie within the texts, that
// its Text and NewText are the slices those offsets select, and that no two
// replacements overlap in the original text.
func (r *Response) Validate() error {
	original := []rune(r.OriginalText)
	redacted := []rune(r.RedactedText)

	for i, rep := range r.DeIdentifyResults {
		if rep.Start < 0 || rep.Start > rep.End || rep.End > len(original) {
			return errors.NewInvariantViolation(fmt.Sprintf(
				"replacement %d: span [%d,%d) outside original text of %d chars", i, rep.Start, rep.End, len(original)))
		}
		if got := string(original[rep.Start:rep.End]); got != rep.Text {
			return errors.NewInvariantViolation(fmt.Sprintf(
				"replacement %d: text %q does not match original[%d:%d] %q", i, rep.Text, rep.Start, rep.End, got))
		}
		if rep.NewStart < 0 || rep.NewStart > rep.NewEnd || rep.NewEnd > len(redacted) {
			return errors.NewInvariantViolation(fmt.Sprintf(
				"replacement %d: new span [%d,%d) outside redacted text of %d chars", i, rep.NewStart, rep.NewEnd, len(redacted)))
		}
		if got := string(redacted[rep.NewStart:rep.NewEnd]); got != rep.NewText {
			return errors.NewInvariantViolation(fmt.Sprintf(
				"replacement %d: new text %q does not match redacted[%d:%d] %q", i, rep.NewText, rep.NewStart, rep.NewEnd, got))
		}
	}

	sorted := SortedByStart(r.DeIdentifyResults)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return errors.NewInvariantViolation(fmt.Sprintf(
				"replacements %q [%d,%d) and %q [%d,%d) overlap",
				sorted[i-1].Text, sorted[i-1].Start, sorted[i-1].End,
				sorted[i].Text, sorted[i].Start, sorted[i].End))
		}
	}
	return nil
}

// BulkResponse is the result of redacting several texts in one request.
type BulkResponse struct {
	BulkText          []string        `json:"bulkText"`
	BulkRedactedText  []string        `json:"bulkRedactedText"`
	Usage             int             `json:"usage"`
	DeIdentifyResults [][]Replacement `json:"deIdentifyResults"`
}

// Describe renders every redacted text followed by one line per replacement.
func (b *BulkResponse) Describe() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(b.BulkRedactedText, "\n"))
	sb.WriteString("\n")
	for _, reps := range b.DeIdentifyResults {
		for _, rep := range reps {
			sb.WriteString(rep.Describe())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Responses splits a bulk result into one Response per input text.
func (b *BulkResponse) Responses() []Response {
	out := make([]Response, len(b.BulkText))
	for i := range b.BulkText {
		out[i] = Response{OriginalText: b.BulkText[i], Usage: -1, DeIdentifyResults: []Replacement{}}
		if i < len(b.BulkRedactedText) {
			out[i].RedactedText = b.BulkRedactedText[i]
		}
		if i < len(b.DeIdentifyResults) && b.DeIdentifyResults[i] != nil {
			out[i].DeIdentifyResults = b.DeIdentifyResults[i]
		}
	}
	return out
}

// SortedByStart returns a copy of reps ordered by Start. Ties keep input order.
func SortedByStart(reps []Replacement) []Replacement {
	out := make([]Replacement, len(reps))
	copy(out, reps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// RuneLen returns the length of s in code points.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
