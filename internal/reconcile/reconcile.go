package reconcile

import (
	"strings"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/redaction"
)

// FragmentUsage marks per-fragment results; usage is only known for the
// joined request.
const FragmentUsage = -1

// piece is a replacement clipped to one fragment.
type piece struct {
	rep      redaction.Replacement
	relStart int
	relEnd   int
}

// Reconcile splits a redaction result computed over Join(fragments) into one
// result per fragment, in fragment order.
//
// A replacement that spans several fragments is emitted once per fragment with
// its Start/End clipped to that fragment and its full Text and NewText.
// Replacements touching no fragment are dropped.
//
// It fails with TEXT_MISMATCH when resp does not describe the joined fragments
// and with INVARIANT_VIOLATION when resp's offsets do not describe its texts.
func Reconcile(fragments []string, resp *redaction.Response, opts ...Option) ([]redaction.Response, error) {
	o := options{policy: PolicyRedacted}
	for _, opt := range opts {
		opt(&o)
	}

	if len(fragments) == 0 {
		return []redaction.Response{}, nil
	}
	if resp == nil {
		return nil, errors.NewInvalidRequest("redaction result is required")
	}

	joined := Join(fragments)
	if joined != resp.OriginalText {
		return nil, errors.NewTextMismatch(redaction.RuneLen(joined), redaction.RuneLen(resp.OriginalText))
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	offsets := ComputeOffsets(fragments)
	pieces := make([][]piece, len(fragments))
	contained := true
	for _, rep := range redaction.SortedByStart(resp.DeIdentifyResults) {
		idx := Spans(rep.Start, rep.End, offsets)
		if len(idx) != 1 {
			contained = false
		}
		for _, i := range idx {
			off := offsets[i]
			pieces[i] = append(pieces[i], piece{
				rep:      rep,
				relStart: max(rep.Start, off.Start) - off.Start,
				relEnd:   min(rep.End, off.End) - off.Start,
			})
		}
	}

	lines, lineOffsets, split := splitRedacted(resp, fragments, pieces, contained)

	results := make([]redaction.Response, len(fragments))
	for i, fragment := range fragments {
		var redacted string
		var spans []Offset
		if split {
			redacted = lines[i]
			spans = make([]Offset, len(pieces[i]))
			for k, p := range pieces[i] {
				spans[k] = Offset{
					Start: p.rep.NewStart - lineOffsets[i].Start,
					End:   p.rep.NewEnd - lineOffsets[i].Start,
				}
			}
		} else {
			redacted, spans = rebuild(fragment, pieces[i])
		}

		reps := make([]redaction.Replacement, len(pieces[i]))
		for k, p := range pieces[i] {
			rep := p.rep
			rep.Start = p.relStart
			rep.End = p.relEnd
			if o.policy == PolicyAnchored {
				rep.NewStart = p.relStart
				rep.NewEnd = p.relStart + redaction.RuneLen(rep.NewText)
			} else {
				rep.NewStart = spans[k].Start
				rep.NewEnd = spans[k].End
			}
			reps[k] = rep
		}

		results[i] = redaction.Response{
			OriginalText:      fragment,
			RedactedText:      redacted,
			Usage:             FragmentUsage,
			DeIdentifyResults: reps,
		}
	}
	return results, nil
}

// splitRedacted reports whether the redacted text can be cut on Separator into
// one line per fragment. That holds when no replacement crosses a boundary,
// the original has exactly one separator between fragments, and every
// replacement's new span falls inside its own fragment's line.
func splitRedacted(resp *redaction.Response, fragments []string, pieces [][]piece, contained bool) ([]string, []Offset, bool) {
	if !contained {
		return nil, nil, false
	}
	if strings.Count(resp.OriginalText, Separator) != len(fragments)-1 {
		return nil, nil, false
	}
	lines := strings.Split(resp.RedactedText, Separator)
	if len(lines) != len(fragments) {
		return nil, nil, false
	}

	lineOffsets := ComputeOffsets(lines)
	for i, ps := range pieces {
		for _, p := range ps {
			if p.rep.NewStart < lineOffsets[i].Start || p.rep.NewEnd > lineOffsets[i].End {
				return nil, nil, false
			}
		}
	}
	return lines, lineOffsets, true
}

// rebuild substitutes each piece's clipped original text with its full NewText,
// in ascending start order, and returns the positions NewText landed at.
func rebuild(fragment string, ps []piece) (string, []Offset) {
	runes := []rune(fragment)
	spans := make([]Offset, len(ps))

	var b strings.Builder
	cursor, written := 0, 0
	for k, p := range ps {
		b.WriteString(string(runes[cursor:p.relStart]))
		written += p.relStart - cursor

		n := redaction.RuneLen(p.rep.NewText)
		spans[k] = Offset{Start: written, End: written + n}
		b.WriteString(p.rep.NewText)
		written += n
		cursor = p.relEnd
	}
	b.WriteString(string(runes[cursor:]))
	return b.String(), spans
}
