package audio

import (
	"sort"
	"strings"

	"github.com/hpungsan/textual/internal/redaction"
)

// Interval is a span of audio in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Widen extends the interval by before and after seconds, never below zero.
func (i Interval) Widen(before, after float64) Interval {
	return Interval{Start: max(0, i.Start-before), End: i.End + after}
}

// LocatedWord is a word with its code point range in the transcript text.
type LocatedWord struct {
	Word
	CharStart int `json:"char_start"`
	CharEnd   int `json:"char_end"`
}

// LocateWords finds each word in text, in order, searching from the end of the
// previous match. Surrounding whitespace is ignored. Words that cannot be found
// are skipped.
func LocateWords(text string, words []Word) []LocatedWord {
	runes := []rune(text)
	var located []LocatedWord
	offset := 0
	for _, w := range words {
		needle := strings.TrimSpace(w.Word)
		if needle == "" {
			continue
		}
		idx := strings.Index(string(runes[offset:]), needle)
		if idx < 0 {
			continue
		}
		start := offset + redaction.RuneLen(string(runes[offset:])[:idx])
		end := start + redaction.RuneLen(needle)
		located = append(located, LocatedWord{Word: w, CharStart: start, CharEnd: end})
		offset = end
	}
	return located
}

// Intervals maps each replacement to the time span of the words it touches.
// Replacements touching no located word produce no interval.
func Intervals(text string, segments []Segment, reps []redaction.Replacement) []Interval {
	var words []Word
	for _, s := range segments {
		words = append(words, s.Words...)
	}
	located := LocateWords(text, words)

	var out []Interval
	for _, rep := range reps {
		var iv Interval
		found := false
		for _, w := range located {
			if w.CharStart > rep.End {
				break
			}
			if rep.Start < w.CharEnd && w.CharStart < rep.End {
				if !found {
					iv = Interval{Start: w.Start, End: w.End}
					found = true
					continue
				}
				iv.Start = min(iv.Start, w.Start)
				iv.End = max(iv.End, w.End)
			}
		}
		if found {
			out = append(out, iv)
		}
	}
	return out
}

// SegmentIntervals computes intervals from per-segment results, as returned by
// RedactSegments, and merges the overlaps.
func SegmentIntervals(segments []Segment, results []redaction.Response) []Interval {
	var all []Interval
	for i, seg := range segments {
		if i >= len(results) {
			break
		}
		all = append(all, Intervals(seg.Text, []Segment{seg}, results[i].DeIdentifyResults)...)
	}
	return MergeIntervals(all)
}

// MergeIntervals sorts intervals and joins those that overlap or touch.
func MergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return []Interval{}
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			last.End = max(last.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}
