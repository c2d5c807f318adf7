// Package reconcile maps a redaction result computed over joined fragments
// back onto the individual fragments.
package reconcile

import (
	"strings"
	"unicode/utf8"
)

// Separator joins fragments before they are redacted as one text.
const Separator = "\n"

// Offset is the half-open [Start, End) code point range of a fragment inside
// the joined text.
type Offset struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the fragment length.
func (o Offset) Len() int {
	return o.End - o.Start
}

// ComputeOffsets returns the range each fragment occupies once joined with
// Separator. Newlines inside a fragment never start a new range.
func ComputeOffsets(fragments []string) []Offset {
	lengths := make([]int, len(fragments))
	for i, f := range fragments {
		lengths[i] = utf8.RuneCountInString(f)
	}
	return OffsetsFromLengths(lengths)
}

// OffsetsFromLengths is ComputeOffsets for fragments whose lengths are known.
func OffsetsFromLengths(lengths []int) []Offset {
	offsets := make([]Offset, len(lengths))
	start := 0
	for i, n := range lengths {
		offsets[i] = Offset{Start: start, End: start + n}
		start += n + 1
	}
	return offsets
}

// Join concatenates fragments with Separator.
func Join(fragments []string) string {
	return strings.Join(fragments, Separator)
}

// overlaps reports whether [start, end) intersects o.
func (o Offset) overlaps(start, end int) bool {
	return start < o.End && end > o.Start
}

// Spans returns the indices of the fragments a span touches, in order.
func Spans(start, end int, offsets []Offset) []int {
	var idx []int
	for i, o := range offsets {
		if o.overlaps(start, end) {
			idx = append(idx, i)
		}
	}
	return idx
}
