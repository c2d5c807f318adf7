// Package audio redacts transcripts and maps redacted spans to time intervals.
package audio

import (
	"context"

	"github.com/hpungsan/textual/internal/grouping"
	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// Word is a transcribed word with its timing in seconds.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Segment is a run of transcribed speech.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words"`
}

// Transcription is a full transcript.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// RedactSegments redacts all segments with one call and returns one result per
// segment, so names split across segments are caught.
func RedactSegments(ctx context.Context, t Transcription, redact grouping.RedactFunc, opts ...reconcile.Option) ([]redaction.Response, error) {
	return grouping.RedactConversation(ctx, t,
		func(t Transcription) []Segment { return t.Segments },
		func(s Segment) string { return s.Text },
		redact, opts...)
}
