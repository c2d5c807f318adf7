package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/textual/internal/audio"
	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/errors"
)

// RedactTranscriptInput contains parameters for the RedactTranscript operation.
type RedactTranscriptInput struct {
	Path    string // transcription JSON file; or
	Content string // inline transcription JSON

	// BeforeSeconds and AfterSeconds widen each audio interval.
	BeforeSeconds float64
	AfterSeconds  float64

	Settings Settings
}

// RedactTranscriptOutput contains the result of the RedactTranscript operation.
type RedactTranscriptOutput struct {
	Summary
	Text      string           `json:"text"`
	Segments  []audio.Segment  `json:"segments"`
	Intervals []audio.Interval `json:"intervals"`
}

// RedactTranscript redacts the segments of a word-timed transcription in one
// call and returns the redacted segments with the audio intervals to bleep.
func RedactTranscript(ctx context.Context, env *Env, input RedactTranscriptInput) (*RedactTranscriptOutput, error) {
	if input.BeforeSeconds < 0 || input.AfterSeconds < 0 {
		return nil, errors.NewInvalidRequest("before_seconds and after_seconds must not be negative")
	}
	redact, reconcileOpts, stats, err := env.redactFunc(input.Settings)
	if err != nil {
		return nil, err
	}
	data, source, err := readInput(input.Path, input.Content, TranscriptExtensions, env.config())
	if err != nil {
		return nil, err
	}

	var tr audio.Transcription
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid transcription: %v", err))
	}

	results, err := audio.RedactSegments(ctx, tr, redact, reconcileOpts...)
	if err != nil {
		return nil, err
	}

	intervals := audio.SegmentIntervals(tr.Segments, results)
	if input.BeforeSeconds > 0 || input.AfterSeconds > 0 {
		for i := range intervals {
			intervals[i] = intervals[i].Widen(input.BeforeSeconds, input.AfterSeconds)
		}
		intervals = audio.MergeIntervals(intervals)
	}

	segments := make([]audio.Segment, len(tr.Segments))
	texts := make([]string, len(tr.Segments))
	for i, seg := range tr.Segments {
		segments[i] = audio.Segment{ID: seg.ID, Start: seg.Start, End: seg.End, Text: results[i].RedactedText}
		texts[i] = results[i].RedactedText
	}

	out := &RedactTranscriptOutput{
		Summary:   stats.summary(len(results)),
		Text:      joinSegments(texts),
		Segments:  segments,
		Intervals: intervals,
	}
	env.journal(ctx, db.KindTranscript, source, &out.Summary)
	return out, nil
}

// joinSegments joins trimmed segment texts with single spaces, skipping
// empty ones.
func joinSegments(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
