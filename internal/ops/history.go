package ops

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/errors"
)

// Kinds lists the run kinds History accepts as a filter.
var Kinds = []string{db.KindText, db.KindCSV, db.KindConversation, db.KindMarkdown, db.KindTranscript, db.KindUnredact}

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	ID     string // optional; returns just that run
	Kind   string // optional filter
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Run   `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// History lists journaled runs, newest first.
func History(ctx context.Context, env *Env, input HistoryInput) (*HistoryOutput, error) {
	if env.DB == nil {
		return nil, errors.NewInvalidRequest("run journal is disabled")
	}

	if id := strings.TrimSpace(input.ID); id != "" {
		run, err := db.GetRun(ctx, env.DB, id)
		if err != nil {
			return nil, err
		}
		return &HistoryOutput{
			Items:      []db.Run{*run},
			Pagination: Pagination{Limit: 1, Total: 1},
			Sort:       "created_at_desc",
		}, nil
	}

	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if kind != "" && !slices.Contains(Kinds, kind) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("kind must be one of: %s", strings.Join(Kinds, ", ")))
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	runs, err := db.ListRuns(ctx, env.DB, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountRuns(ctx, env.DB, kind)
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// PurgeHistoryInput contains parameters for the PurgeHistory operation.
type PurgeHistoryInput struct {
	OlderThanDays *int // optional; nil purges every run
}

// PurgeHistoryOutput contains the result of the PurgeHistory operation.
type PurgeHistoryOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeHistory permanently deletes journaled runs.
func PurgeHistory(ctx context.Context, env *Env, input PurgeHistoryInput) (*PurgeHistoryOutput, error) {
	if env.DB == nil {
		return nil, errors.NewInvalidRequest("run journal is disabled")
	}

	now := time.Now()
	before := now.Unix() + 1
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must not be negative")
		}
		before = now.AddDate(0, 0, -*input.OlderThanDays).Unix()
	}

	count, err := db.PurgeRuns(ctx, env.DB, before)
	if err != nil {
		return nil, err
	}
	return &PurgeHistoryOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, olderThanDays *int) string {
	if count == 0 {
		return "No runs to purge"
	}

	runWord := "run"
	if count > 1 {
		runWord = "runs"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, runWord)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (recorded more than %d days ago)", *olderThanDays)
	}
	return msg
}
