package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/grouping"
	"github.com/hpungsan/textual/internal/redaction"
)

// Default paths into a chat-style conversation document.
const (
	DefaultItemsPath = "messages"
	DefaultTextPath  = "content"
)

// RedactConversationInput contains parameters for the RedactConversation operation.
type RedactConversationInput struct {
	Path    string // JSON file; or
	Content string // inline JSON

	ItemsPath string // gjson path to the item array, default "messages"
	TextPath  string // gjson path to the text inside an item, default "content"; "." for string items

	Settings Settings
}

// ConversationItem is the redaction of one conversation item.
type ConversationItem struct {
	Index        int                     `json:"index"`
	RedactedText string                  `json:"redacted_text"`
	Replacements []redaction.Replacement `json:"replacements"`
}

// RedactConversationOutput contains the result of the RedactConversation operation.
type RedactConversationOutput struct {
	Summary
	Items []ConversationItem `json:"items"`
}

// RedactConversation redacts every item of a JSON conversation in one call.
func RedactConversation(ctx context.Context, env *Env, input RedactConversationInput) (*RedactConversationOutput, error) {
	itemsPath := strings.TrimSpace(input.ItemsPath)
	if itemsPath == "" {
		itemsPath = DefaultItemsPath
	}
	textPath := strings.TrimSpace(input.TextPath)
	switch textPath {
	case "":
		textPath = DefaultTextPath
	case ".":
		textPath = ""
	}

	redact, reconcileOpts, stats, err := env.redactFunc(input.Settings)
	if err != nil {
		return nil, err
	}
	data, source, err := readInput(input.Path, input.Content, ConversationExtensions, env.config())
	if err != nil {
		return nil, err
	}

	results, err := grouping.RedactConversationJSON(ctx, data, itemsPath, textPath, redact, reconcileOpts...)
	if err != nil {
		return nil, err
	}

	out := &RedactConversationOutput{
		Summary: stats.summary(len(results)),
		Items:   make([]ConversationItem, len(results)),
	}
	for i, r := range results {
		out.Items[i] = ConversationItem{
			Index:        i,
			RedactedText: r.RedactedText,
			Replacements: r.DeIdentifyResults,
		}
	}

	env.journal(ctx, db.KindConversation, source, &out.Summary)
	return out, nil
}
