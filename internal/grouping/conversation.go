package grouping

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// RedactConversation redacts every item of a conversation in one call and
// returns one result per item, in item order. A conversation with no items
// yields an empty result without calling redact.
func RedactConversation[C, I any](
	ctx context.Context,
	conversation C,
	items func(C) []I,
	text func(I) string,
	redact RedactFunc,
	opts ...reconcile.Option,
) ([]redaction.Response, error) {
	list := items(conversation)
	texts := make([]string, len(list))
	for i, item := range list {
		texts[i] = text(item)
	}
	return RedactGroup(ctx, texts, redact, opts...)
}

// RedactConversationJSON redacts a conversation held in raw JSON. itemsPath
// selects the item array and textPath the text inside each item, both in gjson
// path syntax. An empty textPath treats each item as the text itself.
func RedactConversationJSON(
	ctx context.Context,
	raw []byte,
	itemsPath, textPath string,
	redact RedactFunc,
	opts ...reconcile.Option,
) ([]redaction.Response, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.NewInvalidRequest("conversation is not valid JSON")
	}
	if itemsPath == "" {
		return nil, errors.NewInvalidRequest("items path is required")
	}

	root := gjson.ParseBytes(raw)
	list := root.Get(itemsPath)
	if !list.Exists() {
		return nil, errors.NewInvalidRequest("items path " + itemsPath + " not found in conversation")
	}
	if !list.IsArray() {
		return nil, errors.NewInvalidRequest("items path " + itemsPath + " is not an array")
	}

	return RedactConversation(ctx, list,
		func(r gjson.Result) []gjson.Result { return r.Array() },
		func(item gjson.Result) string {
			if textPath == "" {
				return item.String()
			}
			return item.Get(textPath).String()
		},
		redact, opts...)
}
