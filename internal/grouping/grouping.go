// Package grouping batches fragments from structured sources into one
// redaction call per group and maps the result back onto the fragments.
package grouping

import (
	"context"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/reconcile"
	"github.com/hpungsan/textual/internal/redaction"
)

// RedactFunc redacts one text. It is called once per group with the group's
// fragments joined by reconcile.Separator.
type RedactFunc func(ctx context.Context, text string) (*redaction.Response, error)

// RedactGroup redacts texts with a single call and returns one result per
// text, in order. No call is made for an empty group.
func RedactGroup(ctx context.Context, texts []string, redact RedactFunc, opts ...reconcile.Option) ([]redaction.Response, error) {
	if len(texts) == 0 {
		return []redaction.Response{}, nil
	}
	if redact == nil {
		return nil, errors.NewInvalidRequest("redact function is required")
	}

	resp, err := redact(ctx, reconcile.Join(texts))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.NewInternal(nil)
	}
	return reconcile.Reconcile(texts, resp, opts...)
}
