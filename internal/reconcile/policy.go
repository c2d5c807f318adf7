package reconcile

import "fmt"

// NewSpanPolicy selects how NewStart/NewEnd are expressed in per-fragment
// results.
type NewSpanPolicy string

const (
	// PolicyRedacted positions each replacement inside the fragment's own
	// redacted text, so the slice it selects equals NewText.
	PolicyRedacted NewSpanPolicy = "redacted"

	// PolicyAnchored anchors NewStart at the clipped original start and sets
	// NewEnd to NewStart plus the length of NewText.
	PolicyAnchored NewSpanPolicy = "anchored"
)

// ParsePolicy validates a policy name. Empty selects PolicyRedacted.
func ParsePolicy(s string) (NewSpanPolicy, error) {
	switch NewSpanPolicy(s) {
	case "":
		return PolicyRedacted, nil
	case PolicyRedacted, PolicyAnchored:
		return NewSpanPolicy(s), nil
	}
	return "", fmt.Errorf("invalid new span policy %q: allowed values are %q and %q", s, PolicyRedacted, PolicyAnchored)
}

type options struct {
	policy NewSpanPolicy
}

// Option configures Reconcile.
type Option func(*options)

// WithNewSpanPolicy sets the policy for per-fragment new spans.
func WithNewSpanPolicy(p NewSpanPolicy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}
