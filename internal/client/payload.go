package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/redaction"
)

// MaxRetentionHours bounds how long a recorded request is kept by the service.
const MaxRetentionHours = 720

// RecordOptions asks the service to keep the request for review.
type RecordOptions struct {
	RetentionTimeInHours int      `json:"retention_time_in_hours"`
	Tags                 []string `json:"tags,omitempty"`
}

// RedactOptions are the per-request redaction settings.
type RedactOptions struct {
	GeneratorDefault redaction.PiiState
	GeneratorConfig  map[string]redaction.PiiState

	// LabelBlockLists maps an entity type to regexes whose matches are not
	// treated as that type.
	LabelBlockLists map[string][]string

	// LabelAllowLists maps an entity type to regexes whose matches are
	// always treated as that type.
	LabelAllowLists map[string][]string

	CustomEntities []string
	Record         *RecordOptions
	RandomSeed     *int
}

type labelCustomList struct {
	Regexes []string `json:"regexes"`
}

type recordPayload struct {
	RetentionTimeInHours int      `json:"retentionTimeInHours"`
	Tags                 []string `json:"tags"`
	Record               bool     `json:"record"`
}

// Payload is the request body shared by the redaction endpoints. Exactly one
// of the text fields is set per request.
type Payload struct {
	Text               *string             `json:"text,omitempty"`
	BulkText           []string            `json:"bulkText,omitempty"`
	JSONText           *string             `json:"jsonText,omitempty"`
	JSONPathAllowLists map[string][]string `json:"jsonPathAllowLists,omitempty"`
	XMLText            *string             `json:"xmlText,omitempty"`
	HTMLText           *string             `json:"htmlText,omitempty"`

	GeneratorDefault         redaction.PiiState            `json:"generatorDefault"`
	GeneratorConfig          map[string]redaction.PiiState `json:"generatorConfig"`
	DatasetGeneratorMetadata map[string]any                `json:"datasetGeneratorMetadata"`
	CustomPiiEntityIDs       []string                      `json:"customPiiEntityIds,omitempty"`
	LabelBlockLists          map[string]labelCustomList    `json:"labelBlockLists,omitempty"`
	LabelAllowLists          map[string]labelCustomList    `json:"labelAllowLists,omitempty"`
	RecordAPIRequestOptions  *recordPayload                `json:"recordApiRequestOptions"`
}

// BuildPayload validates opts and returns a request body without text.
func BuildPayload(opts RedactOptions) (*Payload, error) {
	def := opts.GeneratorDefault
	if def == "" {
		def = redaction.Redaction
	}
	if _, err := redaction.ParsePiiState(string(def)); err != nil {
		return nil, errors.NewInvalidRequest("Invalid value for generator default. The allowed values are Off, Synthesis, and Redaction.")
	}

	custom := make(map[string]bool, len(opts.CustomEntities))
	for _, e := range opts.CustomEntities {
		custom[e] = true
	}

	var invalidKeys []string
	for label, state := range opts.GeneratorConfig {
		if !redaction.IsKnownPiiType(label) && !custom[label] {
			invalidKeys = append(invalidKeys, label)
		}
		if _, err := redaction.ParsePiiState(string(state)); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf(
				"Invalid value %q for generator config at %s. The allowed values are Off, Synthesis, and Redaction.", state, label))
		}
	}
	if len(invalidKeys) > 0 {
		sort.Strings(invalidKeys)
		return nil, errors.NewInvalidRequest(fmt.Sprintf(
			"Invalid key for generator config: %s. The allowed keys are the supported PII types and any supplied custom entities.",
			strings.Join(invalidKeys, ", ")))
	}

	p := &Payload{
		GeneratorDefault:         def,
		GeneratorConfig:          opts.GeneratorConfig,
		DatasetGeneratorMetadata: map[string]any{},
		CustomPiiEntityIDs:       opts.CustomEntities,
		LabelBlockLists:          toLabelLists(opts.LabelBlockLists),
		LabelAllowLists:          toLabelLists(opts.LabelAllowLists),
	}
	if p.GeneratorConfig == nil {
		p.GeneratorConfig = map[string]redaction.PiiState{}
	}

	if opts.Record != nil {
		hours := opts.Record.RetentionTimeInHours
		if hours <= 0 || hours > MaxRetentionHours {
			return nil, errors.NewInvalidRequest("The retention time must be set between 1 and 720 hours")
		}
		tags := opts.Record.Tags
		if tags == nil {
			tags = []string{}
		}
		p.RecordAPIRequestOptions = &recordPayload{RetentionTimeInHours: hours, Tags: tags, Record: true}
	}
	return p, nil
}

func toLabelLists(in map[string][]string) map[string]labelCustomList {
	if in == nil {
		return nil
	}
	out := make(map[string]labelCustomList, len(in))
	for label, regexes := range in {
		out[label] = labelCustomList{Regexes: regexes}
	}
	return out
}
