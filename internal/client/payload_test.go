package client

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/redaction"
)

func TestBuildPayload_Defaults(t *testing.T) {
	p, err := BuildPayload(RedactOptions{})
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "Redaction", body["generatorDefault"])
	require.Equal(t, map[string]any{}, body["generatorConfig"])
	require.Equal(t, map[string]any{}, body["datasetGeneratorMetadata"])
	require.Contains(t, body, "recordApiRequestOptions")
	require.Nil(t, body["recordApiRequestOptions"])
	require.NotContains(t, body, "customPiiEntityIds")
	require.NotContains(t, body, "labelBlockLists")
}

func TestBuildPayload_CustomEntities(t *testing.T) {
	p, err := BuildPayload(RedactOptions{
		GeneratorConfig: map[string]redaction.PiiState{"TICKET_ID": redaction.Synthesis},
		CustomEntities:  []string{"TICKET_ID"},
		LabelBlockLists: map[string][]string{"NAME_FAMILY": {" ([a-z]{2}) "}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"TICKET_ID"}, p.CustomPiiEntityIDs)
	require.Equal(t, []string{" ([a-z]{2}) "}, p.LabelBlockLists["NAME_FAMILY"].Regexes)
}

func TestBuildPayload_Record(t *testing.T) {
	p, err := BuildPayload(RedactOptions{Record: &RecordOptions{RetentionTimeInHours: 24}})
	require.NoError(t, err)
	require.NotNil(t, p.RecordAPIRequestOptions)
	require.True(t, p.RecordAPIRequestOptions.Record)
	require.Equal(t, 24, p.RecordAPIRequestOptions.RetentionTimeInHours)
	require.Equal(t, []string{}, p.RecordAPIRequestOptions.Tags)
}

func TestBuildPayload_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		opts    RedactOptions
		message string
	}{
		{"bad default", RedactOptions{GeneratorDefault: "Hide"}, "generator default"},
		{"unknown key", RedactOptions{GeneratorConfig: map[string]redaction.PiiState{"FAVORITE_COLOR": redaction.Off}}, "FAVORITE_COLOR"},
		{"bad value", RedactOptions{GeneratorConfig: map[string]redaction.PiiState{"NAME_GIVEN": "hide"}}, "generator config"},
		{"retention zero", RedactOptions{Record: &RecordOptions{RetentionTimeInHours: 0}}, "retention time"},
		{"retention too long", RedactOptions{Record: &RecordOptions{RetentionTimeInHours: 721}}, "retention time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPayload(tt.opts)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
			require.True(t, strings.Contains(err.Error(), tt.message), "error %q should mention %q", err.Error(), tt.message)
		})
	}
}
