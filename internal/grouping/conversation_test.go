package grouping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/textual/internal/errors"
)

type message struct {
	Role string
	Text string
}

type chat struct {
	Messages []message
}

func TestRedactConversation(t *testing.T) {
	r := newRedactor()
	conv := chat{Messages: []message{
		{Role: "customer", Text: "Hi, this is Adam"},
		{Role: "agent", Text: "Hi Adam, nice to meet you this is Jane."},
	}}

	got, err := RedactConversation(context.Background(), conv,
		func(c chat) []message { return c.Messages },
		func(m message) string { return m.Text },
		r.Redact)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, r.Calls(), 1)

	require.Equal(t, "Hi, this is [NAME_GIVEN]", got[0].RedactedText)
	require.Equal(t, "Hi [NAME_GIVEN], nice to meet you this is [NAME_GIVEN].", got[1].RedactedText)
	require.Len(t, got[1].DeIdentifyResults, 2)
	require.Equal(t, 3, got[1].DeIdentifyResults[0].Start)
	require.Equal(t, 7, got[1].DeIdentifyResults[0].End)
	require.Equal(t, "Jane", got[1].DeIdentifyResults[1].Text)
}

func TestRedactConversation_Empty(t *testing.T) {
	r := newRedactor()
	got, err := RedactConversation(context.Background(), chat{},
		func(c chat) []message { return c.Messages },
		func(m message) string { return m.Text },
		r.Redact)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Empty(t, r.Calls())
}

func TestRedactConversation_SplitEntity(t *testing.T) {
	r := newRedactor()
	lines := []string{"my name is Ad", "am and I live in Atlanta"}

	got, err := RedactConversation(context.Background(), lines,
		func(c []string) []string { return c },
		func(s string) string { return s },
		r.Redact)
	require.NoError(t, err)
	require.Equal(t, "Ad\nam", got[0].DeIdentifyResults[0].Text)
	require.Equal(t, "Ad\nam", got[1].DeIdentifyResults[0].Text)
	require.Equal(t, got[0].DeIdentifyResults[0].NewText, got[1].DeIdentifyResults[0].NewText)
}

func TestRedactConversationJSON(t *testing.T) {
	raw := []byte(`{
		"conversations": [
			{"role": "customer", "text": "Hi, this is Adam"},
			{"role": "agent", "text": "Hi Adam, nice to meet you this is Jane."}
		]
	}`)
	r := newRedactor()

	got, err := RedactConversationJSON(context.Background(), raw, "conversations", "text", r.Redact)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, []string{"Hi, this is Adam\nHi Adam, nice to meet you this is Jane."}, r.Calls())
	require.Equal(t, "Hi, this is [NAME_GIVEN]", got[0].RedactedText)
}

func TestRedactConversationJSON_StringItems(t *testing.T) {
	raw := []byte(`{"lines": ["Adam", "Atlanta"]}`)
	r := newRedactor()

	got, err := RedactConversationJSON(context.Background(), raw, "lines", "", r.Redact)
	require.NoError(t, err)
	require.Equal(t, "[NAME_GIVEN]", got[0].RedactedText)
	require.Equal(t, "[LOCATION_CITY]", got[1].RedactedText)
}

func TestRedactConversationJSON_EmptyArray(t *testing.T) {
	r := newRedactor()
	got, err := RedactConversationJSON(context.Background(), []byte(`{"items": []}`), "items", "text", r.Redact)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, r.Calls())
}

func TestRedactConversationJSON_Errors(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		itemsPath string
	}{
		{"invalid json", `{"items": [`, "items"},
		{"missing path", `{"items": []}`, "messages"},
		{"not an array", `{"items": "x"}`, "items"},
		{"empty items path", `{"items": []}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RedactConversationJSON(context.Background(), []byte(tt.raw), tt.itemsPath, "text", newRedactor().Redact)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}
