package redaction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hpungsan/textual/internal/errors"
)

func validResponse() *Response {
	return &Response{
		OriginalText: "I work at Tonic\nin Atlanta",
		RedactedText: "I work at [ORG_1]\nin [CITY_2]",
		Usage:        5,
		DeIdentifyResults: []Replacement{
			{Start: 19, End: 26, NewStart: 21, NewEnd: 29, Label: "LOCATION_CITY", Text: "Atlanta", NewText: "[CITY_2]", Score: 0.9},
			{Start: 10, End: 15, NewStart: 10, NewEnd: 17, Label: "ORGANIZATION", Text: "Tonic", NewText: "[ORG_1]", Score: 0.8},
		},
	}
}

func TestResponse_Validate(t *testing.T) {
	if err := validResponse().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestResponse_ValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Response)
	}{
		{"start after end", func(r *Response) { r.DeIdentifyResults[0].Start = 27 }},
		{"end past text", func(r *Response) { r.DeIdentifyResults[0].End = 99 }},
		{"text mismatch", func(r *Response) { r.DeIdentifyResults[0].Text = "Boston!" }},
		{"new span outside", func(r *Response) { r.DeIdentifyResults[0].NewEnd = 99 }},
		{"new text mismatch", func(r *Response) { r.DeIdentifyResults[1].NewText = "[ORG_9]" }},
		{"overlap", func(r *Response) {
			r.DeIdentifyResults = append(r.DeIdentifyResults, Replacement{
				Start: 12, End: 15, NewStart: 10, NewEnd: 17, Text: "nic", NewText: "[ORG_1]",
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResponse()
			tt.mutate(r)
			err := r.Validate()
			if !errors.Is(err, errors.ErrInvariantViolation) {
				t.Errorf("Validate() = %v, want INVARIANT_VIOLATION", err)
			}
		})
	}
}

func TestResponse_ValidateRunes(t *testing.T) {
	r := &Response{
		OriginalText: "café Zoë",
		RedactedText: "café [N]",
		DeIdentifyResults: []Replacement{
			{Start: 5, End: 8, NewStart: 5, NewEnd: 8, Text: "Zoë", NewText: "[N]"},
		},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestResponse_JSONWireNames(t *testing.T) {
	raw := `{"originalText":"hi Ann","redactedText":"hi [N]","usage":2,
		"deIdentifyResults":[{"start":3,"end":6,"newStart":3,"newEnd":6,"label":"NAME_GIVEN","text":"Ann","score":0.9,"language":"en","newText":"[N]"}]}`

	var r Response
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Usage != 2 || len(r.DeIdentifyResults) != 1 {
		t.Fatalf("decoded %+v", r)
	}
	rep := r.DeIdentifyResults[0]
	if rep.NewStart != 3 || rep.NewEnd != 6 || rep.NewText != "[N]" || rep.Language != "en" {
		t.Errorf("replacement = %+v", rep)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestResponse_DescribeAndLabels(t *testing.T) {
	r := validResponse()
	desc := r.Describe()
	if !strings.HasPrefix(desc, r.RedactedText+"\n") {
		t.Errorf("Describe() should start with redacted text, got %q", desc)
	}
	if !strings.Contains(desc, `"Atlanta" is a LOCATION_CITY`) {
		t.Errorf("Describe() missing replacement line: %q", desc)
	}

	labels := r.Labels()
	if labels["LOCATION_CITY"] != 1 || labels["ORGANIZATION"] != 1 {
		t.Errorf("Labels() = %v", labels)
	}
}

func TestBulkResponse_Responses(t *testing.T) {
	b := &BulkResponse{
		BulkText:         []string{"a", "Ann"},
		BulkRedactedText: []string{"a", "[N]"},
		Usage:            1,
		DeIdentifyResults: [][]Replacement{
			nil,
			{{Start: 0, End: 3, NewStart: 0, NewEnd: 3, Text: "Ann", NewText: "[N]"}},
		},
	}

	got := b.Responses()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].DeIdentifyResults == nil || len(got[0].DeIdentifyResults) != 0 {
		t.Errorf("first result replacements = %v, want empty", got[0].DeIdentifyResults)
	}
	if got[1].RedactedText != "[N]" || len(got[1].DeIdentifyResults) != 1 {
		t.Errorf("second result = %+v", got[1])
	}
	if got[1].Usage != -1 {
		t.Errorf("Usage = %d, want -1", got[1].Usage)
	}
	if !strings.HasPrefix(b.Describe(), "a\n[N]\n") {
		t.Errorf("Describe() = %q", b.Describe())
	}
}

func TestSortedByStart(t *testing.T) {
	in := []Replacement{{Start: 5, Label: "b"}, {Start: 1}, {Start: 5, Label: "c"}}
	out := SortedByStart(in)
	if out[0].Start != 1 || out[1].Label != "b" || out[2].Label != "c" {
		t.Errorf("SortedByStart() = %+v", out)
	}
	if in[0].Start != 5 {
		t.Error("SortedByStart modified its input")
	}
}

func TestParsePiiState(t *testing.T) {
	for _, s := range []string{"Redaction", "Synthesis", "Off"} {
		if _, err := ParsePiiState(s); err != nil {
			t.Errorf("ParsePiiState(%q) = %v", s, err)
		}
	}
	if _, err := ParsePiiState("redaction"); err == nil {
		t.Error("ParsePiiState should be case sensitive")
	}
}

func TestIsKnownPiiType(t *testing.T) {
	if !IsKnownPiiType("NAME_GIVEN") {
		t.Error("NAME_GIVEN should be known")
	}
	if IsKnownPiiType("FAVORITE_COLOR") {
		t.Error("FAVORITE_COLOR should not be known")
	}
}
