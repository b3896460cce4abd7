package classify

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Verdict
	}{
		{
			name: "clean approval",
			raw:  `{"approved": true, "reason": "r", "title": "T", "summary": "S", "tags": ["#AI", "#Go"]}`,
			want: Approved{Title: "T", Summary: "S", Reason: "r", Tags: []string{"#AI", "#Go"}},
		},
		{
			name: "fenced approval",
			raw:  "```json\n{\"approved\": true, \"title\": \"T\", \"summary\": \"S\"}\n```",
			want: Approved{Title: "T", Summary: "S", Tags: []string{}},
		},
		{
			name: "rejection without tags",
			raw:  `{"approved": false, "reason": "ads"}`,
			want: Rejected{Reason: "ads", Tags: []string{}},
		},
		{
			name: "approved string is not approval",
			raw:  `{"approved": "true", "title": "T", "summary": "S"}`,
			want: Rejected{Tags: []string{}},
		},
		{
			name: "unescaped quotes recovered",
			raw:  `{"approved": true, "title": "Вышел "Go"", "summary": "Текст", "tags": ["#Go"]}`,
			want: Approved{Title: `Вышел "Go"`, Summary: "Текст", Tags: []string{"#Go"}, Recovered: true},
		},
		{
			name: "truncated approval recovered",
			raw:  `{"approved": true, "title": "T", "summary": "S", "tags": "#AI`,
			want: Approved{Title: "T", Summary: "S", Tags: []string{}, Recovered: true},
		},
		{
			name: "approval without summary",
			raw:  `{"approved": true, "title": "T"`,
			want: Unparseable{Raw: `{"approved": true, "title": "T"`},
		},
		{
			name: "prose",
			raw:  "Sorry, I can't help with that.",
			want: Unparseable{Raw: "Sorry, I can't help with that."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseVerdict() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{"#AI", []string{"#AI"}},
		{"  ", []string{}},
		{nil, []string{}},
		{42, []string{}},
		{[]any{"#A", 1, " #B "}, []string{"#A", "#B"}},
	}
	for _, tt := range tests {
		if got := NormalizeTags(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NormalizeTags(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVerdictDecision(t *testing.T) {
	d := Approved{Title: "T", Summary: "S"}.Decision()
	if !d.Approved || d.Title == nil || *d.Title != "T" || d.Tags == nil {
		t.Errorf("unexpected approved decision %+v", d)
	}

	d = Failed{Err: errors.New("timeout")}.Decision()
	if d.Approved || d.Error != "timeout" {
		t.Errorf("unexpected failed decision %+v", d)
	}

	d = Unparseable{Raw: "x"}.Decision()
	if d.Error != ParseErrorText || d.RawResponse != "x" {
		t.Errorf("unexpected unparseable decision %+v", d)
	}
}
