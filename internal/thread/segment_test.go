package thread

import (
	"strings"
	"testing"
)

func TestMatchBoundary(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		index int
		want  string
	}{
		{name: "original message", lines: []string{"x", "-----Original Message-----"}, index: 1, want: "original-message"},
		{name: "original message lowercase", lines: []string{"x", "-- original message --"}, index: 1, want: "original-message"},
		{name: "quoted from", lines: []string{"x", "From: a@x.com", "Sent: today"}, index: 1, want: "quoted-from"},
		{name: "quoted from far companion", lines: []string{"x", "From: a", "1", "2", "3", "4", "5", "6", "7", "subject: hi"}, index: 1, want: "quoted-from"},
		{name: "from too far", lines: []string{"x", "From: a", "1", "2", "3", "4", "5", "6", "7", "8", "subject: hi"}, index: 1, want: ""},
		{name: "from in prose", lines: []string{"x", "From: the desk of the CEO", "Hello all"}, index: 1, want: ""},
		{name: "on wrote", lines: []string{"x", "On Mon, Jan 1, 2024 at 9:00 AM Bob <b@y.com> wrote:"}, index: 1, want: "on-wrote"},
		{name: "on wrote mid sentence", lines: []string{"x", "On Monday Bob wrote: the plan"}, index: 1, want: ""},
		{name: "underscores", lines: []string{"x", "________________________________"}, index: 1, want: "divider"},
		{name: "hyphens", lines: []string{"x", "--------"}, index: 1, want: "divider"},
		{name: "short hyphens", lines: []string{"x", "-------"}, index: 1, want: ""},
		{name: "plain", lines: []string{"x", "just text"}, index: 1, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchBoundary(tt.lines, tt.index); got != tt.want {
				t.Errorf("MatchBoundary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	text := Normalize("Hello,\nThanks.\n\n-----Original Message-----\nFrom: a@x.com\nTo: b@y.com\nSubject: Re: hi\nSent: Jan 1\n\nOriginal text")
	segments := Split(text)
	if len(segments) != 3 {
		t.Fatalf("Split() returned %d segments, want 3: %#v", len(segments), segments)
	}
	if segments[0].Text != "Hello,\nThanks." {
		t.Errorf("segment 0 = %q", segments[0].Text)
	}
	if segments[1].Text != "-----Original Message-----" {
		t.Errorf("segment 1 = %q", segments[1].Text)
	}
	if !strings.HasPrefix(segments[2].Text, "From: a@x.com") {
		t.Errorf("segment 2 = %q", segments[2].Text)
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].Start <= segments[i-1].Start {
			t.Errorf("segments out of order: %d then %d", segments[i-1].Start, segments[i].Start)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split(""); got != nil {
		t.Errorf("Split(\"\") = %#v, want nil", got)
	}
}

func TestSplitDedupesAdjacent(t *testing.T) {
	quoted := strings.Repeat("same quoted preamble ", 20)
	text := "________\n" + quoted + "tail one\n________\n" + quoted + "tail two"
	segments := Split(Normalize(text))
	if len(segments) != 1 {
		t.Fatalf("Split() returned %d segments, want 1", len(segments))
	}
	if !strings.HasSuffix(segments[0].Text, "tail one") {
		t.Errorf("kept segment = %q, want the first occurrence", segments[0].Text)
	}
}

func TestSplitCoversInput(t *testing.T) {
	inputs := []string{
		"Reply body here.\n\nOn Tue, Feb 2 Ann wrote:\n> first\n> second\n\n________________\nFrom: x\nTo: y\n\nold",
		"no markers at all\njust two lines",
		"A\n--------\nB\n--------\nC",
	}
	for _, in := range inputs {
		normalized := Normalize(in)
		var joined strings.Builder
		for _, segment := range Split(normalized) {
			joined.WriteString(segment.Text)
		}
		if squash(joined.String()) != squash(normalized) {
			t.Errorf("segments lost content for %q:\n got %q\nwant %q", in, squash(joined.String()), squash(normalized))
		}
	}
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}
