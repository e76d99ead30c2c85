package pdfdoc

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func fixedWidth(perRune float64) func(string) float64 {
	return func(s string) float64 {
		return float64(utf8.RuneCountInString(s)) * perRune
	}
}

func TestWrap(t *testing.T) {
	measure := fixedWidth(5)
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		want     []string
	}{
		{name: "blank", text: "  \n ", maxWidth: 50, want: nil},
		{name: "fits", text: "hello world", maxWidth: 100, want: []string{"hello world"}},
		{name: "greedy", text: "the quick brown fox", maxWidth: 50, want: []string{"the quick", "brown fox"}},
		{name: "exact width", text: "abcde fghij", maxWidth: 25, want: []string{"abcde", "fghij"}},
		{
			name:     "long word between short ones",
			text:     "ab " + strings.Repeat("x", 25) + " cd",
			maxWidth: 50,
			want:     []string{"ab", strings.Repeat("x", 10), strings.Repeat("x", 10), "xxxxx cd"},
		},
		{name: "narrower than a rune", text: "abc", maxWidth: 3, want: []string{"a", "b", "c"}},
		{name: "newlines collapse", text: "one\ntwo\n\nthree", maxWidth: 100, want: []string{"one two three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.maxWidth, measure)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Wrap() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapUnbreakableToken(t *testing.T) {
	measure := fixedWidth(5)
	token := strings.Repeat("a", 300)
	lines := Wrap(token, 100, measure)
	if len(lines) != 15 {
		t.Fatalf("Wrap() returned %d lines, want 15", len(lines))
	}
	if strings.Join(lines, "") != token {
		t.Errorf("hard split lost characters")
	}
	for _, line := range lines {
		if measure(line) > 100 {
			t.Errorf("line %q is %.1f wide, max 100", line, measure(line))
		}
	}
}

func TestWrapNeverExceedsWidth(t *testing.T) {
	measure := func(s string) float64 {
		w := 0.0
		for _, r := range s {
			switch {
			case r == ' ':
				w += 2.5
			case r >= 'A' && r <= 'Z':
				w += 7
			default:
				w += 5
			}
		}
		return w
	}
	texts := []string{
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor",
		"SHOUTING WORDS ARE WIDER THAN quiet ones and MiXeD",
		"https://example.com/a/very/long/path/that/cannot/be/broken/on/spaces?with=query&and=more",
		strings.Repeat("word ", 200),
	}
	for _, width := range []float64{6, 40, 120, 333} {
		for _, text := range texts {
			for _, line := range Wrap(text, width, measure) {
				if measure(line) > width && utf8.RuneCountInString(line) > 1 {
					t.Errorf("width %.0f: line %q measures %.1f", width, line, measure(line))
				}
			}
		}
	}
}

func TestTruncateToWidth(t *testing.T) {
	measure := fixedWidth(5)
	got := truncateToWidth("abcdefghij", "...", 40, measure)
	if got != "abcde..." {
		t.Errorf("truncateToWidth() = %q, want %q", got, "abcde...")
	}
	if measure(got) > 40 {
		t.Errorf("truncated text too wide: %.1f", measure(got))
	}
}
