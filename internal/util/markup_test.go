package util

import "testing"

func TestStripMarkup(t *testing.T) {
	cases := []struct {
		name   string
		markup string
		want   string
	}{
		{"plain", "hello world", "hello world"},
		{"breaks", "first<br>second", "first\nsecond"},
		{"self closing break", "first<br/>second", "first\nsecond"},
		{"nested tags", "<div><b>bold</b> text</div>", "bold text\n"},
		{"entities", "a&nbsp;&amp;&nbsp;b", "a & b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripMarkup(tc.markup); got != tc.want {
				t.Fatalf("StripMarkup(%q) = %q, want %q", tc.markup, got, tc.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("  hello   world "); got != 2 {
		t.Fatalf("expected 2 words, got %d", got)
	}
	if got := WordCount(""); got != 0 {
		t.Fatalf("expected 0 words, got %d", got)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 150); got != "short" {
		t.Fatalf("unexpected preview: %q", got)
	}
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	got := Preview(string(long), 150)
	if len([]rune(got)) != 153 {
		t.Fatalf("expected 150 runes plus ellipsis, got %d", len([]rune(got)))
	}
}
