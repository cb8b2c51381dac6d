package sanitize_test

import (
	"testing"

	"github.com/jacentio/livefeed/sanitize"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"whitespace kept", "  hi\tthere\n", "  hi\tthere\n"},
		{"tags stripped", "<b>bold</b> move", "bold move"},
		{"script stripped", "<script>alert(1)</script>", "alert(1)"},
		{"unterminated tag kept", "1 < 2", "1 < 2"},
		{"control runes", "a\x00b\x07c", "abc"},
		{"format runes", "zero\u200bwidth", "zerowidth"},
		{"nfc", "e\u0301", "\u00e9"},
		{"blank", "   ", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitize.String(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestString_Idempotent(t *testing.T) {
	inputs := []string{
		"<<b>>x",
		"<a<b>c>",
		"e\u0301<i>\u200b</i>",
		"plain text",
		"<\x00>tag",
	}

	for _, in := range inputs {
		once := sanitize.String(in)
		if twice := sanitize.String(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsBlank(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"\n\t", true},
		{" x ", false},
	}

	for _, tt := range tests {
		if got := sanitize.IsBlank(tt.in); got != tt.want {
			t.Errorf("IsBlank(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
