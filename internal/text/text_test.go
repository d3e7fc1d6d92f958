package text

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"plain", "Hello world.", 0, "Hello world."},
		{"control characters removed", "a\x00b\x07c\x1bd\x7f", 0, "abcd"},
		{"layout characters kept", "one\ttwo\r\nthree", 0, "one\ttwo\r\nthree"},
		{"trimmed", "  \n padded \t ", 0, "padded"},
		{"normalized to NFC", "cafe\u0301", 0, "caf\u00e9"},
		{"limit counts characters", "\u00e9\u00e9\u00e9\u00e9\u00e9", 5, "\u00e9\u00e9\u00e9\u00e9\u00e9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input, tt.limit)
			if err != nil {
				t.Fatalf("Sanitize failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeErrors(t *testing.T) {
	if _, err := Sanitize("", 0); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty: got %v", err)
	}
	if _, err := Sanitize(" \x00\x01 \n", 0); !errors.Is(err, ErrEmpty) {
		t.Errorf("only control characters: got %v", err)
	}
	if _, err := Sanitize("abcdef", 5); !errors.Is(err, ErrTooLong) {
		t.Errorf("over limit: got %v", err)
	}
	if _, err := Sanitize(strings.Repeat("a", MaxLength+1), 0); !errors.Is(err, ErrTooLong) {
		t.Errorf("over default limit: got %v", err)
	}
}

func TestFromMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		expected string
	}{
		{
			name:     "emphasis stripped",
			markdown: "Hello *world*",
			expected: "Hello world.",
		},
		{
			name:     "heading and paragraph",
			markdown: "# Title\n\nBody!",
			expected: "Title.\n\nBody!",
		},
		{
			name:     "code blocks skipped",
			markdown: "Before.\n\n```go\nx := 1\n```\n\nAfter.",
			expected: "Before.\n\nAfter.",
		},
		{
			name:     "list items",
			markdown: "- one\n- two",
			expected: "one.\ntwo.",
		},
		{
			name:     "link text without target",
			markdown: "Visit [the site](https://example.com) now",
			expected: "Visit the site now.",
		},
		{
			name:     "soft line breaks become spaces",
			markdown: "line one\nline two",
			expected: "line one line two.",
		},
		{
			name:     "html dropped",
			markdown: "<div>hidden</div>\n\nShown.",
			expected: "Shown.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMarkdown(tt.markdown); got != tt.expected {
				t.Errorf("FromMarkdown(%q) = %q, want %q", tt.markdown, got, tt.expected)
			}
		})
	}
}
