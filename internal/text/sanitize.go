// Package text prepares user input for synthesis: it extracts speakable
// text from markdown and cleans up raw strings before they reach a model.
package text

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxLength is the default limit on sanitized text, in characters.
const MaxLength = 100_000

var (
	// ErrEmpty is returned when nothing speakable is left after sanitizing.
	ErrEmpty = errors.New("text is empty")

	// ErrTooLong is returned when text exceeds the length limit. Text is
	// never truncated.
	ErrTooLong = errors.New("text is too long")
)

// Sanitize normalizes text to NFC, drops control characters other than
// newline, carriage return and tab, and trims surrounding whitespace. A
// maxLength of zero or less means MaxLength.
func Sanitize(s string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = MaxLength
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmpty
	}
	if n := utf8.RuneCountInString(s); n > maxLength {
		return "", fmt.Errorf("%w: %d characters, limit is %d", ErrTooLong, n, maxLength)
	}
	return s, nil
}
