package stream

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// SplitOptions controls how text is divided into chunks. Sizes are counted
// in characters (runes).
type SplitOptions struct {
	MaxChunkSize      int
	MinChunkSize      int
	SplitOnSentences  bool
	SplitOnParagraphs bool

	// RespectAbbreviations stops "Dr." or "e.g." from ending a sentence.
	RespectAbbreviations bool
}

// Validate checks that the size bounds are usable.
func (o SplitOptions) Validate() error {
	if o.MaxChunkSize < 1 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidArgument, o.MaxChunkSize)
	}
	if o.MinChunkSize < 0 || o.MinChunkSize > o.MaxChunkSize {
		return fmt.Errorf("%w: min chunk size must be within [0, %d], got %d",
			ErrInvalidArgument, o.MaxChunkSize, o.MinChunkSize)
	}
	return nil
}

// Split divides text into chunks. Concatenating the result always yields
// text again. Every chunk but the last holds at least MinChunkSize
// characters; a chunk exceeds MaxChunkSize only when the span between two
// boundaries is itself longer. Empty text yields no chunks.
func Split(text string, opts SplitOptions) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= opts.MaxChunkSize {
		return []string{text}, nil
	}

	boundaries := findBoundaries(runes, opts)
	if len(boundaries) == 2 {
		// Nothing to split on between the ends.
		return splitFixed(runes, opts.MaxChunkSize), nil
	}

	var (
		chunks []string
		start  int // first rune of the running chunk
		end    int // one past its last rune
	)
	flush := func() {
		chunks = append(chunks, string(runes[start:end]))
		start = end
	}

	for i := 1; i < len(boundaries); i++ {
		segLen := boundaries[i] - boundaries[i-1]
		curLen := end - start

		// An undersized chunk keeps growing past the maximum.
		if curLen > 0 && curLen+segLen > opts.MaxChunkSize && curLen >= opts.MinChunkSize {
			flush()
		}

		end = boundaries[i]
		if end-start >= opts.MaxChunkSize {
			flush()
		}
	}
	if end > start {
		flush()
	}
	return chunks, nil
}

// splitFixed cuts runes into pieces of exactly size characters.
func splitFixed(runes []rune, size int) []string {
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// findBoundaries returns the sorted, distinct rune offsets where a chunk may
// end, always including 0 and len(runes).
func findBoundaries(runes []rune, opts SplitOptions) []int {
	boundaries := []int{0, len(runes)}
	if opts.SplitOnParagraphs {
		boundaries = append(boundaries, paragraphBoundaries(runes)...)
	}
	if opts.SplitOnSentences {
		boundaries = append(boundaries, sentenceBoundaries(runes, opts.RespectAbbreviations)...)
	}
	slices.Sort(boundaries)
	return slices.Compact(boundaries)
}

// paragraphBoundaries finds offsets just past whitespace runs that contain
// at least two newlines.
func paragraphBoundaries(runes []rune) []int {
	var out []int
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			i++
			continue
		}
		newlines := 0
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			if runes[j] == '\n' {
				newlines++
			}
			j++
		}
		if newlines >= 2 {
			out = append(out, j)
		}
		i = j
	}
	return out
}

// sentenceBoundaries finds offsets just past a terminator run and the
// whitespace that follows it. A terminator run is one or more of .!?
// optionally followed by closing quotes or brackets, and must be followed
// by whitespace or the end of text.
func sentenceBoundaries(runes []rune, respectAbbreviations bool) []int {
	var out []int
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		punctStart := i
		end := i + 1
		for end < len(runes) && isTerminator(runes[end]) {
			end++
		}
		for end < len(runes) && isClosing(runes[end]) {
			end++
		}
		i = end - 1

		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		if respectAbbreviations && isAbbreviation(runes, punctStart, end) {
			continue
		}

		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		out = append(out, end)
		i = end - 1
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '»', '’', '”':
		return true
	}
	return false
}

// isAbbreviation reports whether the single period at runes[pos] closes a
// known abbreviation or a dotted initialism such as "U.S.".
func isAbbreviation(runes []rune, pos, end int) bool {
	if runes[pos] != '.' || (pos+1 < end && isTerminator(runes[pos+1])) {
		return false
	}
	// The last text before end of input always ends a sentence.
	if end >= len(runes) {
		return false
	}

	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	word := strings.ToLower(string(runes[start:pos]))
	word = strings.TrimLeft(word, "\"'([{")
	if word == "" {
		return false
	}
	if abbreviations[word] {
		return true
	}
	return strings.Contains(word, ".")
}

// abbreviations are lower-case words that do not end a sentence when
// followed by a period.
var abbreviations = func() map[string]bool {
	words := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"ph.d", "m.d", "b.a", "m.a", "b.s",
		"inc", "ltd", "co", "corp", "llc",
		"i.e", "e.g", "etc", "vs", "cf", "al",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
		"rd", "ave", "blvd", "ln", "ct", "vol", "pp",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
