// Package extractor turns free-text medication labels into structured features:
// dosage, pharmaceutical form, qualifiers and brand.
package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalized is a label prepared for tokenization. It remembers where every
// byte of Text came from in Original so that offsets found on the normalized
// text can be used to slice the original label.
type Normalized struct {
	Original string
	Text     string
	origin   []int // origin[j] is the byte offset in Original for byte j of Text
}

// Normalize separates numbers from the letters that follow them ("500mg" becomes
// "500 mg") and pads every slash with spaces so numbers, units and separators
// end up as distinct tokens.
func Normalize(raw string) Normalized {
	if raw == "" {
		return Normalized{origin: []int{0}}
	}

	var b strings.Builder
	b.Grow(len(raw) + 8)
	origin := make([]int, 0, len(raw)+9)

	emit := func(s string, from int) {
		b.WriteString(s)
		for j := 0; j < len(s); j++ {
			origin = append(origin, from)
		}
	}

	prev := utf8.RuneError
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		if r == '/' {
			emit(" ", i)
			emit("/", i)
			emit(" ", i+size)
		} else {
			if unicode.IsDigit(prev) && unicode.IsLetter(r) {
				emit(" ", i)
			}
			b.WriteString(raw[i : i+size])
			for k := 0; k < size; k++ {
				origin = append(origin, i+k)
			}
		}
		prev = r
		i += size
	}
	origin = append(origin, len(raw))

	return Normalized{Original: raw, Text: b.String(), origin: origin}
}

// OriginalOffset maps a byte offset in the normalized text back to the
// matching byte offset in the original label.
func (n Normalized) OriginalOffset(offset int) int {
	if offset <= 0 || len(n.origin) == 0 {
		return 0
	}
	if offset >= len(n.origin) {
		return len(n.Original)
	}
	return n.origin[offset]
}
