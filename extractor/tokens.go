package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var numericRegex = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)

// Token is a piece of normalized label text with its byte offset in that text.
type Token struct {
	Text   string
	Lower  string
	Offset int
}

func newToken(text string, offset int) Token {
	return Token{Text: text, Lower: strings.ToLower(text), Offset: offset}
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Offset + len(t.Text)
}

// IsNumeric reports whether the token is an integer or decimal number.
func (t Token) IsNumeric() bool {
	return numericRegex.MatchString(t.Text)
}

// LowerIn reports whether the lowercase token belongs to set.
func (t Token) LowerIn(set map[string]struct{}) bool {
	_, ok := set[t.Lower]
	return ok
}

// TextEquals reports whether the token text is exactly text.
func (t Token) TextEquals(text string) bool {
	return t.Text == text
}

func isSeparator(r rune) bool {
	switch r {
	case '%', '/', '(', ')', ',', ';', ':', '+', '[', ']', '"', '.':
		return true
	}
	return false
}

// isDecimalMark reports whether the comma or dot at i sits between two digits.
func isDecimalMark(text string, i int, r rune) bool {
	if r != ',' && r != '.' {
		return false
	}
	if i == 0 || i+1 >= len(text) {
		return false
	}
	before, _ := utf8.DecodeLastRuneInString(text[:i])
	after, _ := utf8.DecodeRuneInString(text[i+1:])
	return unicode.IsDigit(before) && unicode.IsDigit(after)
}

// Tokenize splits normalized text on whitespace and breaks punctuation such as
// "%" or "/" into tokens of their own. Decimal numbers ("2,5", "0.5") stay whole.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, 8)
	start := -1

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, newToken(text[start:end], start))
			start = -1
		}
	}

	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case isSeparator(r) && !isDecimalMark(text, i, r):
			flush(i)
			tokens = append(tokens, newToken(text[i:i+utf8.RuneLen(r)], i))
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))

	return tokens
}
