package extractor

// DosageMatch is the token span selected as the label's dosage.
type DosageMatch struct {
	Rule          string
	StartToken    int // index of the first token in the span
	EndToken      int // index one past the last token
	Start         int // byte offset in the normalized text
	End           int
	OriginalStart int // byte offset in the original label
	Text          string
}

type predicate func(Token) bool

type step struct {
	match    predicate
	optional bool
}

type rule struct {
	name  string
	steps []step
}

// Matcher runs the dosage rules over classified tokens.
type Matcher struct {
	rules []rule
}

func number() step {
	return step{match: Token.IsNumeric}
}

func lowerIn(set map[string]struct{}) step {
	return step{match: func(t Token) bool { return t.LowerIn(set) }}
}

func lower(text string) step {
	return step{match: func(t Token) bool { return t.Lower == text }}
}

func literal(text string) step {
	return step{match: func(t Token) bool { return t.TextEquals(text) }}
}

func optional(s step) step {
	s.optional = true
	return s
}

// NewMatcher builds the four dosage rules over the given unit and
// per-action vocabularies.
func NewMatcher(units, actions map[string]struct{}) *Matcher {
	return &Matcher{rules: []rule{
		{name: "simple", steps: []step{number(), lowerIn(units)}},
		{name: "ratio", steps: []step{number(), lower("mg"), literal("/"), number(), lower("mg")}},
		{name: "concentration", steps: []step{number(), lowerIn(units), literal("/"), optional(number()), lower("ml")}},
		{name: "per_action", steps: []step{number(), lowerIn(units), literal("/"), lowerIn(actions)}},
	}}
}

// ends returns every token index at which steps can finish when started at pos.
func ends(steps []step, tokens []Token, pos int) []int {
	if len(steps) == 0 {
		return []int{pos}
	}

	var out []int
	s := steps[0]
	if pos < len(tokens) && s.match(tokens[pos]) {
		out = append(out, ends(steps[1:], tokens, pos+1)...)
	}
	if s.optional {
		out = append(out, ends(steps[1:], tokens, pos)...)
	}
	return out
}

// FindDosage collects every rule match over tokens and keeps the longest span.
// Equal lengths go to the earliest start, then to the first declared rule.
// It returns nil when nothing matches.
func (m *Matcher) FindDosage(tokens []Token) *DosageMatch {
	bestStart, bestEnd := -1, -1
	bestRule := ""

	for start := range tokens {
		for _, r := range m.rules {
			for _, end := range ends(r.steps, tokens, start) {
				if end <= start {
					continue
				}
				if bestStart < 0 || end-start > bestEnd-bestStart {
					bestStart, bestEnd, bestRule = start, end, r.name
				}
			}
		}
	}

	if bestStart < 0 {
		return nil
	}

	text := ""
	for _, t := range tokens[bestStart:bestEnd] {
		text += t.Text
	}

	return &DosageMatch{
		Rule:       bestRule,
		StartToken: bestStart,
		EndToken:   bestEnd,
		Start:      tokens[bestStart].Offset,
		End:        tokens[bestEnd-1].End(),
		Text:       text,
	}
}
