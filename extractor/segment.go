package extractor

import (
	"slices"
	"strings"
	"unicode"
)

// Descriptor is the brand and canonical form derived from one label.
type Descriptor struct {
	Brand      string
	Form       string   // sorted forms, "Unspecified" when empty, then sorted qualifiers
	Forms      []string // canonical forms found, sorted
	Qualifiers []string // canonical qualifiers found, sorted
}

// Segment derives the brand from the text before the dosage match and the
// canonical form from the form and qualifier tokens. original must be the
// string the match's OriginalStart refers to.
func (v Vocabulary) Segment(original string, tokens []Token, match *DosageMatch) Descriptor {
	forms := make(map[string]struct{})
	qualifiers := make(map[string]struct{})
	for _, t := range tokens {
		if f, ok := v.Forms[t.Lower]; ok {
			forms[f] = struct{}{}
		}
		if q, ok := v.Qualifiers[t.Lower]; ok {
			qualifiers[q] = struct{}{}
		}
	}

	d := Descriptor{
		Brand:      brandOf(original, match),
		Forms:      sortedKeys(forms),
		Qualifiers: sortedKeys(qualifiers),
	}

	d.Form = Unspecified
	if len(d.Forms) > 0 {
		d.Form = strings.Join(d.Forms, " ")
	}
	if len(d.Qualifiers) > 0 {
		d.Form += " " + strings.Join(d.Qualifiers, " ")
	}

	return d
}

func brandOf(original string, match *DosageMatch) string {
	if match != nil && match.OriginalStart <= len(original) {
		if brand := strings.TrimSpace(original[:match.OriginalStart]); brand != "" {
			return brand
		}
	}

	lead := original
	if i := strings.IndexFunc(original, unicode.IsDigit); i >= 0 {
		lead = original[:i]
	}
	if brand := strings.TrimSpace(lead); brand != "" {
		return brand
	}

	if brand := strings.TrimSpace(original); brand != "" {
		return brand
	}
	return Unspecified
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
