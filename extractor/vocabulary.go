package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Unspecified is used when no form token was recognised in a label.
const Unspecified = "Unspecified"

var defaultUnits = []string{"mg", "g", "%", "µg", "ui", "ch", "dh", "k", "mk"}

var defaultActions = []string{"pulverisation", "pulv", "dose", "inhalation"}

var defaultForms = map[string]string{
	"cpr": "Tablet", "comprimé": "Tablet", "cp": "Tablet",
	"gél": "Capsule", "gélule": "Capsule",
	"syr": "Syrup", "sirop": "Syrup",
	"sol": "Solution", "solution": "Solution", "s": "Solution",
	"susp": "Suspension", "suspension": "Suspension",
	"inj": "Injectable", "injectable": "Injectable",
	"perf": "Infusion", "perfusion": "Infusion",
	"pom": "Ointment", "pommade": "Ointment",
	"cr": "Cream", "crème": "Cream",
	"pulv": "Spray", "pulvérisation": "Spray",
	"collyre": "Eye-drops", "col": "Eye-drops",
	"gte": "Drops", "goutte": "Drops", "gt": "Drops",
}

var defaultQualifiers = map[string]string{
	"lp":      "Extended-release",
	"eff":     "Effervescent",
	"orodisp": "Orodispersible",
	"séc":     "Scored",
	"gast":    "Gastro-resistant",
	"buv":     "Oral",
	"opht":    "Ophthalmic",
	"auric":   "Auricular",
}

// Vocabulary holds the lookup tables shared by every extraction.
// It is built once and never modified afterwards.
type Vocabulary struct {
	Units      map[string]struct{}
	Actions    map[string]struct{}
	Forms      map[string]string
	Qualifiers map[string]string
}

// Lexicon is the optional TOML file that extends the built-in vocabulary.
//
//	units = ["mcg"]
//	[forms]
//	caps = "Capsule"
//	[qualifiers]
//	lm = "Modified-release"
type Lexicon struct {
	Units      []string          `toml:"units"`
	Actions    []string          `toml:"actions"`
	Forms      map[string]string `toml:"forms"`
	Qualifiers map[string]string `toml:"qualifiers"`
}

// DefaultVocabulary returns a fresh copy of the built-in tables.
func DefaultVocabulary() Vocabulary {
	v := Vocabulary{
		Units:      make(map[string]struct{}, len(defaultUnits)),
		Actions:    make(map[string]struct{}, len(defaultActions)),
		Forms:      make(map[string]string, len(defaultForms)),
		Qualifiers: make(map[string]string, len(defaultQualifiers)),
	}
	for _, u := range defaultUnits {
		v.Units[u] = struct{}{}
	}
	for _, a := range defaultActions {
		v.Actions[a] = struct{}{}
	}
	for k, f := range defaultForms {
		v.Forms[k] = f
	}
	for k, q := range defaultQualifiers {
		v.Qualifiers[k] = q
	}
	return v
}

// LoadLexicon reads a TOML lexicon file.
func LoadLexicon(path string) (*Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}

	var lex Lexicon
	if err := toml.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}

	return &lex, nil
}

// Extend adds the lexicon entries to the vocabulary. Keys are lowercased.
func (v Vocabulary) Extend(lex *Lexicon) Vocabulary {
	if lex == nil {
		return v
	}
	for _, u := range lex.Units {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			v.Units[u] = struct{}{}
		}
	}
	for _, a := range lex.Actions {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			v.Actions[a] = struct{}{}
		}
	}
	for k, f := range lex.Forms {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && f != "" {
			v.Forms[k] = f
		}
	}
	for k, q := range lex.Qualifiers {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && q != "" {
			v.Qualifiers[k] = q
		}
	}
	return v
}
