package extractor

import (
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

// minShardSize keeps tiny batches from being split across goroutines.
const minShardSize = 256

// Options configures NewExtractor.
type Options struct {
	// LexiconPath is an optional TOML file extending the built-in vocabulary.
	LexiconPath string
	// Workers bounds batch parallelism. Zero means GOMAXPROCS.
	Workers int
}

// Features is the structured result for one label.
type Features struct {
	Brand      string
	Dosage     *string // nil when no dosage pattern matched
	Form       string
	Qualifiers []string
	Rule       string // name of the dosage rule that matched, empty when none
}

// Extractor holds the vocabularies and dosage rules. It is safe for
// concurrent use once built.
type Extractor struct {
	vocab          Vocabulary
	matcher        *Matcher
	workers        int
	degraded       bool
	degradedReason string
}

// NewExtractor builds the shared extraction resources. A lexicon that cannot
// be loaded does not fail construction: the extractor falls back to the
// built-in vocabulary and reports itself as degraded.
func NewExtractor(opts Options) *Extractor {
	e := &Extractor{workers: opts.Workers}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}

	vocab := DefaultVocabulary()
	if opts.LexiconPath != "" {
		lex, err := LoadLexicon(opts.LexiconPath)
		if err != nil {
			e.degraded = true
			e.degradedReason = err.Error()
		} else {
			vocab = vocab.Extend(lex)
		}
	}

	e.vocab = vocab
	e.matcher = NewMatcher(vocab.Units, vocab.Actions)
	return e
}

// Degraded reports whether the optional lexicon failed to load, with the reason.
func (e *Extractor) Degraded() (bool, string) {
	return e.degraded, e.degradedReason
}

// Vocabulary returns the tables in use.
func (e *Extractor) Vocabulary() Vocabulary {
	return e.vocab
}

// Extract runs the normalize, match and segment pipeline over one label.
// It never fails: missing matches are reported as a nil dosage and the
// "Unspecified" form.
func (e *Extractor) Extract(label string) Features {
	original := norm.NFC.String(label)
	n := Normalize(original)
	tokens := Tokenize(n.Text)

	match := e.matcher.FindDosage(tokens)
	if match != nil {
		match.OriginalStart = n.OriginalOffset(match.Start)
	}

	d := e.vocab.Segment(original, tokens, match)
	f := Features{
		Brand:      d.Brand,
		Form:       d.Form,
		Qualifiers: d.Qualifiers,
	}
	if match != nil {
		dosage := match.Text
		f.Dosage = &dosage
		f.Rule = match.Rule
	}
	return f
}

// ExtractAll extracts every label, preserving input order: out[i] belongs to
// labels[i]. Labels are split into contiguous shards processed in parallel,
// each shard writing only its own slots.
func (e *Extractor) ExtractAll(labels []string) []Features {
	out := make([]Features, len(labels))
	if len(labels) == 0 {
		return out
	}

	shard := (len(labels) + e.workers - 1) / e.workers
	if shard < minShardSize {
		shard = minShardSize
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for start := 0; start < len(labels); start += shard {
		start := start
		end := min(start+shard, len(labels))
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = e.Extract(labels[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
