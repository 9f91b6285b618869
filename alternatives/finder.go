// Package alternatives finds substitutable medications: the most similar rows
// by embedding, restricted to those with the same active ingredient, dosage
// and form but a different brand.
package alternatives

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
	"github.com/jellydator/ttlcache/v3"
)

var (
	ErrIndexOutOfRange          = errors.New("medication index out of range")
	ErrDatasetEmbeddingMismatch = errors.New("medications and embeddings have different lengths")
)

// DefaultPoolSize is the number of most similar rows considered before filtering.
const DefaultPoolSize = 50

// Vectors is the embedding store. Row i belongs to medication i.
type Vectors interface {
	Len() int
	Vector(i int) []float32
}

// Alternative is a validated substitute with its cosine similarity to the query.
type Alternative struct {
	entities.Medication
	Similarity float64 `json:"similarity"`
}

// Finder answers alternative queries over one loaded dataset. It is read-only
// after construction and safe for concurrent use.
type Finder struct {
	records []entities.Medication
	vectors Vectors
	norms   []float64
	k       int
	cache   *ttlcache.Cache[int, []Alternative]
}

// Option configures a Finder.
type Option func(*Finder)

// WithPoolSize sets the candidate pool size. Values below 1 keep the default.
func WithPoolSize(k int) Option {
	return func(f *Finder) {
		if k > 0 {
			f.k = k
		}
	}
}

// WithCache memoises results per index for ttl, keeping at most capacity entries.
func WithCache(ttl time.Duration, capacity uint64) Option {
	return func(f *Finder) {
		if ttl <= 0 {
			return
		}
		opts := []ttlcache.Option[int, []Alternative]{
			ttlcache.WithTTL[int, []Alternative](ttl),
		}
		if capacity > 0 {
			opts = append(opts, ttlcache.WithCapacity[int, []Alternative](capacity))
		}
		f.cache = ttlcache.New(opts...)
	}
}

// NewFinder checks that records and vectors are aligned and precomputes the
// vector norms. A length mismatch fails here, once, with
// ErrDatasetEmbeddingMismatch.
func NewFinder(records []entities.Medication, vectors Vectors, opts ...Option) (*Finder, error) {
	n, err := checkAligned(records, vectors)
	if err != nil {
		return nil, err
	}

	f := &Finder{
		records: records,
		vectors: vectors,
		norms:   make([]float64, n),
		k:       DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(f)
	}

	for i := range f.norms {
		f.norms[i] = norm(vectors.Vector(i))
	}

	return f, nil
}

// checkAligned returns the number of vectors. A nil Vectors holds none.
func checkAligned(records []entities.Medication, vectors Vectors) (int, error) {
	n := 0
	if vectors != nil {
		n = vectors.Len()
	}
	if len(records) != n {
		return n, fmt.Errorf("%d medications, %d embeddings: %w", len(records), n, ErrDatasetEmbeddingMismatch)
	}
	return n, nil
}

// Len returns the number of medications.
func (f *Finder) Len() int {
	return len(f.records)
}

// PoolSize returns the candidate pool size.
func (f *Finder) PoolSize() int {
	return f.k
}

// Details returns the medication at index.
func (f *Finder) Details(index int) (entities.Medication, error) {
	if index < 0 || index >= len(f.records) {
		return entities.Medication{}, fmt.Errorf("index %d of %d: %w", index, len(f.records), ErrIndexOutOfRange)
	}
	return f.records[index], nil
}

// Alternatives ranks every other row by cosine similarity to row index, keeps
// the top K and returns those that share the active ingredient, dosage and
// form of the source but not its brand, most similar first. An empty result
// is not an error.
func (f *Finder) Alternatives(index int) ([]Alternative, error) {
	if index < 0 || index >= len(f.records) {
		return nil, fmt.Errorf("index %d of %d: %w", index, len(f.records), ErrIndexOutOfRange)
	}

	if f.cache != nil {
		if item := f.cache.Get(index); item != nil {
			return slices.Clone(item.Value()), nil
		}
	}

	result := f.compute(index)

	if f.cache != nil {
		f.cache.Set(index, result, ttlcache.DefaultTTL)
	}
	return slices.Clone(result), nil
}

func (f *Finder) compute(index int) []Alternative {
	query := f.vectors.Vector(index)
	queryNorm := f.norms[index]

	similarities := make([]float64, len(f.records))
	for i := range f.records {
		similarities[i] = cosine(query, f.vectors.Vector(i), queryNorm, f.norms[i])
	}

	pool := rank(similarities, index, f.k)

	source := f.records[index]
	result := make([]Alternative, 0)
	for _, i := range pool {
		if IsAlternative(source, f.records[i]) {
			result = append(result, Alternative{Medication: f.records[i], Similarity: similarities[i]})
		}
	}
	return result
}

// rank orders indices by descending similarity, ties in collection order,
// drops exclude and keeps the first k.
func rank(similarities []float64, exclude, k int) []int {
	order := make([]int, len(similarities))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(similarities[b], similarities[a])
	})

	pool := make([]int, 0, min(k, len(order)))
	for _, i := range order {
		if i == exclude {
			continue
		}
		if len(pool) == k {
			break
		}
		pool = append(pool, i)
	}
	return pool
}

// IsAlternative reports whether candidate can replace source: same active
// ingredient, same known dosage, same form and a different brand.
func IsAlternative(source, candidate entities.Medication) bool {
	if source.Dosage == nil || candidate.Dosage == nil {
		return false
	}
	return candidate.ActiveIngredient == source.ActiveIngredient &&
		*candidate.Dosage == *source.Dosage &&
		candidate.Form == source.Form &&
		candidate.Brand != source.Brand
}

// FindAlternatives runs a single query without building a Finder. k below 1
// uses DefaultPoolSize.
func FindAlternatives(index int, records []entities.Medication, vectors Vectors, k int) ([]entities.Medication, error) {
	f, err := NewFinder(records, vectors, WithPoolSize(k))
	if err != nil {
		return nil, err
	}

	alts, err := f.Alternatives(index)
	if err != nil {
		return nil, err
	}

	out := make([]entities.Medication, len(alts))
	for i, a := range alts {
		out[i] = a.Medication
	}
	return out, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
