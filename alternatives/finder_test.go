package alternatives

import (
	"errors"
	"testing"
	"time"

	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

func strPtr(s string) *string { return &s }

func med(brand, ingredient string, dosage *string, form string) entities.Medication {
	return entities.Medication{Brand: brand, FullName: brand, ActiveIngredient: ingredient, Dosage: dosage, Form: form}
}

func mustStore(t *testing.T, vectors [][]float32) *embeddings.Store {
	t.Helper()
	s, err := embeddings.NewStore(vectors)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

// countingVectors records how many times rows are read.
type countingVectors struct {
	*embeddings.Store
	reads int
}

func (c *countingVectors) Vector(i int) []float32 {
	c.reads++
	return c.Store.Vector(i)
}

func brands(alts []Alternative) []string {
	out := make([]string, len(alts))
	for i, a := range alts {
		out[i] = a.Brand
	}
	return out
}

func TestAlternativesDolipraneBiogaran(t *testing.T) {
	records := []entities.Medication{
		med("DOLIPRANE", "PARACETAMOL", strPtr("500mg"), "Tablet"),
		med("PARACETAMOL BIOGARAN", "PARACETAMOL", strPtr("500mg"), "Tablet"),
		med("ADVIL", "IBUPROFENE", strPtr("200mg"), "Tablet"),
	}
	store := mustStore(t, [][]float32{{1, 0.1, 0}, {1, 0.12, 0}, {0, 0, 1}})

	f, err := NewFinder(records, store)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}

	for _, tc := range []struct{ index, want int }{{0, 1}, {1, 0}} {
		alts, err := f.Alternatives(tc.index)
		if err != nil {
			t.Fatalf("Alternatives(%d): %v", tc.index, err)
		}
		if len(alts) != 1 || alts[0].Brand != records[tc.want].Brand {
			t.Fatalf("Alternatives(%d) = %v, want [%s]", tc.index, brands(alts), records[tc.want].Brand)
		}
		if alts[0].Similarity <= 0.9 {
			t.Errorf("similarity = %f, expected close to 1", alts[0].Similarity)
		}
	}
}

func TestAlternativesIgnoresMoreSimilarDifferentDosage(t *testing.T) {
	records := []entities.Medication{
		med("DOLIPRANE", "PARACETAMOL", strPtr("500mg"), "Tablet"),
		med("DOLIPRANE FORT", "PARACETAMOL", strPtr("1g"), "Tablet"),
		med("EFFERALGAN", "PARACETAMOL", strPtr("500mg"), "Tablet Effervescent"),
	}
	// the different-dosage row is the nearest neighbour
	store := mustStore(t, [][]float32{{1, 0}, {1, 0.01}, {0.5, 0.5}})

	alts, err := FindAlternatives(0, records, store, 50)
	if err != nil {
		t.Fatalf("FindAlternatives: %v", err)
	}
	if alts == nil || len(alts) != 0 {
		t.Errorf("expected an empty, non-nil result, got %v", alts)
	}
}

func TestAlternativesRules(t *testing.T) {
	source := med("DOLIPRANE", "PARACETAMOL", strPtr("500mg"), "Tablet")

	tests := []struct {
		name      string
		candidate entities.Medication
		want      bool
	}{
		{"generic", med("BIOGARAN", "PARACETAMOL", strPtr("500mg"), "Tablet"), true},
		{"same brand", med("DOLIPRANE", "PARACETAMOL", strPtr("500mg"), "Tablet"), false},
		{"other ingredient", med("ADVIL", "IBUPROFENE", strPtr("500mg"), "Tablet"), false},
		{"other dosage", med("BIOGARAN", "PARACETAMOL", strPtr("1g"), "Tablet"), false},
		{"other form", med("BIOGARAN", "PARACETAMOL", strPtr("500mg"), "Tablet Effervescent"), false},
		{"missing dosage", med("BIOGARAN", "PARACETAMOL", nil, "Tablet"), false},
		{"case differs", med("BIOGARAN", "paracetamol", strPtr("500mg"), "Tablet"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAlternative(source, tt.candidate); got != tt.want {
				t.Errorf("IsAlternative() = %v, want %v", got, tt.want)
			}
		})
	}

	noDosage := med("SERUM A", "SODIUM", nil, "Solution")
	if IsAlternative(noDosage, med("SERUM B", "SODIUM", nil, "Solution")) {
		t.Error("absent dosages must never match")
	}
}

func TestAlternativesOrderAndPoolBound(t *testing.T) {
	records := []entities.Medication{
		med("SOURCE", "X", strPtr("5mg"), "Tablet"),
		med("FAR", "X", strPtr("5mg"), "Tablet"),
		med("NEAR", "X", strPtr("5mg"), "Tablet"),
		med("MID", "X", strPtr("5mg"), "Tablet"),
		med("TIE", "X", strPtr("5mg"), "Tablet"),
	}
	store := mustStore(t, [][]float32{
		{1, 0},
		{0, 1},
		{1, 0.05},
		{1, 0.5},
		{1, 0.05},
	})

	f, err := NewFinder(records, store)
	if err != nil {
		t.Fatal(err)
	}
	alts, err := f.Alternatives(0)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"NEAR", "TIE", "MID", "FAR"}
	got := brands(alts)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	// a pool of two never reaches MID or FAR
	small, err := NewFinder(records, store, WithPoolSize(2))
	if err != nil {
		t.Fatal(err)
	}
	alts, _ = small.Alternatives(0)
	if got := brands(alts); len(got) != 2 || got[0] != "NEAR" || got[1] != "TIE" {
		t.Errorf("pool of 2 returned %v", got)
	}
}

func TestAlternativesSelfExcludedEvenWhenNotFirst(t *testing.T) {
	// both rows share one vector so the query ranks second; its own row is
	// the one dropped
	records := []entities.Medication{
		med("A", "X", strPtr("5mg"), "Tablet"),
		med("B", "X", strPtr("5mg"), "Tablet"),
	}
	store := mustStore(t, [][]float32{{1, 0}, {1, 0}})

	alts, err := FindAlternatives(1, records, store, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(alts) != 1 || alts[0].Brand != "A" {
		t.Errorf("got %v", alts)
	}
}

func TestAlternativesErrors(t *testing.T) {
	records := []entities.Medication{
		med("A", "X", strPtr("5mg"), "Tablet"),
		med("B", "X", strPtr("5mg"), "Tablet"),
	}

	if _, err := NewFinder(records, mustStore(t, [][]float32{{1}})); !errors.Is(err, ErrDatasetEmbeddingMismatch) {
		t.Errorf("expected ErrDatasetEmbeddingMismatch, got %v", err)
	}
	if _, err := FindAlternatives(0, records, mustStore(t, [][]float32{{1}, {1}, {1}}), 50); !errors.Is(err, ErrDatasetEmbeddingMismatch) {
		t.Errorf("expected ErrDatasetEmbeddingMismatch, got %v", err)
	}
	if _, err := NewFinder(records, nil); !errors.Is(err, ErrDatasetEmbeddingMismatch) {
		t.Errorf("expected ErrDatasetEmbeddingMismatch for missing store, got %v", err)
	}

	f, err := NewFinder(records, mustStore(t, [][]float32{{1}, {1}}))
	if err != nil {
		t.Fatal(err)
	}
	for _, index := range []int{-1, 2, 100} {
		if _, err := f.Alternatives(index); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Alternatives(%d): expected ErrIndexOutOfRange, got %v", index, err)
		}
		if _, err := f.Details(index); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Details(%d): expected ErrIndexOutOfRange, got %v", index, err)
		}
	}
}

func TestAlternativesZeroVector(t *testing.T) {
	records := []entities.Medication{
		med("A", "X", strPtr("5mg"), "Tablet"),
		med("B", "X", strPtr("5mg"), "Tablet"),
	}
	store := mustStore(t, [][]float32{{0, 0}, {1, 0}})

	alts, err := FindAlternatives(0, records, store, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(alts) != 1 {
		t.Errorf("expected B as the only candidate, got %v", alts)
	}
}

func TestAlternativesCache(t *testing.T) {
	records := []entities.Medication{
		med("A", "X", strPtr("5mg"), "Tablet"),
		med("B", "X", strPtr("5mg"), "Tablet"),
		med("C", "X", strPtr("5mg"), "Tablet"),
	}
	vectors := &countingVectors{Store: mustStore(t, [][]float32{{1, 0}, {1, 0.1}, {0, 1}})}

	f, err := NewFinder(records, vectors, WithCache(time.Minute, 10))
	if err != nil {
		t.Fatal(err)
	}

	first, err := f.Alternatives(0)
	if err != nil {
		t.Fatal(err)
	}
	reads := vectors.reads

	first[0].Brand = "MUTATED"

	second, err := f.Alternatives(0)
	if err != nil {
		t.Fatal(err)
	}
	if vectors.reads != reads {
		t.Errorf("cached query read %d vectors", vectors.reads-reads)
	}
	if second[0].Brand != "B" {
		t.Errorf("cached result was modified through a returned slice: %v", brands(second))
	}
}

func TestDetails(t *testing.T) {
	records := []entities.Medication{med("A", "X", nil, "Tablet")}
	f, err := NewFinder(records, mustStore(t, [][]float32{{1}}))
	if err != nil {
		t.Fatal(err)
	}

	m, err := f.Details(0)
	if err != nil || m.Brand != "A" {
		t.Errorf("Details(0) = %+v, %v", m, err)
	}
	if f.Len() != 1 || f.PoolSize() != DefaultPoolSize {
		t.Errorf("Len=%d PoolSize=%d", f.Len(), f.PoolSize())
	}
}

func TestEmptyDatasetWithoutVectors(t *testing.T) {
	f, err := NewFinder(nil, nil)
	if err != nil {
		t.Fatalf("NewFinder(nil, nil): %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.Len())
	}
	if _, err := f.Alternatives(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

	if _, err := FindAlternatives(0, nil, nil, 50); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("FindAlternatives on an empty dataset: expected ErrIndexOutOfRange, got %v", err)
	}

	records := []entities.Medication{med("DOLIPRANE", "PARACETAMOL", strPtr("500mg"), "Tablet")}
	if _, err := NewFinder(records, nil); !errors.Is(err, ErrDatasetEmbeddingMismatch) {
		t.Errorf("records without vectors: expected ErrDatasetEmbeddingMismatch, got %v", err)
	}
}
