package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// ============================================================================
// MOCK DATA STORE
// ============================================================================

type MockDataStore struct {
	medications []entities.Medication
	finder      *alternatives.Finder
	finderErr   error
	stats       interfaces.DatasetStats
	fingerprint string
	lastUpdated time.Time
	startTime   time.Time
	loadErr     error
	queries     int
}

func (m *MockDataStore) GetMedications() []entities.Medication {
	return m.medications
}

func (m *MockDataStore) GetMedication(index int) (entities.Medication, error) {
	if index < 0 || index >= len(m.medications) {
		return entities.Medication{}, fmt.Errorf("%w: %d", alternatives.ErrIndexOutOfRange, index)
	}
	return m.medications[index], nil
}

func (m *MockDataStore) GetAlternatives(index int) ([]alternatives.Alternative, error) {
	m.queries++
	if index < 0 || index >= len(m.medications) {
		return nil, fmt.Errorf("%w: %d", alternatives.ErrIndexOutOfRange, index)
	}
	if m.finder == nil {
		return nil, m.finderErr
	}
	return m.finder.Alternatives(index)
}

// GetDataset serves the mock itself as its only snapshot
func (m *MockDataStore) GetDataset() interfaces.Dataset { return m }

func (m *MockDataStore) Medications() []entities.Medication { return m.GetMedications() }
func (m *MockDataStore) Medication(index int) (entities.Medication, error) {
	return m.GetMedication(index)
}
func (m *MockDataStore) Alternatives(index int) ([]alternatives.Alternative, error) {
	return m.GetAlternatives(index)
}
func (m *MockDataStore) Stats() interfaces.DatasetStats { return m.stats }
func (m *MockDataStore) Fingerprint() string             { return m.fingerprint }

func (m *MockDataStore) GetStats() interfaces.DatasetStats { return m.stats }
func (m *MockDataStore) GetFingerprint() string             { return m.fingerprint }
func (m *MockDataStore) GetLastUpdated() time.Time          { return m.lastUpdated }
func (m *MockDataStore) IsUpdating() bool                   { return false }
func (m *MockDataStore) GetServerStartTime() time.Time      { return m.startTime }
func (m *MockDataStore) GetLoadError() error                { return m.loadErr }
func (m *MockDataStore) RecordLoadError(err error)          { m.loadErr = err }
func (m *MockDataStore) BeginUpdate() bool                  { return true }
func (m *MockDataStore) EndUpdate()                         {}

func (m *MockDataStore) UpdateData(medications []entities.Medication, store *embeddings.Store) error {
	return nil
}

// MockDataStoreBuilder builds a MockDataStore over a real finder
type MockDataStoreBuilder struct {
	medications []entities.Medication
	vectors     [][]float32
	stats       interfaces.DatasetStats
	fingerprint string
	startTime   time.Time
	misaligned  bool
}

func NewMockDataStoreBuilder() *MockDataStoreBuilder {
	return &MockDataStoreBuilder{fingerprint: "5f3c2a9e1b7d4c80"}
}

func (b *MockDataStoreBuilder) WithMedications(medications []entities.Medication, vectors [][]float32) *MockDataStoreBuilder {
	b.medications = medications
	b.vectors = vectors
	return b
}

func (b *MockDataStoreBuilder) WithStats(stats interfaces.DatasetStats) *MockDataStoreBuilder {
	b.stats = stats
	return b
}

func (b *MockDataStoreBuilder) WithFingerprint(fingerprint string) *MockDataStoreBuilder {
	b.fingerprint = fingerprint
	return b
}

func (b *MockDataStoreBuilder) WithServerStartTime(t time.Time) *MockDataStoreBuilder {
	b.startTime = t
	return b
}

// Misaligned drops the last embedding so alternative queries fail
func (b *MockDataStoreBuilder) Misaligned() *MockDataStoreBuilder {
	b.misaligned = true
	return b
}

func (b *MockDataStoreBuilder) Build() *MockDataStore {
	m := &MockDataStore{
		medications: b.medications,
		stats:       b.stats,
		fingerprint: b.fingerprint,
		lastUpdated: time.Now(),
		startTime:   b.startTime,
	}

	vectors := b.vectors
	if b.misaligned && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	store, err := embeddings.NewStore(vectors)
	if err != nil {
		panic(err)
	}
	m.finder, m.finderErr = alternatives.NewFinder(b.medications, store)
	if m.finderErr != nil {
		m.finder = nil
	}
	return m
}

// ============================================================================
// MOCK HEALTH CHECKER
// ============================================================================

type MockHealthChecker struct {
	status     string
	data       map[string]any
	httpStatus int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.data, m.httpStatus
}

func (m *MockHealthChecker) CalculateNextUpdate() time.Time {
	return time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
}

func healthyChecker() *MockHealthChecker {
	return &MockHealthChecker{
		status:     "healthy",
		data:       map[string]any{"medications": 4},
		httpStatus: http.StatusOK,
	}
}

// ============================================================================
// TEST DATA
// ============================================================================

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

// testMedications returns two interchangeable paracetamol tablets, a
// different dosage of the same ingredient and an unrelated unpriced cream.
func testMedications() ([]entities.Medication, [][]float32) {
	meds := []entities.Medication{
		{
			Index: 0, FullName: "DOLIPRANE 500mg cpr", ShortName: "DOLIPRANE 500",
			ActiveIngredient: "PARACETAMOL", PriceNoumea: floatPtr(250), PriceBrousse: floatPtr(270),
			ReimbursementCode: intPtr(3), ReimbursementRate: "65%",
			Brand: "DOLIPRANE", Dosage: strPtr("500mg"), Form: "Tablet",
		},
		{
			Index: 1, FullName: "PARACETAMOL BIOGARAN 500mg cpr", ShortName: "PARACETAMOL BGR",
			ActiveIngredient: "PARACETAMOL", PriceNoumea: floatPtr(180),
			ReimbursementCode: intPtr(3), ReimbursementRate: "65%",
			Brand: "PARACETAMOL BIOGARAN", Dosage: strPtr("500mg"), Form: "Tablet",
		},
		{
			Index: 2, FullName: "DOLIPRANE 1000mg cpr", ShortName: "DOLIPRANE 1000",
			ActiveIngredient: "PARACETAMOL", PriceNoumea: floatPtr(410),
			ReimbursementCode: intPtr(5), ReimbursementRate: "100%",
			Brand: "DOLIPRANE", Dosage: strPtr("1000mg"), Form: "Tablet",
		},
		{
			Index: 3, FullName: "BIAFINE crème", ShortName: "BIAFINE",
			ActiveIngredient: "TROLAMINE", ReimbursementRate: "Undefined",
			Brand: "BIAFINE", Form: "Cream",
		},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0.99, 0.01, 0},
		{0, 0, 1},
	}
	return meds, vectors
}
