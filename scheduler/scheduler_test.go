package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// mockSchedulerDataStore records what the scheduler does to the data store
type mockSchedulerDataStore struct {
	mu          sync.Mutex
	medications []entities.Medication
	store       *embeddings.Store
	lastUpdated time.Time
	loadErr     error
	updating    bool
	updateCount int
}

func (m *mockSchedulerDataStore) GetMedications() []entities.Medication {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.medications
}

func (m *mockSchedulerDataStore) GetMedication(index int) (entities.Medication, error) {
	return entities.Medication{}, alternatives.ErrIndexOutOfRange
}

func (m *mockSchedulerDataStore) GetAlternatives(index int) ([]alternatives.Alternative, error) {
	return nil, alternatives.ErrIndexOutOfRange
}

// GetDataset is not read by this package
func (m *mockSchedulerDataStore) GetDataset() interfaces.Dataset {
	return nil
}

func (m *mockSchedulerDataStore) GetStats() interfaces.DatasetStats {
	return interfaces.DatasetStats{}
}

func (m *mockSchedulerDataStore) GetFingerprint() string {
	return "0"
}

func (m *mockSchedulerDataStore) GetLastUpdated() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdated
}

func (m *mockSchedulerDataStore) IsUpdating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updating
}

func (m *mockSchedulerDataStore) GetServerStartTime() time.Time {
	return time.Time{}
}

func (m *mockSchedulerDataStore) GetLoadError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

func (m *mockSchedulerDataStore) UpdateData(medications []entities.Medication, store *embeddings.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(medications) != store.Len() {
		m.loadErr = alternatives.ErrDatasetEmbeddingMismatch
		return m.loadErr
	}
	m.medications = medications
	m.store = store
	m.loadErr = nil
	m.lastUpdated = time.Now()
	m.updateCount++
	return nil
}

func (m *mockSchedulerDataStore) RecordLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *mockSchedulerDataStore) BeginUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *mockSchedulerDataStore) EndUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updating = false
}

// mockSchedulerLoader returns a small aligned dataset unless told otherwise
type mockSchedulerLoader struct {
	mu         sync.Mutex
	loadCount  int
	shouldFail bool
	misaligned bool
	names      []string
}

var errLoadFailed = errors.New("load failed")

func (m *mockSchedulerLoader) LoadDataset() ([]entities.Medication, *embeddings.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCount++
	if m.shouldFail {
		return nil, nil, errLoadFailed
	}

	names := m.names
	if names == nil {
		names = []string{"DOLIPRANE 500mg cpr", "PARACETAMOL BIOGARAN 500mg cpr"}
	}

	dosage := "500mg"
	meds := make([]entities.Medication, len(names))
	vectors := make([][]float32, len(names))
	for i, name := range names {
		meds[i] = entities.Medication{
			Index:             i,
			FullName:          name,
			ActiveIngredient:  "PARACETAMOL",
			ReimbursementRate: "65%",
			Dosage:            &dosage,
			Form:              "Tablet",
		}
		vectors[i] = []float32{1, float32(i)}
	}
	if m.misaligned {
		vectors = vectors[:len(vectors)-1]
	}

	store, err := embeddings.NewStore(vectors)
	return meds, store, err
}

func TestScheduler_SuccessfulStart(t *testing.T) {
	store := &mockSchedulerDataStore{}
	loader := &mockSchedulerLoader{}

	scheduler := NewScheduler(store, loader, "06:00;18:00")
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}
	defer scheduler.Stop()

	if store.updateCount != 1 {
		t.Errorf("Expected 1 update, got %d", store.updateCount)
	}
	if loader.loadCount != 1 {
		t.Errorf("Expected 1 load call, got %d", loader.loadCount)
	}
	if got := len(store.GetMedications()); got != 2 {
		t.Errorf("Expected 2 medications, got %d", got)
	}
	if store.IsUpdating() {
		t.Error("Update flag should be released after the load")
	}
	if err := store.GetLoadError(); err != nil {
		t.Errorf("Expected no load error, got %v", err)
	}
}

func TestScheduler_InitialLoadFailure(t *testing.T) {
	store := &mockSchedulerDataStore{}
	loader := &mockSchedulerLoader{shouldFail: true}

	scheduler := NewScheduler(store, loader, "06:00;18:00")

	// The server keeps running and reports the failure through health
	if err := scheduler.Start(); err != nil {
		t.Fatalf("Start should not fail on a load error: %v", err)
	}
	defer scheduler.Stop()

	if store.updateCount != 0 {
		t.Errorf("Expected 0 updates due to failure, got %d", store.updateCount)
	}
	if !errors.Is(store.GetLoadError(), errLoadFailed) {
		t.Errorf("Expected load error to be recorded, got %v", store.GetLoadError())
	}
}

func TestScheduler_UpdateDataErrors(t *testing.T) {
	tests := []struct {
		name    string
		loader  *mockSchedulerLoader
		wantErr error
	}{
		{"load failure", &mockSchedulerLoader{shouldFail: true}, errLoadFailed},
		{"misaligned embeddings", &mockSchedulerLoader{misaligned: true}, alternatives.ErrDatasetEmbeddingMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockSchedulerDataStore{}
			scheduler := NewScheduler(store, tt.loader, "06:00")

			err := scheduler.updateData()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("updateData() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(store.GetLoadError(), tt.wantErr) {
				t.Errorf("GetLoadError() = %v, want %v", store.GetLoadError(), tt.wantErr)
			}
			if store.IsUpdating() {
				t.Error("Update flag should be released after a failure")
			}
		})
	}
}

func TestScheduler_ConcurrentUpdatePrevention(t *testing.T) {
	store := &mockSchedulerDataStore{}
	loader := &mockSchedulerLoader{}

	scheduler := NewScheduler(store, loader, "06:00;18:00")

	// Simulate an update in progress
	store.BeginUpdate()

	if err := scheduler.updateData(); err != nil {
		t.Errorf("Unexpected error with concurrent update: %v", err)
	}
	if loader.loadCount != 0 {
		t.Errorf("Expected no load while another update runs, got %d", loader.loadCount)
	}
	if store.updateCount != 0 {
		t.Errorf("Expected 0 updates due to concurrent update, got %d", store.updateCount)
	}
}

func TestScheduler_ReloadReplacesDataset(t *testing.T) {
	store := &mockSchedulerDataStore{}
	loader := &mockSchedulerLoader{names: []string{"XANAX 0,25mg cpr"}}

	scheduler := NewScheduler(store, loader, "06:00;18:00")
	if err := scheduler.updateData(); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	loader.names = []string{"DOLIPRANE 1000mg cpr", "EFFERALGAN 1000mg cpr", "DAFALGAN 1000mg gél"}
	if err := scheduler.updateData(); err != nil {
		t.Fatalf("Second update failed: %v", err)
	}

	meds := store.GetMedications()
	if len(meds) != 3 {
		t.Fatalf("Expected 3 medications after reload, got %d", len(meds))
	}
	for _, m := range meds {
		if m.FullName == "XANAX 0,25mg cpr" {
			t.Error("Old dataset should be replaced, not merged")
		}
	}
}

func TestScheduler_FailedReloadAfterSuccess(t *testing.T) {
	store := &mockSchedulerDataStore{}
	loader := &mockSchedulerLoader{}

	scheduler := NewScheduler(store, loader, "06:00")
	if err := scheduler.updateData(); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	loader.shouldFail = true
	if err := scheduler.updateData(); err == nil {
		t.Fatal("Expected the second update to fail")
	}

	if got := len(store.GetMedications()); got != 2 {
		t.Errorf("Previous dataset should still be served, got %d medications", got)
	}
	if store.GetLoadError() == nil {
		t.Error("Failed reload should be recorded")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	store := &mockSchedulerDataStore{}
	scheduler := NewScheduler(store, &mockSchedulerLoader{}, "25:99")

	if err := scheduler.Start(); err == nil {
		scheduler.Stop()
		t.Fatal("Expected an error for an invalid schedule")
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := NewScheduler(&mockSchedulerDataStore{}, &mockSchedulerLoader{}, "06:00")
	scheduler.monitorInterval = 5 * time.Millisecond

	if err := scheduler.Start(); err != nil {
		t.Fatalf("Unexpected error during start: %v", err)
	}

	// Let the monitor tick at least once
	time.Sleep(20 * time.Millisecond)

	scheduler.Stop()
	scheduler.Stop()
}
