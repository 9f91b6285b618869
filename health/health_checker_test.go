package health

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// MockHealthDataStore for testing
type MockHealthDataStore struct {
	medications []entities.Medication
	lastUpdated time.Time
	isUpdating  bool
	loadErr     error
}

func (m *MockHealthDataStore) GetMedications() []entities.Medication {
	return m.medications
}

func (m *MockHealthDataStore) GetMedication(index int) (entities.Medication, error) {
	return entities.Medication{}, alternatives.ErrIndexOutOfRange
}

func (m *MockHealthDataStore) GetAlternatives(index int) ([]alternatives.Alternative, error) {
	return nil, alternatives.ErrIndexOutOfRange
}

// GetDataset is not read by this package
func (m *MockHealthDataStore) GetDataset() interfaces.Dataset {
	return nil
}

func (m *MockHealthDataStore) GetStats() interfaces.DatasetStats {
	return interfaces.DatasetStats{}
}

func (m *MockHealthDataStore) GetFingerprint() string {
	return "abc123"
}

func (m *MockHealthDataStore) GetLastUpdated() time.Time {
	return m.lastUpdated
}

func (m *MockHealthDataStore) IsUpdating() bool {
	return m.isUpdating
}

func (m *MockHealthDataStore) GetServerStartTime() time.Time {
	return time.Time{}
}

func (m *MockHealthDataStore) GetLoadError() error {
	return m.loadErr
}

func (m *MockHealthDataStore) UpdateData(medications []entities.Medication, store *embeddings.Store) error {
	// Not used in health tests
	return nil
}

func (m *MockHealthDataStore) RecordLoadError(err error) {
	m.loadErr = err
}

func (m *MockHealthDataStore) BeginUpdate() bool {
	return true
}

func (m *MockHealthDataStore) EndUpdate() {
	// Not used in health tests
}

func someMedications() []entities.Medication {
	return []entities.Medication{
		{Index: 0, FullName: "DOLIPRANE 500mg cpr"},
		{Index: 1, FullName: "PARACETAMOL BIOGARAN 500mg cpr"},
	}
}

func TestNewHealthChecker(t *testing.T) {
	checker := NewHealthChecker(&MockHealthDataStore{}, "06:00;18:00")
	if checker == nil {
		t.Fatal("NewHealthChecker returned nil")
	}

	impl, ok := checker.(*HealthCheckerImpl)
	if !ok {
		t.Fatal("NewHealthChecker should return *HealthCheckerImpl")
	}
	if len(impl.reloadAt) != 2 {
		t.Errorf("Expected 2 reload times, got %d", len(impl.reloadAt))
	}
}

func TestHealthCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		store      *MockHealthDataStore
		wantStatus string
		wantHTTP   int
	}{
		{
			name:       "healthy",
			store:      &MockHealthDataStore{medications: someMedications(), lastUpdated: time.Now().Add(-time.Hour)},
			wantStatus: "healthy",
			wantHTTP:   http.StatusOK,
		},
		{
			name:       "no data",
			store:      &MockHealthDataStore{lastUpdated: time.Now()},
			wantStatus: "unhealthy",
			wantHTTP:   http.StatusServiceUnavailable,
		},
		{
			name:       "data older than two days",
			store:      &MockHealthDataStore{medications: someMedications(), lastUpdated: time.Now().Add(-50 * time.Hour)},
			wantStatus: "unhealthy",
			wantHTTP:   http.StatusServiceUnavailable,
		},
		{
			name:       "data older than a day",
			store:      &MockHealthDataStore{medications: someMedications(), lastUpdated: time.Now().Add(-30 * time.Hour)},
			wantStatus: "degraded",
			wantHTTP:   http.StatusServiceUnavailable,
		},
		{
			name: "last reload failed",
			store: &MockHealthDataStore{
				medications: someMedications(),
				lastUpdated: time.Now(),
				loadErr:     alternatives.ErrDatasetEmbeddingMismatch,
			},
			wantStatus: "degraded",
			wantHTTP:   http.StatusServiceUnavailable,
		},
		{
			name:       "long running update",
			store:      &MockHealthDataStore{medications: someMedications(), lastUpdated: time.Now().Add(-7 * time.Hour), isUpdating: true},
			wantStatus: "degraded",
			wantHTTP:   http.StatusServiceUnavailable,
		},
		{
			name:       "recent update in progress",
			store:      &MockHealthDataStore{medications: someMedications(), lastUpdated: time.Now().Add(-time.Hour), isUpdating: true},
			wantStatus: "healthy",
			wantHTTP:   http.StatusOK,
		},
		{
			name:       "never loaded",
			store:      &MockHealthDataStore{},
			wantStatus: "unhealthy",
			wantHTTP:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(tt.store, "06:00;18:00")
			status, _, httpStatus := checker.HealthCheck()

			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if httpStatus != tt.wantHTTP {
				t.Errorf("httpStatus = %d, want %d", httpStatus, tt.wantHTTP)
			}
		})
	}
}

func TestHealthCheckData(t *testing.T) {
	store := &MockHealthDataStore{
		medications: someMedications(),
		lastUpdated: time.Now().Add(-90 * time.Minute),
	}
	checker := NewHealthChecker(store, "06:00;18:00")

	_, data, _ := checker.HealthCheck()

	if data["medications"] != 2 {
		t.Errorf("medications = %v, want 2", data["medications"])
	}
	if data["is_updating"] != false {
		t.Errorf("is_updating = %v, want false", data["is_updating"])
	}
	if data["fingerprint"] != "abc123" {
		t.Errorf("fingerprint = %v, want abc123", data["fingerprint"])
	}
	if age, ok := data["data_age_hours"].(float64); !ok || age != 1.5 {
		t.Errorf("data_age_hours = %v, want 1.5", data["data_age_hours"])
	}
	if _, ok := data["last_load_error"]; ok {
		t.Error("last_load_error should be absent when the last reload succeeded")
	}

	nextUpdate, ok := data["next_update"].(string)
	if !ok {
		t.Fatal("next_update should be a string")
	}
	if _, err := time.Parse(time.RFC3339, nextUpdate); err != nil {
		t.Errorf("next_update should be RFC3339: %v", err)
	}

	store.loadErr = errors.New("input file not found: data/embeddings.npy")
	_, data, _ = checker.HealthCheck()
	if data["last_load_error"] != "input file not found: data/embeddings.npy" {
		t.Errorf("last_load_error = %v", data["last_load_error"])
	}
}

func TestNextUpdateAfter(t *testing.T) {
	loc := time.UTC
	day := func(d, h, m int) time.Time { return time.Date(2024, 3, d, h, m, 0, 0, loc) }

	tests := []struct {
		name     string
		schedule string
		now      time.Time
		want     time.Time
	}{
		{"before first reload", "06:00;18:00", day(10, 3, 0), day(10, 6, 0)},
		{"between reloads", "06:00;18:00", day(10, 12, 0), day(10, 18, 0)},
		{"exactly at a reload", "06:00;18:00", day(10, 6, 0), day(10, 18, 0)},
		{"after last reload", "06:00;18:00", day(10, 20, 0), day(11, 6, 0)},
		{"unsorted schedule", "18:00; 06:00", day(10, 12, 0), day(10, 18, 0)},
		{"single reload with minutes", "04:30", day(10, 4, 45), day(11, 4, 30)},
		{"end of month", "06:00", time.Date(2024, 3, 31, 22, 0, 0, 0, loc), time.Date(2024, 4, 1, 6, 0, 0, 0, loc)},
		{"invalid schedule falls back", "nope", day(10, 12, 0), day(10, 18, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(&MockHealthDataStore{}, tt.schedule).(*HealthCheckerImpl)
			if got := checker.nextUpdateAfter(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextUpdateAfter(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestCalculateNextUpdateIsInTheFuture(t *testing.T) {
	checker := NewHealthChecker(&MockHealthDataStore{}, "06:00;18:00")

	next := checker.CalculateNextUpdate()
	if !next.After(time.Now()) {
		t.Errorf("next update %v should be in the future", next)
	}
	if next.After(time.Now().Add(25 * time.Hour)) {
		t.Errorf("next update %v should be within a day", next)
	}
}
