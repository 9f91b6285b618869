// Package interfaces defines the core abstractions of the alternatives API
// so that handlers, the scheduler and health checks can be tested in isolation.
package interfaces

import (
	"net/http"
	"time"

	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// DataQualityReport summarises gaps in an enriched dataset and its embeddings.
type DataQualityReport struct {
	TotalRecords          int
	MissingDosage         int
	UnspecifiedForm       int
	UnspecifiedIngredient int
	UndefinedRate         int
	MissingPriceNoumea    int
	DuplicateFullNames    []string
	EmbeddingRows         int
	EmbeddingDim          int
	Aligned               bool
}

// HistogramBin counts records priced in [Lower, Upper). The last bin of a
// histogram also includes its upper bound.
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// DatasetStats is the summary served by the statistics endpoint.
type DatasetStats struct {
	Total          int            `json:"total"`
	ByRate         map[string]int `json:"byReimbursementRate"`
	PriceHistogram []HistogramBin `json:"priceNoumeaHistogram"`
}

// DataStore defines the contract for the served dataset. Reads see one
// consistent snapshot; updates swap the whole snapshot at once.
type DataStore interface {
	// GetDataset returns the current snapshot. Reads that must agree with
	// each other, such as a body and its ETag, go through one Dataset.
	GetDataset() Dataset

	// Data retrieval methods
	GetMedications() []entities.Medication
	GetMedication(index int) (entities.Medication, error)
	GetAlternatives(index int) ([]alternatives.Alternative, error)
	GetStats() DatasetStats
	GetFingerprint() string
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time
	GetLoadError() error

	// Data update methods
	UpdateData(medications []entities.Medication, store *embeddings.Store) error
	RecordLoadError(err error)
	BeginUpdate() bool
	EndUpdate()
}

// Dataset is one loaded, immutable dataset.
type Dataset interface {
	Medications() []entities.Medication
	Medication(index int) (entities.Medication, error)
	Alternatives(index int) ([]alternatives.Alternative, error)
	Stats() DatasetStats
	Fingerprint() string
}

// DatasetLoader loads the persisted enriched table and its embedding store.
type DatasetLoader interface {
	LoadDataset() ([]entities.Medication, *embeddings.Store, error)
}

// Scheduler defines the contract for the periodic dataset reload.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
type HTTPHandler interface {
	SearchMedications(w http.ResponseWriter, r *http.Request)
	GetMedication(w http.ResponseWriter, r *http.Request)
	GetAlternatives(w http.ResponseWriter, r *http.Request)
	GetStats(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the health status, its details and the HTTP status to serve
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled reload time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for input and dataset validation.
type DataValidator interface {
	// ValidateInput validates user search strings
	ValidateInput(input string) error

	// ValidateIndex parses a medication index path parameter
	ValidateIndex(input string) (int, error)

	// ReportDataQuality generates a data quality report for a loaded dataset
	ReportDataQuality(medications []entities.Medication, store *embeddings.Store) *DataQualityReport
}
