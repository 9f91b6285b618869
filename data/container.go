// Package data holds the served dataset: the enriched medications and the
// alternative finder built over their embeddings, swapped atomically so that
// reloads never disturb queries in flight.
package data

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var (
	_ interfaces.DataStore = (*DataContainer)(nil)
	_ interfaces.Dataset   = (*snapshot)(nil)
)

// snapshot is one loaded dataset. It is never modified once stored.
type snapshot struct {
	medications []entities.Medication
	finder      *alternatives.Finder // nil when the embeddings could not be aligned
	finderErr   error
	stats       interfaces.DatasetStats
	fingerprint string
	loadedAt    time.Time
}

type loadError struct {
	err error
}

// DataContainer serves the current snapshot with atomic pointers for
// zero-downtime updates.
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	loadErr         atomic.Pointer[loadError]
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time

	poolSize      int
	cacheTTL      time.Duration
	cacheCapacity uint64
}

// Option configures a DataContainer.
type Option func(*DataContainer)

// WithPoolSize sets the candidate pool size of every finder built.
func WithPoolSize(k int) Option {
	return func(dc *DataContainer) { dc.poolSize = k }
}

// WithAlternativesCache memoises alternative queries per dataset.
func WithAlternativesCache(ttl time.Duration, capacity uint64) Option {
	return func(dc *DataContainer) {
		dc.cacheTTL = ttl
		dc.cacheCapacity = capacity
	}
}

// NewDataContainer creates a new DataContainer with an empty dataset.
func NewDataContainer(opts ...Option) *DataContainer {
	dc := &DataContainer{poolSize: alternatives.DefaultPoolSize}
	for _, opt := range opts {
		opt(dc)
	}

	empty, _ := dc.build(make([]entities.Medication, 0), nil, time.Time{})
	dc.current.Store(empty)
	dc.serverStartTime.Store(time.Time{})
	return dc
}

func (dc *DataContainer) build(medications []entities.Medication, store *embeddings.Store, at time.Time) (*snapshot, error) {
	snap := &snapshot{
		medications: medications,
		stats:       ComputeStats(medications),
		fingerprint: fingerprint(medications, store),
		loadedAt:    at,
	}

	opts := []alternatives.Option{alternatives.WithPoolSize(dc.poolSize)}
	if dc.cacheTTL > 0 {
		opts = append(opts, alternatives.WithCache(dc.cacheTTL, dc.cacheCapacity))
	}

	var vectors alternatives.Vectors
	if store != nil {
		vectors = store
	}
	finder, err := alternatives.NewFinder(medications, vectors, opts...)
	if err != nil {
		snap.finderErr = err
		return snap, err
	}
	snap.finder = finder
	return snap, nil
}

// fingerprint identifies the content of a dataset: the enriched rows and the
// embedding store.
func fingerprint(medications []entities.Medication, store *embeddings.Store) string {
	d := xxhash.New()
	for _, m := range medications {
		for _, field := range []string{
			m.FullName, m.ShortName, m.ActiveIngredient, m.ApplicationDate,
			m.ReimbursementRate, m.Brand, m.Form,
			optionalString(m.Dosage), optionalFloat(m.PriceBrousse), optionalFloat(m.PriceNoumea),
		} {
			_, _ = d.WriteString(field)
			_, _ = d.WriteString("\x1f")
		}
		_, _ = d.WriteString("\x1e")
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], store.Fingerprint())
	_, _ = d.Write(buf[:])
	return strconv.FormatUint(d.Sum64(), 16)
}

func optionalString(s *string) string {
	if s == nil {
		return "\x00"
	}
	return *s
}

func optionalFloat(f *float64) string {
	if f == nil {
		return "\x00"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func (dc *DataContainer) load() *snapshot {
	return dc.current.Load()
}

// Medications returns the snapshot's medications. The slice is shared and
// must not be modified.
func (s *snapshot) Medications() []entities.Medication {
	return s.medications
}

// Medication returns the medication at index.
func (s *snapshot) Medication(index int) (entities.Medication, error) {
	if index < 0 || index >= len(s.medications) {
		return entities.Medication{}, fmt.Errorf("index %d of %d: %w", index, len(s.medications), alternatives.ErrIndexOutOfRange)
	}
	return s.medications[index], nil
}

// Alternatives answers an alternative query. When the dataset could not be
// aligned with its embeddings every query fails with
// ErrDatasetEmbeddingMismatch.
func (s *snapshot) Alternatives(index int) ([]alternatives.Alternative, error) {
	if s.finder == nil {
		if index < 0 || index >= len(s.medications) {
			return nil, fmt.Errorf("index %d of %d: %w", index, len(s.medications), alternatives.ErrIndexOutOfRange)
		}
		return nil, s.finderErr
	}
	return s.finder.Alternatives(index)
}

func (s *snapshot) Stats() interfaces.DatasetStats { return s.stats }
func (s *snapshot) Fingerprint() string             { return s.fingerprint }

// GetDataset returns the current snapshot.
func (dc *DataContainer) GetDataset() interfaces.Dataset {
	return dc.load()
}

// GetMedications returns the current medications.
func (dc *DataContainer) GetMedications() []entities.Medication {
	return dc.load().Medications()
}

// GetMedication returns the medication at index.
func (dc *DataContainer) GetMedication(index int) (entities.Medication, error) {
	return dc.load().Medication(index)
}

// GetAlternatives answers an alternative query on the current dataset.
func (dc *DataContainer) GetAlternatives(index int) ([]alternatives.Alternative, error) {
	return dc.load().Alternatives(index)
}

// GetStats returns the statistics of the current dataset.
func (dc *DataContainer) GetStats() interfaces.DatasetStats {
	return dc.load().stats
}

// GetFingerprint returns a content hash of the current dataset.
func (dc *DataContainer) GetFingerprint() string {
	return dc.load().fingerprint
}

// GetLastUpdated returns the timestamp of the last successful data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	return dc.load().loadedAt
}

// GetLoadError returns the error of the last update, nil when it succeeded.
func (dc *DataContainer) GetLoadError() error {
	if le := dc.loadErr.Load(); le != nil {
		return le.err
	}
	return nil
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateData builds a snapshot from medications and their embeddings and
// swaps it in. When they are not aligned, a previously healthy dataset keeps
// being served; without one, the misaligned dataset is served for details
// while alternative queries report the mismatch.
func (dc *DataContainer) UpdateData(medications []entities.Medication, store *embeddings.Store) error {
	snap, err := dc.build(medications, store, time.Now())
	if err != nil {
		dc.loadErr.Store(&loadError{err: err})
		if prev := dc.load(); prev.finder != nil && len(prev.medications) > 0 {
			logging.Error("Keeping previous dataset, new one is not aligned with its embeddings",
				"medications", len(medications), "embeddings", store.Len(), "error", err)
			return err
		}
		logging.Error("Serving dataset without alternatives",
			"medications", len(medications), "embeddings", store.Len(), "error", err)
		dc.current.Store(snap)
		return err
	}

	dc.loadErr.Store(nil)
	dc.current.Store(snap)
	return nil
}

// RecordLoadError marks the last reload as failed without touching the
// dataset being served.
func (dc *DataContainer) RecordLoadError(err error) {
	dc.loadErr.Store(&loadError{err: err})
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
