// Package scheduler loads the enriched dataset and its embeddings at startup,
// reloads them on a daily schedule and watches how old the served data is.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/metrics"
	"github.com/giygas/medicaments-alternatives/validation"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// staleAfter is how old the served dataset may get before the monitor warns.
const staleAfter = 25 * time.Hour

// Scheduler handles dataset reloads and staleness monitoring
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.DatasetLoader
	validator interfaces.DataValidator
	schedule  string
	scheduler *gocron.Scheduler

	monitorInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewScheduler creates a scheduler reloading at the given gocron At() times,
// e.g. "06:00;18:00".
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.DatasetLoader, schedule string) *Scheduler {
	return &Scheduler{
		dataStore:       dataStore,
		loader:          loader,
		validator:       validation.NewDataValidator(),
		schedule:        schedule,
		scheduler:       gocron.NewScheduler(time.Local),
		monitorInterval: time.Hour,
		stop:            make(chan struct{}),
	}
}

// Start performs the initial load, schedules the reloads and starts the
// staleness monitor. A failed initial load is recorded on the data store and
// served through the health endpoint; the next scheduled reload retries it.
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.schedule).Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to reload dataset", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule reloads", "schedule", s.schedule, "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduled reloads and the monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.stop) })
}

// updateData loads both artifacts and swaps them into the data store
func (s *Scheduler) updateData() error {
	// Prevent concurrent updates
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting dataset reload", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	medications, store, err := s.loader.LoadDataset()
	if err != nil {
		s.dataStore.RecordLoadError(err)
		metrics.ObserveReload(err, 0, start)
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	s.logDataQuality(s.validator.ReportDataQuality(medications, store))

	if err := s.dataStore.UpdateData(medications, store); err != nil {
		metrics.ObserveReload(err, 0, start)
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	metrics.ObserveReload(nil, len(medications), time.Now())

	logging.Info("Dataset reload completed",
		"duration", time.Since(start).String(),
		"medication_count", len(medications),
		"fingerprint", s.dataStore.GetFingerprint())

	return nil
}

func (s *Scheduler) logDataQuality(report *interfaces.DataQualityReport) {
	if !report.Aligned {
		logging.Warn("Embeddings are not aligned with the enriched dataset",
			"records", report.TotalRecords,
			"embedding_rows", report.EmbeddingRows)
	}

	if len(report.DuplicateFullNames) > 0 {
		logging.Warn("Duplicate full names detected",
			"sample", report.DuplicateFullNames)
	}

	if report.MissingDosage > 0 || report.UnspecifiedForm > 0 {
		logging.Warn("Records with incomplete features",
			"missing_dosage", report.MissingDosage,
			"unspecified_form", report.UnspecifiedForm,
			"unspecified_ingredient", report.UnspecifiedIngredient)
	}

	logging.Debug("Dataset quality report",
		"records", report.TotalRecords,
		"undefined_rate", report.UndefinedRate,
		"missing_price_noumea", report.MissingPriceNoumea,
		"embedding_dim", report.EmbeddingDim)
}

// startHealthMonitoring warns when the served dataset grows stale
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > staleAfter {
					logging.Warn("Dataset hasn't been reloaded in over 25 hours",
						"last_update", lastUpdate)
				}
			}
		}
	}()
}
