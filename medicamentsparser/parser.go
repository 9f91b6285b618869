package medicamentsparser

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/extractor"
	"github.com/giygas/medicaments-alternatives/interfaces"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser/entities"
	"github.com/giygas/medicaments-alternatives/metrics"
)

// Compile-time check to ensure ArtifactLoader implements DatasetLoader interface
var _ interfaces.DatasetLoader = (*ArtifactLoader)(nil)

// ArtifactLoader loads the enriched table and the embedding store written by
// the enrich and embed commands.
type ArtifactLoader struct {
	EnrichedPath   string
	EmbeddingsPath string
}

// NewArtifactLoader creates a loader for the two artifact paths.
func NewArtifactLoader(enrichedPath, embeddingsPath string) *ArtifactLoader {
	return &ArtifactLoader{EnrichedPath: enrichedPath, EmbeddingsPath: embeddingsPath}
}

// LoadDataset reads both artifacts. When any is missing the error names all
// the missing files and matches ErrMissingInputFile. Alignment of the two is
// checked by the data store.
func (l *ArtifactLoader) LoadDataset() ([]entities.Medication, *embeddings.Store, error) {
	var missing []string
	for _, path := range []string{l.EnrichedPath, l.EmbeddingsPath} {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s (run the enrich and embed commands first)",
			ErrMissingInputFile, strings.Join(missing, ", "))
	}

	meds, err := ReadEnriched(l.EnrichedPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load enriched dataset: %w", err)
	}

	store, err := embeddings.ReadNPY(l.EmbeddingsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	logging.Info("Dataset artifacts loaded",
		"medications", len(meds),
		"embeddings", store.Len(),
		"dimension", store.Dim())
	return meds, store, nil
}

// EnrichFile reads the raw dataset at rawPath, extracts features from every
// label and writes the enriched table to outPath.
func EnrichFile(rawPath, outPath string, ex *extractor.Extractor) ([]entities.Medication, ParseStats, error) {
	start := time.Now()

	raw, stats, err := ReadRaw(rawPath)
	if err != nil {
		return nil, stats, err
	}
	if len(stats.MissingColumns) > 0 {
		logging.Warn("Raw dataset is missing columns, reading them as empty",
			"columns", stats.MissingColumns)
	}

	meds := Enrich(raw, ex, &stats)
	metrics.ObserveExtraction(stats.DosageMatched, len(meds)-stats.DosageMatched)

	if err := WriteEnriched(outPath, meds); err != nil {
		return nil, stats, err
	}

	// Log coercion statistics if anything was coerced
	if stats.InvalidPrices > 0 || stats.InvalidCodes > 0 {
		logging.Info("Raw dataset coercion statistics",
			"invalid_prices", stats.InvalidPrices,
			"invalid_codes", stats.InvalidCodes,
			"total_rows", stats.Rows)
	}

	logging.Info("Enrichment completed",
		"records", len(meds),
		"dosage_matched", stats.DosageMatched,
		"unspecified_forms", stats.UnspecifiedForms,
		"output", outPath,
		"duration", time.Since(start).String())
	return meds, stats, nil
}
