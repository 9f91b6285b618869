package cmd

import (
	"fmt"

	"github.com/giygas/medicaments-alternatives/embeddings"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser"
	"github.com/spf13/cobra"
)

var embedWorkers int

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate the embedding store for the enriched dataset",
	Long: `Embed the description of every record of the enriched table with an
OpenAI-compatible endpoint (EMBEDDING_BASE_URL, EMBEDDING_MODEL) and write
the vectors, one row per record, to EMBEDDINGS_PATH as a .npy file.`,
	Args: cobra.NoArgs,
	RunE: embedMain,
}

func init() {
	embedCmd.Flags().IntVarP(&embedWorkers, "workers", "w", 4, "Concurrent embedding requests")
	rootCmd.AddCommand(embedCmd)
}

func embedMain(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateEmbeddingConfig(); err != nil {
		return err
	}

	meds, err := medicamentsparser.ReadEnriched(cfg.EnrichedDataPath)
	if err != nil {
		return fmt.Errorf("failed to read %s (run enrich first): %w", cfg.EnrichedDataPath, err)
	}

	logging.Info("Generating embeddings", "medications", len(meds), "model", cfg.EmbeddingModel, "batch_size", cfg.EmbeddingBatchSize)

	embedder := embeddings.NewOpenAIEmbedder(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
	store, err := embeddings.Build(cmd.Context(), embedder, meds, cfg.EmbeddingBatchSize, embedWorkers)
	if err != nil {
		return fmt.Errorf("failed to build embeddings: %w", err)
	}

	if err := embeddings.WriteNPY(cfg.EmbeddingsPath, store); err != nil {
		return fmt.Errorf("failed to write embeddings: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d x %d embeddings to %s\n", store.Len(), store.Dim(), cfg.EmbeddingsPath)
	return nil
}
