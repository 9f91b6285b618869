package cmd

import (
	"fmt"

	"github.com/giygas/medicaments-alternatives/extractor"
	"github.com/giygas/medicaments-alternatives/logging"
	"github.com/giygas/medicaments-alternatives/medicamentsparser"
	"github.com/spf13/cobra"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Extract brand, dosage and form from every label of the raw dataset",
	Long: `Read the raw price list (RAW_DATA_PATH), extract the brand, dosage and
galenic form of every label and write the enriched table to ENRICHED_DATA_PATH.
An optional TOML lexicon (LEXICON_PATH) extends the built-in vocabularies.`,
	Args: cobra.NoArgs,
	RunE: enrichMain,
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}

func enrichMain(cmd *cobra.Command, args []string) error {
	ex := extractor.NewExtractor(extractor.Options{
		LexiconPath: cfg.LexiconPath,
		Workers:     cfg.ExtractWorkers,
	})
	if degraded, reason := ex.Degraded(); degraded {
		logging.Warn("Lexicon unavailable, using the built-in vocabulary", "path", cfg.LexiconPath, "reason", reason)
	}

	meds, stats, err := medicamentsparser.EnrichFile(cfg.RawDataPath, cfg.EnrichedDataPath, ex)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Enriched %d medications into %s\n", len(meds), cfg.EnrichedDataPath)
	fmt.Fprintf(cmd.OutOrStdout(), "- dosage found: %d\n", stats.DosageMatched)
	fmt.Fprintf(cmd.OutOrStdout(), "- form unspecified: %d\n", stats.UnspecifiedForms)
	if stats.InvalidPrices > 0 || stats.InvalidCodes > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "- coerced to null: %d prices, %d reimbursement codes\n", stats.InvalidPrices, stats.InvalidCodes)
	}
	return nil
}
