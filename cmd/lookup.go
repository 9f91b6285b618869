package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/giygas/medicaments-alternatives/alternatives"
	"github.com/giygas/medicaments-alternatives/medicamentsparser"
	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details [index]",
	Short: "Print the record at an index of the enriched dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  detailsMain,
}

var alternativesCmd = &cobra.Command{
	Use:   "alternatives [index]",
	Short: "Print the alternatives of the record at an index",
	Long: `Rank the dataset by cosine similarity to the record, keep the top
CANDIDATE_POOL_SIZE and print those with the same dosage and form under a
different brand, most similar first.`,
	Args: cobra.ExactArgs(1),
	RunE: alternativesMain,
}

func init() {
	rootCmd.AddCommand(detailsCmd)
	rootCmd.AddCommand(alternativesCmd)
}

// openFinder loads both artifacts and checks that they are aligned
func openFinder() (*alternatives.Finder, error) {
	meds, store, err := medicamentsparser.NewArtifactLoader(cfg.EnrichedDataPath, cfg.EmbeddingsPath).LoadDataset()
	if err != nil {
		return nil, err
	}
	return alternatives.NewFinder(meds, store, alternatives.WithPoolSize(cfg.CandidatePoolSize))
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("index must be an integer, got %q", arg)
	}
	return index, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func detailsMain(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	finder, err := openFinder()
	if err != nil {
		return err
	}

	med, err := finder.Details(index)
	if err != nil {
		return err
	}
	return printJSON(cmd, med)
}

func alternativesMain(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	finder, err := openFinder()
	if err != nil {
		return err
	}

	alts, err := finder.Alternatives(index)
	if err != nil {
		return err
	}
	if alts == nil {
		alts = []alternatives.Alternative{}
	}
	return printJSON(cmd, alts)
}
